package crafting

import (
	"io/fs"
	"slices"

	"sandforge/internal/component"
	"sandforge/internal/layout"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ItemsFile is the name of the item catalog inside an asset tree.
const ItemsFile = "items.yaml"

// WorkbenchGlob matches recipe table files inside an asset tree.
const WorkbenchGlob = "*.workbench.yaml"

type itemDef struct {
	ID    string `yaml:"id" validate:"required"`
	Name  string `yaml:"name" validate:"required"`
	Kind  string `yaml:"kind" validate:"omitempty,oneof=primitive complex"`
	Level uint8  `yaml:"level"`
	Power int    `yaml:"power"`
	Guard int    `yaml:"guard"`
}

type itemsDoc struct {
	Items []itemDef `yaml:"items" validate:"required,min=1,dive"`
}

type entryDef struct {
	Item  string `yaml:"item" validate:"required"`
	Stack int    `yaml:"stack" validate:"min=1,max=255"`
}

type recipeDef struct {
	Input  []entryDef `yaml:"input" validate:"required,min=1,dive"`
	Output []entryDef `yaml:"output" validate:"required,min=1,dive"`
}

type workbenchDoc struct {
	Name    string      `yaml:"name" validate:"required"`
	Recipes []recipeDef `yaml:"recipes" validate:"dive"`
}

// CatalogEntry is one item definition keyed by its asset id.
type CatalogEntry struct {
	ID   string         `json:"id"`
	Item component.Item `json:"item"`
}

// Catalog is the set of items an asset tree defines, in file order.
type Catalog struct {
	entries []CatalogEntry
	byID    map[string]int
}

// Lookup returns the item with asset id.
func (c *Catalog) Lookup(id string) (component.Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return component.Item{}, false
	}
	return c.entries[i].Item, true
}

// Find returns the asset id of item.
func (c *Catalog) Find(item component.Item) (string, bool) {
	for _, e := range c.entries {
		if e.Item == item {
			return e.ID, true
		}
	}
	return "", false
}

func (c *Catalog) Entries() []CatalogEntry { return slices.Clone(c.entries) }

func (c *Catalog) Len() int { return len(c.entries) }

// Load reads the item catalog and every workbench table under fsys. Recipes
// reference items by asset id; every reference is resolved here, so a
// dangling id fails the load instead of a later craft.
func Load(fsys fs.FS) (*Catalog, *Registry, error) {
	v := validator.New()

	catalog, err := loadItems(fsys, v)
	if err != nil {
		return nil, nil, err
	}

	files, err := fs.Glob(fsys, WorkbenchGlob)
	if err != nil {
		return nil, nil, errors.Wrap(err, "glob workbenches")
	}
	slices.Sort(files)

	reg := NewRegistry()
	for _, name := range files {
		kind, table, err := loadWorkbench(fsys, name, v, catalog)
		if err != nil {
			return nil, nil, err
		}
		if _, err := reg.Table(kind); err == nil {
			return nil, nil, errors.Errorf("%s: workbench %q defined twice", name, kind)
		}
		reg.Register(kind, table)
	}
	return catalog, reg, nil
}

func loadItems(fsys fs.FS, v *validator.Validate) (*Catalog, error) {
	raw, err := fs.ReadFile(fsys, ItemsFile)
	if err != nil {
		return nil, errors.Wrap(err, "read item catalog")
	}
	var doc itemsDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse %s", ItemsFile)
	}
	if err := v.Struct(doc); err != nil {
		return nil, errors.Wrapf(err, "validate %s", ItemsFile)
	}

	c := &Catalog{byID: make(map[string]int, len(doc.Items))}
	for _, d := range doc.Items {
		if _, dup := c.byID[d.ID]; dup {
			return nil, errors.Errorf("%s: duplicate item id %q", ItemsFile, d.ID)
		}
		tag, err := component.ParseKindTag(d.Kind)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: item %q", ItemsFile, d.ID)
		}
		item := component.Item{Name: d.Name, Kind: component.ItemKind{Tag: tag}, Level: d.Level}
		if tag == component.KindComplex {
			item.Kind.Properties = component.ItemProperties{Power: d.Power, Guard: d.Guard}
		}
		if item.Level == 0 {
			item.Level = 1
		}
		c.byID[d.ID] = len(c.entries)
		c.entries = append(c.entries, CatalogEntry{ID: d.ID, Item: item})
	}
	return c, nil
}

func loadWorkbench(fsys fs.FS, name string, v *validator.Validate, catalog *Catalog) (WorkbenchKind, *CraftsMap, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", nil, errors.Wrapf(err, "read %s", name)
	}
	var doc workbenchDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return "", nil, errors.Wrapf(err, "parse %s", name)
	}
	if err := v.Struct(doc); err != nil {
		return "", nil, errors.Wrapf(err, "validate %s", name)
	}

	resolve := func(entries []entryDef) (ItemsLayout, error) {
		out := make([]component.ItemBundle, 0, len(entries))
		for _, e := range entries {
			item, ok := catalog.Lookup(e.Item)
			if !ok {
				return ItemsLayout{}, errors.Errorf("%s: unknown item %q", name, e.Item)
			}
			out = append(out, component.Bundle(item, component.ItemStack(e.Stack)))
		}
		return layout.New(out...), nil
	}

	table := NewCraftsMap()
	for i, r := range doc.Recipes {
		in, err := resolve(r.Input)
		if err != nil {
			return "", nil, err
		}
		out, err := resolve(r.Output)
		if err != nil {
			return "", nil, err
		}
		if err := table.Add(in, out); err != nil {
			return "", nil, errors.Wrapf(err, "%s: recipe %d", name, i)
		}
	}
	return WorkbenchKind(doc.Name), table, nil
}
