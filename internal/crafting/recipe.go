// Package crafting holds the recipe tables of each workbench and the crafter
// that turns ingredients in an inventory into products.
package crafting

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"sandforge/internal/component"
	"sandforge/internal/layout"

	"github.com/pkg/errors"
)

var (
	ErrRecipeUnavailable = errors.New("crafting: no recipe for layout")
	ErrUnknownWorkbench  = errors.New("crafting: unknown workbench")
	ErrDuplicateRecipe   = errors.New("crafting: duplicate recipe")
	ErrInvalidRecipe     = errors.New("crafting: invalid recipe")
)

// ItemsLayout is an ordered list of (item, count) pairs: a recipe's input or
// output, or the contents a client asks to craft from.
type ItemsLayout = layout.Layout[component.ItemBundle]

// Canonical returns l sorted by item then count. Two layouts describing the
// same multiset of bundles have identical canonical forms.
func Canonical(l ItemsLayout) ItemsLayout {
	items := l.Get()
	slices.SortFunc(items, component.CompareBundles)
	return layout.New(items...)
}

// Key encodes the canonical form of l as a map key.
func Key(l ItemsLayout) string {
	var b strings.Builder
	for i, bd := range Canonical(l).Get() {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Quote(bd.Item.Name))
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(int(bd.Item.Kind.Tag)))
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(bd.Item.Kind.Properties.Power))
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(bd.Item.Kind.Properties.Guard))
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(int(bd.Item.Level)))
		b.WriteByte('x')
		b.WriteString(strconv.Itoa(int(bd.Stack)))
	}
	return b.String()
}

// Recipe maps an input layout to an output layout.
type Recipe struct {
	Input  ItemsLayout
	Output ItemsLayout
}

type recipeJSON struct {
	Input  []component.ItemBundle `json:"input"`
	Output []component.ItemBundle `json:"output"`
}

func (r Recipe) MarshalJSON() ([]byte, error) {
	return json.Marshal(recipeJSON{Input: r.Input.Get(), Output: r.Output.Get()})
}

func (r *Recipe) UnmarshalJSON(b []byte) error {
	var v recipeJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	r.Input = layout.New(v.Input...)
	r.Output = layout.New(v.Output...)
	return nil
}

// CraftsMap is one workbench's recipe table. Lookup is an exact multiset
// match on the input: order does not matter, counts do.
type CraftsMap struct {
	index   map[string]int
	recipes []Recipe
}

func NewCraftsMap() *CraftsMap {
	return &CraftsMap{index: make(map[string]int)}
}

// Add registers in -> out. Inputs are stored in canonical order.
func (m *CraftsMap) Add(in, out ItemsLayout) error {
	if in.Len() == 0 || out.Len() == 0 {
		return errors.Wrap(ErrInvalidRecipe, "input and output must be non-empty")
	}
	for _, l := range []ItemsLayout{in, out} {
		for _, b := range l.Get() {
			if b.Stack == 0 {
				return errors.Wrapf(ErrInvalidRecipe, "zero count for %s", b.Item.Name)
			}
		}
	}
	key := Key(in)
	if _, ok := m.index[key]; ok {
		return errors.Wrapf(ErrDuplicateRecipe, "input %s", key)
	}
	m.index[key] = len(m.recipes)
	m.recipes = append(m.recipes, Recipe{Input: Canonical(in), Output: out})
	return nil
}

// Remove drops the recipe whose input matches in.
func (m *CraftsMap) Remove(in ItemsLayout) bool {
	key := Key(in)
	i, ok := m.index[key]
	if !ok {
		return false
	}
	m.recipes = slices.Delete(m.recipes, i, i+1)
	delete(m.index, key)
	for k, j := range m.index {
		if j > i {
			m.index[k] = j - 1
		}
	}
	return true
}

// Craft returns the output for an input layout. The returned layout is the
// caller's to keep.
func (m *CraftsMap) Craft(in ItemsLayout) (ItemsLayout, bool) {
	i, ok := m.index[Key(in)]
	if !ok {
		return ItemsLayout{}, false
	}
	return layout.New(m.recipes[i].Output.Get()...), true
}

// Recipes lists every recipe in registration order.
func (m *CraftsMap) Recipes() []Recipe {
	return slices.Clone(m.recipes)
}

func (m *CraftsMap) Len() int { return len(m.recipes) }
