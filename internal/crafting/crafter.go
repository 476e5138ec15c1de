package crafting

import (
	"sandforge/internal/inventory"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Metrics receives one observation per craft attempt.
type Metrics interface {
	RecordCraft(workbench, result string)
}

type nopMetrics struct{}

func (nopMetrics) RecordCraft(string, string) {}

// Crafter executes recipes against inventories.
type Crafter struct {
	registry *Registry
	log      *zap.Logger
	metrics  Metrics
}

// NewCrafter returns a crafter over reg. m may be nil.
func NewCrafter(reg *Registry, log *zap.Logger, m Metrics) *Crafter {
	if m == nil {
		m = nopMetrics{}
	}
	return &Crafter{registry: reg, log: log, metrics: m}
}

func (c *Crafter) Registry() *Registry { return c.registry }

// Craft turns input into the recipe's output inside inv. The recipe is looked
// up and the inventory checked before anything is touched, so a failed craft
// leaves inv and s exactly as they were. On success the total number of units
// in inv changes by exactly output minus input.
func (c *Crafter) Craft(s inventory.Store, inv *inventory.Inventory, kind WorkbenchKind, input ItemsLayout) (ItemsLayout, error) {
	table, err := c.registry.Table(kind)
	if err != nil {
		return ItemsLayout{}, c.fail(kind, "unknown_workbench", err)
	}
	out, ok := table.Craft(input)
	if !ok {
		return ItemsLayout{}, c.fail(kind, "no_recipe", errors.Wrapf(ErrRecipeUnavailable, "workbench %s", kind))
	}
	if err := inv.Consume(s, input); err != nil {
		return ItemsLayout{}, c.fail(kind, "missing_ingredients", err)
	}
	inv.AddCombine(s, out)

	c.metrics.RecordCraft(string(kind), "ok")
	c.log.Debug("crafted",
		zap.String("workbench", string(kind)),
		zap.Int("inputs", input.Len()),
		zap.Int("outputs", out.Len()),
	)
	return out, nil
}

func (c *Crafter) fail(kind WorkbenchKind, result string, err error) error {
	c.metrics.RecordCraft(string(kind), result)
	c.log.Warn("crafting failed",
		zap.String("workbench", string(kind)),
		zap.String("result", result),
		zap.Error(err),
	)
	return err
}

// Availability is a recipe and whether inv can craft it right now.
type Availability struct {
	Recipe    Recipe `json:"recipe"`
	Craftable bool   `json:"craftable"`
}

// Available lists kind's recipes, marking those inv holds the ingredients for.
func (c *Crafter) Available(r inventory.Reader, inv *inventory.Inventory, kind WorkbenchKind) ([]Availability, error) {
	table, err := c.registry.Table(kind)
	if err != nil {
		return nil, err
	}
	recipes := table.Recipes()
	out := make([]Availability, 0, len(recipes))
	for _, rec := range recipes {
		_, ok := inv.SearchSatisfying(r, rec.Input)
		out = append(out, Availability{Recipe: rec, Craftable: ok})
	}
	return out, nil
}
