// Package enchant implements item enchantments. An enchantment is attached
// to an item at an enchanting table and applied exactly once: it may change
// the item's properties, the owning player's stats and the world around the
// player.
package enchant

import (
	"sort"
	"strconv"
	"strings"

	"sandforge/internal/component"
	"sandforge/internal/ecs"

	"github.com/pkg/errors"
)

var (
	ErrUnknownEnchantment = errors.New("enchant: unknown enchantment")
	ErrNotEnchantable     = errors.New("enchant: item cannot be enchanted")
)

// Enchantment modifies an item and its holder when applied.
type Enchantment interface {
	Name() string
	ModifyPlayer(p *component.PlayerProperties)
	ModifyItem(p *component.ItemProperties)
	ModifyWorld(w *ecs.World, player ecs.EntityID)
}

// Base provides no-op modifiers for enchantments to embed.
type Base struct{}

func (Base) ModifyPlayer(*component.PlayerProperties) {}
func (Base) ModifyItem(*component.ItemProperties)     {}
func (Base) ModifyWorld(*ecs.World, ecs.EntityID)     {}

// Entry is one enchantment on an item and whether it has been applied.
type Entry struct {
	Enchantment Enchantment
	Applied     bool
}

// Enchantments is the component carried by enchanted item entities.
type Enchantments struct {
	entries []Entry
}

func (*Enchantments) Type() ecs.ComponentType { return component.CEnchantments }

// Add attaches e, unapplied.
func (es *Enchantments) Add(e Enchantment) {
	es.entries = append(es.entries, Entry{Enchantment: e})
}

func (es *Enchantments) Entries() []Entry {
	return append([]Entry(nil), es.entries...)
}

// Names lists the attached enchantments in the order they were added.
func (es *Enchantments) Names() []string {
	out := make([]string, len(es.entries))
	for i, e := range es.entries {
		out[i] = e.Enchantment.Name()
	}
	return out
}

// Pending counts entries not yet applied.
func (es *Enchantments) Pending() int {
	n := 0
	for _, e := range es.entries {
		if !e.Applied {
			n++
		}
	}
	return n
}

// ApplyUnapplied runs every unapplied entry once, in order, and marks it
// applied. It returns how many entries ran.
func (es *Enchantments) ApplyUnapplied(player *component.PlayerProperties, item *component.ItemProperties, w *ecs.World, playerID ecs.EntityID) int {
	n := 0
	for i := range es.entries {
		e := &es.entries[i]
		if e.Applied {
			continue
		}
		e.Enchantment.ModifyItem(item)
		e.Enchantment.ModifyPlayer(player)
		e.Enchantment.ModifyWorld(w, playerID)
		e.Applied = true
		n++
	}
	return n
}

// Table is an enchanting table entity.
type Table struct{}

func (Table) Type() ecs.ComponentType { return component.CEnchantingTable }

// Enchant attaches e to target without applying it.
func (Table) Enchant(target *Enchantments, e Enchantment) {
	target.Add(e)
}

// Apply enchants item entity itemID held by player at table t, then applies
// every pending enchantment on it. Only complex items carry properties, so
// primitive items are rejected. The enchanted item is a new kind of item and
// no longer stacks with its unenchanted siblings.
func (t Table) Apply(w *ecs.World, player, itemID ecs.EntityID, e Enchantment) (component.Item, error) {
	item, ok := w.Get(itemID, component.CItem).(component.Item)
	if !ok {
		return component.Item{}, errors.Wrapf(ErrNotEnchantable, "entity %d is not an item", itemID)
	}
	if item.Kind.Tag != component.KindComplex {
		return component.Item{}, errors.Wrapf(ErrNotEnchantable, "%s is primitive", item.Name)
	}
	props, ok := w.Get(player, component.CPlayerProperties).(component.PlayerProperties)
	if !ok {
		props = component.DefaultPlayerProperties()
	}
	es, ok := w.Get(itemID, component.CEnchantments).(*Enchantments)
	if !ok {
		es = &Enchantments{}
		w.Add(itemID, es)
	}

	t.Enchant(es, e)
	es.ApplyUnapplied(&props, &item.Kind.Properties, w, player)

	w.Add(itemID, item)
	w.Add(player, props)
	return item, nil
}

// ─── Built-ins ──────────────────────────────────────────────────────────────

// Power grants the holder the power tag.
type Power struct{ Base }

func (Power) Name() string { return "power" }

func (Power) ModifyWorld(w *ecs.World, player ecs.EntityID) {
	if w.Alive(player) {
		w.Add(player, component.TagPower{})
	}
}

// Sharpness raises an item's power and its holder's attack.
type Sharpness struct {
	Base
	Level int
}

func (s Sharpness) Name() string { return "sharpness:" + strconv.Itoa(s.Level) }

func (s Sharpness) ModifyItem(p *component.ItemProperties) { p.Power += s.Level }

func (s Sharpness) ModifyPlayer(p *component.PlayerProperties) { p.Attack += s.Level }

// Vigor raises an item's guard and its holder's maximum health.
type Vigor struct {
	Base
	Level int
}

func (v Vigor) Name() string { return "vigor:" + strconv.Itoa(v.Level) }

func (v Vigor) ModifyItem(p *component.ItemProperties) { p.Guard += v.Level }

func (v Vigor) ModifyPlayer(p *component.PlayerProperties) { p.MaxHealth += 5 * v.Level }

var builtins = map[string]func(level int) Enchantment{
	"power":     func(int) Enchantment { return Power{} },
	"sharpness": func(l int) Enchantment { return Sharpness{Level: l} },
	"vigor":     func(l int) Enchantment { return Vigor{Level: l} },
}

// Lookup resolves a name such as "power" or "sharpness:3". The level
// defaults to 1 and must be between 1 and 10.
func Lookup(name string) (Enchantment, error) {
	base, lvl, hasLevel := strings.Cut(strings.ToLower(strings.TrimSpace(name)), ":")
	mk, ok := builtins[base]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEnchantment, "%q", name)
	}
	level := 1
	if hasLevel {
		n, err := strconv.Atoi(lvl)
		if err != nil || n < 1 || n > 10 {
			return nil, errors.Wrapf(ErrUnknownEnchantment, "%q: bad level", name)
		}
		level = n
	}
	return mk(level), nil
}

// Names lists the built-in enchantment names.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for n := range builtins {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
