// Package inventory implements the slot array carried by players and chests.
//
// An Inventory never holds item data itself. Each slot references an item
// entity in a shared Store, or ecs.NilEntity for a hole left behind by a take.
// Holes are never compacted; new stacks are always appended.
package inventory

import (
	"sandforge/internal/component"
	"sandforge/internal/ecs"
	"sandforge/internal/layout"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound means no slot (or no assignment of slots) satisfies a request.
	ErrNotFound = errors.New("inventory: no satisfying slot")
	// ErrUnderflow means a matching item exists but its stacks hold too few units.
	ErrUnderflow = errors.New("inventory: stack underflow")
)

// Inventory is the component attached to players and chests.
type Inventory struct {
	Slots []ecs.EntityID
}

func (*Inventory) Type() ecs.ComponentType { return component.CInventory }

// New returns an inventory over a copy of slots.
func New(slots ...ecs.EntityID) *Inventory {
	return &Inventory{Slots: append([]ecs.EntityID(nil), slots...)}
}

// Len reports the number of slots, holes included.
func (inv *Inventory) Len() int { return len(inv.Slots) }

// Occupied reports the number of non-hole slots.
func (inv *Inventory) Occupied() int {
	n := 0
	for _, id := range inv.Slots {
		if id != ecs.NilEntity {
			n++
		}
	}
	return n
}

// Predicate inspects one occupied slot.
type Predicate func(item component.Item, stack component.ItemStack, id ecs.EntityID) bool

// ─── Search ─────────────────────────────────────────────────────────────────

// SearchCondition returns the index of the first occupied slot whose entity
// resolves in r and satisfies pred.
func (inv *Inventory) SearchCondition(r Reader, pred Predicate) (int, bool) {
	return inv.search(r, func(_ int, item component.Item, stack component.ItemStack, id ecs.EntityID) bool {
		return pred(item, stack, id)
	})
}

func (inv *Inventory) search(r Reader, pred func(int, component.Item, component.ItemStack, ecs.EntityID) bool) (int, bool) {
	for i, id := range inv.Slots {
		if id == ecs.NilEntity {
			continue
		}
		item, stack, ok := r.Item(id)
		if !ok {
			continue
		}
		if pred(i, item, stack, id) {
			return i, true
		}
	}
	return -1, false
}

// SearchSatisfying finds a slot for every ingredient of l: same name and kind,
// with at least the required count left. Units claimed by an earlier
// ingredient are not available to later ones, so one slot can serve two
// ingredients only if it holds enough for both. The returned indices line up
// with l; nothing is returned unless every ingredient is matched.
func (inv *Inventory) SearchSatisfying(r Reader, l layout.Layout[component.ItemBundle]) ([]int, bool) {
	claimed := make(map[int]component.ItemStack)
	found := make([]int, 0, l.Len())
	for _, want := range l.Get() {
		i, ok := inv.search(r, func(i int, item component.Item, stack component.ItemStack, _ ecs.EntityID) bool {
			if !item.SameKind(want.Item) {
				return false
			}
			left, _ := stack.Sub(claimed[i])
			return left >= want.Stack
		})
		if !ok {
			return nil, false
		}
		claimed[i] += want.Stack
		found = append(found, i)
	}
	return found, true
}

// ─── Take ───────────────────────────────────────────────────────────────────

// Take empties slot index and returns what it held.
func (inv *Inventory) Take(index int) (ecs.EntityID, bool) {
	if index < 0 || index >= len(inv.Slots) {
		return ecs.NilEntity, false
	}
	id := inv.Slots[index]
	if id == ecs.NilEntity {
		return ecs.NilEntity, false
	}
	inv.Slots[index] = ecs.NilEntity
	return id, true
}

// TakeLinear empties the first slot referencing entity.
func (inv *Inventory) TakeLinear(entity ecs.EntityID) (ecs.EntityID, bool) {
	if entity == ecs.NilEntity {
		return ecs.NilEntity, false
	}
	for i, id := range inv.Slots {
		if id == entity {
			return inv.Take(i)
		}
	}
	return ecs.NilEntity, false
}

// TakeLinearItem empties the first slot whose item equals item.
func (inv *Inventory) TakeLinearItem(r Reader, item component.Item) (ecs.EntityID, bool) {
	i, ok := inv.SearchCondition(r, func(it component.Item, _ component.ItemStack, _ ecs.EntityID) bool {
		return it == item
	})
	if !ok {
		return ecs.NilEntity, false
	}
	return inv.Take(i)
}

// TakeSatisfyingLayout runs SearchSatisfying and takes every matched slot.
// A slot matched by several ingredients is taken once.
func (inv *Inventory) TakeSatisfyingLayout(r Reader, l layout.Layout[component.ItemBundle]) ([]ecs.EntityID, bool) {
	idx, ok := inv.SearchSatisfying(r, l)
	if !ok {
		return nil, false
	}
	taken := make([]ecs.EntityID, 0, len(idx))
	for _, i := range idx {
		if id, ok := inv.Take(i); ok {
			taken = append(taken, id)
		}
	}
	return taken, true
}

// ─── Add ────────────────────────────────────────────────────────────────────

// AddSingle appends an existing item entity.
func (inv *Inventory) AddSingle(id ecs.EntityID) {
	inv.Slots = append(inv.Slots, id)
}

// Add spawns one new entity per bundle in l, without merging.
func (inv *Inventory) Add(s Store, l layout.Layout[component.ItemBundle]) {
	l.Each(func(_ int, b component.ItemBundle) {
		if b.Stack == 0 {
			return
		}
		inv.AddSingle(s.Spawn(b))
	})
}

// AddCombine adds every bundle of l, merging into slots that already hold an
// equal item. Units past MaxStack spill into freshly spawned slots.
func (inv *Inventory) AddCombine(s Store, l layout.Layout[component.ItemBundle]) {
	l.Each(func(_ int, b component.ItemBundle) {
		remaining := b.Stack
		for remaining > 0 {
			i, ok := inv.SearchCondition(s, func(it component.Item, st component.ItemStack, _ ecs.EntityID) bool {
				return it == b.Item && st < component.MaxStack
			})
			if !ok {
				break
			}
			id := inv.Slots[i]
			_, st, _ := s.Item(id)
			sum, over := st.Add(remaining)
			s.SetStack(id, sum)
			remaining = over
		}
		for remaining > 0 {
			chunk := min(remaining, component.ItemStack(component.MaxStack))
			inv.AddSingle(s.Spawn(component.Bundle(b.Item, chunk)))
			remaining -= chunk
		}
	})
}

// ─── Remove ─────────────────────────────────────────────────────────────────

// Consume removes the ingredients of l from the slots SearchSatisfying picks.
// Nothing changes unless every ingredient is available.
func (inv *Inventory) Consume(s Store, l layout.Layout[component.ItemBundle]) error {
	idx, ok := inv.SearchSatisfying(s, l)
	if !ok {
		return inv.shortfall(s, l)
	}
	want := l.Get()
	for k, i := range idx {
		inv.decrement(s, i, want[k].Stack)
	}
	return nil
}

// RemoveCombine removes each bundle of l from slots holding an equal item,
// draining slots left to right. Feasibility is checked for the whole layout
// before anything is touched.
func (inv *Inventory) RemoveCombine(s Store, l layout.Layout[component.ItemBundle]) error {
	need := make(map[component.Item]int)
	var order []component.Item
	l.Each(func(_ int, b component.ItemBundle) {
		if _, ok := need[b.Item]; !ok {
			order = append(order, b.Item)
		}
		need[b.Item] += int(b.Stack)
	})
	for _, item := range order {
		have := inv.count(s, func(it component.Item) bool { return it == item })
		switch {
		case need[item] == 0:
		case have == 0:
			return errors.Wrapf(ErrNotFound, "remove %s", item)
		case have < need[item]:
			return errors.Wrapf(ErrUnderflow, "remove %s: have %d, need %d", item, have, need[item])
		}
	}
	for _, item := range order {
		left := need[item]
		for i := 0; i < len(inv.Slots) && left > 0; i++ {
			it, st, ok := s.Item(inv.Slots[i])
			if !ok || it != item {
				continue
			}
			n := min(left, int(st))
			inv.decrement(s, i, component.ItemStack(n))
			left -= n
		}
	}
	return nil
}

// RemoveAt takes b.Stack units of b.Item out of slot index only. The slot
// must hold exactly b.Item with enough units; otherwise nothing changes.
func (inv *Inventory) RemoveAt(s Store, index int, b component.ItemBundle) error {
	if index < 0 || index >= len(inv.Slots) || inv.Slots[index] == ecs.NilEntity {
		return errors.Wrapf(ErrNotFound, "slot %d", index)
	}
	item, stack, ok := s.Item(inv.Slots[index])
	if !ok || item != b.Item {
		return errors.Wrapf(ErrNotFound, "slot %d holds no %s", index, b.Item)
	}
	if stack < b.Stack {
		return errors.Wrapf(ErrUnderflow, "slot %d: have %d, need %d", index, stack, b.Stack)
	}
	inv.decrement(s, index, b.Stack)
	return nil
}

// Join moves every occupied slot of other to the end of inv and empties other.
func (inv *Inventory) Join(other *Inventory) {
	if other == nil || other == inv {
		return
	}
	for _, id := range other.Slots {
		if id != ecs.NilEntity {
			inv.Slots = append(inv.Slots, id)
		}
	}
	other.Slots = nil
}

// Clear despawns every held stack and drops all slots.
func (inv *Inventory) Clear(s Store) {
	for _, id := range inv.Slots {
		if id != ecs.NilEntity {
			s.Despawn(id)
		}
	}
	inv.Slots = nil
}

func (inv *Inventory) decrement(s Store, i int, n component.ItemStack) {
	id := inv.Slots[i]
	_, st, ok := s.Item(id)
	if !ok {
		return
	}
	left, ok := st.Sub(n)
	if !ok {
		return
	}
	if left == 0 {
		inv.Slots[i] = ecs.NilEntity
		s.Despawn(id)
		return
	}
	s.SetStack(id, left)
}

// shortfall explains why SearchSatisfying failed for l.
func (inv *Inventory) shortfall(r Reader, l layout.Layout[component.ItemBundle]) error {
	for _, want := range l.Get() {
		have := inv.count(r, func(it component.Item) bool { return it.SameKind(want.Item) })
		if have == 0 {
			return errors.Wrapf(ErrNotFound, "need %s", want.Item)
		}
	}
	return errors.Wrap(ErrUnderflow, "ingredients present but stacks too small")
}

func (inv *Inventory) count(r Reader, match func(component.Item) bool) int {
	n := 0
	for _, id := range inv.Slots {
		if it, st, ok := r.Item(id); ok && match(it) {
			n += int(st)
		}
	}
	return n
}

// ─── Views ──────────────────────────────────────────────────────────────────

// Entry is one occupied slot as seen through a Reader.
type Entry struct {
	Index  int
	Entity ecs.EntityID
	component.ItemBundle
}

// Contents lists the occupied slots in slot order.
func (inv *Inventory) Contents(r Reader) []Entry {
	var out []Entry
	for i, id := range inv.Slots {
		if it, st, ok := r.Item(id); ok {
			out = append(out, Entry{Index: i, Entity: id, ItemBundle: component.Bundle(it, st)})
		}
	}
	return out
}

// Bundles lists the occupied slots as bundles, for snapshots.
func (inv *Inventory) Bundles(r Reader) []component.ItemBundle {
	var out []component.ItemBundle
	for _, e := range inv.Contents(r) {
		out = append(out, e.ItemBundle)
	}
	return out
}

// Total sums the stack counts of every occupied slot.
func (inv *Inventory) Total(r Reader) int {
	return inv.count(r, func(component.Item) bool { return true })
}
