package inventory

import (
	"sandforge/internal/component"
	"sandforge/internal/ecs"
)

// Reader looks up the item and stack carried by an item entity.
type Reader interface {
	Item(id ecs.EntityID) (component.Item, component.ItemStack, bool)
}

// Store is the read-write view of the shared item-entity store. Inventories
// never own item data; every read or write of a stack goes through a Store.
type Store interface {
	Reader
	SetStack(id ecs.EntityID, stack component.ItemStack) bool
	Spawn(b component.ItemBundle) ecs.EntityID
	Despawn(id ecs.EntityID)
}

// WorldStore adapts an ECS world to Store. Item entities carry exactly one
// Item and one ItemStack component.
type WorldStore struct {
	w *ecs.World
}

// NewWorldStore wraps w.
func NewWorldStore(w *ecs.World) WorldStore { return WorldStore{w: w} }

func (s WorldStore) Item(id ecs.EntityID) (component.Item, component.ItemStack, bool) {
	if id == ecs.NilEntity {
		return component.Item{}, 0, false
	}
	item, ok := s.w.Get(id, component.CItem).(component.Item)
	if !ok {
		return component.Item{}, 0, false
	}
	stack, ok := s.w.Get(id, component.CItemStack).(component.ItemStack)
	if !ok {
		return component.Item{}, 0, false
	}
	return item, stack, true
}

func (s WorldStore) SetStack(id ecs.EntityID, stack component.ItemStack) bool {
	if !s.w.Has(id, component.CItemStack) {
		return false
	}
	s.w.Add(id, stack)
	return true
}

func (s WorldStore) Spawn(b component.ItemBundle) ecs.EntityID {
	return s.w.Spawn(b.Components()...)
}

func (s WorldStore) Despawn(id ecs.EntityID) { s.w.DestroyEntity(id) }

// Of returns the inventory attached to entity id, or nil.
func Of(w *ecs.World, id ecs.EntityID) *Inventory {
	inv, _ := ecs.GetAs[*Inventory](w, id, component.CInventory)
	return inv
}
