package protocol

import (
	"sync"

	"sandforge/internal/ecs"
)

// EntityMapper translates entity references from one peer's id space into
// another's. Unknown ids map to ecs.NilEntity.
type EntityMapper interface {
	MapEntity(id ecs.EntityID) ecs.EntityID
}

// MapEntities rewrites every entity reference carried by e.
func (e *ItemEvent) MapEntities(m EntityMapper) {
	if e.Inventory != ecs.NilEntity {
		e.Inventory = m.MapEntity(e.Inventory)
	}
	if e.Entity != ecs.NilEntity {
		e.Entity = m.MapEntity(e.Entity)
	}
}

func (r *TakeAllRequest) MapEntities(m EntityMapper) {
	if r.Chest != ecs.NilEntity {
		r.Chest = m.MapEntity(r.Chest)
	}
}

// MapEntities rewrites slot entities and chest references.
func (u *InventoryUpdate) MapEntities(m EntityMapper) {
	slots := make([]SlotView, len(u.Slots))
	for i, v := range u.Slots {
		v.Entity = m.MapEntity(v.Entity)
		slots[i] = v
	}
	u.Slots = slots
	if len(u.Chests) > 0 {
		chests := make([]ecs.EntityID, len(u.Chests))
		for i, c := range u.Chests {
			chests[i] = m.MapEntity(c)
		}
		u.Chests = chests
	}
}

// MapMessage returns msg with its entity references rewritten through m.
func MapMessage(msg Message, m EntityMapper) Message {
	switch v := msg.(type) {
	case ItemEvent:
		v.MapEntities(m)
		return v
	case TakeAllRequest:
		v.MapEntities(m)
		return v
	case InventoryUpdate:
		v.MapEntities(m)
		return v
	}
	return msg
}

// MapTable is a bidirectional peer <-> authority entity table, one per
// connection. Peers only ever see the handles the table hands out.
type MapTable struct {
	mu       sync.RWMutex
	toServer map[ecs.EntityID]ecs.EntityID
	toPeer   map[ecs.EntityID]ecs.EntityID
	next     ecs.EntityID
}

func NewMapTable() *MapTable {
	return &MapTable{
		toServer: make(map[ecs.EntityID]ecs.EntityID),
		toPeer:   make(map[ecs.EntityID]ecs.EntityID),
	}
}

// Insert records that peer handle p refers to server entity s.
func (t *MapTable) Insert(p, s ecs.EntityID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.toServer[p]; ok {
		delete(t.toPeer, old)
	}
	t.toServer[p] = s
	t.toPeer[s] = p
	if p > t.next {
		t.next = p
	}
}

// Handle returns the peer handle for server entity s, allocating one on
// first sight.
func (t *MapTable) Handle(s ecs.EntityID) ecs.EntityID {
	if s == ecs.NilEntity {
		return ecs.NilEntity
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.toPeer[s]; ok {
		return p
	}
	t.next++
	t.toServer[t.next] = s
	t.toPeer[s] = t.next
	return t.next
}

func (t *MapTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.toServer)
}

// ToServer maps peer handles to server entities.
func (t *MapTable) ToServer() EntityMapper { return direction{t: t, server: true} }

// ToPeer maps server entities to peer handles without allocating.
func (t *MapTable) ToPeer() EntityMapper { return direction{t: t} }

// Allocating maps server entities to peer handles, handing out new handles
// for entities the peer has not seen yet. Outgoing messages use it.
func (t *MapTable) Allocating() EntityMapper { return allocating{t} }

type allocating struct{ t *MapTable }

func (a allocating) MapEntity(id ecs.EntityID) ecs.EntityID { return a.t.Handle(id) }

type direction struct {
	t      *MapTable
	server bool
}

func (d direction) MapEntity(id ecs.EntityID) ecs.EntityID {
	d.t.mu.RLock()
	defer d.t.mu.RUnlock()
	m := d.t.toPeer
	if d.server {
		m = d.t.toServer
	}
	return m[id]
}
