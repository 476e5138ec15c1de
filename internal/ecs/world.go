package ecs

import "slices"

// World is the central entity registry and component store.
// It is not safe for concurrent use; the server confines every access to
// the tick goroutine or to code holding the server lock.
type World struct {
	nextID EntityID
	// entities maps each live entity to its components by type.
	entities map[EntityID]map[ComponentType]Component
	// index lists, per component type, the live entities carrying it.
	index map[ComponentType]map[EntityID]struct{}
}

// NewWorld creates an empty World.
func NewWorld() *World {
	return &World{
		nextID:   1,
		entities: make(map[EntityID]map[ComponentType]Component),
		index:    make(map[ComponentType]map[EntityID]struct{}),
	}
}

// CreateEntity mints a new entity ID with no components.
func (w *World) CreateEntity() EntityID {
	id := w.nextID
	w.nextID++
	w.entities[id] = make(map[ComponentType]Component)
	return id
}

// Spawn creates an entity carrying the given components.
func (w *World) Spawn(cs ...Component) EntityID {
	id := w.CreateEntity()
	for _, c := range cs {
		w.Add(id, c)
	}
	return id
}

// DestroyEntity removes the entity and every component it carries. IDs are
// never reused.
func (w *World) DestroyEntity(id EntityID) {
	cs, ok := w.entities[id]
	if !ok {
		return
	}
	for t := range cs {
		delete(w.index[t], id)
	}
	delete(w.entities, id)
}

func (w *World) Alive(id EntityID) bool {
	_, ok := w.entities[id]
	return ok
}

// Len returns the number of live entities.
func (w *World) Len() int { return len(w.entities) }

// Add attaches a component to an entity, replacing any component of the same
// type. Adding to a dead entity is a no-op.
func (w *World) Add(id EntityID, c Component) {
	cs, ok := w.entities[id]
	if !ok {
		return
	}
	t := c.Type()
	cs[t] = c
	set := w.index[t]
	if set == nil {
		set = make(map[EntityID]struct{})
		w.index[t] = set
	}
	set[id] = struct{}{}
}

// Get returns the component of the given type for entity id, or nil.
func (w *World) Get(id EntityID, t ComponentType) Component {
	return w.entities[id][t]
}

// Remove detaches a component from an entity.
func (w *World) Remove(id EntityID, t ComponentType) {
	if cs, ok := w.entities[id]; ok {
		delete(cs, t)
		delete(w.index[t], id)
	}
}

// Has reports whether entity id has a component of the given type.
func (w *World) Has(id EntityID, t ComponentType) bool {
	_, ok := w.entities[id][t]
	return ok
}

// Query returns the live entities that carry every listed component type,
// in ascending ID order.
func (w *World) Query(types ...ComponentType) []EntityID {
	if len(types) == 0 {
		return nil
	}
	// Scan the rarest component's set and check the rest per entity.
	rarest := types[0]
	for _, t := range types[1:] {
		if len(w.index[t]) < len(w.index[rarest]) {
			rarest = t
		}
	}
	var out []EntityID
	for id := range w.index[rarest] {
		cs := w.entities[id]
		if !slices.ContainsFunc(types, func(t ComponentType) bool {
			_, ok := cs[t]
			return !ok
		}) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// GetAs returns entity id's component of type t as a T. ok is false when the
// entity lacks the component or it has another Go type.
func GetAs[T Component](w *World, id EntityID, t ComponentType) (T, bool) {
	c, ok := w.Get(id, t).(T)
	return c, ok
}
