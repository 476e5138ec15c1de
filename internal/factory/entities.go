package factory

import (
	"sandforge/internal/component"
	"sandforge/internal/crafting"
	"sandforge/internal/ecs"
	"sandforge/internal/enchant"
	"sandforge/internal/inventory"
)

// NewPlayer creates the player entity owned by client with an empty inventory.
func NewPlayer(w *ecs.World, client component.ClientID, name string, props component.PlayerProperties) ecs.EntityID {
	id := w.CreateEntity()
	w.Add(id, component.Player{Client: client})
	w.Add(id, component.Name(name))
	w.Add(id, props)
	w.Add(id, inventory.New())
	return id
}

// NewItem spawns one item entity carrying b.
func NewItem(w *ecs.World, b component.ItemBundle) ecs.EntityID {
	id := w.CreateEntity()
	w.Add(id, b.Item)
	w.Add(id, b.Stack)
	return id
}

// NewChest creates a chest holding one stack per bundle, in order.
func NewChest(w *ecs.World, contents ...component.ItemBundle) ecs.EntityID {
	inv := inventory.New()
	for _, b := range contents {
		if b.Stack == 0 {
			continue
		}
		inv.AddSingle(NewItem(w, b))
	}
	id := w.CreateEntity()
	w.Add(id, component.TagChest{})
	w.Add(id, component.Name("chest"))
	w.Add(id, inv)
	return id
}

// NewWorkbench places a workbench of the given kind.
func NewWorkbench(w *ecs.World, kind crafting.WorkbenchKind) ecs.EntityID {
	id := w.CreateEntity()
	w.Add(id, crafting.Workbench{Kind: kind})
	w.Add(id, component.Name(string(kind)+" workbench"))
	return id
}

// NewEnchantingTable places an enchanting table.
func NewEnchantingTable(w *ecs.World) ecs.EntityID {
	id := w.CreateEntity()
	w.Add(id, enchant.Table{})
	w.Add(id, component.Name("enchanting table"))
	return id
}
