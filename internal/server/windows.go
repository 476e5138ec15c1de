package server

import (
	"fmt"
	"slices"

	"sandforge/assets"
	"sandforge/internal/component"
	"sandforge/internal/crafting"
	"sandforge/internal/ecs"
	"sandforge/internal/enchant"
	"sandforge/internal/inventory"
	"sandforge/internal/protocol"
	"sandforge/internal/render"

	"github.com/google/uuid"
)

// Window is the right-hand panel of the terminal UI.
type Window uint8

const (
	WindowWorkbench Window = iota
	WindowCatalog
	WindowChests
	WindowEnchant
)

func (w Window) String() string {
	switch w {
	case WindowWorkbench:
		return "Workbench"
	case WindowCatalog:
		return "Add items"
	case WindowChests:
		return "Chests"
	case WindowEnchant:
		return "Enchanting table"
	}
	return fmt.Sprintf("window(%d)", uint8(w))
}

// bulkAdd is how many units '+' adds from the catalog.
const bulkAdd = 10

const hint = "↑↓ move  ←→ focus  1 bench  Tab kind  2 add  3 chests  4 enchant  d/x remove  C clear  ? help  q quit"

type chestView struct {
	id     ecs.EntityID
	name   string
	stacks int
	units  int
}

// view is one terminal session's UI state, owned by the session goroutine.
// The lists are copied out of the world under the server lock; actions
// always refer to the rows the player last saw.
type view struct {
	window      Window
	focusWindow bool
	invCursor   int
	sideCursor  int
	kind        int

	name      string
	player    ecs.EntityID
	props     component.PlayerProperties
	messages  []string
	entries   []inventory.Entry
	enchanted map[ecs.EntityID][]string

	kinds        []crafting.WorkbenchKind
	recipes      []crafting.Availability
	catalog      []crafting.CatalogEntry
	chests       []chestView
	enchantments []string
}

func newView() *view {
	return &view{enchantments: enchant.Names()}
}

// refreshLocked copies everything the frame shows. Caller must hold s.mu.
func (v *view) refreshLocked(s *Server, sess *Session) {
	w := s.world
	st := inventory.NewWorldStore(w)

	v.name = sess.Name
	v.player = sess.PlayerID
	v.messages = slices.Clone(sess.Messages)
	v.props, _ = w.Get(sess.PlayerID, component.CPlayerProperties).(component.PlayerProperties)

	v.entries = nil
	v.enchanted = make(map[ecs.EntityID][]string)
	inv := inventory.Of(w, sess.PlayerID)
	if inv != nil {
		v.entries = inv.Contents(st)
		for _, e := range v.entries {
			if names := enchantmentsOf(w, e.Entity); len(names) > 0 {
				v.enchanted[e.Entity] = names
			}
		}
	}

	v.kinds = s.Crafter().Registry().Kinds()
	if v.kind >= len(v.kinds) {
		v.kind = 0
	}
	v.recipes = nil
	if inv != nil && len(v.kinds) > 0 {
		v.recipes, _ = s.Crafter().Available(st, inv, v.kinds[v.kind])
	}

	v.catalog = nil
	if s.catalog != nil {
		v.catalog = s.catalog.Entries()
	}

	v.chests = v.chests[:0]
	for _, id := range w.Query(component.CTagChest, component.CInventory) {
		c := inventory.Of(w, id)
		name := "chest"
		if n, ok := w.Get(id, component.CName).(component.Name); ok {
			name = string(n)
		}
		v.chests = append(v.chests, chestView{id: id, name: name, stacks: c.Occupied(), units: c.Total(st)})
	}
	v.clamp()
}

func (v *view) sideLen() int {
	switch v.window {
	case WindowWorkbench:
		return len(v.recipes)
	case WindowCatalog:
		return len(v.catalog)
	case WindowChests:
		return len(v.chests)
	case WindowEnchant:
		return len(v.enchantments)
	}
	return 0
}

func clampCursor(c, n int) int {
	if c >= n {
		c = n - 1
	}
	return max(c, 0)
}

func (v *view) clamp() {
	v.invCursor = clampCursor(v.invCursor, len(v.entries))
	v.sideCursor = clampCursor(v.sideCursor, v.sideLen())
}

// selected returns the inventory entry under the cursor.
func (v *view) selected() (inventory.Entry, bool) {
	if v.invCursor < 0 || v.invCursor >= len(v.entries) {
		return inventory.Entry{}, false
	}
	return v.entries[v.invCursor], true
}

// ─── Drawing ─────────────────────────────────────────────────────────────────

func (v *view) inventoryRows() []render.Row {
	rows := make([]render.Row, len(v.entries))
	for i, e := range v.entries {
		rows[i] = render.ItemRow(e.ItemBundle, v.enchanted[e.Entity])
	}
	return rows
}

func (v *view) sideTitle() string {
	if v.window == WindowWorkbench && len(v.kinds) > 0 {
		return fmt.Sprintf("%s %s: %s", assets.GlyphWorkbench, v.window, v.kinds[v.kind])
	}
	return v.window.String()
}

func (v *view) sideRows() []render.Row {
	var rows []render.Row
	switch v.window {
	case WindowWorkbench:
		for _, a := range v.recipes {
			out := a.Recipe.Output.Get()
			glyph := assets.GlyphUnknown
			if len(out) > 0 {
				glyph = assets.ItemGlyph(out[0].Item.Name)
			}
			rows = append(rows, render.Row{
				Glyph:  glyph,
				Text:   render.BundlesText(out),
				Detail: "from " + render.BundlesText(a.Recipe.Input.Get()),
				Dim:    !a.Craftable,
			})
		}
	case WindowCatalog:
		for _, e := range v.catalog {
			rows = append(rows, render.Row{
				Glyph:  assets.ItemGlyph(e.Item.Name),
				Text:   e.Item.Name,
				Detail: e.ID,
				Color:  render.KindColor(e.Item.Kind.Tag),
			})
		}
	case WindowChests:
		for _, c := range v.chests {
			rows = append(rows, render.Row{
				Glyph:  assets.GlyphChest,
				Text:   c.name,
				Detail: fmt.Sprintf("%d stacks, %d items", c.stacks, c.units),
				Dim:    c.stacks == 0,
			})
		}
	case WindowEnchant:
		for _, name := range v.enchantments {
			rows = append(rows, render.Row{Glyph: assets.GlyphTable, Text: name})
		}
	}
	return rows
}

func (v *view) placeholder() string {
	switch v.window {
	case WindowWorkbench:
		return "no recipes"
	case WindowCatalog:
		return "no items defined"
	case WindowChests:
		return "no chests"
	}
	return "nothing here"
}

func (v *view) draw(r *render.Renderer) {
	r.Clear()
	left, right := r.Columns()
	r.DrawPanel(left, "Inventory", v.inventoryRows(), v.invCursor, !v.focusWindow, "empty")
	r.DrawPanel(right, v.sideTitle(), v.sideRows(), v.sideCursor, v.focusWindow, v.placeholder())
	r.DrawHUD(v.name, v.props, v.messages, hint)
}

// ─── Actions ─────────────────────────────────────────────────────────────────

// handle applies a UI action. It returns the message to submit, if any, and
// a status line for the player when the action was refused locally.
func (v *view) handle(a Action) (protocol.Message, string) {
	switch a {
	case ActionUp:
		v.move(-1)
	case ActionDown:
		v.move(1)
	case ActionFocusInventory:
		v.focusWindow = false
	case ActionFocusWindow:
		v.focusWindow = true
	case ActionNextWorkbench:
		if v.window == WindowWorkbench && len(v.kinds) > 0 {
			v.kind = (v.kind + 1) % len(v.kinds)
		}
		v.open(WindowWorkbench)
	case ActionWorkbench:
		v.open(WindowWorkbench)
	case ActionCatalog:
		v.open(WindowCatalog)
	case ActionChests:
		v.open(WindowChests)
	case ActionEnchant:
		v.open(WindowEnchant)
	case ActionSelect:
		return v.selectRow(1)
	case ActionSelectMany:
		return v.selectRow(bulkAdd)
	case ActionRemoveOne, ActionRemoveStack:
		e, ok := v.selected()
		if !ok {
			return nil, "Nothing selected."
		}
		b := component.Bundle(e.Item, 1)
		if a == ActionRemoveStack {
			b.Stack = e.Stack
		}
		ev := protocol.NewItemEvent(protocol.KindRemove, v.player, b)
		ev.Entity = e.Entity
		return ev, ""
	case ActionClear:
		return protocol.ClearRequest{ID: uuid.New()}, ""
	}
	return nil, ""
}

func (v *view) open(w Window) {
	if v.window != w {
		v.sideCursor = 0
	}
	v.window = w
	v.focusWindow = true
	v.clamp()
}

func (v *view) move(d int) {
	if v.focusWindow {
		v.sideCursor = clampCursor(v.sideCursor+d, v.sideLen())
		return
	}
	v.invCursor = clampCursor(v.invCursor+d, len(v.entries))
}

// selectRow acts on the window row under the cursor. n is the quantity for
// catalog adds.
func (v *view) selectRow(n component.ItemStack) (protocol.Message, string) {
	if !v.focusWindow {
		v.focusWindow = true
		return nil, ""
	}
	if v.sideCursor >= v.sideLen() {
		return nil, "Nothing selected."
	}
	switch v.window {
	case WindowWorkbench:
		rec := v.recipes[v.sideCursor].Recipe
		return protocol.CraftRequest{
			ID:        uuid.New(),
			Workbench: v.kinds[v.kind],
			Input:     rec.Input.Get(),
		}, ""
	case WindowCatalog:
		item := v.catalog[v.sideCursor].Item
		return protocol.NewItemEvent(protocol.KindAdd, v.player, component.Bundle(item, n)), ""
	case WindowChests:
		c := v.chests[v.sideCursor]
		if c.stacks == 0 {
			return nil, fmt.Sprintf("The %s is empty.", c.name)
		}
		return protocol.TakeAllRequest{ID: uuid.New(), Chest: c.id}, ""
	case WindowEnchant:
		e, ok := v.selected()
		if !ok {
			return nil, "Select an item in your inventory first."
		}
		return protocol.EnchantRequest{
			ID:          uuid.New(),
			Slot:        e.Index,
			Enchantment: v.enchantments[v.sideCursor],
		}, ""
	}
	return nil, ""
}
