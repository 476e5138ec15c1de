package server

import "github.com/gdamore/tcell/v2"

// Action represents a player-requested UI action.
type Action uint8

const (
	ActionNone Action = iota
	ActionUp
	ActionDown
	ActionFocusInventory
	ActionFocusWindow
	ActionNextWorkbench
	ActionWorkbench
	ActionCatalog
	ActionChests
	ActionEnchant
	ActionSelect
	ActionSelectMany
	ActionRemoveOne
	ActionRemoveStack
	ActionClear
	ActionHelp
	ActionQuit
)

// keyToAction maps a tcell key event to a UI action.
func keyToAction(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyUp:
		return ActionUp
	case tcell.KeyDown:
		return ActionDown
	case tcell.KeyLeft:
		return ActionFocusInventory
	case tcell.KeyRight:
		return ActionFocusWindow
	case tcell.KeyTab:
		return ActionNextWorkbench
	case tcell.KeyEnter:
		return ActionSelect
	case tcell.KeyEscape:
		return ActionQuit
	}
	switch ev.Rune() {
	case 'k', 'K':
		return ActionUp
	case 'j', 'J':
		return ActionDown
	case 'h', 'H':
		return ActionFocusInventory
	case 'l', 'L':
		return ActionFocusWindow
	case '1', 'w', 'W':
		return ActionWorkbench
	case '2', 'a', 'A':
		return ActionCatalog
	case '3', 'c':
		return ActionChests
	case '4', 'e', 'E':
		return ActionEnchant
	case ' ':
		return ActionSelect
	case '+':
		return ActionSelectMany
	case 'd', 'D':
		return ActionRemoveOne
	case 'x', 'X':
		return ActionRemoveStack
	case 'C':
		return ActionClear
	case '?':
		return ActionHelp
	case 'q', 'Q':
		return ActionQuit
	}
	return ActionNone
}
