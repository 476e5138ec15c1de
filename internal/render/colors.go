package render

import (
	"sandforge/internal/component"

	"github.com/gdamore/tcell/v2"
)

// Styles shared by every panel. Emoji glyphs bring their own colors, so only
// text and borders are tinted.
var (
	StyleText    = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	StyleDim     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	StyleDetail  = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	StyleTitle   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	StyleBorder  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	StyleFocus   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	StyleCursor  = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow)
	StyleMessage = tcell.StyleDefault.Foreground(tcell.ColorLightYellow)
	StyleHint    = tcell.StyleDefault.Foreground(tcell.ColorDarkCyan)
)

// KindColor tints an item name by its kind.
func KindColor(k component.KindTag) tcell.Color {
	if k == component.KindComplex {
		return tcell.ColorAqua
	}
	return tcell.ColorWhite
}
