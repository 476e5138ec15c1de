// Package render draws the crafting windows onto a tcell screen. It only
// reads plain values handed to it by the caller; it never touches the world.
package render

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// HUDHeight is the number of rows reserved at the bottom for the HUD.
const HUDHeight = 6

// Rect is a screen region in cells.
type Rect struct {
	X, Y, W, H int
}

// Renderer draws panels, the HUD and modals onto one screen.
type Renderer struct {
	screen tcell.Screen
}

func NewRenderer(screen tcell.Screen) *Renderer {
	return &Renderer{screen: screen}
}

// Clear blanks the screen before a frame is drawn.
func (r *Renderer) Clear() { r.screen.Clear() }

// Show flushes the frame to the terminal.
func (r *Renderer) Show() { r.screen.Show() }

// Columns splits the area above the HUD into the inventory column on the
// left and the window column on the right.
func (r *Renderer) Columns() (left, right Rect) {
	w, h := r.screen.Size()
	ph := max(h-HUDHeight, 3)
	lw := w / 2
	return Rect{X: 0, Y: 0, W: lw, H: ph}, Rect{X: lw, Y: 0, W: w - lw, H: ph}
}

// putGlyph draws a single glyph (ASCII or multi-rune emoji) at (x, y) and
// returns the number of columns it occupies.
func (r *Renderer) putGlyph(x, y int, glyph string, style tcell.Style) int {
	runes := []rune(glyph)
	if len(runes) == 0 {
		return 0
	}
	var combc []rune
	if len(runes) > 1 {
		combc = runes[1:]
	}
	r.screen.SetContent(x, y, runes[0], combc, style)
	width := runewidth.StringWidth(glyph)
	if width == 2 {
		// Fill the second column to avoid rendering artifacts.
		r.screen.SetContent(x+1, y, ' ', nil, style)
	}
	return max(width, 1)
}

// drawText writes text at (x, y), clipped to limit columns. Wide runes count
// as two columns. It returns the columns used.
func (r *Renderer) drawText(x, y, limit int, text string, style tcell.Style) int {
	col := 0
	for _, ch := range text {
		cw := runewidth.RuneWidth(ch)
		if cw == 0 {
			continue
		}
		if col+cw > limit {
			break
		}
		r.screen.SetContent(x+col, y, ch, nil, style)
		col += cw
	}
	return col
}

// drawBox draws a single-line border around rc with an optional title.
func (r *Renderer) drawBox(rc Rect, title string, style tcell.Style) {
	if rc.W < 2 || rc.H < 2 {
		return
	}
	right, bottom := rc.X+rc.W-1, rc.Y+rc.H-1
	for col := rc.X; col <= right; col++ {
		r.screen.SetContent(col, rc.Y, '─', nil, style)
		r.screen.SetContent(col, bottom, '─', nil, style)
	}
	for row := rc.Y; row <= bottom; row++ {
		r.screen.SetContent(rc.X, row, '│', nil, style)
		r.screen.SetContent(right, row, '│', nil, style)
	}
	r.screen.SetContent(rc.X, rc.Y, '┌', nil, style)
	r.screen.SetContent(right, rc.Y, '┐', nil, style)
	r.screen.SetContent(rc.X, bottom, '└', nil, style)
	r.screen.SetContent(right, bottom, '┘', nil, style)
	if title != "" {
		r.drawText(rc.X+2, rc.Y, rc.W-4, " "+title+" ", StyleTitle)
	}
}

// fill paints rc with blanks in style.
func (r *Renderer) fill(rc Rect, style tcell.Style) {
	for y := rc.Y; y < rc.Y+rc.H; y++ {
		for x := rc.X; x < rc.X+rc.W; x++ {
			r.screen.SetContent(x, y, ' ', nil, style)
		}
	}
}
