package render

import (
	"fmt"

	"sandforge/assets"
	"sandforge/internal/component"
)

// DrawHUD renders the status line, the last few messages and a key hint
// at the bottom of the screen.
func (r *Renderer) DrawHUD(name string, props component.PlayerProperties, messages []string, hint string) {
	sw, sh := r.screen.Size()
	hudY := sh - HUDHeight
	if hudY < 0 {
		return
	}
	r.drawHLine(hudY)

	status := fmt.Sprintf("%s %s  HP:%d ATK:%d DEF:%d", assets.GlyphPlayer, name, props.MaxHealth, props.Attack, props.Defense)
	r.drawText(0, hudY+1, sw, status, StyleText)

	lines := HUDHeight - 3
	start := max(len(messages)-lines, 0)
	for i, msg := range messages[start:] {
		r.drawText(0, hudY+2+i, sw, msg, StyleMessage)
	}
	r.drawText(0, sh-1, sw, hint, StyleHint)
}

func (r *Renderer) drawHLine(y int) {
	w, _ := r.screen.Size()
	for x := 0; x < w; x++ {
		r.screen.SetContent(x, y, '─', nil, StyleBorder)
	}
}

// DrawModal draws a centered box with a title and body lines over the
// current frame.
func (r *Renderer) DrawModal(title string, lines []string) {
	sw, sh := r.screen.Size()
	width := len([]rune(title)) + 6
	for _, l := range lines {
		width = max(width, len([]rune(l))+4)
	}
	width = min(width, sw)
	boxH := min(len(lines)+2, sh)
	rc := Rect{X: (sw - width) / 2, Y: (sh - boxH) / 2, W: width, H: boxH}
	r.fill(rc, StyleText)
	r.drawBox(rc, title, StyleBorder)
	for i, l := range lines {
		if i >= boxH-2 {
			break
		}
		r.drawText(rc.X+2, rc.Y+1+i, rc.W-4, l, StyleDetail)
	}
}
