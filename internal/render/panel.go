package render

import (
	"fmt"
	"strings"

	"sandforge/assets"
	"sandforge/internal/component"

	"github.com/gdamore/tcell/v2"
)

// Row is one line of a list panel.
type Row struct {
	Glyph  string
	Text   string
	Detail string
	Color  tcell.Color
	Dim    bool
}

// ItemRow describes an item stack, with its enchantments if any.
func ItemRow(b component.ItemBundle, enchants []string) Row {
	detail := fmt.Sprintf("lv%d", b.Item.Level)
	if b.Item.Kind.Tag == component.KindComplex {
		p := b.Item.Kind.Properties
		detail += fmt.Sprintf(" pow %d grd %d", p.Power, p.Guard)
	}
	if len(enchants) > 0 {
		detail += " [" + strings.Join(enchants, ", ") + "]"
	}
	return Row{
		Glyph:  assets.ItemGlyph(b.Item.Name),
		Text:   fmt.Sprintf("%s x%d", b.Item.Name, b.Stack),
		Detail: detail,
		Color:  KindColor(b.Item.Kind.Tag),
	}
}

// BundlesText renders a list of bundles on one line, e.g. "2 Stick + 1 Coal".
func BundlesText(bs []component.ItemBundle) string {
	parts := make([]string, len(bs))
	for i, b := range bs {
		parts[i] = fmt.Sprintf("%d %s", b.Stack, b.Item.Name)
	}
	return strings.Join(parts, " + ")
}

// visibleRange returns the first row index to draw so that cursor stays on
// screen in a viewport of height rows.
func visibleRange(n, cursor, height int) int {
	if height <= 0 || n <= height || cursor < height {
		return 0
	}
	return min(cursor-height+1, n-height)
}

// DrawPanel draws a bordered list. The cursor row is highlighted only when
// the panel has focus. An empty list shows the placeholder instead.
func (r *Renderer) DrawPanel(rc Rect, title string, rows []Row, cursor int, focused bool, placeholder string) {
	border := StyleBorder
	if focused {
		border = StyleFocus
	}
	r.fill(rc, tcell.StyleDefault)
	r.drawBox(rc, title, border)

	inner := Rect{X: rc.X + 1, Y: rc.Y + 1, W: rc.W - 2, H: rc.H - 2}
	if inner.W <= 0 || inner.H <= 0 {
		return
	}
	if len(rows) == 0 {
		r.drawText(inner.X+1, inner.Y, inner.W-1, placeholder, StyleDim)
		return
	}
	start := visibleRange(len(rows), cursor, inner.H)
	for i := start; i < len(rows) && i-start < inner.H; i++ {
		y := inner.Y + i - start
		row := rows[i]
		textStyle := StyleText
		if row.Color != tcell.ColorDefault {
			textStyle = textStyle.Foreground(row.Color)
		}
		detailStyle := StyleDetail
		if row.Dim {
			textStyle, detailStyle = StyleDim, StyleDim
		}
		if focused && i == cursor {
			r.fill(Rect{X: inner.X, Y: y, W: inner.W, H: 1}, StyleCursor)
			textStyle, detailStyle = StyleCursor, StyleCursor
		}
		x := inner.X + 1
		if row.Glyph != "" {
			x += r.putGlyph(x, y, row.Glyph, textStyle) + 1
		}
		limit := inner.X + inner.W - x
		x += r.drawText(x, y, limit, row.Text, textStyle)
		if row.Detail != "" && x+2 < inner.X+inner.W {
			r.drawText(x+2, y, inner.X+inner.W-x-2, row.Detail, detailStyle)
		}
	}
}
