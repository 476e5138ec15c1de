package assets

// Emoji glyphs drawn next to item names in the terminal UI.
const (
	GlyphPlayer    = "🧙"
	GlyphChest     = "📦"
	GlyphWorkbench = "🛠"
	GlyphTable     = "🔮"
	GlyphUnknown   = "❔"
)

var itemGlyphs = map[string]string{
	"Wood":     "🪵",
	"Plank":    "🟫",
	"Stick":    "🥢",
	"Stone":    "🪨",
	"Iron":     "🔩",
	"Coal":     "⚫",
	"Torch":    "🔥",
	"Pickaxe":  "⛏",
	"Sword":    "🗡",
	"Shield":   "🛡",
	"TestItem": "🧪",
}

// ItemGlyph returns the glyph for an item name, or GlyphUnknown.
func ItemGlyph(name string) string {
	if g, ok := itemGlyphs[name]; ok {
		return g
	}
	return GlyphUnknown
}
