package render

import (
	"hash/fnv"
	"image/color"
)

// NamedColor pairs a palette entry with a human-readable name so legends
// and logs can reference assigned colors.
type NamedColor struct {
	Name string
	RGBA color.RGBA
}

// hashStride spaces consecutive hash values hashStride slots apart. The
// palette length must stay coprime to it, otherwise only a fraction of the
// entries can ever be assigned.
const hashStride = 8

// DefaultPalette is the ordered color table class colors are drawn from.
// Order matters: colors are assigned by hashed index into this slice, so
// reordering entries changes every assignment. The length is coprime to
// hashStride, which keeps every entry reachable.
var DefaultPalette = []NamedColor{
	{"red", color.RGBA{R: 255, G: 0, B: 0, A: 255}},
	{"orange", color.RGBA{R: 255, G: 165, B: 0, A: 255}},
	{"gold", color.RGBA{R: 255, G: 215, B: 0, A: 255}},
	{"yellow", color.RGBA{R: 255, G: 255, B: 0, A: 255}},
	{"chartreuse", color.RGBA{R: 127, G: 255, B: 0, A: 255}},
	{"lime", color.RGBA{R: 0, G: 255, B: 0, A: 255}},
	{"spring green", color.RGBA{R: 0, G: 255, B: 127, A: 255}},
	{"turquoise", color.RGBA{R: 64, G: 224, B: 208, A: 255}},
	{"cyan", color.RGBA{R: 0, G: 255, B: 255, A: 255}},
	{"deep sky blue", color.RGBA{R: 0, G: 191, B: 255, A: 255}},
	{"dodger blue", color.RGBA{R: 30, G: 144, B: 255, A: 255}},
	{"blue", color.RGBA{R: 0, G: 0, B: 255, A: 255}},
	{"blue violet", color.RGBA{R: 138, G: 43, B: 226, A: 255}},
	{"magenta", color.RGBA{R: 255, G: 0, B: 255, A: 255}},
	{"deep pink", color.RGBA{R: 255, G: 20, B: 147, A: 255}},
	{"crimson", color.RGBA{R: 220, G: 20, B: 60, A: 255}},
	{"coral", color.RGBA{R: 255, G: 127, B: 80, A: 255}},
	{"salmon", color.RGBA{R: 250, G: 128, B: 114, A: 255}},
	{"chocolate", color.RGBA{R: 210, G: 105, B: 30, A: 255}},
	{"olive", color.RGBA{R: 128, G: 128, B: 0, A: 255}},
	{"teal", color.RGBA{R: 0, G: 128, B: 128, A: 255}},
	{"royal blue", color.RGBA{R: 65, G: 105, B: 225, A: 255}},
	{"orchid", color.RGBA{R: 218, G: 112, B: 214, A: 255}},
	{"sienna", color.RGBA{R: 160, G: 82, B: 45, A: 255}},
	{"forest green", color.RGBA{R: 34, G: 139, B: 34, A: 255}},
}

// PaletteIndex returns the palette slot for a label. Assignments are stable
// across runs, but distinct labels can collide onto the same slot.
func PaletteIndex(label string, paletteSize int) int {
	h := fnv.New32a()
	h.Write([]byte(label))
	return int((h.Sum32() * hashStride) % uint32(paletteSize))
}
