package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-vision/go-detect/detections"
)

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.RGBA{R: 255, A: 255}
)

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: white}, image.Point{}, draw.Src)
	return img
}

// redAnnotator pins the palette to a single color so geometry assertions do
// not depend on the label hash.
func redAnnotator() *Annotator {
	return NewAnnotator(Options{Palette: []NamedColor{{Name: "red", RGBA: red}}})
}

// TestAnnotateScaling verifies canvas-to-image coordinate mapping: an
// 832x832 image doubles every canvas coordinate.
func TestAnnotateScaling(t *testing.T) {
	src := whiteImage(832, 832)
	det := detections.Detection{
		Label: "cat",
		Score: 0.87,
		Box:   detections.Box{YMin: 10, XMin: 20, YMax: 110, XMax: 120},
	}

	out, err := redAnnotator().Annotate(src, []detections.Detection{det})
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), out.Bounds(), "annotated copy keeps the source size")

	// Outline corners at left=40, top=20, right=240, bottom=220.
	assert.Equal(t, red, out.RGBAAt(40, 20), "top-left corner")
	assert.Equal(t, red, out.RGBAAt(240, 20), "top-right corner")
	assert.Equal(t, red, out.RGBAAt(40, 220), "bottom-left corner")
	assert.Equal(t, red, out.RGBAAt(240, 220), "bottom-right corner")

	// One pixel outside the outline stays untouched.
	assert.Equal(t, white, out.RGBAAt(39, 120), "left of the box")
	assert.Equal(t, white, out.RGBAAt(241, 120), "right of the box")
	assert.Equal(t, white, out.RGBAAt(140, 221), "below the box")

	// The 4px stroke leaves the interior untouched.
	assert.Equal(t, red, out.RGBAAt(43, 120), "innermost stroke pass")
	assert.Equal(t, white, out.RGBAAt(44, 120), "interior")
}

// TestAnnotateChipPlacement verifies the label block sits above the top
// edge when it fits and flips below it otherwise.
func TestAnnotateChipPlacement(t *testing.T) {
	// 416x416 source means canvas coordinates map 1:1.
	a := redAnnotator()

	t.Run("above the edge", func(t *testing.T) {
		src := whiteImage(416, 416)
		det := detections.Detection{
			Label: "cat",
			Score: 0.9,
			Box:   detections.Box{YMin: 100, XMin: 50, YMax: 200, XMax: 150},
		}

		out, err := a.Annotate(src, []detections.Detection{det})
		require.NoError(t, err)

		assert.Equal(t, red, out.RGBAAt(60, 92), "chip fills above the top edge")
		assert.Equal(t, white, out.RGBAAt(60, 80), "no chip beyond its height")
		assert.Equal(t, white, out.RGBAAt(60, 150), "box interior untouched")
	})

	t.Run("flipped below the edge", func(t *testing.T) {
		src := whiteImage(416, 416)
		det := detections.Detection{
			Label: "cat",
			Score: 0.9,
			Box:   detections.Box{YMin: 4, XMin: 50, YMax: 200, XMax: 150},
		}

		out, err := a.Annotate(src, []detections.Detection{det})
		require.NoError(t, err)

		// Sample the chip's top row and its margin right of the text;
		// pixels inside the glyph box carry text ink, not chip color.
		assert.Equal(t, red, out.RGBAAt(60, 4), "chip flips below a cramped top edge")
		assert.Equal(t, red, out.RGBAAt(107, 10), "chip spans the text margin")
		assert.Equal(t, white, out.RGBAAt(60, 1), "nothing drawn above the edge")
	})
}

// TestAnnotateOverlaysMultiLine verifies several display strings stack into
// one contiguous block.
func TestAnnotateOverlaysMultiLine(t *testing.T) {
	src := whiteImage(416, 416)
	ov := Overlay{
		Box:   detections.Box{YMin: 200, XMin: 50, YMax: 300, XMax: 150},
		Label: "cat",
		Lines: []string{"alpha", "beta", "gamma"},
	}

	out, err := redAnnotator().AnnotateOverlays(src, []Overlay{ov})
	require.NoError(t, err)

	// Three 15px lines stack upward from the top edge at y=200.
	assert.Equal(t, red, out.RGBAAt(60, 192), "bottom line")
	assert.Equal(t, red, out.RGBAAt(60, 177), "middle line")
	assert.Equal(t, red, out.RGBAAt(60, 162), "top line")
	assert.Equal(t, white, out.RGBAAt(60, 140), "block ends after three lines")
}

// TestAnnotateDeterministic verifies repeated rendering of the same inputs
// is pixel-identical.
func TestAnnotateDeterministic(t *testing.T) {
	src := whiteImage(640, 480)
	dets := []detections.Detection{
		{Label: "cat", Score: 0.87, Box: detections.Box{YMin: 10, XMin: 20, YMax: 110, XMax: 120}},
		{Label: "dog", Score: 0.55, Box: detections.Box{YMin: 200, XMin: 180, YMax: 350, XMax: 400}},
	}
	a := NewAnnotator(Options{})

	first, err := a.Annotate(src, dets)
	require.NoError(t, err)
	second, err := a.Annotate(src, dets)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.Pix, second.Pix), "renders must be pixel-identical")
}

// TestAnnotateEmpty verifies no detections yields an untouched copy.
func TestAnnotateEmpty(t *testing.T) {
	src := whiteImage(320, 240)

	out, err := NewAnnotator(Options{}).Annotate(src, nil)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(src.Pix, out.Pix), "copy must match the source pixel for pixel")
}

func TestAnnotateDoesNotMutateSource(t *testing.T) {
	src := whiteImage(416, 416)
	before := make([]uint8, len(src.Pix))
	copy(before, src.Pix)

	dets := []detections.Detection{
		{Label: "cat", Score: 0.9, Box: detections.Box{YMin: 50, XMin: 50, YMax: 150, XMax: 150}},
	}
	_, err := NewAnnotator(Options{}).Annotate(src, dets)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(before, src.Pix), "source pixels must be untouched")
}

// TestAnnotateOutsideCanvas verifies boxes beyond the canvas clip instead
// of failing.
func TestAnnotateOutsideCanvas(t *testing.T) {
	src := whiteImage(100, 100)
	dets := []detections.Detection{
		{Label: "cat", Score: 0.9, Box: detections.Box{YMin: -50, XMin: -50, YMax: 500, XMax: 500}},
	}

	out, err := NewAnnotator(Options{}).Annotate(src, dets)
	require.NoError(t, err, "out-of-canvas coordinates are not an error")
	require.NotNil(t, out)
}

func TestAnnotateErrors(t *testing.T) {
	a := NewAnnotator(Options{})

	_, err := a.Annotate(nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRender), "nil source should wrap ErrRender")

	_, err = a.Annotate(image.NewRGBA(image.Rect(0, 0, 0, 0)), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRender), "empty source should wrap ErrRender")
}

// TestClassColorAssignment verifies colors come from the configured palette
// via the stable hash, and repeat for repeated labels.
func TestClassColorAssignment(t *testing.T) {
	src := whiteImage(416, 416)
	det := detections.Detection{
		Label: "cat",
		Score: 0.9,
		Box:   detections.Box{YMin: 100, XMin: 50, YMax: 200, XMax: 150},
	}

	out, err := NewAnnotator(Options{}).Annotate(src, []detections.Detection{det})
	require.NoError(t, err)

	want := DefaultPalette[PaletteIndex("cat", len(DefaultPalette))].RGBA
	assert.Equal(t, want, out.RGBAAt(50, 100), "outline color follows the hashed palette slot")
}

func TestPaletteIndex(t *testing.T) {
	for _, label := range []string{"cat", "dog", "traffic light", ""} {
		idx := PaletteIndex(label, len(DefaultPalette))
		assert.Equal(t, idx, PaletteIndex(label, len(DefaultPalette)), "index must be stable")
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, len(DefaultPalette))
	}

	// The slot depends only on the hash residue mod the palette length, so
	// walking the residues shows whether every entry can be assigned.
	seen := make(map[int]struct{}, len(DefaultPalette))
	for r := 0; r < len(DefaultPalette); r++ {
		seen[int(uint32(r)*hashStride%uint32(len(DefaultPalette)))] = struct{}{}
	}
	assert.Len(t, seen, len(DefaultPalette), "palette length must stay coprime to the hash stride")
}

func TestDisplayString(t *testing.T) {
	tests := []struct {
		name string
		det  detections.Detection
		want string
	}{
		{"plain", detections.Detection{Label: "cat", Score: 0.87}, "cat: 87%"},
		{"half rounds up", detections.Detection{Label: "dog", Score: 0.875}, "dog: 88%"},
		{"tiny score", detections.Detection{Label: "kite", Score: 0.004}, "kite: 0%"},
		{"full score", detections.Detection{Label: "bus", Score: 1}, "bus: 100%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayString(tt.det))
		})
	}
}

func BenchmarkAnnotate(b *testing.B) {
	src := whiteImage(1280, 720)
	dets := make([]detections.Detection, 10)
	for i := range dets {
		f := float32(i)
		dets[i] = detections.Detection{
			Label: "cat",
			Score: 0.9,
			Box:   detections.Box{YMin: f * 30, XMin: f * 30, YMax: f*30 + 100, XMax: f*30 + 100},
		}
	}
	a := NewAnnotator(Options{})

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := a.Annotate(src, dets); err != nil {
			b.Fatal(err)
		}
	}
}
