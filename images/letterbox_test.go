package images

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTestImage creates a solid w x h image for geometry assertions.
func makeTestImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

var red = color.RGBA{R: 255, A: 255}

// TestLetterboxImageGeometry verifies canvas size, aspect preservation and
// centering for a wide input.
func TestLetterboxImageGeometry(t *testing.T) {
	src := makeTestImage(200, 100, red)

	canvas, err := LetterboxImage(src, 416, 416)
	require.NoError(t, err)

	b := canvas.Image.Bounds()
	assert.Equal(t, 416, b.Dx(), "canvas width must match the target")
	assert.Equal(t, 416, b.Dy(), "canvas height must match the target")

	assert.Equal(t, 416, canvas.ContentWidth, "200x100 at scale 2.08 fills the width")
	assert.Equal(t, 208, canvas.ContentHeight)
	assert.Equal(t, 0, canvas.PadLeft)
	assert.Equal(t, 104, canvas.PadTop, "content must be vertically centered")
	assert.InDelta(t, 2.08, canvas.Scale, 1e-9)

	// Padding above the content is gray, the content itself is red.
	assert.Equal(t, PadGray, canvas.Image.RGBAAt(208, 103), "row above content should be padding")
	assert.Equal(t, red, canvas.Image.RGBAAt(208, 208), "canvas center should be content")
	assert.Equal(t, PadGray, canvas.Image.RGBAAt(208, 414), "row below content should be padding")
}

// TestLetterboxImageCentering verifies the top/bottom pads differ by at most
// one pixel when the padded span is odd.
func TestLetterboxImageCentering(t *testing.T) {
	src := makeTestImage(100, 99, red)

	canvas, err := LetterboxImage(src, 416, 416)
	require.NoError(t, err)

	assert.Equal(t, 416, canvas.ContentWidth)
	assert.Equal(t, 411, canvas.ContentHeight, "99 * 4.16 truncates to 411")

	padBottom := 416 - canvas.PadTop - canvas.ContentHeight
	diff := canvas.PadTop - padBottom
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, 1, "centering may be off by at most one pixel")
}

func TestLetterboxImageDoesNotMutateSource(t *testing.T) {
	src := makeTestImage(64, 32, red)
	before := make([]uint8, len(src.Pix))
	copy(before, src.Pix)

	_, err := LetterboxImage(src, 416, 416)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(before, src.Pix), "source pixels must be untouched")
}

func TestLetterboxImageErrors(t *testing.T) {
	tests := []struct {
		name    string
		img     image.Image
		w, h    int
		invalid bool
	}{
		{"zero-area bounds", image.NewRGBA(image.Rect(0, 0, 0, 0)), 416, 416, true},
		{"zero width", image.NewRGBA(image.Rect(0, 0, 0, 100)), 416, 416, true},
		{"zero height", image.NewRGBA(image.Rect(0, 0, 100, 0)), 416, 416, true},
		{"nil image", nil, 416, 416, true},
		{"bad canvas width", makeTestImage(10, 10, red), 0, 416, false},
		{"bad canvas height", makeTestImage(10, 10, red), 416, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LetterboxImage(tt.img, tt.w, tt.h)
			require.Error(t, err)
			assert.Equal(t, tt.invalid, errors.Is(err, ErrInvalidImage),
				"only zero-area input maps to ErrInvalidImage")
		})
	}
}

// TestLetterboxTensor verifies shape, plane order, normalization and the
// gray padding value of the final tensor.
func TestLetterboxTensor(t *testing.T) {
	src := makeTestImage(200, 100, red)

	dense, err := Letterbox(src, 416, 416)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 416, 416}, []int(dense.Shape()), "tensor must be (1, 3, h, w)")

	data, ok := dense.Data().([]float32)
	require.True(t, ok, "backing array must be float32")
	require.Len(t, data, 3*416*416)

	for i, v := range data {
		require.GreaterOrEqualf(t, v, float32(0), "value %d below range", i)
		require.LessOrEqualf(t, v, float32(1), "value %d above range", i)
	}

	plane := 416 * 416
	at := func(c, y, x int) float32 { return data[c*plane+y*416+x] }

	gray := float32(128) / 255.0
	assert.InDelta(t, gray, at(0, 0, 208), 1e-6, "padding red channel")
	assert.InDelta(t, gray, at(1, 0, 208), 1e-6, "padding green channel")
	assert.InDelta(t, gray, at(2, 0, 208), 1e-6, "padding blue channel")

	assert.InDelta(t, 1.0, at(0, 208, 208), 1e-6, "content red channel")
	assert.InDelta(t, 0.0, at(1, 208, 208), 1e-6, "content green channel")
	assert.InDelta(t, 0.0, at(2, 208, 208), 1e-6, "content blue channel")
}

// TestLetterboxDeterministic verifies repeated runs produce identical data.
func TestLetterboxDeterministic(t *testing.T) {
	src := makeTestImage(123, 77, color.RGBA{R: 40, G: 90, B: 200, A: 255})

	first, err := Letterbox(src, 416, 416)
	require.NoError(t, err)
	second, err := Letterbox(src, 416, 416)
	require.NoError(t, err)

	assert.Equal(t, first.Data().([]float32), second.Data().([]float32),
		"letterbox must be deterministic")
}

func TestToTensorBoundsOffset(t *testing.T) {
	// Non-zero-origin bounds must not shift the sampled pixels.
	base := makeTestImage(50, 50, red)
	sub := base.SubImage(image.Rect(10, 10, 30, 30))

	dense := ToTensor(sub)
	assert.Equal(t, []int{1, 3, 20, 20}, []int(dense.Shape()))

	v, err := dense.At(0, 0, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(v.(float32)), 1e-6, "origin pixel should be red")
}

func BenchmarkLetterbox(b *testing.B) {
	src := makeTestImage(1920, 1080, red)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Letterbox(src, 416, 416); err != nil {
			b.Fatal(err)
		}
	}
}
