// Package images - letterbox geometry and tensor conversion feeding the
// detection pipeline.
package images

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrInvalidImage is returned when an input image has zero-area bounds.
var ErrInvalidImage = errors.New("invalid image: zero-area bounds")

// PadGray is the letterbox fill color. The YOLO family is trained against
// neutral gray padding, so the canvas must use the same value.
var PadGray = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// Canvas is the letterboxed intermediate for a single image: the padded
// frame plus the geometry that produced it.
type Canvas struct {
	// Image is the width x height letterboxed frame.
	Image *image.RGBA
	// Scale maps source pixels to canvas pixels.
	Scale float64
	// PadLeft and PadTop locate the pasted content on the canvas.
	PadLeft int
	PadTop  int
	// ContentWidth and ContentHeight are the scaled content dimensions.
	ContentWidth  int
	ContentHeight int
}

// LetterboxImage scales img to fit a width x height canvas without changing
// its aspect ratio, centers it, and fills the remainder with PadGray.
//
// Arguments:
// - img: decoded source image, never mutated.
// - width, height: positive canvas dimensions.
//
// Returns:
// - *Canvas: the letterboxed frame and its geometry.
// - error: ErrInvalidImage for zero-area input, or invalid canvas dims.
func LetterboxImage(img image.Image, width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("canvas dimensions must be positive, got %dx%d", width, height)
	}
	if img == nil {
		return nil, errors.Wrap(ErrInvalidImage, "nil image")
	}
	bounds := img.Bounds()
	iw, ih := bounds.Dx(), bounds.Dy()
	if iw == 0 || ih == 0 {
		return nil, errors.Wrapf(ErrInvalidImage, "%dx%d", iw, ih)
	}

	scale := math.Min(float64(width)/float64(iw), float64(height)/float64(ih))
	nw := int(math.Floor(float64(iw) * scale))
	nh := int(math.Floor(float64(ih) * scale))
	// resize interprets a zero dimension as "preserve aspect".
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	resized := resize.Resize(uint(nw), uint(nh), img, resize.Bicubic)

	padLeft := (width - nw) / 2
	padTop := (height - nh) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: PadGray}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(padLeft, padTop, padLeft+nw, padTop+nh), resized, resized.Bounds().Min, draw.Src)

	return &Canvas{
		Image:         canvas,
		Scale:         scale,
		PadLeft:       padLeft,
		PadTop:        padTop,
		ContentWidth:  nw,
		ContentHeight: nh,
	}, nil
}

// ToTensor converts img to a float32 tensor of shape (1, 3, h, w) with CHW
// plane order R, G, B and every value scaled into [0, 1].
func ToTensor(img image.Image) *tensor.Dense {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]float32, 3*h*w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			data[0*h*w+y*w+x] = float32(r>>8) / 255.0
			data[1*h*w+y*w+x] = float32(g>>8) / 255.0
			data[2*h*w+y*w+x] = float32(b>>8) / 255.0
		}
	}

	return tensor.New(
		tensor.WithShape(1, 3, h, w),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(data),
	)
}

// Letterbox runs the full input transform: letterbox img onto a
// width x height gray canvas and convert it to a normalized CHW tensor.
func Letterbox(img image.Image, width, height int) (*tensor.Dense, error) {
	canvas, err := LetterboxImage(img, width, height)
	if err != nil {
		return nil, err
	}
	return ToTensor(canvas.Image), nil
}
