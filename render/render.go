// Package render - draws decoded detections onto copies of source images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/argus-vision/go-detect/detections"
)

// ErrRender is returned for renderer misuse: nil or empty source image, or
// a broken configuration.
var ErrRender = errors.New("render failed")

const (
	// DefaultCanvasSize matches the 416x416 letterbox the YOLOv3 family
	// consumes. Box coordinates arrive in that space.
	DefaultCanvasSize = 416
	// DefaultStrokeWidth is the box outline thickness in pixels.
	DefaultStrokeWidth = 4
)

// Options configure an Annotator. Zero values fall back to defaults.
type Options struct {
	// CanvasSize is the square canvas edge the box coordinates refer to.
	CanvasSize int
	// StrokeWidth is the outline thickness.
	StrokeWidth int
	// Palette overrides DefaultPalette.
	Palette []NamedColor
	// Face overrides the label font.
	Face font.Face
	// TextColor is the label text color drawn on the chip.
	TextColor color.Color
}

// Annotator draws detection overlays. It is stateless across calls: the
// label-to-color map is rebuilt per invocation, so concurrent calls with
// distinct images are safe.
type Annotator struct {
	canvasSize  int
	strokeWidth int
	palette     []NamedColor
	face        font.Face
	textColor   color.Color
}

// Overlay pairs a canvas-space box with the display strings stacked at its
// top edge. Label keys the chip color.
type Overlay struct {
	Box   detections.Box
	Label string
	Lines []string
}

// NewAnnotator builds an Annotator, applying defaults for zero options.
func NewAnnotator(opts Options) *Annotator {
	if opts.CanvasSize == 0 {
		opts.CanvasSize = DefaultCanvasSize
	}
	if opts.StrokeWidth == 0 {
		opts.StrokeWidth = DefaultStrokeWidth
	}
	if len(opts.Palette) == 0 {
		opts.Palette = DefaultPalette
	}
	if opts.Face == nil {
		opts.Face = basicfont.Face7x13
	}
	if opts.TextColor == nil {
		opts.TextColor = color.Black
	}
	return &Annotator{
		canvasSize:  opts.CanvasSize,
		strokeWidth: opts.StrokeWidth,
		palette:     opts.Palette,
		face:        opts.Face,
		textColor:   opts.TextColor,
	}
}

// Annotate draws every detection onto a fresh copy of src: a stroked box in
// the class color plus one "label: NN%" chip anchored at the box's top
// edge. Detections render in input order, each exactly once; src is never
// modified.
//
// Arguments:
// - src: the original image the detections refer to.
// - dets: decoded detections in canvas coordinates.
//
// Returns:
// - *image.RGBA: the annotated copy.
// - error: ErrRender when src is nil or has zero area.
func (a *Annotator) Annotate(src image.Image, dets []detections.Detection) (*image.RGBA, error) {
	overlays := make([]Overlay, len(dets))
	for i, det := range dets {
		overlays[i] = Overlay{
			Box:   det.Box,
			Label: det.Label,
			Lines: []string{DisplayString(det)},
		}
	}
	return a.AnnotateOverlays(src, overlays)
}

// AnnotateOverlays is the general form of Annotate for callers that supply
// their own display strings, including several lines per box.
func (a *Annotator) AnnotateOverlays(src image.Image, overlays []Overlay) (*image.RGBA, error) {
	if src == nil {
		return nil, errors.Wrap(ErrRender, "nil source image")
	}
	if a.canvasSize <= 0 || a.strokeWidth <= 0 {
		return nil, errors.Wrapf(ErrRender, "bad configuration: canvas %d stroke %d", a.canvasSize, a.strokeWidth)
	}
	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, errors.Wrap(ErrRender, "zero-area source image")
	}

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	widthScale := float32(bounds.Dx()) / float32(a.canvasSize)
	heightScale := float32(bounds.Dy()) / float32(a.canvasSize)

	colors := make(map[string]color.RGBA, len(overlays))
	for _, ov := range overlays {
		c := a.classColor(colors, ov.Label)

		left := int(math32.Round(ov.Box.XMin * widthScale))
		right := int(math32.Round(ov.Box.XMax * widthScale))
		top := int(math32.Round(ov.Box.YMin * heightScale))
		bottom := int(math32.Round(ov.Box.YMax * heightScale))

		a.strokeRect(dst, left, top, right, bottom, c)
		a.drawLabelBlock(dst, left, top, ov.Lines, c)
	}
	return dst, nil
}

// DisplayString formats the chip text for a detection, e.g. "cat: 87%".
func DisplayString(det detections.Detection) string {
	return fmt.Sprintf("%s: %d%%", det.Label, int(math32.Round(det.Score*100)))
}

// classColor resolves the chip/outline color for a label, memoized in the
// per-call map.
func (a *Annotator) classColor(colors map[string]color.RGBA, label string) color.RGBA {
	if c, ok := colors[label]; ok {
		return c
	}
	c := a.palette[PaletteIndex(label, len(a.palette))].RGBA
	colors[label] = c
	return c
}

// strokeRect draws the outline as concentric one-pixel frames inset from
// the inclusive corner coordinates. Drawing clips at the image edge, so
// boxes may lie partly outside.
func (a *Annotator) strokeRect(dst *image.RGBA, left, top, right, bottom int, c color.RGBA) {
	src := image.NewUniform(c)
	for i := 0; i < a.strokeWidth; i++ {
		l, t, r, b := left+i, top+i, right-i, bottom-i
		if r < l || b < t {
			break
		}
		fill(dst, image.Rect(l, t, r+1, t+1), src)
		fill(dst, image.Rect(l, b, r+1, b+1), src)
		fill(dst, image.Rect(l, t, l+1, b+1), src)
		fill(dst, image.Rect(r, t, r+1, b+1), src)
	}
}

// drawLabelBlock stacks the chip lines at the box's top edge. The block
// sits above the edge when it fits within the image, otherwise it flips
// below the edge. Lines draw bottom-up so the first line lands on top.
func (a *Annotator) drawLabelBlock(dst *image.RGBA, left, top int, lines []string, c color.RGBA) {
	if len(lines) == 0 {
		return
	}
	metrics := a.face.Metrics()
	lineHeight := metrics.Height.Ceil()
	margin := int(math32.Ceil(0.05 * float32(lineHeight)))

	total := int(math32.Ceil(1.10 * float32(lineHeight*len(lines))))
	textBottom := top
	if top <= total {
		textBottom = top + total
	}

	chipSrc := image.NewUniform(c)
	textSrc := image.NewUniform(a.textColor)
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		textWidth := font.MeasureString(a.face, line).Ceil()

		fill(dst, image.Rect(left, textBottom-lineHeight-2*margin, left+textWidth+2*margin, textBottom), chipSrc)

		drawer := &font.Drawer{
			Dst:  dst,
			Src:  textSrc,
			Face: a.face,
			Dot:  fixed.P(left+margin, textBottom-margin-metrics.Descent.Ceil()),
		}
		drawer.DrawString(line)

		textBottom -= lineHeight + 2*margin
	}
}

func fill(dst *image.RGBA, r image.Rectangle, src image.Image) {
	draw.Draw(dst, r, src, image.Point{}, draw.Src)
}
