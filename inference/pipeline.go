package inference

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/argus-vision/go-detect/classes"
	"github.com/argus-vision/go-detect/detections"
	"github.com/argus-vision/go-detect/images"
	"github.com/argus-vision/go-detect/render"
)

// Result bundles the outputs of one pipeline pass.
type Result struct {
	// Detections in engine selection order.
	Detections []detections.Detection `json:"detections" yaml:"detections"`
	// Annotated is the rendered copy of the input image.
	Annotated *image.RGBA `json:"-" yaml:"-"`
}

// PipelineOptions tune pipeline construction. Zero values fall back to
// defaults.
type PipelineOptions struct {
	// CanvasSize is the square letterbox edge fed to the model.
	CanvasSize int
	// Annotator overrides the default renderer. Its canvas size must
	// match CanvasSize.
	Annotator *render.Annotator
	// Logger receives per-image debug timing. Nil disables logging.
	Logger *zerolog.Logger
}

// Pipeline wires letterbox, engine, decoder and renderer into single-call
// detection. The pipeline itself is stateless between calls; concurrency
// is bounded only by the engine.
type Pipeline struct {
	engine     Engine
	labels     *classes.Table
	annotator  *render.Annotator
	canvasSize int
	log        zerolog.Logger
}

// NewPipeline composes a pipeline over an engine and its label table.
func NewPipeline(engine Engine, labels *classes.Table, opts PipelineOptions) (*Pipeline, error) {
	if engine == nil {
		return nil, errors.New("nil engine")
	}
	if labels == nil {
		return nil, errors.New("nil label table")
	}
	if opts.CanvasSize == 0 {
		opts.CanvasSize = render.DefaultCanvasSize
	}
	if opts.CanvasSize < 0 {
		return nil, errors.Errorf("canvas size %d", opts.CanvasSize)
	}
	if opts.Annotator == nil {
		opts.Annotator = render.NewAnnotator(render.Options{CanvasSize: opts.CanvasSize})
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Pipeline{
		engine:     engine,
		labels:     labels,
		annotator:  opts.Annotator,
		canvasSize: opts.CanvasSize,
		log:        log,
	}, nil
}

// Detect runs one image end to end: letterbox, inference, decode, render.
// Each stage fails fast; the error names the stage that gave up.
//
// Arguments:
// - ctx: canceled context aborts before inference.
// - img: decoded source image, never mutated.
//
// Returns:
// - *Result: detections in selection order plus the annotated copy.
// - error: the wrapped stage failure.
func (p *Pipeline) Detect(ctx context.Context, img image.Image) (*Result, error) {
	start := time.Now()

	canvas, err := images.Letterbox(img, p.canvasSize, p.canvasSize)
	if err != nil {
		return nil, errors.Wrap(err, "letterbox")
	}

	raw, err := p.engine.Infer(ctx, canvas)
	if err != nil {
		return nil, errors.Wrap(err, "infer")
	}

	dets, err := detections.Decode(raw, p.labels)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	annotated, err := p.annotator.Annotate(img, dets)
	if err != nil {
		return nil, errors.Wrap(err, "render")
	}

	p.log.Debug().
		Int("detections", len(dets)).
		Dur("elapsed", time.Since(start)).
		Msg("image processed")

	return &Result{Detections: dets, Annotated: annotated}, nil
}

// DetectBatch runs Detect over several images concurrently, bounded by
// limit workers (limit <= 0 runs all images at once). Results keep input
// order; the first failure cancels the remaining work.
func (p *Pipeline) DetectBatch(ctx context.Context, imgs []image.Image, limit int) ([]*Result, error) {
	results := make([]*Result, len(imgs))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, img := range imgs {
		i, img := i, img
		g.Go(func() error {
			res, err := p.Detect(ctx, img)
			if err != nil {
				return errors.Wrapf(err, "image %d", i)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
