package inference

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/argus-vision/go-detect/detections"
)

// Graph tensor names of the YOLOv3 model zoo export. Other exports of the
// same family rename these, so RuntimeConfig can override each one.
const (
	DefaultImageInput     = "input_1"
	DefaultShapeInput     = "image_shape"
	DefaultBoxesOutput    = "yolonms_layer_1/ExpandDims_1:0"
	DefaultScoresOutput   = "yolonms_layer_1/ExpandDims_3:0"
	DefaultSelectedOutput = "yolonms_layer_1/concat_2:0"
)

// RuntimeConfig configures the ONNX Runtime engine.
type RuntimeConfig struct {
	// ModelPath is the .onnx file to load.
	ModelPath string
	// LibraryPath points at the onnxruntime shared library. Empty keeps
	// the process-wide default.
	LibraryPath string
	// Input tensor names. Empty fields select the model zoo defaults.
	ImageInput string
	ShapeInput string
	// Output tensor names. Empty fields select the model zoo defaults.
	BoxesOutput    string
	ScoresOutput   string
	SelectedOutput string
	// Thread counts for the runtime's own pools. Zero keeps the runtime
	// default.
	IntraOpThreads int
	InterOpThreads int
	// Provider selects the execution provider. Empty selects the CPU
	// provider.
	Provider Provider
	// DeviceID picks the accelerator device for providers that support
	// more than one.
	DeviceID int
}

// withDefaults fills empty tensor names with the model zoo contract and
// selects the CPU provider when none is set.
func (c RuntimeConfig) withDefaults() RuntimeConfig {
	if c.ImageInput == "" {
		c.ImageInput = DefaultImageInput
	}
	if c.ShapeInput == "" {
		c.ShapeInput = DefaultShapeInput
	}
	if c.BoxesOutput == "" {
		c.BoxesOutput = DefaultBoxesOutput
	}
	if c.ScoresOutput == "" {
		c.ScoresOutput = DefaultScoresOutput
	}
	if c.SelectedOutput == "" {
		c.SelectedOutput = DefaultSelectedOutput
	}
	if c.Provider == "" {
		c.Provider = ProviderCPU
	}
	return c
}

// Runtime runs detection models through ONNX Runtime. One Runtime owns one
// session; Infer calls are serialized internally, so a Runtime may be
// shared across goroutines.
type Runtime struct {
	cfg     RuntimeConfig
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
}

// initEnvironment brings up the process-wide runtime once. The shared
// library path must be set before the first initialization.
func initEnvironment(libraryPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	return errors.Wrap(ort.InitializeEnvironment(), "initialize onnxruntime")
}

// NewRuntime loads the model and prepares a session bound to the configured
// input and output names.
//
// Arguments:
// - cfg: runtime configuration; ModelPath is required.
//
// Returns:
// - *Runtime: the ready engine.
// - error: environment, option or session construction failures.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path required")
	}
	cfg = cfg.withDefaults()

	provider, err := ParseProvider(string(cfg.Provider))
	if err != nil {
		return nil, err
	}
	cfg.Provider = provider

	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "create session options")
	}
	defer opts.Destroy()

	if cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, errors.Wrap(err, "set intra-op threads")
		}
	}
	if cfg.InterOpThreads > 0 {
		if err := opts.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
			return nil, errors.Wrap(err, "set inter-op threads")
		}
	}
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return nil, errors.Wrap(err, "set optimization level")
	}
	if err := applyProvider(opts, cfg); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.ImageInput, cfg.ShapeInput},
		[]string{cfg.BoxesOutput, cfg.ScoresOutput, cfg.SelectedOutput},
		opts,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "load model %s", cfg.ModelPath)
	}

	return &Runtime{cfg: cfg, session: session}, nil
}

// Infer feeds the canvas plus its (height, width) row through the graph and
// converts the three outputs into RawOutputs. Runtime buffers are copied
// out and destroyed before returning, so the result owns its data.
func (r *Runtime) Infer(ctx context.Context, canvas *tensor.Dense) (detections.RawOutputs, error) {
	var raw detections.RawOutputs

	if canvas == nil {
		return raw, errors.New("nil canvas tensor")
	}
	if err := ctx.Err(); err != nil {
		return raw, err
	}
	shape := canvas.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 {
		return raw, errors.Wrapf(detections.ErrShapeMismatch, "canvas shape %v, want (1, 3, h, w)", shape)
	}
	data, ok := canvas.Data().([]float32)
	if !ok {
		return raw, errors.Wrapf(detections.ErrShapeMismatch, "canvas dtype %v, want float32", canvas.Dtype())
	}
	h, w := shape[2], shape[3]

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(h), int64(w)), data)
	if err != nil {
		return raw, errors.Wrap(err, "create image tensor")
	}
	defer input.Destroy()

	shapeRow, err := ort.NewTensor(ort.NewShape(1, 2), []float32{float32(h), float32(w)})
	if err != nil {
		return raw, errors.Wrap(err, "create shape tensor")
	}
	defer shapeRow.Destroy()

	outputs := make([]ort.Value, 3)
	r.mu.Lock()
	if r.session == nil {
		r.mu.Unlock()
		return raw, errors.New("runtime closed")
	}
	err = r.session.Run([]ort.Value{input, shapeRow}, outputs)
	r.mu.Unlock()
	if err != nil {
		return raw, errors.Wrap(err, "run session")
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	boxes, err := denseFromValue(outputs[0])
	if err != nil {
		return raw, errors.Wrapf(err, "output %s", r.cfg.BoxesOutput)
	}
	scores, err := denseFromValue(outputs[1])
	if err != nil {
		return raw, errors.Wrapf(err, "output %s", r.cfg.ScoresOutput)
	}
	selected, err := selectedFromValue(outputs[2])
	if err != nil {
		return raw, errors.Wrapf(err, "output %s", r.cfg.SelectedOutput)
	}

	raw = detections.RawOutputs{Boxes: boxes, Scores: scores, Selected: selected}
	if err := raw.Validate(); err != nil {
		return detections.RawOutputs{}, err
	}
	return raw, nil
}

// Close destroys the session. The process-wide runtime environment stays up
// for other sessions.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	err := r.session.Destroy()
	r.session = nil
	return errors.Wrap(err, "destroy session")
}

// denseFromValue copies a float32 runtime tensor into a dense tensor the
// decoder can index safely after the runtime buffer is destroyed.
func denseFromValue(v ort.Value) (*tensor.Dense, error) {
	t, ok := v.(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Wrapf(detections.ErrShapeMismatch, "output type %T, want float32 tensor", v)
	}
	dims := t.GetShape()
	shape := make([]int, len(dims))
	size := 1
	for i, d := range dims {
		shape[i] = int(d)
		size *= int(d)
	}
	data := make([]float32, size)
	copy(data, t.GetData())
	return tensor.New(
		tensor.WithShape(shape...),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(data),
	), nil
}

// selectedFromValue converts the selected_indices output, which different
// exports emit as int32 or int64, into decoder triples.
func selectedFromValue(v ort.Value) ([]detections.Triple, error) {
	switch t := v.(type) {
	case *ort.Tensor[int32]:
		return detections.ParseSelected(t.GetData(), intDims(t.GetShape()))
	case *ort.Tensor[int64]:
		data := t.GetData()
		narrowed := make([]int32, len(data))
		for i, d := range data {
			narrowed[i] = int32(d)
		}
		return detections.ParseSelected(narrowed, intDims(t.GetShape()))
	}
	return nil, errors.Wrapf(detections.ErrShapeMismatch, "selected indices type %T, want int32 or int64 tensor", v)
}

func intDims(dims ort.Shape) []int {
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = int(d)
	}
	return out
}
