// Package inference - the model runtime boundary and the end-to-end
// detection pipeline built around it.
package inference

import (
	"context"

	"gorgonia.org/tensor"

	"github.com/argus-vision/go-detect/detections"
)

// Engine abstracts the model runtime. Implementations consume the
// letterboxed canvas tensor and return the three parallel output tensors.
// Candidate selection (thresholding and non-maximum suppression) happens
// inside the graph, never on this side of the boundary.
type Engine interface {
	// Infer runs one (1, 3, h, w) canvas through the model.
	Infer(ctx context.Context, canvas *tensor.Dense) (detections.RawOutputs, error)
	// Close releases runtime resources.
	Close() error
}
