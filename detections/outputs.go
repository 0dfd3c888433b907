package detections

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrShapeMismatch is returned when output tensor geometry, or an index
// into it, does not match the boxes/scores/selected contract.
var ErrShapeMismatch = errors.New("output shape mismatch")

// RawOutputs carries the three parallel outputs of a detection graph whose
// final layer already performed thresholding and non-maximum suppression.
type RawOutputs struct {
	// Boxes holds candidate coordinates, float32 shape (batch, N, 4) with
	// the last axis ordered (ymin, xmin, ymax, xmax) in canvas pixels.
	Boxes *tensor.Dense
	// Scores holds per-class confidences, float32 shape (batch, C, N).
	Scores *tensor.Dense
	// Selected holds the surviving (batch, class, candidate) triples in
	// the exact order the graph emitted them.
	Selected []Triple
}

// ParseSelected converts a flat selected_indices tensor into triples. The
// graph emits (K, 3) rows; some exports add a leading batch axis (1, K, 3).
// Negative indices, including the -1 padding rows some NMS exports emit,
// are rejected: decode has no filtering, so a padded row cannot be skipped.
func ParseSelected(data []int32, dims []int) ([]Triple, error) {
	switch {
	case len(dims) == 3 && dims[0] == 1:
		dims = dims[1:]
	case len(dims) == 2:
	default:
		return nil, errors.Wrapf(ErrShapeMismatch, "selected indices shape %v, want (K, 3)", dims)
	}
	if dims[1] != 3 {
		return nil, errors.Wrapf(ErrShapeMismatch, "selected indices row width %d, want 3", dims[1])
	}
	k := dims[0]
	if len(data) != k*3 {
		return nil, errors.Wrapf(ErrShapeMismatch, "selected indices carry %d values for %d rows", len(data), k)
	}

	out := make([]Triple, k)
	for i := 0; i < k; i++ {
		b, cls, cand := data[i*3], data[i*3+1], data[i*3+2]
		if b < 0 || cls < 0 || cand < 0 {
			return nil, errors.Wrapf(ErrShapeMismatch, "selected row %d holds negative index (%d, %d, %d)", i, b, cls, cand)
		}
		out[i] = Triple{Batch: int(b), Class: int(cls), Candidate: int(cand)}
	}
	return out, nil
}

// Validate checks tensor geometry against the output contract so that later
// gathers only ever fail on individual coordinates.
func (r RawOutputs) Validate() error {
	if r.Boxes == nil || r.Scores == nil {
		return errors.Wrap(ErrShapeMismatch, "missing output tensor")
	}
	bs := r.Boxes.Shape()
	if len(bs) != 3 || bs[2] != 4 {
		return errors.Wrapf(ErrShapeMismatch, "boxes shape %v, want (batch, candidates, 4)", bs)
	}
	ss := r.Scores.Shape()
	if len(ss) != 3 {
		return errors.Wrapf(ErrShapeMismatch, "scores shape %v, want (batch, classes, candidates)", ss)
	}
	if bs[0] != ss[0] {
		return errors.Wrapf(ErrShapeMismatch, "batch axes disagree: boxes %d, scores %d", bs[0], ss[0])
	}
	if bs[1] != ss[2] {
		return errors.Wrapf(ErrShapeMismatch, "candidate axes disagree: boxes %d, scores %d", bs[1], ss[2])
	}
	return nil
}

func (r RawOutputs) scoreAt(t Triple) (float32, error) {
	// Dense.At checks only the upper bound; a negative coordinate panics
	// in the backing array's offset math.
	if t.Batch < 0 || t.Class < 0 || t.Candidate < 0 {
		return 0, errors.Wrapf(ErrShapeMismatch, "scores[%d, %d, %d]: negative index", t.Batch, t.Class, t.Candidate)
	}
	v, err := r.Scores.At(t.Batch, t.Class, t.Candidate)
	if err != nil {
		return 0, errors.Wrapf(ErrShapeMismatch, "scores[%d, %d, %d]: %v", t.Batch, t.Class, t.Candidate, err)
	}
	s, ok := v.(float32)
	if !ok {
		return 0, errors.Wrapf(ErrShapeMismatch, "scores dtype %T, want float32", v)
	}
	return s, nil
}

func (r RawOutputs) boxAt(t Triple) (Box, error) {
	if t.Batch < 0 || t.Candidate < 0 {
		return Box{}, errors.Wrapf(ErrShapeMismatch, "boxes[%d, %d]: negative index", t.Batch, t.Candidate)
	}
	var coords [4]float32
	for k := 0; k < 4; k++ {
		v, err := r.Boxes.At(t.Batch, t.Candidate, k)
		if err != nil {
			return Box{}, errors.Wrapf(ErrShapeMismatch, "boxes[%d, %d, %d]: %v", t.Batch, t.Candidate, k, err)
		}
		c, ok := v.(float32)
		if !ok {
			return Box{}, errors.Wrapf(ErrShapeMismatch, "boxes dtype %T, want float32", v)
		}
		coords[k] = c
	}
	return Box{YMin: coords[0], XMin: coords[1], YMax: coords[2], XMax: coords[3]}, nil
}
