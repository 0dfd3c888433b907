package detections

import (
	"github.com/pkg/errors"

	"github.com/argus-vision/go-detect/classes"
)

// Decode maps the graph's selected triples back through the scores and
// boxes tensors, attaching labels from the table.
//
// The graph already thresholded, suppressed and ordered its candidates, so
// no filtering or re-sorting happens here: the result has exactly one entry
// per selected triple, in arrival order. Any bad index fails the whole call
// with no partial output.
//
// Arguments:
// - raw: the three parallel engine outputs.
// - labels: class table matching the model's class axis.
//
// Returns:
// - []Detection: one entry per selected triple, order preserved.
// - error: ErrShapeMismatch or classes.ErrOutOfRange, wrapped with the
//   offending row.
func Decode(raw RawOutputs, labels *classes.Table) ([]Detection, error) {
	if labels == nil {
		return nil, errors.New("nil label table")
	}
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	out := make([]Detection, 0, len(raw.Selected))
	for i, sel := range raw.Selected {
		label, err := labels.Name(sel.Class)
		if err != nil {
			return nil, errors.Wrapf(err, "selected row %d", i)
		}
		score, err := raw.scoreAt(sel)
		if err != nil {
			return nil, errors.Wrapf(err, "selected row %d", i)
		}
		box, err := raw.boxAt(sel)
		if err != nil {
			return nil, errors.Wrapf(err, "selected row %d", i)
		}
		out = append(out, Detection{Label: label, Score: score, Box: box})
	}
	return out, nil
}
