// Package detections - data model and decoder for the raw tensors a
// detection graph emits after its built-in candidate selection.
package detections

// Box is an axis-aligned box in canvas pixel coordinates. Field order
// mirrors the model output layout: (ymin, xmin, ymax, xmax).
type Box struct {
	YMin float32 `json:"ymin" yaml:"ymin"`
	XMin float32 `json:"xmin" yaml:"xmin"`
	YMax float32 `json:"ymax" yaml:"ymax"`
	XMax float32 `json:"xmax" yaml:"xmax"`
}

// Detection is one decoded detection, ready for rendering or reporting.
type Detection struct {
	Label string  `json:"label" yaml:"label"`
	Score float32 `json:"score" yaml:"score"`
	Box   Box     `json:"box" yaml:"box"`
}

// Triple addresses one surviving candidate by its positions within the
// scores and boxes tensors.
type Triple struct {
	Batch     int
	Class     int
	Candidate int
}
