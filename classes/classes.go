// Package classes - ordered label tables mapping model class indices to
// human-readable names.
package classes

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ErrOutOfRange is returned when a class index falls outside the table.
var ErrOutOfRange = errors.New("class index out of range")

// Table is an immutable ordered list of detection labels. Positions follow
// the model's output head, so order is part of the contract.
type Table struct {
	labels    []string
	nameToIdx map[string]int
}

// NewTable builds a table from labels in model output order.
func NewTable(labels []string) *Table {
	t := &Table{
		labels:    make([]string, len(labels)),
		nameToIdx: make(map[string]int, len(labels)),
	}
	copy(t.labels, labels)
	for i, name := range t.labels {
		t.nameToIdx[name] = i
	}
	return t
}

// Load reads a newline-delimited label file, one label per line in model
// output order. Blank lines are skipped.
//
// Arguments:
// - path: label file location.
//
// Returns:
// - *Table: the table built from the file contents.
// - error: open/scan failures, or an empty file.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open label file")
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan label file")
	}
	if len(labels) == 0 {
		return nil, errors.Errorf("label file %s contains no labels", path)
	}
	return NewTable(labels), nil
}

// Name returns the label at idx.
func (t *Table) Name(idx int) (string, error) {
	if idx < 0 || idx >= len(t.labels) {
		return "", errors.Wrapf(ErrOutOfRange, "index %d with %d classes", idx, len(t.labels))
	}
	return t.labels[idx], nil
}

// Index returns the position of name within the table.
func (t *Table) Index(name string) (int, error) {
	idx, ok := t.nameToIdx[name]
	if !ok {
		return -1, errors.Errorf("label %q not in table", name)
	}
	return idx, nil
}

// Len returns the number of labels.
func (t *Table) Len() int {
	return len(t.labels)
}

// Labels returns a copy of the ordered label list.
func (t *Table) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// COCO returns the 80-class table used by the YOLOv3 family. Index 0 is
// "person"; there is no background entry.
func COCO() *Table {
	return NewTable(cocoLabels)
}

var cocoLabels = []string{
	"person",
	"bicycle",
	"car",
	"motorcycle",
	"airplane",
	"bus",
	"train",
	"truck",
	"boat",
	"traffic light",
	"fire hydrant",
	"stop sign",
	"parking meter",
	"bench",
	"bird",
	"cat",
	"dog",
	"horse",
	"sheep",
	"cow",
	"elephant",
	"bear",
	"zebra",
	"giraffe",
	"backpack",
	"umbrella",
	"handbag",
	"tie",
	"suitcase",
	"frisbee",
	"skis",
	"snowboard",
	"sports ball",
	"kite",
	"baseball bat",
	"baseball glove",
	"skateboard",
	"surfboard",
	"tennis racket",
	"bottle",
	"wine glass",
	"cup",
	"fork",
	"knife",
	"spoon",
	"bowl",
	"banana",
	"apple",
	"sandwich",
	"orange",
	"broccoli",
	"carrot",
	"hot dog",
	"pizza",
	"donut",
	"cake",
	"chair",
	"couch",
	"potted plant",
	"bed",
	"dining table",
	"toilet",
	"tv",
	"laptop",
	"mouse",
	"remote",
	"keyboard",
	"cell phone",
	"microwave",
	"oven",
	"toaster",
	"sink",
	"refrigerator",
	"book",
	"clock",
	"vase",
	"scissors",
	"teddy bear",
	"hair drier",
	"toothbrush",
}
