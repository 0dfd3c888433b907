package classes

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCOCOTable verifies the built-in table carries the full 80-class list
// in model output order.
func TestCOCOTable(t *testing.T) {
	table := COCO()

	assert.Equal(t, 80, table.Len(), "COCO table should have 80 classes")

	first, err := table.Name(0)
	require.NoError(t, err)
	assert.Equal(t, "person", first, "index 0 should be person")

	cat, err := table.Name(15)
	require.NoError(t, err)
	assert.Equal(t, "cat", cat, "index 15 should be cat")

	last, err := table.Name(79)
	require.NoError(t, err)
	assert.Equal(t, "toothbrush", last, "index 79 should be toothbrush")
}

// TestTableNameOutOfRange verifies that lookups past the table fail with
// ErrOutOfRange rather than returning a placeholder.
func TestTableNameOutOfRange(t *testing.T) {
	table := COCO()

	tests := []struct {
		name string
		idx  int
	}{
		{"negative index", -1},
		{"one past end", 80},
		{"far past end", 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, err := table.Name(tt.idx)
			require.Error(t, err, "lookup should fail")
			assert.True(t, errors.Is(err, ErrOutOfRange), "error should wrap ErrOutOfRange")
			assert.Empty(t, label, "no label should be returned on failure")
		})
	}
}

func TestTableIndex(t *testing.T) {
	table := NewTable([]string{"drone", "bird", "balloon"})

	idx, err := table.Index("bird")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = table.Index("plane")
	assert.Error(t, err, "unknown label should fail")
}

// TestTableIsolation verifies that mutating inputs or outputs does not leak
// into the table.
func TestTableIsolation(t *testing.T) {
	src := []string{"a", "b"}
	table := NewTable(src)
	src[0] = "mutated"

	name, err := table.Name(0)
	require.NoError(t, err)
	assert.Equal(t, "a", name, "table should copy the input slice")

	out := table.Labels()
	out[1] = "mutated"
	name, err = table.Name(1)
	require.NoError(t, err)
	assert.Equal(t, "b", name, "Labels should return a copy")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "labels.txt")
		require.NoError(t, os.WriteFile(path, []byte("car\ntruck\n\nbus\n"), 0o644))

		table, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 3, table.Len(), "blank lines should be skipped")
		assert.Equal(t, []string{"car", "truck", "bus"}, table.Labels())
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.txt")
		require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0o644))

		_, err := Load(path)
		assert.Error(t, err, "a file with no labels should fail")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.txt"))
		assert.Error(t, err)
	})
}
