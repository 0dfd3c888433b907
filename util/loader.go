// Package util - filesystem helpers for the detect tooling.
package util

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	// Register decoders for the formats batch runs accept.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageFile pairs a decoded image with its source path.
type ImageFile struct {
	// Path is the file the image came from.
	Path string
	// Image is the decoded image.
	Image image.Image
}

// imageExts are the extensions LoadDirectoryImages considers.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

// LoadImage decodes a single image file.
func LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}

// LoadDirectoryImages decodes every supported image directly under dir,
// sorted by file name so batch runs are deterministic. Unsupported
// extensions are skipped, undecodable images fail the whole load.
//
// Arguments:
// - dir: directory containing image files.
//
// Returns:
// - []ImageFile: decoded images in name order.
// - error: directory read or decode failures.
func LoadDirectoryImages(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		img, err := LoadImage(path)
		if err != nil {
			return nil, err
		}
		files = append(files, ImageFile{Path: path, Image: img})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}
