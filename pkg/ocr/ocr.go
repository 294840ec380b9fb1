// Package ocr reads plate text from cropped regions by trying an ordered
// list of recognition backends until one produces a legible plate.
//
// Backends implement Recognizer. Each backend owns its own preprocessing:
// a neural reader may want full color input while a classical engine wants
// a binarized, upscaled image. The Engine only sequences them and turns the
// raw fragments into canonical plate strings.
package ocr

import (
	"context"
	"image"
)

// Recognizer is a single text-recognition backend.
type Recognizer interface {
	// Name identifies the backend in logs and results.
	Name() string

	// Read returns the text fragments found in region, in reading order.
	// An empty slice means nothing legible was found.
	Read(ctx context.Context, region image.Image) ([]string, error)

	// Close releases resources
	Close() error
}

// Result is the outcome of a recognition attempt.
// An empty Plate means no legible plate was found; that is not an error.
type Result struct {
	Plate   string
	Backend string
}

// Found reports whether a plate was read.
func (r Result) Found() bool {
	return r.Plate != ""
}
