// Package detection locates plate regions in a frame and turns detector
// output into pixel boxes that are safe to crop.
package detection

import (
	"context"
	"fmt"
	"image"
	"image/draw"
)

// RawBox is a region as reported by a detector backend.
// Coordinates are pixels unless Normalized is set, in which case they are
// fractions (0-1) of the frame width and height.
type RawBox struct {
	X1, Y1, X2, Y2 float64
	Confidence     float64
	Normalized     bool
}

// BoundingBox is a clamped pixel region, relative to the frame origin.
// Invariant: 0 <= X1 < X2 <= width and 0 <= Y1 < Y2 <= height.
type BoundingBox struct {
	X1, Y1, X2, Y2 int
}

// Width returns the box width in pixels.
func (b BoundingBox) Width() int { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// Area returns the box area in pixels.
func (b BoundingBox) Area() int {
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return 0
	}
	return b.Width() * b.Height()
}

// Rect returns the box as an image.Rectangle offset by origin.
func (b BoundingBox) Rect(origin image.Point) image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2).Add(origin)
}

// String implements fmt.Stringer.
func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", b.X1, b.Y1, b.X2, b.Y2)
}

// Detector is the interface for plate detection backends.
type Detector interface {
	// Detect finds plate candidates in the frame.
	Detect(ctx context.Context, frame image.Image) ([]RawBox, error)

	// Close releases resources
	Close() error
}

// Crop returns the part of frame covered by box. The result shares pixels
// with frame when the image type supports SubImage, otherwise it is a copy.
// An empty image is returned when the box misses the frame entirely.
func Crop(frame image.Image, box BoundingBox) image.Image {
	bounds := frame.Bounds()
	rect := box.Rect(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return image.NewRGBA(image.Rectangle{})
	}

	if sub, ok := frame.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), frame, rect.Min, draw.Src)
	return dst
}

// IsEmpty reports whether img is nil or has no pixels.
func IsEmpty(img image.Image) bool {
	if img == nil {
		return true
	}
	return img.Bounds().Empty()
}
