package detection

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/teslashibe/go-lpr/internal/log"
)

// Adapter wraps a Detector and guarantees that every returned box lies
// inside the frame and has a positive area. Detector faults never escape:
// a failing frame simply yields no boxes.
type Adapter struct {
	detector Detector
	logger   *slog.Logger
}

// NewAdapter creates an adapter around d. A nil logger uses the global one.
func NewAdapter(d Detector, logger *slog.Logger) *Adapter {
	return &Adapter{
		detector: d,
		logger:   log.Component(logger, "detection.adapter"),
	}
}

// Detect runs the detector once and returns the clamped, non-degenerate
// boxes in the order the detector produced them.
func (a *Adapter) Detect(ctx context.Context, frame image.Image) []BoundingBox {
	if IsEmpty(frame) {
		return []BoundingBox{}
	}
	if a.detector == nil {
		a.logger.Debug("no detector configured")
		return []BoundingBox{}
	}

	raw, err := a.callDetector(ctx, frame)
	if err != nil {
		a.logger.Error("detector failed", "error", err)
		return []BoundingBox{}
	}

	width, height := frame.Bounds().Dx(), frame.Bounds().Dy()
	boxes := make([]BoundingBox, 0, len(raw))
	for _, r := range raw {
		box, ok := Clamp(r, width, height)
		if !ok {
			continue
		}
		boxes = append(boxes, box)
	}

	if dropped := len(raw) - len(boxes); dropped > 0 {
		a.logger.Debug("dropped degenerate boxes", "dropped", dropped, "kept", len(boxes))
	}
	return boxes
}

func (a *Adapter) callDetector(ctx context.Context, frame image.Image) (boxes []RawBox, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return a.detector.Detect(ctx, frame)
}

// Clamp converts r to pixel coordinates inside a width x height frame.
// Coordinates are floored to integers, then clamped to [0, width] and
// [0, height]. ok is false when the clamped box has no area.
func Clamp(r RawBox, width, height int) (box BoundingBox, ok bool) {
	x1, y1, x2, y2 := r.X1, r.Y1, r.X2, r.Y2
	if r.Normalized {
		x1 *= float64(width)
		x2 *= float64(width)
		y1 *= float64(height)
		y2 *= float64(height)
	}

	box = BoundingBox{
		X1: max(0, toInt(x1)),
		Y1: max(0, toInt(y1)),
		X2: min(width, toInt(x2)),
		Y2: min(height, toInt(y2)),
	}
	if box.X2 <= box.X1 || box.Y2 <= box.Y1 {
		return BoundingBox{}, false
	}
	return box, true
}

// toInt floors v, saturating at the int range and mapping NaN to 0.
func toInt(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int(math.Floor(v))
}
