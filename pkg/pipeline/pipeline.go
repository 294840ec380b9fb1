// Package pipeline turns a frame into recognized plates and drives the gate
// for each one.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/teslashibe/go-lpr/internal/log"
	"github.com/teslashibe/go-lpr/pkg/access"
	"github.com/teslashibe/go-lpr/pkg/actuator"
	"github.com/teslashibe/go-lpr/pkg/detection"
	"github.com/teslashibe/go-lpr/pkg/ocr"
)

// Capabilities are the components discovered at startup. Any of them may
// be absent; the pipeline degrades instead of failing.
type Capabilities struct {
	Detector detection.Detector
	Backends []ocr.Recognizer
	Store    access.Store
	Actuator actuator.Actuator
}

// PlateDetection is one recognized plate and where it was found.
type PlateDetection struct {
	Plate string
	Box   detection.BoundingBox
}

// MarshalJSON encodes the box as [x1, y1, x2, y2].
func (d PlateDetection) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Plate string `json:"plate"`
		Box   [4]int `json:"box"`
	}{
		Plate: d.Plate,
		Box:   [4]int{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2},
	})
}

// Frame is the result of processing one image.
type Frame struct {
	ID         string
	Detections []PlateDetection
}

// Pipeline runs detection, recognition and gate evaluation in sequence.
// It is not safe for concurrent use; submit one frame at a time.
type Pipeline struct {
	caps    Capabilities
	adapter *detection.Adapter
	engine  *ocr.Engine
	gate    *access.Gate
	logger  *slog.Logger
}

// New wires the capabilities together. A nil logger uses the global logger.
func New(caps Capabilities, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = log.L()
	}
	return &Pipeline{
		caps:    caps,
		adapter: detection.NewAdapter(caps.Detector, logger),
		engine:  ocr.NewEngine(logger, caps.Backends...),
		gate:    access.NewGate(caps.Store, caps.Actuator, logger),
		logger:  log.Component(logger, "pipeline"),
	}
}

// Process returns the plates read from frame in detection order.
// It never returns nil.
func (p *Pipeline) Process(ctx context.Context, frame image.Image) []PlateDetection {
	return p.ProcessFrame(ctx, frame).Detections
}

// ProcessFrame is Process plus the frame ID used in the log records.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame image.Image) Frame {
	out := Frame{ID: uuid.NewString(), Detections: []PlateDetection{}}
	if frame == nil {
		return out
	}
	logger := p.logger.With("frame_id", out.ID)

	boxes := p.adapter.Detect(ctx, frame)
	logger.Debug("plates located", "count", len(boxes))

	for i, box := range boxes {
		if err := ctx.Err(); err != nil {
			logger.Debug("frame abandoned", "remaining", len(boxes)-i, "error", err)
			break
		}

		region := detection.Crop(frame, box)
		if detection.IsEmpty(region) {
			continue
		}

		res, err := p.engine.Recognize(ctx, region)
		if err != nil {
			logger.Warn("recognition failed", "box_index", i, "box", box.String(), "error", err)
			continue
		}
		if !res.Found() {
			logger.Debug("no plate read", "box_index", i, "box", box.String())
			continue
		}

		out.Detections = append(out.Detections, PlateDetection{Plate: res.Plate, Box: box})
		logger.Info("plate recognized",
			"plate", res.Plate,
			"backend", res.Backend,
			"box", box.String(),
		)

		outcome := p.gate.EvaluateAndActuate(ctx, res.Plate)
		logger.Debug("gate evaluated", "plate", res.Plate, "outcome", outcome.String())
	}

	return out
}

// Backends returns the recognition backends in the order they are tried.
func (p *Pipeline) Backends() []string {
	return p.engine.Backends()
}

// Close releases every capability. Stores are closed when they hold
// resources.
func (p *Pipeline) Close() error {
	var errs []error
	if p.caps.Detector != nil {
		errs = append(errs, p.caps.Detector.Close())
	}
	errs = append(errs, p.engine.Close())
	if p.caps.Actuator != nil {
		errs = append(errs, p.caps.Actuator.Close())
	}
	if c, ok := p.caps.Store.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
