package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/teslashibe/go-lpr/internal/log"
	"github.com/teslashibe/go-lpr/pkg/plate"
)

// Engine tries its backends in order until one yields a non-empty
// normalized plate. Backends are never raced; a failing backend is logged
// and the next one is tried.
type Engine struct {
	backends []Recognizer
	logger   *slog.Logger
}

// NewEngine creates an engine over the given backends, in priority order.
// Nil backends are skipped. An engine without backends is valid and never
// finds a plate.
func NewEngine(logger *slog.Logger, backends ...Recognizer) *Engine {
	e := &Engine{
		logger: log.Component(logger, "ocr.engine"),
	}
	for _, b := range backends {
		if b != nil {
			e.backends = append(e.backends, b)
		}
	}
	if len(e.backends) == 0 {
		e.logger.Warn("no recognition backends available, plates will never be read")
	}
	return e
}

// Recognize reads the plate in region.
//
// Backend failures never surface here. The returned error is non-nil only
// when ctx is done.
func (e *Engine) Recognize(ctx context.Context, region image.Image) (Result, error) {
	if region == nil || region.Bounds().Empty() {
		return Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	for i, b := range e.backends {
		fragments, err := e.read(ctx, b, region)
		if err != nil {
			e.logger.Warn("backend failed, trying next",
				"backend", b.Name(),
				"backend_index", i,
				"error", err,
			)
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			continue
		}

		text := plate.Join(fragments)
		if text == "" {
			continue
		}

		e.logger.Debug("plate read",
			"backend", b.Name(),
			"backend_index", i,
			"plate", text,
		)
		return Result{Plate: text, Backend: b.Name()}, nil
	}

	return Result{}, nil
}

// read invokes one backend, converting a panic into a BackendError.
func (e *Engine) read(ctx context.Context, b Recognizer, region image.Image) (fragments []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = WrapError(b.Name(), fmt.Errorf("panic: %v", r))
		}
	}()

	fragments, err = b.Read(ctx, region)
	if err != nil {
		return nil, WrapError(b.Name(), err)
	}
	return fragments, nil
}

// Backends returns the names of the enabled backends, in order.
func (e *Engine) Backends() []string {
	names := make([]string, len(e.backends))
	for i, b := range e.backends {
		names[i] = b.Name()
	}
	return names
}

// Close closes all backends.
func (e *Engine) Close() error {
	var lastErr error
	for _, b := range e.backends {
		if err := b.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
