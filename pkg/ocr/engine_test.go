package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"strings"
	"testing"
)

func region(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestEngine_PrimaryWins(t *testing.T) {
	primary := NewMock("crnn", "34", " abc ", "123")
	secondary := NewMock("tesseract", "99ZZZ99")

	logger, _ := bufferLogger()
	e := NewEngine(logger, primary, secondary)

	res, err := e.Recognize(context.Background(), region(120, 30))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Plate != "34ABC123" {
		t.Errorf("Plate = %q, want %q", res.Plate, "34ABC123")
	}
	if res.Backend != "crnn" {
		t.Errorf("Backend = %q, want crnn", res.Backend)
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary should not run when primary succeeds, ran %d times", secondary.CallCount())
	}
}

func TestEngine_FallbackOnPrimaryError(t *testing.T) {
	primary := WithError("crnn", errors.New("net forward failed"))
	secondary := NewMock("tesseract", "34 ABC 123")

	logger, buf := bufferLogger()
	e := NewEngine(logger, primary, secondary)

	res, err := e.Recognize(context.Background(), region(120, 30))
	if err != nil {
		t.Fatalf("primary failure must not propagate: %v", err)
	}
	if res.Plate != "34ABC123" {
		t.Errorf("Plate = %q, want %q", res.Plate, "34ABC123")
	}
	if res.Backend != "tesseract" {
		t.Errorf("Backend = %q, want tesseract", res.Backend)
	}
	if primary.CallCount() != 1 {
		t.Errorf("primary called %d times, want 1", primary.CallCount())
	}

	logs := buf.String()
	if !strings.Contains(logs, "backend failed") || !strings.Contains(logs, "net forward failed") {
		t.Errorf("primary failure not logged: %s", logs)
	}
}

func TestEngine_FallbackOnPrimaryPanic(t *testing.T) {
	primary := &Mock{
		NameValue: "crnn",
		ReadFunc: func(ctx context.Context, region image.Image) ([]string, error) {
			panic("nil mat")
		},
	}
	secondary := NewMock("tesseract", "06XYZ99")

	logger, buf := bufferLogger()
	e := NewEngine(logger, primary, secondary)

	res, err := e.Recognize(context.Background(), region(120, 30))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Plate != "06XYZ99" {
		t.Errorf("Plate = %q, want 06XYZ99", res.Plate)
	}
	if !strings.Contains(buf.String(), "panic") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestEngine_FallbackOnEmptyNormalized(t *testing.T) {
	// Primary reads only characters that normalize away.
	primary := NewMock("crnn", " .. ", "!!")
	secondary := NewMock("tesseract", "06xyz99")

	e := NewEngine(nil, primary, secondary)
	res, err := e.Recognize(context.Background(), region(120, 30))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Plate != "06XYZ99" || res.Backend != "tesseract" {
		t.Errorf("got %+v, want 06XYZ99 from tesseract", res)
	}
}

func TestEngine_NothingLegible(t *testing.T) {
	primary := NewMock("crnn")
	secondary := NewMock("tesseract", "   ")

	e := NewEngine(nil, primary, secondary)
	res, err := e.Recognize(context.Background(), region(120, 30))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Found() {
		t.Errorf("expected no plate, got %+v", res)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Errorf("each backend should run once, got %d and %d", primary.CallCount(), secondary.CallCount())
	}
}

func TestEngine_NoBackends(t *testing.T) {
	e := NewEngine(nil)

	for _, r := range []image.Image{region(1, 1), region(120, 30), region(640, 480)} {
		res, err := e.Recognize(context.Background(), r)
		if err != nil {
			t.Fatalf("Recognize failed: %v", err)
		}
		if res.Found() {
			t.Errorf("expected no plate without backends, got %+v", res)
		}
	}
	if len(e.Backends()) != 0 {
		t.Errorf("Backends = %v, want none", e.Backends())
	}
}

func TestEngine_NilBackendsSkipped(t *testing.T) {
	e := NewEngine(nil, nil, NewMock("tesseract", "AB12"), nil)
	if got := e.Backends(); len(got) != 1 || got[0] != "tesseract" {
		t.Errorf("Backends = %v, want [tesseract]", got)
	}
}

func TestEngine_EmptyRegion(t *testing.T) {
	primary := NewMock("crnn", "AB12")
	e := NewEngine(nil, primary)

	for name, r := range map[string]image.Image{
		"nil":       nil,
		"zero area": region(0, 0),
		"zero wide": region(0, 30),
	} {
		t.Run(name, func(t *testing.T) {
			res, err := e.Recognize(context.Background(), r)
			if err != nil {
				t.Fatalf("Recognize failed: %v", err)
			}
			if res.Found() {
				t.Errorf("expected no plate, got %+v", res)
			}
		})
	}
	if primary.CallCount() != 0 {
		t.Errorf("backend should not run for empty regions, ran %d times", primary.CallCount())
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &Mock{
		NameValue: "crnn",
		ReadFunc: func(ctx context.Context, region image.Image) ([]string, error) {
			cancel()
			return nil, ctx.Err()
		},
	}
	secondary := NewMock("tesseract", "AB12")

	e := NewEngine(nil, primary, secondary)
	_, err := e.Recognize(ctx, region(100, 20))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if secondary.CallCount() != 0 {
		t.Error("secondary should not run after cancellation")
	}
}

func TestEngine_Close(t *testing.T) {
	closed := 0
	mk := func(err error) *Mock {
		m := NewMock("m")
		m.CloseFunc = func() error {
			closed++
			return err
		}
		return m
	}

	e := NewEngine(nil, mk(nil), mk(errors.New("close failed")))
	if err := e.Close(); err == nil {
		t.Error("expected close error to surface")
	}
	if closed != 2 {
		t.Errorf("closed %d backends, want 2", closed)
	}
}

func TestBackendError(t *testing.T) {
	inner := errors.New("boom")
	err := WrapError("tesseract", inner)

	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %T", err)
	}
	if be.Backend != "tesseract" {
		t.Errorf("Backend = %q", be.Backend)
	}
	if !errors.Is(err, inner) {
		t.Error("BackendError should unwrap to inner error")
	}
	if WrapError("x", nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}
}
