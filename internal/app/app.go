// Package app discovers the capabilities available on this host and wires
// them into a pipeline.
//
// Discovery never fails outright. A capability that cannot be built (model
// missing, OCR engine not installed, database unreachable, no GPIO) is
// logged and left out, and the pipeline runs in the corresponding degraded
// mode.
package app

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/teslashibe/go-lpr/internal/config"
	"github.com/teslashibe/go-lpr/internal/log"
	"github.com/teslashibe/go-lpr/pkg/access"
	"github.com/teslashibe/go-lpr/pkg/actuator"
	"github.com/teslashibe/go-lpr/pkg/detection"
	"github.com/teslashibe/go-lpr/pkg/detection/yolo"
	"github.com/teslashibe/go-lpr/pkg/imgproc"
	"github.com/teslashibe/go-lpr/pkg/ocr"
	"github.com/teslashibe/go-lpr/pkg/ocr/crnn"
	"github.com/teslashibe/go-lpr/pkg/ocr/tesseract"
	"github.com/teslashibe/go-lpr/pkg/pipeline"
	"github.com/teslashibe/go-lpr/pkg/plate"
)

// Degradation is a capability that could not be enabled.
type Degradation struct {
	Capability string
	Err        error
}

func (d Degradation) String() string {
	return fmt.Sprintf("%s: %v", d.Capability, d.Err)
}

// App owns the pipeline and the resources behind it.
type App struct {
	config   *config.Config
	pipeline *pipeline.Pipeline
	store    access.Store
	degraded []Degradation
	logger   *slog.Logger
}

// New runs capability discovery for cfg and builds the pipeline.
// A nil logger uses the global logger.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = log.L()
	}
	a := &App{
		config: cfg,
		logger: log.Component(logger, "app"),
	}

	caps := pipeline.Capabilities{
		Detector: a.initDetector(),
		Backends: a.initBackends(),
		Store:    a.initStore(ctx),
		Actuator: a.initActuator(),
	}
	a.store = caps.Store
	a.pipeline = pipeline.New(caps, logger)

	a.logger.Info("capabilities discovered",
		"detector", caps.Detector != nil,
		"backends", a.pipeline.Backends(),
		"store", a.storeKind(caps.Store),
		"actuator", a.actuatorKind(caps.Actuator),
		"degraded", len(a.degraded),
	)
	return a
}

// Pipeline returns the wired pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Degraded lists the capabilities that were left out.
func (a *App) Degraded() []Degradation {
	return a.degraded
}

// ProcessFile reads an image file and runs it through the pipeline.
func (a *App) ProcessFile(ctx context.Context, path string) (pipeline.Frame, error) {
	img, err := imgproc.ReadImage(path)
	if err != nil {
		return pipeline.Frame{}, err
	}
	return a.ProcessImage(ctx, img), nil
}

// ProcessImage runs one frame through the pipeline.
func (a *App) ProcessImage(ctx context.Context, img image.Image) pipeline.Frame {
	return a.pipeline.ProcessFrame(ctx, img)
}

// allowlistWriter is implemented by stores whose allowlist can be edited.
type allowlistWriter interface {
	Allow(ctx context.Context, plates ...string) error
	Revoke(ctx context.Context, plates ...string) error
}

// UpdateAllowlist adds and removes plates in the configured store. Plates
// are normalized first so they match recognizer output.
func (a *App) UpdateAllowlist(ctx context.Context, allow, revoke []string) error {
	w, ok := a.store.(allowlistWriter)
	if !ok {
		return fmt.Errorf("%s store does not accept allowlist updates", a.storeKind(a.store))
	}

	allow, revoke = normalizeAll(allow), normalizeAll(revoke)
	if err := w.Allow(ctx, allow...); err != nil {
		return fmt.Errorf("allow: %w", err)
	}
	if err := w.Revoke(ctx, revoke...); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	a.logger.Info("allowlist updated", "allowed", allow, "revoked", revoke)
	return nil
}

func normalizeAll(plates []string) []string {
	out := make([]string, 0, len(plates))
	for _, p := range plates {
		if n := plate.Normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Close releases every capability.
func (a *App) Close() error {
	return a.pipeline.Close()
}

func (a *App) degrade(capability string, err error) {
	a.degraded = append(a.degraded, Degradation{Capability: capability, Err: err})
	a.logger.Warn("capability disabled", "capability", capability, "error", err)
}

func (a *App) initDetector() detection.Detector {
	cfg := yolo.DefaultConfig()
	cfg.ModelPath = a.config.Detector.ModelPath
	cfg.ConfidenceThresh = float32(a.config.Detector.Confidence)
	cfg.NMSThresh = float32(a.config.Detector.NMS)
	cfg.UseCUDA = a.config.Detector.UseGPU

	d, err := yolo.New(cfg)
	if err != nil {
		a.degrade("detector", err)
		return nil
	}
	return d
}

func (a *App) initBackends() []ocr.Recognizer {
	var backends []ocr.Recognizer
	for _, name := range a.config.OCR.Backends {
		var (
			r   ocr.Recognizer
			err error
		)
		switch name {
		case config.BackendCRNN:
			r, err = a.newCRNN()
		case config.BackendTesseract:
			r, err = a.newTesseract()
		default:
			err = fmt.Errorf("unknown backend %q", name)
		}
		if err != nil {
			a.degrade("ocr/"+name, err)
			continue
		}
		backends = append(backends, r)
	}
	return backends
}

func (a *App) newCRNN() (ocr.Recognizer, error) {
	cfg := crnn.DefaultConfig()
	cfg.ModelPath = a.config.OCR.CRNNModel
	cfg.UseCUDA = a.config.OCR.UseGPU
	if a.config.OCR.Alphabet == "lowercase" {
		cfg.Alphabet = crnn.AlphabetLowercase
	}
	r, err := crnn.New(cfg)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (a *App) newTesseract() (ocr.Recognizer, error) {
	cfg := tesseract.DefaultConfig()
	if len(a.config.OCR.Languages) > 0 {
		cfg.Languages = a.config.OCR.Languages
	}
	r, err := tesseract.New(cfg)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (a *App) initStore(ctx context.Context) access.Store {
	sc := a.config.Store
	switch sc.Kind {
	case config.StoreSQL:
		s, err := access.OpenSQL(ctx, access.SQLConfig{
			Driver: sc.DBDriver,
			DSN:    sc.DBDSN,
			Query:  sc.DBQuery,
		})
		if err != nil {
			a.degrade("store", err)
			return nil
		}
		return s
	case config.StoreRedis:
		s, err := access.OpenRedis(ctx, access.RedisConfig{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
			Key:      sc.RedisKey,
		})
		if err != nil {
			a.degrade("store", err)
			return nil
		}
		return s
	case config.StoreStatic:
		s := access.NewStaticStore(sc.Allowlist...)
		a.logger.Debug("static allowlist loaded", "plates", s.Len())
		return s
	default:
		a.logger.Debug("no authorization store configured")
		return nil
	}
}

func (a *App) initActuator() actuator.Actuator {
	gc := a.config.Gate
	switch gc.Actuator {
	case config.ActuatorServo:
		cfg := actuator.DefaultServoConfig()
		cfg.Pin = gc.ServoPin
		cfg.Dwell = gc.Dwell
		s, err := actuator.NewServo(cfg)
		if err != nil {
			a.degrade("actuator", err)
			return nil
		}
		return s
	case config.ActuatorRelay:
		r, err := actuator.NewHTTPRelay(actuator.RelayConfig{
			URL:   gc.RelayURL,
			Token: gc.RelayToken,
			Dwell: gc.Dwell,
		})
		if err != nil {
			a.degrade("actuator", err)
			return nil
		}
		return r
	default:
		a.logger.Debug("no actuator configured")
		return nil
	}
}

func (a *App) storeKind(s access.Store) string {
	if s == nil {
		return config.StoreNone
	}
	return a.config.Store.Kind
}

func (a *App) actuatorKind(act actuator.Actuator) string {
	if act == nil {
		return config.ActuatorNone
	}
	return a.config.Gate.Actuator
}
