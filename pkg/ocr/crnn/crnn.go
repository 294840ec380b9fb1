// Package crnn implements the neural OCR backend: a CRNN text recognizer
// exported to ONNX, run through OpenCV's DNN module, decoded with greedy CTC.
package crnn

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-lpr/pkg/imgproc"
	"github.com/teslashibe/go-lpr/pkg/ocr"
)

// Name is the backend name reported in results and logs.
const Name = "crnn"

// Alphabets of the OpenCV reference CRNN exports. Index 0 of the model
// output is the CTC blank, so class i maps to alphabet rune i-1.
const (
	AlphabetLowercase     = "0123456789abcdefghijklmnopqrstuvwxyz"
	AlphabetCaseSensitive = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// Config holds CRNN backend configuration.
type Config struct {
	ModelPath   string
	Alphabet    string
	InputWidth  int
	InputHeight int
	Grayscale   bool // Model takes a single intensity channel instead of RGB
	UseCUDA     bool
}

// DefaultConfig returns settings for the case-sensitive color CRNN export.
func DefaultConfig() Config {
	return Config{
		ModelPath:   "models/crnn_cs.onnx",
		Alphabet:    AlphabetCaseSensitive,
		InputWidth:  100,
		InputHeight: 32,
	}
}

// Recognizer runs the CRNN network on color plate crops.
type Recognizer struct {
	net      gocv.Net
	config   Config
	alphabet []rune
	mu       sync.Mutex // Protects inference
}

// New loads the model. It returns ocr.ErrModelNotFound when the file is
// missing so callers can run without the neural backend.
func New(cfg Config) (*Recognizer, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ocr.ErrModelNotFound, cfg.ModelPath)
	}
	if cfg.Alphabet == "" {
		return nil, fmt.Errorf("crnn: alphabet required")
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		return nil, fmt.Errorf("crnn: invalid input size %dx%d", cfg.InputWidth, cfg.InputHeight)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("crnn: failed to load model from %s", cfg.ModelPath)
	}

	if cfg.UseCUDA {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	return &Recognizer{
		net:      net,
		config:   cfg,
		alphabet: []rune(cfg.Alphabet),
	}, nil
}

// Name implements ocr.Recognizer.
func (r *Recognizer) Name() string { return Name }

// Read converts the crop to the model's color layout and decodes the text.
func (r *Recognizer) Read(ctx context.Context, region image.Image) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bgr, err := imgproc.FromImage(region)
	if err != nil {
		return nil, ocr.ErrEmptyRegion
	}
	defer bgr.Close()

	input, mean := r.prepare(bgr)
	defer input.Close()

	size := image.Pt(r.config.InputWidth, r.config.InputHeight)
	blob := gocv.BlobFromImage(input, 1.0/127.5, size, mean, false, false)
	defer blob.Close()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.net.SetInput(blob, "")
	output := r.net.Forward("")
	defer output.Close()

	// Output shape: [steps, batch, classes]
	sizes := output.Size()
	if len(sizes) < 2 {
		return nil, fmt.Errorf("unexpected output shape %v", sizes)
	}
	steps, classes := sizes[0], sizes[len(sizes)-1]
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	text := DecodeCTC(data, steps, classes, r.alphabet)
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

// prepare returns the network input Mat and the mean to subtract so pixels
// land in [-1, 1].
func (r *Recognizer) prepare(bgr gocv.Mat) (gocv.Mat, gocv.Scalar) {
	if r.config.Grayscale {
		gray := gocv.NewMat()
		gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
		return gray, gocv.NewScalar(127.5, 0, 0, 0)
	}
	return imgproc.ToRGB(bgr), gocv.NewScalar(127.5, 127.5, 127.5, 0)
}

// Close releases the network.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.net.Close()
}

var _ ocr.Recognizer = (*Recognizer)(nil)
