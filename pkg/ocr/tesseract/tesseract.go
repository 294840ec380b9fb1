// Package tesseract implements the classical OCR backend on top of the
// Tesseract engine. Crops are binarized and upscaled before recognition and
// Tesseract runs in single-line mode restricted to plate characters.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"slices"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/teslashibe/go-lpr/pkg/imgproc"
	"github.com/teslashibe/go-lpr/pkg/ocr"
	"github.com/teslashibe/go-lpr/pkg/plate"
)

// Name is the backend name reported in results and logs.
const Name = "tesseract"

// Config holds Tesseract backend configuration.
type Config struct {
	Languages   []string
	PageSegMode gosseract.PageSegMode
	Whitelist   string
	Preprocess  imgproc.Params
}

// DefaultConfig returns the single-line plate configuration.
func DefaultConfig() Config {
	return Config{
		Languages:   []string{"eng"},
		PageSegMode: gosseract.PSM_SINGLE_LINE,
		Whitelist:   plate.Whitelist,
		Preprocess:  imgproc.DefaultParams(),
	}
}

// Recognizer reads plates with a long-lived Tesseract client.
type Recognizer struct {
	config Config
	client *gosseract.Client
	mu     sync.Mutex // Tesseract handles are not safe for concurrent use
}

// New checks that the configured language data is installed and prepares
// a client. It returns ocr.ErrBackendUnavailable when Tesseract cannot run
// on this host.
func New(cfg Config) (*Recognizer, error) {
	if err := cfg.Preprocess.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}

	installed, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("%w: list tesseract languages: %v", ocr.ErrBackendUnavailable, err)
	}
	if err := checkLanguages(cfg.Languages, installed); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	if err := configure(client, cfg); err != nil {
		client.Close()
		return nil, err
	}

	return &Recognizer{
		config: cfg,
		client: client,
	}, nil
}

func configure(c *gosseract.Client, cfg Config) error {
	if err := c.SetLanguage(cfg.Languages...); err != nil {
		return fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(cfg.PageSegMode); err != nil {
		return fmt.Errorf("set page segmentation mode: %w", err)
	}
	if cfg.Whitelist != "" {
		if err := c.SetWhitelist(cfg.Whitelist); err != nil {
			return fmt.Errorf("set whitelist: %w", err)
		}
	}
	return nil
}

// checkLanguages returns ocr.ErrBackendUnavailable naming the first wanted
// language that is not installed.
func checkLanguages(want, installed []string) error {
	for _, lang := range want {
		if !slices.Contains(installed, lang) {
			return fmt.Errorf("%w: tesseract language %q not installed (have %s)",
				ocr.ErrBackendUnavailable, lang, strings.Join(installed, ","))
		}
	}
	return nil
}

// Name implements ocr.Recognizer.
func (r *Recognizer) Name() string { return Name }

// Read binarizes region and returns the single line Tesseract reads.
func (r *Recognizer) Read(ctx context.Context, region image.Image) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if region == nil || region.Bounds().Empty() {
		return nil, ocr.ErrEmptyRegion
	}

	data, err := imgproc.BinarizedPNG(region, r.config.Preprocess)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

// Close releases the Tesseract client.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}

var _ ocr.Recognizer = (*Recognizer)(nil)
