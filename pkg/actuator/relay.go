package actuator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/teslashibe/go-lpr/internal/httpc"
)

// RelayConfig configures an HTTP-controlled relay board.
type RelayConfig struct {
	URL     string
	Token   string
	Dwell   time.Duration
	Timeout time.Duration
}

// HTTPRelay triggers a networked relay with a single pulse request.
// The relay firmware handles the dwell itself.
type HTTPRelay struct {
	config RelayConfig
	client *http.Client
}

// NewHTTPRelay creates a relay actuator posting to cfg.URL.
func NewHTTPRelay(cfg RelayConfig) (*HTTPRelay, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: relay URL is empty", ErrUnavailable)
	}
	if cfg.Dwell <= 0 {
		cfg.Dwell = DefaultDwell
	}
	return &HTTPRelay{
		config: cfg,
		client: httpc.NewClient(cfg.Timeout),
	}, nil
}

// Engage sends {"action":"pulse","duration_ms":N} to the relay.
func (r *HTTPRelay) Engage(ctx context.Context) error {
	payload := map[string]any{
		"action":      "pulse",
		"duration_ms": r.config.Dwell.Milliseconds(),
	}

	var headers map[string]string
	if r.config.Token != "" {
		headers = map[string]string{"Authorization": "Bearer " + r.config.Token}
	}

	if err := httpc.PostJSON(ctx, r.client, r.config.URL, headers, payload); err != nil {
		return fmt.Errorf("relay pulse: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (r *HTTPRelay) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

var _ Actuator = (*HTTPRelay)(nil)
