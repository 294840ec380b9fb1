package app

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/teslashibe/go-lpr/internal/config"
	"github.com/teslashibe/go-lpr/internal/log"
	"github.com/teslashibe/go-lpr/pkg/access"
	"github.com/teslashibe/go-lpr/pkg/actuator"
	"github.com/teslashibe/go-lpr/pkg/detection/yolo"
	"github.com/teslashibe/go-lpr/pkg/ocr"
)

// testConfig points every model at a missing file and enables only the
// neural backend so discovery does not depend on the host.
func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	base := map[string]string{
		"LPR_DETECTOR_MODEL": filepath.Join(dir, "plates.onnx"),
		"LPR_OCR_CRNN_MODEL": filepath.Join(dir, "crnn.onnx"),
		"LPR_OCR_BACKENDS":   "crnn",
	}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.Parse(func(k string) string { return base[k] })
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}
	return cfg
}

func degradedCapabilities(a *App) map[string]error {
	out := make(map[string]error)
	for _, d := range a.Degraded() {
		out[d.Capability] = d.Err
	}
	return out
}

func TestNewDegradesMissingModels(t *testing.T) {
	a := New(context.Background(), testConfig(t, nil), log.Discard())
	defer a.Close()

	got := degradedCapabilities(a)
	if !errors.Is(got["detector"], yolo.ErrModelNotFound) {
		t.Errorf("detector degradation = %v, want ErrModelNotFound", got["detector"])
	}
	if !errors.Is(got["ocr/crnn"], ocr.ErrModelNotFound) {
		t.Errorf("crnn degradation = %v, want ErrModelNotFound", got["ocr/crnn"])
	}
	if len(a.Pipeline().Backends()) != 0 {
		t.Errorf("Backends() = %v, want none", a.Pipeline().Backends())
	}

	frame := a.ProcessImage(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 48)))
	if frame.ID == "" || len(frame.Detections) != 0 {
		t.Errorf("ProcessImage() = %+v, want empty frame with an ID", frame)
	}
}

func TestNewWithoutStoreOrActuator(t *testing.T) {
	a := New(context.Background(), testConfig(t, nil), log.Discard())
	defer a.Close()

	got := degradedCapabilities(a)
	if _, ok := got["store"]; ok {
		t.Error("absent store reported as degraded")
	}
	if _, ok := got["actuator"]; ok {
		t.Error("absent actuator reported as degraded")
	}
}

func TestInitStore(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name     string
		env      map[string]string
		want     func(access.Store) bool
		degraded bool
	}{
		{
			name: "static",
			env:  map[string]string{"LPR_ALLOWLIST": "34ABC123"},
			want: func(s access.Store) bool { _, ok := s.(*access.StaticStore); return ok },
		},
		{
			name: "redis",
			env:  map[string]string{"REDIS_ADDR": mr.Addr()},
			want: func(s access.Store) bool { _, ok := s.(*access.RedisStore); return ok },
		},
		{
			name:     "sql unreachable",
			env:      map[string]string{"DB_DSN": "u:p@tcp(127.0.0.1:1)/gate?timeout=200ms"},
			want:     func(s access.Store) bool { return s == nil },
			degraded: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &App{config: testConfig(t, tt.env), logger: log.Discard()}
			s := a.initStore(context.Background())
			if !tt.want(s) {
				t.Errorf("initStore() = %T", s)
			}
			if c, ok := s.(interface{ Close() error }); ok {
				c.Close()
			}
			_, degraded := degradedCapabilities(a)["store"]
			if degraded != tt.degraded {
				t.Errorf("store degraded = %v, want %v", degraded, tt.degraded)
			}
		})
	}
}

func TestInitActuator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	a := &App{config: testConfig(t, map[string]string{
		"GATE_ACTUATOR":  "relay",
		"GATE_RELAY_URL": srv.URL,
	}), logger: log.Discard()}
	act := a.initActuator()
	relay, ok := act.(*actuator.HTTPRelay)
	if !ok {
		t.Fatalf("initActuator() = %T, want *actuator.HTTPRelay", act)
	}
	if err := relay.Engage(context.Background()); err != nil {
		t.Errorf("Engage() error = %v", err)
	}

	if actuator.IsRaspberryPi() {
		return
	}
	a = &App{config: testConfig(t, map[string]string{"GATE_ACTUATOR": "servo"}), logger: log.Discard()}
	if act := a.initActuator(); act != nil {
		t.Errorf("initActuator() = %T off a Pi, want nil", act)
	}
	if err := degradedCapabilities(a)["actuator"]; !errors.Is(err, actuator.ErrUnavailable) {
		t.Errorf("actuator degradation = %v, want ErrUnavailable", err)
	}
}

func TestProcessFileMissing(t *testing.T) {
	a := New(context.Background(), testConfig(t, nil), log.Discard())
	defer a.Close()

	if _, err := a.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "absent.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestUpdateAllowlist(t *testing.T) {
	mr := miniredis.RunT(t)
	if _, err := mr.SetAdd(access.DefaultRedisKey, "06XYZ99"); err != nil {
		t.Fatal(err)
	}

	a := New(context.Background(), testConfig(t, map[string]string{"REDIS_ADDR": mr.Addr()}), log.Discard())
	defer a.Close()

	if err := a.UpdateAllowlist(context.Background(), []string{"34 abc 123", " "}, []string{"06-xyz-99", "06xyz99"}); err != nil {
		t.Fatalf("UpdateAllowlist() error = %v", err)
	}

	if ok, _ := mr.IsMember(access.DefaultRedisKey, "34ABC123"); !ok {
		t.Error("34ABC123 not added in normalized form")
	}
	if ok, _ := mr.IsMember(access.DefaultRedisKey, "06XYZ99"); ok {
		t.Error("06XYZ99 still present after revoke")
	}
	members, _ := mr.Members(access.DefaultRedisKey)
	if len(members) != 1 {
		t.Errorf("members = %v, want only 34ABC123", members)
	}
}

func TestUpdateAllowlistReadOnlyStore(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"static", map[string]string{"LPR_ALLOWLIST": "34ABC123"}},
		{"none", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(context.Background(), testConfig(t, tt.env), log.Discard())
			defer a.Close()

			if err := a.UpdateAllowlist(context.Background(), []string{"34ABC123"}, nil); err == nil {
				t.Error("expected error for a store without allowlist updates")
			}
		})
	}
}
