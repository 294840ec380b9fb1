// Package config loads go-lpr settings from the environment.
//
// Values come from process environment variables, optionally seeded from a
// .env file. Absent store and actuator settings are valid: they disable the
// gate's lookup and actuation respectively.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Store kinds.
const (
	StoreNone   = "none"
	StoreSQL    = "sql"
	StoreRedis  = "redis"
	StoreStatic = "static"
)

// Actuator kinds.
const (
	ActuatorNone  = "none"
	ActuatorServo = "servo"
	ActuatorRelay = "relay"
)

// Recognition backend names, in LPR_OCR_BACKENDS.
const (
	BackendCRNN      = "crnn"
	BackendTesseract = "tesseract"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel string `validate:"oneof=debug info warn warning error"`
	Detector DetectorConfig
	OCR      OCRConfig
	Store    StoreConfig
	Gate     GateConfig
}

// DetectorConfig configures the plate detector.
type DetectorConfig struct {
	ModelPath  string  `validate:"required"`
	Confidence float64 `validate:"gt=0,lte=1"`
	NMS        float64 `validate:"gt=0,lte=1"`
	UseGPU     bool
}

// OCRConfig configures the recognition backends.
type OCRConfig struct {
	Backends  []string `validate:"dive,oneof=crnn tesseract"`
	CRNNModel string
	Alphabet  string `validate:"oneof=case_sensitive lowercase"`
	Languages []string
	UseGPU    bool
}

// StoreConfig selects and configures the authorization store.
type StoreConfig struct {
	Kind      string `validate:"oneof=none sql redis static"`
	Allowlist []string

	DBDriver string `validate:"oneof=mysql postgres"`
	DBDSN    string
	DBQuery  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
	RedisKey      string
}

// GateConfig selects and configures the actuator.
type GateConfig struct {
	Actuator   string        `validate:"oneof=none servo relay"`
	ServoPin   string        `validate:"required"`
	Dwell      time.Duration `validate:"gt=0"`
	RelayURL   string        `validate:"omitempty,url"`
	RelayToken string
}

// Load reads the given .env files (".env" when none are given), then parses
// the environment. Missing .env files are ignored; variables already set in
// the environment take precedence.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return Parse(os.Getenv)
}

// Parse builds a Config from getenv and validates it.
func Parse(getenv func(string) string) (*Config, error) {
	e := &env{get: getenv}

	cfg := &Config{
		LogLevel: strings.ToLower(e.str("LPR_LOG_LEVEL", "info")),
		Detector: DetectorConfig{
			ModelPath:  e.str("LPR_DETECTOR_MODEL", "models/plate_yolov8n.onnx"),
			Confidence: e.float("LPR_DETECTOR_CONFIDENCE", 0.4),
			NMS:        e.float("LPR_DETECTOR_NMS", 0.45),
			UseGPU:     e.bool("LPR_DETECTOR_USE_GPU", false),
		},
		OCR: OCRConfig{
			Backends:  e.list("LPR_OCR_BACKENDS", []string{BackendCRNN, BackendTesseract}),
			CRNNModel: e.str("LPR_OCR_CRNN_MODEL", "models/crnn_cs.onnx"),
			Alphabet:  e.str("LPR_OCR_CRNN_ALPHABET", "case_sensitive"),
			Languages: e.list("LPR_OCR_LANGUAGES", []string{"eng"}),
			UseGPU:    e.bool("LPR_OCR_USE_GPU", false),
		},
		Store: StoreConfig{
			Allowlist: e.list("LPR_ALLOWLIST", nil),
			DBDriver:  e.str("DB_DRIVER", "mysql"),
			DBQuery:   e.str("DB_QUERY", ""),

			RedisAddr:     e.str("REDIS_ADDR", ""),
			RedisPassword: e.str("REDIS_PASSWORD", ""),
			RedisDB:       e.int("REDIS_DB", 0),
			RedisKey:      e.str("REDIS_KEY", ""),
		},
		Gate: GateConfig{
			Actuator:   strings.ToLower(e.str("GATE_ACTUATOR", ActuatorNone)),
			ServoPin:   e.str("GATE_SERVO_PIN", "GPIO18"),
			Dwell:      e.duration("GATE_DWELL", 500*time.Millisecond),
			RelayURL:   e.str("GATE_RELAY_URL", ""),
			RelayToken: e.str("GATE_RELAY_TOKEN", ""),
		},
	}
	cfg.Store.DBDSN = e.str("DB_DSN", "")
	if cfg.Store.DBDSN == "" && e.get("DB_HOST") != "" {
		cfg.Store.DBDSN = buildDSN(cfg.Store.DBDriver, e)
	}
	cfg.Store.Kind = strings.ToLower(e.str("LPR_STORE", inferStore(cfg.Store)))

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// inferStore picks a store from whichever settings are present.
func inferStore(s StoreConfig) string {
	switch {
	case s.DBDSN != "":
		return StoreSQL
	case s.RedisAddr != "":
		return StoreRedis
	case len(s.Allowlist) > 0:
		return StoreStatic
	default:
		return StoreNone
	}
}

func buildDSN(driver string, e *env) string {
	host := e.str("DB_HOST", "127.0.0.1")
	user := e.str("DB_USER", "")
	pass := e.str("DB_PASSWORD", "")
	name := e.str("DB_NAME", "")

	if driver == "postgres" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, e.str("DB_PORT", "5432"), user, pass, name, e.str("DB_SSLMODE", "disable"))
	}

	mc := mysql.NewConfig()
	mc.User = user
	mc.Passwd = pass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(host, e.str("DB_PORT", "3306"))
	mc.DBName = name
	mc.Timeout = 5 * time.Second
	return mc.FormatDSN()
}

// Validate checks field constraints and the settings each selected store
// and actuator need.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidation(verrs)
		}
		return err
	}

	var errs []error
	switch c.Store.Kind {
	case StoreSQL:
		if c.Store.DBDSN == "" {
			errs = append(errs, errors.New("LPR_STORE=sql requires DB_DSN or DB_HOST"))
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("LPR_STORE=redis requires REDIS_ADDR"))
		}
	case StoreStatic:
		if len(c.Store.Allowlist) == 0 {
			errs = append(errs, errors.New("LPR_STORE=static requires LPR_ALLOWLIST"))
		}
	}
	if c.Gate.Actuator == ActuatorRelay && c.Gate.RelayURL == "" {
		errs = append(errs, errors.New("GATE_ACTUATOR=relay requires GATE_RELAY_URL"))
	}
	return errors.Join(errs...)
}

func formatValidation(verrs validator.ValidationErrors) error {
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			errs = append(errs, fmt.Errorf("config: %s failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			errs = append(errs, fmt.Errorf("config: %s failed %s (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	return errors.Join(errs...)
}

// env reads typed values and collects parse errors.
type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) float(key string, def float64) float64 {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *env) int(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) bool(key string, def bool) bool {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

// list splits a comma-separated value, dropping empty items.
func (e *env) list(key string, def []string) []string {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
