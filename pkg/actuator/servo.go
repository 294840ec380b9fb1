package actuator

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/rpi"
)

// ServoConfig describes a hobby servo pressing the gate remote's button.
// Positions use the -1..1 scale: -1 is MinPulse, +1 is MaxPulse.
type ServoConfig struct {
	Pin       string
	Release   float64
	Engage    float64
	Dwell     time.Duration
	Frequency physic.Frequency
	MinPulse  time.Duration
	MaxPulse  time.Duration
}

// DefaultServoConfig returns the settings for a standard 50 Hz servo on GPIO18.
func DefaultServoConfig() ServoConfig {
	return ServoConfig{
		Pin:       "GPIO18",
		Release:   -0.5,
		Engage:    0.5,
		Dwell:     DefaultDwell,
		Frequency: 50 * physic.Hertz,
		MinPulse:  time.Millisecond,
		MaxPulse:  2 * time.Millisecond,
	}
}

// PWMPin is the subset of a periph GPIO pin the servo needs.
type PWMPin interface {
	PWM(duty gpio.Duty, f physic.Frequency) error
	Halt() error
}

// Servo is a PWM-driven servo actuator.
type Servo struct {
	pin    PWMPin
	config ServoConfig
	mu     sync.Mutex
	closed bool
}

// IsRaspberryPi reports whether the process runs on a Raspberry Pi.
func IsRaspberryPi() bool {
	if runtime.GOOS != "linux" || !strings.HasPrefix(runtime.GOARCH, "arm") {
		return false
	}
	return rpi.Present()
}

// NewServo initializes the host drivers, looks up the pin and parks the
// servo in the release position. It returns ErrUnavailable off a Pi.
func NewServo(cfg ServoConfig) (*Servo, error) {
	if !IsRaspberryPi() {
		return nil, fmt.Errorf("%w: %s/%s is not a Raspberry Pi", ErrUnavailable, runtime.GOOS, runtime.GOARCH)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: init host drivers: %v", ErrUnavailable, err)
	}

	p := gpioreg.ByName(cfg.Pin)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, cfg.Pin)
	}
	return NewServoWithPin(p, cfg)
}

// NewServoWithPin drives an already-resolved pin and parks the servo in the
// release position.
func NewServoWithPin(pin PWMPin, cfg ServoConfig) (*Servo, error) {
	if cfg.Frequency <= 0 {
		return nil, fmt.Errorf("actuator: servo frequency must be positive")
	}
	if cfg.MaxPulse <= cfg.MinPulse {
		return nil, fmt.Errorf("actuator: max pulse %v must exceed min pulse %v", cfg.MaxPulse, cfg.MinPulse)
	}

	s := &Servo{pin: pin, config: cfg}
	if err := s.move(cfg.Release); err != nil {
		return nil, fmt.Errorf("park servo: %w", err)
	}
	return s, nil
}

// Engage presses and releases. The release is attempted even when the
// press fails or ctx is cancelled mid-dwell.
func (s *Servo) Engage(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	pressErr := s.move(s.config.Engage)
	if pressErr == nil {
		hold(ctx, s.config.Dwell)
	}
	releaseErr := s.move(s.config.Release)

	if pressErr != nil {
		return fmt.Errorf("engage: %w", pressErr)
	}
	if releaseErr != nil {
		return fmt.Errorf("release: %w", releaseErr)
	}
	return nil
}

func (s *Servo) move(position float64) error {
	return s.pin.PWM(ServoDuty(position, s.config), s.config.Frequency)
}

// Close stops the PWM output.
func (s *Servo) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.pin.Halt()
}

// ServoDuty maps a -1..1 position to a PWM duty cycle for cfg's pulse range
// and frame rate. Positions outside the range are clamped.
func ServoDuty(position float64, cfg ServoConfig) gpio.Duty {
	position = max(-1, min(1, position))

	mid := float64(cfg.MinPulse+cfg.MaxPulse) / 2
	span := float64(cfg.MaxPulse-cfg.MinPulse) / 2
	pulse := mid + position*span

	period := float64(cfg.Frequency.Period())
	return gpio.Duty(float64(gpio.DutyMax) * pulse / period)
}

var _ Actuator = (*Servo)(nil)
