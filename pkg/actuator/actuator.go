// Package actuator drives the physical mechanism that opens the gate.
//
// An actuator performs a momentary trigger: move to the engage position,
// hold for a dwell, return to release. Engage blocks for the whole motion.
package actuator

import (
	"context"
	"errors"
	"time"
)

// DefaultDwell is how long the engage position is held.
const DefaultDwell = 500 * time.Millisecond

// Sentinel errors for common conditions.
var (
	// ErrUnavailable is returned when the actuator hardware cannot be used
	// on this host.
	ErrUnavailable = errors.New("actuator: unavailable on this host")

	// ErrPinNotFound is returned when the configured pin does not exist.
	ErrPinNotFound = errors.New("actuator: pin not found")

	// ErrClosed is returned when Engage is called after Close.
	ErrClosed = errors.New("actuator: closed")
)

// Actuator is a two-state momentary trigger.
type Actuator interface {
	// Engage moves to the engage position, holds it for the dwell and
	// returns to release. It blocks until the motion is complete.
	Engage(ctx context.Context) error

	// Close releases the hardware.
	Close() error
}

// hold waits for d. A cancelled ctx cuts the wait short; the caller still
// returns the mechanism to rest.
func hold(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
