package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-lpr/internal/log"
	"github.com/teslashibe/go-lpr/pkg/actuator"
)

// Outcome records what EvaluateAndActuate did with a plate.
type Outcome int

const (
	OutcomeNoStore Outcome = iota
	OutcomeLookupFailed
	OutcomeDenied
	OutcomeOpened
	OutcomeActuatorFailed
	OutcomeNoActuator
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoStore:
		return "no_store"
	case OutcomeLookupFailed:
		return "lookup_failed"
	case OutcomeDenied:
		return "denied"
	case OutcomeOpened:
		return "opened"
	case OutcomeActuatorFailed:
		return "actuator_failed"
	case OutcomeNoActuator:
		return "no_actuator"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Authorized reports whether the store approved the plate, regardless of
// whether the gate actually moved.
func (o Outcome) Authorized() bool {
	return o == OutcomeOpened || o == OutcomeActuatorFailed || o == OutcomeNoActuator
}

// Gate combines an optional Store and an optional Actuator.
// Either may be nil; both are supported modes.
type Gate struct {
	store    Store
	actuator actuator.Actuator
	logger   *slog.Logger
}

// NewGate creates a gate. A nil logger uses the global logger.
func NewGate(store Store, act actuator.Actuator, logger *slog.Logger) *Gate {
	return &Gate{
		store:    store,
		actuator: act,
		logger:   log.Component(logger, "gate"),
	}
}

// EvaluateAndActuate looks the plate up and opens the gate when it is
// authorized. Faults are logged and never returned.
func (g *Gate) EvaluateAndActuate(ctx context.Context, plate string) Outcome {
	if g.store == nil {
		g.logger.Debug("no authorization store configured", "plate", plate)
		return OutcomeNoStore
	}
	if plate == "" {
		return OutcomeDenied
	}

	ok, err := g.lookup(ctx, plate)
	if err != nil {
		g.logger.Warn("authorization lookup failed", "plate", plate, "error", err)
		return OutcomeLookupFailed
	}
	if !ok {
		g.logger.Info("access denied", "plate", plate)
		return OutcomeDenied
	}

	if g.actuator == nil {
		g.logger.Info("access granted, no actuator configured", "plate", plate)
		return OutcomeNoActuator
	}

	if err := g.engage(ctx); err != nil {
		g.logger.Error("actuator failed", "plate", plate, "error", err)
		return OutcomeActuatorFailed
	}
	g.logger.Info("gate opened", "plate", plate)
	return OutcomeOpened
}

func (g *Gate) lookup(ctx context.Context, plate string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("store panic: %v", r)
		}
	}()
	return g.store.IsAuthorized(ctx, plate)
}

func (g *Gate) engage(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("actuator panic: %v", r)
		}
	}()
	return g.actuator.Engage(ctx)
}
