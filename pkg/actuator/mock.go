package actuator

import (
	"context"
	"sync"
)

// Mock is an Actuator for tests.
type Mock struct {
	EngageFunc func(ctx context.Context) error
	CloseFunc  func() error

	mu      sync.Mutex
	engages int
	closed  bool
}

// NewMock returns a Mock whose Engage always succeeds.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Engage(ctx context.Context) error {
	m.mu.Lock()
	m.engages++
	m.mu.Unlock()

	if m.EngageFunc != nil {
		return m.EngageFunc(ctx)
	}
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Engages returns how many times Engage was called.
func (m *Mock) Engages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engages
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Actuator = (*Mock)(nil)
