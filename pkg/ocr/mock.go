package ocr

import (
	"context"
	"image"
	"sync"
)

// Mock implements Recognizer for testing.
type Mock struct {
	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	// ReadFunc is called when Read is invoked.
	// If nil, Read returns no fragments.
	ReadFunc func(ctx context.Context, region image.Image) ([]string, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls []image.Rectangle
}

// NewMock returns a mock backend that always reads the given fragments.
func NewMock(name string, fragments ...string) *Mock {
	return &Mock{
		NameValue: name,
		ReadFunc: func(ctx context.Context, region image.Image) ([]string, error) {
			return fragments, nil
		},
	}
}

// WithError returns a mock backend that always fails with err.
func WithError(name string, err error) *Mock {
	return &Mock{
		NameValue: name,
		ReadFunc: func(ctx context.Context, region image.Image) ([]string, error) {
			return nil, err
		},
	}
}

// Name returns the backend name.
func (m *Mock) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

// Read calls ReadFunc and records the region bounds.
func (m *Mock) Read(ctx context.Context, region image.Image) ([]string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, region.Bounds())
	m.mu.Unlock()

	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, region)
	}
	return nil, nil
}

// Close calls CloseFunc.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// CallCount returns the number of Read calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Regions returns the bounds of every region passed to Read.
func (m *Mock) Regions() []image.Rectangle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]image.Rectangle, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ Recognizer = (*Mock)(nil)
