// Package access decides whether a recognized plate may pass and, if so,
// triggers the gate actuator.
package access

import (
	"context"
	"errors"
	"sync"

	"github.com/teslashibe/go-lpr/pkg/plate"
)

// ErrStoreUnavailable is returned when an authorization store cannot be
// reached at construction time.
var ErrStoreUnavailable = errors.New("access: store unavailable")

// Store answers whether a plate is authorized.
type Store interface {
	IsAuthorized(ctx context.Context, plate string) (bool, error)
}

// StaticStore authorizes a fixed set of plates.
type StaticStore struct {
	plates map[string]struct{}
}

// NewStaticStore builds an allowlist. Entries are normalized so they match
// the recognizer's output.
func NewStaticStore(plates ...string) *StaticStore {
	s := &StaticStore{plates: make(map[string]struct{}, len(plates))}
	for _, p := range plates {
		if n := plate.Normalize(p); n != "" {
			s.plates[n] = struct{}{}
		}
	}
	return s
}

func (s *StaticStore) IsAuthorized(_ context.Context, p string) (bool, error) {
	_, ok := s.plates[p]
	return ok, nil
}

// Len returns the number of allowed plates.
func (s *StaticStore) Len() int {
	return len(s.plates)
}

// MockStore is a Store for tests.
type MockStore struct {
	IsAuthorizedFunc func(ctx context.Context, plate string) (bool, error)

	mu      sync.Mutex
	lookups []string
}

// NewMockStore returns a MockStore that authorizes exactly the given plates.
func NewMockStore(allowed ...string) *MockStore {
	set := make(map[string]bool, len(allowed))
	for _, p := range allowed {
		set[p] = true
	}
	return &MockStore{
		IsAuthorizedFunc: func(_ context.Context, p string) (bool, error) {
			return set[p], nil
		},
	}
}

func (m *MockStore) IsAuthorized(ctx context.Context, p string) (bool, error) {
	m.mu.Lock()
	m.lookups = append(m.lookups, p)
	m.mu.Unlock()

	if m.IsAuthorizedFunc != nil {
		return m.IsAuthorizedFunc(ctx, p)
	}
	return false, nil
}

// Lookups returns the plates queried so far.
func (m *MockStore) Lookups() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lookups))
	copy(out, m.lookups)
	return out
}

var (
	_ Store = (*StaticStore)(nil)
	_ Store = (*MockStore)(nil)
)
