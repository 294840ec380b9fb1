package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// DefaultQuery reads the special-access flag of a registered vehicle.
// Written with '?' placeholders; rebound for the configured driver.
const DefaultQuery = "SELECT ozel_erisim FROM araclar WHERE plaka = ?"

// SQLConfig configures a database-backed store.
type SQLConfig struct {
	Driver          string // "mysql" or "postgres"
	DSN             string
	Query           string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// SQLStore looks plates up in a relational table. A plate is authorized
// when the first column of the first row is 1 (or true).
type SQLStore struct {
	db    *sqlx.DB
	query string
}

// OpenSQL connects to the database and verifies it with a ping.
func OpenSQL(ctx context.Context, cfg SQLConfig) (*SQLStore, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStoreUnavailable, cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrStoreUnavailable, cfg.Driver, err)
	}

	return NewSQLStore(db, cfg.Query), nil
}

// NewSQLStore wraps an open handle. An empty query uses DefaultQuery.
func NewSQLStore(db *sqlx.DB, query string) *SQLStore {
	if query == "" {
		query = DefaultQuery
	}
	return &SQLStore{db: db, query: db.Rebind(query)}
}

func (s *SQLStore) IsAuthorized(ctx context.Context, plate string) (bool, error) {
	var flag any
	err := s.db.QueryRowxContext(ctx, s.query, plate).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %q: %w", plate, err)
	}
	return flagSet(flag), nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// flagSet interprets the access column across drivers: MySQL returns
// TINYINT as int64 or []byte, Postgres returns booleans as bool.
func flagSet(v any) bool {
	switch x := v.(type) {
	case int64:
		return x == 1
	case int:
		return x == 1
	case bool:
		return x
	case []byte:
		return textFlag(string(x))
	case string:
		return textFlag(x)
	default:
		return false
	}
}

func textFlag(s string) bool {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n == 1
	}
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

var _ Store = (*SQLStore)(nil)
