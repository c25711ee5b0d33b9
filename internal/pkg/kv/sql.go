package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	// Postgres driver, selected with driver "postgres".
	_ "github.com/lib/pq"
	// Pure-Go SQLite driver, selected with driver "sqlite". No CGO needed.
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// schema is valid for both drivers. One row per key; updated_at is RFC3339
// text so SQLite and Postgres store it the same way.
const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
`

// SQL stores keys in a single table through sqlx. Queries are written with
// '?' placeholders and rebound for the driver in use.
type SQL struct {
	db *sqlx.DB
}

// OpenSQLite opens (or creates) the SQLite database at path with WAL enabled.
//
//	store, err := kv.OpenSQLite("./data/storefront.db")
func OpenSQLite(path string) (*SQL, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	return Open(DriverSQLite, dsn)
}

// Open connects with the given driver and applies the schema.
func Open(driver, dsn string) (*SQL, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", driver, err)
	}

	// SQLite performs best with a single writer connection.
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kv: apply schema: %w", err)
	}

	return &SQL{db: db}, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.db.Rebind(`SELECT value FROM kv_store WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, s.db.Rebind(q), key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM kv_store WHERE key = ?`), key); err != nil {
		return fmt.Errorf("kv: remove %q: %w", key, err)
	}
	return nil
}
