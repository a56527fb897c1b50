package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	aerrors "github.com/turtacn/Auris/pkg/errors"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLite is a Registry backed by a database file, so the supervisor and the
// worker process can share it. WAL mode lets readers iterate while a writer
// appends.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the registry at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	// Pragmas in the DSN apply to every pooled connection; busy_timeout makes
	// writers from the other process wait for the lock instead of failing.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, aerrors.New(aerrors.ErrCodeRegistryFailed, "OpenRegistry", "failed to open database", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS connections (
			seq      INTEGER PRIMARY KEY AUTOINCREMENT,
			id       TEXT NOT NULL UNIQUE,
			added_at INTEGER NOT NULL
		)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, aerrors.New(aerrors.ErrCodeRegistryFailed, "OpenRegistry", "failed to create table", err)
	}

	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Add(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO connections (id, added_at) VALUES (?, ?)", id, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("add connection %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM connections WHERE id = ?", id); err != nil {
		return fmt.Errorf("remove connection %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM connections ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Reset drops every recorded connection. The supervisor calls it before a
// new worker starts so identifiers from a previous run don't leak in.
func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM connections"); err != nil {
		return fmt.Errorf("reset connections: %w", err)
	}
	return nil
}

func (s *SQLite) Location() string { return s.path }

func (s *SQLite) Close() error { return s.db.Close() }

// Personal.AI order the ending
