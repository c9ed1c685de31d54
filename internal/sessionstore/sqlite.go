package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"searchads-client/internal/components/assert"
	"searchads-client/internal/components/chrono"
	"searchads-client/internal/session"

	_ "modernc.org/sqlite"
)

const schema = `create table if not exists session (
	account text primary key,
	snapshot text not null,
	updated_at integer not null
);`

// SQLite keeps snapshots in a single table.
type SQLite struct {
	db    *sql.DB
	clock chrono.API
}

// SQLiteConfig is the `session_store.sqlite` block of the cli config.
type SQLiteConfig struct {
	File string `json:"file"`
}

func (config SQLiteConfig) OpenDB() (*sql.DB, error) {
	if config.File == "" {
		return nil, fmt.Errorf("a database file was not specified")
	}
	return sql.Open("sqlite", fmt.Sprintf("file:%s", config.File))
}

// NewSQLite creates the table if it does not exist yet.
func NewSQLite(ctx context.Context, db *sql.DB, clock chrono.API) (SQLite, error) {
	assert.NotNil(db, "db")
	if clock == nil {
		clock = chrono.StandardImpl{}
	}
	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return SQLite{}, fmt.Errorf("sessionstore: create schema: %w", err)
	}
	return SQLite{db: db, clock: clock}, nil
}

func (s SQLite) Load(ctx context.Context, account string) (session.Snapshot, error) {
	var encoded string
	err := s.db.QueryRowContext(
		ctx,
		"select snapshot from session where account = ?",
		account,
	).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return session.Snapshot{}, err
	}

	var snap session.Snapshot
	err = json.Unmarshal([]byte(encoded), &snap)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("sessionstore: decode snapshot: %w", err)
	}
	return snap, nil
}

func (s SQLite) Save(ctx context.Context, account string, snap session.Snapshot) error {
	encoded, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`insert into session (account, snapshot, updated_at) values (?, ?, ?)
		on conflict (account) do update set
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at`,
		account,
		string(encoded),
		s.clock.Now().Unix(),
	)
	return err
}

func (s SQLite) Delete(ctx context.Context, account string) error {
	_, err := s.db.ExecContext(ctx, "delete from session where account = ?", account)
	return err
}
