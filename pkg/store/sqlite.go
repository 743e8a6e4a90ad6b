package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS installations (
	team_id    TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStore keeps installation records in a local SQLite database, one
// row per workspace with the record serialized as a JSON blob.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, teamID string) (*Installation, error) {
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM installations WHERE team_id = ?`, teamID,
	).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, teamID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", teamID, err)
	}

	inst := &Installation{}
	if err := json.Unmarshal([]byte(record), inst); err != nil {
		return nil, fmt.Errorf("store: decode record %s: %w", teamID, err)
	}
	return inst, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, inst *Installation) error {
	if inst.TeamID == "" {
		return fmt.Errorf("store: installation has no team id")
	}

	record, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("store: encode record %s: %w", inst.TeamID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO installations (team_id, record, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(team_id) DO UPDATE SET
			record = excluded.record,
			updated_at = CURRENT_TIMESTAMP`,
		inst.TeamID, string(record))
	if err != nil {
		return fmt.Errorf("store: save %s: %w", inst.TeamID, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ Store = (*SQLiteStore)(nil)
