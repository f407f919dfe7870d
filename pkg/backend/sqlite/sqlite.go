// Package sqlite stores dashboard tables in an embedded SQLite database.
//
// Rows are kept as JSON documents in a single records table keyed by
// (table, id), which keeps the schemaless shape of the hosted backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	tbl  TEXT NOT NULL,
	id   TEXT NOT NULL,
	data TEXT NOT NULL,
	UNIQUE (tbl, id)
)`

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
// Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Select(ctx context.Context, table string, q backend.Query) ([]models.Record, error) {
	out, err := s.readTable(ctx, table)
	if err != nil {
		return nil, err
	}
	return backend.Shape(ctx, s, out, q)
}

// readTable releases its connection before joins are resolved, since the
// pool holds a single connection.
func (s *Store) readTable(ctx context.Context, table string) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM records WHERE tbl = ? ORDER BY seq`, table)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		var r models.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", table, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, table, id string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM records WHERE tbl = ? AND id = ?`, table, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", table, id, backend.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	var r models.Record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return fmt.Errorf("decode %s row: %w", table, err)
	}
	encoded, err := json.Marshal(r.Merge(fields))
	if err != nil {
		return fmt.Errorf("encode %s row: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE records SET data = ? WHERE tbl = ? AND id = ?`, string(encoded), table, id); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE tbl = ? AND id = ?`, table, id); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, table string, rows []map[string]any) ([]models.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		r := models.Record(row).Clone()
		id := r.ID()
		if id == "" {
			id = uuid.NewString()
		}
		r["id"] = id
		encoded, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode %s row: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO records (tbl, id, data) VALUES (?, ?, ?)`, table, id, string(encoded)); err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		out = append(out, r)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
