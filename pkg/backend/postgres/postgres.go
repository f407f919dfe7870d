// Package postgres implements [github.com/rentease/admin/pkg/backend.DataStore]
// on a Postgres database, the storage engine behind the hosted RentEase
// backend, using GORM.
//
// Tables are addressed by name and rows are read into maps, so the store
// follows whatever columns the database defines. [Store.Migrate] creates the
// tables the dashboard needs when they do not exist yet.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/models"
)

type Store struct {
	db *gorm.DB
}

// New connects to the database at dsn.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: db}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		name TEXT,
		address TEXT,
		phone TEXT,
		"profilePicture" TEXT,
		expo_push_token TEXT,
		"isActive" BOOLEAN DEFAULT TRUE,
		verification TEXT DEFAULT 'No'
	)`,
	`CREATE TABLE IF NOT EXISTS product_listings (
		id TEXT PRIMARY KEY,
		name TEXT,
		category TEXT,
		price_per_hour NUMERIC,
		address TEXT,
		approved TEXT DEFAULT 'no',
		owner1 TEXT,
		owner2 TEXT,
		picture1_url TEXT,
		picture2_url TEXT,
		picture3_url TEXT,
		picture4_url TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS donations (
		id TEXT PRIMARY KEY,
		name TEXT,
		category TEXT,
		address TEXT,
		approved TEXT DEFAULT 'no',
		profile_id TEXT,
		picture1_url TEXT,
		picture2_url TEXT,
		picture3_url TEXT,
		picture4_url TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS damage_reports (
		id TEXT PRIMARY KEY,
		title TEXT,
		description TEXT,
		status TEXT DEFAULT 'unresolved',
		user_id TEXT,
		clash_partner_id TEXT,
		image_url TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		title TEXT,
		description TEXT,
		status TEXT DEFAULT 'unresolved',
		user_id TEXT,
		image_url TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS shared_ownership (
		id TEXT PRIMARY KEY,
		user_id1 TEXT,
		user_id2 TEXT,
		status TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS admins (
		id TEXT PRIMARY KEY,
		full_name TEXT,
		address TEXT,
		date_of_birth TEXT,
		phone TEXT,
		profile_picture TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		profile_id TEXT,
		type TEXT,
		title TEXT,
		message TEXT,
		created_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS admin_credentials (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL
	)`,
}

// Migrate creates the dashboard tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range schema {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) Select(ctx context.Context, table string, q backend.Query) ([]models.Record, error) {
	tx := s.db.WithContext(ctx).Table(table)
	if len(q.Where) > 0 {
		tx = tx.Where(q.Where)
	}
	var rows []map[string]any
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	out := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Record(r))
	}
	return backend.Shape(ctx, s, out, backend.Query{Columns: q.Columns, Joins: q.Joins})
}

func (s *Store) Update(ctx context.Context, table, id string, fields map[string]any) error {
	updates := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != "id" {
			updates[k] = v
		}
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Table(table).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", table, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", table, id, backend.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	err := s.db.WithContext(ctx).Exec("DELETE FROM ? WHERE id = ?", clause.Table{Name: table}, id).Error
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, table string, rows []map[string]any) ([]models.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	values := make([]map[string]any, 0, len(rows))
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		r := models.Record(row).Clone()
		if r.ID() == "" {
			r["id"] = uuid.NewString()
		} else {
			r["id"] = r.ID()
		}
		values = append(values, map[string]any(r))
		out = append(out, r.Clone())
	}
	if err := s.db.WithContext(ctx).Table(table).Create(values).Error; err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
