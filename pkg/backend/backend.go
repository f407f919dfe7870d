// Package backend defines the boundary between the admin server and the
// hosted backend: a relational DataStore with join resolution and an
// Authenticator that verifies admin credentials.
//
// Implementations live in sub-packages:
//
//   - memory: in-process tables, optionally seeded from YAML
//   - sqlite: an embedded single-file store
//   - postgres: a Postgres database accessed through GORM
//   - surrealdb: a SurrealDB instance, including record-access sign-in
package backend

import (
	"context"
	"errors"

	"github.com/rentease/admin/pkg/models"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnknownTable       = errors.New("unknown table")
)

// Query selects rows of one table.
type Query struct {
	// Columns limits the returned fields. Empty returns every field.
	Columns []string
	// Joins embed related rows under their alias.
	Joins []models.Join
	// Where keeps rows whose fields equal every given value.
	Where map[string]any
}

type DataStore interface {
	Select(ctx context.Context, table string, q Query) ([]models.Record, error)
	// Update merges fields into the row with id. It returns ErrNotFound when
	// no such row exists.
	Update(ctx context.Context, table, id string, fields map[string]any) error
	// Delete removes the row with id. Deleting a missing row is not an error.
	Delete(ctx context.Context, table, id string) error
	// Insert adds rows, assigning an id to rows without one, and returns them.
	Insert(ctx context.Context, table string, rows []map[string]any) ([]models.Record, error)
	Close() error
}

// Authenticator verifies and registers admin credentials.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (models.User, error)
	SignUp(ctx context.Context, email, password string) (models.User, error)
}

// Migrator is implemented by stores that create their schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// MatchWhere reports whether r carries every value in where.
func MatchWhere(r models.Record, where map[string]any) bool {
	for k, want := range where {
		got, ok := r[k]
		if !ok || models.Stringify(got) != models.Stringify(want) {
			return false
		}
	}
	return true
}

// Tables lists every table the admin server reads or writes.
func Tables() []string {
	return []string{
		models.TableProfiles,
		models.TableProducts,
		models.TableDonations,
		models.TableDamageReports,
		models.TableQueries,
		models.TableSharedOwnership,
		models.TableAdmins,
		models.TableNotifications,
		CredentialsTable,
	}
}
