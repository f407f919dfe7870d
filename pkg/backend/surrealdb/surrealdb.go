// Package surrealdb implements [github.com/rentease/admin/pkg/backend.DataStore]
// and [github.com/rentease/admin/pkg/backend.Authenticator] on SurrealDB.
//
// Every statement is parameterised: table names go through type::table and
// type::thing, field names through type::field, and values through $vars.
// Record ids are returned as their plain key with record::id so the rest of
// the server sees the same string ids as with the other stores.
//
// Admin credentials use a record access method (see [Store.Migrate]) so
// passwords are hashed and verified by SurrealDB itself.
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	surrealdb "github.com/surrealdb/surrealdb.go"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/models"
)

type Config struct {
	URL       string `mapstructure:"url"`
	Namespace string `mapstructure:"namespace"`
	Database  string `mapstructure:"database"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	// Access is the record access method used to sign admins in.
	Access string `mapstructure:"access"`
}

type Store struct {
	db  *surrealdb.DB
	cfg Config
}

// Open connects, signs in as the configured system user, and selects the
// namespace and database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}
	if _, err := db.SignIn(ctx, surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}
	return &Store{db: db, cfg: cfg}, nil
}

// Migrate defines the credentials table and the record access method.
func (s *Store) Migrate(ctx context.Context) error {
	var b strings.Builder
	for _, t := range backend.Tables() {
		fmt.Fprintf(&b, "DEFINE TABLE IF NOT EXISTS %s SCHEMALESS;\n", t)
	}
	b.WriteString(`DEFINE INDEX IF NOT EXISTS admin_credentials_email ON admin_credentials FIELDS email UNIQUE;
DEFINE ACCESS OVERWRITE ` + s.cfg.Access + ` ON DATABASE TYPE RECORD
	SIGNUP (
		CREATE admin_credentials CONTENT {
			email: string::lowercase($user),
			password_hash: crypto::argon2::generate($pass)
		}
	)
	SIGNIN (
		SELECT * FROM admin_credentials
		WHERE email = string::lowercase($user) AND crypto::argon2::compare(password_hash, $pass)
	)
	DURATION FOR SESSION 12h;`)

	if _, err := surrealdb.Query[any](ctx, s.db, b.String(), nil); err != nil {
		return fmt.Errorf("define schema: %w", err)
	}
	return nil
}

func (s *Store) Select(ctx context.Context, table string, q backend.Query) ([]models.Record, error) {
	sql := "SELECT *, record::id(id) AS id FROM type::table($tb)"
	vars := map[string]any{"tb": table}
	var conds []string
	i := 0
	for field, value := range q.Where {
		if field == "id" {
			conds = append(conds, fmt.Sprintf("id = type::thing($tb, $v%d)", i))
		} else {
			conds = append(conds, fmt.Sprintf("type::field($f%d) = $v%d", i, i))
			vars[fmt.Sprintf("f%d", i)] = field
		}
		vars[fmt.Sprintf("v%d", i)] = value
		i++
	}
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := queryRows(ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return backend.Shape(ctx, s, rows, backend.Query{Columns: q.Columns, Joins: q.Joins})
}

func (s *Store) Update(ctx context.Context, table, id string, fields map[string]any) error {
	data := withoutID(fields)
	rows, err := queryRows(ctx, s.db,
		"UPDATE type::thing($tb, $id) MERGE $data RETURN AFTER",
		map[string]any{"tb": table, "id": id, "data": data})
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s %s: %w", table, id, backend.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	_, err := surrealdb.Query[any](ctx, s.db, "DELETE type::thing($tb, $id)", map[string]any{"tb": table, "id": id})
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, table string, rows []map[string]any) ([]models.Record, error) {
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		id := models.Record(row).ID()
		if id == "" {
			id = uuid.NewString()
		}
		_, err := surrealdb.Query[any](ctx, s.db,
			"CREATE type::thing($tb, $id) CONTENT $data",
			map[string]any{"tb": table, "id": id, "data": withoutID(row)})
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		r := models.Record(withoutID(row))
		r["id"] = id
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// Authenticator signs admins in through the record access method defined by
// Migrate. Each call uses its own connection so the shared system session of
// the Store is never replaced by an admin session.
type Authenticator struct {
	cfg Config
}

func NewAuthenticator(cfg Config) *Authenticator {
	return &Authenticator{cfg: cfg}
}

func (a *Authenticator) SignIn(ctx context.Context, email, password string) (models.User, error) {
	return a.authenticate(ctx, email, password, false)
}

func (a *Authenticator) SignUp(ctx context.Context, email, password string) (models.User, error) {
	return a.authenticate(ctx, email, password, true)
}

func (a *Authenticator) authenticate(ctx context.Context, email, password string, signUp bool) (models.User, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, a.cfg.URL)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}
	defer db.Close(ctx)

	// Record access credentials in the RPC wire shape.
	auth := map[string]any{
		"NS":   a.cfg.Namespace,
		"DB":   a.cfg.Database,
		"AC":   a.cfg.Access,
		"user": email,
		"pass": password,
	}
	if signUp {
		if _, err := db.SignUp(ctx, auth); err != nil {
			return models.User{}, fmt.Errorf("%w: %v", backend.ErrEmailTaken, err)
		}
	} else if _, err := db.SignIn(ctx, auth); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", backend.ErrInvalidCredentials, err)
	}

	res, err := surrealdb.Query[string](ctx, db, "RETURN record::id($auth.id)", nil)
	if err != nil {
		return models.User{}, fmt.Errorf("resolve session user: %w", err)
	}
	if res == nil || len(*res) == 0 || (*res)[0].Result == "" {
		return models.User{}, backend.ErrInvalidCredentials
	}
	return models.User{ID: (*res)[0].Result, Email: strings.ToLower(strings.TrimSpace(email))}, nil
}

func queryRows(ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) ([]models.Record, error) {
	res, err := surrealdb.Query[[]map[string]any](ctx, db, sql, vars)
	if err != nil {
		return nil, err
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	out := make([]models.Record, 0, len((*res)[0].Result))
	for _, r := range (*res)[0].Result {
		out = append(out, models.Record(r))
	}
	return out, nil
}

func withoutID(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != "id" {
			out[k] = v
		}
	}
	return out
}
