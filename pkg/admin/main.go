package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rentease/admin/pkg/analytics"
	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/models"
)

// Main is the entry point of rentease-admin. It parses args, builds the
// application and executes the selected command. It can be called directly
// from tests without building the binary.
//
//	rentease-admin run
//	rentease-admin --backend surrealdb migrate
//	rentease-admin --email a@b.c --password secret --full-name Ada create-admin
//	rentease-admin --backend sqlite stats
func Main(ctx context.Context, args []string) error {
	return main(ctx, args, os.Stdout)
}

func main(ctx context.Context, args []string, stdout io.Writer) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *RunCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case *MigrateCommand:
		if err := app.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case *CreateAdminCommand:
		admin, err := app.CreateAdmin(ctx, CreateAdminRequest{
			FullName:        c.FullName,
			Email:           c.Email,
			Password:        c.Password,
			ConfirmPassword: c.Password,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "created admin %s (%s)\n", admin.FullName, admin.ID)
	case *StatsCommand:
		stats, err := analytics.Collect(ctx, app.store)
		if err != nil {
			return fmt.Errorf("stats failed: %w", err)
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}
	return nil
}

// Migrate creates the schema of backends that need one.
func (a *App) Migrate(ctx context.Context) error {
	m, ok := a.store.(backend.Migrator)
	if !ok {
		a.log.Info().Str("backend", a.config.Backend.Driver).Msg("backend has no schema to migrate")
		return nil
	}
	if err := m.Migrate(ctx); err != nil {
		return err
	}
	a.log.Info().Str("backend", a.config.Backend.Driver).Msg("schema migrated")
	return nil
}

// CreateAdminRequest is the payload of POST /api/admins.
type CreateAdminRequest struct {
	FullName        string `json:"full_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password"`
}

var (
	ErrFullNameRequired = errors.New("Full name is required.")
	ErrPasswordMismatch = errors.New("Passwords don't match.")
)

// AdminRecordError reports an admin whose credentials were registered but
// whose admins row could not be written.
type AdminRecordError struct {
	UserID string
	Err    error
}

func (e *AdminRecordError) Error() string {
	return "Admin signup succeeded, but failed to create admin record: " + e.Err.Error()
}

func (e *AdminRecordError) Unwrap() error { return e.Err }

// CreateAdmin registers credentials for a new admin and writes its admins
// row.
func (a *App) CreateAdmin(ctx context.Context, req CreateAdminRequest) (models.Admin, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" {
		return models.Admin{}, ErrFullNameRequired
	}
	if req.Password != req.ConfirmPassword {
		return models.Admin{}, ErrPasswordMismatch
	}
	if err := a.validate.Struct(req); err != nil {
		return models.Admin{}, err
	}

	user, err := a.auth.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return models.Admin{}, err
	}
	admin := models.Admin{ID: user.ID, FullName: req.FullName}
	row := admin.Fields()
	row["id"] = admin.ID
	if _, err := a.store.Insert(ctx, models.TableAdmins, []map[string]any{row}); err != nil {
		a.log.Error().Err(err).Str("user_id", user.ID).Msg("admin row not created")
		return models.Admin{}, &AdminRecordError{UserID: user.ID, Err: err}
	}
	a.log.Info().Str("user_id", user.ID).Msg("admin created")
	return admin, nil
}
