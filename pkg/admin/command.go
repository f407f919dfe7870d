package admin

// Command is a sub-command selected on the command line. Main dispatches on
// its concrete type.
type Command interface {
	Name() string
}

// RunCommand starts the HTTP server.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }

// MigrateCommand creates the backend schema.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }

// CreateAdminCommand registers credentials and an admins row from the
// command line, for bootstrapping the first admin.
type CreateAdminCommand struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	FullName string `validate:"required"`
}

func (c *CreateAdminCommand) Name() string { return "create-admin" }

// StatsCommand prints the dashboard analytics as JSON.
type StatsCommand struct{}

func (c *StatsCommand) Name() string { return "stats" }
