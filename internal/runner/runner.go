package runner

import "context"

// Result holds the structured outcome of one privileged command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes privileged tenant-database and service operations with
// typed arguments. Implementations never build shell strings from caller
// input; a nonzero exit is always an error.
type Runner interface {
	CreateDatabase(ctx context.Context, name string) error
	InitDatabase(ctx context.Context, name string) error
	DropDatabase(ctx context.Context, name string) error

	// BlockConnections denies new connections to the tenant database
	// without touching its data; AllowConnections is the exact reversal.
	BlockConnections(ctx context.Context, name string) error
	AllowConnections(ctx context.Context, name string) error

	DumpDatabase(ctx context.Context, name, dumpPath string) error
	RestoreDatabase(ctx context.Context, name, dumpPath string, clean bool) error

	InstallModules(ctx context.Context, name string, modules []string) error
	UpgradeModules(ctx context.Context, name string, modules []string) error

	RestartService(ctx context.Context) error
}
