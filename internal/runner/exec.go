package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/tenantctl/internal/config"
)

// validNameRe matches only alphanumerics, underscore, and hyphen. Every
// database name passes through this before it reaches a command line or a
// SQL statement.
var validNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidName reports whether name is a legal tenant database name.
func ValidName(name string) bool {
	return validNameRe.MatchString(name)
}

// ExecRunner runs tenant operations via the postgres client tools and the
// hosted application's management CLI.
type ExecRunner struct {
	logger  zerolog.Logger
	host    string
	port    string
	user    string
	cliBin  string
	service string
}

func NewExecRunner(logger zerolog.Logger, cfg *config.Config) *ExecRunner {
	return &ExecRunner{
		logger:  logger.With().Str("component", "command-runner").Logger(),
		host:    cfg.PGHost,
		port:    cfg.PGPort,
		user:    cfg.PGUser,
		cliBin:  cfg.AppCLIBin,
		service: cfg.AppService,
	}
}

func (r *ExecRunner) connArgs() []string {
	return []string{"-h", r.host, "-p", r.port, "-U", r.user}
}

// run executes a command with an argument vector and returns the structured
// result. Nonzero exits come back as errors carrying stderr.
func (r *ExecRunner) run(ctx context.Context, bin string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug().Str("bin", bin).Strs("args", args).Msg("executing command")
	err := cmd.Run()

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	res := &Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if err != nil {
		return res, fmt.Errorf("%s failed: %w: %s", bin, err, strings.TrimSpace(stderr.String()))
	}
	return res, nil
}

func checkName(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("invalid database name %q", name)
	}
	return nil
}

func (r *ExecRunner) CreateDatabase(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	args := append(r.connArgs(), name)
	if _, err := r.run(ctx, "createdb", args...); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}

// InitDatabase runs the application's first-time setup against a freshly
// created database. Skipped when no management CLI is configured.
func (r *ExecRunner) InitDatabase(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if r.cliBin == "" {
		r.logger.Warn().Str("database", name).Msg("no management CLI configured, skipping init")
		return nil
	}
	if _, err := r.run(ctx, r.cliBin, "-d", name, "-i", "base", "--stop-after-init"); err != nil {
		return fmt.Errorf("init database %s: %w", name, err)
	}
	return nil
}

func (r *ExecRunner) DropDatabase(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	args := append(r.connArgs(), "--if-exists", name)
	if _, err := r.run(ctx, "dropdb", args...); err != nil {
		return fmt.Errorf("drop database %s: %w", name, err)
	}
	return nil
}

// psql runs a statement against the maintenance database. The statement is
// built only from regex-validated names, never from raw caller input.
func (r *ExecRunner) psql(ctx context.Context, stmt string) error {
	args := append(r.connArgs(), "-d", "postgres", "-c", stmt)
	_, err := r.run(ctx, "psql", args...)
	return err
}

func (r *ExecRunner) BlockConnections(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := r.psql(ctx, fmt.Sprintf(`ALTER DATABASE "%s" WITH ALLOW_CONNECTIONS false`, name)); err != nil {
		return fmt.Errorf("block connections to %s: %w", name, err)
	}
	// Existing sessions are terminated so suspension takes effect now.
	stmt := fmt.Sprintf(`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = '%s'`, name)
	if err := r.psql(ctx, stmt); err != nil {
		return fmt.Errorf("terminate sessions of %s: %w", name, err)
	}
	return nil
}

func (r *ExecRunner) AllowConnections(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := r.psql(ctx, fmt.Sprintf(`ALTER DATABASE "%s" WITH ALLOW_CONNECTIONS true`, name)); err != nil {
		return fmt.Errorf("allow connections to %s: %w", name, err)
	}
	return nil
}

func (r *ExecRunner) DumpDatabase(ctx context.Context, name, dumpPath string) error {
	if err := checkName(name); err != nil {
		return err
	}
	args := append(r.connArgs(), "-Fc", "-f", dumpPath, name)
	if _, err := r.run(ctx, "pg_dump", args...); err != nil {
		return fmt.Errorf("dump database %s: %w", name, err)
	}
	return nil
}

func (r *ExecRunner) RestoreDatabase(ctx context.Context, name, dumpPath string, clean bool) error {
	if err := checkName(name); err != nil {
		return err
	}
	args := append(r.connArgs(), "-d", name)
	if clean {
		args = append(args, "--clean", "--if-exists")
	}
	args = append(args, dumpPath)
	if _, err := r.run(ctx, "pg_restore", args...); err != nil {
		return fmt.Errorf("restore database %s: %w", name, err)
	}
	return nil
}

func (r *ExecRunner) InstallModules(ctx context.Context, name string, modules []string) error {
	return r.moduleOp(ctx, name, "-i", modules)
}

func (r *ExecRunner) UpgradeModules(ctx context.Context, name string, modules []string) error {
	return r.moduleOp(ctx, name, "-u", modules)
}

func (r *ExecRunner) moduleOp(ctx context.Context, name, flag string, modules []string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if len(modules) == 0 {
		return nil
	}
	if r.cliBin == "" {
		return fmt.Errorf("no management CLI configured")
	}
	for _, m := range modules {
		if !ValidName(m) {
			return fmt.Errorf("invalid module name %q", m)
		}
	}
	if _, err := r.run(ctx, r.cliBin, "-d", name, flag, strings.Join(modules, ","), "--stop-after-init"); err != nil {
		return fmt.Errorf("modules %s on %s: %w", flag, name, err)
	}
	return nil
}

func (r *ExecRunner) RestartService(ctx context.Context) error {
	if r.service == "" {
		r.logger.Warn().Msg("no service unit configured, skipping restart")
		return nil
	}
	if _, err := r.run(ctx, "systemctl", "restart", r.service); err != nil {
		return fmt.Errorf("restart service %s: %w", r.service, err)
	}
	return nil
}
