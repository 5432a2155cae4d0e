package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/tenantctl/internal/model"
	"github.com/edvin/tenantctl/internal/runner"
	"github.com/edvin/tenantctl/internal/storage"
)

const backupExt = "dump"

// Handlers implements the worker-side job kinds: backup, restore and
// module maintenance.
type Handlers struct {
	logger        zerolog.Logger
	runner        runner.Runner
	store         storage.ObjectStore
	prefix        string
	retentionDays int

	now func() time.Time
}

func NewHandlers(logger zerolog.Logger, r runner.Runner, store storage.ObjectStore, prefix string, retentionDays int) *Handlers {
	return &Handlers{
		logger:        logger,
		runner:        r,
		store:         store,
		prefix:        prefix,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// RegisterAll binds every job kind to its handler.
func (h *Handlers) RegisterAll(p *Processor) {
	p.Register(model.JobKindBackup, h.Backup)
	p.Register(model.JobKindRestore, h.Restore)
	p.Register(model.JobKindModules, h.Modules)
}

// Backup dumps the tenant database and uploads it under a dated object
// key. The retention rule for the backup prefix is reconciled before the
// upload so no archive is ever written outside an expiring prefix.
func (h *Handlers) Backup(ctx context.Context, job *model.Job) (string, error) {
	if err := h.store.EnsureRetention(ctx, h.prefix, h.retentionDays); err != nil {
		return "", fmt.Errorf("ensure retention: %w", err)
	}

	tmp, err := os.CreateTemp("", "tenantctl-backup-*."+backupExt)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := h.runner.DumpDatabase(ctx, job.TenantName, tmpPath); err != nil {
		return "", fmt.Errorf("dump database: %w", err)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()

	key := storage.ObjectKey(h.prefix, job.TenantName, h.now(), backupExt)
	if err := h.store.Put(ctx, key, f); err != nil {
		return "", fmt.Errorf("upload dump: %w", err)
	}

	h.logger.Info().Str("tenant", job.TenantName).Str("key", key).Msg("backup uploaded")
	return key, nil
}

// Restore downloads an archived dump and restores it into the tenant
// database, replacing existing objects.
func (h *Handlers) Restore(ctx context.Context, job *model.Job) (string, error) {
	var args model.RestoreArgs
	if err := json.Unmarshal(job.Args, &args); err != nil {
		return "", fmt.Errorf("decode restore args: %w", err)
	}
	if args.ObjectKey == "" {
		return "", fmt.Errorf("restore args missing object_key")
	}

	obj, err := h.store.Get(ctx, args.ObjectKey)
	if err != nil {
		return "", fmt.Errorf("download dump: %w", err)
	}
	defer obj.Close()

	tmp, err := os.CreateTemp("", "tenantctl-restore-*."+backupExt)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, obj); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write dump: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write dump: %w", err)
	}

	// The database may not exist yet when restoring onto a fresh host;
	// restore with --clean handles the case where it does.
	if err := h.runner.CreateDatabase(ctx, job.TenantName); err != nil {
		h.logger.Warn().Err(err).Str("tenant", job.TenantName).Msg("create database before restore")
	}

	if err := h.runner.RestoreDatabase(ctx, job.TenantName, tmpPath, true); err != nil {
		return "", fmt.Errorf("restore database: %w", err)
	}

	h.logger.Info().Str("tenant", job.TenantName).Str("key", args.ObjectKey).Msg("restore completed")
	return args.ObjectKey, nil
}

// Modules installs and then upgrades application modules on the tenant
// database. The first failing batch aborts the job; nothing after it
// runs.
func (h *Handlers) Modules(ctx context.Context, job *model.Job) (string, error) {
	var args model.ModulesArgs
	if err := json.Unmarshal(job.Args, &args); err != nil {
		return "", fmt.Errorf("decode modules args: %w", err)
	}
	if len(args.Install) == 0 && len(args.Upgrade) == 0 {
		return "", fmt.Errorf("modules args name nothing to install or upgrade")
	}

	if len(args.Install) > 0 {
		if err := h.runner.InstallModules(ctx, job.TenantName, args.Install); err != nil {
			return "", fmt.Errorf("install modules: %w", err)
		}
	}
	if len(args.Upgrade) > 0 {
		if err := h.runner.UpgradeModules(ctx, job.TenantName, args.Upgrade); err != nil {
			return "", fmt.Errorf("upgrade modules: %w", err)
		}
	}

	var parts []string
	if len(args.Install) > 0 {
		parts = append(parts, "installed "+strings.Join(args.Install, ","))
	}
	if len(args.Upgrade) > 0 {
		parts = append(parts, "upgraded "+strings.Join(args.Upgrade, ","))
	}
	return strings.Join(parts, "; "), nil
}
