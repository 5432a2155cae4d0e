package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/tenantctl/internal/model"
	"github.com/edvin/tenantctl/internal/notify"
	"github.com/edvin/tenantctl/internal/runner"
)

// Registry is the tenant metadata store the coordinator mutates.
type Registry interface {
	Get(ctx context.Context, name string) (*model.Tenant, error)
	Upsert(ctx context.Context, t *model.Tenant) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]model.Tenant, error)
}

// JobEnqueuer fronts the async job pipeline.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, kind, tenantName string, args any) (*model.Job, error)
}

// Auditor appends to the immutable audit trail.
type Auditor interface {
	Append(ctx context.Context, actor, action, target string, metadata map[string]any) error
}

// Audit action names.
const (
	ActionProvision      = "tenant.provision"
	ActionDelete         = "tenant.delete"
	ActionQuota          = "tenant.quota"
	ActionSuspend        = "tenant.suspend"
	ActionUnsuspend      = "tenant.unsuspend"
	ActionEnqueue        = "job.enqueue"
	ActionBillingIgnored = "billing.ignored"
)

var suspendEvents = map[string]bool{
	model.EventSubscriptionPaused: true,
	model.EventPaymentFailed:      true,
	model.EventSubscriptionCancel: true,
}

var unsuspendEvents = map[string]bool{
	model.EventInvoicePaid:         true,
	model.EventSubscriptionResumed: true,
}

// Coordinator is the only component that translates billing and quota
// signals into tenant state changes. Every state change is paired with
// an audit record; operations rejected before any side effect are not
// audited.
type Coordinator struct {
	logger   zerolog.Logger
	registry Registry
	jobs     JobEnqueuer
	auditor  Auditor
	runner   runner.Runner
	notifier notify.Notifier
}

func NewCoordinator(logger zerolog.Logger, registry Registry, jobs JobEnqueuer, auditor Auditor, r runner.Runner, notifier notify.Notifier) *Coordinator {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Coordinator{
		logger:   logger,
		registry: registry,
		jobs:     jobs,
		auditor:  auditor,
		runner:   r,
		notifier: notifier,
	}
}

// audit appends a record; an audit write failure never fails the
// operation it describes, it is logged instead.
func (c *Coordinator) audit(ctx context.Context, actor, action, target string, metadata map[string]any) {
	if err := c.auditor.Append(ctx, actor, action, target, metadata); err != nil {
		c.logger.Error().Err(err).Str("action", action).Str("target", target).Msg("append audit record")
	}
}

// ProvisionTenant creates the tenant database, runs initial setup and
// registers the tenant with the default quota. Provisioning an existing
// name fails with ErrConflict, never silently reprovisions.
func (c *Coordinator) ProvisionTenant(ctx context.Context, actor, name, notes string) (*model.Tenant, error) {
	if !runner.ValidName(name) {
		return nil, fmt.Errorf("%w: invalid tenant name %q", ErrInvalidInput, name)
	}

	if _, err := c.registry.Get(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: tenant %s already exists", ErrConflict, name)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing tenant: %w", err)
	}

	if err := c.runner.CreateDatabase(ctx, name); err != nil {
		c.audit(ctx, actor, ActionProvision, name, map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("%w: create database: %v", ErrUnavailable, err)
	}
	if err := c.runner.InitDatabase(ctx, name); err != nil {
		c.audit(ctx, actor, ActionProvision, name, map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("%w: init database: %v", ErrUnavailable, err)
	}

	t := &model.Tenant{
		Name:       name,
		QuotaBytes: model.DefaultQuotaBytes,
		Notes:      notes,
	}
	if err := c.registry.Upsert(ctx, t); err != nil {
		return nil, fmt.Errorf("register tenant: %w", err)
	}

	c.audit(ctx, actor, ActionProvision, name, nil)
	c.logger.Info().Str("tenant", name).Str("actor", actor).Msg("tenant provisioned")
	return t, nil
}

// DeleteTenant drops the tenant database and then removes the registry
// record. The record survives a failed drop so the registry never claims
// a tenant is gone while its database still exists.
func (c *Coordinator) DeleteTenant(ctx context.Context, actor, name string) error {
	if _, err := c.registry.Get(ctx, name); err != nil {
		return err
	}

	if err := c.runner.DropDatabase(ctx, name); err != nil {
		c.audit(ctx, actor, ActionDelete, name, map[string]any{"error": err.Error()})
		return fmt.Errorf("%w: drop database: %v", ErrUnavailable, err)
	}

	if err := c.registry.Delete(ctx, name); err != nil {
		return fmt.Errorf("remove tenant record: %w", err)
	}

	c.audit(ctx, actor, ActionDelete, name, nil)
	c.logger.Info().Str("tenant", name).Str("actor", actor).Msg("tenant deleted")
	return nil
}

// SetQuota sets the tenant's storage quota with create-or-update
// semantics.
func (c *Coordinator) SetQuota(ctx context.Context, actor, name string, quotaBytes int64) (*model.Tenant, error) {
	if quotaBytes < 0 {
		return nil, fmt.Errorf("%w: quota must not be negative", ErrInvalidInput)
	}
	if !runner.ValidName(name) {
		return nil, fmt.Errorf("%w: invalid tenant name %q", ErrInvalidInput, name)
	}

	t, err := c.registry.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		t = &model.Tenant{Name: name}
	}

	t.QuotaBytes = quotaBytes
	if err := c.registry.Upsert(ctx, t); err != nil {
		return nil, fmt.Errorf("update quota: %w", err)
	}

	c.audit(ctx, actor, ActionQuota, name, map[string]any{"quota_bytes": quotaBytes})
	return t, nil
}

// CheckQuota compares an observed size against the tenant's quota and
// alerts when it is strictly above it. Quota breach is observation-only:
// it never suspends, only billing events and operators do.
func (c *Coordinator) CheckQuota(ctx context.Context, name string, observedBytes int64) (bool, error) {
	t, err := c.registry.Get(ctx, name)
	if err != nil {
		return false, err
	}

	if observedBytes <= t.QuotaBytes {
		return false, nil
	}

	c.notifier.Alert(ctx, fmt.Sprintf("tenant %s over quota", name),
		fmt.Sprintf("tenant %s uses %d bytes of a %d byte quota", name, observedBytes, t.QuotaBytes))
	return true, nil
}

// SuspendTenant denies new connections to the tenant database and marks
// the tenant suspended. Data is untouched, so UnsuspendTenant is a pure
// reversal.
func (c *Coordinator) SuspendTenant(ctx context.Context, actor, name, reason string) error {
	return c.setSuspended(ctx, actor, name, reason, true)
}

// UnsuspendTenant restores connectivity and clears the suspended flag.
func (c *Coordinator) UnsuspendTenant(ctx context.Context, actor, name, reason string) error {
	return c.setSuspended(ctx, actor, name, reason, false)
}

func (c *Coordinator) setSuspended(ctx context.Context, actor, name, reason string, suspended bool) error {
	action := ActionUnsuspend
	if suspended {
		action = ActionSuspend
	}

	t, err := c.registry.Get(ctx, name)
	if err != nil {
		return err
	}

	if suspended {
		err = c.runner.BlockConnections(ctx, name)
	} else {
		err = c.runner.AllowConnections(ctx, name)
	}
	if err != nil {
		c.audit(ctx, actor, action, name, map[string]any{"reason": reason, "error": err.Error()})
		return fmt.Errorf("%w: change connectivity: %v", ErrUnavailable, err)
	}

	t.Suspended = suspended
	if err := c.registry.Upsert(ctx, t); err != nil {
		return fmt.Errorf("update tenant state: %w", err)
	}

	c.audit(ctx, actor, action, name, map[string]any{"reason": reason})
	c.notifier.Alert(ctx, fmt.Sprintf("tenant %s %sed", name, trimSuspendVerb(action)),
		fmt.Sprintf("tenant %s was %sed by %s: %s", name, trimSuspendVerb(action), actor, reason))
	c.logger.Info().Str("tenant", name).Str("actor", actor).Bool("suspended", suspended).Msg("tenant suspension changed")
	return nil
}

func trimSuspendVerb(action string) string {
	switch action {
	case ActionSuspend:
		return "suspend"
	default:
		return "unsuspend"
	}
}

// ApplyBillingEvent turns a verified canonical billing event into a
// suspend or unsuspend transition. Events that resolve to no tenant or
// to no known action are recorded in the audit trail and otherwise
// ignored.
func (c *Coordinator) ApplyBillingEvent(ctx context.Context, event *model.BillingEvent) error {
	actor := "billing:" + event.Provider

	target := event.TenantName
	if target == "" {
		target = "-"
	}

	if event.TenantName == "" || (!suspendEvents[event.Type] && !unsuspendEvents[event.Type]) {
		c.audit(ctx, actor, ActionBillingIgnored, target, map[string]any{"event_type": event.Type})
		return nil
	}

	var err error
	if suspendEvents[event.Type] {
		err = c.SuspendTenant(ctx, actor, event.TenantName, event.Type)
	} else {
		err = c.UnsuspendTenant(ctx, actor, event.TenantName, event.Type)
	}
	if errors.Is(err, ErrNotFound) {
		// A verified event naming a tenant the registry does not know is
		// unactionable, not a failure: providers retry non-2xx responses
		// forever.
		c.audit(ctx, actor, ActionBillingIgnored, target,
			map[string]any{"event_type": event.Type, "reason": "unknown tenant"})
		return nil
	}
	return err
}

// EnqueueBackup queues a backup job for the tenant.
func (c *Coordinator) EnqueueBackup(ctx context.Context, actor, name string) (*model.Job, error) {
	return c.enqueue(ctx, actor, name, model.JobKindBackup, model.BackupArgs{})
}

// EnqueueRestore queues a restore of an archived backup object into the
// tenant database.
func (c *Coordinator) EnqueueRestore(ctx context.Context, actor, name, objectKey string) (*model.Job, error) {
	if objectKey == "" {
		return nil, fmt.Errorf("%w: object key is required", ErrInvalidInput)
	}
	return c.enqueue(ctx, actor, name, model.JobKindRestore, model.RestoreArgs{ObjectKey: objectKey})
}

// EnqueueModules queues module installation and upgrades on the tenant
// database.
func (c *Coordinator) EnqueueModules(ctx context.Context, actor, name string, install, upgrade []string) (*model.Job, error) {
	if len(install) == 0 && len(upgrade) == 0 {
		return nil, fmt.Errorf("%w: nothing to install or upgrade", ErrInvalidInput)
	}
	for _, m := range append(append([]string{}, install...), upgrade...) {
		if !runner.ValidName(m) {
			return nil, fmt.Errorf("%w: invalid module name %q", ErrInvalidInput, m)
		}
	}
	return c.enqueue(ctx, actor, name, model.JobKindModules, model.ModulesArgs{Install: install, Upgrade: upgrade})
}

func (c *Coordinator) enqueue(ctx context.Context, actor, name, kind string, args any) (*model.Job, error) {
	if _, err := c.registry.Get(ctx, name); err != nil {
		return nil, err
	}

	job, err := c.jobs.Enqueue(ctx, kind, name, args)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s job: %w", kind, err)
	}

	c.audit(ctx, actor, ActionEnqueue, name, map[string]any{"kind": kind, "job_id": job.ID})
	return job, nil
}
