package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/tenantctl/internal/model"
)

// memRegistry is an in-memory Registry for coordinator tests.
type memRegistry struct {
	tenants map[string]model.Tenant
}

func newMemRegistry(tenants ...model.Tenant) *memRegistry {
	r := &memRegistry{tenants: make(map[string]model.Tenant)}
	for _, t := range tenants {
		r.tenants[t.Name] = t
	}
	return r
}

func (r *memRegistry) Get(_ context.Context, name string) (*model.Tenant, error) {
	t, ok := r.tenants[name]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", name, ErrNotFound)
	}
	copied := t
	return &copied, nil
}

func (r *memRegistry) Upsert(_ context.Context, t *model.Tenant) error {
	r.tenants[t.Name] = *t
	return nil
}

func (r *memRegistry) Delete(_ context.Context, name string) error {
	delete(r.tenants, name)
	return nil
}

func (r *memRegistry) List(context.Context) ([]model.Tenant, error) {
	var out []model.Tenant
	for _, t := range r.tenants {
		out = append(out, t)
	}
	return out, nil
}

type fakeEnqueuer struct {
	jobs []model.Job
	err  error
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, kind, tenantName string, _ any) (*model.Job, error) {
	if e.err != nil {
		return nil, e.err
	}
	job := model.Job{ID: fmt.Sprintf("job-%d", len(e.jobs)+1), Kind: kind, TenantName: tenantName, Status: model.JobStatusQueued}
	e.jobs = append(e.jobs, job)
	return &job, nil
}

type auditEntry struct {
	actor, action, target string
	metadata              map[string]any
}

type fakeAuditor struct {
	entries []auditEntry
}

func (a *fakeAuditor) Append(_ context.Context, actor, action, target string, metadata map[string]any) error {
	a.entries = append(a.entries, auditEntry{actor, action, target, metadata})
	return nil
}

func (a *fakeAuditor) byAction(action string) []auditEntry {
	var out []auditEntry
	for _, e := range a.entries {
		if e.action == action {
			out = append(out, e)
		}
	}
	return out
}

// stubRunner records privileged calls and fails the ones named in fail.
type stubRunner struct {
	calls []string
	fail  map[string]error
}

func (r *stubRunner) call(name string) error {
	r.calls = append(r.calls, name)
	if r.fail != nil {
		return r.fail[name]
	}
	return nil
}

func (r *stubRunner) CreateDatabase(context.Context, string) error       { return r.call("create") }
func (r *stubRunner) InitDatabase(context.Context, string) error         { return r.call("init") }
func (r *stubRunner) DropDatabase(context.Context, string) error         { return r.call("drop") }
func (r *stubRunner) BlockConnections(context.Context, string) error     { return r.call("block") }
func (r *stubRunner) AllowConnections(context.Context, string) error     { return r.call("allow") }
func (r *stubRunner) DumpDatabase(context.Context, string, string) error { return r.call("dump") }
func (r *stubRunner) RestoreDatabase(context.Context, string, string, bool) error {
	return r.call("restore")
}
func (r *stubRunner) InstallModules(context.Context, string, []string) error { return r.call("install") }
func (r *stubRunner) UpgradeModules(context.Context, string, []string) error { return r.call("upgrade") }
func (r *stubRunner) RestartService(context.Context) error                   { return r.call("restart") }

type fakeAlerter struct {
	alerts []string
}

func (a *fakeAlerter) Alert(_ context.Context, subject, _ string) {
	a.alerts = append(a.alerts, subject)
}

type coordFixture struct {
	registry *memRegistry
	enqueuer *fakeEnqueuer
	auditor  *fakeAuditor
	runner   *stubRunner
	alerter  *fakeAlerter
	coord    *Coordinator
}

func newCoordFixture(tenants ...model.Tenant) *coordFixture {
	f := &coordFixture{
		registry: newMemRegistry(tenants...),
		enqueuer: &fakeEnqueuer{},
		auditor:  &fakeAuditor{},
		runner:   &stubRunner{},
		alerter:  &fakeAlerter{},
	}
	f.coord = NewCoordinator(zerolog.Nop(), f.registry, f.enqueuer, f.auditor, f.runner, f.alerter)
	return f
}

func activeTenant(name string) model.Tenant {
	return model.Tenant{Name: name, QuotaBytes: model.DefaultQuotaBytes}
}

func TestProvisionThenGetHasDefaults(t *testing.T) {
	f := newCoordFixture()
	ctx := context.Background()

	created, err := f.coord.ProvisionTenant(ctx, "ops", "acme_01", "pilot")
	require.NoError(t, err)

	got, err := f.registry.Get(ctx, "acme_01")
	require.NoError(t, err)
	assert.False(t, got.Suspended)
	assert.Equal(t, int64(model.DefaultQuotaBytes), got.QuotaBytes)
	assert.Equal(t, created.Name, got.Name)

	assert.Equal(t, []string{"create", "init"}, f.runner.calls)
	require.Len(t, f.auditor.byAction(ActionProvision), 1)
}

func TestProvisionRejectsInvalidName(t *testing.T) {
	f := newCoordFixture()

	_, err := f.coord.ProvisionTenant(context.Background(), "ops", "acme; DROP TABLE tenants", "")
	require.ErrorIs(t, err, ErrInvalidInput)

	// Rejected before any side effect: no runner call, no audit record.
	assert.Empty(t, f.runner.calls)
	assert.Empty(t, f.auditor.entries)
}

func TestProvisionExistingNameConflicts(t *testing.T) {
	f := newCoordFixture(activeTenant("acme"))

	_, err := f.coord.ProvisionTenant(context.Background(), "ops", "acme", "")
	require.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, f.runner.calls)
}

func TestProvisionCreateFailureIsAudited(t *testing.T) {
	f := newCoordFixture()
	f.runner.fail = map[string]error{"create": fmt.Errorf("createdb exited 1")}

	_, err := f.coord.ProvisionTenant(context.Background(), "ops", "acme", "")
	require.ErrorIs(t, err, ErrUnavailable)

	assert.NotContains(t, f.registry.tenants, "acme")
	entries := f.auditor.byAction(ActionProvision)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].metadata["error"], "createdb")
}

func TestDeleteDropsBeforeRegistryRemoval(t *testing.T) {
	f := newCoordFixture(activeTenant("acme"))
	f.runner.fail = map[string]error{"drop": fmt.Errorf("database in use")}

	err := f.coord.DeleteTenant(context.Background(), "ops", "acme")
	require.ErrorIs(t, err, ErrUnavailable)

	// A failed drop leaves the registry consistent with reality.
	assert.Contains(t, f.registry.tenants, "acme")
}

func TestDeleteTenant(t *testing.T) {
	f := newCoordFixture(activeTenant("acme"))

	require.NoError(t, f.coord.DeleteTenant(context.Background(), "ops", "acme"))
	assert.NotContains(t, f.registry.tenants, "acme")
	assert.Equal(t, []string{"drop"}, f.runner.calls)
	require.Len(t, f.auditor.byAction(ActionDelete), 1)
}

func TestDeleteMissingTenant(t *testing.T) {
	f := newCoordFixture()
	err := f.coord.DeleteTenant(context.Background(), "ops", "ghost")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.runner.calls)
}

func TestSetQuotaIsIdempotent(t *testing.T) {
	f := newCoordFixture(activeTenant("acme"))
	ctx := context.Background()

	first, err := f.coord.SetQuota(ctx, "ops", "acme", 10)
	require.NoError(t, err)
	second, err := f.coord.SetQuota(ctx, "ops", "acme", 10)
	require.NoError(t, err)

	assert.Equal(t, first.QuotaBytes, second.QuotaBytes)
	assert.Equal(t, int64(10), f.registry.tenants["acme"].QuotaBytes)
}

func TestSetQuotaCreatesMissingRecord(t *testing.T) {
	f := newCoordFixture()

	tenant, err := f.coord.SetQuota(context.Background(), "ops", "fresh", 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), tenant.QuotaBytes)
	assert.Contains(t, f.registry.tenants, "fresh")
}

func TestSetQuotaRejectsNegative(t *testing.T) {
	f := newCoordFixture(activeTenant("acme"))

	_, err := f.coord.SetQuota(context.Background(), "ops", "acme", -1)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, f.auditor.entries)
}

func TestCheckQuotaAlertsOnlyStrictlyAbove(t *testing.T) {
	tenant := activeTenant("acme")
	tenant.QuotaBytes = 100
	f := newCoordFixture(tenant)
	ctx := context.Background()

	exceeded, err := f.coord.CheckQuota(ctx, "acme", 100)
	require.NoError(t, err)
	assert.False(t, exceeded, "observed equal to quota is not a breach")
	assert.Empty(t, f.alerter.alerts)

	exceeded, err = f.coord.CheckQuota(ctx, "acme", 101)
	require.NoError(t, err)
	assert.True(t, exceeded)
	require.Len(t, f.alerter.alerts, 1)

	// Quota breach is observation-only: no suspension, no audit record.
	assert.False(t, f.registry.tenants["acme"].Suspended)
	assert.Empty(t, f.auditor.entries)
}

func TestSuspendTenant(t *testing.T) {
	f := newCoordFixture(activeTenant("acme"))

	require.NoError(t, f.coord.SuspendTenant(context.Background(), "ops", "acme", "abuse report"))

	assert.True(t, f.registry.tenants["acme"].Suspended)
	assert.Equal(t, []string{"block"}, f.runner.calls)
	require.Len(t, f.auditor.entries, 1)
	assert.Equal(t, ActionSuspend, f.auditor.entries[0].action)
	assert.Equal(t, "abuse report", f.auditor.entries[0].metadata["reason"])
	require.Len(t, f.alerter.alerts, 1)
}

func TestUnsuspendTenant(t *testing.T) {
	tenant := activeTenant("acme")
	tenant.Suspended = true
	f := newCoordFixture(tenant)

	require.NoError(t, f.coord.UnsuspendTenant(context.Background(), "ops", "acme", "paid up"))

	assert.False(t, f.registry.tenants["acme"].Suspended)
	assert.Equal(t, []string{"allow"}, f.runner.calls)
	require.Len(t, f.auditor.byAction(ActionUnsuspend), 1)
}

func TestSuspendConnectivityFailureKeepsFlag(t *testing.T) {
	f := newCoordFixture(activeTenant("acme"))
	f.runner.fail = map[string]error{"block": fmt.Errorf("psql exited 2")}

	err := f.coord.SuspendTenant(context.Background(), "ops", "acme", "billing")
	require.ErrorIs(t, err, ErrUnavailable)

	assert.False(t, f.registry.tenants["acme"].Suspended)
	entries := f.auditor.byAction(ActionSuspend)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].metadata["error"], "psql")
}

func TestApplyBillingEventSuspendSet(t *testing.T) {
	for _, eventType := range []string{
		model.EventSubscriptionPaused,
		model.EventPaymentFailed,
		model.EventSubscriptionCancel,
	} {
		t.Run(eventType, func(t *testing.T) {
			f := newCoordFixture(activeTenant("acme"))

			err := f.coord.ApplyBillingEvent(context.Background(),
				&model.BillingEvent{Type: eventType, TenantName: "acme", Provider: "stripe"})
			require.NoError(t, err)

			assert.True(t, f.registry.tenants["acme"].Suspended)
			require.Len(t, f.auditor.byAction(ActionSuspend), 1)
			assert.Equal(t, "billing:stripe", f.auditor.entries[0].actor)
		})
	}
}

func TestApplyBillingEventUnsuspendSet(t *testing.T) {
	for _, eventType := range []string{model.EventInvoicePaid, model.EventSubscriptionResumed} {
		t.Run(eventType, func(t *testing.T) {
			tenant := activeTenant("acme")
			tenant.Suspended = true
			f := newCoordFixture(tenant)

			err := f.coord.ApplyBillingEvent(context.Background(),
				&model.BillingEvent{Type: eventType, TenantName: "acme", Provider: "paddle"})
			require.NoError(t, err)

			assert.False(t, f.registry.tenants["acme"].Suspended)
			require.Len(t, f.auditor.byAction(ActionUnsuspend), 1)
		})
	}
}

func TestApplyBillingEventUnknownTypeIsAuditedNoOp(t *testing.T) {
	f := newCoordFixture(activeTenant("acme"))

	err := f.coord.ApplyBillingEvent(context.Background(),
		&model.BillingEvent{Type: "trial-extended", TenantName: "acme", Provider: "stripe"})
	require.NoError(t, err)

	assert.False(t, f.registry.tenants["acme"].Suspended)
	assert.Empty(t, f.runner.calls)
	entries := f.auditor.byAction(ActionBillingIgnored)
	require.Len(t, entries, 1)
	assert.Equal(t, "acme", entries[0].target)
}

func TestApplyBillingEventUnresolvedTenant(t *testing.T) {
	f := newCoordFixture()

	err := f.coord.ApplyBillingEvent(context.Background(),
		&model.BillingEvent{Type: model.EventPaymentFailed, TenantName: "", Provider: "stripe"})
	require.NoError(t, err)

	entries := f.auditor.byAction(ActionBillingIgnored)
	require.Len(t, entries, 1)
	assert.Equal(t, "-", entries[0].target)
}

func TestApplyBillingEventUnknownTenantIsAuditedNoOp(t *testing.T) {
	f := newCoordFixture()

	// A verified suspend event for a tenant the registry does not know
	// must succeed as an audited no-op: a non-2xx answer would make the
	// provider retry the event forever.
	err := f.coord.ApplyBillingEvent(context.Background(),
		&model.BillingEvent{Type: model.EventPaymentFailed, TenantName: "ghost", Provider: "stripe"})
	require.NoError(t, err)

	assert.Empty(t, f.runner.calls)
	assert.Empty(t, f.auditor.byAction(ActionSuspend))
	entries := f.auditor.byAction(ActionBillingIgnored)
	require.Len(t, entries, 1)
	assert.Equal(t, "ghost", entries[0].target)
	assert.Equal(t, "unknown tenant", entries[0].metadata["reason"])
}

func TestEnqueueBackup(t *testing.T) {
	f := newCoordFixture(activeTenant("acme"))

	job, err := f.coord.EnqueueBackup(context.Background(), "ops", "acme")
	require.NoError(t, err)

	assert.Equal(t, model.JobKindBackup, job.Kind)
	entries := f.auditor.byAction(ActionEnqueue)
	require.Len(t, entries, 1)
	assert.Equal(t, job.ID, entries[0].metadata["job_id"])
}

func TestEnqueueForUnknownTenant(t *testing.T) {
	f := newCoordFixture()

	_, err := f.coord.EnqueueBackup(context.Background(), "ops", "ghost")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.enqueuer.jobs)
}

func TestEnqueueRestoreRequiresObjectKey(t *testing.T) {
	f := newCoordFixture(activeTenant("acme"))

	_, err := f.coord.EnqueueRestore(context.Background(), "ops", "acme", "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestEnqueueModulesValidation(t *testing.T) {
	f := newCoordFixture(activeTenant("acme"))
	ctx := context.Background()

	_, err := f.coord.EnqueueModules(ctx, "ops", "acme", nil, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.coord.EnqueueModules(ctx, "ops", "acme", []string{"crm;rm -rf /"}, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	job, err := f.coord.EnqueueModules(ctx, "ops", "acme", []string{"crm"}, []string{"sale"})
	require.NoError(t, err)
	assert.Equal(t, model.JobKindModules, job.Kind)
}
