package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	mw "github.com/edvin/tenantctl/internal/api/middleware"
	"github.com/edvin/tenantctl/internal/core"
	"github.com/edvin/tenantctl/internal/model"
)

// stubCoord implements the coordinator-facing handler interfaces with
// recorded calls and scriptable errors.
type stubCoord struct {
	calls []string
	err   error

	tenant *model.Tenant
	job    *model.Job

	exceeded bool

	lastEvent *model.BillingEvent
}

func (c *stubCoord) record(format string, args ...any) {
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *stubCoord) ProvisionTenant(_ context.Context, actor, name, notes string) (*model.Tenant, error) {
	c.record("provision %s by %s", name, actor)
	if c.err != nil {
		return nil, c.err
	}
	t := c.tenant
	if t == nil {
		t = &model.Tenant{Name: name, QuotaBytes: model.DefaultQuotaBytes, Notes: notes}
	}
	return t, nil
}

func (c *stubCoord) DeleteTenant(_ context.Context, actor, name string) error {
	c.record("delete %s by %s", name, actor)
	return c.err
}

func (c *stubCoord) SetQuota(_ context.Context, actor, name string, quotaBytes int64) (*model.Tenant, error) {
	c.record("quota %s=%d by %s", name, quotaBytes, actor)
	if c.err != nil {
		return nil, c.err
	}
	return &model.Tenant{Name: name, QuotaBytes: quotaBytes}, nil
}

func (c *stubCoord) CheckQuota(_ context.Context, name string, observedBytes int64) (bool, error) {
	c.record("check %s=%d", name, observedBytes)
	return c.exceeded, c.err
}

func (c *stubCoord) SuspendTenant(_ context.Context, actor, name, reason string) error {
	c.record("suspend %s (%s) by %s", name, reason, actor)
	return c.err
}

func (c *stubCoord) UnsuspendTenant(_ context.Context, actor, name, reason string) error {
	c.record("unsuspend %s (%s) by %s", name, reason, actor)
	return c.err
}

func (c *stubCoord) EnqueueBackup(_ context.Context, actor, name string) (*model.Job, error) {
	c.record("backup %s by %s", name, actor)
	return c.job, c.err
}

func (c *stubCoord) EnqueueRestore(_ context.Context, actor, name, objectKey string) (*model.Job, error) {
	c.record("restore %s from %s by %s", name, objectKey, actor)
	return c.job, c.err
}

func (c *stubCoord) EnqueueModules(_ context.Context, actor, name string, install, upgrade []string) (*model.Job, error) {
	c.record("modules %s install=%v upgrade=%v by %s", name, install, upgrade, actor)
	return c.job, c.err
}

func (c *stubCoord) ApplyBillingEvent(_ context.Context, event *model.BillingEvent) error {
	c.lastEvent = event
	return c.err
}

// stubRegistry implements TenantRegistry over a map.
type stubRegistry struct {
	tenants map[string]model.Tenant
	err     error
}

func (r *stubRegistry) Get(_ context.Context, name string) (*model.Tenant, error) {
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.tenants[name]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", name, core.ErrNotFound)
	}
	return &t, nil
}

func (r *stubRegistry) List(context.Context) ([]model.Tenant, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []model.Tenant
	for _, t := range r.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (r *stubRegistry) ListMatching(_ context.Context, names []string) (map[string]model.Tenant, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[string]model.Tenant)
	for _, name := range names {
		if t, ok := r.tenants[name]; ok {
			out[name] = t
		}
	}
	return out, nil
}

// stubJobs implements JobReader.
type stubJobs struct {
	jobs map[string]model.Job
	err  error
}

func (s *stubJobs) GetByID(_ context.Context, id string) (*model.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, core.ErrNotFound)
	}
	return &j, nil
}

func (s *stubJobs) ListActive(context.Context) ([]model.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []model.Job
	for _, j := range s.jobs {
		if j.Status == model.JobStatusQueued || j.Status == model.JobStatusRunning {
			out = append(out, j)
		}
	}
	return out, nil
}

// serve routes the request through chi so URL params resolve, with an
// operator identity attached.
func serve(router *chi.Mux, r *http.Request) *httptest.ResponseRecorder {
	r = r.WithContext(mw.WithIdentity(r.Context(), &mw.Identity{ID: "k1", Name: "ops-key", Role: "operator"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}
