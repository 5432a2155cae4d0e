package handler

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	mw "github.com/edvin/tenantctl/internal/api/middleware"
	"github.com/edvin/tenantctl/internal/api/request"
	"github.com/edvin/tenantctl/internal/api/response"
	"github.com/edvin/tenantctl/internal/model"
)

// TenantRegistry is the read side of the tenant registry the handler
// serves directly; writes go through the coordinator.
type TenantRegistry interface {
	Get(ctx context.Context, name string) (*model.Tenant, error)
	List(ctx context.Context) ([]model.Tenant, error)
	ListMatching(ctx context.Context, names []string) (map[string]model.Tenant, error)
}

// TenantCoordinator is the slice of the lifecycle coordinator the tenant
// handler drives.
type TenantCoordinator interface {
	ProvisionTenant(ctx context.Context, actor, name, notes string) (*model.Tenant, error)
	DeleteTenant(ctx context.Context, actor, name string) error
	SetQuota(ctx context.Context, actor, name string, quotaBytes int64) (*model.Tenant, error)
	CheckQuota(ctx context.Context, name string, observedBytes int64) (bool, error)
	SuspendTenant(ctx context.Context, actor, name, reason string) error
	UnsuspendTenant(ctx context.Context, actor, name, reason string) error
}

type Tenant struct {
	registry TenantRegistry
	coord    TenantCoordinator
}

func NewTenant(registry TenantRegistry, coord TenantCoordinator) *Tenant {
	return &Tenant{registry: registry, coord: coord}
}

// List returns all tenants, or only those named in the comma-separated
// `names` query parameter. Unknown names are omitted, not errors.
func (h *Tenant) List(w http.ResponseWriter, r *http.Request) {
	var (
		tenants []model.Tenant
		err     error
	)
	if raw := r.URL.Query().Get("names"); raw != "" {
		var matched map[string]model.Tenant
		matched, err = h.registry.ListMatching(r.Context(), strings.Split(raw, ","))
		if err == nil {
			names := make([]string, 0, len(matched))
			for name := range matched {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				tenants = append(tenants, matched[name])
			}
		}
	} else {
		tenants, err = h.registry.List(r.Context())
	}
	if err != nil {
		response.FromError(w, err)
		return
	}
	if tenants == nil {
		tenants = []model.Tenant{}
	}
	response.WriteJSON(w, http.StatusOK, tenants)
}

func (h *Tenant) Get(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireName(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, err := h.registry.Get(r.Context(), name)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Tenant) Provision(w http.ResponseWriter, r *http.Request) {
	var req request.ProvisionTenant
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, err := h.coord.ProvisionTenant(r.Context(), mw.Actor(r.Context()), req.Name, req.Notes)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, tenant)
}

func (h *Tenant) Delete(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireName(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.coord.DeleteTenant(r.Context(), mw.Actor(r.Context()), name); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Tenant) SetQuota(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireName(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.SetQuota
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, err := h.coord.SetQuota(r.Context(), mw.Actor(r.Context()), name, *req.QuotaBytes)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Tenant) CheckQuota(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireName(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.CheckQuota
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	exceeded, err := h.coord.CheckQuota(r.Context(), name, *req.ObservedBytes)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]bool{"exceeded": exceeded})
}

func (h *Tenant) Suspend(w http.ResponseWriter, r *http.Request) {
	h.setSuspended(w, r, true)
}

func (h *Tenant) Unsuspend(w http.ResponseWriter, r *http.Request) {
	h.setSuspended(w, r, false)
}

func (h *Tenant) setSuspended(w http.ResponseWriter, r *http.Request, suspended bool) {
	name, err := request.RequireName(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.Suspend
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := mw.Actor(r.Context())
	if suspended {
		err = h.coord.SuspendTenant(r.Context(), actor, name, req.Reason)
	} else {
		err = h.coord.UnsuspendTenant(r.Context(), actor, name, req.Reason)
	}
	if err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
