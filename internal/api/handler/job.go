package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/edvin/tenantctl/internal/api/middleware"
	"github.com/edvin/tenantctl/internal/api/request"
	"github.com/edvin/tenantctl/internal/api/response"
	"github.com/edvin/tenantctl/internal/model"
)

// JobCoordinator fronts the async pipeline for tenant-affecting work.
type JobCoordinator interface {
	EnqueueBackup(ctx context.Context, actor, name string) (*model.Job, error)
	EnqueueRestore(ctx context.Context, actor, name, objectKey string) (*model.Job, error)
	EnqueueModules(ctx context.Context, actor, name string, install, upgrade []string) (*model.Job, error)
}

// JobReader queries job records.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ListActive(ctx context.Context) ([]model.Job, error)
}

type Job struct {
	coord JobCoordinator
	jobs  JobReader
}

func NewJob(coord JobCoordinator, jobs JobReader) *Job {
	return &Job{coord: coord, jobs: jobs}
}

// EnqueueBackup accepts the job and returns immediately; the dump itself
// runs on a worker.
func (h *Job) EnqueueBackup(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireName(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.coord.EnqueueBackup(r.Context(), mw.Actor(r.Context()), name)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusAccepted, job)
}

func (h *Job) EnqueueRestore(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireName(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.EnqueueRestore
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.coord.EnqueueRestore(r.Context(), mw.Actor(r.Context()), name, req.ObjectKey)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusAccepted, job)
}

func (h *Job) EnqueueModules(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireName(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.EnqueueModules
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.coord.EnqueueModules(r.Context(), mw.Actor(r.Context()), name, req.Install, req.Upgrade)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusAccepted, job)
}

func (h *Job) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireName(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, job)
}

func (h *Job) ListActive(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListActive(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	response.WriteJSON(w, http.StatusOK, jobs)
}
