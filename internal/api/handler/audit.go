package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/edvin/tenantctl/internal/api/response"
	"github.com/edvin/tenantctl/internal/model"
)

// AuditReader lists audit trail records.
type AuditReader interface {
	List(ctx context.Context, limit int) ([]model.AuditRecord, error)
}

type Audit struct {
	audit AuditReader
}

func NewAudit(audit AuditReader) *Audit {
	return &Audit{audit: audit}
}

func (h *Audit) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := h.audit.List(r.Context(), limit)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if records == nil {
		records = []model.AuditRecord{}
	}
	response.WriteJSON(w, http.StatusOK, records)
}
