package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/tenantctl/internal/model"
)

type stubAudit struct {
	records   []model.AuditRecord
	lastLimit int
}

func (s *stubAudit) List(_ context.Context, limit int) ([]model.AuditRecord, error) {
	s.lastLimit = limit
	return s.records, nil
}

func auditRouter(audit *stubAudit) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/audit-records", NewAudit(audit).List)
	return r
}

func TestAuditList(t *testing.T) {
	audit := &stubAudit{records: []model.AuditRecord{
		{ID: "a1", Actor: "ops-key", Action: "tenant.suspend", Target: "acme"},
	}}
	router := auditRouter(audit)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/audit-records?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, audit.lastLimit)

	var got []model.AuditRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "tenant.suspend", got[0].Action)
}

func TestAuditListBadLimit(t *testing.T) {
	router := auditRouter(&stubAudit{})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/audit-records?limit=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditListEmpty(t *testing.T) {
	router := auditRouter(&stubAudit{})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/audit-records", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}
