package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/tenantctl/internal/model"
	"github.com/edvin/tenantctl/internal/webhook"
)

type stubVerifier struct {
	event *model.BillingEvent
	err   error
}

func (v *stubVerifier) Verify(_ *http.Request, body []byte) (*model.BillingEvent, error) {
	if v.err != nil {
		return nil, v.err
	}
	event := *v.event
	event.Raw = body
	return &event, nil
}

func TestWebhookAppliesVerifiedEvent(t *testing.T) {
	coord := &stubCoord{}
	h := NewWebhook(&stubVerifier{event: &model.BillingEvent{
		Type: model.EventPaymentFailed, TenantName: "acme", Provider: "stripe",
	}}, coord)

	r := httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(`{"type":"invoice.payment_failed"}`))
	rec := httptest.NewRecorder()
	h.Handle(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, coord.lastEvent)
	assert.Equal(t, model.EventPaymentFailed, coord.lastEvent.Type)
	assert.Equal(t, "acme", coord.lastEvent.TenantName)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	coord := &stubCoord{}
	h := NewWebhook(&stubVerifier{err: webhook.ErrBadSignature}, coord)

	r := httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Handle(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, coord.lastEvent, "unverified payloads never reach the coordinator")
}

func TestWebhookRejectsUnverifiableRequest(t *testing.T) {
	coord := &stubCoord{}
	h := NewWebhook(&stubVerifier{err: webhook.ErrNoScheme}, coord)

	r := httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Handle(rec, r)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, coord.lastEvent)
}
