package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/edvin/tenantctl/internal/api/response"
	"github.com/edvin/tenantctl/internal/model"
	"github.com/edvin/tenantctl/internal/webhook"
)

const maxWebhookBody = 1 << 20

// EventVerifier authenticates an inbound billing payload and normalizes
// it into a canonical event.
type EventVerifier interface {
	Verify(r *http.Request, body []byte) (*model.BillingEvent, error)
}

// BillingApplier is the coordinator entry point for verified events.
type BillingApplier interface {
	ApplyBillingEvent(ctx context.Context, event *model.BillingEvent) error
}

type Webhook struct {
	verifier EventVerifier
	coord    BillingApplier
}

func NewWebhook(verifier EventVerifier, coord BillingApplier) *Webhook {
	return &Webhook{verifier: verifier, coord: coord}
}

// Handle verifies the payload before anything in it is trusted to touch
// tenant state. Unverified payloads never reach the coordinator.
func (h *Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	event, err := h.verifier.Verify(r, body)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNoScheme):
			response.WriteError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, webhook.ErrBadSignature):
			response.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			response.WriteError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	if err := h.coord.ApplyBillingEvent(r.Context(), event); err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
