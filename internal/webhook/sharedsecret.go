package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/edvin/tenantctl/internal/model"
)

const sharedSecretHeader = "X-Webhook-Secret"

// sharedEventTypes accepts the canonical names directly; this scheme is
// used by internal billing bridges that already speak the canonical set.
var sharedEventTypes = map[string]string{
	model.EventPaymentFailed:       model.EventPaymentFailed,
	model.EventInvoicePaid:         model.EventInvoicePaid,
	model.EventSubscriptionPaused:  model.EventSubscriptionPaused,
	model.EventSubscriptionResumed: model.EventSubscriptionResumed,
	model.EventSubscriptionCancel:  model.EventSubscriptionCancel,
}

// verifyShared compares a static header secret in constant time. This
// scheme has no cryptographic binding to the payload and is weaker than
// the signed schemes; it is only consulted when neither is configured for
// the request shape.
func (v *Verifier) verifyShared(r *http.Request, body []byte) (*model.BillingEvent, error) {
	supplied := r.Header.Get(sharedSecretHeader)
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(v.sharedSecret)) != 1 {
		return nil, fmt.Errorf("%w: shared secret mismatch", ErrBadSignature)
	}

	var payload struct {
		Event  string `json:"event"`
		Tenant string `json:"tenant"`
	}
	_ = json.Unmarshal(body, &payload)

	return &model.BillingEvent{
		Type:       sharedEventTypes[payload.Event],
		TenantName: payload.Tenant,
		Provider:   ProviderShared,
		Raw:        body,
	}, nil
}
