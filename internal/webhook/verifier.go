package webhook

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/tenantctl/internal/model"
)

var (
	// ErrBadSignature covers malformed signature material and failed
	// verification. The event never reaches the coordinator.
	ErrBadSignature = errors.New("bad webhook signature")

	// ErrNoScheme means no configured scheme matched the request shape.
	ErrNoScheme = errors.New("no verifiable webhook scheme")
)

// Provider names recorded on canonical events.
const (
	ProviderStripe = "stripe"
	ProviderPaddle = "paddle"
	ProviderShared = "shared-secret"
)

// Verifier authenticates inbound billing webhooks under the configured
// provider schemes and normalizes them into canonical events. Verification
// fails closed: an event only exists once its signature checked out.
type Verifier struct {
	logger zerolog.Logger

	stripeSecret string
	paddleKey    string
	sharedSecret string
}

func NewVerifier(logger zerolog.Logger, stripeSecret, paddlePublicKeyPEM, sharedSecret string) *Verifier {
	return &Verifier{
		logger:       logger.With().Str("component", "webhook-verifier").Logger(),
		stripeSecret: stripeSecret,
		paddleKey:    paddlePublicKeyPEM,
		sharedSecret: sharedSecret,
	}
}

// Verify authenticates the raw request and returns the canonical event.
// Schemes are tried in priority order; a scheme is attempted only when it
// is configured and the request carries its shape. A verified payload with
// an unrecognized event type is NOT an error: it normalizes to an empty
// canonical type and produces no transition downstream.
func (v *Verifier) Verify(r *http.Request, body []byte) (*model.BillingEvent, error) {
	if v.stripeSecret != "" && r.Header.Get(stripeSignatureHeader) != "" {
		return v.verifyStripe(r, body)
	}

	if v.paddleKey != "" && isFormPayload(r) {
		return v.verifyPaddle(body)
	}

	if v.sharedSecret != "" && r.Header.Get(sharedSecretHeader) != "" {
		return v.verifyShared(r, body)
	}

	v.logger.Warn().Str("content_type", r.Header.Get("Content-Type")).Msg("webhook matched no configured scheme")
	return nil, ErrNoScheme
}

// isFormPayload routes on the declared Content-Type only. Sniffing the
// body would let a JSON payload that merely mentions the signature field
// hijack the form scheme.
func isFormPayload(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}
