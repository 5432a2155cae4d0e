package model

// Canonical billing event types. Providers map their own event names onto
// this set; anything unrecognized normalizes to the empty string.
const (
	EventPaymentFailed       = "payment-failed"
	EventInvoicePaid         = "invoice-paid"
	EventSubscriptionPaused  = "subscription-paused"
	EventSubscriptionResumed = "subscription-resumed"
	EventSubscriptionCancel  = "subscription-canceled"
)

// BillingEvent is a verified, provider-agnostic billing notification.
// Raw holds the verified original payload for the audit trail; the event
// itself is never persisted outside audit metadata.
type BillingEvent struct {
	Type       string `json:"type"`
	TenantName string `json:"tenant_name"`
	Provider   string `json:"provider"`
	Raw        []byte `json:"-"`
}
