package webhook

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/url"

	"github.com/edvin/tenantctl/internal/model"
)

const paddleSignatureField = "p_signature"

var paddleEventTypes = map[string]string{
	"subscription_payment_failed":    model.EventPaymentFailed,
	"subscription_payment_succeeded": model.EventInvoicePaid,
	"subscription_cancelled":         model.EventSubscriptionCancel,
	"subscription_paused":            model.EventSubscriptionPaused,
	"subscription_resumed":           model.EventSubscriptionResumed,
}

func (v *Verifier) verifyPaddle(body []byte) (*model.BillingEvent, error) {
	fields, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse form payload: %v", ErrBadSignature, err)
	}

	sigB64 := fields.Get(paddleSignatureField)
	if sigB64 == "" {
		return nil, fmt.Errorf("%w: missing %s field", ErrBadSignature, paddleSignatureField)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not base64", ErrBadSignature)
	}

	serialized, err := CanonicalizeForm(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	pub, err := parseRSAPublicKey(v.paddleKey)
	if err != nil {
		return nil, fmt.Errorf("parse paddle public key: %w", err)
	}

	digest := sha1.Sum(serialized)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest[:], sig); err != nil {
		return nil, fmt.Errorf("%w: paddle signature mismatch", ErrBadSignature)
	}

	return normalizePaddle(fields, body), nil
}

// CanonicalizeForm produces the byte-exact representation the provider
// signs: the signature field removed, remaining fields sorted by key and
// JSON-serialized with no extraneous whitespace. encoding/json marshals
// map keys in sorted order, which pins the field ordering. HTML escaping
// is disabled: the provider serializes `&`, `<` and `>` literally, and
// payload URLs (receipt_url and friends) always carry ampersands.
func CanonicalizeForm(fields url.Values) ([]byte, error) {
	flat := make(map[string]string, len(fields))
	for k, vs := range fields {
		if k == paddleSignatureField {
			continue
		}
		if len(vs) > 0 {
			flat[k] = vs[0]
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(flat); err != nil {
		return nil, fmt.Errorf("serialize form fields: %v", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func parseRSAPublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want RSA", pub)
	}
	return rsaPub, nil
}

func normalizePaddle(fields url.Values, body []byte) *model.BillingEvent {
	// The tenant rides in the passthrough field as a JSON blob.
	var passthrough struct {
		Tenant string `json:"tenant"`
	}
	_ = json.Unmarshal([]byte(fields.Get("passthrough")), &passthrough)

	return &model.BillingEvent{
		Type:       paddleEventTypes[fields.Get("alert_name")],
		TenantName: passthrough.Tenant,
		Provider:   ProviderPaddle,
		Raw:        body,
	}
}
