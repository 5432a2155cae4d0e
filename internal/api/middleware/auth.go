package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/edvin/tenantctl/internal/api/response"
	"github.com/edvin/tenantctl/internal/core"
)

type contextKey string

const identityKey contextKey = "api_key_identity"

// Identity holds the authenticated key's id, display name and role. The
// name is used as the audit actor for operator-initiated actions.
type Identity struct {
	ID   string
	Name string
	Role string
}

// GetIdentity extracts the Identity from the request context.
func GetIdentity(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityKey).(*Identity)
	return identity
}

// Actor returns the audit actor string for the request, or "anonymous"
// when no identity is present.
func Actor(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.Name
	}
	return "anonymous"
}

// Auth returns a middleware that validates the X-API-Key header against
// the api_keys table. Keys are stored as sha256 hashes.
func Auth(db core.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			hash := sha256.Sum256([]byte(key))
			keyHash := hex.EncodeToString(hash[:])

			var identity Identity
			err := db.QueryRow(r.Context(),
				`SELECT id, name, role FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL`, keyHash,
			).Scan(&identity.ID, &identity.Name, &identity.Role)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, &identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity injects an identity into the context; test hook.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
