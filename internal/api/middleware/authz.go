package middleware

import (
	"fmt"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edvin/tenantctl/internal/api/response"
)

// Capabilities maps an operation to the roles allowed to perform it. It
// is consulted once per request at the route entry point.
type Capabilities map[string][]string

// DefaultCapabilities is the built-in role table. A roles file can
// override individual operations without restating the rest.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		"tenant:read":   {"admin", "operator", "viewer"},
		"tenant:write":  {"admin", "operator"},
		"tenant:delete": {"admin"},
		"job:read":      {"admin", "operator", "viewer"},
		"job:write":     {"admin", "operator"},
		"audit:read":    {"admin", "viewer"},
	}
}

// LoadCapabilities returns the default table, overlaid with the YAML
// roles file when path is non-empty.
func LoadCapabilities(path string) (Capabilities, error) {
	caps := DefaultCapabilities()
	if path == "" {
		return caps, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roles file: %w", err)
	}

	var override Capabilities
	if err := yaml.Unmarshal(b, &override); err != nil {
		return nil, fmt.Errorf("parse roles file: %w", err)
	}
	for op, roles := range override {
		caps[op] = roles
	}
	return caps, nil
}

// Allows reports whether role may perform op. Unknown operations are
// denied for every role.
func (c Capabilities) Allows(op, role string) bool {
	for _, r := range c[op] {
		if r == role {
			return true
		}
	}
	return false
}

// RequireCapability returns middleware that denies the request unless
// the authenticated key's role is permitted the operation.
func RequireCapability(caps Capabilities, op string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context())
			if identity == nil || !caps.Allows(op, identity.Role) {
				response.WriteError(w, http.StatusForbidden, "role not permitted: "+op)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
