package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/edvin/tenantctl/internal/model"
	"github.com/edvin/tenantctl/internal/platform"
)

// APIKeyService manages operator credentials. Only the sha256 of a key
// is stored; the raw key is shown once at creation.
type APIKeyService struct {
	db DB
}

func NewAPIKeyService(db DB) *APIKeyService {
	return &APIKeyService{db: db}
}

func validRole(role string) bool {
	switch role {
	case model.RoleAdmin, model.RoleOperator, model.RoleViewer:
		return true
	}
	return false
}

// Create mints a new API key and returns the record plus the raw key.
func (s *APIKeyService) Create(ctx context.Context, name, role string) (*model.APIKey, string, error) {
	if name == "" {
		return nil, "", fmt.Errorf("%w: key name is required", ErrInvalidInput)
	}
	if !validRole(role) {
		return nil, "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("generate key: %w", err)
	}
	rawKey := hex.EncodeToString(raw)

	hash := sha256.Sum256([]byte(rawKey))
	key := &model.APIKey{
		ID:        platform.NewID(),
		Name:      name,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		key.ID, key.Name, hex.EncodeToString(hash[:]), key.Role, key.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("insert api key: %w", err)
	}

	return key, rawKey, nil
}

// Revoke disables a key. Revoked keys fail authentication immediately.
func (s *APIKeyService) Revoke(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("api key %s: %w", id, ErrNotFound)
	}
	return nil
}
