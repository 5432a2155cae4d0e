package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/tenantctl/internal/model"
)

// RegistryService is the source of truth for tenant metadata and lifecycle
// state. All mutations go through the Coordinator's named operations.
type RegistryService struct {
	db DB
}

func NewRegistryService(db DB) *RegistryService {
	return &RegistryService{db: db}
}

func (s *RegistryService) Get(ctx context.Context, name string) (*model.Tenant, error) {
	var t model.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT name, suspended, quota_bytes, notes, created_at, updated_at
		 FROM tenants WHERE name = $1`, name,
	).Scan(&t.Name, &t.Suspended, &t.QuotaBytes, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenant %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant %s: %w", name, err)
	}
	return &t, nil
}

// Upsert inserts or fully replaces the tenant record. Concurrent upserts to
// the same name serialize on the row; last writer wins. Timestamps are
// stamped here so a caller-built Tenant never writes zero times.
func (s *RegistryService) Upsert(ctx context.Context, t *model.Tenant) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := s.db.Exec(ctx,
		`INSERT INTO tenants (name, suspended, quota_bytes, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO UPDATE
		 SET suspended = EXCLUDED.suspended, quota_bytes = EXCLUDED.quota_bytes,
		     notes = EXCLUDED.notes, updated_at = now()`,
		t.Name, t.Suspended, t.QuotaBytes, t.Notes, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert tenant %s: %w", t.Name, err)
	}
	return nil
}

func (s *RegistryService) Delete(ctx context.Context, name string) error {
	_, err := s.db.Exec(ctx, "DELETE FROM tenants WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("delete tenant %s: %w", name, err)
	}
	return nil
}

func (s *RegistryService) List(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT name, suspended, quota_bytes, notes, created_at, updated_at
		 FROM tenants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.Name, &t.Suspended, &t.QuotaBytes, &t.Notes, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}
	return tenants, nil
}

// ListMatching returns the registry records for the given names in a single
// query. Names without a record are absent from the result.
func (s *RegistryService) ListMatching(ctx context.Context, names []string) (map[string]model.Tenant, error) {
	matched := make(map[string]model.Tenant, len(names))
	if len(names) == 0 {
		return matched, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT name, suspended, quota_bytes, notes, created_at, updated_at
		 FROM tenants WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("list matching tenants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.Name, &t.Suspended, &t.QuotaBytes, &t.Notes, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		matched[t.Name] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}
	return matched, nil
}
