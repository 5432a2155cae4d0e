package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edvin/tenantctl/internal/model"
	"github.com/edvin/tenantctl/internal/platform"
)

// AuditService appends immutable records to the audit trail. There is no
// update or delete path.
type AuditService struct {
	db DB
}

func NewAuditService(db DB) *AuditService {
	return &AuditService{db: db}
}

// Append writes one audit record. metadata may be nil.
func (s *AuditService) Append(ctx context.Context, actor, action, target string, metadata map[string]any) error {
	var meta json.RawMessage
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		meta = b
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_records (id, actor, action, target, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		platform.NewID(), actor, action, target, meta, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// List returns the newest records first, capped at limit.
func (s *AuditService) List(ctx context.Context, limit int) ([]model.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, actor, action, target, metadata, created_at
		 FROM audit_records ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.Actor, &rec.Action, &rec.Target, &rec.Metadata, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}
