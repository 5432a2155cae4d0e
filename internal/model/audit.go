package model

import (
	"encoding/json"
	"time"
)

// AuditRecord is one append-only entry in the audit trail. Records are
// inserted and read, never updated or deleted.
type AuditRecord struct {
	ID        string          `json:"id"`
	Actor     string          `json:"actor"`
	Action    string          `json:"action"`
	Target    string          `json:"target"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
