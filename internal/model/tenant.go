package model

import "time"

// DefaultQuotaBytes is the storage quota assigned to newly provisioned
// tenants (5 GiB).
const DefaultQuotaBytes int64 = 5 << 30

type Tenant struct {
	Name       string    `json:"name" db:"name"`
	Suspended  bool      `json:"suspended" db:"suspended"`
	QuotaBytes int64     `json:"quota_bytes" db:"quota_bytes"`
	Notes      string    `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
