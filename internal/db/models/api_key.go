// Package models defines the database model types for alertdesk.
// Each type corresponds to a database table. Models are pure data types —
// business logic belongs in the service layer, query logic belongs in the
// repositories layer.
package models

import "time"

// APIKey represents an API key for boundary authentication. The raw key is
// never stored here; KeyHash holds its bcrypt hash. System-owned keys
// (Role = "webhook") are created by the webhook provisioner, with the raw
// value kept sealed in the secret backend.
type APIKey struct {
	ID          string     `db:"id"`
	TenantID    string     `db:"tenant_id"`
	ReferenceID string     `db:"reference_id"` // Stable name (e.g. "webhook") unique per tenant
	KeyHash     string     `db:"key_hash"`     // Bcrypt hash of the full key
	Role        string     `db:"role"`
	CreatedBy   string     `db:"created_by"`
	CreatedAt   time.Time  `db:"created_at"`
	LastUsedAt  *time.Time `db:"last_used_at"`
	Revoked     bool       `db:"revoked"`
}
