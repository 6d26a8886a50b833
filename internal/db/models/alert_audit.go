// Package models - alert_audit.go defines the per-alert audit trail event.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MentionList is the ordered list of user ids mentioned by a comment event.
// Stored as JSONB; NULL for events without mentions.
type MentionList []string

// Value implements driver.Valuer for JSONB storage.
func (m MentionList) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (m *MentionList) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T into MentionList", src)
	}
	return json.Unmarshal(data, m)
}

// AlertAuditEvent is one entry in an alert's audit trail, ordered by the
// repository query (timestamp ascending within a fingerprint).
type AlertAuditEvent struct {
	ID          string      `db:"id"`
	TenantID    string      `db:"tenant_id"`
	Fingerprint string      `db:"fingerprint"`
	UserID      string      `db:"user_id"`
	Action      string      `db:"action"`
	Description string      `db:"description"`
	Mentions    MentionList `db:"mentions"`
	Timestamp   time.Time   `db:"timestamp"`
}
