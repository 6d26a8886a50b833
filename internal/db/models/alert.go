// Package models - alert.go defines the Alert model and the read-side
// aggregates computed over ingested alerts.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventPayload is the raw alert event as received from a provider, stored as JSONB.
type EventPayload map[string]any

// Value implements driver.Valuer for JSONB storage.
func (p EventPayload) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (p *EventPayload) Scan(src any) error {
	if src == nil {
		*p = EventPayload{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T into EventPayload", src)
	}
	return json.Unmarshal(data, p)
}

// Alert represents one ingested alert event. Fingerprint groups events that
// describe the same underlying incident across pushes and pulls.
type Alert struct {
	ID           string       `db:"id"`
	TenantID     string       `db:"tenant_id"`
	ProviderType string       `db:"provider_type"`
	ProviderID   *string      `db:"provider_id"`
	Fingerprint  string       `db:"fingerprint"`
	Event        EventPayload `db:"event"`
	Timestamp    time.Time    `db:"timestamp"`
}

// HourlyCount is one bucket of the last-24h alert distribution for a provider.
type HourlyCount struct {
	Hour  time.Time `db:"hour"`
	Count int64     `db:"count"`
}

// AlertFilter narrows alert counting. Zero-value fields are ignored.
type AlertFilter struct {
	ProviderType string
	Since        *time.Time
}
