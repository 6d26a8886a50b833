// Package models - provider.go defines the ProviderRecord model representing an
// installed provider instance and the ScopeMap JSONB column type.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ScopeMap holds the outcome of the most recent scope validation, keyed by
// scope name. Values are true for a granted scope or a string describing why
// the scope check failed. Stored as JSONB.
type ScopeMap map[string]any

// Value implements driver.Valuer for JSONB storage.
func (m ScopeMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (m *ScopeMap) Scan(src any) error {
	if src == nil {
		*m = ScopeMap{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T into ScopeMap", src)
	}
	return json.Unmarshal(data, m)
}

// ProviderRecord represents an installed provider instance. Authentication
// material is never stored on the record; ConfigurationKey points into the
// secret backend.
type ProviderRecord struct {
	ID               string     `db:"id"`
	TenantID         string     `db:"tenant_id"`
	InstanceID       string     `db:"instance_id"`
	Name             string     `db:"name"`
	Type             string     `db:"type"`
	InstalledBy      string     `db:"installed_by"`
	InstallationTime time.Time  `db:"installation_time"`
	ConfigurationKey string     `db:"configuration_key"`
	ValidatedScopes  ScopeMap   `db:"validated_scopes"`
	Consumer         bool       `db:"consumer"`
	PullingEnabled   bool       `db:"pulling_enabled"`
	LastPullTime     *time.Time `db:"last_pull_time"`
}
