// alert_service.go implements alert ingestion and the per-alert audit trail.
// Ingestion is shared by the inbound webhook endpoint and the pull scheduler;
// both paths fingerprint the event so repeats of the same incident group
// together.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alertdesk/alertdesk/internal/audit"
	"github.com/alertdesk/alertdesk/internal/db/models"
	"github.com/alertdesk/alertdesk/pkg/fingerprint"
)

// AuditStore is the subset of the audit repository the alert service uses.
type AuditStore interface {
	InsertEvent(ctx context.Context, event *models.AlertAuditEvent) error
	ListByFingerprint(ctx context.Context, tenantID, fingerprint string) ([]*models.AlertAuditEvent, error)
}

// AlertService handles alert ingestion, counting, and audit trails.
type AlertService struct {
	alerts AlertStore
	audits AuditStore
}

// NewAlertService creates the alert service.
func NewAlertService(alerts AlertStore, audits AuditStore) *AlertService {
	return &AlertService{alerts: alerts, audits: audits}
}

// IngestAlertEvent stores one alert event pushed by (or pulled from) a
// provider. providerID is nil for events arriving on the type-level webhook
// endpoint. The alert's fingerprint comes from the payload when present,
// otherwise it is derived from the identity-bearing fields.
func (s *AlertService) IngestAlertEvent(ctx context.Context, tenantID, providerType string, providerID *string, event map[string]any) (*models.Alert, error) {
	alert := &models.Alert{
		TenantID:     tenantID,
		ProviderType: providerType,
		ProviderID:   providerID,
		Fingerprint:  fingerprint.Compute(event),
		Event:        event,
	}
	if err := s.alerts.InsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to ingest alert: %w", err)
	}

	slog.DebugContext(ctx, "alert ingested",
		"tenant_id", tenantID, "provider_type", providerType, "fingerprint", alert.Fingerprint)
	return alert, nil
}

// CountAlerts returns the tenant's alert count, optionally filtered by
// provider type and time.
func (s *AlertService) CountAlerts(ctx context.Context, tenantID string, filter models.AlertFilter) (int64, error) {
	return s.alerts.CountAlerts(ctx, tenantID, filter)
}

// AddAuditEvent appends one event to an alert's audit trail.
func (s *AlertService) AddAuditEvent(ctx context.Context, event *models.AlertAuditEvent) error {
	return s.audits.InsertEvent(ctx, event)
}

// GetAuditTrail returns an alert's audit trail compacted for presentation:
// runs of identical adjacent events fold into single entries.
func (s *AlertService) GetAuditTrail(ctx context.Context, tenantID, fp string) ([]audit.Entry, error) {
	events, err := s.audits.ListByFingerprint(ctx, tenantID, fp)
	if err != nil {
		return nil, err
	}
	return audit.CompactAll(events), nil
}
