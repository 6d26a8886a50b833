// audit_repository.go implements AuditRepository, providing database queries
// for the per-alert audit trail rendered in the incident timeline.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/alertdesk/alertdesk/internal/db/models"
)

// AuditRepository handles database operations for alert audit events
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// InsertEvent appends one audit event to an alert's trail
func (r *AuditRepository) InsertEvent(ctx context.Context, event *models.AlertAuditEvent) error {
	query := `
		INSERT INTO alert_audit (tenant_id, fingerprint, user_id, action, description, mentions, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	err := r.db.QueryRowxContext(ctx, query,
		event.TenantID,
		event.Fingerprint,
		event.UserID,
		event.Action,
		event.Description,
		event.Mentions,
		event.Timestamp,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ListByFingerprint returns an alert's audit trail in chronological order.
// Compaction of repeated adjacent events happens in the audit package, not
// in SQL, so the stored trail stays lossless.
func (r *AuditRepository) ListByFingerprint(ctx context.Context, tenantID, fingerprint string) ([]*models.AlertAuditEvent, error) {
	query := `
		SELECT id, tenant_id, fingerprint, user_id, action, description, mentions, timestamp
		FROM alert_audit
		WHERE tenant_id = $1 AND fingerprint = $2
		ORDER BY timestamp ASC, id ASC
	`

	var events []*models.AlertAuditEvent
	if err := r.db.SelectContext(ctx, &events, query, tenantID, fingerprint); err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}
