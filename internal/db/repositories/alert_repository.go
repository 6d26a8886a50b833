// alert_repository.go implements AlertRepository, providing database queries
// for ingested alert events and the read-side aggregates built over them.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/alertdesk/alertdesk/internal/db/models"
)

// AlertRepository handles database operations for ingested alerts
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// InsertAlert stores one ingested alert event
func (r *AlertRepository) InsertAlert(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (tenant_id, provider_type, provider_id, fingerprint, event, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}

	err := r.db.QueryRowxContext(ctx, query,
		alert.TenantID,
		alert.ProviderType,
		alert.ProviderID,
		alert.Fingerprint,
		alert.Event,
		alert.Timestamp,
	).Scan(&alert.ID)

	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// CountAlerts returns the number of alerts a tenant has ingested, optionally
// limited to one provider type or to events after a point in time.
func (r *AlertRepository) CountAlerts(ctx context.Context, tenantID string, filter models.AlertFilter) (int64, error) {
	query := `SELECT COUNT(*) FROM alerts WHERE tenant_id = $1`
	args := []any{tenantID}

	if filter.ProviderType != "" {
		args = append(args, filter.ProviderType)
		query += fmt.Sprintf(" AND provider_type = $%d", len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += fmt.Sprintf(" AND timestamp >= $%d", len(args))
	}

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

type distributionRow struct {
	ProviderType string    `db:"provider_type"`
	Hour         time.Time `db:"hour"`
	Count        int64     `db:"count"`
}

// ProviderDistribution buckets the tenant's last 24 hours of alerts into
// hourly counts per provider type. Hours with no alerts are omitted; the
// presentation layer fills gaps.
func (r *AlertRepository) ProviderDistribution(ctx context.Context, tenantID string) (map[string][]models.HourlyCount, error) {
	query := `
		SELECT provider_type, date_trunc('hour', timestamp) AS hour, COUNT(*) AS count
		FROM alerts
		WHERE tenant_id = $1 AND timestamp >= NOW() - INTERVAL '24 hours'
		GROUP BY provider_type, hour
		ORDER BY provider_type, hour
	`

	var rows []distributionRow
	if err := r.db.SelectContext(ctx, &rows, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to compute alert distribution: %w", err)
	}

	distribution := make(map[string][]models.HourlyCount)
	for _, row := range rows {
		distribution[row.ProviderType] = append(distribution[row.ProviderType], models.HourlyCount{
			Hour:  row.Hour,
			Count: row.Count,
		})
	}
	return distribution, nil
}

// LinkedProviderTypes returns provider types that have sent the tenant alerts
// without a corresponding installed provider record. These show up in the UI
// as linked rather than installed integrations.
func (r *AlertRepository) LinkedProviderTypes(ctx context.Context, tenantID string) ([]string, error) {
	query := `
		SELECT DISTINCT a.provider_type
		FROM alerts a
		WHERE a.tenant_id = $1
		  AND NOT EXISTS (
		      SELECT 1 FROM providers p
		      WHERE p.tenant_id = a.tenant_id AND p.type = a.provider_type
		  )
		ORDER BY a.provider_type
	`

	var types []string
	if err := r.db.SelectContext(ctx, &types, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list linked provider types: %w", err)
	}
	return types, nil
}

// ListAlertsByFingerprint returns the tenant's alert events for one incident,
// oldest first.
func (r *AlertRepository) ListAlertsByFingerprint(ctx context.Context, tenantID, fingerprint string) ([]*models.Alert, error) {
	query := `
		SELECT id, tenant_id, provider_type, provider_id, fingerprint, event, timestamp
		FROM alerts
		WHERE tenant_id = $1 AND fingerprint = $2
		ORDER BY timestamp ASC
	`

	var alerts []*models.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, tenantID, fingerprint); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}
