// provider_repository.go implements ProviderRepository, providing database
// queries for installed provider instance records.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alertdesk/alertdesk/internal/db/models"
)

// ProviderRepository handles database operations for installed providers
type ProviderRepository struct {
	db *sql.DB
}

// NewProviderRepository creates a new provider repository
func NewProviderRepository(db *sql.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// CreateProvider inserts a new provider record
func (r *ProviderRepository) CreateProvider(ctx context.Context, record *models.ProviderRecord) error {
	query := `
		INSERT INTO providers (tenant_id, instance_id, name, type, installed_by,
		                       configuration_key, validated_scopes, consumer, pulling_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, installation_time
	`

	err := r.db.QueryRowContext(ctx, query,
		record.TenantID,
		record.InstanceID,
		record.Name,
		record.Type,
		record.InstalledBy,
		record.ConfigurationKey,
		record.ValidatedScopes,
		record.Consumer,
		record.PullingEnabled,
	).Scan(&record.ID, &record.InstallationTime)

	if err != nil {
		return fmt.Errorf("failed to create provider record: %w", err)
	}

	return nil
}

const providerColumns = `id, tenant_id, instance_id, name, type, installed_by,
	installation_time, configuration_key, validated_scopes, consumer,
	pulling_enabled, last_pull_time`

func scanProvider(row interface{ Scan(...any) error }) (*models.ProviderRecord, error) {
	record := &models.ProviderRecord{}
	err := row.Scan(
		&record.ID,
		&record.TenantID,
		&record.InstanceID,
		&record.Name,
		&record.Type,
		&record.InstalledBy,
		&record.InstallationTime,
		&record.ConfigurationKey,
		&record.ValidatedScopes,
		&record.Consumer,
		&record.PullingEnabled,
		&record.LastPullTime,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetProvider retrieves a provider record by tenant and instance id.
// Returns (nil, nil) when no record exists.
func (r *ProviderRepository) GetProvider(ctx context.Context, tenantID, instanceID string) (*models.ProviderRecord, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE tenant_id = $1 AND instance_id = $2`

	record, err := scanProvider(r.db.QueryRowContext(ctx, query, tenantID, instanceID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return record, nil
}

// ListProviders returns all provider records installed by a tenant, newest first.
func (r *ProviderRepository) ListProviders(ctx context.Context, tenantID string) ([]*models.ProviderRecord, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE tenant_id = $1 ORDER BY installation_time DESC`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	var records []*models.ProviderRecord
	for rows.Next() {
		record, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate providers: %w", err)
	}
	return records, nil
}

// ListPullingEnabled returns records across all tenants whose providers should
// be visited by the alert pull scheduler.
func (r *ProviderRepository) ListPullingEnabled(ctx context.Context) ([]*models.ProviderRecord, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE pulling_enabled = TRUE ORDER BY tenant_id, installation_time`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pulling-enabled providers: %w", err)
	}
	defer rows.Close()

	var records []*models.ProviderRecord
	for rows.Next() {
		record, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate providers: %w", err)
	}
	return records, nil
}

// UpdateProvider updates the mutable fields of a provider record.
func (r *ProviderRepository) UpdateProvider(ctx context.Context, record *models.ProviderRecord) error {
	query := `
		UPDATE providers
		SET name = $3, validated_scopes = $4, pulling_enabled = $5
		WHERE tenant_id = $1 AND instance_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		record.TenantID, record.InstanceID,
		record.Name, record.ValidatedScopes, record.PullingEnabled,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("provider not found: %s", record.InstanceID)
	}
	return nil
}

// UpdateValidatedScopes persists a new scope validation outcome.
func (r *ProviderRepository) UpdateValidatedScopes(ctx context.Context, tenantID, instanceID string, scopes models.ScopeMap) error {
	query := `UPDATE providers SET validated_scopes = $3 WHERE tenant_id = $1 AND instance_id = $2`

	result, err := r.db.ExecContext(ctx, query, tenantID, instanceID, scopes)
	if err != nil {
		return fmt.Errorf("failed to update validated scopes: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("provider not found: %s", instanceID)
	}
	return nil
}

// UpdateLastPullTime records when the pull scheduler last visited a provider.
func (r *ProviderRepository) UpdateLastPullTime(ctx context.Context, tenantID, instanceID string, at time.Time) error {
	query := `UPDATE providers SET last_pull_time = $3 WHERE tenant_id = $1 AND instance_id = $2`

	if _, err := r.db.ExecContext(ctx, query, tenantID, instanceID, at); err != nil {
		return fmt.Errorf("failed to update last pull time: %w", err)
	}
	return nil
}

// DeleteProvider removes a provider record. Returns an error when no record
// matched, so callers can surface a not-found instead of silently succeeding.
func (r *ProviderRepository) DeleteProvider(ctx context.Context, tenantID, instanceID string) error {
	query := `DELETE FROM providers WHERE tenant_id = $1 AND instance_id = $2`

	result, err := r.db.ExecContext(ctx, query, tenantID, instanceID)
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("provider not found: %s", instanceID)
	}
	return nil
}
