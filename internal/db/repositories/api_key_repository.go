// api_key_repository.go implements APIKeyRepository, providing database queries
// for API key lookup by id, per-tenant reference lookup, creation, and
// last-used timestamp updates.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alertdesk/alertdesk/internal/db/models"
)

// APIKeyRepository handles API key database operations
type APIKeyRepository struct {
	db *sql.DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// CreateAPIKey inserts a new API key record. The id is generated client side
// (unless the caller pre-set it) because the issued key string embeds it.
func (r *APIKeyRepository) CreateAPIKey(ctx context.Context, apiKey *models.APIKey) error {
	if apiKey.ID == "" {
		apiKey.ID = uuid.New().String()
	}
	apiKey.CreatedAt = time.Now()

	query := `
		INSERT INTO api_keys (id, tenant_id, reference_id, key_hash, role, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		apiKey.ID,
		apiKey.TenantID,
		apiKey.ReferenceID,
		apiKey.KeyHash,
		apiKey.Role,
		apiKey.CreatedBy,
		apiKey.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// GetAPIKeyByID retrieves a non-revoked API key by its id.
// Returns (nil, nil) when no key exists.
func (r *APIKeyRepository) GetAPIKeyByID(ctx context.Context, keyID string) (*models.APIKey, error) {
	query := `
		SELECT id, tenant_id, reference_id, key_hash, role, created_by, created_at, last_used_at, revoked
		FROM api_keys
		WHERE id = $1 AND revoked = FALSE
	`

	apiKey := &models.APIKey{}
	err := r.db.QueryRowContext(ctx, query, keyID).Scan(
		&apiKey.ID,
		&apiKey.TenantID,
		&apiKey.ReferenceID,
		&apiKey.KeyHash,
		&apiKey.Role,
		&apiKey.CreatedBy,
		&apiKey.CreatedAt,
		&apiKey.LastUsedAt,
		&apiKey.Revoked,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return apiKey, nil
}

// GetAPIKeyByReference retrieves a tenant's key by its reference id, such as
// the "system_webhook" key the webhook provisioner issues.
// Returns (nil, nil) when no key exists.
func (r *APIKeyRepository) GetAPIKeyByReference(ctx context.Context, tenantID, referenceID string) (*models.APIKey, error) {
	query := `
		SELECT id, tenant_id, reference_id, key_hash, role, created_by, created_at, last_used_at, revoked
		FROM api_keys
		WHERE tenant_id = $1 AND reference_id = $2 AND revoked = FALSE
	`

	apiKey := &models.APIKey{}
	err := r.db.QueryRowContext(ctx, query, tenantID, referenceID).Scan(
		&apiKey.ID,
		&apiKey.TenantID,
		&apiKey.ReferenceID,
		&apiKey.KeyHash,
		&apiKey.Role,
		&apiKey.CreatedBy,
		&apiKey.CreatedAt,
		&apiKey.LastUsedAt,
		&apiKey.Revoked,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key by reference: %w", err)
	}
	return apiKey, nil
}

// UpdateLastUsed updates the last_used_at timestamp for an API key
func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, keyID string) error {
	query := `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, keyID, time.Now())
	return err
}

// RevokeAPIKey marks a key revoked. Revoked keys are kept for audit purposes
// and excluded from authentication lookups.
func (r *APIKeyRepository) RevokeAPIKey(ctx context.Context, keyID string) error {
	query := `UPDATE api_keys SET revoked = TRUE WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, keyID)
	return err
}
