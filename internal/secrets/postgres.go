package secrets

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/alertdesk/alertdesk/internal/config"
	"github.com/alertdesk/alertdesk/internal/crypto"
)

func init() {
	Register("postgres", func(cfg *config.Config, db *sql.DB) (Store, error) {
		if db == nil {
			return nil, errors.New("secrets: postgres backend requires a database connection")
		}
		key, err := base64.URLEncoding.DecodeString(cfg.Secrets.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("secrets: encryption key is not valid base64url: %w", err)
		}
		cipher, err := crypto.NewSecretCipher(key)
		if err != nil {
			return nil, fmt.Errorf("secrets: %w", err)
		}
		return NewPostgresStore(db, cipher), nil
	})
}

// PostgresStore keeps secrets in the application database, encrypted at rest
// with AES-256-GCM. The ciphertext column is text (base64url) rather than
// bytea so dumps and replication streams never carry raw key material.
type PostgresStore struct {
	db     *sql.DB
	cipher *crypto.SecretCipher
}

// NewPostgresStore creates a database-backed secret store.
func NewPostgresStore(db *sql.DB, cipher *crypto.SecretCipher) *PostgresStore {
	return &PostgresStore{db: db, cipher: cipher}
}

// Write stores value under key, overwriting any existing secret.
func (s *PostgresStore) Write(ctx context.Context, key string, value []byte) error {
	sealed, err := s.cipher.Seal(string(value))
	if err != nil {
		return fmt.Errorf("secrets: seal %s: %w", key, err)
	}

	query := `
		INSERT INTO provider_secrets (key, value, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, key, sealed); err != nil {
		return fmt.Errorf("secrets: write %s: %w", key, err)
	}
	return nil
}

// Read returns the secret stored under key, or ErrSecretNotFound.
func (s *PostgresStore) Read(ctx context.Context, key string) ([]byte, error) {
	var sealed string
	query := `SELECT value FROM provider_secrets WHERE key = $1`
	err := s.db.QueryRowContext(ctx, query, key).Scan(&sealed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("secrets: read %s: %w", key, err)
	}

	plaintext, err := s.cipher.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("secrets: open %s: %w", key, err)
	}
	return []byte(plaintext), nil
}

// Delete removes the secret under key. Deleting an absent key is not an error.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM provider_secrets WHERE key = $1`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("secrets: delete %s: %w", key, err)
	}
	return nil
}
