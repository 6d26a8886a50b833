// Package secrets stores provider credentials outside the main provider
// records. A provider record holds only metadata; the authentication material
// a tenant hands over at install time (API keys, service account tokens) lives
// in a Store keyed deterministically by tenant, provider type, and instance id
// so that the record and its secret can always be re-associated without an
// extra lookup table.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSecretNotFound is returned when no secret exists under the requested key.
var ErrSecretNotFound = errors.New("secrets: secret not found")

// Store persists opaque secret blobs under string keys.
type Store interface {
	// Write stores value under key, overwriting any existing secret.
	Write(ctx context.Context, key string, value []byte) error
	// Read returns the secret stored under key, or ErrSecretNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// Delete removes the secret under key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Key builds the deterministic secret key for a provider instance.
func Key(tenantID, providerType, instanceID string) string {
	return fmt.Sprintf("%s_%s_%s", tenantID, providerType, instanceID)
}

// WriteJSON marshals v and stores it under key.
func WriteJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("secrets: marshal %s: %w", key, err)
	}
	return s.Write(ctx, key, data)
}

// ReadJSON reads the secret under key and unmarshals it into out.
func ReadJSON(ctx context.Context, s Store, key string, out any) error {
	data, err := s.Read(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("secrets: unmarshal %s: %w", key, err)
	}
	return nil
}
