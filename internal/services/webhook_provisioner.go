// webhook_provisioner.go derives the per-tenant webhook settings a provider
// needs to push alerts into the platform: the callback URL, a system-owned
// API key, and the provider type's rendered setup templates.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alertdesk/alertdesk/internal/auth"
	"github.com/alertdesk/alertdesk/internal/db/models"
	"github.com/alertdesk/alertdesk/internal/provider"
	"github.com/alertdesk/alertdesk/internal/secrets"
	"github.com/alertdesk/alertdesk/internal/telemetry"

	"github.com/google/uuid"
)

// SystemWebhookKeyReference is the per-tenant reference id of the API key the
// provisioner issues for inbound webhook calls.
const SystemWebhookKeyReference = "system_webhook"

// APIKeyStore is the subset of the API key repository the provisioner uses.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, apiKey *models.APIKey) error
	GetAPIKeyByReference(ctx context.Context, tenantID, referenceID string) (*models.APIKey, error)
}

// WebhookSettings is everything a tenant needs to point an external system at
// the platform's inbound alert endpoint.
type WebhookSettings struct {
	ProviderType     string `json:"provider_type"`
	CallbackURL      string `json:"callback_url"`
	APIKey           string `json:"api_key"`
	AuthenticatedURL string `json:"authenticated_url"`
	Description      string `json:"description"`
	Template         string `json:"template"`
	Markdown         string `json:"markdown,omitempty"`
}

// WebhookProvisioner issues webhook credentials and renders provider setup
// templates.
type WebhookProvisioner struct {
	catalog     *provider.Catalog
	apiKeys     APIKeyStore
	secretStore secrets.Store
	publicURL   string
	keyPrefix   string
}

// NewWebhookProvisioner creates a webhook provisioner. publicURL is the
// external base URL of the API; keyPrefix is the configured API key prefix
// (e.g. "adk_").
func NewWebhookProvisioner(catalog *provider.Catalog, apiKeys APIKeyStore, secretStore secrets.Store, publicURL, keyPrefix string) *WebhookProvisioner {
	return &WebhookProvisioner{
		catalog:     catalog,
		apiKeys:     apiKeys,
		secretStore: secretStore,
		publicURL:   strings.TrimRight(publicURL, "/"),
		keyPrefix:   keyPrefix,
	}
}

// CallbackURL builds the inbound event URL for a provider type, optionally
// scoped to one installed instance.
func (w *WebhookProvisioner) CallbackURL(typeName, instanceID string) string {
	url := fmt.Sprintf("%s/alerts/event/%s", w.publicURL, typeName)
	if instanceID != "" {
		url += "?provider_id=" + instanceID
	}
	return url
}

// systemKeySecretKey is where the raw system webhook key is kept so settings
// calls can render it again. Only the bcrypt hash lives in the database.
func systemKeySecretKey(tenantID string) string {
	return secrets.Key(tenantID, "system", "webhook")
}

// getOrCreateSystemKey returns the tenant's raw system webhook API key,
// issuing one on first use.
func (w *WebhookProvisioner) getOrCreateSystemKey(ctx context.Context, tenantID string) (string, error) {
	existing, err := w.apiKeys.GetAPIKeyByReference(ctx, tenantID, SystemWebhookKeyReference)
	if err != nil {
		return "", err
	}
	if existing != nil {
		raw, err := w.secretStore.Read(ctx, systemKeySecretKey(tenantID))
		if err != nil {
			return "", fmt.Errorf("system webhook key record exists but raw key is unreadable: %w", err)
		}
		return string(raw), nil
	}

	keyID := uuid.New().String()
	rawKey, hash, err := auth.GenerateAPIKey(w.keyPrefix, keyID)
	if err != nil {
		return "", err
	}

	if err := w.secretStore.Write(ctx, systemKeySecretKey(tenantID), []byte(rawKey)); err != nil {
		return "", fmt.Errorf("failed to seal system webhook key: %w", err)
	}

	record := &models.APIKey{
		ID:          keyID,
		TenantID:    tenantID,
		ReferenceID: SystemWebhookKeyReference,
		KeyHash:     hash,
		Role:        "webhook",
		CreatedBy:   "system",
	}
	if err := w.apiKeys.CreateAPIKey(ctx, record); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "issued system webhook api key",
		"tenant_id", tenantID, "key_prefix", auth.DisplayPrefix(rawKey))
	return rawKey, nil
}

// authenticatedURL embeds the webhook credential into the callback URL's
// authority so systems without configurable auth headers can still
// authenticate.
func authenticatedURL(callbackURL, apiKey string) string {
	for _, scheme := range []string{"https://", "http://"} {
		if rest, ok := strings.CutPrefix(callbackURL, scheme); ok {
			return scheme + "alertdesk:" + apiKey + "@" + rest
		}
	}
	return callbackURL
}

// GetWebhookSettings derives and renders the webhook settings for one
// provider type. instanceID may be empty for type-level settings.
func (w *WebhookProvisioner) GetWebhookSettings(ctx context.Context, tenantID, typeName, instanceID string) (*WebhookSettings, error) {
	d, err := w.catalog.Descriptor(typeName)
	if err != nil {
		return nil, err
	}
	if !d.SupportsWebhook() {
		return nil, fmt.Errorf("%w: %s", provider.ErrWebhookNotSupported, typeName)
	}

	apiKey, err := w.getOrCreateSystemKey(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	callback := w.CallbackURL(typeName, instanceID)
	authURL := authenticatedURL(callback, apiKey)

	render := strings.NewReplacer(
		"{{callback_url}}", callback,
		"{{api_key}}", apiKey,
		"{{authenticated_url}}", authURL,
	)

	settings := &WebhookSettings{
		ProviderType:     typeName,
		CallbackURL:      callback,
		APIKey:           apiKey,
		AuthenticatedURL: authURL,
		Description:      render.Replace(d.WebhookDescription),
		Template:         render.Replace(d.WebhookTemplate),
	}
	if d.WebhookMarkdown != "" {
		settings.Markdown = render.Replace(d.WebhookMarkdown)
	}
	return settings, nil
}

// installWebhookForInstance asks a live instance to register the platform
// callback with its external system. Returns (false, nil) when the type does
// not support webhooks or the instance does not implement registration: a
// capability probe outcome, not an error.
func (w *WebhookProvisioner) installWebhookForInstance(ctx context.Context, tenantID string, d *provider.Descriptor, p provider.Provider, instanceID string) (bool, error) {
	if !d.SupportsWebhook() {
		return false, nil
	}
	installer, ok := p.(provider.WebhookInstaller)
	if !ok {
		return false, nil
	}

	settings, err := w.GetWebhookSettings(ctx, tenantID, d.Type, instanceID)
	if err != nil {
		telemetry.WebhookInstallsTotal.WithLabelValues(d.Type, "failure").Inc()
		return false, err
	}

	if err := installer.InstallWebhook(ctx, settings.CallbackURL, settings.APIKey); err != nil {
		telemetry.WebhookInstallsTotal.WithLabelValues(d.Type, "failure").Inc()
		return false, err
	}

	telemetry.WebhookInstallsTotal.WithLabelValues(d.Type, "success").Inc()
	return true, nil
}
