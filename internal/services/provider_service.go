// Package services implements higher-level business logic that coordinates
// across the provider catalog, the secret store, and the database. The
// provider service, for example, orchestrates an installation: constructing a
// live instance to validate the configuration, checking mandatory scopes,
// writing the credentials to the secret backend, and recording the install —
// a multi-step operation that spans several domain boundaries.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alertdesk/alertdesk/internal/db/models"
	"github.com/alertdesk/alertdesk/internal/provider"
	"github.com/alertdesk/alertdesk/internal/secrets"
	"github.com/alertdesk/alertdesk/internal/telemetry"
)

// ErrProviderAlreadyInstalled is returned when an installation reuses an
// instance id the tenant already has a record for.
var ErrProviderAlreadyInstalled = errors.New("provider already installed")

// ErrReadOnly is returned when a mutating operation arrives while the
// framework runs with providers.read_only set.
var ErrReadOnly = errors.New("provider framework is in read-only mode")

// DefaultInstancePrefix marks ephemeral instance ids: "default-<type>"
// resolves to a fresh unauthenticated instance of <type>, bypassing record
// and secret lookup.
const DefaultInstancePrefix = "default-"

// ProviderRecordStore is the subset of the provider repository the service uses.
type ProviderRecordStore interface {
	CreateProvider(ctx context.Context, record *models.ProviderRecord) error
	GetProvider(ctx context.Context, tenantID, instanceID string) (*models.ProviderRecord, error)
	ListProviders(ctx context.Context, tenantID string) ([]*models.ProviderRecord, error)
	ListPullingEnabled(ctx context.Context) ([]*models.ProviderRecord, error)
	UpdateProvider(ctx context.Context, record *models.ProviderRecord) error
	UpdateValidatedScopes(ctx context.Context, tenantID, instanceID string, scopes models.ScopeMap) error
	UpdateLastPullTime(ctx context.Context, tenantID, instanceID string, at time.Time) error
	DeleteProvider(ctx context.Context, tenantID, instanceID string) error
}

// AlertStore is the subset of the alert repository the service uses.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert *models.Alert) error
	CountAlerts(ctx context.Context, tenantID string, filter models.AlertFilter) (int64, error)
	ProviderDistribution(ctx context.Context, tenantID string) (map[string][]models.HourlyCount, error)
	LinkedProviderTypes(ctx context.Context, tenantID string) ([]string, error)
}

// ProviderServiceOptions carries the config-derived switches the service
// honors at runtime.
type ProviderServiceOptions struct {
	// ReadOnly rejects every mutating operation.
	ReadOnly bool
	// DistributionEnabled attaches last-24h alert distributions to
	// installed-provider listings.
	DistributionEnabled bool
}

// ProviderService orchestrates provider installation, invocation, scope
// validation, and the read projections over installed providers.
type ProviderService struct {
	factory     *provider.Factory
	records     ProviderRecordStore
	alerts      AlertStore
	secretStore secrets.Store
	provisioner *WebhookProvisioner
	opts        ProviderServiceOptions
}

// NewProviderService creates the provider service.
func NewProviderService(
	factory *provider.Factory,
	records ProviderRecordStore,
	alerts AlertStore,
	secretStore secrets.Store,
	provisioner *WebhookProvisioner,
	opts ProviderServiceOptions,
) *ProviderService {
	return &ProviderService{
		factory:     factory,
		records:     records,
		alerts:      alerts,
		secretStore: secretStore,
		provisioner: provisioner,
		opts:        opts,
	}
}

// InstallRequest carries everything needed to install one provider instance.
type InstallRequest struct {
	TenantID       string
	InstalledBy    string
	InstanceID     string
	Name           string
	Type           string
	Config         provider.Config
	PullingEnabled bool
	InstallWebhook bool
}

// InstallResult reports a completed installation. WebhookError is informative
// only: a webhook registration failure never rolls back the install.
type InstallResult struct {
	Record           *models.ProviderRecord
	ScopeResults     provider.ScopeResults
	WebhookInstalled bool
	WebhookError     string
}

// InstallProvider validates and persists one provider installation.
//
// Ordering is load-bearing: the instance is constructed first (fail-fast
// configuration check), mandatory scopes are validated next, and only after
// both succeed is any state written. A scope failure therefore leaves zero
// secrets and zero records behind.
func (s *ProviderService) InstallProvider(ctx context.Context, req InstallRequest) (*InstallResult, error) {
	if s.opts.ReadOnly {
		return nil, ErrReadOnly
	}

	// "default-" ids resolve to ephemeral unauthenticated instances; a
	// persisted record under that prefix would be unreachable.
	if strings.HasPrefix(req.InstanceID, DefaultInstancePrefix) {
		return nil, &provider.ConfigurationError{
			ProviderType: req.Type,
			Reason:       fmt.Sprintf("instance id must not start with %q", DefaultInstancePrefix),
		}
	}

	d, err := s.factory.GetProviderClass(req.Type)
	if err != nil {
		telemetry.ProviderInstallsTotal.WithLabelValues(req.Type, "failure").Inc()
		return nil, err
	}

	existing, err := s.records.GetProvider(ctx, req.TenantID, req.InstanceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderAlreadyInstalled, req.InstanceID)
	}

	p, err := s.factory.GetProvider(ctx, req.InstanceID, req.Type, req.Config)
	if err != nil {
		telemetry.ProviderInstallsTotal.WithLabelValues(req.Type, "failure").Inc()
		return nil, err
	}
	defer p.Close()

	var scopeResults provider.ScopeResults
	if len(d.MandatoryScopes()) > 0 {
		scopeResults, err = p.ValidateScopes(ctx)
		if err != nil {
			telemetry.ProviderInstallsTotal.WithLabelValues(req.Type, "failure").Inc()
			return nil, fmt.Errorf("scope validation failed: %w", err)
		}

		failed := map[string]string{}
		for _, scope := range d.MandatoryScopes() {
			if granted, ok := scopeResults[scope.Name].(bool); ok && granted {
				continue
			}
			reason := "not granted"
			if r, ok := scopeResults[scope.Name].(string); ok {
				reason = r
			}
			failed[scope.Name] = reason
		}
		if len(failed) > 0 {
			telemetry.ProviderInstallsTotal.WithLabelValues(req.Type, "failure").Inc()
			return nil, &provider.ScopeValidationError{ProviderType: req.Type, Failed: failed}
		}
	}

	secretKey := secrets.Key(req.TenantID, req.Type, req.InstanceID)
	if err := secrets.WriteJSON(ctx, s.secretStore, secretKey, req.Config); err != nil {
		telemetry.ProviderInstallsTotal.WithLabelValues(req.Type, "failure").Inc()
		return nil, fmt.Errorf("failed to store provider configuration: %w", err)
	}

	record := &models.ProviderRecord{
		TenantID:         req.TenantID,
		InstanceID:       req.InstanceID,
		Name:             req.Name,
		Type:             req.Type,
		InstalledBy:      req.InstalledBy,
		ConfigurationKey: secretKey,
		ValidatedScopes:  scopeResultsToMap(scopeResults),
		PullingEnabled:   req.PullingEnabled,
	}
	if err := s.records.CreateProvider(ctx, record); err != nil {
		telemetry.ProviderInstallsTotal.WithLabelValues(req.Type, "failure").Inc()
		return nil, err
	}

	result := &InstallResult{Record: record, ScopeResults: scopeResults}

	if req.InstallWebhook {
		installed, whErr := s.provisioner.installWebhookForInstance(ctx, req.TenantID, d, p, req.InstanceID)
		result.WebhookInstalled = installed
		if whErr != nil {
			// Webhook registration is best-effort; the install stands.
			result.WebhookError = whErr.Error()
			slog.WarnContext(ctx, "webhook installation failed",
				"tenant_id", req.TenantID, "provider_id", req.InstanceID,
				"provider_type", req.Type, "error", whErr)
		}
	}

	telemetry.ProviderInstallsTotal.WithLabelValues(req.Type, "success").Inc()
	slog.InfoContext(ctx, "provider installed",
		"tenant_id", req.TenantID, "provider_id", req.InstanceID, "provider_type", req.Type)
	return result, nil
}

// InstallProviderOAuth2 completes an OAuth2 installation: exchanges the
// authorization payload for authentication fields, then installs under a
// generated instance id.
func (s *ProviderService) InstallProviderOAuth2(ctx context.Context, tenantID, installedBy, name, typeName string, payload map[string]string, pullingEnabled, installWebhook bool) (*InstallResult, error) {
	d, err := s.factory.GetProviderClass(typeName)
	if err != nil {
		return nil, err
	}
	if d.OAuth2Exchange == nil {
		return nil, &provider.ConfigurationError{
			ProviderType: typeName,
			Reason:       "provider does not support oauth2 installation",
		}
	}

	fields, err := d.OAuth2Exchange(ctx, payload)
	if err != nil {
		return nil, err
	}

	return s.InstallProvider(ctx, InstallRequest{
		TenantID:       tenantID,
		InstalledBy:    installedBy,
		InstanceID:     uuid.New().String(),
		Name:           name,
		Type:           typeName,
		Config:         provider.Config{Authentication: fields, Name: name},
		PullingEnabled: pullingEnabled,
		InstallWebhook: installWebhook,
	})
}

// UpdateProvider replaces an installed provider's configuration and mutable
// record fields. The new configuration goes through the same fail-fast
// construction and scope validation as an install.
func (s *ProviderService) UpdateProvider(ctx context.Context, tenantID, instanceID, name string, cfg provider.Config, pullingEnabled bool) (*InstallResult, error) {
	if s.opts.ReadOnly {
		return nil, ErrReadOnly
	}

	record, err := s.records.GetProvider(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrProviderNotFound, instanceID)
	}

	p, err := s.factory.GetProvider(ctx, instanceID, record.Type, cfg)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	scopeResults, err := p.ValidateScopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("scope validation failed: %w", err)
	}

	if err := secrets.WriteJSON(ctx, s.secretStore, record.ConfigurationKey, cfg); err != nil {
		return nil, fmt.Errorf("failed to store provider configuration: %w", err)
	}

	record.Name = name
	record.ValidatedScopes = scopeResultsToMap(scopeResults)
	record.PullingEnabled = pullingEnabled
	if err := s.records.UpdateProvider(ctx, record); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "provider updated",
		"tenant_id", tenantID, "provider_id", instanceID, "provider_type", record.Type)
	return &InstallResult{Record: record, ScopeResults: scopeResults}, nil
}

// DeleteProvider removes an installed provider. A missing instance is a
// not-found error, never a silent success. The record is deleted before the
// secret; a secret deletion failure is logged but does not resurrect the
// record.
func (s *ProviderService) DeleteProvider(ctx context.Context, tenantID, instanceID string) error {
	if s.opts.ReadOnly {
		return ErrReadOnly
	}

	record, err := s.records.GetProvider(ctx, tenantID, instanceID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: %s", provider.ErrProviderNotFound, instanceID)
	}

	if err := s.records.DeleteProvider(ctx, tenantID, instanceID); err != nil {
		return err
	}

	if err := s.secretStore.Delete(ctx, record.ConfigurationKey); err != nil {
		slog.ErrorContext(ctx, "failed to delete provider secret after record removal",
			"tenant_id", tenantID, "provider_id", instanceID, "key", record.ConfigurationKey,
			"error", err)
	}

	telemetry.ProviderDeletesTotal.WithLabelValues(record.Type).Inc()
	slog.InfoContext(ctx, "provider deleted",
		"tenant_id", tenantID, "provider_id", instanceID, "provider_type", record.Type)
	return nil
}

// resolveInstance produces a live instance for an installed provider, or an
// ephemeral unauthenticated one when the instance id carries the default-
// prefix. The returned record is nil for ephemeral instances. Callers own
// Close.
func (s *ProviderService) resolveInstance(ctx context.Context, tenantID, instanceID string) (provider.Provider, *models.ProviderRecord, error) {
	if typeName, ok := strings.CutPrefix(instanceID, DefaultInstancePrefix); ok {
		p, err := s.factory.GetProvider(ctx, instanceID, typeName, provider.Config{
			Authentication: map[string]string{},
		})
		return p, nil, err
	}

	record, err := s.records.GetProvider(ctx, tenantID, instanceID)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, fmt.Errorf("%w: %s", provider.ErrProviderNotFound, instanceID)
	}

	var cfg provider.Config
	if err := secrets.ReadJSON(ctx, s.secretStore, record.ConfigurationKey, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to load provider configuration: %w", err)
	}

	p, err := s.factory.GetProvider(ctx, instanceID, record.Type, cfg)
	if err != nil {
		return nil, nil, err
	}
	return p, record, nil
}

// OpenInstance resolves a live instance for background workers. Callers own
// Close.
func (s *ProviderService) OpenInstance(ctx context.Context, tenantID, instanceID string) (provider.Provider, error) {
	p, _, err := s.resolveInstance(ctx, tenantID, instanceID)
	return p, err
}

func scopeResultsToMap(results provider.ScopeResults) models.ScopeMap {
	out := models.ScopeMap{}
	for name, v := range results {
		out[name] = v
	}
	return out
}
