// projections.go implements the read side of the provider service: catalog
// listings, installed and linked provider views, per-instance log and
// configuration reads, test calls, and healthchecks.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/alertdesk/alertdesk/internal/db/models"
	"github.com/alertdesk/alertdesk/internal/provider"
	"github.com/alertdesk/alertdesk/internal/secrets"
)

// MethodDTO describes one invokable method in listings.
type MethodDTO struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Params      []provider.Param `json:"params,omitempty"`
}

// ProviderTypeDTO is the catalog view of one provider type.
type ProviderTypeDTO struct {
	Type               string           `json:"type"`
	DisplayName        string           `json:"display_name"`
	Tags               []string         `json:"tags,omitempty"`
	RequiredAuthFields []string         `json:"required_auth_fields,omitempty"`
	OptionalAuthFields []string         `json:"optional_auth_fields,omitempty"`
	Scopes             []provider.Scope `json:"scopes,omitempty"`
	SupportsWebhook    bool             `json:"supports_webhook"`
	SupportsOAuth2     bool             `json:"supports_oauth2"`
	CanHealthcheck     bool             `json:"can_healthcheck"`
	Methods            []MethodDTO      `json:"methods,omitempty"`
	AlertSchema        map[string]any   `json:"alert_schema,omitempty"`
}

// InstalledProviderDTO is one installed instance joined with its catalog
// metadata and, when enabled, its recent alert distribution.
type InstalledProviderDTO struct {
	ID               string               `json:"id"`
	InstanceID       string               `json:"instance_id"`
	Name             string               `json:"name"`
	Type             string               `json:"type"`
	DisplayName      string               `json:"display_name"`
	InstalledBy      string               `json:"installed_by"`
	InstallationTime time.Time            `json:"installation_time"`
	ValidatedScopes  models.ScopeMap      `json:"validated_scopes"`
	PullingEnabled   bool                 `json:"pulling_enabled"`
	LastPullTime     *time.Time           `json:"last_pull_time,omitempty"`
	Distribution     []models.HourlyCount `json:"distribution,omitempty"`
}

// LinkedProviderDTO is a provider type that has sent alerts without an
// installed record.
type LinkedProviderDTO struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Known       bool   `json:"known"`
}

func descriptorToDTO(d *provider.Descriptor) ProviderTypeDTO {
	dto := ProviderTypeDTO{
		Type:               d.Type,
		DisplayName:        d.DisplayName,
		Tags:               d.Tags,
		RequiredAuthFields: d.RequiredAuthFields,
		OptionalAuthFields: d.OptionalAuthFields,
		Scopes:             d.Scopes,
		SupportsWebhook:    d.SupportsWebhook(),
		SupportsOAuth2:     d.OAuth2Exchange != nil,
		CanHealthcheck:     d.CanHealthcheck,
		AlertSchema:        d.AlertSchema,
	}
	for name, m := range d.Methods {
		dto.Methods = append(dto.Methods, MethodDTO{
			Name:        name,
			Description: m.Description,
			Params:      m.Params,
		})
	}
	return dto
}

// GetAllProviders lists every provider type in the catalog.
func (s *ProviderService) GetAllProviders() []ProviderTypeDTO {
	descriptors := s.factory.Catalog().All()
	out := make([]ProviderTypeDTO, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, descriptorToDTO(d))
	}
	return out
}

// GetProviderType returns the catalog view of one type.
func (s *ProviderService) GetProviderType(typeName string) (*ProviderTypeDTO, error) {
	d, err := s.factory.GetProviderClass(typeName)
	if err != nil {
		return nil, err
	}
	dto := descriptorToDTO(d)
	return &dto, nil
}

// GetAlertSchema returns the alert payload schema a type expects.
func (s *ProviderService) GetAlertSchema(typeName string) (map[string]any, error) {
	d, err := s.factory.GetProviderClass(typeName)
	if err != nil {
		return nil, err
	}
	return d.AlertSchema, nil
}

// GetInstalledProviders lists the tenant's installed providers. When alert
// distribution is enabled (and the framework is not read-only), each entry
// carries its last-24h hourly alert counts.
func (s *ProviderService) GetInstalledProviders(ctx context.Context, tenantID string) ([]InstalledProviderDTO, error) {
	records, err := s.records.ListProviders(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var distribution map[string][]models.HourlyCount
	if s.opts.DistributionEnabled && !s.opts.ReadOnly && len(records) > 0 {
		distribution, err = s.alerts.ProviderDistribution(ctx, tenantID)
		if err != nil {
			return nil, err
		}
	}

	out := make([]InstalledProviderDTO, 0, len(records))
	for _, r := range records {
		dto := InstalledProviderDTO{
			ID:               r.ID,
			InstanceID:       r.InstanceID,
			Name:             r.Name,
			Type:             r.Type,
			DisplayName:      r.Type,
			InstalledBy:      r.InstalledBy,
			InstallationTime: r.InstallationTime,
			ValidatedScopes:  r.ValidatedScopes,
			PullingEnabled:   r.PullingEnabled,
			LastPullTime:     r.LastPullTime,
		}
		if d, err := s.factory.GetProviderClass(r.Type); err == nil {
			dto.DisplayName = d.DisplayName
		}
		if distribution != nil {
			dto.Distribution = distribution[r.Type]
		}
		out = append(out, dto)
	}
	return out, nil
}

// ExportedProviderDTO is one installed provider together with its stored
// authentication details, suitable for migrating installs between
// deployments.
type ExportedProviderDTO struct {
	InstalledProviderDTO
	Authentication map[string]string `json:"authentication"`
}

// ExportInstalledProviders lists the tenant's installed providers including
// the authentication material held in the secret store.
func (s *ProviderService) ExportInstalledProviders(ctx context.Context, tenantID string) ([]ExportedProviderDTO, error) {
	installed, err := s.GetInstalledProviders(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	out := make([]ExportedProviderDTO, 0, len(installed))
	for _, dto := range installed {
		var cfg provider.Config
		key := secrets.Key(tenantID, dto.Type, dto.InstanceID)
		if err := secrets.ReadJSON(ctx, s.secretStore, key, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read configuration for %s: %w", dto.InstanceID, err)
		}
		out = append(out, ExportedProviderDTO{
			InstalledProviderDTO: dto,
			Authentication:       cfg.Authentication,
		})
	}
	return out, nil
}

// GetLinkedProviders lists provider types that pushed alerts to the tenant
// without being installed.
func (s *ProviderService) GetLinkedProviders(ctx context.Context, tenantID string) ([]LinkedProviderDTO, error) {
	types, err := s.alerts.LinkedProviderTypes(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	out := make([]LinkedProviderDTO, 0, len(types))
	for _, typeName := range types {
		dto := LinkedProviderDTO{Type: typeName, DisplayName: typeName}
		if d, err := s.factory.GetProviderClass(typeName); err == nil {
			dto.DisplayName = d.DisplayName
			dto.Known = true
		}
		out = append(out, dto)
	}
	return out, nil
}

// GetProviderLogs fetches recent log entries from an installed (or
// default-*) provider instance.
func (s *ProviderService) GetProviderLogs(ctx context.Context, tenantID, instanceID string, limit int) ([]provider.LogEntry, error) {
	p, _, err := s.resolveInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.GetLogs(ctx, limit)
}

// GetAlertsConfiguration fetches the alert rules configured on the external
// system behind an instance.
func (s *ProviderService) GetAlertsConfiguration(ctx context.Context, tenantID, instanceID string) ([]map[string]any, error) {
	p, _, err := s.resolveInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.GetAlertsConfiguration(ctx)
}

// DeployAlert pushes an alert definition through an instance to its external
// system.
func (s *ProviderService) DeployAlert(ctx context.Context, tenantID, instanceID string, alert map[string]any, alertID string) error {
	if s.opts.ReadOnly {
		return ErrReadOnly
	}
	p, _, err := s.resolveInstance(ctx, tenantID, instanceID)
	if err != nil {
		return err
	}
	defer p.Close()
	return p.DeployAlert(ctx, alert, alertID)
}

// TestReport summarizes a connectivity test against one instance.
type TestReport struct {
	Reachable    bool                  `json:"reachable"`
	Error        string                `json:"error,omitempty"`
	AlertRules   int                   `json:"alert_rules"`
	ScopeResults provider.ScopeResults `json:"scope_results,omitempty"`
}

// TestProvider exercises an instance end to end without mutating anything:
// it fetches the alert configuration and re-validates scopes.
func (s *ProviderService) TestProvider(ctx context.Context, tenantID, instanceID string) (*TestReport, error) {
	p, _, err := s.resolveInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	report := &TestReport{}
	rules, err := p.GetAlertsConfiguration(ctx)
	if err != nil {
		report.Error = err.Error()
		return report, nil
	}
	report.Reachable = true
	report.AlertRules = len(rules)

	if results, err := p.ValidateScopes(ctx); err == nil {
		report.ScopeResults = results
	}
	return report, nil
}

// HealthcheckProvider runs a self-diagnostic on a provider type that supports
// unconfigured healthchecks.
func (s *ProviderService) HealthcheckProvider(ctx context.Context, typeName string) (provider.HealthReport, error) {
	d, err := s.factory.GetProviderClass(typeName)
	if err != nil {
		return nil, err
	}
	if !d.CanHealthcheck {
		return nil, &provider.ConfigurationError{
			ProviderType: typeName,
			Reason:       "provider type does not support unconfigured healthchecks",
		}
	}

	p, err := s.factory.GetProvider(ctx, DefaultInstancePrefix+typeName, typeName, provider.Config{
		Authentication: map[string]string{},
	})
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.GetHealthReport(ctx)
}

// HealthcheckAll runs healthchecks on every type that supports them, keyed by
// type name.
func (s *ProviderService) HealthcheckAll(ctx context.Context) map[string]provider.HealthReport {
	out := map[string]provider.HealthReport{}
	for _, d := range s.factory.Catalog().All() {
		if !d.CanHealthcheck {
			continue
		}
		report, err := s.HealthcheckProvider(ctx, d.Type)
		if err != nil {
			report = provider.HealthReport{"healthy": false, "error": err.Error()}
		}
		out[d.Type] = report
	}
	return out
}
