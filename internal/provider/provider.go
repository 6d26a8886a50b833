// provider.go defines the Provider interface that all integration provider
// implementations must satisfy, along with the configuration value type passed
// into the factory when an instance is constructed.
package provider

import (
	"context"
	"time"
)

// Config holds the per-instance configuration for a provider. It is passed by
// value into the factory and never mutated after construction; the
// authentication map is the only part that is persisted (via the secret
// store), never the live instance.
type Config struct {
	Authentication map[string]string `json:"authentication"`
	Name           string            `json:"name,omitempty"`
}

// ScopeResults maps a scope name to its validation outcome: true/false for
// met/unmet, or a string carrying a human-readable reason for a partial or
// denied scope.
type ScopeResults map[string]any

// LogEntry is a single log line fetched from an external provider.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// HealthReport is the result of a provider self-diagnostic.
type HealthReport map[string]any

// Provider is the uniform capability surface exposed by every integration
// provider instance. Instances are ephemeral: constructed per operation,
// never cached or shared, and Close must release any acquired resource on
// all exit paths including abandonment.
type Provider interface {
	// ID returns the instance id the provider was constructed with.
	ID() string

	// Type returns the provider type name as registered in the catalog.
	Type() string

	// GetAlertsConfiguration fetches the alert rules currently configured
	// on the external system.
	GetAlertsConfiguration(ctx context.Context) ([]map[string]any, error)

	// GetLogs fetches up to limit recent log entries from the external system.
	GetLogs(ctx context.Context, limit int) ([]LogEntry, error)

	// DeployAlert pushes a new alert definition to the external system.
	DeployAlert(ctx context.Context, alert map[string]any, alertID string) error

	// ValidateScopes checks which of the declared scopes the configured
	// credentials actually grant.
	ValidateScopes(ctx context.Context) (ScopeResults, error)

	// GetHealthReport runs a self-diagnostic against the external system.
	GetHealthReport(ctx context.Context) (HealthReport, error)

	// Close releases connections or handles held by the instance.
	Close() error
}

// WebhookInstaller is implemented by providers that can register the
// platform's inbound callback URL with their external system. Providers that
// do not implement it are reported as webhook-incapable, which is a
// capability probe result, not an error.
type WebhookInstaller interface {
	InstallWebhook(ctx context.Context, callbackURL, apiKey string) error
}

// AlertPuller is implemented by providers whose alerts are fetched by the
// platform on a schedule rather than pushed via webhook.
type AlertPuller interface {
	PullAlerts(ctx context.Context) ([]map[string]any, error)
}
