// Package simulator implements a self-contained provider that fabricates
// alerts and logs without any external system. It requires no authentication,
// which makes it the reference target for ephemeral default-simulator
// invocations and for healthchecks in fresh environments.
package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/alertdesk/alertdesk/internal/provider"
)

// ProviderType is the catalog key this package registers under.
const ProviderType = "simulator"

var alertNames = []string{
	"HighCPUUsage", "DiskPressure", "PodCrashLooping",
	"LatencySLOBurn", "CertificateExpiring",
}

// Provider fabricates deterministic-shaped, randomly-populated alert data.
type Provider struct {
	instanceID string

	mu       sync.Mutex
	deployed []map[string]any
}

// New constructs a simulator instance. The configuration is ignored: the
// simulator has no external system to authenticate against.
func New(instanceID string, cfg provider.Config) (provider.Provider, error) {
	return &Provider{instanceID: instanceID}, nil
}

func (p *Provider) ID() string   { return p.instanceID }
func (p *Provider) Type() string { return ProviderType }
func (p *Provider) Close() error { return nil }

func randomAlert() map[string]any {
	name := alertNames[rand.Intn(len(alertNames))]
	severity := []string{"critical", "warning", "info"}[rand.Intn(3)]
	return map[string]any{
		"name":     name,
		"status":   "firing",
		"severity": severity,
		"labels": map[string]any{
			"service": fmt.Sprintf("service-%d", rand.Intn(10)),
			"region":  []string{"eu-west-1", "us-east-1"}[rand.Intn(2)],
		},
		"startsAt": time.Now().UTC().Format(time.RFC3339),
	}
}

// GetAlertsConfiguration returns the alerts deployed to this instance.
func (p *Provider) GetAlertsConfiguration(ctx context.Context) ([]map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]map[string]any, len(p.deployed))
	copy(out, p.deployed)
	return out, nil
}

// PullAlerts fabricates between one and three firing alerts.
func (p *Provider) PullAlerts(ctx context.Context) ([]map[string]any, error) {
	n := 1 + rand.Intn(3)
	alerts := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		alerts = append(alerts, randomAlert())
	}
	return alerts, nil
}

// GetLogs fabricates recent log entries, newest last.
func (p *Provider) GetLogs(ctx context.Context, limit int) ([]provider.LogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	entries := make([]provider.LogEntry, 0, limit)
	now := time.Now().UTC()
	for i := limit - 1; i >= 0; i-- {
		entries = append(entries, provider.LogEntry{
			Timestamp: now.Add(-time.Duration(i) * time.Second),
			Level:     []string{"info", "warn", "error"}[rand.Intn(3)],
			Message:   fmt.Sprintf("simulated event %d", limit-i),
		})
	}
	return entries, nil
}

// DeployAlert records the alert in-memory.
func (p *Provider) DeployAlert(ctx context.Context, alert map[string]any, alertID string) error {
	if alertID != "" {
		alert["id"] = alertID
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deployed = append(p.deployed, alert)
	return nil
}

// ValidateScopes always succeeds: there is nothing to be denied.
func (p *Provider) ValidateScopes(ctx context.Context) (provider.ScopeResults, error) {
	return provider.ScopeResults{ScopeSimulate: true}, nil
}

// GetHealthReport always reports healthy.
func (p *Provider) GetHealthReport(ctx context.Context) (provider.HealthReport, error) {
	return provider.HealthReport{"healthy": true, "simulated": true}, nil
}

// ScopeSimulate is the simulator's single declared scope.
const ScopeSimulate = "simulate"

// simulateAlert handles the simulate_alert method, producing one fabricated
// alert with optional caller-chosen name and severity.
func simulateAlert(ctx context.Context, p provider.Provider, params map[string]any) (any, error) {
	alert := randomAlert()
	if name, ok := params["name"].(string); ok && name != "" {
		alert["name"] = name
	}
	if severity, ok := params["severity"].(string); ok && severity != "" {
		alert["severity"] = severity
	}
	return alert, nil
}

func init() {
	provider.MustRegister(&provider.Descriptor{
		Type:           ProviderType,
		DisplayName:    "Simulator",
		Tags:           []string{"alert", "testing"},
		CanHealthcheck: true,
		Scopes: []provider.Scope{
			{Name: ScopeSimulate, Description: "Fabricate alerts and logs"},
		},
		AlertSchema: map[string]any{
			"name":     map[string]any{"type": "string", "required": true},
			"severity": map[string]any{"type": "string"},
		},
		Methods: map[string]provider.Method{
			"simulate_alert": {
				Description: "Fabricate one alert, optionally overriding name and severity",
				Params: []provider.Param{
					{Name: "name"},
					{Name: "severity"},
				},
				Func: simulateAlert,
			},
		},
		New: New,
	})
}
