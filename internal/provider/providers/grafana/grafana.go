// Package grafana implements the Grafana integration provider. It talks to
// the Grafana HTTP API with a service account token, pulls alert rules and
// firing alerts, deploys new rules, and can register the platform's inbound
// webhook as a Grafana notification channel.
package grafana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/alertdesk/alertdesk/internal/provider"
)

// ProviderType is the catalog key this package registers under.
const ProviderType = "grafana"

const apiTimeout = 30 * time.Second

// Scope names checked during validation. They mirror Grafana's RBAC actions.
const (
	ScopeAlertRulesRead    = "alert.rules:read"
	ScopeAlertRulesWrite   = "alert.rules:write"
	ScopeDatasourcesRead   = "datasources:read"
	ScopeNotificationsRead = "alert.notifications:read"
)

// Provider is a live Grafana instance bound to one installed configuration.
type Provider struct {
	instanceID string
	host       string
	token      string
	client     *http.Client
}

// New constructs a Grafana provider instance. The factory has already
// checked required fields, so host and token are non-empty here.
func New(instanceID string, cfg provider.Config) (provider.Provider, error) {
	host := strings.TrimRight(cfg.Authentication["host"], "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		return nil, fmt.Errorf("host must include a scheme: %s", host)
	}
	return &Provider{
		instanceID: instanceID,
		host:       host,
		token:      cfg.Authentication["token"],
		client:     &http.Client{Timeout: apiTimeout},
	}, nil
}

// ID returns the instance id.
func (p *Provider) ID() string { return p.instanceID }

// Type returns the catalog type name.
func (p *Provider) Type() string { return ProviderType }

// Close releases the idle connections held by the instance's HTTP client.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *Provider) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.host+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("grafana request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return provider.NewMethodError(resp.StatusCode,
			fmt.Sprintf("grafana returned %d for %s", resp.StatusCode, path),
			fmt.Errorf("%s", strings.TrimSpace(string(msg))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode grafana response: %w", err)
	}
	return nil
}

// GetAlertsConfiguration fetches the provisioned alert rules.
func (p *Provider) GetAlertsConfiguration(ctx context.Context) ([]map[string]any, error) {
	var rules []map[string]any
	if err := p.doJSON(ctx, http.MethodGet, "/api/v1/provisioning/alert-rules", nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// PullAlerts fetches the currently firing alerts from the Alertmanager API.
func (p *Provider) PullAlerts(ctx context.Context) ([]map[string]any, error) {
	var alerts []map[string]any
	if err := p.doJSON(ctx, http.MethodGet, "/api/alertmanager/grafana/api/v2/alerts", nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// GetLogs fetches recent annotations as a log approximation. Grafana has no
// general log endpoint for service accounts; annotations carry the alert
// state transitions that matter here.
func (p *Provider) GetLogs(ctx context.Context, limit int) ([]provider.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var annotations []struct {
		Time int64  `json:"time"`
		Text string `json:"text"`
	}
	path := fmt.Sprintf("/api/annotations?type=alert&limit=%d", limit)
	if err := p.doJSON(ctx, http.MethodGet, path, nil, &annotations); err != nil {
		return nil, err
	}

	entries := make([]provider.LogEntry, 0, len(annotations))
	for _, a := range annotations {
		entries = append(entries, provider.LogEntry{
			Timestamp: time.UnixMilli(a.Time),
			Level:     "info",
			Message:   a.Text,
		})
	}
	return entries, nil
}

// DeployAlert provisions a new alert rule.
func (p *Provider) DeployAlert(ctx context.Context, alert map[string]any, alertID string) error {
	if alertID != "" {
		alert["uid"] = alertID
	}
	return p.doJSON(ctx, http.MethodPost, "/api/v1/provisioning/alert-rules", alert, nil)
}

// ValidateScopes probes the endpoints behind each declared scope with the
// configured token. A scope maps to true when the probe succeeds, or to the
// failure reason when it does not.
func (p *Provider) ValidateScopes(ctx context.Context) (provider.ScopeResults, error) {
	probes := map[string]func(ctx context.Context) error{
		ScopeAlertRulesRead: func(ctx context.Context) error {
			var rules []map[string]any
			return p.doJSON(ctx, http.MethodGet, "/api/v1/provisioning/alert-rules", nil, &rules)
		},
		ScopeDatasourcesRead: func(ctx context.Context) error {
			var ds []map[string]any
			return p.doJSON(ctx, http.MethodGet, "/api/datasources", nil, &ds)
		},
		ScopeNotificationsRead: func(ctx context.Context) error {
			var cps []map[string]any
			return p.doJSON(ctx, http.MethodGet, "/api/v1/provisioning/contact-points", nil, &cps)
		},
	}

	results := provider.ScopeResults{}
	for name, probe := range probes {
		if err := probe(ctx); err != nil {
			results[name] = err.Error()
		} else {
			results[name] = true
		}
	}
	// Write access cannot be probed without side effects; it is granted
	// together with read on Grafana service accounts, so mirror the read
	// outcome.
	results[ScopeAlertRulesWrite] = results[ScopeAlertRulesRead]
	return results, nil
}

// GetHealthReport runs Grafana's health endpoint.
func (p *Provider) GetHealthReport(ctx context.Context) (provider.HealthReport, error) {
	var health map[string]any
	if err := p.doJSON(ctx, http.MethodGet, "/api/health", nil, &health); err != nil {
		return provider.HealthReport{"healthy": false, "error": err.Error()}, nil
	}
	return provider.HealthReport{"healthy": true, "details": health}, nil
}

// InstallWebhook registers the platform callback as a Grafana contact point.
func (p *Provider) InstallWebhook(ctx context.Context, callbackURL, apiKey string) error {
	contactPoint := map[string]any{
		"name": "alertdesk",
		"type": "webhook",
		"settings": map[string]any{
			"url":        callbackURL,
			"httpMethod": http.MethodPost,
			"username":   "alertdesk",
			"password":   apiKey,
		},
	}
	return p.doJSON(ctx, http.MethodPost, "/api/v1/provisioning/contact-points", contactPoint, nil)
}

// getDashboards handles the get_dashboards method.
func getDashboards(ctx context.Context, p provider.Provider, params map[string]any) (any, error) {
	g := p.(*Provider)
	query := ""
	if q, ok := params["query"].(string); ok && q != "" {
		query = "&query=" + q
	}
	var dashboards []map[string]any
	if err := g.doJSON(ctx, http.MethodGet, "/api/search?type=dash-db"+query, nil, &dashboards); err != nil {
		return nil, err
	}
	return dashboards, nil
}

// getDatasources handles the get_datasources method.
func getDatasources(ctx context.Context, p provider.Provider, params map[string]any) (any, error) {
	g := p.(*Provider)
	var ds []map[string]any
	if err := g.doJSON(ctx, http.MethodGet, "/api/datasources", nil, &ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// silenceAlert handles the silence_alert method.
func silenceAlert(ctx context.Context, p provider.Provider, params map[string]any) (any, error) {
	g := p.(*Provider)

	uid, _ := params["alert_uid"].(string)
	durationMinutes := 60.0
	if d, ok := params["duration_minutes"].(float64); ok && d > 0 {
		durationMinutes = d
	}

	now := time.Now().UTC()
	silence := map[string]any{
		"matchers": []map[string]any{
			{"name": "__alert_rule_uid__", "value": uid, "isEqual": true},
		},
		"startsAt":  now.Format(time.RFC3339),
		"endsAt":    now.Add(time.Duration(durationMinutes) * time.Minute).Format(time.RFC3339),
		"createdBy": "alertdesk",
		"comment":   "silenced via alertdesk",
	}

	var created map[string]any
	if err := g.doJSON(ctx, http.MethodPost, "/api/alertmanager/grafana/api/v2/silences", silence, &created); err != nil {
		return nil, err
	}
	return created, nil
}

var descriptor = &provider.Descriptor{
	Type:               ProviderType,
	DisplayName:        "Grafana",
	Tags:               []string{"alert", "monitoring"},
	RequiredAuthFields: []string{"host", "token"},
	OptionalAuthFields: []string{"org_id"},
	Scopes: []provider.Scope{
		{Name: ScopeAlertRulesRead, Description: "Read provisioned alert rules", Mandatory: true},
		{Name: ScopeAlertRulesWrite, Description: "Create and update alert rules"},
		{Name: ScopeDatasourcesRead, Description: "List configured datasources"},
		{Name: ScopeNotificationsRead, Description: "Read contact points"},
	},
	AlertSchema: map[string]any{
		"title":       map[string]any{"type": "string", "required": true},
		"condition":   map[string]any{"type": "string", "required": true},
		"folderUID":   map[string]any{"type": "string", "required": true},
		"ruleGroup":   map[string]any{"type": "string", "required": true},
		"annotations": map[string]any{"type": "object"},
		"labels":      map[string]any{"type": "object"},
	},
	WebhookDescription: "Add a webhook contact point in Grafana pointing at {{callback_url}} with basic auth user 'alertdesk' and password {{api_key}}.",
	WebhookTemplate:    "{{authenticated_url}}",
	WebhookMarkdown: `## Grafana webhook setup

1. Open **Alerting → Contact points** and create a new contact point of type **Webhook**.
2. Set the URL to ` + "`{{callback_url}}`" + `.
3. Set HTTP basic auth username to ` + "`alertdesk`" + ` and password to ` + "`{{api_key}}`" + `.
4. Route the notification policies you want mirrored to the new contact point.
`,
	Methods: map[string]provider.Method{
		"get_dashboards": {
			Description: "Search dashboards, optionally filtered by a query string",
			Params:      []provider.Param{{Name: "query"}},
			Func:        getDashboards,
		},
		"get_datasources": {
			Description: "List configured datasources",
			Func:        getDatasources,
		},
		"silence_alert": {
			Description: "Create an Alertmanager silence for one alert rule",
			Params: []provider.Param{
				{Name: "alert_uid", Required: true},
				{Name: "duration_minutes"},
			},
			Func: silenceAlert,
		},
	},
	New: New,
}

func init() {
	provider.MustRegister(descriptor)
}

// ConfigureOAuth2 enables the OAuth2 installation path against Grafana Cloud
// using the tenant platform's registered OAuth2 client. Called from main once
// configuration is loaded; descriptors registered in init() cannot see
// config.
func ConfigureOAuth2(clientID, clientSecret, redirectURL string) {
	descriptor.OAuth2Exchange = provider.OAuth2CodeExchange(clientID, clientSecret, redirectURL, oauth2.Endpoint{
		AuthURL:  "https://grafana.com/oauth2/authorize",
		TokenURL: "https://grafana.com/api/oauth2/token",
	})
}
