// Package webhook implements the generic webhook provider: an outbound JSON
// sink for deployed alerts plus the inbound templates that let any system
// capable of an HTTP POST push alerts into the platform.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alertdesk/alertdesk/internal/provider"
)

// ProviderType is the catalog key this package registers under.
const ProviderType = "webhook"

const requestTimeout = 30 * time.Second

// Provider posts alert payloads to a tenant-configured URL.
type Provider struct {
	instanceID string
	url        string
	authHeader string
	client     *http.Client
}

// New constructs a webhook provider instance.
func New(instanceID string, cfg provider.Config) (provider.Provider, error) {
	url := cfg.Authentication["url"]
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("url must include a scheme: %s", url)
	}
	return &Provider{
		instanceID: instanceID,
		url:        url,
		authHeader: cfg.Authentication["authorization_header"],
		client:     &http.Client{Timeout: requestTimeout},
	}, nil
}

func (p *Provider) ID() string   { return p.instanceID }
func (p *Provider) Type() string { return ProviderType }

func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *Provider) post(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.authHeader != "" {
		req.Header.Set("Authorization", p.authHeader)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return provider.NewMethodError(resp.StatusCode,
			fmt.Sprintf("webhook endpoint returned %d", resp.StatusCode),
			fmt.Errorf("%s", strings.TrimSpace(string(msg))))
	}
	return nil
}

// GetAlertsConfiguration returns no rules: a plain webhook endpoint has no
// queryable alert configuration.
func (p *Provider) GetAlertsConfiguration(ctx context.Context) ([]map[string]any, error) {
	return []map[string]any{}, nil
}

// GetLogs returns no entries: the remote endpoint exposes no log surface.
func (p *Provider) GetLogs(ctx context.Context, limit int) ([]provider.LogEntry, error) {
	return []provider.LogEntry{}, nil
}

// DeployAlert posts the alert payload to the configured URL.
func (p *Provider) DeployAlert(ctx context.Context, alert map[string]any, alertID string) error {
	payload := map[string]any{"alert": alert}
	if alertID != "" {
		payload["id"] = alertID
	}
	return p.post(ctx, payload)
}

// ValidateScopes reports reachability of the configured URL. A webhook sink
// has a single effective permission: the endpoint accepts our POSTs.
func (p *Provider) ValidateScopes(ctx context.Context) (provider.ScopeResults, error) {
	results := provider.ScopeResults{}
	if err := p.post(ctx, map[string]any{"type": "connectivity_check", "source": "alertdesk"}); err != nil {
		results[ScopeSend] = err.Error()
	} else {
		results[ScopeSend] = true
	}
	return results, nil
}

// GetHealthReport reuses the connectivity probe.
func (p *Provider) GetHealthReport(ctx context.Context) (provider.HealthReport, error) {
	if err := p.post(ctx, map[string]any{"type": "connectivity_check", "source": "alertdesk"}); err != nil {
		return provider.HealthReport{"healthy": false, "error": err.Error()}, nil
	}
	return provider.HealthReport{"healthy": true}, nil
}

// ScopeSend is the single scope a webhook sink is validated against.
const ScopeSend = "send"

// postRaw handles the post method, forwarding an arbitrary JSON body.
func postRaw(ctx context.Context, p provider.Provider, params map[string]any) (any, error) {
	w := p.(*Provider)
	body, ok := params["body"].(map[string]any)
	if !ok {
		return nil, &provider.InvalidParametersError{Method: "post", Reason: "body must be a JSON object"}
	}
	if err := w.post(ctx, body); err != nil {
		return nil, err
	}
	return map[string]any{"delivered": true}, nil
}

func init() {
	provider.MustRegister(&provider.Descriptor{
		Type:               ProviderType,
		DisplayName:        "Webhook",
		Tags:               []string{"alert", "messaging"},
		RequiredAuthFields: []string{"url"},
		OptionalAuthFields: []string{"authorization_header"},
		Scopes: []provider.Scope{
			{Name: ScopeSend, Description: "Endpoint accepts alert payloads"},
		},
		AlertSchema: map[string]any{
			"name":        map[string]any{"type": "string", "required": true},
			"status":      map[string]any{"type": "string", "required": true},
			"fingerprint": map[string]any{"type": "string"},
			"labels":      map[string]any{"type": "object"},
		},
		WebhookDescription: "POST alert events as JSON to {{callback_url}} using basic auth user 'alertdesk' and password {{api_key}}.",
		WebhookTemplate:    "{{authenticated_url}}",
		WebhookMarkdown: `## Generic webhook setup

Send alert events as an HTTP POST with a JSON body to:

    {{callback_url}}

Authenticate with HTTP basic auth, username ` + "`alertdesk`" + `, password ` + "`{{api_key}}`" + `,
or use the credential-embedded form directly:

    {{authenticated_url}}
`,
		Methods: map[string]provider.Method{
			"post": {
				Description: "Forward an arbitrary JSON object to the configured URL",
				Params:      []provider.Param{{Name: "body", Required: true}},
				Func:        postRaw,
			},
		},
		New: New,
	})
}
