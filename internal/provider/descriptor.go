// descriptor.go defines ProviderTypeDescriptor-level metadata: the static
// description of a provider type (capabilities, scopes, webhook templates,
// alert schema, method registry) loaded once per process and never persisted
// per tenant.
package provider

import (
	"context"
	"fmt"
)

// Scope is a named permission the provider's credentials may or may not
// grant. Mandatory scopes must validate before an install is allowed to
// write any state.
type Scope struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Mandatory   bool   `json:"mandatory"`
}

// Param declares one parameter of an invokable method.
type Param struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// MethodFunc is the typed handler behind a named capability. Params arrive
// as decoded JSON values; the handler is responsible for its own type
// assertions beyond required-presence, which the dispatcher checks.
type MethodFunc func(ctx context.Context, p Provider, params map[string]any) (any, error)

// Method is one entry in a descriptor's invocation registry. The registry is
// validated when the descriptor is registered, so a nil handler or unnamed
// parameter is caught at process start rather than at call time.
type Method struct {
	Description string
	Params      []Param
	Func        MethodFunc
}

// Constructor builds a live Provider instance bound to the given instance id.
type Constructor func(instanceID string, cfg Config) (Provider, error)

// OAuth2ExchangeFunc converts an OAuth2 authorization payload (code,
// redirect uri, ...) into concrete authentication fields for the provider's
// configuration.
type OAuth2ExchangeFunc func(ctx context.Context, payload map[string]string) (map[string]string, error)

// Descriptor is the immutable, catalog-level description of one provider
// type.
type Descriptor struct {
	// Type is the catalog key, e.g. "grafana".
	Type string

	// DisplayName is the human-facing name shown in provider listings.
	DisplayName string

	// Tags categorize the provider ("alert", "monitoring", "messaging", ...).
	Tags []string

	// RequiredAuthFields must all be present and non-empty in
	// Config.Authentication for an instance to be constructed.
	RequiredAuthFields []string

	// OptionalAuthFields are accepted but not validated.
	OptionalAuthFields []string

	// Scopes declares the permissions the provider's credentials are
	// checked against during scope validation.
	Scopes []Scope

	// AlertSchema describes the shape of alerts pushed to this provider.
	AlertSchema map[string]any

	// Webhook template strings. All three substitute the same derived
	// values: the callback URL, the webhook API key, and the
	// credential-embedded URL variant. An empty WebhookMarkdown means the
	// provider has no markdown documentation, which is not an error.
	WebhookDescription string
	WebhookTemplate    string
	WebhookMarkdown    string

	// CanHealthcheck marks providers whose GetHealthReport is meaningful
	// without tenant configuration.
	CanHealthcheck bool

	// Methods is the explicit registry of invokable capabilities, keyed by
	// method name.
	Methods map[string]Method

	// OAuth2Exchange, when non-nil, enables the OAuth2 installation path.
	OAuth2Exchange OAuth2ExchangeFunc

	// New constructs a live instance.
	New Constructor
}

// Validate checks descriptor integrity at registration time.
func (d *Descriptor) Validate() error {
	if d.Type == "" {
		return fmt.Errorf("descriptor has empty type name")
	}
	if d.New == nil {
		return fmt.Errorf("descriptor %s has no constructor", d.Type)
	}
	for name, m := range d.Methods {
		if name == "" {
			return fmt.Errorf("descriptor %s declares a method with an empty name", d.Type)
		}
		if m.Func == nil {
			return fmt.Errorf("descriptor %s method %s has no handler", d.Type, name)
		}
		for _, p := range m.Params {
			if p.Name == "" {
				return fmt.Errorf("descriptor %s method %s declares an unnamed parameter", d.Type, name)
			}
		}
	}
	return nil
}

// SupportsWebhook reports whether the type can provision inbound webhooks.
func (d *Descriptor) SupportsWebhook() bool {
	return d.WebhookDescription != "" && d.WebhookTemplate != ""
}

// MandatoryScopes returns the scopes that must validate before install.
func (d *Descriptor) MandatoryScopes() []Scope {
	var out []Scope
	for _, s := range d.Scopes {
		if s.Mandatory {
			out = append(out, s)
		}
	}
	return out
}

// Method looks up a named capability in the registry.
func (d *Descriptor) Method(name string) (Method, bool) {
	m, ok := d.Methods[name]
	return m, ok
}
