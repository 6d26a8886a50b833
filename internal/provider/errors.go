// errors.go defines the error taxonomy shared across the provider framework:
// not-found sentinels, configuration and parameter validation errors, the
// provider-declared method error with its own status code, and the
// precondition error raised when mandatory scope validation fails at install
// time.
package provider

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownProviderType is returned when a type name is not present in
	// the catalog. Surfaced to the boundary as a not-found condition.
	ErrUnknownProviderType = errors.New("unknown provider type")

	// ErrProviderNotFound is returned when no installed provider record
	// exists for a (tenant, instance id) pair.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrMethodNotFound is returned when a named capability is not declared
	// in the resolved descriptor's method registry.
	ErrMethodNotFound = errors.New("provider method not found")

	// ErrWebhookNotSupported is returned by providers that declare webhook
	// templates but cannot complete a registration call.
	ErrWebhookNotSupported = errors.New("provider does not support webhook installation")
)

// ConfigurationError reports missing or malformed authentication fields.
// Distinct from not-found: the type exists, the supplied configuration does
// not satisfy it.
type ConfigurationError struct {
	ProviderType string
	Fields       []string
	Reason       string
}

func (e *ConfigurationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("invalid configuration for provider %s: missing required fields: %s",
			e.ProviderType, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("invalid configuration for provider %s: %s", e.ProviderType, e.Reason)
}

// InvalidParametersError reports a method invocation whose parameters do not
// satisfy the method's declared signature.
type InvalidParametersError struct {
	Method  string
	Missing []string
	Reason  string
}

func (e *InvalidParametersError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("invalid parameters for method %s: missing required parameters: %s",
			e.Method, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid parameters for method %s: %s", e.Method, e.Reason)
}

// MethodError is a failure the provider itself reports, carrying the status
// code and message the provider chose. It is passed through to the boundary
// unchanged.
type MethodError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *MethodError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *MethodError) Unwrap() error {
	return e.Err
}

// NewMethodError creates a provider-declared method error.
func NewMethodError(statusCode int, message string, err error) *MethodError {
	return &MethodError{StatusCode: statusCode, Message: message, Err: err}
}

// ScopeValidationError reports that mandatory scope validation failed before
// installation. Surfaced as a precondition-failed condition (HTTP analog 412)
// so the boundary can render a "requires additional permission" message.
type ScopeValidationError struct {
	ProviderType string
	Failed       map[string]string
}

func (e *ScopeValidationError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	return fmt.Sprintf("provider %s failed mandatory scope validation: %s",
		e.ProviderType, strings.Join(names, ", "))
}
