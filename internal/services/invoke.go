// invoke.go implements the invocation dispatcher: the single entry point
// through which the boundary calls a named capability on a provider
// instance, plus on-demand scope re-validation.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/alertdesk/alertdesk/internal/provider"
	"github.com/alertdesk/alertdesk/internal/telemetry"
)

// InvokeProviderMethod dispatches a named method on a provider instance.
//
// Instance ids with the default- prefix construct an ephemeral
// unauthenticated instance, bypassing record and secret lookup. The method
// must exist in the type's declared registry and every required parameter
// must be present; a *MethodError from the handler passes through with the
// provider-chosen status.
func (s *ProviderService) InvokeProviderMethod(ctx context.Context, tenantID, instanceID, methodName string, params map[string]any) (any, error) {
	p, _, err := s.resolveInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	d, err := s.factory.GetProviderClass(p.Type())
	if err != nil {
		return nil, err
	}

	method, ok := d.Method(methodName)
	if !ok {
		telemetry.ProviderMethodInvocationsTotal.WithLabelValues(p.Type(), methodName, "not_found").Inc()
		return nil, fmt.Errorf("%w: %s.%s", provider.ErrMethodNotFound, p.Type(), methodName)
	}

	var missing []string
	for _, param := range method.Params {
		if !param.Required {
			continue
		}
		if v, present := params[param.Name]; !present || v == nil {
			missing = append(missing, param.Name)
		}
	}
	if len(missing) > 0 {
		telemetry.ProviderMethodInvocationsTotal.WithLabelValues(p.Type(), methodName, "invalid_params").Inc()
		return nil, &provider.InvalidParametersError{Method: methodName, Missing: missing}
	}

	result, err := method.Func(ctx, p, params)
	if err != nil {
		telemetry.ProviderMethodInvocationsTotal.WithLabelValues(p.Type(), methodName, "failure").Inc()
		return nil, err
	}

	telemetry.ProviderMethodInvocationsTotal.WithLabelValues(p.Type(), methodName, "success").Inc()
	return result, nil
}

// ValidateProviderScopes re-runs scope validation for an installed provider
// and persists the outcome — but only when it differs from what the record
// already holds, so repeated validations of a stable provider cost zero
// writes.
func (s *ProviderService) ValidateProviderScopes(ctx context.Context, tenantID, instanceID string) (provider.ScopeResults, error) {
	p, record, err := s.resolveInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	results, err := p.ValidateScopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("scope validation failed: %w", err)
	}

	// Ephemeral default-* instances have no record to persist into.
	if record == nil {
		return results, nil
	}

	next := scopeResultsToMap(results)
	if reflect.DeepEqual(map[string]any(record.ValidatedScopes), map[string]any(next)) {
		return results, nil
	}

	if err := s.records.UpdateValidatedScopes(ctx, tenantID, instanceID, next); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "provider scopes changed",
		"tenant_id", tenantID, "provider_id", instanceID, "provider_type", record.Type)
	return results, nil
}

// InstallWebhook registers the platform callback with an installed provider's
// external system. A type without webhook support, or an instance that does
// not implement registration, yields (false, nil): a capability probe
// outcome, not an error.
func (s *ProviderService) InstallWebhook(ctx context.Context, tenantID, instanceID string) (bool, error) {
	p, _, err := s.resolveInstance(ctx, tenantID, instanceID)
	if err != nil {
		return false, err
	}
	defer p.Close()

	d, err := s.factory.GetProviderClass(p.Type())
	if err != nil {
		return false, err
	}
	return s.provisioner.installWebhookForInstance(ctx, tenantID, d, p, instanceID)
}
