package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alertdesk/alertdesk/internal/db/models"
	"github.com/alertdesk/alertdesk/internal/provider"
)

func installConn(t *testing.T, env *testEnv) {
	t.Helper()
	_, err := env.svc.InstallProvider(context.Background(), validInstall())
	require.NoError(t, err)
}

func TestInvokeProviderMethod_Success(t *testing.T) {
	env := newTestEnv(t, ProviderServiceOptions{})
	installConn(t, env)

	result, err := env.svc.InvokeProviderMethod(context.Background(), testTenant, "conn-prod",
		"echo", map[string]any{"message": "hello"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echo": "hello"}, result)
	assert.True(t, env.lastConn.closed, "instance must be closed after invocation")
}

func TestInvokeProviderMethod_UnknownMethod(t *testing.T) {
	env := newTestEnv(t, ProviderServiceOptions{})
	installConn(t, env)

	// The registry miss must win regardless of what parameters arrive.
	for _, params := range []map[string]any{nil, {}, {"message": "x", "extra": 1}} {
		_, err := env.svc.InvokeProviderMethod(context.Background(), testTenant, "conn-prod",
			"no_such_method", params)
		assert.ErrorIs(t, err, provider.ErrMethodNotFound)
	}
}

func TestInvokeProviderMethod_MissingRequiredParam(t *testing.T) {
	env := newTestEnv(t, ProviderServiceOptions{})
	installConn(t, env)

	for name, params := range map[string]map[string]any{
		"absent": {},
		"nil":    {"message": nil},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.InvokeProviderMethod(context.Background(), testTenant, "conn-prod",
				"echo", params)
			var paramErr *provider.InvalidParametersError
			require.ErrorAs(t, err, &paramErr)
			assert.Equal(t, []string{"message"}, paramErr.Missing)
		})
	}
}

func TestInvokeProviderMethod_MethodErrorPassesThrough(t *testing.T) {
	env := newTestEnv(t, ProviderServiceOptions{})
	installConn(t, env)

	_, err := env.svc.InvokeProviderMethod(context.Background(), testTenant, "conn-prod", "boom", nil)
	var methodErr *provider.MethodError
	require.ErrorAs(t, err, &methodErr)
	assert.Equal(t, http.StatusServiceUnavailable, methodErr.StatusCode)
}

func TestInvokeProviderMethod_DefaultInstanceBypassesRecords(t *testing.T) {
	env := newTestEnv(t, ProviderServiceOptions{})
	// Nothing installed: only the default- prefix can resolve an instance.

	result, err := env.svc.InvokeProviderMethod(context.Background(), testTenant, "default-plain",
		"echo", map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echo": "hi"}, result)
}

func TestInvokeProviderMethod_UnknownInstance(t *testing.T) {
	env := newTestEnv(t, ProviderServiceOptions{})

	_, err := env.svc.InvokeProviderMethod(context.Background(), testTenant, "missing", "echo",
		map[string]any{"message": "hi"})
	assert.ErrorIs(t, err, provider.ErrProviderNotFound)
}

func TestValidateProviderScopes_UnchangedWritesNothing(t *testing.T) {
	env := newTestEnv(t, ProviderServiceOptions{})
	installConn(t, env)

	results, err := env.svc.ValidateProviderScopes(context.Background(), testTenant, "conn-prod")
	require.NoError(t, err)
	assert.Equal(t, true, results["read"])
	assert.Zero(t, env.records.scopeWriteCalls, "identical outcome must not be persisted")
}

func TestValidateProviderScopes_ChangedIsPersisted(t *testing.T) {
	env := newTestEnv(t, ProviderServiceOptions{})
	installConn(t, env)

	env.scopeResults = provider.ScopeResults{"read": true, "write": "token lacks write"}
	results, err := env.svc.ValidateProviderScopes(context.Background(), testTenant, "conn-prod")
	require.NoError(t, err)
	assert.Equal(t, "token lacks write", results["write"])
	assert.Equal(t, 1, env.records.scopeWriteCalls)

	rec, _ := env.records.GetProvider(context.Background(), testTenant, "conn-prod")
	assert.Equal(t, models.ScopeMap{"read": true, "write": "token lacks write"}, rec.ValidatedScopes)
}

func TestValidateProviderScopes_EphemeralInstanceSkipsPersistence(t *testing.T) {
	env := newTestEnv(t, ProviderServiceOptions{})

	_, err := env.svc.ValidateProviderScopes(context.Background(), testTenant, "default-plain")
	require.NoError(t, err)
	assert.Zero(t, env.records.scopeWriteCalls)
}

func TestInstallWebhook_CapabilityProbe(t *testing.T) {
	env := newTestEnv(t, ProviderServiceOptions{})
	installConn(t, env)

	installed, err := env.svc.InstallWebhook(context.Background(), testTenant, "conn-prod")
	require.NoError(t, err)
	assert.True(t, installed)

	// A type without webhook templates reports false without erroring.
	installed, err = env.svc.InstallWebhook(context.Background(), testTenant, "default-plain")
	require.NoError(t, err)
	assert.False(t, installed)
}
