package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alertdesk/alertdesk/internal/db/models"
	"github.com/alertdesk/alertdesk/internal/middleware"
	"github.com/alertdesk/alertdesk/internal/provider"
	"github.com/alertdesk/alertdesk/internal/secrets"
	"github.com/alertdesk/alertdesk/internal/services"
)

const (
	testTenant = "tenant-1"
	testUser   = "user-1"
)

type fakeRecordStore struct {
	mu      sync.Mutex
	records map[string]*models.ProviderRecord
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: make(map[string]*models.ProviderRecord)}
}

func (s *fakeRecordStore) key(tenantID, instanceID string) string {
	return tenantID + "|" + instanceID
}

func (s *fakeRecordStore) CreateProvider(_ context.Context, record *models.ProviderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[s.key(record.TenantID, record.InstanceID)] = record
	return nil
}

func (s *fakeRecordStore) GetProvider(_ context.Context, tenantID, instanceID string) (*models.ProviderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[s.key(tenantID, instanceID)], nil
}

func (s *fakeRecordStore) ListProviders(_ context.Context, tenantID string) ([]*models.ProviderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ProviderRecord
	for _, r := range s.records {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeRecordStore) ListPullingEnabled(context.Context) ([]*models.ProviderRecord, error) {
	return nil, nil
}

func (s *fakeRecordStore) UpdateProvider(_ context.Context, record *models.ProviderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[s.key(record.TenantID, record.InstanceID)] = record
	return nil
}

func (s *fakeRecordStore) UpdateValidatedScopes(_ context.Context, tenantID, instanceID string, scopes models.ScopeMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.records[s.key(tenantID, instanceID)]; r != nil {
		r.ValidatedScopes = scopes
	}
	return nil
}

func (s *fakeRecordStore) UpdateLastPullTime(_ context.Context, tenantID, instanceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.records[s.key(tenantID, instanceID)]; r != nil {
		r.LastPullTime = &at
	}
	return nil
}

func (s *fakeRecordStore) DeleteProvider(_ context.Context, tenantID, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, s.key(tenantID, instanceID))
	return nil
}

type fakeAlertStore struct{}

func (fakeAlertStore) InsertAlert(context.Context, *models.Alert) error { return nil }
func (fakeAlertStore) CountAlerts(context.Context, string, models.AlertFilter) (int64, error) {
	return 0, nil
}
func (fakeAlertStore) ProviderDistribution(context.Context, string) (map[string][]models.HourlyCount, error) {
	return nil, nil
}
func (fakeAlertStore) LinkedProviderTypes(context.Context, string) ([]string, error) {
	return nil, nil
}

type fakeAPIKeyStore struct {
	mu   sync.Mutex
	keys map[string]*models.APIKey
}

func newFakeAPIKeyStore() *fakeAPIKeyStore {
	return &fakeAPIKeyStore{keys: make(map[string]*models.APIKey)}
}

func (s *fakeAPIKeyStore) CreateAPIKey(_ context.Context, apiKey *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[apiKey.TenantID+"|"+apiKey.ReferenceID] = apiKey
	return nil
}

func (s *fakeAPIKeyStore) GetAPIKeyByReference(_ context.Context, tenantID, referenceID string) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[tenantID+"|"+referenceID], nil
}

// fakeInstance implements provider.Provider for handler tests.
type fakeInstance struct {
	id           string
	typ          string
	scopeResults provider.ScopeResults
	rules        []map[string]any
}

func (f *fakeInstance) ID() string   { return f.id }
func (f *fakeInstance) Type() string { return f.typ }
func (f *fakeInstance) GetAlertsConfiguration(context.Context) ([]map[string]any, error) {
	return f.rules, nil
}
func (f *fakeInstance) GetLogs(_ context.Context, limit int) ([]provider.LogEntry, error) {
	logs := []provider.LogEntry{{Level: "info", Message: "up"}}
	if limit < len(logs) {
		logs = logs[:limit]
	}
	return logs, nil
}
func (f *fakeInstance) DeployAlert(context.Context, map[string]any, string) error { return nil }
func (f *fakeInstance) ValidateScopes(context.Context) (provider.ScopeResults, error) {
	return f.scopeResults, nil
}
func (f *fakeInstance) GetHealthReport(context.Context) (provider.HealthReport, error) {
	return provider.HealthReport{"reachable": true}, nil
}
func (f *fakeInstance) Close() error { return nil }

type testEnv struct {
	router  *gin.Engine
	records *fakeRecordStore
	secrets *secrets.MemoryStore

	// scopeResults is read by the sensor constructor at construction time,
	// so tests can flip validation outcomes between requests.
	scopeResults provider.ScopeResults
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		records:      newFakeRecordStore(),
		secrets:      secrets.NewMemoryStore(),
		scopeResults: provider.ScopeResults{"read": true},
	}

	catalog := provider.NewCatalog()
	require.NoError(t, catalog.Register(&provider.Descriptor{
		Type:               "sensor",
		DisplayName:        "Sensor",
		RequiredAuthFields: []string{"token"},
		Scopes:             []provider.Scope{{Name: "read", Mandatory: true}},
		WebhookDescription: "point your monitor at {{callback_url}}",
		WebhookTemplate:    "{{authenticated_url}}",
		Methods: map[string]provider.Method{
			"echo": {
				Params: []provider.Param{{Name: "message", Required: true}},
				Func: func(_ context.Context, _ provider.Provider, params map[string]any) (any, error) {
					return params["message"], nil
				},
			},
			"boom": {
				Func: func(context.Context, provider.Provider, map[string]any) (any, error) {
					return nil, provider.NewMethodError(http.StatusBadGateway, "upstream down", nil)
				},
			},
		},
		New: func(instanceID string, _ provider.Config) (provider.Provider, error) {
			return &fakeInstance{
				id:           instanceID,
				typ:          "sensor",
				scopeResults: env.scopeResults,
				rules:        []map[string]any{{"name": "HighCPU"}},
			}, nil
		},
	}))
	require.NoError(t, catalog.Register(&provider.Descriptor{
		Type:        "plain",
		DisplayName: "Plain",
		New: func(instanceID string, _ provider.Config) (provider.Provider, error) {
			return &fakeInstance{id: instanceID, typ: "plain", scopeResults: provider.ScopeResults{}}, nil
		},
	}))

	provisioner := services.NewWebhookProvisioner(catalog, newFakeAPIKeyStore(), env.secrets, "https://api.test", "adk_")
	svc := services.NewProviderService(
		provider.NewFactory(catalog),
		env.records,
		fakeAlertStore{},
		env.secrets,
		provisioner,
		services.ProviderServiceOptions{},
	)
	handlers := NewHandlers(svc, provisioner)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.TenantIDKey, testTenant)
		c.Set(middleware.CallerKey, testUser)
	})

	group := router.Group("/api/v1/providers")
	group.GET("", handlers.ListTypes)
	group.GET("/types/:type", handlers.GetType)
	group.GET("/types/:type/alert-schema", handlers.GetAlertSchema)
	group.GET("/types/:type/webhook-settings", handlers.WebhookSettings)
	group.GET("/installed", handlers.ListInstalled)
	group.GET("/export", handlers.Export)
	group.GET("/linked", handlers.ListLinked)
	group.POST("", handlers.Install)
	group.PUT("/:instance_id", handlers.Update)
	group.DELETE("/:instance_id", handlers.Delete)
	group.POST("/:instance_id/invoke/:method", handlers.Invoke)
	group.POST("/:instance_id/validate-scopes", handlers.ValidateScopes)
	group.GET("/:instance_id/logs", handlers.Logs)
	group.GET("/:instance_id/alerts-configuration", handlers.AlertsConfiguration)
	group.POST("/:instance_id/deploy-alert", handlers.DeployAlert)
	group.POST("/:instance_id/test", handlers.Test)
	group.POST("/:instance_id/webhook", handlers.InstallWebhook)

	env.router = router
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func validInstallBody() map[string]any {
	return map[string]any{
		"instance_id":    "sensor-prod",
		"name":           "Prod Sensor",
		"type":           "sensor",
		"authentication": map[string]string{"token": "t0"},
	}
}

func TestListTypes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/providers", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	types := body["providers"].([]any)
	require.Len(t, types, 2)
	first := types[0].(map[string]any)
	assert.Equal(t, "plain", first["type"]) // catalog listing is sorted
}

func TestGetTypeUnknown(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/providers/types/nope", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInstallProvider(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody())

	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "sensor-prod", body["instance_id"])
	scopeResults := body["scope_results"].(map[string]any)
	assert.Equal(t, true, scopeResults["read"])

	record, err := env.records.GetProvider(context.Background(), testTenant, "sensor-prod")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, testUser, record.InstalledBy)
}

func TestInstallMissingAuthField(t *testing.T) {
	env := newTestEnv(t)
	body := validInstallBody()
	body["authentication"] = map[string]string{}

	w := env.do(t, http.MethodPost, "/api/v1/providers", body)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeBody(t, w)
	assert.Contains(t, resp["missing_fields"], "token")
}

func TestInstallScopeFailurePreconditionFailed(t *testing.T) {
	env := newTestEnv(t)
	env.scopeResults = provider.ScopeResults{"read": "permission denied"}

	w := env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody())

	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	resp := decodeBody(t, w)
	failed := resp["failed_scopes"].(map[string]any)
	assert.Equal(t, "permission denied", failed["read"])
	assert.Empty(t, env.records.records)
	assert.Zero(t, env.secrets.Len())
}

func TestInstallDuplicateConflict(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody()).Code)

	w := env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody())

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInvokeMethod(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody()).Code)

	w := env.do(t, http.MethodPost, "/api/v1/providers/sensor-prod/invoke/echo", map[string]any{"message": "hi"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hi", decodeBody(t, w)["result"])
}

func TestInvokeMissingParam(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody()).Code)

	w := env.do(t, http.MethodPost, "/api/v1/providers/sensor-prod/invoke/echo", map[string]any{})

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeBody(t, w)
	assert.Contains(t, resp["missing_params"], "message")
}

func TestInvokeUnknownMethod(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody()).Code)

	w := env.do(t, http.MethodPost, "/api/v1/providers/sensor-prod/invoke/nope", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvokeUnknownInstance(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/providers/ghost/invoke/echo", map[string]any{"message": "hi"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvokeMethodErrorPassesStatusThrough(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody()).Code)

	w := env.do(t, http.MethodPost, "/api/v1/providers/sensor-prod/invoke/boom", nil)

	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "upstream down", decodeBody(t, w)["error"])
}

func TestUpdateNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/v1/providers/ghost", map[string]any{
		"name":           "Renamed",
		"authentication": map[string]string{"token": "t1"},
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteProvider(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody()).Code)

	w := env.do(t, http.MethodDelete, "/api/v1/providers/sensor-prod", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/providers/sensor-prod", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListInstalled(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody()).Code)

	w := env.do(t, http.MethodGet, "/api/v1/providers/installed", nil)

	require.Equal(t, http.StatusOK, w.Code)
	installed := decodeBody(t, w)["providers"].([]any)
	require.Len(t, installed, 1)
	entry := installed[0].(map[string]any)
	assert.Equal(t, "sensor-prod", entry["instance_id"])
}

func TestExportIncludesAuthentication(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody()).Code)

	w := env.do(t, http.MethodGet, "/api/v1/providers/export", nil)

	require.Equal(t, http.StatusOK, w.Code)
	exported := decodeBody(t, w)["providers"].([]any)
	require.Len(t, exported, 1)
	entry := exported[0].(map[string]any)
	assert.Equal(t, "sensor-prod", entry["instance_id"])
	auth := entry["authentication"].(map[string]any)
	assert.Equal(t, "t0", auth["token"])
}

func TestInstallRejectsDefaultPrefixedInstanceID(t *testing.T) {
	env := newTestEnv(t)
	body := validInstallBody()
	body["instance_id"] = "default-sensor"

	w := env.do(t, http.MethodPost, "/api/v1/providers", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	records, err := env.records.ListProviders(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWebhookSettings(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/providers/types/sensor/webhook-settings", nil)

	require.Equal(t, http.StatusOK, w.Code)
	settings := decodeBody(t, w)
	assert.Equal(t, "https://api.test/alerts/event/sensor", settings["callback_url"])
	assert.Contains(t, settings["description"], "point your monitor at https://api.test/alerts/event/sensor")
}

func TestWebhookSettingsScopedToInstance(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/providers/types/sensor/webhook-settings?provider_id=sensor-prod", nil)

	require.Equal(t, http.StatusOK, w.Code)
	settings := decodeBody(t, w)
	assert.Equal(t, "https://api.test/alerts/event/sensor?provider_id=sensor-prod", settings["callback_url"])
}

func TestWebhookSettingsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/providers/types/plain/webhook-settings", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogsRejectsBadLimit(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody()).Code)

	w := env.do(t, http.MethodGet, "/api/v1/providers/sensor-prod/logs?limit=zero", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlertsConfiguration(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody()).Code)

	w := env.do(t, http.MethodGet, "/api/v1/providers/sensor-prod/alerts-configuration", nil)

	require.Equal(t, http.StatusOK, w.Code)
	rules := decodeBody(t, w)["alerts"].([]any)
	require.Len(t, rules, 1)
	assert.Equal(t, "HighCPU", rules[0].(map[string]any)["name"])
}

func TestValidateScopes(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/providers", validInstallBody()).Code)

	w := env.do(t, http.MethodPost, "/api/v1/providers/sensor-prod/validate-scopes", nil)

	require.Equal(t, http.StatusOK, w.Code)
	results := decodeBody(t, w)["scope_results"].(map[string]any)
	assert.Equal(t, true, results["read"])
}
