// Package providers implements the HTTP handlers for the provider framework:
// catalog browsing, installation lifecycle, method invocation, and webhook
// provisioning. Handlers translate between HTTP and the provider service;
// they hold no business logic of their own.
package providers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alertdesk/alertdesk/internal/middleware"
	"github.com/alertdesk/alertdesk/internal/provider"
	"github.com/alertdesk/alertdesk/internal/services"
)

// Handlers bundles the provider management endpoints.
type Handlers struct {
	svc         *services.ProviderService
	provisioner *services.WebhookProvisioner
}

// NewHandlers creates the provider handlers.
func NewHandlers(svc *services.ProviderService, provisioner *services.WebhookProvisioner) *Handlers {
	return &Handlers{svc: svc, provisioner: provisioner}
}

// installedProviderResponse is the shape returned after a successful install
// or update. Scope results come from the validation performed during the
// operation; webhook fields report the best-effort registration outcome.
type installedProviderResponse struct {
	InstanceID       string                `json:"instance_id"`
	Name             string                `json:"name"`
	Type             string                `json:"type"`
	ScopeResults     provider.ScopeResults `json:"scope_results,omitempty"`
	WebhookInstalled bool                  `json:"webhook_installed"`
	WebhookError     string                `json:"webhook_error,omitempty"`
}

func toInstalledResponse(result *services.InstallResult) installedProviderResponse {
	resp := installedProviderResponse{
		ScopeResults:     result.ScopeResults,
		WebhookInstalled: result.WebhookInstalled,
		WebhookError:     result.WebhookError,
	}
	if result.Record != nil {
		resp.InstanceID = result.Record.InstanceID
		resp.Name = result.Record.Name
		resp.Type = result.Record.Type
	}
	return resp
}

// @Summary      List provider types
// @Description  Returns every provider type in the catalog with its auth fields, scopes, methods, and capability flags.
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/providers [get]
func (h *Handlers) ListTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.svc.GetAllProviders()})
}

// @Summary      Get provider type
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  services.ProviderTypeDTO
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/providers/types/{type} [get]
func (h *Handlers) GetType(c *gin.Context) {
	dto, err := h.svc.GetProviderType(c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// @Summary      Get alert schema for a provider type
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/providers/types/{type}/alert-schema [get]
func (h *Handlers) GetAlertSchema(c *gin.Context) {
	schema, err := h.svc.GetAlertSchema(c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

// @Summary      Healthcheck a provider type
// @Description  Runs the self-diagnostic of an ephemeral, unauthenticated instance of the type.
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/providers/types/{type}/healthcheck [get]
func (h *Handlers) HealthcheckType(c *gin.Context) {
	report, err := h.svc.HealthcheckProvider(c.Request.Context(), c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// @Summary      Healthcheck all provider types
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/providers/healthcheck [get]
func (h *Handlers) HealthcheckAll(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.HealthcheckAll(c.Request.Context()))
}

// @Summary      List installed providers
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/providers/installed [get]
func (h *Handlers) ListInstalled(c *gin.Context) {
	installed, err := h.svc.GetInstalledProviders(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": installed})
}

// @Summary      Export installed providers
// @Description  Returns every installed provider together with its stored authentication details.
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/providers/export [get]
func (h *Handlers) Export(c *gin.Context) {
	exported, err := h.svc.ExportInstalledProviders(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": exported})
}

// @Summary      List linked providers
// @Description  Returns provider types that have sent alerts to this tenant, whether or not an installation record exists.
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/providers/linked [get]
func (h *Handlers) ListLinked(c *gin.Context) {
	linked, err := h.svc.GetLinkedProviders(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": linked})
}

type installRequest struct {
	InstanceID     string            `json:"instance_id" binding:"required"`
	Name           string            `json:"name"`
	Type           string            `json:"type" binding:"required"`
	Authentication map[string]string `json:"authentication"`
	PullingEnabled bool              `json:"pulling_enabled"`
	InstallWebhook bool              `json:"install_webhook"`
}

// @Summary      Install a provider
// @Description  Validates configuration and mandatory scopes, stores credentials in the secret backend, and records the installation. Webhook registration is best-effort and never rolls back the install.
// @Tags         Providers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  installedProviderResponse
// @Failure      400  {object}  map[string]interface{}  "Invalid configuration"
// @Failure      409  {object}  map[string]interface{}  "Instance id already installed"
// @Failure      412  {object}  map[string]interface{}  "Mandatory scope validation failed"
// @Router       /api/v1/providers [post]
func (h *Handlers) Install(c *gin.Context) {
	var req installRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.svc.InstallProvider(c.Request.Context(), services.InstallRequest{
		TenantID:    middleware.TenantID(c),
		InstalledBy: middleware.Caller(c),
		InstanceID:  req.InstanceID,
		Name:        req.Name,
		Type:        req.Type,
		Config: provider.Config{
			Name:           req.Name,
			Authentication: req.Authentication,
		},
		PullingEnabled: req.PullingEnabled,
		InstallWebhook: req.InstallWebhook,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInstalledResponse(result))
}

type oauth2InstallRequest struct {
	Name           string            `json:"name"`
	Payload        map[string]string `json:"payload" binding:"required"`
	PullingEnabled bool              `json:"pulling_enabled"`
	InstallWebhook bool              `json:"install_webhook"`
}

// @Summary      Install a provider via OAuth2
// @Description  Exchanges the OAuth2 payload (authorization code) for credentials and installs the provider with them.
// @Tags         Providers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  installedProviderResponse
// @Failure      400  {object}  map[string]interface{}  "Type does not support OAuth2 or exchange failed"
// @Router       /api/v1/providers/types/{type}/oauth2-install [post]
func (h *Handlers) InstallOAuth2(c *gin.Context) {
	var req oauth2InstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.svc.InstallProviderOAuth2(
		c.Request.Context(),
		middleware.TenantID(c),
		middleware.Caller(c),
		req.Name,
		c.Param("type"),
		req.Payload,
		req.PullingEnabled,
		req.InstallWebhook,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInstalledResponse(result))
}

type updateRequest struct {
	Name           string            `json:"name"`
	Authentication map[string]string `json:"authentication"`
	PullingEnabled bool              `json:"pulling_enabled"`
}

// @Summary      Update an installed provider
// @Description  Re-validates the new configuration and overwrites the stored credentials and record.
// @Tags         Providers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      200  {object}  installedProviderResponse
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/providers/{instance_id} [put]
func (h *Handlers) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.svc.UpdateProvider(
		c.Request.Context(),
		middleware.TenantID(c),
		c.Param("instance_id"),
		req.Name,
		provider.Config{Name: req.Name, Authentication: req.Authentication},
		req.PullingEnabled,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInstalledResponse(result))
}

// @Summary      Delete an installed provider
// @Description  Removes the installation record and its stored credentials.
// @Tags         Providers
// @Security     Bearer
// @Success      204
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/providers/{instance_id} [delete]
func (h *Handlers) Delete(c *gin.Context) {
	if err := h.svc.DeleteProvider(c.Request.Context(), middleware.TenantID(c), c.Param("instance_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Invoke a provider method
// @Description  Runs a declared method on an installed instance. The request body is the method's parameter object; methods without parameters accept an empty body.
// @Tags         Providers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}  "Missing required parameters"
// @Failure      404  {object}  map[string]interface{}  "Unknown instance or method"
// @Router       /api/v1/providers/{instance_id}/invoke/{method} [post]
func (h *Handlers) Invoke(c *gin.Context) {
	var params map[string]any
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	result, err := h.svc.InvokeProviderMethod(
		c.Request.Context(),
		middleware.TenantID(c),
		c.Param("instance_id"),
		c.Param("method"),
		params,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// @Summary      Validate provider scopes
// @Description  Re-runs scope validation against the external system and persists any change to the record.
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/providers/{instance_id}/validate-scopes [post]
func (h *Handlers) ValidateScopes(c *gin.Context) {
	results, err := h.svc.ValidateProviderScopes(c.Request.Context(), middleware.TenantID(c), c.Param("instance_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope_results": results})
}

// @Summary      Get provider logs
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/providers/{instance_id}/logs [get]
func (h *Handlers) Logs(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	logs, err := h.svc.GetProviderLogs(c.Request.Context(), middleware.TenantID(c), c.Param("instance_id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// @Summary      Get alerts configuration
// @Description  Returns the alert rules currently configured in the external system.
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/providers/{instance_id}/alerts-configuration [get]
func (h *Handlers) AlertsConfiguration(c *gin.Context) {
	rules, err := h.svc.GetAlertsConfiguration(c.Request.Context(), middleware.TenantID(c), c.Param("instance_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": rules})
}

type deployAlertRequest struct {
	Alert   map[string]any `json:"alert" binding:"required"`
	AlertID string         `json:"alert_id" binding:"required"`
}

// @Summary      Deploy an alert rule
// @Description  Pushes an alert definition to the external system through the installed instance.
// @Tags         Providers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/providers/{instance_id}/deploy-alert [post]
func (h *Handlers) DeployAlert(c *gin.Context) {
	var req deployAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.svc.DeployAlert(c.Request.Context(), middleware.TenantID(c), c.Param("instance_id"), req.Alert, req.AlertID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployed": true, "alert_id": req.AlertID})
}

// @Summary      Test an installed provider
// @Description  Exercises the instance end to end without mutating anything: fetches the alert configuration and re-validates scopes.
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  services.TestReport
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/providers/{instance_id}/test [post]
func (h *Handlers) Test(c *gin.Context) {
	report, err := h.svc.TestProvider(c.Request.Context(), middleware.TenantID(c), c.Param("instance_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// @Summary      Install a webhook
// @Description  Registers the platform callback with the instance's external system. Returns installed=false without error when the instance cannot register webhooks itself.
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/providers/{instance_id}/webhook [post]
func (h *Handlers) InstallWebhook(c *gin.Context) {
	installed, err := h.svc.InstallWebhook(c.Request.Context(), middleware.TenantID(c), c.Param("instance_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"installed": installed})
}

// @Summary      Get webhook settings
// @Description  Returns the callback URL, webhook API key, and rendered setup instructions for a provider type. Pass provider_id to scope the callback to one instance.
// @Tags         Providers
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  services.WebhookSettings
// @Failure      400  {object}  map[string]interface{}  "Type has no webhook support"
// @Router       /api/v1/providers/types/{type}/webhook-settings [get]
func (h *Handlers) WebhookSettings(c *gin.Context) {
	settings, err := h.provisioner.GetWebhookSettings(
		c.Request.Context(),
		middleware.TenantID(c),
		c.Param("type"),
		c.Query("provider_id"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
