// Package alerts implements the HTTP handlers for alert event ingestion and
// the alert read endpoints (counts and per-incident audit trails).
package alerts

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alertdesk/alertdesk/internal/db/models"
	"github.com/alertdesk/alertdesk/internal/middleware"
	"github.com/alertdesk/alertdesk/internal/services"
)

// Handlers bundles the alert endpoints.
type Handlers struct {
	svc *services.AlertService
}

// NewHandlers creates the alert handlers.
func NewHandlers(svc *services.AlertService) *Handlers {
	return &Handlers{svc: svc}
}

// @Summary      Ingest an alert event
// @Description  Accepts a raw alert payload pushed by an external monitoring system. The type path segment names the provider type; provider_id optionally ties the event to an installed instance. This is the endpoint webhook callback URLs point at.
// @Tags         Alerts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      202  {object}  map[string]interface{}  "id, fingerprint, timestamp"
// @Failure      400  {object}  map[string]interface{}  "Malformed payload"
// @Router       /alerts/event/{type} [post]
func (h *Handlers) IngestEvent(c *gin.Context) {
	var event map[string]any
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload: " + err.Error()})
		return
	}

	var providerID *string
	if id := c.Query("provider_id"); id != "" {
		providerID = &id
	}

	alert, err := h.svc.IngestAlertEvent(
		c.Request.Context(),
		middleware.TenantID(c),
		c.Param("type"),
		providerID,
		event,
	)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "alert ingestion failed",
			"provider_type", c.Param("type"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest alert event"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":          alert.ID,
		"fingerprint": alert.Fingerprint,
		"timestamp":   alert.Timestamp,
	})
}

// @Summary      Count alerts
// @Description  Returns how many alerts the tenant has received, optionally narrowed by provider type and a lower timestamp bound (RFC3339).
// @Tags         Alerts
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count"
// @Failure      400  {object}  map[string]interface{}  "Malformed since parameter"
// @Router       /api/v1/alerts/count [get]
func (h *Handlers) Count(c *gin.Context) {
	filter := models.AlertFilter{ProviderType: c.Query("provider_type")}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp"})
			return
		}
		filter.Since = &since
	}

	count, err := h.svc.CountAlerts(c.Request.Context(), middleware.TenantID(c), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

type auditEventRequest struct {
	Action      string   `json:"action" binding:"required"`
	Description string   `json:"description"`
	Mentions    []string `json:"mentions"`
}

// @Summary      Append an audit event
// @Description  Records an action taken on the incident identified by the fingerprint. The acting user is taken from the authenticated API key.
// @Tags         Alerts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}
// @Router       /api/v1/alerts/audit/{fingerprint} [post]
func (h *Handlers) AddAuditEvent(c *gin.Context) {
	var req auditEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	event := &models.AlertAuditEvent{
		TenantID:    middleware.TenantID(c),
		Fingerprint: c.Param("fingerprint"),
		UserID:      middleware.Caller(c),
		Action:      req.Action,
		Description: req.Description,
		Mentions:    req.Mentions,
		Timestamp:   time.Now().UTC(),
	}
	if err := h.svc.AddAuditEvent(c.Request.Context(), event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record audit event"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recorded": true})
}

// @Summary      Get an incident audit trail
// @Description  Returns the audit trail for a fingerprint with adjacent repeats of the same (user, action, description) folded into one entry carrying a count.
// @Tags         Alerts
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "entries"
// @Router       /api/v1/alerts/audit/{fingerprint} [get]
func (h *Handlers) AuditTrail(c *gin.Context) {
	entries, err := h.svc.GetAuditTrail(c.Request.Context(), middleware.TenantID(c), c.Param("fingerprint"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit trail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
