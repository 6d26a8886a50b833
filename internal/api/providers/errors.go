// errors.go maps the service error taxonomy onto HTTP responses. Every
// handler funnels failures through respondError so a given error class always
// renders the same status code regardless of which endpoint surfaced it.
package providers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alertdesk/alertdesk/internal/provider"
	"github.com/alertdesk/alertdesk/internal/services"
)

// respondError renders err with the status code its class calls for.
// Unrecognized errors become an opaque 500; the detail goes to the log, not
// the client.
func respondError(c *gin.Context, err error) {
	var cfgErr *provider.ConfigurationError
	var paramErr *provider.InvalidParametersError
	var scopeErr *provider.ScopeValidationError
	var methodErr *provider.MethodError

	switch {
	case errors.Is(err, provider.ErrUnknownProviderType),
		errors.Is(err, provider.ErrProviderNotFound),
		errors.Is(err, provider.ErrMethodNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          cfgErr.Error(),
			"missing_fields": cfgErr.Fields,
		})

	case errors.As(err, &paramErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          paramErr.Error(),
			"missing_params": paramErr.Missing,
		})

	case errors.As(err, &scopeErr):
		// Precondition failed: installation requires permissions the supplied
		// credentials do not carry.
		c.JSON(http.StatusPreconditionFailed, gin.H{
			"error":         scopeErr.Error(),
			"failed_scopes": scopeErr.Failed,
		})

	case errors.As(err, &methodErr):
		// Provider-declared failures pass through with the status the
		// provider chose.
		c.JSON(methodErr.StatusCode, gin.H{"error": methodErr.Message})

	case errors.Is(err, services.ErrProviderAlreadyInstalled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrReadOnly):
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": err.Error()})

	case errors.Is(err, provider.ErrWebhookNotSupported):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	default:
		slog.ErrorContext(c.Request.Context(), "provider handler error",
			"path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
