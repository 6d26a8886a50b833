// Package middleware provides Gin HTTP middleware for authentication,
// authorization, security headers, request ids, and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Metrics → Logger → Security → Auth → Scope → Handler
//
// Security headers run before auth so they appear on all responses including
// 401s. Auth populates the tenant identity and scopes; the scope check reads
// from that context.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alertdesk/alertdesk/internal/auth"
	"github.com/alertdesk/alertdesk/internal/db/models"
	"github.com/alertdesk/alertdesk/internal/safego"
)

// Context keys populated by AuthMiddleware.
const (
	TenantIDKey = "tenant_id"
	APIKeyIDKey = "api_key_id"
	ScopesKey   = "scopes"
	CallerKey   = "caller"
)

// APIKeyLookup is the subset of the API key repository the middleware uses.
type APIKeyLookup interface {
	GetAPIKeyByID(ctx context.Context, keyID string) (*models.APIKey, error)
	UpdateLastUsed(ctx context.Context, keyID string) error
}

// extractKey pulls the raw API key from the request. Bearer tokens are the
// normal path; basic auth with user "alertdesk" carries the key in the
// password slot for monitoring systems that can only send credential-embedded
// URLs (the authenticated webhook variant).
func extractKey(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		key, err := auth.ExtractAPIKeyFromHeader(header)
		return key, err == nil
	}
	if user, pass, ok := c.Request.BasicAuth(); ok && user == "alertdesk" && pass != "" {
		return pass, true
	}
	return "", false
}

// AuthMiddleware authenticates requests with an API key. The key embeds its
// record id, so verification is one indexed lookup plus one bcrypt
// comparison; no hash scanning.
func AuthMiddleware(apiKeys APIKeyLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := extractKey(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or malformed credentials",
			})
			return
		}

		keyID, err := auth.ParseKeyID(key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			return
		}

		record, err := apiKeys.GetAPIKeyByID(c.Request.Context(), keyID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "authentication failed",
			})
			return
		}
		if record == nil || !auth.ValidateAPIKey(key, record.KeyHash) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Set(TenantIDKey, record.TenantID)
		c.Set(APIKeyIDKey, record.ID)
		c.Set(ScopesKey, auth.ScopesForRole(record.Role))
		c.Set(CallerKey, record.CreatedBy)

		// Last-used tracking is advisory; never blocks the request.
		safego.Go("api-key-last-used", func() {
			_ = apiKeys.UpdateLastUsed(context.Background(), record.ID)
		})

		c.Next()
	}
}

// RequireScope aborts with 403 unless the authenticated caller holds the
// required scope (or the admin wildcard).
func RequireScope(required auth.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		scopes, ok := c.Get(ScopesKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "no scopes in request context",
			})
			return
		}
		granted, ok := scopes.([]string)
		if !ok || !auth.HasScope(granted, required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":          "insufficient permissions",
				"required_scope": string(required),
			})
			return
		}
		c.Next()
	}
}

// TenantID returns the authenticated tenant id from the request context.
func TenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// Caller returns the identity that created the presented API key, used as the
// acting user for installs and audit entries.
func Caller(c *gin.Context) string {
	return c.GetString(CallerKey)
}
