// Package api wires together all HTTP routes for the alertdesk provider framework.
//
// Route grouping philosophy:
//   - Alert event ingestion (/alerts/event/:type) lives at the root because
//     webhook callback URLs rendered for external monitoring systems point
//     there. It still requires authentication: callback URLs embed a
//     webhook-scoped API key, supplied as basic-auth credentials or a Bearer
//     header depending on what the external system supports.
//   - Management routes (/api/v1/) require authentication and the scope
//     matching the operation: read:providers for projections, write:providers
//     for installs and invocations that reach into external systems,
//     update:providers and delete:providers for lifecycle changes, and the
//     alert scopes for counts and audit trails.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/alertdesk/alertdesk/internal/api/alerts"
	"github.com/alertdesk/alertdesk/internal/api/providers"
	"github.com/alertdesk/alertdesk/internal/auth"
	"github.com/alertdesk/alertdesk/internal/config"
	"github.com/alertdesk/alertdesk/internal/db/repositories"
	"github.com/alertdesk/alertdesk/internal/jobs"
	"github.com/alertdesk/alertdesk/internal/middleware"
	"github.com/alertdesk/alertdesk/internal/provider"
	"github.com/alertdesk/alertdesk/internal/secrets"
	"github.com/alertdesk/alertdesk/internal/services"
)

// BackgroundServices holds references to background jobs that must be stopped
// during graceful shutdown. The caller (cmd/server) is responsible for calling
// Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	pullScheduler *jobs.PullScheduler
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.pullScheduler != nil {
		bg.pullScheduler.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize the secret backend
	secretStore, err := secrets.NewStore(cfg, db)
	if err != nil {
		log.Fatalf("Failed to initialize secret backend: %v", err)
	}
	log.Printf("Initialized secret backend: %s", cfg.Secrets.Backend)

	// Initialize repositories
	providerRepo := repositories.NewProviderRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(db)

	// Wrap *sql.DB with sqlx for the alert-side repositories
	sqlxDB := sqlx.NewDb(db, "postgres")
	alertRepo := repositories.NewAlertRepository(sqlxDB)
	auditRepo := repositories.NewAuditRepository(sqlxDB)

	// Initialize services
	factory := provider.NewFactory(provider.DefaultCatalog)
	provisioner := services.NewWebhookProvisioner(
		provider.DefaultCatalog,
		apiKeyRepo,
		secretStore,
		cfg.Server.GetPublicURL(),
		cfg.Auth.APIKeys.Prefix,
	)
	providerSvc := services.NewProviderService(
		factory,
		providerRepo,
		alertRepo,
		secretStore,
		provisioner,
		services.ProviderServiceOptions{
			ReadOnly:            cfg.Providers.ReadOnly,
			DistributionEnabled: cfg.Providers.DistributionEnabled,
		},
	)
	alertSvc := services.NewAlertService(alertRepo, auditRepo)

	// Initialize and start the background alert pull scheduler
	bg := &BackgroundServices{}
	if cfg.Providers.PullEnabled {
		scheduler := jobs.NewPullScheduler(providerRepo, providerSvc, alertSvc)
		scheduler.Start(context.Background(), cfg.Providers.PullInterval)
		bg.pullScheduler = scheduler
		log.Printf("Alert pull scheduler started (interval %s)", cfg.Providers.PullInterval)
	}

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint (includes secret backend probe)
	router.GET("/ready", readinessHandler(db, secretStore))

	// API version
	router.GET("/version", versionHandler())

	providerHandlers := providers.NewHandlers(providerSvc, provisioner)
	alertHandlers := alerts.NewHandlers(alertSvc)

	authn := middleware.AuthMiddleware(apiKeyRepo)

	// Alert event ingestion — the path webhook callback URLs point at.
	event := router.Group("/alerts/event")
	event.Use(authn)
	{
		event.POST("/:type", middleware.RequireScope(auth.ScopeWriteAlert), alertHandlers.IngestEvent)
	}

	// Management API endpoints
	apiV1 := router.Group("/api/v1")
	apiV1.Use(authn)
	{
		providerGroup := apiV1.Group("/providers")
		{
			// Catalog and type-level operations
			providerGroup.GET("", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.ListTypes)
			providerGroup.GET("/types/:type", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.GetType)
			providerGroup.GET("/types/:type/alert-schema", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.GetAlertSchema)
			providerGroup.GET("/types/:type/healthcheck", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.HealthcheckType)
			providerGroup.GET("/types/:type/webhook-settings", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.WebhookSettings)
			providerGroup.POST("/types/:type/oauth2-install", middleware.RequireScope(auth.ScopeWriteProviders), providerHandlers.InstallOAuth2)
			providerGroup.GET("/healthcheck", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.HealthcheckAll)

			// Installed-instance projections
			providerGroup.GET("/installed", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.ListInstalled)
			providerGroup.GET("/export", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.Export)
			providerGroup.GET("/linked", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.ListLinked)

			// Installation lifecycle
			providerGroup.POST("", middleware.RequireScope(auth.ScopeWriteProviders), providerHandlers.Install)
			providerGroup.PUT("/:instance_id", middleware.RequireScope(auth.ScopeUpdateProviders), providerHandlers.Update)
			providerGroup.DELETE("/:instance_id", middleware.RequireScope(auth.ScopeDeleteProviders), providerHandlers.Delete)

			// Per-instance operations
			providerGroup.POST("/:instance_id/invoke/:method", middleware.RequireScope(auth.ScopeWriteProviders), providerHandlers.Invoke)
			providerGroup.POST("/:instance_id/validate-scopes", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.ValidateScopes)
			providerGroup.GET("/:instance_id/logs", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.Logs)
			providerGroup.GET("/:instance_id/alerts-configuration", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.AlertsConfiguration)
			providerGroup.POST("/:instance_id/deploy-alert", middleware.RequireScope(auth.ScopeWriteProviders), providerHandlers.DeployAlert)
			providerGroup.POST("/:instance_id/test", middleware.RequireScope(auth.ScopeReadProviders), providerHandlers.Test)
			providerGroup.POST("/:instance_id/webhook", middleware.RequireScope(auth.ScopeWriteProviders), providerHandlers.InstallWebhook)
		}

		alertGroup := apiV1.Group("/alerts")
		{
			alertGroup.GET("/count", middleware.RequireScope(auth.ScopeReadAlert), alertHandlers.Count)
			alertGroup.GET("/audit/:fingerprint", middleware.RequireScope(auth.ScopeReadAlert), alertHandlers.AuditTrail)
			alertGroup.POST("/audit/:fingerprint", middleware.RequireScope(auth.ScopeWriteAlert), alertHandlers.AddAuditEvent)
		}
	}

	return router, bg
}

// @Summary      Health check
// @Description  Liveness probe. Returns 200 when the process is up and the database answers a ping.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy"
// @Router       /health [get]
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database connectivity and the secret backend.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also probes the secret backend so
// that a Kubernetes readiness gate fails when installs would error.
func readinessHandler(db *sql.DB, secretStore secrets.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Check the secret backend — read a known-absent sentinel key. A
		// not-found answer exercises authentication and connectivity without
		// creating any state.
		if _, err := secretStore.Read(c.Request.Context(), ".readiness-probe"); err != nil && !errors.Is(err, secrets.ErrSecretNotFound) {
			checks["secrets"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "secret backend not ready",
			})
			return
		}
		checks["secrets"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
