// Package config loads and validates the alertdesk configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the ADK_ prefix (e.g., ADK_DATABASE_HOST
// overrides database.host in the YAML). This layering allows the same binary to
// run with a config.yaml in local development and with pure environment variables
// in containerized deployments — no recompilation or different binaries needed.
//
// The SECRET_ENCRYPTION_KEY variable has no ADK_ prefix because it may be
// injected by infrastructure tooling (e.g., Kubernetes secrets, Vault agent)
// that does not know the application-specific prefix and treats it as a
// generic secret name.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	PublicURL    string        `mapstructure:"public_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GetPublicURL returns the public-facing URL used for webhook callbacks and
// OAuth redirects. When server.public_url is set it is returned as-is;
// otherwise it falls back to server.base_url. This distinction matters in
// reverse-proxied deployments where the internal listen address (base_url)
// differs from the URL a monitoring system can actually reach (public_url).
func (s *ServerConfig) GetPublicURL() string {
	if s.PublicURL != "" {
		return s.PublicURL
	}
	return s.BaseURL
}

// GetAddress returns the server address in host:port format
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// SecretsConfig holds provider secret storage configuration
type SecretsConfig struct {
	// Backend selects where provider credentials are stored:
	// "postgres" (encrypted at rest in the application database),
	// "awssm" (AWS Secrets Manager), or "memory" (tests only).
	Backend string `mapstructure:"backend"`

	// EncryptionKey is the base64url-encoded 32-byte AES-256 master key
	// used by the postgres backend. Usually injected via SECRET_ENCRYPTION_KEY.
	EncryptionKey string `mapstructure:"encryption_key"`

	AWS AWSSecretsConfig `mapstructure:"aws"`
}

// AWSSecretsConfig holds AWS Secrets Manager backend configuration
type AWSSecretsConfig struct {
	// Region is the AWS region
	Region string `mapstructure:"region"`
	// Endpoint is an optional custom endpoint (LocalStack, testing)
	Endpoint string `mapstructure:"endpoint"`
	// Prefix is prepended to every secret name, isolating deployments
	// that share one AWS account
	Prefix string `mapstructure:"prefix"`

	// Static credentials for LocalStack/testing; when empty the AWS
	// default credential chain is used (env vars, shared config, IAM role)
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	APIKeys APIKeyConfig `mapstructure:"api_keys"`
}

// APIKeyConfig holds API key authentication configuration
type APIKeyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

// OAuth2ClientConfig holds the platform-side OAuth2 client registration for a
// provider type that supports OAuth2 installation.
type OAuth2ClientConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// ProvidersConfig holds provider framework configuration
type ProvidersConfig struct {
	// PullEnabled globally toggles the background alert pull scheduler
	PullEnabled bool `mapstructure:"pull_enabled"`
	// PullInterval is how often the scheduler visits pulling-enabled providers
	PullInterval time.Duration `mapstructure:"pull_interval"`
	// DistributionEnabled toggles the last-24h hourly alert distribution
	// computed for installed providers (an extra query per provider per list)
	DistributionEnabled bool `mapstructure:"distribution_enabled"`
	// ReadOnly puts the provider API into demo mode: installs are rejected
	// and expensive read projections are short-circuited
	ReadOnly bool `mapstructure:"read_only"`

	// OAuth2 maps a provider type name to its OAuth2 client registration
	OAuth2 map[string]OAuth2ClientConfig `mapstructure:"oauth2"`
}

// SecurityConfig holds HTTP security configuration
type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled     bool            `mapstructure:"enabled"`
	ServiceName string          `mapstructure:"service_name"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Profiling   ProfilingConfig `mapstructure:"profiling"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// ProfilingConfig holds profiling configuration
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested structs during Unmarshal.
// viper.BindEnv only errors when called with zero keys; since every key here is a non-empty
// hardcoded string, any error indicates a programming bug and is surfaced to the caller.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.public_url",
		"server.read_timeout",
		"server.write_timeout",

		// Secrets
		"secrets.backend",
		"secrets.encryption_key",
		"secrets.aws.region",
		"secrets.aws.endpoint",
		"secrets.aws.prefix",
		"secrets.aws.access_key_id",
		"secrets.aws.secret_access_key",

		// Auth
		"auth.api_keys.enabled",
		"auth.api_keys.prefix",

		// Providers
		"providers.pull_enabled",
		"providers.pull_interval",
		"providers.distribution_enabled",
		"providers.read_only",
		"providers.oauth2.grafana.client_id",
		"providers.oauth2.grafana.client_secret",
		"providers.oauth2.grafana.redirect_url",

		// Security
		"security.cors.allowed_origins",

		// Logging
		"logging.level",
		"logging.format",
		"logging.output",

		// Telemetry
		"telemetry.enabled",
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",
		"telemetry.profiling.enabled",
		"telemetry.profiling.port",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file path if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config.yaml in common locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/alertdesk")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	// Enable environment variable support
	v.SetEnvPrefix("ADK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind environment variables for nested structures
	// This is necessary because AutomaticEnv() doesn't work well with Unmarshal()
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	// Unmarshal configuration
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Secrets.EncryptionKey = expandEnv(cfg.Secrets.EncryptionKey)
	cfg.Secrets.AWS.AccessKeyID = expandEnv(cfg.Secrets.AWS.AccessKeyID)
	cfg.Secrets.AWS.SecretAccessKey = expandEnv(cfg.Secrets.AWS.SecretAccessKey)
	for name, oc := range cfg.Providers.OAuth2 {
		oc.ClientSecret = expandEnv(oc.ClientSecret)
		cfg.Providers.OAuth2[name] = oc
	}

	// SECRET_ENCRYPTION_KEY takes precedence over any file-configured key
	if key := os.Getenv("SECRET_ENCRYPTION_KEY"); key != "" {
		cfg.Secrets.EncryptionKey = key
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "alertdesk")
	v.SetDefault("database.user", "alertdesk")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Secrets defaults
	v.SetDefault("secrets.backend", "postgres")
	v.SetDefault("secrets.aws.region", "us-east-1")
	v.SetDefault("secrets.aws.prefix", "alertdesk")

	// Auth defaults
	v.SetDefault("auth.api_keys.enabled", true)
	v.SetDefault("auth.api_keys.prefix", "adk_")

	// Provider framework defaults
	v.SetDefault("providers.pull_enabled", true)
	v.SetDefault("providers.pull_interval", "5m")
	v.SetDefault("providers.distribution_enabled", true)
	v.SetDefault("providers.read_only", false)

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "alertdesk")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.port", 6060)
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}

	// Validate database
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	// Validate secrets backend
	validBackends := map[string]bool{"postgres": true, "awssm": true, "memory": true}
	if !validBackends[c.Secrets.Backend] {
		return fmt.Errorf("invalid secrets backend: %s (must be postgres, awssm, or memory)", c.Secrets.Backend)
	}
	if c.Secrets.Backend == "awssm" && c.Secrets.AWS.Region == "" {
		return fmt.Errorf("secrets.aws.region is required when using the awssm backend")
	}

	// Validate provider framework settings
	if c.Providers.PullEnabled && c.Providers.PullInterval < time.Minute {
		return fmt.Errorf("providers.pull_interval must be at least 1m, got %s", c.Providers.PullInterval)
	}

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}
