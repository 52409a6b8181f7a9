package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vsla/backend/internal/domain/metrics"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	Cache        CacheConfig
	Ledger       LedgerConfig
	Governance   GovernanceConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
	Notification NotificationConfig
	Sweep        SweepConfig
	Event        EventConfig
	HTTP         HTTPConfig
	Telemetry    TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig selects the projection cache and dedupe store backend
type CacheConfig struct {
	Driver        string        // redis, memory
	ProjectionTTL time.Duration // safety-net expiry for cached balance sheets
}

// LedgerConfig holds ledger and loan policy settings
type LedgerConfig struct {
	DefaultCurrency  string // ISO currency for new groups (default UGX)
	InterestMethod   string // simple, flat
	RepaymentSource  string // external, savings
	GracePeriodDays  int    // days past due before a loan may be defaulted
	MaxAppendRetries int    // retries on concurrent sequence collisions
}

// GovernanceConfig holds officer rotation policy
type GovernanceConfig struct {
	AllowDualRoles bool // permit one member to hold two officer roles
}

// AuditConfig holds the periodic audit checklist
type AuditConfig struct {
	Checklist []string // ordered steps; empty means the built-in default
}

// MetricsConfig holds group health scoring settings
type MetricsConfig struct {
	Weights           metrics.Weights
	SavingsWindowDays int // window for the savings growth comparison
}

// NotificationConfig holds statement dispatch settings
type NotificationConfig struct {
	Workers     int
	MaxRetries  int
	BaseBackoff time.Duration
	DedupeTTL   time.Duration
}

// SweepConfig holds the periodic overdue loan sweep settings
type SweepConfig struct {
	Enabled  bool          // run the sweep loop in-process
	Interval time.Duration // time between sweep runs
	Timeout  time.Duration // maximum duration of a single run
}

// EventConfig holds event processing configuration
type EventConfig struct {
	BufferSize int
	MaxRetries int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with VSLA_ prefix (e.g., VSLA_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("VSLA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Cache: CacheConfig{
			Driver:        v.GetString("cache.driver"),
			ProjectionTTL: v.GetDuration("cache.projection_ttl"),
		},
		Ledger: LedgerConfig{
			DefaultCurrency:  v.GetString("ledger.default_currency"),
			InterestMethod:   v.GetString("ledger.interest_method"),
			RepaymentSource:  v.GetString("ledger.repayment_source"),
			GracePeriodDays:  v.GetInt("ledger.grace_period_days"),
			MaxAppendRetries: v.GetInt("ledger.max_append_retries"),
		},
		Governance: GovernanceConfig{
			AllowDualRoles: v.GetBool("governance.allow_dual_roles"),
		},
		Audit: AuditConfig{
			Checklist: v.GetStringSlice("audit.checklist"),
		},
		Metrics: MetricsConfig{
			Weights: metrics.Weights{
				Repayment:           v.GetFloat64("metrics.weight_repayment"),
				Default:             v.GetFloat64("metrics.weight_default"),
				SavingsGrowth:       v.GetFloat64("metrics.weight_savings_growth"),
				OfficerCompleteness: v.GetFloat64("metrics.weight_officer_completeness"),
			},
			SavingsWindowDays: v.GetInt("metrics.savings_window_days"),
		},
		Notification: NotificationConfig{
			Workers:     v.GetInt("notification.workers"),
			MaxRetries:  v.GetInt("notification.max_retries"),
			BaseBackoff: v.GetDuration("notification.base_backoff"),
			DedupeTTL:   v.GetDuration("notification.dedupe_ttl"),
		},
		Sweep: SweepConfig{
			Enabled:  v.GetBool("sweep.enabled"),
			Interval: v.GetDuration("sweep.interval"),
			Timeout:  v.GetDuration("sweep.timeout"),
		},
		Event: EventConfig{
			BufferSize: v.GetInt("event.buffer_size"),
			MaxRetries: v.GetInt("event.max_retries"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "vsla-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "vsla"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "memory"
	}
	if cfg.Cache.ProjectionTTL == 0 {
		cfg.Cache.ProjectionTTL = time.Hour
	}
	if cfg.Ledger.DefaultCurrency == "" {
		cfg.Ledger.DefaultCurrency = "UGX"
	}
	if cfg.Ledger.InterestMethod == "" {
		cfg.Ledger.InterestMethod = "simple"
	}
	if cfg.Ledger.RepaymentSource == "" {
		cfg.Ledger.RepaymentSource = "external"
	}
	if cfg.Ledger.GracePeriodDays == 0 {
		cfg.Ledger.GracePeriodDays = 14
	}
	if cfg.Ledger.MaxAppendRetries == 0 {
		cfg.Ledger.MaxAppendRetries = 3
	}
	if cfg.Metrics.Weights == (metrics.Weights{}) {
		cfg.Metrics.Weights = metrics.DefaultWeights()
	}
	if cfg.Metrics.SavingsWindowDays == 0 {
		cfg.Metrics.SavingsWindowDays = 30
	}
	if cfg.Notification.Workers == 0 {
		cfg.Notification.Workers = 4
	}
	if cfg.Notification.MaxRetries == 0 {
		cfg.Notification.MaxRetries = 3
	}
	if cfg.Notification.BaseBackoff == 0 {
		cfg.Notification.BaseBackoff = 200 * time.Millisecond
	}
	if cfg.Notification.DedupeTTL == 0 {
		cfg.Notification.DedupeTTL = 24 * time.Hour
	}
	if cfg.Sweep.Interval == 0 {
		cfg.Sweep.Interval = time.Hour
	}
	if cfg.Sweep.Timeout == 0 {
		cfg.Sweep.Timeout = 5 * time.Minute
	}
	if cfg.Event.BufferSize == 0 {
		cfg.Event.BufferSize = 256
	}
	if cfg.Event.MaxRetries == 0 {
		cfg.Event.MaxRetries = 5
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB, ledger payloads are small
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "vsla-backend"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	// Note: DBLogFullSQL defaults to false for security (disable in production)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Cache.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("cache.driver must be 'redis' or 'memory', got %q", c.Cache.Driver)
	}

	switch c.Ledger.InterestMethod {
	case "simple", "flat":
	default:
		return fmt.Errorf("ledger.interest_method must be 'simple' or 'flat', got %q", c.Ledger.InterestMethod)
	}
	switch c.Ledger.RepaymentSource {
	case "external", "savings":
	default:
		return fmt.Errorf("ledger.repayment_source must be 'external' or 'savings', got %q", c.Ledger.RepaymentSource)
	}
	if c.Ledger.GracePeriodDays < 0 {
		return fmt.Errorf("ledger.grace_period_days cannot be negative")
	}
	if c.Ledger.MaxAppendRetries < 1 {
		return fmt.Errorf("ledger.max_append_retries must be at least 1")
	}

	// Health score weights must form a weighted average
	if err := c.Metrics.Weights.Validate(); err != nil {
		return fmt.Errorf("metrics weights: %w", err)
	}
	if c.Metrics.SavingsWindowDays <= 0 {
		return fmt.Errorf("metrics.savings_window_days must be positive")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		// CORS must not use wildcard in production
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		// Database tracing: full SQL logging is a security risk in production
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	// Validate telemetry configuration (all environments)
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address for the Redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
