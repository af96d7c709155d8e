package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App      AppSettings
	HTTP     HTTPSettings
	Auth     AuthSettings
	Log      LogSettings
	Database DatabaseSettings
	Redis    RedisSettings
	Audit    AuditSettings
	PAC      PACSettings
	Stamping StampingSettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
}

type HTTPSettings struct {
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	WriteTimeoutBatch time.Duration // batch validation and stamping routes
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

type AuthSettings struct {
	Enabled     bool
	IssuerURI   string
	JWKSetURI   string
	ClockSkew   time.Duration
	BypassPaths []string
}

type LogSettings struct {
	Level string
}

type DatabaseSettings struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RunMigrations   bool
}

// Configured reports whether enough settings are present to try a connection.
func (d DatabaseSettings) Configured() bool {
	return d.Host != "" && d.Database != ""
}

type RedisSettings struct {
	Addr          string
	Password      string
	DB            int
	PostalCodeTTL time.Duration
}

type AuditSettings struct {
	Enabled         bool
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodySize     int
}

type PACSettings struct {
	BaseURL               string
	Username              string
	Password              string
	TokenTTL              time.Duration
	APITimeout            time.Duration
	RateLimitRPS          int
	MaxConcurrentRequests int
	CircuitMaxFailures    int
	CircuitCooldown       time.Duration
}

// Configured reports whether the PAC client can be built.
func (p PACSettings) Configured() bool {
	return p.BaseURL != "" && p.Username != "" && p.Password != ""
}

type StampingSettings struct {
	Environment       string // sandbox or production
	CartaPorteVersion string
	Timezone          string
	Location          *time.Location
	EmisorRFC         string // pins the emitter looked up in the identity source
	BatchConcurrency  int
	MaxBatchSize      int
}

// Load resolves the application configuration from environment variables.
// It first attempts to load variables from a .env file if it exists.
// Environment variables set in the system take precedence over .env file values.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		App: AppSettings{
			Name:        getEnv("APP_NAME", "ms_cartaporte_core"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
			Environment: getEnv("APP_ENV", "local"),
		},
		HTTP: HTTPSettings{
			Port:              getEnvAsInt("APP_PORT", 8080),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			WriteTimeoutBatch: getEnvAsDuration("HTTP_WRITE_TIMEOUT_BATCH", 2*time.Minute),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: AuthSettings{
			Enabled:     getEnvAsBool("AUTH_ENABLED", true),
			IssuerURI:   strings.TrimSpace(os.Getenv("JWT_ISSUER_URI")),
			JWKSetURI:   strings.TrimSpace(os.Getenv("JWT_JWK_SET_URI")),
			ClockSkew:   getEnvAsDuration("AUTH_CLOCK_SKEW", 2*time.Minute),
			BypassPaths: getEnvAsCSV("AUTH_BYPASS_PATHS", []string{"/health", "/metrics"}),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseSettings{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "ms_cartaporte_core"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			RunMigrations:   getEnvAsBool("DB_RUN_MIGRATIONS", true),
		},
		Redis: RedisSettings{
			Addr:          strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            getEnvAsInt("REDIS_DB", 0),
			PostalCodeTTL: getEnvAsDuration("REDIS_POSTAL_CODE_TTL", 24*time.Hour),
		},
		Audit: AuditSettings{
			Enabled:         getEnvAsBool("AUDIT_ENABLED", true),
			LogRequestBody:  getEnvAsBool("AUDIT_LOG_REQUEST_BODY", false),
			LogResponseBody: getEnvAsBool("AUDIT_LOG_RESPONSE_BODY", false),
			MaxBodySize:     getEnvAsInt("AUDIT_MAX_BODY_SIZE", 102400),
		},
		PAC: PACSettings{
			BaseURL:               strings.TrimSpace(os.Getenv("PAC_BASE_URL")),
			Username:              strings.TrimSpace(os.Getenv("PAC_USERNAME")),
			Password:              strings.TrimSpace(os.Getenv("PAC_PASSWORD")),
			TokenTTL:              getEnvAsDuration("PAC_TOKEN_TTL", 50*time.Minute),
			APITimeout:            getEnvAsDuration("PAC_API_TIMEOUT", 60*time.Second),
			RateLimitRPS:          getEnvAsInt("PAC_RATE_LIMIT_RPS", 10),
			MaxConcurrentRequests: getEnvAsInt("PAC_MAX_CONCURRENT_REQUESTS", 20),
			CircuitMaxFailures:    getEnvAsInt("PAC_CIRCUIT_MAX_FAILURES", 5),
			CircuitCooldown:       getEnvAsDuration("PAC_CIRCUIT_COOLDOWN", 30*time.Second),
		},
		Stamping: StampingSettings{
			Environment:       strings.ToLower(getEnv("CFDI_ENVIRONMENT", "sandbox")),
			CartaPorteVersion: getEnv("CARTAPORTE_VERSION", "3.1"),
			Timezone:          getEnv("STAMPING_TIMEZONE", "America/Mexico_City"),
			EmisorRFC:         strings.ToUpper(strings.TrimSpace(os.Getenv("STAMPING_EMISOR_RFC"))),
			BatchConcurrency:  getEnvAsInt("VALIDATION_BATCH_CONCURRENCY", 8),
			MaxBatchSize:      getEnvAsInt("VALIDATION_MAX_BATCH_SIZE", 100),
		},
	}

	switch cfg.Stamping.Environment {
	case "sandbox", "production":
	default:
		return cfg, fmt.Errorf("invalid config: CFDI_ENVIRONMENT must be 'sandbox' or 'production', got %q", cfg.Stamping.Environment)
	}

	switch cfg.Stamping.CartaPorteVersion {
	case "3.0", "3.1":
	default:
		return cfg, fmt.Errorf("invalid config: CARTAPORTE_VERSION must be '3.0' or '3.1', got %q", cfg.Stamping.CartaPorteVersion)
	}

	loc, err := time.LoadLocation(cfg.Stamping.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("invalid config: STAMPING_TIMEZONE %q: %w", cfg.Stamping.Timezone, err)
	}
	cfg.Stamping.Location = loc

	if cfg.Stamping.BatchConcurrency <= 0 {
		return cfg, errors.New("invalid config: VALIDATION_BATCH_CONCURRENCY must be greater than 0")
	}
	if cfg.Stamping.MaxBatchSize <= 0 {
		return cfg, errors.New("invalid config: VALIDATION_MAX_BATCH_SIZE must be greater than 0")
	}

	if cfg.PAC.RateLimitRPS <= 0 {
		return cfg, errors.New("invalid config: PAC_RATE_LIMIT_RPS must be greater than 0")
	}
	if cfg.PAC.MaxConcurrentRequests <= 0 {
		return cfg, errors.New("invalid config: PAC_MAX_CONCURRENT_REQUESTS must be greater than 0")
	}
	if cfg.PAC.MaxConcurrentRequests > 200 {
		return cfg, errors.New("invalid config: PAC_MAX_CONCURRENT_REQUESTS cannot exceed 200")
	}

	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURI == "" {
			return cfg, errors.New("invalid config: JWT_ISSUER_URI is required when AUTH_ENABLED=true")
		}
		if cfg.Auth.JWKSetURI == "" {
			return cfg, errors.New("invalid config: JWT_JWK_SET_URI is required when AUTH_ENABLED=true")
		}
	}

	return cfg, nil
}

// Address returns the HTTP listen address in host:port form.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsCSV(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
