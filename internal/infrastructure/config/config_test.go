package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var managedEnv = []string{
	"APP_NAME", "APP_VERSION", "APP_ENV", "APP_PORT",
	"HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "HTTP_WRITE_TIMEOUT_BATCH", "HTTP_IDLE_TIMEOUT", "HTTP_SHUTDOWN_TIMEOUT",
	"AUTH_ENABLED", "JWT_ISSUER_URI", "JWT_JWK_SET_URI", "AUTH_CLOCK_SKEW", "AUTH_BYPASS_PATHS",
	"LOG_LEVEL", "DB_HOST", "DB_NAME", "DB_RUN_MIGRATIONS",
	"REDIS_ADDR", "REDIS_POSTAL_CODE_TTL",
	"PAC_BASE_URL", "PAC_USERNAME", "PAC_PASSWORD", "PAC_RATE_LIMIT_RPS", "PAC_MAX_CONCURRENT_REQUESTS",
	"CFDI_ENVIRONMENT", "CARTAPORTE_VERSION", "STAMPING_TIMEZONE", "STAMPING_EMISOR_RFC",
	"VALIDATION_BATCH_CONCURRENCY", "VALIDATION_MAX_BATCH_SIZE",
}

// resetEnv clears every variable Load reads and disables auth so the JWT
// settings are not required. Values are restored when the test ends.
func resetEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedEnv {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("AUTH_ENABLED", "false")
}

func TestLoad_DefaultValues(t *testing.T) {
	resetEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Name != "ms_cartaporte_core" {
		t.Errorf("expected default app name 'ms_cartaporte_core', got %q", cfg.App.Name)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.WriteTimeoutBatch != 2*time.Minute {
		t.Errorf("expected batch write timeout 2m, got %v", cfg.HTTP.WriteTimeoutBatch)
	}
	if cfg.Auth.Enabled {
		t.Error("expected auth disabled as set in test")
	}
	if len(cfg.Auth.BypassPaths) != 2 || cfg.Auth.BypassPaths[1] != "/metrics" {
		t.Errorf("unexpected bypass paths %v", cfg.Auth.BypassPaths)
	}
	if cfg.Stamping.Environment != "sandbox" {
		t.Errorf("expected sandbox environment, got %q", cfg.Stamping.Environment)
	}
	if cfg.Stamping.CartaPorteVersion != "3.1" {
		t.Errorf("expected Carta Porte 3.1, got %q", cfg.Stamping.CartaPorteVersion)
	}
	if cfg.Stamping.Location == nil || cfg.Stamping.Location.String() != "America/Mexico_City" {
		t.Errorf("expected America/Mexico_City location, got %v", cfg.Stamping.Location)
	}
	if cfg.Stamping.BatchConcurrency != 8 || cfg.Stamping.MaxBatchSize != 100 {
		t.Errorf("unexpected batch settings %+v", cfg.Stamping)
	}
	if cfg.PAC.RateLimitRPS != 10 || cfg.PAC.MaxConcurrentRequests != 20 {
		t.Errorf("unexpected PAC limits %+v", cfg.PAC)
	}
	if cfg.PAC.Configured() {
		t.Error("PAC must not be configured without credentials")
	}
	if cfg.Redis.Addr != "" || cfg.Redis.PostalCodeTTL != 24*time.Hour {
		t.Errorf("unexpected redis settings %+v", cfg.Redis)
	}
}

func TestLoad_WithCustomValues(t *testing.T) {
	resetEnv(t)
	t.Setenv("APP_NAME", "test-app")
	t.Setenv("APP_VERSION", "2.0.0")
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("CFDI_ENVIRONMENT", "PRODUCTION")
	t.Setenv("CARTAPORTE_VERSION", "3.0")
	t.Setenv("STAMPING_TIMEZONE", "America/Tijuana")
	t.Setenv("STAMPING_EMISOR_RFC", " eku9003173c9 ")
	t.Setenv("PAC_BASE_URL", "https://pac.example.com")
	t.Setenv("PAC_USERNAME", "user")
	t.Setenv("PAC_PASSWORD", "pass")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Name != "test-app" {
		t.Errorf("expected app name 'test-app', got %q", cfg.App.Name)
	}
	if cfg.App.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %q", cfg.App.Version)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Stamping.Environment != "production" {
		t.Errorf("expected production environment, got %q", cfg.Stamping.Environment)
	}
	if cfg.Stamping.CartaPorteVersion != "3.0" {
		t.Errorf("expected Carta Porte 3.0, got %q", cfg.Stamping.CartaPorteVersion)
	}
	if cfg.Stamping.Location.String() != "America/Tijuana" {
		t.Errorf("expected America/Tijuana, got %v", cfg.Stamping.Location)
	}
	if cfg.Stamping.EmisorRFC != "EKU9003173C9" {
		t.Errorf("expected normalized emisor RFC, got %q", cfg.Stamping.EmisorRFC)
	}
	if !cfg.PAC.Configured() {
		t.Error("expected PAC to be configured")
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("expected redis addr, got %q", cfg.Redis.Addr)
	}
}

func TestLoad_InvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"unknown environment", "CFDI_ENVIRONMENT", "staging", "CFDI_ENVIRONMENT must be 'sandbox' or 'production'"},
		{"unsupported version", "CARTAPORTE_VERSION", "2.0", "CARTAPORTE_VERSION must be '3.0' or '3.1'"},
		{"unknown timezone", "STAMPING_TIMEZONE", "Mars/Olympus", "STAMPING_TIMEZONE"},
		{"zero batch concurrency", "VALIDATION_BATCH_CONCURRENCY", "0", "VALIDATION_BATCH_CONCURRENCY must be greater than 0"},
		{"zero batch size", "VALIDATION_MAX_BATCH_SIZE", "0", "VALIDATION_MAX_BATCH_SIZE must be greater than 0"},
		{"zero rate limit", "PAC_RATE_LIMIT_RPS", "0", "PAC_RATE_LIMIT_RPS must be greater than 0"},
		{"zero concurrency", "PAC_MAX_CONCURRENT_REQUESTS", "0", "PAC_MAX_CONCURRENT_REQUESTS must be greater than 0"},
		{"concurrency above cap", "PAC_MAX_CONCURRENT_REQUESTS", "201", "PAC_MAX_CONCURRENT_REQUESTS cannot exceed 200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
			if !strings.HasPrefix(err.Error(), "invalid config: ") {
				t.Errorf("expected invalid config prefix, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDatabaseSettings_Configured(t *testing.T) {
	if !(DatabaseSettings{Host: "db", Database: "cartaporte"}).Configured() {
		t.Error("expected configured with host and database")
	}
	if (DatabaseSettings{Host: "db"}).Configured() {
		t.Error("expected not configured without database name")
	}
}

func TestLoad_AuthEnabled_MissingIssuerURI(t *testing.T) {
	resetEnv(t)
	t.Setenv("AUTH_ENABLED", "true")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when AUTH_ENABLED=true and JWT_ISSUER_URI is missing")
	}

	if err.Error() != "invalid config: JWT_ISSUER_URI is required when AUTH_ENABLED=true" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestLoad_AuthEnabled_MissingJWKSetURI(t *testing.T) {
	resetEnv(t)
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("JWT_ISSUER_URI", "https://issuer.example.com")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when AUTH_ENABLED=true and JWT_JWK_SET_URI is missing")
	}

	if err.Error() != "invalid config: JWT_JWK_SET_URI is required when AUTH_ENABLED=true" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestHTTPSettings_Address(t *testing.T) {
	settings := HTTPSettings{Port: 8080}
	addr := settings.Address()

	if addr != ":8080" {
		t.Errorf("expected address ':8080', got %q", addr)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := getEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("expected 'test-value', got %q", value)
	}

	value = getEnv("NON_EXISTENT_KEY", "default-value")
	if value != "default-value" {
		t.Errorf("expected 'default-value', got %q", value)
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback bool
		expected bool
	}{
		{"true value", "true", false, true},
		{"false value", "false", true, false},
		{"True value", "True", false, true},
		{"FALSE value", "FALSE", true, false},
		{"invalid value", "invalid", true, true},
		{"missing key", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv("TEST_BOOL", tt.envValue)
				defer os.Unsetenv("TEST_BOOL")
			} else {
				os.Unsetenv("TEST_BOOL")
			}

			result := getEnvAsBool("TEST_BOOL", tt.fallback)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback int
		expected int
	}{
		{"valid int", "123", 0, 123},
		{"zero", "0", 999, 0},
		{"negative", "-10", 0, -10},
		{"invalid value", "not-a-number", 42, 42},
		{"missing key", "", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv("TEST_INT", tt.envValue)
				defer os.Unsetenv("TEST_INT")
			} else {
				os.Unsetenv("TEST_INT")
			}

			result := getEnvAsInt("TEST_INT", tt.fallback)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback time.Duration
		expected time.Duration
	}{
		{"valid duration", "10s", 0, 10 * time.Second},
		{"minutes", "5m", 0, 5 * time.Minute},
		{"hours", "2h", 0, 2 * time.Hour},
		{"invalid value", "not-a-duration", 30 * time.Second, 30 * time.Second},
		{"empty value", "", 30 * time.Second, 30 * time.Second},
		{"missing key", "", 30 * time.Second, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv("TEST_DURATION", tt.envValue)
				defer os.Unsetenv("TEST_DURATION")
			} else {
				os.Unsetenv("TEST_DURATION")
			}

			result := getEnvAsDuration("TEST_DURATION", tt.fallback)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestGetEnvAsCSV(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback []string
		expected []string
	}{
		{
			name:     "single value",
			envValue: "value1",
			fallback: []string{"default"},
			expected: []string{"value1"},
		},
		{
			name:     "multiple values",
			envValue: "value1,value2,value3",
			fallback: []string{"default"},
			expected: []string{"value1", "value2", "value3"},
		},
		{
			name:     "with spaces",
			envValue: "value1, value2 , value3",
			fallback: []string{"default"},
			expected: []string{"value1", "value2", "value3"},
		},
		{
			name:     "empty values filtered",
			envValue: "value1,,value2, ,value3",
			fallback: []string{"default"},
			expected: []string{"value1", "value2", "value3"},
		},
		{
			name:     "empty string",
			envValue: "",
			fallback: []string{"default"},
			expected: []string{"default"},
		},
		{
			name:     "only spaces",
			envValue: " , , ",
			fallback: []string{"default"},
			expected: []string{"default"},
		},
		{
			name:     "missing key",
			envValue: "",
			fallback: []string{"default1", "default2"},
			expected: []string{"default1", "default2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv("TEST_CSV", tt.envValue)
				defer os.Unsetenv("TEST_CSV")
			} else {
				os.Unsetenv("TEST_CSV")
			}

			result := getEnvAsCSV("TEST_CSV", tt.fallback)
			if len(result) != len(tt.expected) {
				t.Errorf("expected %d values, got %d", len(tt.expected), len(result))
				return
			}

			for i, expected := range tt.expected {
				if result[i] != expected {
					t.Errorf("expected[%d] %q, got %q", i, expected, result[i])
				}
			}
		})
	}
}
