package config

import (
	"os"
	"path/filepath"
	"testing"

	"ticketflow/internal/constants"
	"ticketflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	validConfig := `{
		"server": {"port": 9000, "webhook_secret": "secret123"},
		"bridge": {"api_base_url": "http://bridge.local:3000", "api_key": "k", "send_rate_per_sec": 2},
		"database": {"path": "/var/lib/ticketflow/db.sqlite"},
		"media": {"public_dir": "/srv/public"},
		"routing": {"greeting_debounce_ms": 1500, "call_notice": "no calls"},
		"retry": {"initial_backoff_ms": 100, "max_backoff_ms": 1000, "max_attempts": 4},
		"log_level": "warn"
	}`
	validPath := writeConfig(t, validConfig)

	tests := []struct {
		name      string
		path      string
		setEnv    map[string]string
		wantError bool
		validate  func(*testing.T, *models.Config)
	}{
		{
			name: "valid config",
			path: validPath,
			validate: func(t *testing.T, config *models.Config) {
				assert.Equal(t, 9000, config.Server.Port)
				assert.Equal(t, "secret123", config.Server.WebhookSecret)
				assert.Equal(t, "http://bridge.local:3000", config.Bridge.APIBaseURL)
				assert.Equal(t, 2.0, config.Bridge.SendRatePS)
				assert.Equal(t, "/var/lib/ticketflow/db.sqlite", config.Database.Path)
				assert.Equal(t, "/srv/public", config.Media.PublicDir)
				assert.Equal(t, 1500, config.Routing.GreetingDebounceMs)
				assert.Equal(t, "no calls", config.Routing.CallNotice)
				assert.Equal(t, 4, config.Retry.MaxAttempts)
				assert.Equal(t, "warn", config.LogLevel)
			},
		},
		{
			name: "environment overrides",
			path: validPath,
			setEnv: map[string]string{
				"TICKETFLOW_BRIDGE_URL":        "https://bridge.override",
				"TICKETFLOW_BRIDGE_API_KEY":    "override-key",
				"TICKETFLOW_WEBHOOK_SECRET":    "override_secret",
				"TICKETFLOW_DB_PATH":           "/override/db.sqlite",
				"TICKETFLOW_PUBLIC_DIR":        "/override/public",
				"TICKETFLOW_ENCRYPTION_SECRET": "enc",
			},
			validate: func(t *testing.T, config *models.Config) {
				assert.Equal(t, "https://bridge.override", config.Bridge.APIBaseURL)
				assert.Equal(t, "override-key", config.Bridge.APIKey)
				assert.Equal(t, "override_secret", config.Server.WebhookSecret)
				assert.Equal(t, "/override/db.sqlite", config.Database.Path)
				assert.Equal(t, "/override/public", config.Media.PublicDir)
				assert.Equal(t, "enc", config.Database.EncryptionSecret)
			},
		},
		{
			name:      "missing required fields",
			path:      writeConfig(t, `{"bridge": {}, "database": {}}`),
			wantError: true,
		},
		{
			name:      "malformed json",
			path:      writeConfig(t, `{"bridge": `),
			wantError: true,
		},
		{
			name:      "nonexistent file",
			path:      "/nonexistent/config.json",
			wantError: true,
		},
		{
			name:      "traversal path",
			path:      "../../etc/passwd",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.setEnv {
				t.Setenv(k, v)
			}

			config, err := LoadConfig(tt.path)
			if tt.wantError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, config)
			if tt.validate != nil {
				tt.validate(t, config)
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	config := &models.Config{}
	assert.Equal(t, ErrMissingBridgeURL, validate(config))

	config.Bridge.APIBaseURL = "bridge.local"
	assert.Equal(t, ErrInvalidBridgeURL, validate(config))

	config.Bridge.APIBaseURL = "http://bridge.local"
	assert.Equal(t, ErrMissingDBPath, validate(config))

	config.Database.Path = "ticketflow.db"
	require.NoError(t, validate(config))

	assert.Equal(t, constants.DefaultServerPort, config.Server.Port)
	assert.Equal(t, constants.DefaultBridgeTimeoutMs, config.Bridge.TimeoutMs)
	assert.Equal(t, float64(constants.DefaultSendRatePerSec), config.Bridge.SendRatePS)
	assert.Equal(t, constants.DefaultBreakerFailures, config.Bridge.BreakerFailures)
	assert.Equal(t, constants.DefaultPublicDir, config.Media.PublicDir)
	assert.Equal(t, constants.DefaultGreetingDebounceMs, config.Routing.GreetingDebounceMs)
	assert.Equal(t, constants.DefaultQueuePromptDebounceMs, config.Routing.QueuePromptDebounceMs)
	assert.Equal(t, constants.DefaultAckDelayMs, config.Routing.AckDelayMs)
	assert.Equal(t, constants.DefaultReopenWindowMinutes, config.Routing.ReopenWindowMinutes)
	assert.Equal(t, constants.DefaultCallNotice, config.Routing.CallNotice)
	assert.Equal(t, constants.DefaultAttachmentCaption, config.Routing.AttachmentCaption)
	assert.Equal(t, constants.DefaultMaxAttempts, config.Retry.MaxAttempts)
	assert.Equal(t, "ticketflow", config.Tracing.ServiceName)
	assert.Equal(t, 1.0, config.Tracing.SampleRate)
	assert.Equal(t, "info", config.LogLevel)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *models.Config {
		return &models.Config{
			Bridge:   models.BridgeConfig{APIBaseURL: "http://bridge.local"},
			Database: models.DatabaseConfig{Path: "db.sqlite"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*models.Config)
		errMsg string
	}{
		{"port out of range", func(c *models.Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"negative ack delay", func(c *models.Config) { c.Routing.AckDelayMs = -1 }, "ack_delay_ms"},
		{"inverted backoff", func(c *models.Config) { c.Retry.InitialBackoffMs = 2000; c.Retry.MaxBackoffMs = 100 }, "max_backoff_ms"},
		{"sample rate", func(c *models.Config) { c.Tracing.SampleRate = 1.5 }, "sample_rate"},
		{"encryption without secret", func(c *models.Config) { c.Database.EncryptMessages = true }, "TICKETFLOW_ENCRYPTION_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := validate(c)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateSecurity(t *testing.T) {
	longSecret := "this-is-a-very-long-webhook-secret-that-meets-requirements"

	tests := []struct {
		name        string
		config      *models.Config
		environment string
		expectError bool
		errorMsg    string
	}{
		{
			name:   "development environment - no webhook secret",
			config: &models.Config{},
		},
		{
			name:        "production environment - missing webhook secret",
			config:      &models.Config{},
			environment: "production",
			expectError: true,
			errorMsg:    "webhook secret is required in production",
		},
		{
			name:        "production environment - short webhook secret",
			config:      &models.Config{Server: models.ServerConfig{WebhookSecret: "short"}},
			environment: "production",
			expectError: true,
			errorMsg:    "at least 32 characters",
		},
		{
			name:        "production environment - valid webhook secret",
			config:      &models.Config{Server: models.ServerConfig{WebhookSecret: longSecret}},
			environment: "production",
		},
		{
			name: "production environment - unsafe bridge",
			config: &models.Config{
				Server: models.ServerConfig{WebhookSecret: longSecret},
				Bridge: models.BridgeConfig{AllowUnsafe: true},
			},
			environment: "production",
			expectError: true,
			errorMsg:    "allow_unsafe",
		},
		{
			name: "production environment - debug logging enabled",
			config: &models.Config{
				Server:   models.ServerConfig{WebhookSecret: longSecret},
				LogLevel: "debug",
			},
			environment: "production",
			expectError: true,
			errorMsg:    "debug logging should not be used in production",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TICKETFLOW_ENV", tt.environment)

			err := validateSecurity(tt.config)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
