package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"ticketflow/internal/constants"
	"ticketflow/internal/models"
	"ticketflow/internal/security"
)

var (
	ErrMissingBridgeURL = models.ConfigError{Message: "missing bridge API URL"}
	ErrMissingDBPath    = models.ConfigError{Message: "missing database path"}
	ErrInvalidBridgeURL = models.ConfigError{Message: "bridge API URL must be an absolute http(s) URL"}
)

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Bridge.APIBaseURL == "" {
		return ErrMissingBridgeURL
	}
	u, err := url.Parse(c.Bridge.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBridgeURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Database.EncryptMessages && c.Database.EncryptionSecret == "" {
		return models.ConfigError{Message: "encrypt_messages requires TICKETFLOW_ENCRYPTION_SECRET"}
	}

	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return models.ConfigError{Message: fmt.Sprintf("invalid server port: %d", c.Server.Port)}
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.Bridge.TimeoutMs <= 0 {
		c.Bridge.TimeoutMs = constants.DefaultBridgeTimeoutMs
	}
	if c.Bridge.SendRatePS <= 0 {
		c.Bridge.SendRatePS = constants.DefaultSendRatePerSec
	}
	if c.Bridge.SendBurst <= 0 {
		c.Bridge.SendBurst = constants.DefaultSendBurst
	}
	if c.Bridge.BreakerFailures <= 0 {
		c.Bridge.BreakerFailures = constants.DefaultBreakerFailures
	}
	if c.Bridge.BreakerCooldownSec <= 0 {
		c.Bridge.BreakerCooldownSec = constants.DefaultBreakerCooldownSec
	}

	if c.Media.PublicDir == "" {
		c.Media.PublicDir = constants.DefaultPublicDir
	}

	r := &c.Routing
	if r.GreetingDebounceMs <= 0 {
		r.GreetingDebounceMs = constants.DefaultGreetingDebounceMs
	}
	if r.QueuePromptDebounceMs <= 0 {
		r.QueuePromptDebounceMs = constants.DefaultQueuePromptDebounceMs
	}
	if r.AckDelayMs < 0 {
		return models.ConfigError{Message: "routing.ack_delay_ms cannot be negative"}
	}
	if r.AckDelayMs == 0 {
		r.AckDelayMs = constants.DefaultAckDelayMs
	}
	if r.ReopenWindowMinutes <= 0 {
		r.ReopenWindowMinutes = constants.DefaultReopenWindowMinutes
	}
	if r.DefaultProfilePic == "" {
		r.DefaultProfilePic = constants.DefaultProfilePic
	}
	if r.CallNotice == "" {
		r.CallNotice = constants.DefaultCallNotice
	}
	if r.AttachmentCaption == "" {
		r.AttachmentCaption = constants.DefaultAttachmentCaption
	}
	if r.MapLanguage == "" {
		r.MapLanguage = constants.DefaultMapLanguage
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxBackoffMs < c.Retry.InitialBackoffMs {
		return models.ConfigError{Message: "retry.max_backoff_ms must not be lower than retry.initial_backoff_ms"}
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "ticketflow"
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return models.ConfigError{Message: fmt.Sprintf("tracing.sample_rate must be within [0,1], got %v", c.Tracing.SampleRate)}
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if u := os.Getenv("TICKETFLOW_BRIDGE_URL"); u != "" {
		c.Bridge.APIBaseURL = u
	}
	if key := os.Getenv("TICKETFLOW_BRIDGE_API_KEY"); key != "" {
		c.Bridge.APIKey = key
	}

	// SECURITY: secrets belong in the environment, not the config file
	if secret := os.Getenv("TICKETFLOW_WEBHOOK_SECRET"); secret != "" {
		c.Server.WebhookSecret = secret
	}
	if secret := os.Getenv("TICKETFLOW_ENCRYPTION_SECRET"); secret != "" {
		c.Database.EncryptionSecret = secret
	}

	if path := os.Getenv("TICKETFLOW_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if dir := os.Getenv("TICKETFLOW_PUBLIC_DIR"); dir != "" {
		c.Media.PublicDir = dir
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("TICKETFLOW_ENV") == "production"

	if isProduction {
		if c.Server.WebhookSecret == "" {
			return models.ConfigError{Message: "webhook secret is required in production (set TICKETFLOW_WEBHOOK_SECRET environment variable)"}
		}
		if len(c.Server.WebhookSecret) < 32 {
			return models.ConfigError{Message: "webhook secret must be at least 32 characters long"}
		}
		if c.Bridge.AllowUnsafe {
			return models.ConfigError{Message: "bridge.allow_unsafe cannot be enabled in production"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else if c.Server.WebhookSecret == "" {
		fmt.Fprintf(os.Stderr, "WARNING: webhook secret not set. Set TICKETFLOW_WEBHOOK_SECRET environment variable for security.\n")
	}

	return nil
}
