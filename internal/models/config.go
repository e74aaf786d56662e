package models

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Bridge   BridgeConfig   `json:"bridge"`
	Database DatabaseConfig `json:"database"`
	Media    MediaConfig    `json:"media"`
	Routing  RoutingConfig  `json:"routing"`
	Retry    RetryConfig    `json:"retry"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"log_level"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int    `json:"port"`
	WebhookSecret   string `json:"webhook_secret"`
	ReadTimeoutSec  int    `json:"read_timeout_sec"`
	WriteTimeoutSec int    `json:"write_timeout_sec"`
	IdleTimeoutSec  int    `json:"idle_timeout_sec"`
}

// BridgeConfig holds settings for the channel bridge API
type BridgeConfig struct {
	APIBaseURL string  `json:"api_base_url"`
	APIKey     string  `json:"api_key"`
	TimeoutMs  int     `json:"timeout_ms"`
	SendRatePS float64 `json:"send_rate_per_sec"`
	SendBurst  int     `json:"send_burst"`
	// AllowUnsafe skips TLS verification against the bridge. Rejected in
	// production.
	AllowUnsafe bool `json:"allow_unsafe"`

	// BreakerFailures consecutive bridge failures open the circuit for
	// BreakerCooldownSec seconds.
	BreakerFailures    int `json:"breaker_failures"`
	BreakerCooldownSec int `json:"breaker_cooldown_sec"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path             string `json:"path"`
	EncryptMessages  bool   `json:"encrypt_messages"`
	EncryptionSecret string `json:"-"`
}

// MediaConfig holds media related configurations
type MediaConfig struct {
	PublicDir string `json:"public_dir"`
}

// RoutingConfig tunes the inbound pipeline
type RoutingConfig struct {
	GreetingDebounceMs    int    `json:"greeting_debounce_ms"`
	QueuePromptDebounceMs int    `json:"queue_prompt_debounce_ms"`
	AckDelayMs            int    `json:"ack_delay_ms"`
	ReopenWindowMinutes   int    `json:"reopen_window_minutes"`
	DefaultProfilePic     string `json:"default_profile_pic"`
	CallNotice            string `json:"call_notice"`
	AttachmentCaption     string `json:"attachment_caption"`
	MapLanguage           string `json:"map_language"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"max_backoff_ms"`
	MaxAttempts      int `json:"max_attempts"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
