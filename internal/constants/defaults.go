package constants

// Server defaults
const (
	DefaultServerPort            = 8082
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
	MaxWebhookBodyBytes          = 16 * 1024 * 1024
)

// Bridge client defaults
const (
	DefaultBridgeTimeoutMs = 30000
	DefaultSendRatePerSec  = 5
	DefaultSendBurst       = 5

	DefaultBreakerFailures    = 5
	DefaultBreakerCooldownSec = 30
)

// Routing defaults
const (
	DefaultGreetingDebounceMs    = 1000
	DefaultQueuePromptDebounceMs = 3000
	DefaultAckDelayMs            = 500
	DefaultReopenWindowMinutes   = 120
	DefaultProfilePic            = "/default-profile.png"
	DefaultAttachmentCaption     = "Arquivo enviado"
	DefaultMapLanguage           = "pt-BR"
	DefaultCallNotice            = "*Mensaje Automatico:*\nLas llamadas de voz y video están deshabilitadas para este WhatsApp, envíe un mensaje de texto. Gracias"
)

// Retry defaults
const (
	DefaultRetryBackoffMs        = 500
	DefaultMaxBackoffMs          = 5000
	DefaultMaxAttempts           = 3
	DefaultDatabaseRetryAttempts = 3
)

// Media defaults
const (
	DefaultPublicDir = "public"
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
	DefaultMessageIDLength = 8
)

// EncryptionSalt is mixed into the PBKDF2 key derivation.
const EncryptionSalt = "ticketflow-message-body-v1"

// EchoMarker prefixes every message the service sends, so the echo of the
// send coming back as a self-sent event can be recognised and skipped.
const EchoMarker = "\u200e"
