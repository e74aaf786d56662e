package types

import (
	"context"
)

// Session is one connected channel account. All methods may block on
// network I/O.
type Session interface {
	// ChannelID is the id of the channel record this session serves.
	ChannelID() int64
	Name() string

	SendText(ctx context.Context, chatID, text string) (*Message, error)
	SendMedia(ctx context.Context, chatID string, media *Media, caption string) (*Message, error)

	GetContact(ctx context.Context, contactID string) (*Contact, error)
	GetProfilePicURL(ctx context.Context, contactID string) (string, error)
	GetChat(ctx context.Context, chatID string) (*Chat, error)
	GetQuotedMessage(ctx context.Context, messageID string) (*Message, error)
	// DownloadMedia returns nil media without error when the bridge has
	// nothing to download for the message.
	DownloadMedia(ctx context.Context, messageID string) (*Media, error)
}

// EventHandler processes the payload of a webhook event.
type EventHandler func(ctx context.Context, payload []byte) error

type WebhookHandler interface {
	Handle(ctx context.Context, event *WebhookEvent) error
	RegisterEventHandler(session, eventType string, handler EventHandler)
}
