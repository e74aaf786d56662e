package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Location is the payload of a location message.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description,omitempty"`
}

// Message is a single message as seen by the channel session. It is used
// both for inbound events and for the handle returned after a send.
type Message struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Author       string    `json:"author,omitempty"`
	FromMe       bool      `json:"fromMe"`
	Type         string    `json:"type"`
	Body         string    `json:"body"`
	HasMedia     bool      `json:"hasMedia"`
	HasQuotedMsg bool      `json:"hasQuotedMsg"`
	QuotedMsgID  string    `json:"quotedMsgId,omitempty"`
	Location     *Location `json:"location,omitempty"`
	Timestamp    int64     `json:"timestamp"`
}

// IsGroupMessage reports whether the message belongs to a group chat.
func (m *Message) IsGroupMessage() bool {
	return m.Author != "" || strings.HasSuffix(m.From, GroupSuffix) || strings.HasSuffix(m.To, GroupSuffix)
}

// ChatID returns the id of the chat the message belongs to.
func (m *Message) ChatID() string {
	if m.FromMe {
		return m.To
	}
	return m.From
}

// SenderID returns the id of the contact that authored the message.
func (m *Message) SenderID() string {
	if m.FromMe {
		return m.To
	}
	if m.Author != "" {
		return m.Author
	}
	return m.From
}

// Time converts the unix timestamp of the message.
func (m *Message) Time() time.Time {
	return time.Unix(m.Timestamp, 0)
}

// AckEvent reports a delivery acknowledgment change for a message.
type AckEvent struct {
	Message Message `json:"message"`
	Ack     int     `json:"ack"`
}

// Contact represents a contact as returned by the bridge.
type Contact struct {
	ID       string `json:"id"`
	Number   string `json:"number"`
	Name     string `json:"name"`
	PushName string `json:"pushname"`
	IsGroup  bool   `json:"isGroup"`
	IsMe     bool   `json:"isMe"`
}

// User returns the user part of the contact id, which is the phone number
// for individual contacts and the group id for groups.
func (c *Contact) User() string {
	if i := strings.Index(c.ID, "@"); i > 0 {
		return c.ID[:i]
	}
	if c.ID != "" {
		return c.ID
	}
	return c.Number
}

// GetDisplayName returns the best available display name for the contact
func (c *Contact) GetDisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.PushName != "" {
		return c.PushName
	}
	return c.User()
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsGroup     bool   `json:"isGroup"`
	UnreadCount int    `json:"unreadCount"`
}

// Media is a downloaded attachment. Data holds the decoded bytes.
type Media struct {
	Mimetype string `json:"mimetype"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data"`
}

// WebhookEvent is the envelope posted by the bridge.
type WebhookEvent struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}

// SendTextRequest is the body of a text send.
type SendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

// FileData carries base64 encoded file content.
type FileData struct {
	Mimetype string `json:"mimetype"`
	Filename string `json:"filename,omitempty"`
	Data     string `json:"data"`
}

// SendFileRequest is the body of a media send.
type SendFileRequest struct {
	Session string   `json:"session"`
	ChatID  string   `json:"chatId"`
	File    FileData `json:"file"`
	Caption string   `json:"caption,omitempty"`
}

// ProfilePicture is returned by the profile picture endpoint.
type ProfilePicture struct {
	URL string `json:"profilePictureURL"`
}

// ErrorResponse represents error responses from the bridge API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ClientConfig represents the configuration for the bridge client
type ClientConfig struct {
	BaseURL     string        `json:"base_url"`
	APIKey      string        `json:"api_key"`
	SessionName string        `json:"session_name"`
	ChannelID   int64         `json:"channel_id"`
	Timeout     time.Duration `json:"timeout"`
	SendRate    float64       `json:"send_rate"`
	SendBurst   int           `json:"send_burst"`
	Insecure    bool          `json:"insecure"`

	BreakerFailures uint32         `json:"breaker_failures"`
	BreakerCooldown time.Duration  `json:"breaker_cooldown"`
	Logger          *logrus.Logger `json:"-"`
}
