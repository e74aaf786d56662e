package models

import (
	"time"
)

// AckStatus is the delivery acknowledgment of a message.
type AckStatus int

const (
	AckError   AckStatus = -1
	AckPending AckStatus = 0
	AckServer  AckStatus = 1
	AckDevice  AckStatus = 2
	AckRead    AckStatus = 3
	AckPlayed  AckStatus = 4
)

func (a AckStatus) String() string {
	switch a {
	case AckError:
		return "error"
	case AckPending:
		return "queued"
	case AckServer:
		return "sent"
	case AckDevice:
		return "delivered"
	case AckRead:
		return "read"
	case AckPlayed:
		return "played"
	default:
		return "unknown"
	}
}

// Message is one stored inbound or outbound message. ID is the
// channel-native id.
type Message struct {
	ID          string    `json:"id"`
	TicketID    int64     `json:"ticketId"`
	ContactID   *int64    `json:"contactId"`
	Body        string    `json:"body"`
	FromMe      bool      `json:"fromMe"`
	Read        bool      `json:"read"`
	MediaURL    string    `json:"mediaUrl,omitempty"`
	MediaType   string    `json:"mediaType"`
	QuotedMsgID *string   `json:"quotedMsgId"`
	Ack         AckStatus `json:"ack"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
