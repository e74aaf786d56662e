package models

import "time"

type TicketStatus string

const (
	TicketStatusOpen    TicketStatus = "open"
	TicketStatusPending TicketStatus = "pending"
	TicketStatusClosed  TicketStatus = "closed"
)

// ChannelWhatsApp is the channel kind of tickets opened by the bridge.
const ChannelWhatsApp = "whatsapp"

// Ticket is a conversation thread between a contact and one channel.
type Ticket struct {
	ID             int64        `json:"id"`
	Status         TicketStatus `json:"status"`
	UnreadMessages int          `json:"unreadMessages"`
	LastMessage    string       `json:"lastMessage"`
	IsGroup        bool         `json:"isGroup"`
	ContactID      int64        `json:"contactId"`
	WhatsappID     int64        `json:"whatsappId"`
	QueueID        *int64       `json:"queueId"`
	UserID         *int64       `json:"userId"`
	Channel        string       `json:"channel"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// HasQueue reports whether the ticket was routed to a queue.
func (t *Ticket) HasQueue() bool {
	return t.QueueID != nil
}

// HasAgent reports whether an agent took the ticket.
func (t *Ticket) HasAgent() bool {
	return t.UserID != nil
}

// TicketUpdate lists the fields a ticket update may change. Nil fields are
// left untouched.
type TicketUpdate struct {
	Status         *TicketStatus
	QueueID        *int64
	UserID         *int64
	ClearUser      bool
	UnreadMessages *int
	LastMessage    *string
}
