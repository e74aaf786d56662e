package models

import (
	"time"
)

// Contact is a person or group that talked to one of the channels.
type Contact struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Number        string    `json:"number"`
	ProfilePicURL string    `json:"profilePicUrl"`
	IsGroup       bool      `json:"isGroup"`
	CommandBot    *string   `json:"commandBot"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CommandState returns the contact's menu position.
func (c *Contact) CommandState() CommandPath {
	if c == nil || c.CommandBot == nil {
		return ""
	}
	return CommandPath(*c.CommandBot)
}

// ChatID returns the channel address of the contact.
func (c *Contact) ChatID() string {
	if c.IsGroup {
		return c.Number + "@g.us"
	}
	return c.Number + "@c.us"
}

// ContactData is the input of a contact upsert.
type ContactData struct {
	Name          string
	Number        string
	ProfilePicURL string
	IsGroup       bool
}
