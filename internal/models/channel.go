package models

import "time"

// Queue is a named routing destination served by a group of agents.
type Queue struct {
	ID              int64  `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	Color           string `json:"color" yaml:"color"`
	GreetingMessage string `json:"greetingMessage" yaml:"greeting"`
}

// Channel is a connected WhatsApp account and its routing setup.
type Channel struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	SessionName     string    `json:"sessionName"`
	GreetingMessage string    `json:"greetingMessage"`
	FarewellMessage string    `json:"farewellMessage"`
	Queues          []Queue   `json:"queues"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasQueues reports whether at least one queue serves the channel.
func (c *Channel) HasQueues() bool {
	return len(c.Queues) > 0
}
