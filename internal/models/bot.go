package models

import "strings"

// CommandType selects what a bot definition does when matched.
type CommandType int

const (
	// CommandTypeInfo replies with the definition body and routes the
	// ticket to the definition's queue.
	CommandTypeInfo  CommandType = 1
	CommandTypeMenu  CommandType = 2
	CommandTypeQueue CommandType = 3
	CommandTypeAgent CommandType = 4
)

// BotDefinition is a configured auto-reply rule.
type BotDefinition struct {
	ID             int64       `json:"id" yaml:"-"`
	CommandBot     string      `json:"commandBot" yaml:"command"`
	CommandType    CommandType `json:"commandType" yaml:"type"`
	DescriptionBot string      `json:"descriptionBot" yaml:"description"`
	ShowMessage    string      `json:"showMessage" yaml:"message"`
	Attachment     string      `json:"attachment,omitempty" yaml:"attachment"`
	DelayMs        int         `json:"delayMs" yaml:"delay_ms"`
	QueueID        *int64      `json:"queueId" yaml:"queue_id"`
	UserID         *int64      `json:"userId" yaml:"user_id"`
}

// Path returns the command token as a command path.
func (b *BotDefinition) Path() CommandPath {
	return CommandPath(b.CommandBot)
}

// IsTopLevel reports whether the definition belongs to the first menu level.
func (b *BotDefinition) IsTopLevel() bool {
	return !strings.Contains(b.CommandBot, CommandSeparator)
}

// HasAttachment reports whether the definition carries a file payload.
func (b *BotDefinition) HasAttachment() bool {
	return strings.TrimSpace(b.Attachment) != ""
}
