package service

import (
	"context"
	"fmt"

	"ticketflow/internal/metrics"
	"ticketflow/internal/models"
	"ticketflow/internal/privacy"
	"ticketflow/internal/realtime"
	"ticketflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// MessageDatabaseService defines the database operations needed by MessageStore
type MessageDatabaseService interface {
	UpsertMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	UpdateMessageAck(ctx context.Context, id string, ack models.AckStatus) (bool, error)
}

// MessagePublisher receives stored messages for real-time subscribers.
type MessagePublisher interface {
	EmitMessage(ticketID int64, action string, msg *models.Message)
}

// MessageStore records channel messages against their ticket.
type MessageStore struct {
	db          MessageDatabaseService
	tickets     *TicketService
	publisher   MessagePublisher
	registry    *metrics.Registry
	mapLanguage string
	logger      *logrus.Logger
	verbose     bool
}

func NewMessageStore(db MessageDatabaseService, tickets *TicketService, publisher MessagePublisher, registry *metrics.Registry, mapLanguage string, logger *logrus.Logger, verbose bool) *MessageStore {
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &MessageStore{
		db:          db,
		tickets:     tickets,
		publisher:   publisher,
		registry:    registry,
		mapLanguage: mapLanguage,
		logger:      logger,
		verbose:     verbose,
	}
}

// Store records a message without attachment. Location bodies are
// rewritten to carry the map link, and the ticket's last message becomes
// the body or the location summary.
func (s *MessageStore) Store(ctx context.Context, session types.Session, msg *types.Message, ticket *models.Ticket, contact *models.Contact) (*models.Message, error) {
	body, summary := msg.Body, msg.Body
	if msg.Type == types.MessageTypeLocation {
		body, summary = formatLocation(msg, s.mapLanguage)
	}

	record := s.newRecord(ctx, session, msg, ticket, contact)
	record.Body = body
	record.MediaType = msg.Type
	return s.save(ctx, record, summary)
}

// StoreMedia records a message whose attachment was handled by
// MediaService. The record is written even when the bytes were not.
func (s *MessageStore) StoreMedia(ctx context.Context, session types.Session, msg *types.Message, ticket *models.Ticket, contact *models.Contact, media MediaResult) (*models.Message, error) {
	record := s.newRecord(ctx, session, msg, ticket, contact)
	record.Body = msg.Body
	record.MediaURL = media.Filename
	record.MediaType = media.MediaType
	return s.save(ctx, record, msg.Body)
}

func (s *MessageStore) newRecord(ctx context.Context, session types.Session, msg *types.Message, ticket *models.Ticket, contact *models.Contact) *models.Message {
	record := &models.Message{
		ID:          msg.ID,
		TicketID:    ticket.ID,
		FromMe:      msg.FromMe,
		Read:        msg.FromMe,
		QuotedMsgID: s.quotedMessageID(ctx, session, msg),
	}
	if !msg.FromMe && contact != nil {
		id := contact.ID
		record.ContactID = &id
	}
	return record
}

func (s *MessageStore) save(ctx context.Context, record *models.Message, summary string) (*models.Message, error) {
	if _, err := s.tickets.SetLastMessage(ctx, record.TicketID, summary); err != nil {
		return nil, err
	}
	if err := s.db.UpsertMessage(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	s.registry.IncrementCounter(metrics.MessagesStored, map[string]string{"media_type": record.MediaType}, "Messages stored")
	if s.publisher != nil {
		s.publisher.EmitMessage(record.TicketID, realtime.ActionCreate, record)
	}
	return record, nil
}

// quotedMessageID returns the id of the quoted message when it is stored.
// Lookup failures only drop the reference.
func (s *MessageStore) quotedMessageID(ctx context.Context, session types.Session, msg *types.Message) *string {
	if !msg.HasQuotedMsg {
		return nil
	}

	quotedID := msg.QuotedMsgID
	if quotedID == "" && session != nil {
		quoted, err := session.GetQuotedMessage(ctx, msg.ID)
		if err != nil || quoted == nil {
			entry := s.logger.WithFields(privacy.Fields(s.verbose, logrus.Fields{"message_id": msg.ID}))
			if err != nil {
				entry = entry.WithError(err)
			}
			entry.Warn("Failed to fetch quoted message")
			return nil
		}
		quotedID = quoted.ID
	}

	stored, err := s.db.GetMessage(ctx, quotedID)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to look up quoted message")
		return nil
	}
	if stored == nil {
		return nil
	}
	return &stored.ID
}

// UpdateAck stores the delivery state of message id and publishes the
// updated message. It returns nil when the message is unknown.
func (s *MessageStore) UpdateAck(ctx context.Context, id string, ack models.AckStatus) (*models.Message, error) {
	updated, err := s.db.UpdateMessageAck(ctx, id, ack)
	if err != nil {
		return nil, fmt.Errorf("failed to update message ack: %w", err)
	}
	if !updated {
		return nil, nil
	}

	msg, err := s.db.GetMessage(ctx, id)
	if err != nil || msg == nil {
		return nil, err
	}
	if s.publisher != nil {
		s.publisher.EmitMessage(msg.TicketID, realtime.ActionUpdate, msg)
	}
	return msg, nil
}
