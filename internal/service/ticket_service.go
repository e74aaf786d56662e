package service

import (
	"context"
	"fmt"
	"time"

	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/models"

	"github.com/sirupsen/logrus"
)

// TicketDatabaseService defines the database operations needed by TicketService
type TicketDatabaseService interface {
	GetTicket(ctx context.Context, id int64) (*models.Ticket, error)
	FindActiveTicket(ctx context.Context, contactID, whatsappID int64) (*models.Ticket, error)
	FindLatestTicket(ctx context.Context, contactID, whatsappID int64) (*models.Ticket, error)
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	UpdateTicket(ctx context.Context, id int64, update models.TicketUpdate) (*models.Ticket, error)
}

// TicketPublisher receives ticket changes for real-time subscribers.
type TicketPublisher interface {
	EmitTicket(ticket *models.Ticket)
}

// TicketRequest identifies the conversation a message belongs to.
type TicketRequest struct {
	Contact        *models.Contact
	ChannelID      int64
	UnreadMessages int
	// GroupContact is set for group chats; the ticket then belongs to the
	// group rather than the sender.
	GroupContact *models.Contact
	Channel      string
}

func (r TicketRequest) owner() *models.Contact {
	if r.GroupContact != nil {
		return r.GroupContact
	}
	return r.Contact
}

// TicketService finds or creates the single active ticket of a contact on
// a channel.
type TicketService struct {
	db           TicketDatabaseService
	publisher    TicketPublisher
	locks        *keyedMutex
	reopenWindow time.Duration
	now          func() time.Time
	logger       *logrus.Logger
}

func NewTicketService(db TicketDatabaseService, publisher TicketPublisher, reopenWindow time.Duration, logger *logrus.Logger) *TicketService {
	if logger == nil {
		logger = logrus.New()
	}
	return &TicketService{
		db:           db,
		publisher:    publisher,
		locks:        newKeyedMutex(),
		reopenWindow: reopenWindow,
		now:          time.Now,
		logger:       logger,
	}
}

// FindOrCreate returns the open or pending ticket of the request's owner
// on the channel and refreshes its unread counter. Without one, a group
// reopens its latest ticket and an individual contact reopens a ticket
// touched within the reopen window; otherwise a pending ticket is created.
// Calls for the same owner and channel are serialized.
func (ts *TicketService) FindOrCreate(ctx context.Context, req TicketRequest) (*models.Ticket, error) {
	owner := req.owner()
	if owner == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "ticket owner is required")
	}

	unlock := ts.locks.Lock(fmt.Sprintf("%d:%d", owner.ID, req.ChannelID))
	defer unlock()

	unread := req.UnreadMessages
	ticket, err := ts.db.FindActiveTicket(ctx, owner.ID, req.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active ticket: %w", err)
	}
	if ticket != nil {
		return ts.db.UpdateTicket(ctx, ticket.ID, models.TicketUpdate{UnreadMessages: &unread})
	}

	if ticket, err = ts.reopen(ctx, req, owner); err != nil || ticket != nil {
		return ticket, err
	}

	ticket = &models.Ticket{
		Status:         models.TicketStatusPending,
		UnreadMessages: unread,
		IsGroup:        req.GroupContact != nil,
		ContactID:      owner.ID,
		WhatsappID:     req.ChannelID,
		Channel:        req.Channel,
	}
	err = ts.db.CreateTicket(ctx, ticket)
	if apperrors.HasCode(err, apperrors.ErrCodeDuplicate) {
		// Another process won the insert.
		existing, findErr := ts.db.FindActiveTicket(ctx, owner.ID, req.ChannelID)
		if findErr != nil {
			return nil, fmt.Errorf("failed to reload active ticket: %w", findErr)
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	ts.logger.WithFields(logrus.Fields{
		"ticket_id":  ticket.ID,
		"channel_id": req.ChannelID,
	}).Debug("Created ticket")
	return ticket, nil
}

func (ts *TicketService) reopen(ctx context.Context, req TicketRequest, owner *models.Contact) (*models.Ticket, error) {
	latest, err := ts.db.FindLatestTicket(ctx, owner.ID, req.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest ticket: %w", err)
	}
	if latest == nil {
		return nil, nil
	}
	if req.GroupContact == nil && ts.now().Sub(latest.UpdatedAt) > ts.reopenWindow {
		return nil, nil
	}

	pending := models.TicketStatusPending
	unread := req.UnreadMessages
	ticket, err := ts.db.UpdateTicket(ctx, latest.ID, models.TicketUpdate{
		Status:         &pending,
		ClearUser:      true,
		UnreadMessages: &unread,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reopen ticket: %w", err)
	}

	ts.logger.WithField("ticket_id", ticket.ID).Debug("Reopened ticket")
	return ticket, nil
}

// SetQueue routes the ticket to queueID and publishes the change.
func (ts *TicketService) SetQueue(ctx context.Context, ticketID, queueID int64) (*models.Ticket, error) {
	return ts.update(ctx, ticketID, models.TicketUpdate{QueueID: &queueID})
}

// AssignAgent hands the ticket to userID and publishes the change.
func (ts *TicketService) AssignAgent(ctx context.Context, ticketID, userID int64) (*models.Ticket, error) {
	return ts.update(ctx, ticketID, models.TicketUpdate{UserID: &userID})
}

// SetLastMessage stores the ticket's last message snapshot.
func (ts *TicketService) SetLastMessage(ctx context.Context, ticketID int64, body string) (*models.Ticket, error) {
	return ts.update(ctx, ticketID, models.TicketUpdate{LastMessage: &body})
}

func (ts *TicketService) update(ctx context.Context, ticketID int64, update models.TicketUpdate) (*models.Ticket, error) {
	ticket, err := ts.db.UpdateTicket(ctx, ticketID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update ticket %d: %w", ticketID, err)
	}
	if ts.publisher != nil {
		ts.publisher.EmitTicket(ticket)
	}
	return ticket, nil
}
