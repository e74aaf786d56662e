package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/models"
)

func scanTicket(row rowScanner) (*models.Ticket, error) {
	var ticket models.Ticket
	var queueID, userID sql.NullInt64
	if err := row.Scan(&ticket.ID, &ticket.Status, &ticket.UnreadMessages, &ticket.LastMessage,
		&ticket.IsGroup, &ticket.ContactID, &ticket.WhatsappID, &queueID, &userID,
		&ticket.Channel, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return nil, err
	}
	ticket.QueueID = int64Ptr(queueID)
	ticket.UserID = int64Ptr(userID)
	return &ticket, nil
}

func (d *Database) queryTicket(ctx context.Context, operation, where string, args ...interface{}) (*models.Ticket, error) {
	ticket, err := scanTicket(d.db.QueryRowContext(ctx, selectTicketColumns+where, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(operation, err)
	}
	return ticket, nil
}

// GetTicket returns nil when the id is unknown.
func (d *Database) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	return d.queryTicket(ctx, "get ticket", " WHERE id = ?", id)
}

// FindActiveTicket returns the open or pending ticket of the contact on
// the channel, or nil.
func (d *Database) FindActiveTicket(ctx context.Context, contactID, whatsappID int64) (*models.Ticket, error) {
	return d.queryTicket(ctx, "find active ticket",
		" WHERE contact_id = ? AND whatsapp_id = ? AND status IN ('open', 'pending') ORDER BY id DESC LIMIT 1",
		contactID, whatsappID)
}

// FindLatestTicket returns the most recent ticket of the contact on the
// channel whatever its status, or nil.
func (d *Database) FindLatestTicket(ctx context.Context, contactID, whatsappID int64) (*models.Ticket, error) {
	return d.queryTicket(ctx, "find latest ticket",
		" WHERE contact_id = ? AND whatsapp_id = ? ORDER BY updated_at DESC, id DESC LIMIT 1",
		contactID, whatsappID)
}

// CreateTicket inserts ticket and fills its id and timestamps. When the
// contact already has an active ticket on the channel the insert violates
// the active ticket index and errors.ErrCodeDuplicate is returned.
func (d *Database) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	now := d.now()
	if ticket.Status == "" {
		ticket.Status = models.TicketStatusPending
	}
	if ticket.Channel == "" {
		ticket.Channel = models.ChannelWhatsApp
	}

	var id int64
	err := withRetry(ctx, "create ticket", func() error {
		res, err := d.db.ExecContext(ctx, insertTicketQuery,
			ticket.Status, ticket.UnreadMessages, ticket.LastMessage, ticket.IsGroup,
			ticket.ContactID, ticket.WhatsappID, nullInt64(ticket.QueueID), nullInt64(ticket.UserID),
			ticket.Channel, now, now)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if isUniqueViolation(err) {
		return apperrors.Wrap(err, apperrors.ErrCodeDuplicate, "contact already has an active ticket").
			WithContext("contact_id", ticket.ContactID).
			WithContext("whatsapp_id", ticket.WhatsappID)
	}
	if err != nil {
		return apperrors.NewDatabaseError("create ticket", err)
	}

	ticket.ID = id
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	return nil
}

// UpdateTicket applies the non-nil fields of update and returns the
// stored ticket.
func (d *Database) UpdateTicket(ctx context.Context, id int64, update models.TicketUpdate) (*models.Ticket, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{d.now()}

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if update.QueueID != nil {
		sets = append(sets, "queue_id = ?")
		args = append(args, *update.QueueID)
	}
	if update.ClearUser {
		sets = append(sets, "user_id = NULL")
	} else if update.UserID != nil {
		sets = append(sets, "user_id = ?")
		args = append(args, *update.UserID)
	}
	if update.UnreadMessages != nil {
		sets = append(sets, "unread_messages = ?")
		args = append(args, *update.UnreadMessages)
	}
	if update.LastMessage != nil {
		sets = append(sets, "last_message = ?")
		args = append(args, *update.LastMessage)
	}
	args = append(args, id)

	query := "UPDATE tickets SET " + strings.Join(sets, ", ") + " WHERE id = ?" // #nosec G202 - column list is fixed
	var rows int64
	err := withRetry(ctx, "update ticket", func() error {
		res, err := d.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		return err
	})
	if isUniqueViolation(err) {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDuplicate, "contact already has an active ticket").
			WithContext("ticket_id", id)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("update ticket", err)
	}
	if rows == 0 {
		return nil, apperrors.NewNotFoundError("ticket", fmt.Sprint(id))
	}

	return d.GetTicket(ctx, id)
}
