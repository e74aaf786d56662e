package database

import (
	"context"
	"database/sql"

	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/models"
)

// UpsertMessage stores msg keyed by its channel id. Storing the same id
// again refreshes the content but keeps the recorded ack.
func (d *Database) UpsertMessage(ctx context.Context, msg *models.Message) error {
	body, err := d.encryptor.Encrypt(msg.Body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to encrypt message body")
	}
	mediaURL, err := d.encryptor.Encrypt(msg.MediaURL)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to encrypt media url")
	}

	now := d.now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	err = withRetry(ctx, "upsert message", func() error {
		_, err := d.db.ExecContext(ctx, upsertMessageQuery,
			msg.ID, msg.TicketID, nullInt64(msg.ContactID), body, msg.FromMe, msg.Read,
			mediaURL, msg.MediaType, nullString(msg.QuotedMsgID), msg.Ack, msg.CreatedAt, msg.UpdatedAt)
		return err
	})
	if err != nil {
		return apperrors.NewDatabaseError("upsert message", err).WithContext("ticket_id", msg.TicketID)
	}
	return nil
}

// GetMessage returns nil when the id is unknown.
func (d *Database) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	var contactID sql.NullInt64
	var quoted sql.NullString
	var body, mediaURL string

	err := d.db.QueryRowContext(ctx, selectMessageQuery, id).Scan(
		&msg.ID, &msg.TicketID, &contactID, &body, &msg.FromMe, &msg.Read, &mediaURL,
		&msg.MediaType, &quoted, &msg.Ack, &msg.CreatedAt, &msg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get message", err)
	}

	if msg.Body, err = d.encryptor.Decrypt(body); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to decrypt message body")
	}
	if msg.MediaURL, err = d.encryptor.Decrypt(mediaURL); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to decrypt media url")
	}
	msg.ContactID = int64Ptr(contactID)
	msg.QuotedMsgID = stringPtr(quoted)
	return &msg, nil
}

// UpdateMessageAck records a delivery acknowledgment. It reports false
// when no message has the id.
func (d *Database) UpdateMessageAck(ctx context.Context, id string, ack models.AckStatus) (bool, error) {
	var rows int64
	err := withRetry(ctx, "update message ack", func() error {
		res, err := d.db.ExecContext(ctx, updateMessageAckQuery, ack, d.now(), id)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, apperrors.NewDatabaseError("update message ack", err)
	}
	return rows > 0, nil
}
