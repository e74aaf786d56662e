package database

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/models"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var contact models.Contact
	var commandBot sql.NullString
	if err := row.Scan(&contact.ID, &contact.Name, &contact.Number, &contact.ProfilePicURL,
		&contact.IsGroup, &commandBot, &contact.CreatedAt, &contact.UpdatedAt); err != nil {
		return nil, err
	}
	contact.CommandBot = stringPtr(commandBot)
	return &contact, nil
}

// UpsertContact inserts the contact or, when the number is already known,
// refreshes its name and profile picture. The stored row is returned.
func (d *Database) UpsertContact(ctx context.Context, data models.ContactData) (*models.Contact, error) {
	if data.Number == "" {
		return nil, apperrors.NewValidationError("number", "", "contact number is required")
	}

	now := d.now()
	err := withRetry(ctx, "upsert contact", func() error {
		_, err := d.db.ExecContext(ctx, upsertContactQuery,
			data.Name, data.Number, data.ProfilePicURL, data.IsGroup, now, now)
		return err
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("upsert contact", err)
	}

	contact, err := d.GetContactByNumber(ctx, data.Number)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, apperrors.NewNotFoundError("contact", data.Number)
	}
	return contact, nil
}

// CreateContact inserts a contact that must not exist yet. A number that is
// already stored yields errors.ErrDuplicateContact.
func (d *Database) CreateContact(ctx context.Context, name, number string) (*models.Contact, error) {
	now := d.now()
	err := withRetry(ctx, "create contact", func() error {
		_, err := d.db.ExecContext(ctx, insertContactQuery, name, number, "", now, now)
		return err
	})
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("create contact %s: %w", number, apperrors.ErrDuplicateContact)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("create contact", err)
	}
	return d.GetContactByNumber(ctx, number)
}

// GetContactByNumber returns nil when no contact has the number.
func (d *Database) GetContactByNumber(ctx context.Context, number string) (*models.Contact, error) {
	contact, err := scanContact(d.db.QueryRowContext(ctx, selectContactColumns+" WHERE number = ?", number))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get contact", err)
	}
	return contact, nil
}

// GetContact returns nil when the id is unknown.
func (d *Database) GetContact(ctx context.Context, id int64) (*models.Contact, error) {
	contact, err := scanContact(d.db.QueryRowContext(ctx, selectContactColumns+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get contact", err)
	}
	return contact, nil
}

// UpdateCommandState stores the contact's menu position. A nil command
// clears it.
func (d *Database) UpdateCommandState(ctx context.Context, contactID int64, command *string) error {
	var rows int64
	err := withRetry(ctx, "update command state", func() error {
		res, err := d.db.ExecContext(ctx, updateContactCommandQuery, nullString(command), d.now(), contactID)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return apperrors.NewDatabaseError("update command state", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError("contact", fmt.Sprint(contactID))
	}
	return nil
}
