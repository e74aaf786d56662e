package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/models"
	"ticketflow/internal/privacy"
	"ticketflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// ContactDatabaseService defines the database operations needed by ContactService
type ContactDatabaseService interface {
	UpsertContact(ctx context.Context, data models.ContactData) (*models.Contact, error)
	CreateContact(ctx context.Context, name, number string) (*models.Contact, error)
	GetContactByNumber(ctx context.Context, number string) (*models.Contact, error)
	UpdateCommandState(ctx context.Context, contactID int64, command *string) error
}

// ContactService resolves channel identities into stored contacts and
// keeps their command state.
type ContactService struct {
	db                ContactDatabaseService
	defaultProfilePic string
	logger            *logrus.Logger
	verbose           bool
}

func NewContactService(db ContactDatabaseService, defaultProfilePic string, logger *logrus.Logger, verbose bool) *ContactService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ContactService{
		db:                db,
		defaultProfilePic: defaultProfilePic,
		logger:            logger,
		verbose:           verbose,
	}
}

// Resolve upserts the contact behind waContact. A profile picture that
// cannot be fetched is replaced by the default picture; database failures
// are returned.
func (cs *ContactService) Resolve(ctx context.Context, session types.Session, waContact *types.Contact) (*models.Contact, error) {
	if waContact == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "contact is required")
	}

	data := models.ContactData{
		Name:          waContact.GetDisplayName(),
		Number:        waContact.User(),
		ProfilePicURL: cs.profilePic(ctx, session, waContact),
		IsGroup:       waContact.IsGroup,
	}

	contact, err := cs.db.UpsertContact(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert contact: %w", err)
	}
	return contact, nil
}

func (cs *ContactService) profilePic(ctx context.Context, session types.Session, waContact *types.Contact) string {
	url, err := session.GetProfilePicURL(ctx, waContact.ID)
	if err != nil || url == "" {
		entry := cs.logger.WithFields(privacy.Fields(cs.verbose, logrus.Fields{"chat_id": waContact.ID}))
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Debug("Using default profile picture")
		return cs.defaultProfilePic
	}
	return url
}

// SetCommandState records command as the contact's menu position. An
// empty command clears it.
func (cs *ContactService) SetCommandState(ctx context.Context, contact *models.Contact, command models.CommandPath) error {
	var value *string
	if !command.IsEmpty() {
		s := command.String()
		value = &s
	}

	if err := cs.db.UpdateCommandState(ctx, contact.ID, value); err != nil {
		return fmt.Errorf("failed to update command state: %w", err)
	}
	contact.CommandBot = value
	return nil
}

// CreateFromCard stores a contact shared as a contact card. A number that
// is already known returns the stored contact.
func (cs *ContactService) CreateFromCard(ctx context.Context, name, number string) (*models.Contact, error) {
	contact, err := cs.db.CreateContact(ctx, name, number)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, apperrors.ErrDuplicateContact) {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	existing, err := cs.db.GetContactByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing contact: %w", err)
	}
	if existing == nil {
		return nil, apperrors.NewNotFoundError("contact", number)
	}
	return existing, nil
}
