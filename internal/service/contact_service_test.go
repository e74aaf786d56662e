package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/models"
	"ticketflow/pkg/whatsapp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock ContactDatabaseService
type mockContactDatabaseService struct {
	mock.Mock
}

func (m *mockContactDatabaseService) UpsertContact(ctx context.Context, data models.ContactData) (*models.Contact, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contact), args.Error(1)
}

func (m *mockContactDatabaseService) CreateContact(ctx context.Context, name, number string) (*models.Contact, error) {
	args := m.Called(ctx, name, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contact), args.Error(1)
}

func (m *mockContactDatabaseService) GetContactByNumber(ctx context.Context, number string) (*models.Contact, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contact), args.Error(1)
}

func (m *mockContactDatabaseService) UpdateCommandState(ctx context.Context, contactID int64, command *string) error {
	args := m.Called(ctx, contactID, command)
	return args.Error(0)
}

func TestContactService_Resolve(t *testing.T) {
	ctx := context.Background()
	waContact := &types.Contact{ID: anaChatID, Number: anaNumber, PushName: "Ana P"}

	t.Run("uses fetched profile picture", func(t *testing.T) {
		db := &mockContactDatabaseService{}
		session := newMockSession(1)
		session.On("GetProfilePicURL", ctx, anaChatID).Return("https://pics.example/ana.jpg", nil)
		expected := models.ContactData{Name: "Ana P", Number: anaNumber, ProfilePicURL: "https://pics.example/ana.jpg"}
		db.On("UpsertContact", ctx, expected).Return(&models.Contact{ID: 5, Number: anaNumber}, nil)

		cs := NewContactService(db, "/default.png", quietLogger(), false)
		contact, err := cs.Resolve(ctx, session, waContact)

		require.NoError(t, err)
		assert.Equal(t, int64(5), contact.ID)
		db.AssertExpectations(t)
	})

	t.Run("falls back to default picture", func(t *testing.T) {
		db := &mockContactDatabaseService{}
		session := newMockSession(1)
		session.On("GetProfilePicURL", ctx, anaChatID).Return("", errors.New("no picture"))
		expected := models.ContactData{Name: "Ana P", Number: anaNumber, ProfilePicURL: "/default.png"}
		db.On("UpsertContact", ctx, expected).Return(&models.Contact{ID: 5}, nil)

		cs := NewContactService(db, "/default.png", quietLogger(), false)
		_, err := cs.Resolve(ctx, session, waContact)

		require.NoError(t, err)
		db.AssertExpectations(t)
	})

	t.Run("database failure propagates", func(t *testing.T) {
		db := &mockContactDatabaseService{}
		session := newMockSession(1)
		session.On("GetProfilePicURL", ctx, anaChatID).Return("", nil)
		dbErr := apperrors.NewDatabaseError("upsert contact", errors.New("disk full"))
		db.On("UpsertContact", ctx, mock.Anything).Return(nil, dbErr)

		cs := NewContactService(db, "/default.png", quietLogger(), false)
		_, err := cs.Resolve(ctx, session, waContact)

		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("nil contact", func(t *testing.T) {
		cs := NewContactService(&mockContactDatabaseService{}, "", quietLogger(), false)
		_, err := cs.Resolve(ctx, newMockSession(1), nil)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
	})
}

func TestContactService_SetCommandState(t *testing.T) {
	ctx := context.Background()
	db := &mockContactDatabaseService{}
	cs := NewContactService(db, "", quietLogger(), false)
	contact := &models.Contact{ID: 3}

	db.On("UpdateCommandState", ctx, int64(3), mock.MatchedBy(func(s *string) bool {
		return s != nil && *s == "foo.1"
	})).Return(nil).Once()
	require.NoError(t, cs.SetCommandState(ctx, contact, "foo.1"))
	assert.Equal(t, models.CommandPath("foo.1"), contact.CommandState())

	db.On("UpdateCommandState", ctx, int64(3), (*string)(nil)).Return(nil).Once()
	require.NoError(t, cs.SetCommandState(ctx, contact, ""))
	assert.Nil(t, contact.CommandBot)

	db.On("UpdateCommandState", ctx, int64(3), mock.Anything).Return(errors.New("locked")).Once()
	assert.Error(t, cs.SetCommandState(ctx, contact, "bar"))
	assert.Nil(t, contact.CommandBot)
}

func TestContactService_CreateFromCard(t *testing.T) {
	ctx := context.Background()

	t.Run("new contact", func(t *testing.T) {
		db := &mockContactDatabaseService{}
		db.On("CreateContact", ctx, "Carlos", "5511").Return(&models.Contact{ID: 1, Name: "Carlos"}, nil)
		contact, err := NewContactService(db, "", quietLogger(), false).CreateFromCard(ctx, "Carlos", "5511")
		require.NoError(t, err)
		assert.Equal(t, int64(1), contact.ID)
	})

	t.Run("duplicate returns stored contact", func(t *testing.T) {
		db := &mockContactDatabaseService{}
		db.On("CreateContact", ctx, "Carlos", "5511").
			Return(nil, fmt.Errorf("create contact 5511: %w", apperrors.ErrDuplicateContact))
		db.On("GetContactByNumber", ctx, "5511").Return(&models.Contact{ID: 9, Name: "Old"}, nil)
		contact, err := NewContactService(db, "", quietLogger(), false).CreateFromCard(ctx, "Carlos", "5511")
		require.NoError(t, err)
		assert.Equal(t, int64(9), contact.ID)
	})

	t.Run("other failures propagate", func(t *testing.T) {
		db := &mockContactDatabaseService{}
		db.On("CreateContact", ctx, "Carlos", "5511").Return(nil, errors.New("boom"))
		_, err := NewContactService(db, "", quietLogger(), false).CreateFromCard(ctx, "Carlos", "5511")
		assert.Error(t, err)
		db.AssertNotCalled(t, "GetContactByNumber", mock.Anything, mock.Anything)
	})
}
