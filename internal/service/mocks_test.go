package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"ticketflow/internal/constants"
	"ticketflow/internal/database"
	"ticketflow/internal/metrics"
	"ticketflow/internal/models"
	"ticketflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockSession is a channel session double. Sends are recorded and answered
// with fresh message ids; lookups go through testify expectations.
type mockSession struct {
	mock.Mock
	id   int64
	name string

	mu     sync.Mutex
	sent   []sentMessage
	nextID int64
	// sendErr makes every send fail when set.
	sendErr error
}

type sentMessage struct {
	ChatID  string
	Text    string
	Media   *types.Media
	Caption string
}

func newMockSession(channelID int64) *mockSession {
	return &mockSession{id: channelID, name: "default"}
}

func (m *mockSession) ChannelID() int64 { return m.id }

func (m *mockSession) Name() string { return m.name }

func (m *mockSession) SendText(ctx context.Context, chatID, text string) (*types.Message, error) {
	return m.record(sentMessage{ChatID: chatID, Text: text}, types.MessageTypeChat, text)
}

func (m *mockSession) SendMedia(ctx context.Context, chatID string, media *types.Media, caption string) (*types.Message, error) {
	return m.record(sentMessage{ChatID: chatID, Media: media, Caption: caption}, types.MessageTypeImage, caption)
}

func (m *mockSession) record(s sentMessage, msgType, body string) (*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, s)
	m.nextID++
	id := m.nextID
	return &types.Message{
		ID:     fmt.Sprintf("sent-%d", id),
		To:     s.ChatID,
		FromMe: true,
		Type:   msgType,
		Body:   body,
	}, nil
}

func (m *mockSession) Sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *mockSession) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockSession) GetContact(ctx context.Context, contactID string) (*types.Contact, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Contact), args.Error(1)
}

func (m *mockSession) GetProfilePicURL(ctx context.Context, contactID string) (string, error) {
	args := m.Called(ctx, contactID)
	return args.String(0), args.Error(1)
}

func (m *mockSession) GetChat(ctx context.Context, chatID string) (*types.Chat, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Chat), args.Error(1)
}

func (m *mockSession) GetQuotedMessage(ctx context.Context, messageID string) (*types.Message, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Message), args.Error(1)
}

func (m *mockSession) DownloadMedia(ctx context.Context, messageID string) (*types.Media, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Media), args.Error(1)
}

// expectContact makes the session know a private contact and its chat.
func (m *mockSession) expectContact(number, name string, unread int) {
	chatID := number + types.UserSuffix
	m.On("GetContact", mock.Anything, chatID).Return(&types.Contact{ID: chatID, Number: number, Name: name}, nil)
	m.On("GetProfilePicURL", mock.Anything, chatID).Return("https://pics.example/"+number+".jpg", nil)
	m.On("GetChat", mock.Anything, chatID).Return(&types.Chat{ID: chatID, UnreadCount: unread}, nil)
}

// recordingPublisher keeps every real-time frame it is asked to publish.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	tickets  []*models.Ticket
}

type publishedMessage struct {
	TicketID int64
	Action   string
	Message  models.Message
}

func (p *recordingPublisher) EmitMessage(ticketID int64, action string, msg *models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{TicketID: ticketID, Action: action, Message: *msg})
}

func (p *recordingPublisher) EmitTicket(ticket *models.Ticket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *ticket
	p.tickets = append(p.tickets, &copied)
}

func (p *recordingPublisher) Messages() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

func (p *recordingPublisher) Tickets() []*models.Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.Ticket, len(p.tickets))
	copy(out, p.tickets)
	return out
}

// pipeline is a listener over a real SQLite store.
type pipeline struct {
	db        *database.Database
	listener  *Listener
	session   *mockSession
	publisher *recordingPublisher
	registry  *metrics.Registry
	channel   *models.Channel
	cfg       models.Config
}

func testConfig(t *testing.T) models.Config {
	return models.Config{
		Media: models.MediaConfig{PublicDir: t.TempDir()},
		Routing: models.RoutingConfig{
			GreetingDebounceMs:    30,
			QueuePromptDebounceMs: 60,
			AckDelayMs:            1,
			ReopenWindowMinutes:   constants.DefaultReopenWindowMinutes,
			DefaultProfilePic:     constants.DefaultProfilePic,
			CallNotice:            constants.DefaultCallNotice,
			AttachmentCaption:     constants.DefaultAttachmentCaption,
			MapLanguage:           constants.DefaultMapLanguage,
		},
		Retry: models.RetryConfig{InitialBackoffMs: 1, MaxBackoffMs: 2, MaxAttempts: 2},
	}
}

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(context.Background(), models.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "ticketflow.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// newPipeline stores a channel with the given queues and bots and returns
// a listener serving it.
func newPipeline(t *testing.T, channel models.Channel, queues []models.Queue, bots []models.BotDefinition) *pipeline {
	t.Helper()
	ctx := context.Background()
	db := setupTestDB(t)

	if channel.SessionName == "" {
		channel.SessionName = "default"
	}
	channelID, err := db.SaveChannel(ctx, &channel)
	require.NoError(t, err)
	for i := range queues {
		id, err := db.SaveQueue(ctx, &queues[i])
		require.NoError(t, err)
		require.NoError(t, db.LinkQueue(ctx, channelID, id))
	}
	for i := range bots {
		require.NoError(t, db.SaveBot(ctx, &bots[i]))
	}

	stored, err := db.GetChannel(ctx, channelID)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	p := &pipeline{
		db:        db,
		session:   newMockSession(channelID),
		publisher: &recordingPublisher{},
		registry:  metrics.NewRegistry(),
		channel:   stored,
		cfg:       testConfig(t),
	}
	p.listener = NewListener(db, p.publisher, p.cfg, p.registry, logger, false)
	t.Cleanup(p.listener.Close)
	return p
}

func (p *pipeline) setSetting(t *testing.T, key, value string) {
	t.Helper()
	require.NoError(t, p.db.SaveSetting(context.Background(), models.Setting{Key: key, Value: value}))
}

func (p *pipeline) contact(t *testing.T, number string) *models.Contact {
	t.Helper()
	c, err := p.db.GetContactByNumber(context.Background(), number)
	require.NoError(t, err)
	return c
}

func (p *pipeline) activeTicket(t *testing.T, number string) *models.Ticket {
	t.Helper()
	c := p.contact(t, number)
	require.NotNil(t, c)
	ticket, err := p.db.FindActiveTicket(context.Background(), c.ID, p.channel.ID)
	require.NoError(t, err)
	return ticket
}

func int64Ptr(v int64) *int64 { return &v }
