package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ticketflow/internal/database"
	"ticketflow/internal/metrics"
	"ticketflow/internal/models"
	"ticketflow/internal/realtime"
	"ticketflow/internal/service"
	"ticketflow/pkg/whatsapp"
	"ticketflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey  = "bridge-key"
	testSession = "default"
)

// fakeBridge serves the subset of the bridge API the pipeline uses and
// records every send.
type fakeBridge struct {
	t      *testing.T
	server *httptest.Server

	mu    sync.Mutex
	sent  []types.SendTextRequest
	names map[string]string
}

func newFakeBridge(t *testing.T) *fakeBridge {
	b := &fakeBridge{t: t, names: make(map[string]string)}
	b.server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBridge) setName(chatID, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names[chatID] = name
}

func (b *fakeBridge) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Api-Key") != testAPIKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	switch {
	case r.URL.Path == "/api/sendText":
		var req types.SendTextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.sent = append(b.sent, req)
		id := fmt.Sprintf("true_%s_OUT%d", req.ChatID, len(b.sent))
		b.mu.Unlock()
		b.writeJSON(w, types.Message{ID: id, FromMe: true, To: req.ChatID, Type: types.MessageTypeChat, Body: req.Text})
	case r.URL.Path == "/api/contacts/profile-picture":
		b.writeJSON(w, types.ProfilePicture{})
	case r.URL.Path == "/api/contacts":
		id := q.Get("contactId")
		b.mu.Lock()
		name := b.names[id]
		b.mu.Unlock()
		number, _, _ := strings.Cut(id, "@")
		b.writeJSON(w, types.Contact{ID: id, Number: number, PushName: name, IsGroup: strings.HasSuffix(id, types.GroupSuffix)})
	case r.URL.Path == "/api/chats":
		id := q.Get("chatId")
		b.writeJSON(w, types.Chat{ID: id, IsGroup: strings.HasSuffix(id, types.GroupSuffix)})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *fakeBridge) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		b.t.Errorf("encode response: %v", err)
	}
}

func (b *fakeBridge) Sent() []types.SendTextRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.SendTextRequest, len(b.sent))
	copy(out, b.sent)
	return out
}

// environment is one running pipeline: store, bridge client, listener,
// webhook dispatcher and realtime hub.
type environment struct {
	db       *database.Database
	bridge   *fakeBridge
	webhook  types.WebhookHandler
	hub      *realtime.Hub
	registry *metrics.Registry
	channel  *models.Channel
}

func newEnvironment(t *testing.T, queues []models.Queue, bots []models.BotDefinition) *environment {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(ctx, models.DatabaseConfig{Path: filepath.Join(t.TempDir(), "ticketflow.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	channelID, err := db.SaveChannel(ctx, &models.Channel{
		Name:            "Main line",
		SessionName:     testSession,
		GreetingMessage: "{{greeting}} {{firstName}}!",
	})
	require.NoError(t, err)
	for i := range queues {
		id, err := db.SaveQueue(ctx, &queues[i])
		require.NoError(t, err)
		require.NoError(t, db.LinkQueue(ctx, channelID, id))
	}
	for i := range bots {
		require.NoError(t, db.SaveBot(ctx, &bots[i]))
	}
	channel, err := db.GetChannel(ctx, channelID)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	registry := metrics.NewRegistry()
	hub := realtime.NewHub(logger, registry)

	cfg := models.Config{
		Media: models.MediaConfig{PublicDir: t.TempDir()},
		Routing: models.RoutingConfig{
			GreetingDebounceMs:    20,
			QueuePromptDebounceMs: 40,
			AckDelayMs:            1,
			ReopenWindowMinutes:   120,
			CallNotice:            "calls are disabled",
			AttachmentCaption:     "file",
			MapLanguage:           "en",
		},
		Retry: models.RetryConfig{InitialBackoffMs: 1, MaxBackoffMs: 2, MaxAttempts: 2},
	}
	listener := service.NewListener(db, hub, cfg, registry, logger, false)
	t.Cleanup(listener.Close)

	bridge := newFakeBridge(t)
	client := whatsapp.NewClient(types.ClientConfig{
		BaseURL:     bridge.server.URL,
		APIKey:      testAPIKey,
		SessionName: testSession,
		ChannelID:   channelID,
		Timeout:     2 * time.Second,
	})
	webhook := whatsapp.NewWebhookHandler()
	listener.Bind(client, webhook)

	return &environment{db: db, bridge: bridge, webhook: webhook, hub: hub, registry: registry, channel: channel}
}

// deliver posts an event the way the bridge webhook would.
func (e *environment) deliver(t *testing.T, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, e.webhook.Handle(context.Background(), &types.WebhookEvent{
		Event:   event,
		Session: testSession,
		Payload: data,
	}))
}

var inboundSeq int

func inbound(from, body string) types.Message {
	inboundSeq++
	return types.Message{
		ID:        fmt.Sprintf("false_%s_IN%d", from, inboundSeq),
		From:      from,
		To:        "5511000000000@c.us",
		Type:      types.MessageTypeChat,
		Body:      body,
		Timestamp: time.Now().Unix(),
	}
}

func (e *environment) activeTicket(t *testing.T, number string) *models.Ticket {
	t.Helper()
	ctx := context.Background()
	contact, err := e.db.GetContactByNumber(ctx, number)
	require.NoError(t, err)
	if contact == nil {
		return nil
	}
	ticket, err := e.db.FindActiveTicket(ctx, contact.ID, e.channel.ID)
	require.NoError(t, err)
	return ticket
}
