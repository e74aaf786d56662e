package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ticketflow/pkg/whatsapp/types"
)

// ErrNoHandler is returned for events nobody registered for.
var ErrNoHandler = errors.New("no handler registered")

type webhookHandler struct {
	handlers map[string]types.EventHandler
	mu       sync.RWMutex
}

// NewWebhookHandler creates a dispatcher routing events by session and
// event name.
func NewWebhookHandler() types.WebhookHandler {
	return &webhookHandler{
		handlers: make(map[string]types.EventHandler),
	}
}

func handlerKey(session, eventType string) string {
	return session + "/" + eventType
}

func (wh *webhookHandler) Handle(ctx context.Context, event *types.WebhookEvent) error {
	if event == nil {
		return fmt.Errorf("nil webhook event")
	}

	wh.mu.RLock()
	handler, exists := wh.handlers[handlerKey(event.Session, event.Event)]
	wh.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w for session %q event %q", ErrNoHandler, event.Session, event.Event)
	}

	return handler(ctx, event.Payload)
}

func (wh *webhookHandler) RegisterEventHandler(session, eventType string, handler types.EventHandler) {
	wh.mu.Lock()
	defer wh.mu.Unlock()

	wh.handlers[handlerKey(session, eventType)] = handler
}
