package service

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"ticketflow/internal/constants"
	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/metrics"
	"ticketflow/internal/models"
	"ticketflow/internal/privacy"
	"ticketflow/internal/tracing"
	"ticketflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Skip reasons reported in events_skipped_total.
const (
	SkipUnsupportedType = "unsupported_type"
	SkipStatusBroadcast = "status_broadcast"
	SkipGroupMessage    = "group_message"
	SkipEcho            = "echo"
	SkipMediaPending    = "media_pending"
	SkipFarewellEcho    = "farewell_echo"
	SkipClosed          = "closed"
)

var acceptedTypes = map[string]bool{
	types.MessageTypeChat:                 true,
	types.MessageTypeAudio:                true,
	types.MessageTypeCallLog:              true,
	types.MessageTypeVoice:                true,
	types.MessageTypeVideo:                true,
	types.MessageTypeImage:                true,
	types.MessageTypeDocument:             true,
	types.MessageTypeVCard:                true,
	types.MessageTypeSticker:              true,
	types.MessageTypeE2ENotification:      true,
	types.MessageTypeNotificationTemplate: true,
	types.MessageTypeLocation:             true,
}

// DatabaseService is everything the inbound pipeline reads and writes.
type DatabaseService interface {
	ContactDatabaseService
	TicketDatabaseService
	MessageDatabaseService
	BotDatabaseService
	GetChannel(ctx context.Context, id int64) (*models.Channel, error)
	GetSetting(ctx context.Context, key string) (string, error)
}

// Publisher pushes message and ticket changes to real-time subscribers.
type Publisher interface {
	MessagePublisher
	TicketPublisher
}

// Listener is the inbound pipeline of every channel session: it validates
// events, resolves contact and ticket, stores the message and runs the bot
// and queue routing.
type Listener struct {
	db       DatabaseService
	routing  models.RoutingConfig
	registry *metrics.Registry
	logger   *logrus.Logger
	errors   *apperrors.Logger
	verbose  bool

	contacts *ContactService
	tickets  *TicketService
	media    *MediaService
	messages *MessageStore
	outbound *Outbound
	bots     *BotService
	queues   *QueueService

	debouncer *Debouncer
	walker    *MenuWalker

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewListener wires the pipeline services. A nil registry uses the global
// metrics registry.
func NewListener(db DatabaseService, publisher Publisher, cfg models.Config, registry *metrics.Registry, logger *logrus.Logger, verbose bool) *Listener {
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	if logger == nil {
		logger = logrus.New()
	}
	routing := cfg.Routing

	l := &Listener{
		db:        db,
		routing:   routing,
		registry:  registry,
		logger:    logger,
		errors:    apperrors.NewLogger(logger),
		verbose:   verbose,
		debouncer: NewDebouncer(),
		walker:    NewMenuWalker(logger),
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())

	l.contacts = NewContactService(db, routing.DefaultProfilePic, logger, verbose)
	l.tickets = NewTicketService(db, publisher, time.Duration(routing.ReopenWindowMinutes)*time.Minute, logger)
	l.media = NewMediaService(cfg.Media.PublicDir, cfg.Retry, logger)
	l.messages = NewMessageStore(db, l.tickets, publisher, registry, routing.MapLanguage, logger, verbose)
	l.outbound = NewOutbound(l.messages, registry, routing.AttachmentCaption)
	l.bots = NewBotService(db, l.contacts, l.tickets, l.outbound, l.debouncer, l.walker, registry,
		time.Duration(routing.GreetingDebounceMs)*time.Millisecond, logger)
	l.queues = NewQueueService(l.tickets, l.outbound, l.debouncer, registry,
		time.Duration(routing.QueuePromptDebounceMs)*time.Millisecond, logger)
	return l
}

// Bind registers the listener's handlers for the session's webhook events.
// Events are handled on their own goroutine; the webhook call only fails
// when the payload cannot be decoded.
func (l *Listener) Bind(session types.Session, webhook types.WebhookHandler) {
	handleMessage := func(ctx context.Context, payload []byte) error {
		var msg types.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid message payload")
		}
		l.spawn(ctx, func(ctx context.Context) {
			_ = l.HandleMessage(ctx, session, &msg)
		})
		return nil
	}

	webhook.RegisterEventHandler(session.Name(), types.EventMessageCreate, handleMessage)
	webhook.RegisterEventHandler(session.Name(), types.EventMediaUploaded, handleMessage)
	webhook.RegisterEventHandler(session.Name(), types.EventMessageAck, func(ctx context.Context, payload []byte) error {
		var ack types.AckEvent
		if err := json.Unmarshal(payload, &ack); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid ack payload")
		}
		l.spawn(ctx, func(ctx context.Context) {
			_ = l.HandleAck(ctx, &ack)
		})
		return nil
	})
}

// spawn runs fn on a goroutine tracked by Close. fn gets a context that
// keeps the caller's span but is only cancelled by Close.
func (l *Listener) spawn(parent context.Context, fn func(ctx context.Context)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		l.registry.IncrementCounter(metrics.EventsSkipped, map[string]string{"reason": SkipClosed}, "Events skipped")
		return
	}

	ctx := oteltrace.ContextWithSpanContext(l.ctx, oteltrace.SpanContextFromContext(parent))
	if requestID := tracing.GetRequestID(parent); requestID != "" {
		ctx = tracing.WithRequestID(ctx, requestID)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn(ctx)
	}()
}

// Close stops accepting events, waits for running handlers and cancels
// pending greetings, prompts and menu walks.
func (l *Listener) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
	l.walker.Close()
	l.debouncer.Stop()
}

// HandleMessage processes one message event synchronously. Failures are
// recorded on the span, counted, logged and returned; panics are
// recovered the same way.
func (l *Listener) HandleMessage(ctx context.Context, session types.Session, msg *types.Message) (err error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracing.SpanHandleMessage,
		tracing.AttrSession.String(session.Name()),
		tracing.AttrMessageType.String(msg.Type),
		tracing.AttrFromMe.Bool(msg.FromMe))
	defer span.End()

	l.registry.IncrementCounter(metrics.EventsReceived, map[string]string{"type": msg.Type}, "Channel events received")
	defer func() {
		l.registry.RecordTimer(metrics.HandleMessageDuration, time.Since(start), map[string]string{"type": msg.Type})
	}()

	defer func() {
		if r := recover(); r != nil {
			err = apperrors.New(apperrors.ErrCodeInternalError, fmt.Sprintf("panic handling message: %v", r)).
				WithContext("stack", string(debug.Stack()))
		}
		if err != nil {
			l.reportError(ctx, err, "Error handling message", logrus.Fields{
				"message_id": msg.ID,
				"from":       msg.From,
				"type":       msg.Type,
			})
		}
	}()

	reason, err := l.handleMessage(ctx, session, msg)
	if reason != "" {
		l.skip(ctx, reason, msg)
	}
	return err
}

func (l *Listener) skip(ctx context.Context, reason string, msg *types.Message) {
	l.registry.IncrementCounter(metrics.EventsSkipped, map[string]string{"reason": reason}, "Events skipped")
	tracing.AddSpanAttributes(ctx, tracing.AttrSkipReason.String(reason))
	l.logger.WithFields(privacy.Fields(l.verbose, logrus.Fields{
		"message_id": msg.ID,
		"from":       msg.From,
		"type":       msg.Type,
		"reason":     reason,
	})).Debug("Skipping message")
}

// validate returns why msg must be ignored, or "".
func (l *Listener) validate(ctx context.Context, msg *types.Message) (string, error) {
	if msg.From == types.StatusBroadcast {
		return SkipStatusBroadcast, nil
	}
	if !acceptedTypes[msg.Type] {
		return SkipUnsupportedType, nil
	}

	ignoreGroups, err := l.db.GetSetting(ctx, models.SettingIgnoreGroupMessages)
	if err != nil {
		return "", fmt.Errorf("failed to read group setting: %w", err)
	}
	if ignoreGroups == models.SettingEnabled {
		if msg.Type == types.MessageTypeE2ENotification ||
			msg.Type == types.MessageTypeNotificationTemplate ||
			msg.Author != "" {
			return SkipGroupMessage, nil
		}
	}

	if msg.FromMe {
		if strings.HasPrefix(msg.Body, constants.EchoMarker) {
			return SkipEcho, nil
		}
		if !msg.HasMedia &&
			msg.Type != types.MessageTypeLocation &&
			msg.Type != types.MessageTypeChat &&
			msg.Type != types.MessageTypeVCard {
			return SkipMediaPending, nil
		}
	}
	return "", nil
}

func (l *Listener) handleMessage(ctx context.Context, session types.Session, msg *types.Message) (string, error) {
	if reason, err := l.validate(ctx, msg); reason != "" || err != nil {
		return reason, err
	}

	var callSetting string
	senderID := msg.SenderID()
	if !msg.FromMe {
		var err error
		if callSetting, err = l.db.GetSetting(ctx, models.SettingCall); err != nil {
			return "", fmt.Errorf("failed to read call setting: %w", err)
		}
	}

	waContact, err := session.GetContact(ctx, senderID)
	if err != nil {
		return "", fmt.Errorf("failed to get contact: %w", err)
	}
	chat, err := session.GetChat(ctx, msg.ChatID())
	if err != nil {
		return "", fmt.Errorf("failed to get chat: %w", err)
	}

	var groupContact *models.Contact
	if chat.IsGroup {
		waGroup, err := session.GetContact(ctx, msg.ChatID())
		if err != nil {
			return "", fmt.Errorf("failed to get group contact: %w", err)
		}
		if groupContact, err = l.contacts.Resolve(ctx, session, waGroup); err != nil {
			return "", err
		}
	}

	channel, err := l.db.GetChannel(ctx, session.ChannelID())
	if err != nil {
		return "", fmt.Errorf("failed to load channel: %w", err)
	}
	if channel == nil {
		return "", apperrors.NewNotFoundError("channel", fmt.Sprint(session.ChannelID()))
	}

	unread := 0
	if !msg.FromMe {
		unread = chat.UnreadCount
	}

	contact, err := l.contacts.Resolve(ctx, session, waContact)
	if err != nil {
		return "", err
	}

	if unread == 0 && channel.FarewellMessage != "" &&
		formatBody(channel.FarewellMessage, contact, time.Now()) == msg.Body {
		return SkipFarewellEcho, nil
	}

	ticket, err := l.tickets.FindOrCreate(ctx, TicketRequest{
		Contact:        contact,
		ChannelID:      channel.ID,
		UnreadMessages: unread,
		GroupContact:   groupContact,
		Channel:        models.ChannelWhatsApp,
	})
	if err != nil {
		return "", err
	}
	tracing.AddSpanAttributes(ctx, tracing.AttrTicketID.Int64(ticket.ID))

	if !msg.FromMe && l.walker.Cancel(ticket.ID) {
		l.logger.WithField("ticket_id", ticket.ID).Debug("Cancelled running menu walk")
	}

	if err := l.storeInbound(ctx, session, msg, ticket, contact); err != nil {
		return "", err
	}

	// With calls disabled the notice is the only reply; otherwise a call is
	// routed like any other accepted event.
	if msg.Type == types.MessageTypeCallLog && callSetting == models.SettingDisabled {
		return "", l.outbound.SendText(ctx, session, ticket, contact, l.routing.CallNotice)
	}

	if !ticket.HasQueue() && !chat.IsGroup && !msg.FromMe && !ticket.HasAgent() && channel.HasQueues() {
		if err := l.route(ctx, session, channel, msg, ticket, contact); err != nil {
			return "", err
		}
	}

	if msg.Type == types.MessageTypeVCard {
		l.importContactCard(ctx, msg.Body)
	}
	return "", nil
}

func (l *Listener) storeInbound(ctx context.Context, session types.Session, msg *types.Message, ticket *models.Ticket, contact *models.Contact) error {
	if !msg.HasMedia {
		_, err := l.messages.Store(ctx, session, msg, ticket, contact)
		return err
	}

	media, err := l.media.Download(ctx, session, msg.ID)
	if err != nil {
		return err
	}
	result := l.media.Store(media)
	if result.Err != nil {
		tracing.RecordError(ctx, result.Err)
	}
	_, err = l.messages.StoreMedia(ctx, session, msg, ticket, contact, result)
	return err
}

// route runs the bot catalog and then the queue selection. The queue
// selection runs even after a bot match, which only sets a preliminary
// queue.
func (l *Listener) route(ctx context.Context, session types.Session, channel *models.Channel, msg *types.Message, ticket *models.Ticket, contact *models.Contact) error {
	outcome, err := l.bots.Dispatch(ctx, session, channel, msg, ticket, contact)
	if err != nil {
		return err
	}
	tracing.AddSpanAttributes(ctx, tracing.AttrBotOutcome.String(outcome.String()))

	_, err = l.queues.Select(ctx, session, channel, msg, ticket, contact)
	return err
}

// importContactCard stores every number of a shared contact card. Failures
// are logged per number.
func (l *Listener) importContactCard(ctx context.Context, body string) {
	card := parseContactCard(body)
	for _, number := range card.Numbers {
		if _, err := l.contacts.CreateFromCard(ctx, card.Name, number); err != nil {
			l.errors.LogWarn(err, "Failed to import contact card", privacy.Fields(l.verbose, logrus.Fields{"number": number}))
		}
	}
}

// HandleAck stores a delivery acknowledgment after the configured delay,
// giving the message's own insert time to land.
func (l *Listener) HandleAck(ctx context.Context, ack *types.AckEvent) error {
	ctx, span := tracing.StartSpan(ctx, tracing.SpanHandleAck, tracing.AttrAck.Int(ack.Ack))
	defer span.End()

	timer := time.NewTimer(time.Duration(l.routing.AckDelayMs) * time.Millisecond)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
	}

	msg, err := l.messages.UpdateAck(ctx, ack.Message.ID, models.AckStatus(ack.Ack))
	if err != nil {
		l.reportError(ctx, err, "Error handling message ack", logrus.Fields{"message_id": ack.Message.ID})
		return err
	}
	if msg == nil {
		l.logger.WithFields(privacy.Fields(l.verbose, logrus.Fields{"message_id": ack.Message.ID})).Debug("Ack for unknown message")
	}
	return nil
}

// reportError is the top-level error sink of the pipeline.
func (l *Listener) reportError(ctx context.Context, err error, message string, fields logrus.Fields) {
	tracing.RecordError(ctx, err)
	l.registry.IncrementCounter(metrics.HandlerErrors, map[string]string{
		"code": string(apperrors.GetCode(err)),
	}, "Pipeline handler errors")

	fields = privacy.Fields(l.verbose, fields)
	if traceID := tracing.TraceID(ctx); traceID != "" {
		fields["trace_id"] = traceID
	}
	l.errors.LogError(err, message, fields)
}
