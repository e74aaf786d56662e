package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ticketflow/internal/metrics"
	"ticketflow/internal/models"
	"ticketflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// BotDatabaseService defines the database operations needed by BotService
type BotDatabaseService interface {
	ListBots(ctx context.Context) ([]models.BotDefinition, error)
}

// BotOutcome tells what Dispatch did with a message.
type BotOutcome int

const (
	// BotNoCatalog means no definitions are configured.
	BotNoCatalog BotOutcome = iota
	BotMatched
	// BotInFlow means the contact already has a command state and the
	// message matched nothing; the contact is left alone.
	BotInFlow
	BotMenuSent
)

func (o BotOutcome) String() string {
	switch o {
	case BotNoCatalog:
		return "no_catalog"
	case BotMatched:
		return "matched"
	case BotInFlow:
		return "in_flow"
	case BotMenuSent:
		return "menu_sent"
	default:
		return "unknown"
	}
}

// BotService matches incoming text against the bot catalog.
type BotService struct {
	db            BotDatabaseService
	contacts      *ContactService
	tickets       *TicketService
	outbound      *Outbound
	debouncer     *Debouncer
	walker        *MenuWalker
	registry      *metrics.Registry
	greetingDelay time.Duration
	now           func() time.Time
	logger        *logrus.Logger
}

func NewBotService(db BotDatabaseService, contacts *ContactService, tickets *TicketService, outbound *Outbound,
	debouncer *Debouncer, walker *MenuWalker, registry *metrics.Registry, greetingDelay time.Duration, logger *logrus.Logger) *BotService {
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &BotService{
		db:            db,
		contacts:      contacts,
		tickets:       tickets,
		outbound:      outbound,
		debouncer:     debouncer,
		walker:        walker,
		registry:      registry,
		greetingDelay: greetingDelay,
		now:           time.Now,
		logger:        logger,
	}
}

// Match finds the definition answering input at state. The sub-menu token
// state.input is tried before input alone.
func Match(bots []models.BotDefinition, state models.CommandPath, input string) (*models.BotDefinition, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, false
	}
	if !state.IsEmpty() {
		if bot, ok := FindBot(bots, state.Child(input)); ok {
			return bot, true
		}
	}
	return FindBot(bots, models.CommandPath(input))
}

// Dispatch runs the bot catalog for msg. A match records the command
// state, applies the definition and sends its reply. Without a match a
// contact with no command state gets the channel greeting, debounced per
// ticket, followed by the composed menu walked in the background.
func (bs *BotService) Dispatch(ctx context.Context, session types.Session, channel *models.Channel, msg *types.Message, ticket *models.Ticket, contact *models.Contact) (BotOutcome, error) {
	bots, err := bs.db.ListBots(ctx)
	if err != nil {
		return BotNoCatalog, fmt.Errorf("failed to list bots: %w", err)
	}
	if len(bots) == 0 {
		return BotNoCatalog, nil
	}

	state := contact.CommandState()
	if bot, ok := Match(bots, state, msg.Body); ok {
		return BotMatched, bs.apply(ctx, session, bots, bot, ticket, contact)
	}
	if !state.IsEmpty() {
		return BotInFlow, nil
	}

	bs.sendGreeting(ctx, session, channel, ticket, contact)
	items := ComposeMenu(bots)
	bs.walker.Start(ticket.ID, items, func(ctx context.Context, item MenuItem) error {
		return bs.outbound.SendContent(ctx, session, ticket, contact, item.Content)
	})
	return BotMenuSent, nil
}

func (bs *BotService) apply(ctx context.Context, session types.Session, bots []models.BotDefinition, bot *models.BotDefinition, ticket *models.Ticket, contact *models.Contact) error {
	bs.registry.IncrementCounter(metrics.BotMatches, map[string]string{
		"command_type": strconv.Itoa(int(bot.CommandType)),
	}, "Bot definitions matched")

	if err := bs.contacts.SetCommandState(ctx, contact, bot.Path()); err != nil {
		return err
	}

	body := bot.ShowMessage
	switch bot.CommandType {
	case models.CommandTypeInfo, models.CommandTypeQueue:
		if bot.QueueID != nil {
			updated, err := bs.tickets.SetQueue(ctx, ticket.ID, *bot.QueueID)
			if err != nil {
				return err
			}
			ticket.QueueID = updated.QueueID
		}
	case models.CommandTypeMenu:
		body = RenderSubMenu(*bot, bots)
	case models.CommandTypeAgent:
		if bot.UserID != nil {
			updated, err := bs.tickets.AssignAgent(ctx, ticket.ID, *bot.UserID)
			if err != nil {
				return err
			}
			ticket.UserID = updated.UserID
		}
	default:
		bs.logger.WithFields(logrus.Fields{
			"command":      bot.CommandBot,
			"command_type": bot.CommandType,
		}).Warn("Unknown bot command type")
	}

	if bot.CommandType == models.CommandTypeInfo && bot.HasAttachment() {
		return bs.outbound.SendContent(ctx, session, ticket, contact, bot.Attachment)
	}
	return bs.outbound.SendText(ctx, session, ticket, contact, formatBody(body, contact, bs.now()))
}

func (bs *BotService) sendGreeting(ctx context.Context, session types.Session, channel *models.Channel, ticket *models.Ticket, contact *models.Contact) {
	body := formatBody(channel.GreetingMessage+"\n", contact, bs.now())
	sendCtx := context.WithoutCancel(ctx)

	bs.debouncer.Debounce(ticketKey(ticket.ID), bs.greetingDelay, func() {
		if err := bs.outbound.SendText(sendCtx, session, ticket, contact, body); err != nil {
			bs.logger.WithField("ticket_id", ticket.ID).WithError(err).Error("Failed to send greeting")
		}
	})
}
