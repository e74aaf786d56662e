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

// QueueOutcome tells what Select did with a message.
type QueueOutcome int

const (
	QueueAutoAssigned QueueOutcome = iota
	QueueChosen
	QueuePrompted
)

// QueueService assigns tickets to one of the channel's queues.
type QueueService struct {
	tickets     *TicketService
	outbound    *Outbound
	debouncer   *Debouncer
	registry    *metrics.Registry
	promptDelay time.Duration
	now         func() time.Time
	logger      *logrus.Logger
}

func NewQueueService(tickets *TicketService, outbound *Outbound, debouncer *Debouncer, registry *metrics.Registry, promptDelay time.Duration, logger *logrus.Logger) *QueueService {
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &QueueService{
		tickets:     tickets,
		outbound:    outbound,
		debouncer:   debouncer,
		registry:    registry,
		promptDelay: promptDelay,
		now:         time.Now,
		logger:      logger,
	}
}

// parseQueueIndex reads a 1-based queue number. Surrounding spaces are
// ignored; anything else that is not an index into n queues is rejected.
func parseQueueIndex(input string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

// QueueOptions renders the numbered queue list, one "*n* - name" line per
// queue.
func QueueOptions(queues []models.Queue) string {
	var sb strings.Builder
	for i, q := range queues {
		fmt.Fprintf(&sb, "*%d* - %s\n", i+1, q.Name)
	}
	return sb.String()
}

// Select routes the ticket to a queue. A single queue is assigned without
// asking. Otherwise a valid queue number assigns that queue and sends its
// greeting, and any other text sends the greeting with the numbered list,
// debounced per ticket. The prompt takes over a channel greeting still
// pending for the ticket, so the greeting is sent once.
func (qs *QueueService) Select(ctx context.Context, session types.Session, channel *models.Channel, msg *types.Message, ticket *models.Ticket, contact *models.Contact) (QueueOutcome, error) {
	queues := channel.Queues
	if len(queues) == 1 {
		return QueueAutoAssigned, qs.assign(ctx, ticket, queues[0], "single")
	}

	if i, ok := parseQueueIndex(msg.Body, len(queues)); ok {
		queue := queues[i]
		if err := qs.assign(ctx, ticket, queue, "chosen"); err != nil {
			return QueueChosen, err
		}
		if queue.GreetingMessage == "" {
			return QueueChosen, nil
		}
		body := formatBody(queue.GreetingMessage, contact, qs.now())
		return QueueChosen, qs.outbound.SendText(ctx, session, ticket, contact, body)
	}

	body := formatBody(channel.GreetingMessage+"\n"+QueueOptions(queues), contact, qs.now())
	sendCtx := context.WithoutCancel(ctx)
	qs.debouncer.Debounce(ticketKey(ticket.ID), qs.promptDelay, func() {
		if err := qs.outbound.SendText(sendCtx, session, ticket, contact, body); err != nil {
			qs.logger.WithField("ticket_id", ticket.ID).WithError(err).Error("Failed to send queue prompt")
		}
	})
	return QueuePrompted, nil
}

func (qs *QueueService) assign(ctx context.Context, ticket *models.Ticket, queue models.Queue, mode string) error {
	updated, err := qs.tickets.SetQueue(ctx, ticket.ID, queue.ID)
	if err != nil {
		return err
	}
	ticket.QueueID = updated.QueueID
	qs.registry.IncrementCounter(metrics.QueueAssignments, map[string]string{"mode": mode}, "Tickets assigned to a queue")
	return nil
}
