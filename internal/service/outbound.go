package service

import (
	"context"
	"fmt"
	"strings"

	"ticketflow/internal/constants"
	"ticketflow/internal/metrics"
	"ticketflow/internal/models"
	"ticketflow/pkg/whatsapp/types"
)

// Outbound sends replies to a contact and records them on the ticket.
// Every text and caption it sends starts with the echo marker.
type Outbound struct {
	store             *MessageStore
	registry          *metrics.Registry
	attachmentCaption string
}

func NewOutbound(store *MessageStore, registry *metrics.Registry, attachmentCaption string) *Outbound {
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	return &Outbound{
		store:             store,
		registry:          registry,
		attachmentCaption: attachmentCaption,
	}
}

func withEchoMarker(text string) string {
	if strings.HasPrefix(text, constants.EchoMarker) {
		return text
	}
	return constants.EchoMarker + text
}

// SendText sends text to the contact and stores the sent message.
func (o *Outbound) SendText(ctx context.Context, session types.Session, ticket *models.Ticket, contact *models.Contact, text string) error {
	sent, err := session.SendText(ctx, contact.ChatID(), withEchoMarker(text))
	o.count(session, "text", err)
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return o.record(ctx, session, sent, ticket, contact)
}

// SendMedia sends media with caption and stores the sent message.
func (o *Outbound) SendMedia(ctx context.Context, session types.Session, ticket *models.Ticket, contact *models.Contact, media *types.Media, caption string) error {
	sent, err := session.SendMedia(ctx, contact.ChatID(), media, withEchoMarker(caption))
	o.count(session, "media", err)
	if err != nil {
		return fmt.Errorf("failed to send media: %w", err)
	}
	return o.record(ctx, session, sent, ticket, contact)
}

// SendContent sends content as an attachment when it is a data URI and as
// text otherwise.
func (o *Outbound) SendContent(ctx context.Context, session types.Session, ticket *models.Ticket, contact *models.Contact, content string) error {
	if !isDataURI(content) {
		return o.SendText(ctx, session, ticket, contact, content)
	}

	media, err := parseDataURI(content)
	if err != nil {
		return err
	}
	return o.SendMedia(ctx, session, ticket, contact, media, o.attachmentCaption)
}

func (o *Outbound) record(ctx context.Context, session types.Session, sent *types.Message, ticket *models.Ticket, contact *models.Contact) error {
	if sent == nil || sent.ID == "" {
		return nil
	}
	sent.FromMe = true
	_, err := o.store.Store(ctx, session, sent, ticket, contact)
	return err
}

func (o *Outbound) count(session types.Session, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.registry.IncrementCounter(metrics.OutboundSends, map[string]string{
		"session": session.Name(),
		"kind":    kind,
		"status":  status,
	}, "Outbound channel sends")
}
