package tracing

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type requestIDKey struct{}

// Attribute keys recorded on pipeline spans.
const (
	AttrSession     = attribute.Key("ticketflow.session")
	AttrMessageType = attribute.Key("ticketflow.message.type")
	AttrFromMe      = attribute.Key("ticketflow.message.from_me")
	AttrTicketID    = attribute.Key("ticketflow.ticket.id")
	AttrSkipReason  = attribute.Key("ticketflow.skip_reason")
	AttrBotOutcome  = attribute.Key("ticketflow.bot.outcome")
	AttrAck         = attribute.Key("ticketflow.ack")
)

// GenerateRequestID returns a short random id of the form req_<16 hex>.
func GenerateRequestID() string {
	id := uuid.New()
	return "req_" + strings.ReplaceAll(id.String(), "-", "")[:16]
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID returns the id stored by WithRequestID, or "".
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}
