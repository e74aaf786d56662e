// Package realtime pushes message and ticket changes to WebSocket
// subscribers grouped in rooms.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ticketflow/internal/metrics"
	"ticketflow/internal/models"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Frame events and actions.
const (
	EventAppMessage = "appMessage"
	EventTicket     = "ticket"

	ActionCreate = "create"
	ActionUpdate = "update"

	// NotificationRoom receives every ticket update.
	NotificationRoom = "notification"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 5 * time.Second
)

// Frame is one JSON message written to subscribers.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type MessagePayload struct {
	Action  string          `json:"action"`
	Message *models.Message `json:"message"`
}

type TicketPayload struct {
	Action string         `json:"action"`
	Ticket *models.Ticket `json:"ticket"`
}

// Subscription receives encoded frames published to its room until
// Close is called or the hub drops it for falling behind.
type Subscription struct {
	ID     string
	Room   string
	frames chan []byte
	hub    *Hub
	once   sync.Once
}

// Frames returns the channel of encoded frames. It is closed when the
// subscription ends.
func (s *Subscription) Frames() <-chan []byte {
	return s.frames
}

func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub fans frames out to the subscribers of a room.
type Hub struct {
	mu             sync.RWMutex
	rooms          map[string]map[string]*Subscription
	logger         *logrus.Logger
	registry       *metrics.Registry
	originPatterns []string
}

func NewHub(logger *logrus.Logger, registry *metrics.Registry, originPatterns ...string) *Hub {
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	return &Hub{
		rooms:          make(map[string]map[string]*Subscription),
		logger:         logger,
		registry:       registry,
		originPatterns: originPatterns,
	}
}

// TicketRoom is the room of a ticket.
func TicketRoom(ticketID int64) string {
	return strconv.FormatInt(ticketID, 10)
}

// Subscribe joins room.
func (h *Hub) Subscribe(room string) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Room:   room,
		frames: make(chan []byte, subscriberBuffer),
		hub:    h,
	}

	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Subscription)
		h.rooms[room] = members
	}
	members[sub.ID] = sub
	count := h.countLocked()
	h.mu.Unlock()

	h.registry.SetGauge(metrics.RealtimeSubscribers, float64(count), nil, "Open realtime subscriptions")
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	sub.once.Do(func() {
		h.mu.Lock()
		if members, ok := h.rooms[sub.Room]; ok {
			delete(members, sub.ID)
			if len(members) == 0 {
				delete(h.rooms, sub.Room)
			}
		}
		count := h.countLocked()
		h.mu.Unlock()

		close(sub.frames)
		h.registry.SetGauge(metrics.RealtimeSubscribers, float64(count), nil, "Open realtime subscriptions")
	})
}

func (h *Hub) countLocked() int {
	n := 0
	for _, members := range h.rooms {
		n += len(members)
	}
	return n
}

// Publish encodes frame and queues it for every subscriber of room.
// Subscribers whose buffer is full are dropped.
func (h *Hub) Publish(room string, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.WithError(err).WithField("event", frame.Event).Error("Failed to encode realtime frame")
		return
	}

	h.mu.RLock()
	var slow []*Subscription
	for _, sub := range h.rooms[room] {
		select {
		case sub.frames <- data:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.logger.WithFields(logrus.Fields{"room": room, "subscriber": sub.ID}).Warn("Dropping slow realtime subscriber")
		sub.Close()
	}
}

// EmitMessage publishes a message change to the ticket room.
func (h *Hub) EmitMessage(ticketID int64, action string, msg *models.Message) {
	h.Publish(TicketRoom(ticketID), Frame{
		Event: EventAppMessage,
		Data:  MessagePayload{Action: action, Message: msg},
	})
}

// EmitTicket publishes a ticket update to the ticket room and the
// notification room.
func (h *Hub) EmitTicket(ticket *models.Ticket) {
	frame := Frame{Event: EventTicket, Data: TicketPayload{Action: ActionUpdate, Ticket: ticket}}
	h.Publish(TicketRoom(ticket.ID), frame)
	h.Publish(NotificationRoom, frame)
}

// ServeHTTP upgrades the request to a WebSocket joined to the room named
// by the "ticket" query parameter, or the notification room.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	room := NotificationRoom
	if ticket := r.URL.Query().Get("ticket"); ticket != "" {
		id, err := strconv.ParseInt(ticket, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid ticket id", http.StatusBadRequest)
			return
		}
		room = TicketRoom(id)
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	sub := h.Subscribe(room)
	defer sub.Close()

	logger := h.logger.WithFields(logrus.Fields{"room": room, "subscriber": sub.ID})
	logger.Debug("Realtime subscriber connected")

	// Subscribers only listen; CloseRead handles control frames and
	// cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	if err := h.pump(ctx, conn, sub); err != nil {
		logger.WithError(err).Debug("Realtime subscriber disconnected")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) pump(ctx context.Context, conn *websocket.Conn, sub *Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-sub.Frames():
			if !ok {
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
