package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ticketflow/internal/constants"
	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/metrics"
	"ticketflow/internal/middleware"
	"ticketflow/internal/models"
	"ticketflow/internal/tracing"
	"ticketflow/pkg/whatsapp"
	"ticketflow/pkg/whatsapp/types"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

var errBodyTooLarge = errors.New("request body too large")

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	cfg      *models.Config
	webhook  types.WebhookHandler
	realtime http.Handler
	health   HealthChecker
	registry *metrics.Registry
	server   *http.Server
}

func NewServer(cfg *models.Config, webhook types.WebhookHandler, realtime http.Handler, health HealthChecker, registry *metrics.Registry, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		cfg:      cfg,
		webhook:  webhook,
		realtime: realtime,
		health:   health,
		registry: registry,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// The WebSocket upgrade hijacks the connection, so it bypasses the
	// response wrapping middleware.
	s.router.Handle("/ws", s.realtime).Methods(http.MethodGet)

	api := s.router.NewRoute().Subrouter()
	api.Use(middleware.Observability(s.logger, s.registry))
	api.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	api.HandleFunc("/webhook/whatsapp", s.handleWhatsAppWebhook()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.health.Ping(ctx); err != nil {
			s.logger.WithError(err).Warn("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": Version})
	}
}

func (s *Server) handleWhatsAppWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.WithField("request_id", tracing.GetRequestID(r.Context()))

		body, err := verifySignature(r, s.cfg.Server.WebhookSecret, constants.MaxWebhookBodyBytes)
		if errors.Is(err, errBodyTooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		if err != nil {
			logger.WithError(err).Warn("Rejected webhook request")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var event types.WebhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
		if event.Event == "" || event.Session == "" {
			http.Error(w, "Missing event or session", http.StatusBadRequest)
			return
		}

		s.registry.IncrementCounter(metrics.WebhookRequests, map[string]string{"event": event.Event}, "Webhook events received")

		err = s.webhook.Handle(r.Context(), &event)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		case errors.Is(err, whatsapp.ErrNoHandler):
			logger.WithFields(logrus.Fields{
				"event":   event.Event,
				"session": event.Session,
			}).Debug("Ignoring webhook event without handler")
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		case apperrors.HasCode(err, apperrors.ErrCodeInvalidInput):
			logger.WithError(err).Warn("Invalid webhook payload")
			http.Error(w, "Invalid event payload", http.StatusBadRequest)
		default:
			logger.WithError(err).Error("Failed to handle webhook event")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}
