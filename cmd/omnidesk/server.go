package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"omnidesk/internal/auth"
	"omnidesk/internal/channels"
	"omnidesk/internal/database"
	"omnidesk/internal/middleware"
	"omnidesk/internal/models"
	"omnidesk/internal/realtime"
	"omnidesk/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router        *mux.Router
	cfg           *models.Config
	db            *database.Database
	registry      *channels.Registry
	verifier      *auth.TokenVerifier
	ingest        *service.IngestService
	conversations *service.ConversationService
	gateway       *realtime.Gateway
	logger        *logrus.Logger
	server        *http.Server
}

func NewServer(cfg *models.Config, db *database.Database, registry *channels.Registry, verifier *auth.TokenVerifier, ingest *service.IngestService, conversations *service.ConversationService, gateway *realtime.Gateway, logger *logrus.Logger) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		cfg:           cfg,
		db:            db,
		registry:      registry,
		verifier:      verifier,
		ingest:        ingest,
		conversations: conversations,
		gateway:       gateway,
		logger:        logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	// Health check and metrics
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	// One webhook route pair per configured channel, each with its own
	// channel-tagged observability.
	for _, channel := range s.registry.Channels() {
		connector := s.registry.Get(channel)
		sub := s.router.PathPrefix("/webhooks/" + channel).Subrouter()
		sub.Use(middleware.WebhookObservabilityMiddleware(s.logger, channel))
		sub.HandleFunc("", s.handleWebhookVerification(connector)).Methods(http.MethodGet)
		sub.HandleFunc("", s.handleWebhook(connector)).Methods(http.MethodPost)
	}

	// Authenticated operator API
	api := s.router.PathPrefix("/conversations").Subrouter()
	api.Use(middleware.AuthMiddleware(s.verifier, s.logger))
	api.Use(middleware.IdempotencyMiddleware(s.db, time.Duration(s.cfg.Idempotency.TTLHours)*time.Hour, s.logger))
	api.HandleFunc("/{id}/status", s.handleSetStatus()).Methods(http.MethodPatch)
	api.HandleFunc("/{id}/messages", s.handleSendMessage()).Methods(http.MethodPost)

	// Realtime gateway
	s.router.HandleFunc("/ws", s.gateway.HandleWebSocket).Methods(http.MethodGet)
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
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
