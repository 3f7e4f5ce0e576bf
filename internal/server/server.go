// Package server exposes pseudonymization sessions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/rcp-pseudonymizer/internal/audit"
	"github.com/raaihank/rcp-pseudonymizer/internal/config"
	"github.com/raaihank/rcp-pseudonymizer/internal/logger"
	"github.com/raaihank/rcp-pseudonymizer/internal/pseudonym"
	"github.com/raaihank/rcp-pseudonymizer/internal/redact"
	"github.com/raaihank/rcp-pseudonymizer/internal/websocket"
	"go.uber.org/zap"
)

// Version is reported by /info
const Version = "0.1.0"

// Server represents the HTTP host
type Server struct {
	config      *config.Config
	logger      *logger.Logger
	registry    *Registry
	recognizers []redact.Recognizer
	limiter     *RateLimiter
	router      *mux.Router
	server      *http.Server
	wsHub       *websocket.Hub
	startedAt   time.Time
}

// New creates a server. backend shares mapping state with other processes
// and may be nil; sink receives diagnostics of closed sessions.
func New(cfg *config.Config, log *logger.Logger, backend pseudonym.Backend, sink audit.Sink) (*Server, error) {
	rules, err := redact.NewRuleRecognizer(redact.GetDefaultRules(), cfg.Pseudonym.Rules, log.WithComponent("redact").Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule recognizer: %w", err)
	}

	var hub *websocket.Hub
	if cfg.WebSocket.Enabled {
		events := make([]websocket.EventType, 0, len(cfg.WebSocket.Events))
		for _, e := range cfg.WebSocket.Events {
			events = append(events, websocket.EventType(e))
		}
		hub = websocket.NewHub(&websocket.HubConfig{
			Events:          events,
			MaxConnections:  cfg.WebSocket.MaxConnections,
			AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
			Username:        cfg.WebSocket.Username,
			Password:        cfg.WebSocket.Password,
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			PingInterval:    cfg.WebSocket.PingInterval,
			PongTimeout:     cfg.WebSocket.PongTimeout,
			WriteTimeout:    cfg.WebSocket.WriteTimeout,
			MaxMessageSize:  cfg.WebSocket.MaxMessageSize,
		}, log.WithComponent("websocket").Logger)
	}

	recognizers := []redact.Recognizer{
		redact.NewKnownIdentifiers(cfg.Pseudonym.KnownLocations, ""),
		rules,
	}

	s := &Server{
		config:      cfg,
		logger:      log.WithComponent("server"),
		registry:    NewRegistry(cfg.Pseudonym, cfg.Server.MaxSessions, backend, sink, hub, log.WithComponent("registry")),
		recognizers: recognizers,
		limiter:     NewRateLimiter(cfg.RateLimit),
		router:      mux.NewRouter(),
		wsHub:       hub,
		startedAt:   time.Now(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	if s.wsHub != nil {
		s.router.HandleFunc(s.wsPath(), s.handleWebSocket).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/sessions", s.handleOpenSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleCloseSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/pseudonymize", s.handlePseudonymize).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/redact", s.handleRedact).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/diagnostics", s.handleDiagnostics).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/stats", s.handleStats).Methods(http.MethodGet)
}

func (s *Server) wsPath() string {
	if s.config.WebSocket.Path != "" {
		return s.config.WebSocket.Path
	}
	return "/ws"
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the session registry
func (s *Server) Registry() *Registry {
	return s.registry
}

// Start runs the hub and the limiter cleanup until ctx is done and serves
// HTTP until Stop is called
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting pseudonymization server",
		zap.Int("port", s.config.Server.Port),
		zap.String("locale", s.config.Pseudonym.Locale),
		zap.Int("max_sessions", s.config.Server.MaxSessions),
		zap.Bool("shared_store", s.config.Cache.Enabled),
		zap.String("audit_sink", s.config.Audit.Sink),
	)

	if s.wsHub != nil {
		go s.wsHub.Run(ctx)
	}
	if s.config.RateLimit.Enabled {
		s.limiter.StartCleanupRoutine(ctx, 10*time.Minute, time.Hour)
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server and closes every open session
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping pseudonymization server", zap.Int("open_sessions", s.registry.Len()))
	shutdownErr := s.server.Shutdown(ctx)
	if err := s.registry.CloseAll(ctx); err != nil {
		s.logger.Error("Failed to close sessions", zap.Error(err))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}
	return shutdownErr
}
