package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/raaihank/rcp-pseudonymizer/internal/audit"
	"github.com/raaihank/rcp-pseudonymizer/internal/config"
	"github.com/raaihank/rcp-pseudonymizer/internal/logger"
	"github.com/raaihank/rcp-pseudonymizer/internal/pseudonym"
	"github.com/raaihank/rcp-pseudonymizer/internal/websocket"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound is returned for unknown or already closed sessions
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned by Open when the registry is full
	ErrTooManySessions = errors.New("too many open sessions")
)

// CloseResult reports what happened to a session's leftovers on close
type CloseResult struct {
	SessionID    string `json:"session_id"`
	Unparsed     int    `json:"unparsed"`
	AuditRecords int    `json:"audit_records"`
}

// Registry owns the sessions opened over HTTP. Session parameters are
// captured from config when the registry is built.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*pseudonym.Session
	opened   int64

	params  config.PseudonymConfig
	max     int
	backend pseudonym.Backend
	sink    audit.Sink
	hub     *websocket.Hub
	logger  *logger.Logger
}

// NewRegistry creates a registry. backend and hub may be nil.
func NewRegistry(params config.PseudonymConfig, maxSessions int, backend pseudonym.Backend, sink audit.Sink, hub *websocket.Hub, log *logger.Logger) *Registry {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if params.Seed != 0 {
		log.Warn("Fixed seed configured; HTTP sessions are reproducible and must not be used in production")
	}
	return &Registry{
		sessions: make(map[string]*pseudonym.Session),
		params:   params,
		max:      maxSessions,
		backend:  backend,
		sink:     sink,
		hub:      hub,
		logger:   log,
	}
}

// options builds the parameters of the n-th session. A fixed seed is mixed
// with n so sessions stay reproducible without sharing substitutes.
func (r *Registry) options(n int64) pseudonym.Options {
	opts := pseudonym.DefaultOptions()
	opts.Locale = r.params.Locale
	opts.MinOffsetDays = r.params.MinOffsetDays
	opts.MaxOffsetDays = r.params.MaxOffsetDays
	if r.params.Seed != 0 {
		opts.Source = rand.NewSource(r.params.Seed ^ n)
	}
	opts.Backend = r.backend
	opts.Logger = r.logger.Logger
	opts.OnUnparsed = func(d pseudonym.Diagnostic) {
		r.broadcast(websocket.EventTypeDateUnparsed, websocket.DateUnparsedEvent{SessionID: d.SessionID})
	}
	return opts
}

// Open starts a new session
func (r *Registry) Open() (*pseudonym.Session, error) {
	r.mu.Lock()
	if r.max > 0 && len(r.sessions) >= r.max {
		r.mu.Unlock()
		return nil, ErrTooManySessions
	}

	session, err := pseudonym.Open(r.options(r.opened))
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	r.opened++
	r.sessions[session.ID()] = session
	open := len(r.sessions)
	r.mu.Unlock()

	r.logger.WithSession(session.ID()).Info("Session opened", zap.Int("open_sessions", open))
	r.broadcast(websocket.EventTypeSessionOpened, websocket.SessionEvent{
		SessionID:    session.ID(),
		OpenSessions: open,
	})
	return session, nil
}

// Get returns an open session
func (r *Registry) Get(id string) (*pseudonym.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Close removes a session, flushes its diagnostics to the audit sink and
// discards its mapping state
func (r *Registry) Close(ctx context.Context, id string) (*CloseResult, error) {
	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	open := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}

	log := r.logger.WithSession(id)
	result := &CloseResult{SessionID: id}

	diags := session.Diagnostics()
	result.Unparsed = len(diags)
	var flushErr error
	if len(diags) > 0 {
		records := audit.FromDiagnostics(id, diags)
		if err := r.sink.Write(ctx, records); err != nil {
			log.Error("Failed to write audit records", zap.Int("records", len(records)), zap.Error(err))
			flushErr = fmt.Errorf("failed to write audit records: %w", err)
		} else {
			result.AuditRecords = len(records)
		}
	}

	if err := session.Close(ctx); err != nil {
		log.Warn("Session close reported an error", zap.Error(err))
	}

	log.Info("Session closed",
		zap.Int("unparsed_dates", result.Unparsed),
		zap.Int("open_sessions", open))
	r.broadcast(websocket.EventTypeSessionClosed, websocket.SessionEvent{
		SessionID:    id,
		OpenSessions: open,
		Unparsed:     result.Unparsed,
		AuditRecords: result.AuditRecords,
	})
	return result, flushErr
}

// CloseAll closes every open session, returning the first error
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	var first error
	for _, id := range ids {
		if _, err := r.Close(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) && first == nil {
			first = err
		}
	}
	return first
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) broadcast(t websocket.EventType, data interface{}) {
	if r.hub == nil {
		return
	}
	r.hub.BroadcastEvent(websocket.Event{Type: t, Data: data})
}
