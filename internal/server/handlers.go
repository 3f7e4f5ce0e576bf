package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/rcp-pseudonymizer/internal/pseudonym"
	"github.com/raaihank/rcp-pseudonymizer/internal/redact"
	"github.com/raaihank/rcp-pseudonymizer/internal/websocket"
	"go.uber.org/zap"
)

const maxBodyBytes = 10 << 20

// SpanRequest is one span of a pseudonymize call
type SpanRequest struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// PseudonymizeRequest resolves spans in order
type PseudonymizeRequest struct {
	Document string        `json:"document,omitempty"`
	Spans    []SpanRequest `json:"spans"`
}

// PseudonymizeResponse holds one substitute per requested span, in order
type PseudonymizeResponse struct {
	SessionID   string   `json:"session_id"`
	Substitutes []string `json:"substitutes"`
}

// RedactRequest is one page of plain text
type RedactRequest struct {
	Document string `json:"document,omitempty"`
	Page     int    `json:"page"`
	Text     string `json:"text"`
}

// RedactResponse is the rewritten page and its report
type RedactResponse struct {
	SessionID string             `json:"session_id"`
	Text      string             `json:"text"`
	Report    *redact.PageReport `json:"report"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// sessionError maps registry and session errors to a status code
func (s *Server) sessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, pseudonym.ErrSessionClosed):
		writeError(w, http.StatusNotFound, ErrSessionNotFound.Error())
	case errors.Is(err, ErrTooManySessions):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":            "rcp-pseudonymizer",
		"version":         Version,
		"locale":          s.config.Pseudonym.Locale,
		"min_offset_days": s.config.Pseudonym.MinOffsetDays,
		"max_offset_days": s.config.Pseudonym.MaxOffsetDays,
		"open_sessions":   s.registry.Len(),
		"max_sessions":    s.config.Server.MaxSessions,
		"shared_store":    s.config.Cache.Enabled,
		"audit_sink":      s.config.Audit.Sink,
		"uptime":          time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.registry.Open()
	if err != nil {
		s.sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": session.ID()})
}

func (s *Server) handlePseudonymize(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, err := s.registry.Get(id)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}

	var req PseudonymizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit := s.config.Server.MaxSpansPerRequest; limit > 0 && len(req.Spans) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("too many spans: %d (max %d)", len(req.Spans), limit))
		return
	}

	start := time.Now()
	ctx := pseudonym.WithDocument(r.Context(), req.Document)
	resp := PseudonymizeResponse{SessionID: id, Substitutes: make([]string, len(req.Spans))}
	counts := make(map[string]int)
	passthrough := 0

	for i, span := range req.Spans {
		category := pseudonym.ParseLabel(span.Label)
		out, err := session.Pseudonymize(ctx, span.Text, category)
		if err != nil {
			s.sessionError(w, r, err)
			return
		}
		resp.Substitutes[i] = out
		if category == pseudonym.CategoryOther {
			passthrough++
		} else {
			counts[string(category)]++
		}
	}

	s.broadcast(websocket.EventTypeSpansResolved, getRequestID(r.Context()), websocket.SpansResolvedEvent{
		SessionID:    id,
		Spans:        len(req.Spans),
		Passthrough:  passthrough,
		PerCategory:  counts,
		ProcessingMS: float64(time.Since(start).Microseconds()) / 1e3,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, err := s.registry.Get(id)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}

	var req RedactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	ctx := pseudonym.WithDocument(r.Context(), req.Document)
	text, report, err := redact.RedactText(ctx, session, req.Page, req.Text, s.logger.Logger, s.recognizers...)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}

	counts := make(map[string]int, len(report.PerCategory))
	for c, n := range report.PerCategory {
		counts[string(c)] = n
	}
	s.broadcast(websocket.EventTypeSpansResolved, getRequestID(r.Context()), websocket.SpansResolvedEvent{
		SessionID:    id,
		Spans:        report.Spans,
		Passthrough:  report.Passthrough,
		PerCategory:  counts,
		ProcessingMS: float64(time.Since(start).Microseconds()) / 1e3,
	})
	writeJSON(w, http.StatusOK, RedactResponse{SessionID: id, Text: text, Report: report})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, err := s.registry.Get(id)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}
	diags := session.Diagnostics()
	if diags == nil {
		diags = []pseudonym.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":  id,
		"diagnostics": diags,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, err := s.registry.Get(id)
	if err != nil {
		s.sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Stats())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	result, err := s.registry.Close(r.Context(), mux.Vars(r)["id"])
	if err != nil && result == nil {
		s.sessionError(w, r, err)
		return
	}
	// The session is closed even when the audit flush failed
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

func (s *Server) broadcast(t websocket.EventType, requestID string, data interface{}) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.BroadcastEvent(websocket.Event{Type: t, RequestID: requestID, Data: data})
}
