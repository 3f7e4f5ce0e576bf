package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeSessionOpened is sent when a session is opened
	EventTypeSessionOpened EventType = "session_opened"
	// EventTypeSessionClosed is sent when a session is closed and purged
	EventTypeSessionClosed EventType = "session_closed"
	// EventTypeSpansResolved reports category counts for one request
	EventTypeSpansResolved EventType = "spans_resolved"
	// EventTypeDateUnparsed is sent for each date span left unchanged
	EventTypeDateUnparsed EventType = "date_unparsed"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients. Events never carry
// span text or substitutes.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// SessionEvent is the payload of session_opened and session_closed
type SessionEvent struct {
	SessionID    string `json:"session_id"`
	OpenSessions int    `json:"open_sessions"`
	Unparsed     int    `json:"unparsed,omitempty"`
	AuditRecords int    `json:"audit_records,omitempty"`
}

// SpansResolvedEvent is the payload of spans_resolved
type SpansResolvedEvent struct {
	SessionID    string         `json:"session_id"`
	Spans        int            `json:"spans"`
	Passthrough  int            `json:"passthrough"`
	PerCategory  map[string]int `json:"per_category"`
	ProcessingMS float64        `json:"processing_ms"`
}

// DateUnparsedEvent is the payload of date_unparsed
type DateUnparsedEvent struct {
	SessionID string `json:"session_id"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest restricts the events a client receives. SessionIDs,
// when set, keeps only events of those sessions.
type SubscriptionRequest struct {
	Events     []EventType `json:"events"`
	SessionIDs []string    `json:"session_ids,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
