// Package websocket streams live session events to operators. Payloads are
// counts and session ids only.
package websocket

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HubConfig contains configuration for the WebSocket hub
type HubConfig struct {
	// Events lists the event types broadcast; empty means all
	Events          []EventType
	MaxConnections  int
	AllowedOrigins  []string
	Username        string
	Password        string
	ReadBufferSize  int
	WriteBufferSize int
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageSize  int64
}

func (c *HubConfig) withDefaults() *HubConfig {
	out := *c
	if out.PongTimeout <= 0 {
		out.PongTimeout = 60 * time.Second
	}
	if out.PingInterval <= 0 || out.PingInterval >= out.PongTimeout {
		out.PingInterval = (out.PongTimeout * 9) / 10
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 10 * time.Second
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = 512
	}
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = 1024
	}
	if out.WriteBufferSize <= 0 {
		out.WriteBufferSize = 1024
	}
	return &out
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	broadcast  chan Event
	register   chan *Client
	unregister chan *Client

	config   *HubConfig
	enabled  map[EventType]bool
	upgrader websocket.Upgrader
	logger   *zap.Logger

	// done is closed when Run returns
	done chan struct{}

	mu    sync.RWMutex
	stats *HubStats
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalMessages      int64     `json:"total_messages"`
	TotalBroadcasts    int64     `json:"total_broadcasts"`
	DroppedEvents      int64     `json:"dropped_events"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastBroadcastTime  time.Time `json:"last_broadcast_time"`
}

// NewHub creates a new WebSocket hub
func NewHub(config *HubConfig, logger *zap.Logger) *Hub {
	cfg := config.withDefaults()
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		config:     cfg,
		logger:     logger,
		stats:      &HubStats{},
	}

	if len(cfg.Events) > 0 {
		h.enabled = make(map[EventType]bool, len(cfg.Events))
		for _, e := range cfg.Events {
			h.enabled[e] = true
		}
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run handles registration and broadcasting until ctx is done, then
// disconnects every client
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket hub")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			close(h.done)
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event, nil)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ActiveConnections = int64(len(h.clients))
	h.stats.LastConnectionTime = time.Now()
	active := h.stats.ActiveConnections
	h.mu.Unlock()

	h.logger.Info("Client connected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int64("active_connections", active),
	)

	h.broadcastEvent(Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:   "connected",
			ClientID: client.ID,
			Message:  fmt.Sprintf("Client %s connected", client.ID),
		},
	}, client)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.Send)
		h.stats.ActiveConnections = int64(len(h.clients))
	}
	active := h.stats.ActiveConnections
	h.mu.Unlock()

	if !ok {
		return
	}

	h.logger.Info("Client disconnected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int64("active_connections", active),
	)

	h.broadcastEvent(Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:   "disconnected",
			ClientID: client.ID,
			Message:  fmt.Sprintf("Client %s disconnected", client.ID),
		},
	}, nil)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
	}
	h.stats.ActiveConnections = 0
	h.logger.Info("WebSocket hub stopped")
}

// broadcastEvent delivers event to every subscribed client except exclude.
// Clients whose send buffer is full are dropped.
func (h *Hub) broadcastEvent(event Event, exclude *Client) {
	if !h.isEnabled(event.Type) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.TotalBroadcasts++
	h.stats.LastBroadcastTime = time.Now()

	for client := range h.clients {
		if client == exclude || !shouldSendToClient(client, event) {
			continue
		}
		select {
		case client.Send <- event:
			h.stats.TotalMessages++
		default:
			h.logger.Warn("Client send channel full, closing connection",
				zap.String("client_id", client.ID),
			)
			delete(h.clients, client)
			close(client.Send)
			h.stats.ActiveConnections = int64(len(h.clients))
		}
	}
}

// shouldSendToClient applies the client's subscription. Caller holds h.mu.
func shouldSendToClient(client *Client, event Event) bool {
	sub := client.Subscription
	if sub == nil || event.Type == EventTypePong {
		return true
	}

	if len(sub.Events) > 0 {
		subscribed := false
		for _, t := range sub.Events {
			if t == event.Type {
				subscribed = true
				break
			}
		}
		if !subscribed {
			return false
		}
	}

	if len(sub.SessionIDs) > 0 {
		id := sessionOf(event)
		if id == "" {
			return true
		}
		for _, want := range sub.SessionIDs {
			if want == id {
				return true
			}
		}
		return false
	}
	return true
}

func sessionOf(event Event) string {
	switch data := event.Data.(type) {
	case SessionEvent:
		return data.SessionID
	case SpansResolvedEvent:
		return data.SessionID
	case DateUnparsedEvent:
		return data.SessionID
	}
	return ""
}

func (h *Hub) isEnabled(t EventType) bool {
	if h.enabled == nil {
		return true
	}
	return h.enabled[t]
}

// BroadcastEvent queues an event for every connected client. It never
// blocks: when the queue is full the event is dropped.
func (h *Hub) BroadcastEvent(event Event) {
	if !h.isEnabled(event.Type) {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case h.broadcast <- event:
	default:
		h.mu.Lock()
		h.stats.DroppedEvents++
		h.mu.Unlock()
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// HandleWebSocket upgrades the request and registers the client. Basic
// auth is required when a username is configured.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.config.Username != "" && !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="pseudonymizer"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if limit := h.config.MaxConnections; limit > 0 && h.ActiveConnections() >= limit {
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          "client_" + uuid.NewString()[:8],
		Conn:        conn,
		Send:        make(chan Event, 256),
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
		IP:          clientIP(r),
		UserAgent:   r.UserAgent(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.handleClientWrite(client)
	go h.handleClientRead(client)
}

func (h *Hub) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	scheme, data, ok := strings.Cut(auth, " ")
	if !ok || scheme != "Basic" {
		return false
	}
	user, pass, ok := parseCredentials(data)
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.config.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.config.Password)) == 1
	return userOK && passOK
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.config.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	h.logger.Warn("Rejected WebSocket origin", zap.String("origin", origin))
	return false
}

func (h *Hub) handleClientWrite(client *Client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(event); err != nil {
				h.logger.Error("Failed to write WebSocket message",
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) handleClientRead(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.Conn.Close()
	}()

	conn := client.Conn
	conn.SetReadLimit(h.config.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	conn.SetPongHandler(func(string) error {
		client.LastPing = time.Now()
		return conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error",
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
			}
			return
		}
		h.handleClientMessage(client, msg)
	}
}

func (h *Hub) handleClientMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		raw, err := json.Marshal(msg.Data)
		if err != nil {
			return
		}
		var subscription SubscriptionRequest
		if err := json.Unmarshal(raw, &subscription); err != nil {
			h.logger.Debug("Invalid subscription", zap.String("client_id", client.ID), zap.Error(err))
			return
		}

		h.mu.Lock()
		client.Subscription = &subscription
		h.mu.Unlock()

		h.logger.Info("Client subscription updated",
			zap.String("client_id", client.ID),
			zap.Int("events", len(subscription.Events)),
			zap.Int("sessions", len(subscription.SessionIDs)),
		)
		h.reply(client, Event{Type: "subscribed", Timestamp: time.Now(), Data: subscription})

	case "ping":
		h.reply(client, Event{Type: EventTypePong, Timestamp: time.Now(), Data: map[string]string{"message": "pong"}})
	}
}

// reply sends directly to one client unless it is already gone
func (h *Hub) reply(client *Client, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.Send <- event:
	default:
	}
}

// ActiveConnections returns the number of registered clients
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := *h.stats
	stats.ActiveConnections = int64(len(h.clients))
	return stats
}

// clientIP returns the first X-Forwarded-For hop, X-Real-IP or RemoteAddr
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func parseCredentials(data string) (string, string, bool) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}
