package websocket

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type received struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

func startHub(t *testing.T, config *HubConfig) (*Hub, string) {
	t.Helper()
	hub := NewHub(config, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string, header http.Header) *websocket.Conn {
	t.Helper()
	before := hub.ActiveConnections()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ActiveConnections() > before }, time.Second, 5*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev received
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHubBroadcast(t *testing.T) {
	hub, url := startHub(t, &HubConfig{})
	conn := dial(t, hub, url, nil)

	hub.BroadcastEvent(Event{
		Type: EventTypeSessionOpened,
		Data: SessionEvent{SessionID: "s-1", OpenSessions: 1},
	})

	ev := readEvent(t, conn)
	assert.Equal(t, string(EventTypeSessionOpened), ev.Type)
	assert.Equal(t, "s-1", ev.Data["session_id"])
	assert.EqualValues(t, 1, ev.Data["open_sessions"])

	stats := hub.GetStats()
	assert.EqualValues(t, 1, stats.ActiveConnections)
	assert.EqualValues(t, 1, stats.TotalConnections)
}

func TestHubConfiguredEvents(t *testing.T) {
	hub, url := startHub(t, &HubConfig{Events: []EventType{EventTypeSessionClosed}})
	conn := dial(t, hub, url, nil)

	hub.BroadcastEvent(Event{Type: EventTypeSessionOpened, Data: SessionEvent{SessionID: "s-1"}})
	hub.BroadcastEvent(Event{Type: EventTypeSessionClosed, Data: SessionEvent{SessionID: "s-1", Unparsed: 2}})

	ev := readEvent(t, conn)
	assert.Equal(t, string(EventTypeSessionClosed), ev.Type)
	assert.EqualValues(t, 2, ev.Data["unparsed"])
}

func TestHubSubscription(t *testing.T) {
	hub, url := startHub(t, &HubConfig{})
	conn := dial(t, hub, url, nil)

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type: "subscribe",
		Data: map[string]interface{}{
			"events":      []string{string(EventTypeDateUnparsed)},
			"session_ids": []string{"s-1"},
		},
	}))
	assert.Equal(t, "subscribed", readEvent(t, conn).Type)

	hub.BroadcastEvent(Event{Type: EventTypeSessionOpened, Data: SessionEvent{SessionID: "s-1"}})
	hub.BroadcastEvent(Event{Type: EventTypeDateUnparsed, Data: DateUnparsedEvent{SessionID: "s-2"}})
	hub.BroadcastEvent(Event{Type: EventTypeDateUnparsed, Data: DateUnparsedEvent{SessionID: "s-1"}})

	ev := readEvent(t, conn)
	assert.Equal(t, string(EventTypeDateUnparsed), ev.Type)
	assert.Equal(t, "s-1", ev.Data["session_id"])
}

func TestHubPing(t *testing.T) {
	hub, url := startHub(t, &HubConfig{})
	conn := dial(t, hub, url, nil)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	ev := readEvent(t, conn)
	assert.Equal(t, string(EventTypePong), ev.Type)
	assert.Equal(t, "pong", ev.Data["message"])
}

func TestHubConnectionEvents(t *testing.T) {
	hub, url := startHub(t, &HubConfig{})
	first := dial(t, hub, url, nil)
	dial(t, hub, url, nil)

	ev := readEvent(t, first)
	assert.Equal(t, string(EventTypeConnection), ev.Type)
	assert.Equal(t, "connected", ev.Data["action"])
}

func TestHubBasicAuth(t *testing.T) {
	hub, url := startHub(t, &HubConfig{Username: "ops", Password: "s3cret"})

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	wrong := http.Header{"Authorization": {"Basic " + base64.StdEncoding.EncodeToString([]byte("ops:nope"))}}
	_, resp, err = websocket.DefaultDialer.Dial(url, wrong)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	good := http.Header{"Authorization": {"Basic " + base64.StdEncoding.EncodeToString([]byte("ops:s3cret"))}}
	dial(t, hub, url, good)
}

func TestHubOriginCheck(t *testing.T) {
	hub, url := startHub(t, &HubConfig{AllowedOrigins: []string{"https://ops.example"}})

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://elsewhere.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	dial(t, hub, url, http.Header{"Origin": {"https://ops.example"}})
}

func TestHubMaxConnections(t *testing.T) {
	hub, url := startHub(t, &HubConfig{MaxConnections: 1})
	dial(t, hub, url, nil)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(&HubConfig{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()
	conn := dial(t, hub, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)

	cancel()
	<-stopped

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ActiveConnections())
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9:5555", clientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", clientIP(r))

	r.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.1")
	assert.Equal(t, "192.0.2.1", clientIP(r))
}
