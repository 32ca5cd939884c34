package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thatrasunil/code-connect/config"
	"github.com/thatrasunil/code-connect/session"
	"github.com/thatrasunil/code-connect/store"
	"github.com/thatrasunil/code-connect/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{}
	hub := NewHub()
	engine := session.NewEngine(cfg, store.NewMemoryStore(cfg.Language()), session.NewMemoryPresence(), hub)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, engine, conn)
		go client.WriteLoop()
		client.ReadLoop()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data map[string]interface{}) {
	t.Helper()
	raw, err := types.NewWireMessage(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

// awaitEvent reads frames until the wanted event arrives, skipping others.
func awaitEvent(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		msg := types.WebsocketMessage{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		if msg.Event == event {
			return msg.Data
		}
	}
	t.Fatalf("did not receive %s in time", event)
	return nil
}

func TestJoinAndChatOverWebsocket(t *testing.T) {
	srv := newTestServer(t)

	a := dial(t, srv)
	send(t, a, types.EventJoinRoom, map[string]interface{}{
		"roomId": "R1",
		"user":   map[string]interface{}{"userId": "A", "name": "A"},
	})
	joined := types.RoomJoinedPayload{}
	require.NoError(t, json.Unmarshal(awaitEvent(t, a, types.EventRoomJoined), &joined))
	assert.Equal(t, 1, joined.Users)
	assert.Equal(t, "javascript", joined.Language)

	b := dial(t, srv)
	send(t, b, types.EventJoinRoom, map[string]interface{}{
		"roomId": "R1",
		"user":   map[string]interface{}{"userId": "B", "name": "B"},
	})
	userJoined := types.UserJoinedPayload{}
	require.NoError(t, json.Unmarshal(awaitEvent(t, a, types.EventUserJoined), &userJoined))
	assert.Equal(t, "B", userJoined.UserId)

	send(t, a, types.EventSendMessage, map[string]interface{}{
		"roomId": "R1", "userId": "A", "content": "hi",
	})
	for _, conn := range []*websocket.Conn{a, b} {
		msg := types.Message{}
		require.NoError(t, json.Unmarshal(awaitEvent(t, conn, types.EventNewMessage), &msg))
		assert.Equal(t, "hi", msg.Content)
		assert.Equal(t, "A", msg.UserId)
	}
}

func TestDisconnectBroadcastsUserLeft(t *testing.T) {
	srv := newTestServer(t)

	a := dial(t, srv)
	send(t, a, types.EventJoinRoom, map[string]interface{}{"roomId": "R1", "user": "A"})
	awaitEvent(t, a, types.EventRoomJoined)

	b := dial(t, srv)
	send(t, b, types.EventJoinRoom, map[string]interface{}{"roomId": "R1", "user": "B"})
	awaitEvent(t, b, types.EventRoomJoined)
	awaitEvent(t, a, types.EventUserJoined)

	b.Close()

	left := types.UserLeftPayload{}
	require.NoError(t, json.Unmarshal(awaitEvent(t, a, types.EventUserLeft), &left))
	assert.Equal(t, "B", left.UserId)
	count := types.UserCountPayload{}
	require.NoError(t, json.Unmarshal(awaitEvent(t, a, types.EventUserCount), &count))
	assert.Equal(t, 1, count.Count)
}

func TestCodeChangeNotEchoedToSender(t *testing.T) {
	srv := newTestServer(t)

	a := dial(t, srv)
	send(t, a, types.EventJoinRoom, map[string]interface{}{"roomId": "R1", "user": "A"})
	awaitEvent(t, a, types.EventRoomJoined)
	b := dial(t, srv)
	send(t, b, types.EventJoinRoom, map[string]interface{}{"roomId": "R1", "user": "B"})
	awaitEvent(t, b, types.EventRoomJoined)

	send(t, a, types.EventCodeChange, map[string]interface{}{
		"roomId": "R1", "code": "x = 1", "language": "python",
	})
	update := types.CodeChangePayload{}
	require.NoError(t, json.Unmarshal(awaitEvent(t, b, types.EventCodeUpdate), &update))
	assert.Equal(t, "x = 1", update.Code)

	// the sender sees presence traffic but never its own edit back
	send(t, b, types.EventTyping, map[string]interface{}{"roomId": "R1", "userId": "B"})
	data := awaitEvent(t, a, types.EventUserTyping)
	payload := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "B", payload["userId"])
}
