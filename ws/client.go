package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thatrasunil/code-connect/session"
	"github.com/thatrasunil/code-connect/types"
)

// Client is a middleman between one websocket connection and the session
// engine. The connection id is generated here and is what the engine binds
// rooms and presence to.
type Client struct {
	id  string
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	engine *session.Engine

	// Buffered channel of outbound messages.
	Send chan []byte
}

func NewClient(hub *Hub, engine *session.Engine, conn *websocket.Conn) *Client {
	c := &Client{
		id:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		engine: engine,
		Send:   make(chan []byte, sendChannelSize),
	}
	hub.add(c)
	return c
}

// Id returns the connection id.
func (c *Client) Id() string {
	return c.id
}

// ReadLoop pumps messages from the websocket connection into the engine.
//
// The application runs ReadLoop in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine.
func (c *Client) ReadLoop() {
	defer func() {
		c.hub.remove(c)
		c.engine.Disconnect(c.id)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Info("ws closed unexpectedly", "conn", c.id, "error", err)
			}
			return
		}
		message := types.WebsocketMessage{}
		if err := json.Unmarshal(raw, &message); err != nil {
			c.hub.logger.Warn("could not unmarshal ws message", "conn", c.id, "error", err)
			continue
		}
		c.engine.Dispatch(c.id, message.Event, message.Data)
	}
}

// WriteLoop pumps messages from the hub to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
