package types

import (
	"encoding/json"
	"time"
)

// Incoming events.
const (
	EventJoinRoom     = "join-room"
	EventSendMessage  = "send-message"
	EventCodeChange   = "code-change"
	EventTyping       = "typing"
	EventCursorUpdate = "cursor-update"
	EventCursorLeave  = "cursor-leave"
	EventEndRoom      = "end-room"
)

// Outgoing events.
const (
	EventRoomJoined = "room-joined"
	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"
	EventUserCount  = "user-count"
	EventNewMessage = "new-message"
	EventCodeUpdate = "code-update"
	EventUserTyping = "user-typing"
	EventRoomEnded  = "room-ended"
	EventError      = "error"
)

// JSON-serialized WebsocketMessage is what is actually sent via the Websocket connection
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewWireMessage wraps an event payload into the wire envelope.
func NewWireMessage(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WebsocketMessage{Event: event, Data: raw})
}

// The different shapes of event payloads transferred between client and server.

// JoinRoomPayload is sent by a connection to enter a room. User is either an
// object with userId and name or, in the legacy form, a plain user id string.
type JoinRoomPayload struct {
	RoomId   string      `mapstructure:"roomId"`
	User     interface{} `mapstructure:"user"`
	Password string      `mapstructure:"password"`
}

// CodeChangePayload carries a full document write (code + language).
type CodeChangePayload struct {
	RoomId   string `json:"roomId,omitempty" mapstructure:"roomId"`
	Code     string `json:"code" mapstructure:"code"`
	Language string `json:"language" mapstructure:"language"`
}

// CursorLeavePayload clears one user's remote cursor.
type CursorLeavePayload struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
	UserId string `json:"userId" mapstructure:"userId"`
}

// EndRoomPayload resets a room's durable state.
type EndRoomPayload struct {
	RoomId string `mapstructure:"roomId"`
	UserId string `mapstructure:"userId"`
}

// RoomJoinedPayload is the sender-only snapshot answering a join.
type RoomJoinedPayload struct {
	RoomId       string        `json:"roomId"`
	Code         string        `json:"code"`
	Language     string        `json:"language"`
	Messages     []Message     `json:"messages"`
	Participants []Participant `json:"participants"`
	Users        int           `json:"users"`
}

// UserJoinedPayload announces a user's first connection to a room.
type UserJoinedPayload struct {
	UserId    string    `json:"userId"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UserLeftPayload announces that a user's last connection is gone.
type UserLeftPayload struct {
	UserId    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// UserCountPayload is the room-wide presence snapshot (count + participants).
type UserCountPayload struct {
	Count        int           `json:"count"`
	Participants []Participant `json:"participants"`
}

// RoomEndedPayload announces a room reset.
type RoomEndedPayload struct {
	RoomId  string `json:"roomId"`
	Message string `json:"message"`
}

// ErrorPayload is sent to the originating connection only.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}
