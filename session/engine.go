package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/folkengine/goname"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"
	"github.com/thatrasunil/code-connect/config"
	"github.com/thatrasunil/code-connect/globals"
	"github.com/thatrasunil/code-connect/store"
	"github.com/thatrasunil/code-connect/types"
)

const (
	participantColor = "#3b82f6"
	joinColor        = "#10b981"
)

// Transport is the outbound half of the event channel. Implementations are
// best-effort: fan-out never fails visibly, a connection that cannot be
// reached is simply skipped.
type Transport interface {
	ToConnection(connId string, event string, data interface{})
	ToConnections(connIds []string, event string, data interface{})
}

type handlerFunc func(connId string, data map[string]interface{}) error

// Engine orchestrates the room session protocol: it owns the connection
// registry and the presence table, reads and writes the room store, and fans
// events out through the transport.
//
// Registry and presence mutations are serialized under one mutex; room store
// calls happen outside the lock with a bounded timeout so a slow backend can
// never wedge presence bookkeeping.
type Engine struct {
	cfg       *config.Config
	store     store.RoomStore
	presence  PresenceTable
	transport Transport
	registry  *ConnRegistry
	handlers  map[string]handlerFunc
	logger    hclog.Logger

	mu sync.Mutex
}

func NewEngine(cfg *config.Config, roomStore store.RoomStore, presence PresenceTable, transport Transport) *Engine {
	e := &Engine{
		cfg:       cfg,
		store:     roomStore,
		presence:  presence,
		transport: transport,
		registry:  NewConnRegistry(),
		logger:    globals.AppLogger.Named("session"),
	}
	e.handlers = map[string]handlerFunc{
		types.EventJoinRoom:     e.handleJoin,
		types.EventSendMessage:  e.handleSendMessage,
		types.EventCodeChange:   e.handleCodeChange,
		types.EventTyping:       e.handleTyping,
		types.EventCursorUpdate: e.handleCursorUpdate,
		types.EventCursorLeave:  e.handleCursorLeave,
		types.EventEndRoom:      e.handleEndRoom,
	}
	return e
}

// Dispatch routes one incoming event to its handler. Handler failures, and
// anything a handler panics with, become an error signal to the sender only;
// nothing may escape into the transport's dispatch loop.
func (e *Engine) Dispatch(connId, event string, raw json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("handler panic", "event", event, "conn", connId, "panic", r)
			e.sendError(connId, event, ErrStoreUnavailable)
		}
	}()
	handler, ok := e.handlers[event]
	if !ok {
		e.logger.Warn("unknown event", "event", event, "conn", connId)
		return
	}
	data := make(map[string]interface{})
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			e.sendError(connId, event, ErrInvalidPayload)
			return
		}
	}
	if err := handler(connId, data); err != nil {
		e.sendError(connId, event, err)
	}
}

// Disconnect settles a closed connection: unbind, presence exit and the
// user-left / user-count fan-out. Duplicate or late disconnects are no-ops.
func (e *Engine) Disconnect(connId string) {
	e.mu.Lock()
	binding, ok := e.registry.Unbind(connId)
	if !ok {
		e.mu.Unlock()
		return
	}
	fanout := e.settleExitLocked(binding)
	e.mu.Unlock()
	fanout.emit(e)
}

// Stats returns the number of rooms with at least one connection and the
// total number of bound connections.
func (e *Engine) Stats() (rooms, connections int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.registry.byRoom), len(e.registry.byConn)
}

func (e *Engine) handleJoin(connId string, data map[string]interface{}) error {
	in := types.JoinRoomPayload{}
	if err := mapstructure.WeakDecode(data, &in); err != nil {
		return ErrInvalidPayload
	}
	userId, name := resolveUser(in.User)
	if in.RoomId == "" {
		return ErrInvalidPayload
	}
	if userId == "" {
		// anonymous connection, mint a guest identity
		name = goname.New(goname.FantasyMap).FirstLast() + " (guest)"
		userId = name
	}

	ctx, cancel := e.storeCtx()
	defer cancel()
	room, err := e.store.GetOrCreateRoom(ctx, in.RoomId)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	// the access gate comes before any presence or registry mutation
	if !room.Open(userId, in.Password) {
		return ErrAccessDenied
	}
	messages, err := e.store.ListMessages(ctx, in.RoomId)
	if err != nil {
		e.logger.Warn("could not load message history", "room", in.RoomId, "error", err)
		messages = nil
	}
	if size := e.cfg.HistoryConfig.HistorySize; size > 0 && len(messages) > size {
		messages = messages[len(messages)-size:]
	}
	if messages == nil {
		messages = make([]types.Message, 0)
	}

	e.mu.Lock()
	prev, rebound := e.registry.Bind(Binding{ConnId: connId, UserId: userId, RoomId: in.RoomId, Name: name})
	rejoin := rebound && prev.RoomId == in.RoomId && prev.UserId == userId
	var implicitLeave *exitFanout
	if rebound && !rejoin {
		// joining while bound elsewhere implies leaving first, otherwise the
		// old binding's presence share would leak
		implicitLeave = e.settleExitLocked(prev)
	}
	if rejoin {
		// same place again: rebalance the presence share quietly, from the
		// room's point of view the connection never left
		e.presence.Exit(in.RoomId, userId)
	}
	count, err := e.presence.Enter(in.RoomId, userId, name)
	if err != nil {
		e.registry.Unbind(connId)
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	participants, _ := e.presence.Participants(in.RoomId)
	distinct, _ := e.presence.Count(in.RoomId)
	others := e.registry.ConnectionsExcept(in.RoomId, connId)
	all := e.registry.Connections(in.RoomId)
	e.mu.Unlock()

	if implicitLeave != nil {
		implicitLeave.emit(e)
	}

	e.transport.ToConnection(connId, types.EventRoomJoined, types.RoomJoinedPayload{
		RoomId:       in.RoomId,
		Code:         room.Code,
		Language:     room.Language,
		Messages:     messages,
		Participants: participants,
		Users:        distinct,
	})
	if count == 1 && !rejoin {
		e.transport.ToConnections(others, types.EventUserJoined, types.UserJoinedPayload{
			UserId:    userId,
			Name:      name,
			Color:     joinColor,
			Timestamp: time.Now(),
		})
	}
	e.transport.ToConnections(all, types.EventUserCount, types.UserCountPayload{
		Count:        distinct,
		Participants: participants,
	})
	return nil
}

func (e *Engine) handleSendMessage(connId string, data map[string]interface{}) error {
	msg := types.Message{}
	if err := mapstructure.WeakDecode(data, &msg); err != nil {
		return ErrInvalidPayload
	}
	if msg.RoomId == "" || msg.UserId == "" || msg.Empty() {
		return ErrInvalidPayload
	}
	msg.Normalize()

	ctx, cancel := e.storeCtx()
	defer cancel()
	if msg.ParentId != "" {
		// permissive threading: a parent that cannot be found in the room
		// degrades the message to top-level instead of failing the send
		msg.ParentId = e.resolveParent(ctx, msg.RoomId, msg.ParentId)
	}
	msg.Id = "" // ids are assigned by the store
	stored, err := e.store.AppendMessage(ctx, msg.RoomId, msg)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return err
		}
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}

	e.mu.Lock()
	all := e.registry.Connections(msg.RoomId)
	e.mu.Unlock()
	// sender-inclusive on purpose, so clients never locally echo
	e.transport.ToConnections(all, types.EventNewMessage, stored)
	return nil
}

func (e *Engine) handleCodeChange(connId string, data map[string]interface{}) error {
	in := types.CodeChangePayload{}
	if err := mapstructure.WeakDecode(data, &in); err != nil {
		return ErrInvalidPayload
	}
	if in.RoomId == "" {
		return ErrInvalidPayload
	}
	if in.Language == "" {
		in.Language = e.cfg.Language()
	}

	ctx, cancel := e.storeCtx()
	defer cancel()
	err := e.store.WriteDocument(ctx, in.RoomId, in.Code, in.Language)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return err
		}
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}

	e.mu.Lock()
	others := e.registry.ConnectionsExcept(in.RoomId, connId)
	e.mu.Unlock()
	// sender excluded, an echo would jump the originating editor's cursor
	e.transport.ToConnections(others, types.EventCodeUpdate, types.CodeChangePayload{
		Code:     in.Code,
		Language: in.Language,
	})
	return nil
}

func (e *Engine) handleTyping(connId string, data map[string]interface{}) error {
	e.relayToOthers(connId, types.EventUserTyping, data)
	return nil
}

func (e *Engine) handleCursorUpdate(connId string, data map[string]interface{}) error {
	e.relayToOthers(connId, types.EventCursorUpdate, data)
	return nil
}

func (e *Engine) handleCursorLeave(connId string, data map[string]interface{}) error {
	in := types.CursorLeavePayload{}
	if err := mapstructure.WeakDecode(data, &in); err != nil {
		return nil // ephemeral, best effort
	}
	roomId := e.eventRoom(connId, in.RoomId)
	if roomId == "" {
		return nil
	}
	e.mu.Lock()
	others := e.registry.ConnectionsExcept(roomId, connId)
	e.mu.Unlock()
	e.transport.ToConnections(others, types.EventCursorLeave, types.CursorLeavePayload{RoomId: roomId, UserId: in.UserId})
	return nil
}

func (e *Engine) handleEndRoom(connId string, data map[string]interface{}) error {
	in := types.EndRoomPayload{}
	if err := mapstructure.WeakDecode(data, &in); err != nil {
		return ErrInvalidPayload
	}
	if in.RoomId == "" {
		return ErrInvalidPayload
	}

	ctx, cancel := e.storeCtx()
	defer cancel()
	if err := e.store.PurgeMessages(ctx, in.RoomId); err != nil {
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	if err := e.store.WriteDocument(ctx, in.RoomId, "", e.cfg.Language()); err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return err
		}
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}

	e.mu.Lock()
	all := e.registry.Connections(in.RoomId)
	if err := e.presence.Clear(in.RoomId); err != nil {
		e.logger.Warn("could not clear presence", "room", in.RoomId, "error", err)
	}
	e.mu.Unlock()

	e.transport.ToConnections(all, types.EventRoomEnded, types.RoomEndedPayload{
		RoomId:  in.RoomId,
		Message: fmt.Sprintf("Room ended by %s", in.UserId),
	})
	return nil
}

// relayToOthers fans an ephemeral payload out verbatim to every other
// connection in the room. No persistence, no visible failure.
func (e *Engine) relayToOthers(connId, event string, data map[string]interface{}) {
	roomId, _ := data["roomId"].(string)
	roomId = e.eventRoom(connId, roomId)
	if roomId == "" {
		return
	}
	e.mu.Lock()
	others := e.registry.ConnectionsExcept(roomId, connId)
	e.mu.Unlock()
	e.transport.ToConnections(others, event, data)
}

// eventRoom falls back to the connection's bound room when an ephemeral
// payload omits the room id.
func (e *Engine) eventRoom(connId, roomId string) string {
	if roomId != "" {
		return roomId
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.registry.Lookup(connId); ok {
		return b.RoomId
	}
	return ""
}

func (e *Engine) resolveParent(ctx context.Context, roomId, parentId string) string {
	messages, err := e.store.ListMessages(ctx, roomId)
	if err != nil {
		return ""
	}
	for _, m := range messages {
		if m.Id == parentId {
			return parentId
		}
	}
	return ""
}

// exitFanout is the broadcast work computed while holding the state mutex
// and emitted after releasing it.
type exitFanout struct {
	roomId       string
	userId       string
	userLeft     bool
	count        int
	participants []types.Participant
	conns        []string
}

// settleExitLocked removes one connection's presence share and captures the
// resulting room snapshot. Callers hold e.mu.
func (e *Engine) settleExitLocked(b Binding) *exitFanout {
	_, left, err := e.presence.Exit(b.RoomId, b.UserId)
	if err != nil {
		e.logger.Warn("presence exit failed", "room", b.RoomId, "user", b.UserId, "error", err)
	}
	participants, _ := e.presence.Participants(b.RoomId)
	count, _ := e.presence.Count(b.RoomId)
	return &exitFanout{
		roomId:       b.RoomId,
		userId:       b.UserId,
		userLeft:     left,
		count:        count,
		participants: participants,
		conns:        e.registry.Connections(b.RoomId),
	}
}

func (f *exitFanout) emit(e *Engine) {
	if f.userLeft {
		e.transport.ToConnections(f.conns, types.EventUserLeft, types.UserLeftPayload{
			UserId:    f.userId,
			Timestamp: time.Now(),
		})
	}
	e.transport.ToConnections(f.conns, types.EventUserCount, types.UserCountPayload{
		Count:        f.count,
		Participants: f.participants,
	})
}

func (e *Engine) sendError(connId, event string, err error) {
	msg := "internal error"
	switch {
	case errors.Is(err, ErrAccessDenied):
		msg = "access denied"
	case errors.Is(err, ErrInvalidPayload):
		msg = "invalid payload"
	case errors.Is(err, store.ErrRoomNotFound):
		msg = "room not found"
	case errors.Is(err, ErrStoreUnavailable):
		msg = "room store unavailable"
	}
	e.logger.Warn("event rejected", "event", event, "conn", connId, "error", err)
	e.transport.ToConnection(connId, types.EventError, types.ErrorPayload{Event: event, Message: msg})
}

func (e *Engine) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.cfg.StoreTimeout())
}

// resolveUser accepts both the current {userId, name} object and the legacy
// plain user id string.
func resolveUser(user interface{}) (userId, name string) {
	switch v := user.(type) {
	case string:
		return v, v
	case map[string]interface{}:
		if id, ok := v["userId"].(string); ok {
			userId = id
		}
		if n, ok := v["name"].(string); ok && n != "" {
			name = n
		} else {
			name = userId
		}
		return userId, name
	default:
		return "", ""
	}
}
