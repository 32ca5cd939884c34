package session

import "sort"

// Binding ties one live connection to the (user, room) it entered.
type Binding struct {
	ConnId string
	UserId string
	RoomId string
	Name   string
}

// ConnRegistry maps connection ids to their binding and keeps a per-room
// index for fan-out. It is not safe for concurrent use on its own; the
// engine serializes all access under its state mutex.
type ConnRegistry struct {
	byConn map[string]Binding
	byRoom map[string]map[string]struct{}
}

func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{
		byConn: make(map[string]Binding),
		byRoom: make(map[string]map[string]struct{}),
	}
}

// Bind records the binding, overwriting any prior binding for the
// connection. The prior binding, if any, is returned so the caller can
// settle presence in the room left behind.
func (r *ConnRegistry) Bind(b Binding) (Binding, bool) {
	prev, had := r.byConn[b.ConnId]
	if had {
		r.dropFromRoom(prev.RoomId, b.ConnId)
	}
	r.byConn[b.ConnId] = b
	conns, ok := r.byRoom[b.RoomId]
	if !ok {
		conns = make(map[string]struct{})
		r.byRoom[b.RoomId] = conns
	}
	conns[b.ConnId] = struct{}{}
	return prev, had
}

// Lookup returns the binding for a connection.
func (r *ConnRegistry) Lookup(connId string) (Binding, bool) {
	b, ok := r.byConn[connId]
	return b, ok
}

// Unbind removes and returns the prior binding. Repeated unbinds are safe.
func (r *ConnRegistry) Unbind(connId string) (Binding, bool) {
	b, ok := r.byConn[connId]
	if !ok {
		return Binding{}, false
	}
	delete(r.byConn, connId)
	r.dropFromRoom(b.RoomId, connId)
	return b, true
}

// Connections returns the ids of all connections currently bound to the
// room, in deterministic order.
func (r *ConnRegistry) Connections(roomId string) []string {
	conns := make([]string, 0, len(r.byRoom[roomId]))
	for connId := range r.byRoom[roomId] {
		conns = append(conns, connId)
	}
	sort.Strings(conns)
	return conns
}

// ConnectionsExcept is Connections without the given connection.
func (r *ConnRegistry) ConnectionsExcept(roomId, exceptConnId string) []string {
	conns := make([]string, 0, len(r.byRoom[roomId]))
	for connId := range r.byRoom[roomId] {
		if connId != exceptConnId {
			conns = append(conns, connId)
		}
	}
	sort.Strings(conns)
	return conns
}

func (r *ConnRegistry) dropFromRoom(roomId, connId string) {
	if conns, ok := r.byRoom[roomId]; ok {
		delete(conns, connId)
		if len(conns) == 0 {
			delete(r.byRoom, roomId)
		}
	}
}
