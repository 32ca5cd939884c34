package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBindLookupUnbind(t *testing.T) {
	r := NewConnRegistry()

	_, had := r.Bind(Binding{ConnId: "c1", UserId: "alice", RoomId: "R1", Name: "Alice"})
	assert.False(t, had)

	b, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", b.UserId)
	assert.Equal(t, "R1", b.RoomId)

	b, ok = r.Unbind("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", b.UserId)

	// repeated disconnects are safe
	_, ok = r.Unbind("c1")
	assert.False(t, ok)
	_, ok = r.Lookup("c1")
	assert.False(t, ok)
}

func TestRegistryRebindMovesRooms(t *testing.T) {
	r := NewConnRegistry()

	r.Bind(Binding{ConnId: "c1", UserId: "alice", RoomId: "R1"})
	prev, had := r.Bind(Binding{ConnId: "c1", UserId: "alice", RoomId: "R2"})
	require.True(t, had)
	assert.Equal(t, "R1", prev.RoomId)

	assert.Empty(t, r.Connections("R1"))
	assert.Equal(t, []string{"c1"}, r.Connections("R2"))
}

func TestRegistryConnectionsExcept(t *testing.T) {
	r := NewConnRegistry()

	r.Bind(Binding{ConnId: "c1", UserId: "alice", RoomId: "R1"})
	r.Bind(Binding{ConnId: "c2", UserId: "bob", RoomId: "R1"})
	r.Bind(Binding{ConnId: "c3", UserId: "carol", RoomId: "R2"})

	assert.Equal(t, []string{"c1", "c2"}, r.Connections("R1"))
	assert.Equal(t, []string{"c2"}, r.ConnectionsExcept("R1", "c1"))
	assert.Equal(t, []string{"c3"}, r.Connections("R2"))
}
