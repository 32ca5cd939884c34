package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceEnterExitCounts(t *testing.T) {
	p := NewMemoryPresence()

	count, err := p.Enter("R1", "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = p.Enter("R1", "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, left, err := p.Exit("R1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.False(t, left)

	count, left, err = p.Exit("R1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.True(t, left)
}

func TestPresenceExitAbsentIsNoop(t *testing.T) {
	p := NewMemoryPresence()

	count, left, err := p.Exit("R1", "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.False(t, left)

	// the count never goes negative: a later enter starts at 1 again
	count, err = p.Enter("R1", "ghost", "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPresenceParticipantsDistinctUsers(t *testing.T) {
	p := NewMemoryPresence()

	p.Enter("R1", "bob", "Bob")
	p.Enter("R1", "alice", "Alice")
	p.Enter("R1", "alice", "Alice") // second tab

	participants, err := p.Participants("R1")
	require.NoError(t, err)
	require.Len(t, participants, 2)
	// deterministic order within a call
	assert.Equal(t, "alice", participants[0].UserId)
	assert.Equal(t, "Alice", participants[0].Name)
	assert.Equal(t, "bob", participants[1].UserId)

	count, err := p.Count("R1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPresenceClampMatchesJoinMinusDisconnect(t *testing.T) {
	p := NewMemoryPresence()

	for i := 0; i < 5; i++ {
		p.Enter("R1", "alice", "Alice")
	}
	for i := 0; i < 8; i++ {
		p.Exit("R1", "alice")
	}
	count, err := p.Count("R1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	n, err := p.Enter("R1", "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPresenceClear(t *testing.T) {
	p := NewMemoryPresence()

	p.Enter("R1", "alice", "Alice")
	p.Enter("R1", "bob", "Bob")
	require.NoError(t, p.Clear("R1"))

	count, err := p.Count("R1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, left, err := p.Exit("R1", "alice")
	require.NoError(t, err)
	assert.False(t, left)
}
