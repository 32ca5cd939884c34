package session

import (
	"sort"

	"github.com/thatrasunil/code-connect/types"
)

// PresenceTable tracks, per room, how many live connections each user holds.
// It is the authoritative "who is in this room right now" view, independent
// of the room store.
//
// Implementations backed by process memory rely on the engine's state mutex
// for serialization; shared implementations (redis) provide their own
// atomicity.
type PresenceTable interface {
	// Enter increments the user's connection count and caches the display
	// name, returning the post-increment count. A return of 1 means the
	// user just became visible in the room.
	Enter(roomId, userId, name string) (int, error)

	// Exit decrements the count; at 0 the user entry is removed and left is
	// true ("fully left"). Exiting a user who is not present is a no-op
	// returning (0, false).
	Exit(roomId, userId string) (count int, left bool, err error)

	// Participants returns a snapshot of the users present in the room, in
	// deterministic order.
	Participants(roomId string) ([]types.Participant, error)

	// Count returns the number of distinct users (not connections) present.
	Count(roomId string) (int, error)

	// Clear removes every presence entry of the room (end-room).
	Clear(roomId string) error
}

type presenceEntry struct {
	connections int
	name        string
}

// MemoryPresence is the in-process presence table. A process restart loses
// it, which is the accepted durability boundary for ephemeral state.
type MemoryPresence struct {
	rooms map[string]map[string]*presenceEntry
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{rooms: make(map[string]map[string]*presenceEntry)}
}

func (p *MemoryPresence) Enter(roomId, userId, name string) (int, error) {
	users, ok := p.rooms[roomId]
	if !ok {
		users = make(map[string]*presenceEntry)
		p.rooms[roomId] = users
	}
	entry, ok := users[userId]
	if !ok {
		entry = &presenceEntry{}
		users[userId] = entry
	}
	entry.connections++
	if name != "" {
		entry.name = name
	}
	return entry.connections, nil
}

func (p *MemoryPresence) Exit(roomId, userId string) (int, bool, error) {
	users, ok := p.rooms[roomId]
	if !ok {
		return 0, false, nil
	}
	entry, ok := users[userId]
	if !ok {
		return 0, false, nil
	}
	entry.connections--
	if entry.connections <= 0 {
		delete(users, userId)
		if len(users) == 0 {
			delete(p.rooms, roomId)
		}
		return 0, true, nil
	}
	return entry.connections, false, nil
}

func (p *MemoryPresence) Participants(roomId string) ([]types.Participant, error) {
	users := p.rooms[roomId]
	participants := make([]types.Participant, 0, len(users))
	for userId, entry := range users {
		name := entry.name
		if name == "" {
			name = userId
		}
		participants = append(participants, types.Participant{UserId: userId, Name: name, Color: participantColor})
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].UserId < participants[j].UserId })
	return participants, nil
}

func (p *MemoryPresence) Count(roomId string) (int, error) {
	return len(p.rooms[roomId]), nil
}

func (p *MemoryPresence) Clear(roomId string) error {
	delete(p.rooms, roomId)
	return nil
}
