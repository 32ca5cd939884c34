package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/thatrasunil/code-connect/types"
)

// MemoryStore keeps all room state in process memory. It is the default
// backend when no persistence is configured and the backend used in tests.
type MemoryStore struct {
	mu              sync.RWMutex
	rooms           map[string]*types.Room
	messages        map[string][]types.Message
	seq             uint64
	defaultLanguage string
}

func NewMemoryStore(defaultLanguage string) *MemoryStore {
	return &MemoryStore{
		rooms:           make(map[string]*types.Room),
		messages:        make(map[string][]types.Message),
		defaultLanguage: defaultLanguage,
	}
}

func (s *MemoryStore) GetOrCreateRoom(_ context.Context, roomId string) (*types.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomId]; ok {
		cp := *room
		return &cp, nil
	}
	now := time.Now()
	room := &types.Room{
		RoomId:    roomId,
		Language:  s.defaultLanguage,
		IsPublic:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.rooms[roomId] = room
	cp := *room
	return &cp, nil
}

func (s *MemoryStore) SaveRoom(_ context.Context, room *types.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *room
	if existing, ok := s.rooms[room.RoomId]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	s.rooms[room.RoomId] = &cp
	return nil
}

func (s *MemoryStore) ReadDocument(_ context.Context, roomId string) (string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomId]
	if !ok {
		return "", "", ErrRoomNotFound
	}
	return room.Code, room.Language, nil
}

func (s *MemoryStore) WriteDocument(_ context.Context, roomId, code, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomId]
	if !ok {
		return ErrRoomNotFound
	}
	room.Code = code
	room.Language = language
	room.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, roomId string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]types.Message, len(s.messages[roomId]))
	copy(msgs, s.messages[roomId])
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
	return msgs, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, roomId string, msg types.Message) (*types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomId]; !ok {
		return nil, ErrRoomNotFound
	}
	s.seq++
	msg.RoomId = roomId
	msg.Timestamp = time.Now()
	hash, err := hashstructure.Hash(msg, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, err
	}
	msg.Id = fmt.Sprintf("%x-%d", hash, s.seq)
	s.messages[roomId] = append(s.messages[roomId], msg)
	return &msg, nil
}

func (s *MemoryStore) PurgeMessages(_ context.Context, roomId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, roomId)
	return nil
}

func (s *MemoryStore) Rooms(_ context.Context) ([]*types.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]*types.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		cp := *room
		rooms = append(rooms, &cp)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].RoomId < rooms[j].RoomId })
	return rooms, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
