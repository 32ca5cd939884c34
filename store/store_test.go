package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thatrasunil/code-connect/types"
)

// the mongo store is exercised against a real server only; everything else
// runs the shared contract below
func testStores(t *testing.T) map[string]RoomStore {
	t.Helper()
	bunt, err := NewBuntStore(":memory:", "javascript")
	require.NoError(t, err)
	gormStore, err := NewGormStore("sqlite", filepath.Join(t.TempDir(), "test.db"), "javascript")
	require.NoError(t, err)
	return map[string]RoomStore{
		"memory": NewMemoryStore("javascript"),
		"buntdb": bunt,
		"sqlite": gormStore,
	}
}

func TestGetOrCreateRoomDefaults(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()

			room, err := s.GetOrCreateRoom(ctx, "R1")
			require.NoError(t, err)
			assert.Equal(t, "R1", room.RoomId)
			assert.Equal(t, "", room.Code)
			assert.Equal(t, "javascript", room.Language)
			assert.True(t, room.IsPublic)

			// second call returns the same record, not a reset one
			require.NoError(t, s.WriteDocument(ctx, "R1", "x = 1", "python"))
			room, err = s.GetOrCreateRoom(ctx, "R1")
			require.NoError(t, err)
			assert.Equal(t, "x = 1", room.Code)
			assert.Equal(t, "python", room.Language)
		})
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()

			_, _, err := s.ReadDocument(ctx, "missing")
			assert.ErrorIs(t, err, ErrRoomNotFound)
			assert.ErrorIs(t, s.WriteDocument(ctx, "missing", "x", "python"), ErrRoomNotFound)

			_, err = s.GetOrCreateRoom(ctx, "R1")
			require.NoError(t, err)
			require.NoError(t, s.WriteDocument(ctx, "R1", "print('hi')", "python"))
			code, language, err := s.ReadDocument(ctx, "R1")
			require.NoError(t, err)
			assert.Equal(t, "print('hi')", code)
			assert.Equal(t, "python", language)
		})
	}
}

func TestMessagesOrderedAndPurged(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()

			_, err := s.AppendMessage(ctx, "missing", types.Message{UserId: "alice", Content: "x"})
			assert.ErrorIs(t, err, ErrRoomNotFound)

			_, err = s.GetOrCreateRoom(ctx, "R1")
			require.NoError(t, err)

			first, err := s.AppendMessage(ctx, "R1", types.Message{UserId: "alice", Content: "one", Type: types.MessageTypeText})
			require.NoError(t, err)
			assert.NotEmpty(t, first.Id)
			assert.False(t, first.Timestamp.IsZero())
			second, err := s.AppendMessage(ctx, "R1", types.Message{UserId: "bob", Content: "two", Type: types.MessageTypeText})
			require.NoError(t, err)
			assert.NotEqual(t, first.Id, second.Id)

			messages, err := s.ListMessages(ctx, "R1")
			require.NoError(t, err)
			require.Len(t, messages, 2)
			assert.Equal(t, "one", messages[0].Content)
			assert.Equal(t, "two", messages[1].Content)

			require.NoError(t, s.PurgeMessages(ctx, "R1"))
			messages, err = s.ListMessages(ctx, "R1")
			require.NoError(t, err)
			assert.Empty(t, messages)
		})
	}
}

func TestPurgeIsScopedToRoom(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()

			for _, roomId := range []string{"R1", "R2"} {
				_, err := s.GetOrCreateRoom(ctx, roomId)
				require.NoError(t, err)
				_, err = s.AppendMessage(ctx, roomId, types.Message{UserId: "alice", Content: "in " + roomId})
				require.NoError(t, err)
			}

			require.NoError(t, s.PurgeMessages(ctx, "R1"))

			messages, err := s.ListMessages(ctx, "R2")
			require.NoError(t, err)
			require.Len(t, messages, 1)
			assert.Equal(t, "in R2", messages[0].Content)
		})
	}
}

func TestSaveRoomPrivacy(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()

			require.NoError(t, s.SaveRoom(ctx, &types.Room{
				RoomId:   "secret",
				Language: "javascript",
				IsPublic: false,
				Password: "hunter2",
				OwnerId:  "alice",
			}))

			room, err := s.GetOrCreateRoom(ctx, "secret")
			require.NoError(t, err)
			assert.False(t, room.IsPublic)
			assert.Equal(t, "hunter2", room.Password)
			assert.Equal(t, "alice", room.OwnerId)

			rooms, err := s.Rooms(ctx)
			require.NoError(t, err)
			require.Len(t, rooms, 1)
			assert.Equal(t, "secret", rooms[0].RoomId)
		})
	}
}
