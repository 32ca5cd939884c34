package store

import (
	"context"
	"errors"

	"github.com/thatrasunil/code-connect/types"
)

// ErrRoomNotFound is returned when an operation references a room id with no
// durable record. Join-style callers create on demand instead.
var ErrRoomNotFound = errors.New("room not found")

// RoomStore is the durable persistence collaborator of the session engine.
// It holds room metadata, the shared document and the message history; which
// storage technology backs it is a configuration concern.
//
// Implementations must be safe for concurrent use by multiple room handlers.
type RoomStore interface {
	// GetOrCreateRoom returns the room record, creating it with an empty
	// document and the default language when absent.
	GetOrCreateRoom(ctx context.Context, roomId string) (*types.Room, error)

	// SaveRoom upserts a full room record (explicit creation, privacy
	// settings, end markers).
	SaveRoom(ctx context.Context, room *types.Room) error

	// ReadDocument returns the current shared document.
	ReadDocument(ctx context.Context, roomId string) (code, language string, err error)

	// WriteDocument replaces the shared document. Returns ErrRoomNotFound
	// when the room record is absent.
	WriteDocument(ctx context.Context, roomId, code, language string) error

	// ListMessages returns the room's messages in timestamp order.
	ListMessages(ctx context.Context, roomId string) ([]types.Message, error)

	// AppendMessage persists a message, assigning id and timestamp. Returns
	// ErrRoomNotFound when the room record is absent.
	AppendMessage(ctx context.Context, roomId string, msg types.Message) (*types.Message, error)

	// PurgeMessages removes the room's entire message history.
	PurgeMessages(ctx context.Context, roomId string) error

	// Rooms lists all known rooms.
	Rooms(ctx context.Context) ([]*types.Room, error)

	Close() error
}
