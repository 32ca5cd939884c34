package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thatrasunil/code-connect/types"
	"github.com/tidwall/buntdb"
)

// BuntStore is the document-store backend: rooms and messages are JSON
// records in a buntdb file (or ":memory:").
type BuntStore struct {
	db              *buntdb.DB
	defaultLanguage string
}

func NewBuntStore(fileName, defaultLanguage string) (*BuntStore, error) {
	if fileName == "" {
		fileName = ":memory:"
	}
	db, err := buntdb.Open(fileName)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("messagets", "message:*", buntdb.IndexJSON("timestamp"))
	if err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, err
	}
	return &BuntStore{db: db, defaultLanguage: defaultLanguage}, nil
}

// roomRecord is the stored shape of a room. The wire JSON of types.Room
// hides the password and the timestamps, the stored record must not.
type roomRecord struct {
	RoomId    string     `json:"roomId"`
	Code      string     `json:"code"`
	Language  string     `json:"language"`
	IsPublic  bool       `json:"isPublic"`
	Password  string     `json:"password,omitempty"`
	OwnerId   string     `json:"ownerId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

func recordFromRoom(room *types.Room) *roomRecord {
	return &roomRecord{
		RoomId:    room.RoomId,
		Code:      room.Code,
		Language:  room.Language,
		IsPublic:  room.IsPublic,
		Password:  room.Password,
		OwnerId:   room.OwnerId,
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
		EndedAt:   room.EndedAt,
	}
}

func (r *roomRecord) room() *types.Room {
	return &types.Room{
		RoomId:    r.RoomId,
		Code:      r.Code,
		Language:  r.Language,
		IsPublic:  r.IsPublic,
		Password:  r.Password,
		OwnerId:   r.OwnerId,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		EndedAt:   r.EndedAt,
	}
}

func roomKey(roomId string) string {
	return "room:" + roomId
}

func messageKey(roomId, msgId string) string {
	return fmt.Sprintf("message:%s:%s", roomId, msgId)
}

func (s *BuntStore) GetOrCreateRoom(_ context.Context, roomId string) (*types.Room, error) {
	rec := &roomRecord{}
	err := s.db.Update(func(tx *buntdb.Tx) error {
		val, err := tx.Get(roomKey(roomId))
		if err == nil {
			return json.Unmarshal([]byte(val), rec)
		}
		if err != buntdb.ErrNotFound {
			return err
		}
		now := time.Now()
		*rec = roomRecord{
			RoomId:    roomId,
			Language:  s.defaultLanguage,
			IsPublic:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(roomKey(roomId), string(raw), nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec.room(), nil
}

func (s *BuntStore) SaveRoom(_ context.Context, room *types.Room) error {
	rec := recordFromRoom(room)
	rec.UpdatedAt = time.Now()
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(roomKey(room.RoomId), string(raw), nil)
		return err
	})
}

func (s *BuntStore) getRoom(tx *buntdb.Tx, roomId string) (*roomRecord, error) {
	val, err := tx.Get(roomKey(roomId))
	if err == buntdb.ErrNotFound {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	rec := &roomRecord{}
	if err := json.Unmarshal([]byte(val), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *BuntStore) ReadDocument(_ context.Context, roomId string) (string, string, error) {
	var code, language string
	err := s.db.View(func(tx *buntdb.Tx) error {
		rec, err := s.getRoom(tx, roomId)
		if err != nil {
			return err
		}
		code, language = rec.Code, rec.Language
		return nil
	})
	return code, language, err
}

func (s *BuntStore) WriteDocument(_ context.Context, roomId, code, language string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		rec, err := s.getRoom(tx, roomId)
		if err != nil {
			return err
		}
		rec.Code = code
		rec.Language = language
		rec.UpdatedAt = time.Now()
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(roomKey(roomId), string(raw), nil)
		return err
	})
}

func (s *BuntStore) ListMessages(_ context.Context, roomId string) ([]types.Message, error) {
	messages := make([]types.Message, 0)
	prefix := messageKey(roomId, "")
	err := s.db.View(func(tx *buntdb.Tx) error {
		// the index walks all rooms' messages in timestamp order
		return tx.Ascend("messagets", func(key, val string) bool {
			if !strings.HasPrefix(key, prefix) {
				return true
			}
			msg := types.Message{}
			if err := json.Unmarshal([]byte(val), &msg); err == nil {
				// the room id is part of the key, not the wire JSON
				msg.RoomId = roomId
				messages = append(messages, msg)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *BuntStore) AppendMessage(_ context.Context, roomId string, msg types.Message) (*types.Message, error) {
	msg.RoomId = roomId
	msg.Id = uuid.NewString()
	msg.Timestamp = time.Now()
	raw, err := json.Marshal(&msg)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(tx *buntdb.Tx) error {
		if _, err := s.getRoom(tx, roomId); err != nil {
			return err
		}
		_, _, err := tx.Set(messageKey(roomId, msg.Id), string(raw), nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *BuntStore) PurgeMessages(_ context.Context, roomId string) error {
	prefix := messageKey(roomId, "")
	return s.db.Update(func(tx *buntdb.Tx) error {
		keys := make([]string, 0)
		err := tx.AscendKeys("message:*", func(key, _ string) bool {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
			return true
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BuntStore) Rooms(_ context.Context) ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("room:*", func(_, val string) bool {
			rec := &roomRecord{}
			if err := json.Unmarshal([]byte(val), rec); err == nil {
				rooms = append(rooms, rec.room())
			}
			return true
		})
	})
	return rooms, err
}

func (s *BuntStore) Close() error {
	return s.db.Close()
}
