package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/thatrasunil/code-connect/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the relational backend, serving both sqlite and postgres
// through the gorm dialector.
type GormStore struct {
	db              *gorm.DB
	defaultLanguage string
}

func NewGormStore(kind, dsn, defaultLanguage string) (*GormStore, error) {
	var dial gorm.Dialector
	switch kind {
	case "postgres":
		dial = postgres.Open(dsn)

	case "sqlite":
		dial = sqlite.Open(dsn)

	default:
		return nil, fmt.Errorf("invalid gorm configuration %q", kind)
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	err = db.Migrator().AutoMigrate(&types.Room{}, &types.Message{})
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db, defaultLanguage: defaultLanguage}, nil
}

func (s *GormStore) GetOrCreateRoom(ctx context.Context, roomId string) (*types.Room, error) {
	room := &types.Room{}
	err := s.db.WithContext(ctx).
		Where(types.Room{RoomId: roomId}).
		Attrs(types.Room{Language: s.defaultLanguage, IsPublic: true}).
		FirstOrCreate(room).Error
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (s *GormStore) SaveRoom(ctx context.Context, room *types.Room) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(room).Error
}

func (s *GormStore) ReadDocument(ctx context.Context, roomId string) (string, string, error) {
	room := &types.Room{}
	err := s.db.WithContext(ctx).Where("room_id = ?", roomId).First(room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", ErrRoomNotFound
	}
	if err != nil {
		return "", "", err
	}
	return room.Code, room.Language, nil
}

func (s *GormStore) WriteDocument(ctx context.Context, roomId, code, language string) error {
	res := s.db.WithContext(ctx).Model(&types.Room{}).Where("room_id = ?", roomId).
		Updates(map[string]interface{}{"code": code, "language": language, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *GormStore) ListMessages(ctx context.Context, roomId string) ([]types.Message, error) {
	messages := make([]types.Message, 0)
	err := s.db.WithContext(ctx).Where("room_id = ?", roomId).Order("timestamp ASC").Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *GormStore) AppendMessage(ctx context.Context, roomId string, msg types.Message) (*types.Message, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&types.Room{}).Where("room_id = ?", roomId).Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrRoomNotFound
	}
	msg.RoomId = roomId
	msg.Id = uuid.NewString()
	msg.Timestamp = time.Now()
	err = s.db.WithContext(ctx).Create(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *GormStore) PurgeMessages(ctx context.Context, roomId string) error {
	return s.db.WithContext(ctx).Where("room_id = ?", roomId).Delete(&types.Message{}).Error
}

func (s *GormStore) Rooms(ctx context.Context) ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := s.db.WithContext(ctx).Order("room_id ASC").Find(&rooms).Error
	return rooms, err
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
