package store

import (
	"fmt"

	"github.com/thatrasunil/code-connect/config"
)

// NewRoomStore creates the room store selected by the persistence
// configuration.
func NewRoomStore(cfg *config.Config) (RoomStore, error) {
	switch cfg.PersistenceConfig.Type {
	case "", "memory":
		return NewMemoryStore(cfg.Language()), nil

	case "buntdb":
		return NewBuntStore(cfg.PersistenceConfig.DSN, cfg.Language())

	case "sqlite", "postgres":
		return NewGormStore(cfg.PersistenceConfig.Type, cfg.PersistenceConfig.DSN, cfg.Language())

	case "mongo":
		return NewMongoStore(cfg.PersistenceConfig.DSN, cfg.PersistenceConfig.Database, cfg.Language())

	default:
		return nil, fmt.Errorf("invalid persistence type %q", cfg.PersistenceConfig.Type)
	}
}
