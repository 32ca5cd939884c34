package types

import (
	"time"
)

// Room is a named collaborative session holding one shared document (code +
// language) and a message history. The human-shareable RoomId is the only
// identifier the protocol ever sees.
type Room struct {
	RoomId    string     `json:"roomId" gorm:"primaryKey" bson:"room_id"`
	Code      string     `json:"code" bson:"code"`
	Language  string     `json:"language" bson:"language"`
	IsPublic  bool       `json:"isPublic" bson:"is_public"`
	Password  string     `json:"-" bson:"password"`
	OwnerId   string     `json:"ownerId,omitempty" bson:"owner_id"`
	CreatedAt time.Time  `json:"-" bson:"created_at"`
	UpdatedAt time.Time  `json:"-" bson:"updated_at"`
	EndedAt   *time.Time `json:"-" bson:"ended_at,omitempty"`
}

// Open reports whether the given user may enter the room. Private rooms
// require the stored password or the owner identity.
func (r *Room) Open(userId, password string) bool {
	if r.IsPublic || r.Password == "" {
		return true
	}
	if r.OwnerId != "" && r.OwnerId == userId {
		return true
	}
	return password == r.Password
}
