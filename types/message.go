package types

import (
	"strings"
	"time"
)

const (
	MessageTypeText  = "TEXT"
	MessageTypeAudio = "AUDIO"
	MessageTypeVideo = "VIDEO"
	MessageTypeImage = "IMAGE"
)

// Message is one chat message inside a room. The author is an opaque user
// identifier, not a foreign key - guests are first-class. Once stored a
// message is immutable; only the whole-room purge removes it.
type Message struct {
	Id            string    `json:"id" gorm:"primaryKey" bson:"_id,omitempty" mapstructure:"id"`
	RoomId        string    `json:"-" gorm:"index" bson:"room_id" mapstructure:"roomId"`
	UserId        string    `json:"userId" bson:"user_id" mapstructure:"userId"`
	Content       string    `json:"content" bson:"content" mapstructure:"content"`
	Type          string    `json:"type" bson:"type" mapstructure:"type"`
	AttachmentUrl string    `json:"attachmentUrl,omitempty" bson:"attachment_url,omitempty" mapstructure:"fileUrl"`
	IsVoice       bool      `json:"isVoice" bson:"is_voice" mapstructure:"isVoice"`
	ParentId      string    `json:"parentId,omitempty" bson:"parent_id,omitempty" mapstructure:"parentId"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp" mapstructure:"-"`
}

// Normalize upper-cases the message type, defaults it to TEXT and forces the
// voice flag for audio messages.
func (m *Message) Normalize() {
	m.Type = strings.ToUpper(m.Type)
	switch m.Type {
	case MessageTypeText, MessageTypeAudio, MessageTypeVideo, MessageTypeImage:
	default:
		m.Type = MessageTypeText
	}
	if m.Type == MessageTypeAudio {
		m.IsVoice = true
	}
}

// Empty reports whether the message carries neither content nor an attachment.
func (m *Message) Empty() bool {
	return m.Content == "" && m.AttachmentUrl == ""
}
