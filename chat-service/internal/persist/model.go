package persist

import (
	"time"

	"github.com/filmnt/chat/chat-service/internal/domain"
	"github.com/filmnt/chat/pkg/database"
)

// MessageModel is the GORM model for the chat_messages table.
type MessageModel struct {
	Room      string `gorm:"type:varchar(64);primaryKey"`
	MessageID string `gorm:"type:varchar(64);primaryKey"`
	Content   string `gorm:"type:text;not null"`
	User      string `gorm:"type:varchar(100);not null"`
	UserID    string `gorm:"type:varchar(64);index"`
	Role      string `gorm:"type:varchar(100)"`
	Timestamp int64  `gorm:"index;not null"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts MessageModel to a domain ChatMessage.
func (m *MessageModel) ToDomain() domain.ChatMessage {
	return domain.ChatMessage{
		ID:        m.MessageID,
		Content:   m.Content,
		User:      m.User,
		UserID:    m.UserID,
		Role:      m.Role,
		Timestamp: m.Timestamp,
	}
}

// MessageToModel converts a domain ChatMessage to MessageModel.
func MessageToModel(room string, msg domain.ChatMessage) MessageModel {
	return MessageModel{
		Room:      room,
		MessageID: msg.ID,
		Content:   msg.Content,
		User:      msg.User,
		UserID:    msg.UserID,
		Role:      msg.Role,
		Timestamp: msg.Timestamp,
	}
}

// BanModel is the GORM model for the chat_bans table. A nil Until is a
// permanent ban.
type BanModel struct {
	Room     string `gorm:"type:varchar(64);primaryKey"`
	UserID   string `gorm:"type:varchar(64);primaryKey"`
	Nickname string `gorm:"type:varchar(100)"`
	Until    *int64
}

// TableName specifies the table name for BanModel.
func (BanModel) TableName() string {
	return "chat_bans"
}

func (m *BanModel) ToDomain() domain.BannedUser {
	return domain.BannedUser{UserID: m.UserID, Nickname: m.Nickname, Until: m.Until}
}

// RoomStateModel is the GORM model for the chat_rooms table holding flags
// and the admin set.
type RoomStateModel struct {
	Room      string               `gorm:"type:varchar(64);primaryKey"`
	Frozen    bool                 `gorm:"not null;default:false"`
	AdminOnly bool                 `gorm:"not null;default:false"`
	Admins    database.StringArray `gorm:"type:text"`
	UpdatedAt time.Time            `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for RoomStateModel.
func (RoomStateModel) TableName() string {
	return "chat_rooms"
}
