package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// ChatMemory is the similarity-ordered projection of the turn log: one row
// per turn with its embedding, scoped by user/bot/optional conversation.
// Append-only, never pruned.
type ChatMemory struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"not null;index" json:"user_id"`
	BotID          uint            `gorm:"not null;index" json:"bot_id"`
	ConversationID string          `gorm:"type:varchar(36);index" json:"conversation_id,omitempty"`
	Role           string          `gorm:"type:varchar(20);not null" json:"role"`
	Content        string          `gorm:"type:text;not null" json:"content"`
	Embedding      pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (ChatMemory) TableName() string { return "chat_memories" }
