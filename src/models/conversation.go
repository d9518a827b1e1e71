package models

import "time"

// Conversation is a chat thread scoped to one bot. Created lazily on the
// first message when the caller supplies no id; UpdatedAt orders listings.
type Conversation struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	BotID     uint      `gorm:"not null;index" json:"bot_id"`
	Title     string    `gorm:"type:varchar(80)" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }
