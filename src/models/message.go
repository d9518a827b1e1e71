package models

import (
	"strings"
	"time"
)

// Message roles. RoleSystem exists for completeness but is never persisted
// by the chat path.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// OperatorMarker prefixes assistant messages authored by a human operator
// through the manual-insert path. Zero-width characters keep it invisible
// in any UI while remaining machine-detectable.
const OperatorMarker = "​‍​"

// Message is one ordered turn within a conversation. Append-only except
// for operator-authored messages, which may be edited and deleted.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);not null;index" json:"conversation_id"`
	Role           string    `gorm:"type:varchar(20);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// IsOperatorAuthored reports whether the message carries the manual marker.
func (m *Message) IsOperatorAuthored() bool {
	return strings.HasPrefix(m.Content, OperatorMarker)
}

// PlainContent returns the content without the operator marker.
func (m *Message) PlainContent() string {
	return strings.TrimPrefix(m.Content, OperatorMarker)
}

// TagOperator prepends the marker if not already present.
func TagOperator(content string) string {
	if strings.HasPrefix(content, OperatorMarker) {
		return content
	}
	return OperatorMarker + content
}
