package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// KnowledgeChunk is one retrievable unit of document text with its
// embedding. Created in batches at ingestion, never updated.
type KnowledgeChunk struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	BotID     uint            `gorm:"not null;index" json:"bot_id"`
	OwnerID   uint            `gorm:"not null;index" json:"owner_id"`
	Content   string          `gorm:"type:text;not null" json:"content"`
	FileName  string          `gorm:"type:varchar(255)" json:"file_name"`
	Embedding pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	CreatedAt time.Time       `json:"created_at"`
}

func (KnowledgeChunk) TableName() string { return "knowledge_chunks" }
