package chat

import (
	"context"

	"botforge-server/src/core/rag"
	"botforge-server/src/core/utils"
	"botforge-server/src/models"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// fallbackCandidateLimit bounds in-process ranking when the database-native
// path is unavailable.
const fallbackCandidateLimit = 1000

// MemoryStore is the similarity-ordered projection of the turn log:
// append-only rows with embeddings, recalled by vector closeness. It is
// written best-effort and never read by the primary chat endpoint.
type MemoryStore struct {
	db     *gorm.DB
	logger *utils.Logger
}

func NewMemoryStore(db *gorm.DB, logger *utils.Logger) *MemoryStore {
	return &MemoryStore{db: db, logger: logger}
}

// Append stores one turn with its embedding.
func (s *MemoryStore) Append(ctx context.Context, userID, botID uint, conversationID, role, content string, vector []float32) error {
	row := models.ChatMemory{
		UserID:         userID,
		BotID:          botID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Embedding:      pgvector.NewVector(vector),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// RecalledTurn is one memory hit with its similarity.
type RecalledTurn struct {
	ID         uint    `json:"id"`
	Role       string  `json:"role"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

// Recall returns the top-n prior turns most similar to the query vector.
// The database-native ranking is preferred; any error there falls back to
// fetching candidates and ranking in-process.
func (s *MemoryStore) Recall(ctx context.Context, userID, botID uint, query []float32, n int) ([]RecalledTurn, error) {
	if n <= 0 {
		return nil, nil
	}

	var native []RecalledTurn
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, role, content, 1 - (embedding <=> ?) AS similarity
		 FROM chat_memories
		 WHERE user_id = ? AND bot_id = ?
		 ORDER BY embedding <=> ?
		 LIMIT ?`,
		pgvector.NewVector(query), userID, botID, pgvector.NewVector(query), n,
	).Scan(&native).Error
	if err == nil {
		return native, nil
	}
	s.logger.Warn("native memory ranking unavailable, ranking in-process: %v", err)

	var rows []models.ChatMemory
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND bot_id = ?", userID, botID).
		Limit(fallbackCandidateLimit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	candidates := make([]rag.Candidate, 0, len(rows))
	byID := make(map[uint]models.ChatMemory, len(rows))
	for _, r := range rows {
		candidates = append(candidates, rag.Candidate{ID: r.ID, Content: r.Content, Vector: r.Embedding.Slice()})
		byID[r.ID] = r
	}

	top := rag.RankTopK(query, candidates, n, 0)
	out := make([]RecalledTurn, 0, len(top))
	for _, t := range top {
		out = append(out, RecalledTurn{
			ID:         t.ID,
			Role:       byID[t.ID].Role,
			Content:    t.Content,
			Similarity: t.Similarity,
		})
	}
	return out, nil
}
