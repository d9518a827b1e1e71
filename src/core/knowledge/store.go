package knowledge

import (
	"context"
	"fmt"

	"botforge-server/src/core/rag"
	"botforge-server/src/core/utils"
	"botforge-server/src/models"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// fallbackCandidateLimit bounds in-process ranking when the database-native
// path errors.
const fallbackCandidateLimit = 1000

// Store persists and retrieves knowledge chunks.
type Store struct {
	db     *gorm.DB
	logger *utils.Logger
	dims   int
}

func NewStore(db *gorm.DB, logger *utils.Logger, dims int) *Store {
	return &Store{db: db, logger: logger, dims: dims}
}

// InsertChunks writes an ingestion batch. Vectors whose length differs
// from the configured embedding dimensionality are rejected up front so
// degraded similarity never enters the index.
func (s *Store) InsertChunks(ctx context.Context, botID, ownerID uint, fileName string, contents []string, vectors [][]float32) (int, error) {
	if len(contents) != len(vectors) {
		return 0, fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(contents), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != s.dims {
			return 0, fmt.Errorf("chunk %d has embedding length %d, want %d", i, len(v), s.dims)
		}
	}

	rows := make([]models.KnowledgeChunk, 0, len(contents))
	for i, content := range contents {
		rows = append(rows, models.KnowledgeChunk{
			BotID:     botID,
			OwnerID:   ownerID,
			Content:   content,
			FileName:  fileName,
			Embedding: pgvector.NewVector(vectors[i]),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ScoredChunk is one retrieval hit.
type ScoredChunk struct {
	ID         uint    `json:"id"`
	FileName   string  `json:"file_name"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

// TopChunks returns the k chunks most similar to the query vector for the
// bot, dropping hits below minSimilarity. Database-native ranking is
// preferred; on error up to fallbackCandidateLimit rows are ranked
// in-process.
func (s *Store) TopChunks(ctx context.Context, botID uint, query []float32, k int, minSimilarity float32) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	var native []ScoredChunk
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, file_name, content, 1 - (embedding <=> ?) AS similarity
		 FROM knowledge_chunks
		 WHERE bot_id = ?
		 ORDER BY embedding <=> ?
		 LIMIT ?`,
		pgvector.NewVector(query), botID, pgvector.NewVector(query), k,
	).Scan(&native).Error
	if err == nil {
		filtered := native[:0]
		for _, c := range native {
			if c.Similarity >= minSimilarity {
				filtered = append(filtered, c)
			}
		}
		return filtered, nil
	}
	s.logger.Warn("native chunk ranking unavailable for bot %d, ranking in-process: %v", botID, err)

	var rows []models.KnowledgeChunk
	if err := s.db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Limit(fallbackCandidateLimit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	candidates := make([]rag.Candidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, rag.Candidate{
			ID:       r.ID,
			FileName: r.FileName,
			Content:  r.Content,
			Vector:   r.Embedding.Slice(),
		})
	}

	top := rag.RankTopK(query, candidates, k, minSimilarity)
	out := make([]ScoredChunk, 0, len(top))
	for _, t := range top {
		out = append(out, ScoredChunk{ID: t.ID, FileName: t.FileName, Content: t.Content, Similarity: t.Similarity})
	}
	return out, nil
}

// CountByBot returns the chunk count for a bot.
func (s *Store) CountByBot(ctx context.Context, botID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.KnowledgeChunk{}).Where("bot_id = ?", botID).Count(&n).Error
	return n, err
}

// DeleteByBot removes all chunks of a bot (purge path).
func (s *Store) DeleteByBot(ctx context.Context, botID uint) error {
	return s.db.WithContext(ctx).Where("bot_id = ?", botID).Delete(&models.KnowledgeChunk{}).Error
}
