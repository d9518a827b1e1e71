package knowledge

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"botforge-server/src/configs"
	corechat "botforge-server/src/core/chat"
	"botforge-server/src/core/extract"
	"botforge-server/src/core/knowledge"
	"botforge-server/src/core/providers/llm"
	"botforge-server/src/core/rag"
	"botforge-server/src/core/utils"
	"botforge-server/src/models"
)

// ErrEmptyDocument means extraction produced no usable text.
var ErrEmptyDocument = fmt.Errorf("document contains no extractable text")

// UploadRequest carries one document for ingestion. Content is raw text;
// FileData is base64 for binary formats (pdf, docx).
type UploadRequest struct {
	BotID    uint   `json:"chatbotId" binding:"required"`
	FileName string `json:"file_name" binding:"required"`
	Content  string `json:"content,omitempty"`
	FileData string `json:"file_data,omitempty"`
}

// RetrieveRequest asks a direct retrieval-augmented question, bypassing
// conversation state.
type RetrieveRequest struct {
	UserID         uint   `json:"userId,omitempty"`
	BotID          uint   `json:"chatbotId" binding:"required"`
	Question       string `json:"question" binding:"required,min=1"`
	ConversationID string `json:"conversationId,omitempty"`
}

// RetrievedChunk is one ranked source in the retrieval response.
type RetrievedChunk struct {
	ID         uint    `json:"id"`
	FileName   string  `json:"file_name"`
	Similarity float32 `json:"similarity"`
}

// RetrieveResponse pairs the generated answer with its ranked sources.
type RetrieveResponse struct {
	Answer string           `json:"answer"`
	Top    []RetrievedChunk `json:"top"`
}

// Embedder is the slice of the embedding client the service needs.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore is the slice of the knowledge store the service needs.
type ChunkStore interface {
	InsertChunks(ctx context.Context, botID, ownerID uint, fileName string, contents []string, vectors [][]float32) (int, error)
	TopChunks(ctx context.Context, botID uint, query []float32, k int, minSimilarity float32) ([]knowledge.ScoredChunk, error)
}

// Completer generates the retrieval answer.
type Completer interface {
	Complete(ctx context.Context, provider, model string, messages []llm.Message, temperature float32) (string, error)
}

// MemoryRecaller supplies remembered turns for the retrieval prompt.
type MemoryRecaller interface {
	Recall(ctx context.Context, userID, botID uint, query []float32, n int) ([]corechat.RecalledTurn, error)
}

// KnowledgeService handles document ingestion and the direct retrieval
// question path.
type KnowledgeService struct {
	cfg       *configs.Config
	logger    *utils.Logger
	embedder  Embedder
	store     ChunkStore
	completer Completer
	memory    MemoryRecaller
}

func NewKnowledgeService(cfg *configs.Config, logger *utils.Logger, embedder Embedder, store ChunkStore, completer Completer, memory MemoryRecaller) *KnowledgeService {
	return &KnowledgeService{
		cfg:       cfg,
		logger:    logger,
		embedder:  embedder,
		store:     store,
		completer: completer,
		memory:    memory,
	}
}

// Ingest extracts, chunks, embeds and stores one document, returning the
// number of chunks written.
func (s *KnowledgeService) Ingest(ctx context.Context, ownerID uint, req *UploadRequest) (int, error) {
	text := req.Content
	if text == "" && req.FileData != "" {
		data, err := base64.StdEncoding.DecodeString(req.FileData)
		if err != nil {
			return 0, fmt.Errorf("file_data is not valid base64: %w", err)
		}
		text, err = extract.Text(req.FileName, data)
		if err != nil {
			return 0, fmt.Errorf("extract %s: %w", req.FileName, err)
		}
	}
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyDocument
	}

	chunks := rag.SplitChunks(text)
	if len(chunks) == 0 {
		return 0, ErrEmptyDocument
	}

	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}

	n, err := s.store.InsertChunks(ctx, req.BotID, ownerID, req.FileName, chunks, vectors)
	if err != nil {
		return 0, err
	}
	s.logger.Info("ingested %s into bot %d as %d chunks", req.FileName, req.BotID, n)
	return n, nil
}

// Retrieve answers a question against a bot's knowledge with the strict
// ranking variant and returns the sources it used.
func (s *KnowledgeService) Retrieve(ctx context.Context, bot *models.Bot, req *RetrieveRequest) (*RetrieveResponse, error) {
	vector, err := s.embedder.EmbedText(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	chunks, err := s.store.TopChunks(ctx, req.BotID, vector, s.cfg.Chat.StrictTopK, s.cfg.Chat.MinSimilarity)
	if err != nil {
		s.logger.Warn("retrieval for bot %d failed: %v", req.BotID, err)
	}

	var snippets []rag.Snippet
	top := make([]RetrievedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		snippets = append(snippets, rag.Snippet{Source: chunk.FileName, Content: chunk.Content})
		top = append(top, RetrievedChunk{ID: chunk.ID, FileName: chunk.FileName, Similarity: chunk.Similarity})
	}

	rules := bot.ParsedRules()

	var turns []rag.Turn
	if s.memory != nil && s.cfg.Chat.MemoryEnabled && rules.UseMemory {
		recalled, err := s.memory.Recall(ctx, req.UserID, req.BotID, vector, s.cfg.Chat.TopK)
		if err != nil {
			s.logger.Warn("memory recall for bot %d failed: %v", req.BotID, err)
		}
		for _, turn := range recalled {
			turns = append(turns, rag.Turn{Role: turn.Role, Content: turn.Content})
		}
	}

	contextBlock := rag.AssembleContext(snippets, turns, s.cfg.Chat.ContextBudget)
	contextContent := "Context:\n" + contextBlock
	if rules.KnowledgeFallback {
		contextContent += "\n\n" + rag.KnowledgeFallbackDirective
	}
	system := rag.BuildSystemPrompt(bot.Name, bot.Directive, bot.KnowledgeText, s.cfg.Chat.ContextBudget)

	answer, err := s.completer.Complete(ctx, bot.Provider, bot.Model, []llm.Message{
		{Role: "system", Content: system},
		{Role: "system", Content: contextContent},
		{Role: "user", Content: req.Question},
	}, bot.Temperature)
	if err != nil {
		return nil, err
	}
	return &RetrieveResponse{Answer: answer, Top: top}, nil
}
