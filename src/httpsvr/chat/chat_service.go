package chat

import (
	"context"
	"fmt"
	"strings"

	"botforge-server/src/configs"
	corechat "botforge-server/src/core/chat"
	"botforge-server/src/core/knowledge"
	"botforge-server/src/core/providers/llm"
	"botforge-server/src/core/rag"
	"botforge-server/src/core/utils"
	"botforge-server/src/models"
)

// Request validation errors, mapped to 400 by the handler.
var (
	ErrNoMessages  = fmt.Errorf("messages must not be empty")
	ErrLastNotUser = fmt.Errorf("last message must have role user")
)

// IncomingMessage is one turn of client-supplied history.
type IncomingMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// ChatRequest is the public completion payload.
type ChatRequest struct {
	ConversationID string            `json:"conversationId,omitempty"`
	UserID         uint              `json:"userId,omitempty"`
	Messages       []IncomingMessage `json:"messages" binding:"required"`
}

// ChatResponse carries the reply; ConversationID is null when logging
// failed on both handles.
type ChatResponse struct {
	Reply          string  `json:"reply"`
	ConversationID *string `json:"conversationId"`
}

// Narrow views of the core services, so the orchestrator can be exercised
// without a database or upstream APIs.

type BotResolver interface {
	GetPublished(ctx context.Context, slug string) (*models.Bot, error)
}

type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type Retriever interface {
	TopChunks(ctx context.Context, botID uint, query []float32, k int, minSimilarity float32) ([]knowledge.ScoredChunk, error)
}

type Completer interface {
	Complete(ctx context.Context, provider, model string, messages []llm.Message, temperature float32) (string, error)
}

type ConversationLog interface {
	Ensure(ctx context.Context, botID uint, conversationID, firstUserMessage string) (*models.Conversation, error)
	Recent(ctx context.Context, conversationID string, n int) ([]models.Message, error)
	AppendExchange(ctx context.Context, conversationID, userContent, assistantContent string) corechat.LogOutcome
}

type MemoryLog interface {
	Append(ctx context.Context, userID, botID uint, conversationID, role, content string, vector []float32) error
	Recall(ctx context.Context, userID, botID uint, query []float32, n int) ([]corechat.RecalledTurn, error)
}

// ChatService runs the completion pipeline for one request.
type ChatService struct {
	cfg    *configs.Config
	logger *utils.Logger

	bots      BotResolver
	embedder  Embedder
	retriever Retriever
	completer Completer
	convs     ConversationLog
	memory    MemoryLog
}

func NewChatService(cfg *configs.Config, logger *utils.Logger, bots BotResolver, embedder Embedder, retriever Retriever, completer Completer, convs ConversationLog, memory MemoryLog) *ChatService {
	return &ChatService{
		cfg:       cfg,
		logger:    logger,
		bots:      bots,
		embedder:  embedder,
		retriever: retriever,
		completer: completer,
		convs:     convs,
		memory:    memory,
	}
}

func validateMessages(msgs []IncomingMessage) (string, error) {
	if len(msgs) == 0 {
		return "", ErrNoMessages
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" {
		return "", ErrLastNotUser
	}
	if strings.TrimSpace(last.Content) == "" {
		return "", ErrNoMessages
	}
	return last.Content, nil
}

// Complete runs the full pipeline. Retrieval, history and logging failures
// degrade with a warning; only upstream completion failures surface.
func (s *ChatService) Complete(ctx context.Context, slug string, req *ChatRequest) (*ChatResponse, error) {
	bot, err := s.bots.GetPublished(ctx, slug)
	if err != nil {
		return nil, err
	}

	question, err := validateMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	rules := bot.ParsedRules()

	// A failed embedding degrades to a retrieval-free answer.
	vector, err := s.embedder.EmbedText(ctx, question)
	if err != nil {
		s.logger.Warn("embed query for bot %q failed: %v", bot.Slug, err)
		vector = nil
	}

	conv, err := s.convs.Ensure(ctx, bot.ID, req.ConversationID, question)
	if err != nil {
		s.logger.Warn("ensure conversation for bot %q failed: %v", bot.Slug, err)
		conv = nil
	}

	var snippets []rag.Snippet
	if vector != nil {
		chunks, err := s.retriever.TopChunks(ctx, bot.ID, vector, s.cfg.Chat.TopK, 0)
		if err != nil {
			s.logger.Warn("retrieval for bot %q failed: %v", bot.Slug, err)
		}
		for _, chunk := range chunks {
			snippets = append(snippets, rag.Snippet{Source: chunk.FileName, Content: chunk.Content})
		}
	}

	var memoryTurns []rag.Turn
	useMemory := s.cfg.Chat.MemoryEnabled && rules.UseMemory && s.memory != nil
	if useMemory && vector != nil {
		recalled, err := s.memory.Recall(ctx, req.UserID, bot.ID, vector, s.cfg.Chat.TopK)
		if err != nil {
			s.logger.Warn("memory recall for bot %q failed: %v", bot.Slug, err)
		}
		for _, turn := range recalled {
			memoryTurns = append(memoryTurns, rag.Turn{Role: turn.Role, Content: turn.Content})
		}
	}

	contextBlock := rag.AssembleContext(snippets, memoryTurns, s.cfg.Chat.ContextBudget)
	contextContent := "Context:\n" + contextBlock
	if rules.KnowledgeFallback {
		contextContent += "\n\n" + rag.KnowledgeFallbackDirective
	}
	system := rag.BuildSystemPrompt(bot.Name, bot.Directive, bot.KnowledgeText, s.cfg.Chat.ContextBudget)

	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "system", Content: contextContent},
	}
	if conv != nil {
		history, err := s.convs.Recent(ctx, conv.ID, s.cfg.Chat.HistoryLimit)
		if err != nil {
			s.logger.Warn("load history for conversation %s failed: %v", conv.ID, err)
		}
		for _, turn := range history {
			messages = append(messages, llm.Message{Role: turn.Role, Content: turn.PlainContent()})
		}
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})

	reply, err := s.completer.Complete(ctx, bot.Provider, bot.Model, messages, bot.Temperature)
	if err != nil {
		return nil, err
	}

	resp := &ChatResponse{Reply: reply}
	if conv != nil {
		outcome := s.convs.AppendExchange(ctx, conv.ID, question, reply)
		if outcome != corechat.LogFailed {
			id := conv.ID
			resp.ConversationID = &id
		}
	}

	if useMemory && vector != nil {
		convID := ""
		if conv != nil {
			convID = conv.ID
		}
		if err := s.memory.Append(ctx, req.UserID, bot.ID, convID, "user", question, vector); err != nil {
			s.logger.Warn("memory append for bot %q failed: %v", bot.Slug, err)
		}
		replyVec, err := s.embedder.EmbedText(ctx, reply)
		if err != nil {
			s.logger.Warn("embed reply for bot %q failed, memory turn dropped: %v", bot.Slug, err)
		} else if err := s.memory.Append(ctx, req.UserID, bot.ID, convID, "assistant", reply, replyVec); err != nil {
			s.logger.Warn("memory append for bot %q failed: %v", bot.Slug, err)
		}
	}

	return resp, nil
}
