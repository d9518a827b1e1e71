package chat

import (
	"context"
	"fmt"
	"strings"

	"botforge-server/src/core/utils"
	"botforge-server/src/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation titles are derived from the first user message.
const titleMaxChars = 60

// LogOutcome is the result of a write-with-fallback persistence attempt.
type LogOutcome int

const (
	LogOK       LogOutcome = iota // primary handle succeeded
	LogDegraded                   // primary failed, elevated handle succeeded
	LogFailed                     // both failed; the reply is still served
)

// ErrNotOperatorMessage rejects edit/delete of model-generated messages.
var ErrNotOperatorMessage = fmt.Errorf("message is not operator-authored")

// ConversationStore persists conversations and messages. Writes go through
// the primary handle first and fall back to the elevated handle, favoring
// availability of the chat reply over durability of the log.
type ConversationStore struct {
	db        *gorm.DB
	serviceDB *gorm.DB
	logger    *utils.Logger
}

func NewConversationStore(db, serviceDB *gorm.DB, logger *utils.Logger) *ConversationStore {
	if serviceDB == nil {
		serviceDB = db
	}
	return &ConversationStore{db: db, serviceDB: serviceDB, logger: logger}
}

// TitleFromContent truncates the first user message into a listing title.
func TitleFromContent(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) > titleMaxChars {
		return string(runes[:titleMaxChars])
	}
	return content
}

// Ensure loads the conversation or lazily creates one titled from the
// first user message.
func (s *ConversationStore) Ensure(ctx context.Context, botID uint, conversationID, firstUserMessage string) (*models.Conversation, error) {
	if conversationID != "" {
		var conv models.Conversation
		err := s.db.WithContext(ctx).Where("id = ? AND bot_id = ?", conversationID, botID).First(&conv).Error
		if err == nil {
			return &conv, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		// unknown id: fall through and create a fresh conversation
	}

	conv := models.Conversation{
		ID:    uuid.NewString(),
		BotID: botID,
		Title: TitleFromContent(firstUserMessage),
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *ConversationStore) appendWith(ctx context.Context, db *gorm.DB, conversationID string, turns []models.Message) error {
	for i := range turns {
		turns[i].ConversationID = conversationID
		// clear primary keys a rolled-back earlier attempt may have assigned
		turns[i].ID = 0
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&turns).Error; err != nil {
			return err
		}
		// bump recency ordering
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
	})
}

// AppendExchange logs the user/assistant turn pair. Primary credentials
// first, elevated on failure; a double failure is reported as an outcome,
// never as an error.
func (s *ConversationStore) AppendExchange(ctx context.Context, conversationID, userContent, assistantContent string) LogOutcome {
	turns := []models.Message{
		{Role: models.RoleUser, Content: userContent},
		{Role: models.RoleAssistant, Content: assistantContent},
	}
	if err := s.appendWith(ctx, s.db, conversationID, turns); err == nil {
		return LogOK
	} else {
		s.logger.Warn("primary conversation write failed for %s: %v", conversationID, err)
	}
	if err := s.appendWith(ctx, s.serviceDB, conversationID, turns); err == nil {
		return LogDegraded
	} else {
		s.logger.Error("elevated conversation write failed for %s: %v", conversationID, err)
	}
	return LogFailed
}

// Recent returns the last n turns in chronological order.
func (s *ConversationStore) Recent(ctx context.Context, conversationID string, n int) ([]models.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	var rows []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// Messages returns all turns in creation order.
func (s *ConversationStore) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var rows []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// ListByBot returns conversations most-recently-updated first.
func (s *ConversationStore) ListByBot(ctx context.Context, botID uint, limit, offset int) ([]models.Conversation, error) {
	var rows []models.Conversation
	err := s.db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

// Get loads a conversation scoped to its bot.
func (s *ConversationStore) Get(ctx context.Context, botID uint, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).Where("id = ? AND bot_id = ?", conversationID, botID).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Rename sets a new title.
func (s *ConversationStore) Rename(ctx context.Context, conversationID, title string) error {
	return s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("title", TitleFromContent(title)).Error
}

// Delete removes the conversation and its messages.
func (s *ConversationStore) Delete(ctx context.Context, conversationID string) error {
	if err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&models.Message{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("id = ?", conversationID).Delete(&models.Conversation{}).Error
}

// InsertOperatorMessage appends a marker-tagged assistant turn authored by
// a human operator.
func (s *ConversationStore) InsertOperatorMessage(ctx context.Context, conversationID, content string) (*models.Message, error) {
	msg := models.Message{
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        models.TagOperator(content),
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}
	s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP"))
	return &msg, nil
}

func (s *ConversationStore) operatorMessage(ctx context.Context, messageID uint) (*models.Message, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).First(&msg, messageID).Error; err != nil {
		return nil, err
	}
	if !msg.IsOperatorAuthored() {
		return nil, ErrNotOperatorMessage
	}
	return &msg, nil
}

// UpdateOperatorMessage edits an operator-authored message; model-generated
// messages are rejected.
func (s *ConversationStore) UpdateOperatorMessage(ctx context.Context, messageID uint, content string) (*models.Message, error) {
	msg, err := s.operatorMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	msg.Content = models.TagOperator(content)
	if err := s.db.WithContext(ctx).Save(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// DeleteOperatorMessage deletes an operator-authored message only.
func (s *ConversationStore) DeleteOperatorMessage(ctx context.Context, messageID uint) error {
	msg, err := s.operatorMessage(ctx, messageID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(msg).Error
}
