package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Provider identifiers resolved at save time from the model name.
const (
	ProviderOpenAI     = "openai"
	ProviderDeepSeek   = "deepseek"
	ProviderOpenRouter = "openrouter"
)

// BotRules is the validated form of the free-form rules bag: known feature
// flags plus an explicit extension map. Unknown keys land in Extra instead
// of being silently dropped.
type BotRules struct {
	KnowledgeFallback bool              `json:"knowledge_fallback"` // answer from model knowledge when retrieval finds nothing
	UseMemory         bool              `json:"use_memory"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Bot is one tenant's chatbot configuration.
type Bot struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	OwnerID uint   `gorm:"not null;index" json:"owner_id"`
	Slug    string `gorm:"uniqueIndex;not null" json:"slug"`
	Name    string `gorm:"not null" json:"name"`

	// Behavior
	Directive        string         `gorm:"type:text" json:"directive"`
	Greeting         string         `gorm:"type:text" json:"greeting"`
	KnowledgeText    string         `gorm:"type:text" json:"knowledge_text"`
	StarterQuestions datatypes.JSON `json:"starter_questions,omitempty"`

	// Generation. Provider is resolved once when the bot is saved.
	Model       string  `gorm:"type:varchar(128)" json:"model"`
	Provider    string  `gorm:"type:varchar(20);default:'openai'" json:"provider"`
	Temperature float32 `gorm:"default:0.6" json:"temperature"`

	// Visibility
	Public bool `gorm:"default:false;index" json:"public"`

	// Presentation
	BrandColor      string `gorm:"type:varchar(20)" json:"brand_color"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	BubbleStyle     string `gorm:"type:varchar(20)" json:"bubble_style"`
	TypingIndicator bool   `gorm:"default:true" json:"typing_indicator"`
	Tagline         string `json:"tagline,omitempty"`

	Rules datatypes.JSON `json:"rules,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Bot) TableName() string {
	return "bots"
}

// ParsedRules decodes the stored rules bag; zero value when absent.
func (b *Bot) ParsedRules() BotRules {
	var rules BotRules
	if len(b.Rules) > 0 {
		_ = json.Unmarshal(b.Rules, &rules)
	}
	return rules
}

// BotResponse is the API shape of a bot.
type BotResponse struct {
	ID               uint      `json:"id"`
	OwnerID          uint      `json:"owner_id"`
	Slug             string    `json:"slug"`
	Name             string    `json:"name"`
	Directive        string    `json:"directive"`
	Greeting         string    `json:"greeting"`
	KnowledgeText    string    `json:"knowledge_text,omitempty"`
	StarterQuestions []string  `json:"starter_questions,omitempty"`
	Model            string    `json:"model"`
	Provider         string    `json:"provider"`
	Temperature      float32   `json:"temperature"`
	Public           bool      `json:"public"`
	BrandColor       string    `json:"brand_color,omitempty"`
	AvatarURL        string    `json:"avatar_url,omitempty"`
	BubbleStyle      string    `json:"bubble_style,omitempty"`
	TypingIndicator  bool      `json:"typing_indicator"`
	Tagline          string    `json:"tagline,omitempty"`
	Rules            *BotRules `json:"rules,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ToResponse converts a Bot to its API shape.
func (b *Bot) ToResponse() *BotResponse {
	resp := &BotResponse{
		ID:              b.ID,
		OwnerID:         b.OwnerID,
		Slug:            b.Slug,
		Name:            b.Name,
		Directive:       b.Directive,
		Greeting:        b.Greeting,
		KnowledgeText:   b.KnowledgeText,
		Model:           b.Model,
		Provider:        b.Provider,
		Temperature:     b.Temperature,
		Public:          b.Public,
		BrandColor:      b.BrandColor,
		AvatarURL:       b.AvatarURL,
		BubbleStyle:     b.BubbleStyle,
		TypingIndicator: b.TypingIndicator,
		Tagline:         b.Tagline,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}

	if b.StarterQuestions != nil {
		var questions []string
		if err := json.Unmarshal(b.StarterQuestions, &questions); err == nil {
			resp.StarterQuestions = questions
		}
	}
	if len(b.Rules) > 0 {
		rules := b.ParsedRules()
		resp.Rules = &rules
	}
	return resp
}

// CreateBotRequest is the builder's create payload.
type CreateBotRequest struct {
	Name             string          `json:"name" binding:"required,min=1"`
	Slug             string          `json:"slug,omitempty"`
	Directive        string          `json:"directive,omitempty"`
	Greeting         string          `json:"greeting,omitempty"`
	KnowledgeText    string          `json:"knowledge_text,omitempty"`
	StarterQuestions []string        `json:"starter_questions,omitempty"`
	Model            string          `json:"model,omitempty"`
	Temperature      *float32        `json:"temperature,omitempty"`
	Public           bool            `json:"public,omitempty"`
	BrandColor       string          `json:"brand_color,omitempty"`
	AvatarURL        string          `json:"avatar_url,omitempty"`
	BubbleStyle      string          `json:"bubble_style,omitempty"`
	TypingIndicator  *bool           `json:"typing_indicator,omitempty"`
	Tagline          string          `json:"tagline,omitempty"`
	Rules            json.RawMessage `json:"rules,omitempty"`
}

// UpdateBotRequest is the autosave patch payload; nil fields are untouched.
type UpdateBotRequest struct {
	Name             *string         `json:"name,omitempty"`
	Directive        *string         `json:"directive,omitempty"`
	Greeting         *string         `json:"greeting,omitempty"`
	KnowledgeText    *string         `json:"knowledge_text,omitempty"`
	StarterQuestions []string        `json:"starter_questions,omitempty"`
	Model            *string         `json:"model,omitempty"`
	Temperature      *float32        `json:"temperature,omitempty"`
	Public           *bool           `json:"public,omitempty"`
	BrandColor       *string         `json:"brand_color,omitempty"`
	AvatarURL        *string         `json:"avatar_url,omitempty"`
	BubbleStyle      *string         `json:"bubble_style,omitempty"`
	TypingIndicator  *bool           `json:"typing_indicator,omitempty"`
	Tagline          *string         `json:"tagline,omitempty"`
	Rules            json.RawMessage `json:"rules,omitempty"`
}
