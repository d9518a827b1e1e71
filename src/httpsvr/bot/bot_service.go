package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"botforge-server/src/configs"
	"botforge-server/src/core/providers/llm"
	"botforge-server/src/core/utils"
	"botforge-server/src/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BotService owns builder-side bot configuration.
type BotService interface {
	CreateBot(ctx context.Context, ownerID uint, req *models.CreateBotRequest) (*models.Bot, error)
	GetBot(ctx context.Context, id uint) (*models.Bot, error)
	GetBotAnyState(ctx context.Context, id uint) (*models.Bot, error)
	GetBotBySlug(ctx context.Context, slug string) (*models.Bot, error)
	ListBots(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Bot, error)
	UpdateBot(ctx context.Context, id uint, req *models.UpdateBotRequest) (*models.Bot, error)
	SoftDeleteBot(ctx context.Context, id uint) error
	PurgeBot(ctx context.Context, id uint) error
	CheckOwnership(ctx context.Context, botID, userID uint) (bool, error)
}

// DefaultBotService is the gorm-backed implementation.
type DefaultBotService struct {
	db     *gorm.DB
	cfg    *configs.Config
	logger *utils.Logger
}

func NewBotService(db *gorm.DB, cfg *configs.Config, logger *utils.Logger) BotService {
	return &DefaultBotService{db: db, cfg: cfg, logger: logger}
}

// validateRules decodes the free-form rules payload into the typed bag.
// Known flags bind directly; anything else lands in Extra.
func validateRules(raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var incoming map[string]json.RawMessage
	if err := json.Unmarshal(raw, &incoming); err != nil {
		return nil, fmt.Errorf("rules must be a JSON object: %w", err)
	}

	rules := models.BotRules{Extra: map[string]string{}}
	for key, value := range incoming {
		switch key {
		case "knowledge_fallback":
			if err := json.Unmarshal(value, &rules.KnowledgeFallback); err != nil {
				return nil, fmt.Errorf("rules.knowledge_fallback must be a boolean")
			}
		case "use_memory":
			if err := json.Unmarshal(value, &rules.UseMemory); err != nil {
				return nil, fmt.Errorf("rules.use_memory must be a boolean")
			}
		case "extra":
			if err := json.Unmarshal(value, &rules.Extra); err != nil {
				return nil, fmt.Errorf("rules.extra must be a string map")
			}
		default:
			// unknown keys are kept, not silently dropped
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				s = string(value)
			}
			rules.Extra[key] = s
		}
	}
	if len(rules.Extra) == 0 {
		rules.Extra = nil
	}

	out, err := json.Marshal(rules)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

// uniqueSlug returns the base slug, suffixed when already taken.
func (s *DefaultBotService) uniqueSlug(ctx context.Context, base string) (string, error) {
	if base == "" {
		base = "bot"
	}
	slug := base
	for attempt := 0; attempt < 5; attempt++ {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Bot{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = base + "-" + utils.SlugSuffix()
	}
	return "", fmt.Errorf("could not allocate a unique slug for %q", base)
}

func (s *DefaultBotService) CreateBot(ctx context.Context, ownerID uint, req *models.CreateBotRequest) (*models.Bot, error) {
	slugBase := req.Slug
	if slugBase == "" {
		slugBase = utils.Slugify(req.Name)
	}
	slug, err := s.uniqueSlug(ctx, utils.Slugify(slugBase))
	if err != nil {
		return nil, err
	}

	rules, err := validateRules(req.Rules)
	if err != nil {
		return nil, err
	}

	bot := &models.Bot{
		OwnerID:         ownerID,
		Slug:            slug,
		Name:            req.Name,
		Directive:       req.Directive,
		Greeting:        req.Greeting,
		KnowledgeText:   req.KnowledgeText,
		Model:           req.Model,
		Temperature:     llm.DefaultTemperature,
		Public:          req.Public,
		BrandColor:      req.BrandColor,
		AvatarURL:       req.AvatarURL,
		BubbleStyle:     req.BubbleStyle,
		TypingIndicator: true,
		Tagline:         req.Tagline,
		Rules:           rules,
	}
	if bot.Model == "" {
		bot.Model = s.cfg.Chat.DefaultModel
	}
	if req.Temperature != nil {
		bot.Temperature = *req.Temperature
	}
	if req.TypingIndicator != nil {
		bot.TypingIndicator = *req.TypingIndicator
	}
	if len(req.StarterQuestions) > 0 {
		if data, err := json.Marshal(req.StarterQuestions); err == nil {
			bot.StarterQuestions = datatypes.JSON(data)
		}
	}
	// provider pinned once at save time, not re-derived per request
	bot.Provider = llm.ResolveProvider(bot.Model, s.cfg)

	if err := s.db.WithContext(ctx).Create(bot).Error; err != nil {
		s.logger.Error("create bot failed: %v", err)
		return nil, err
	}
	s.logger.Info("user %d created bot %q (id %d)", ownerID, bot.Slug, bot.ID)
	return bot, nil
}

func (s *DefaultBotService) GetBot(ctx context.Context, id uint) (*models.Bot, error) {
	var bot models.Bot
	if err := s.db.WithContext(ctx).First(&bot, id).Error; err != nil {
		return nil, err
	}
	return &bot, nil
}

// GetBotAnyState also returns soft-deleted bots, for the purge path.
func (s *DefaultBotService) GetBotAnyState(ctx context.Context, id uint) (*models.Bot, error) {
	var bot models.Bot
	if err := s.db.WithContext(ctx).Unscoped().First(&bot, id).Error; err != nil {
		return nil, err
	}
	return &bot, nil
}

func (s *DefaultBotService) GetBotBySlug(ctx context.Context, slug string) (*models.Bot, error) {
	var bot models.Bot
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&bot).Error; err != nil {
		return nil, err
	}
	return &bot, nil
}

func (s *DefaultBotService) ListBots(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Bot, error) {
	var bots []*models.Bot
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bots).Error
	return bots, err
}

// UpdateBot applies an autosave patch; nil fields are untouched. A model
// change re-resolves the provider.
func (s *DefaultBotService) UpdateBot(ctx context.Context, id uint, req *models.UpdateBotRequest) (*models.Bot, error) {
	bot, err := s.GetBot(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		bot.Name = *req.Name
	}
	if req.Directive != nil {
		bot.Directive = *req.Directive
	}
	if req.Greeting != nil {
		bot.Greeting = *req.Greeting
	}
	if req.KnowledgeText != nil {
		bot.KnowledgeText = *req.KnowledgeText
	}
	if req.Model != nil {
		bot.Model = *req.Model
		bot.Provider = llm.ResolveProvider(bot.Model, s.cfg)
	}
	if req.Temperature != nil {
		bot.Temperature = *req.Temperature
	}
	if req.Public != nil {
		bot.Public = *req.Public
	}
	if req.BrandColor != nil {
		bot.BrandColor = *req.BrandColor
	}
	if req.AvatarURL != nil {
		bot.AvatarURL = *req.AvatarURL
	}
	if req.BubbleStyle != nil {
		bot.BubbleStyle = *req.BubbleStyle
	}
	if req.TypingIndicator != nil {
		bot.TypingIndicator = *req.TypingIndicator
	}
	if req.Tagline != nil {
		bot.Tagline = *req.Tagline
	}
	if req.StarterQuestions != nil {
		if data, err := json.Marshal(req.StarterQuestions); err == nil {
			bot.StarterQuestions = datatypes.JSON(data)
		}
	}
	if len(req.Rules) > 0 {
		rules, err := validateRules(req.Rules)
		if err != nil {
			return nil, err
		}
		bot.Rules = rules
	}

	bot.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(bot).Error; err != nil {
		s.logger.Error("update bot %d failed: %v", id, err)
		return nil, err
	}
	return bot, nil
}

// SoftDeleteBot flags the bot deleted; data stays for purge or restore.
func (s *DefaultBotService) SoftDeleteBot(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Bot{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	s.logger.Info("bot %d soft-deleted", id)
	return nil
}

// PurgeBot hard-deletes the bot and cascades to chunks, conversations,
// messages and memory rows.
func (s *DefaultBotService) PurgeBot(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var convIDs []string
		if err := tx.Model(&models.Conversation{}).Where("bot_id = ?", id).Pluck("id", &convIDs).Error; err != nil {
			return err
		}
		if len(convIDs) > 0 {
			if err := tx.Where("conversation_id IN ?", convIDs).Delete(&models.Message{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("bot_id = ?", id).Delete(&models.Conversation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_id = ?", id).Delete(&models.KnowledgeChunk{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_id = ?", id).Delete(&models.ChatMemory{}).Error; err != nil {
			return err
		}
		result := tx.Unscoped().Delete(&models.Bot{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		s.logger.Info("bot %d purged with %d conversations", id, len(convIDs))
		return nil
	})
}

// CheckOwnership reports whether the user owns the bot (soft-deleted rows
// included, so owners can still purge).
func (s *DefaultBotService) CheckOwnership(ctx context.Context, botID, userID uint) (bool, error) {
	var bot models.Bot
	err := s.db.WithContext(ctx).Unscoped().First(&bot, botID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, gorm.ErrRecordNotFound
		}
		return false, err
	}
	return bot.OwnerID == userID, nil
}
