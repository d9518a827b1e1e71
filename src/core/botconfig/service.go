package botconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"botforge-server/src/configs"
	"botforge-server/src/core/utils"
	"botforge-server/src/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNotPublished means the slug does not resolve to a public bot.
var ErrNotPublished = fmt.Errorf("bot not found or not published")

// Service resolves published bots for the public chat runtime.
type Service interface {
	// GetPublished returns a public, non-deleted bot by slug.
	GetPublished(ctx context.Context, slug string) (*models.Bot, error)
	// Invalidate drops the cached entry after a builder save.
	Invalidate(ctx context.Context, slug string)
}

// DefaultService backs lookups with the database and an optional redis
// cache keyed by slug; the public chat path hits this on every request.
type DefaultService struct {
	db     *gorm.DB
	cache  *redis.Client
	ttl    time.Duration
	logger *utils.Logger
}

// NewService creates the lookup service; redis is attached only when the
// cache is enabled in config.
func NewService(db *gorm.DB, cfg configs.RedisConfig, logger *utils.Logger) Service {
	svc := &DefaultService{
		db:     db,
		ttl:    time.Duration(cfg.TTL) * time.Second,
		logger: logger,
	}
	if cfg.Enabled {
		svc.cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}
	return svc
}

func cacheKey(slug string) string {
	return "bot:published:" + slug
}

// GetPublished returns a public, non-deleted bot by slug, consulting the
// cache first. Cache failures degrade to a database read.
func (s *DefaultService) GetPublished(ctx context.Context, slug string) (*models.Bot, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey(slug)).Bytes(); err == nil {
			var bot models.Bot
			if err := json.Unmarshal(data, &bot); err == nil {
				return &bot, nil
			}
		}
	}

	var bot models.Bot
	err := s.db.WithContext(ctx).
		Where("slug = ? AND public = ?", slug, true).
		First(&bot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%q: %w", slug, ErrNotPublished)
		}
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(&bot); err == nil {
			if err := s.cache.Set(ctx, cacheKey(slug), data, s.ttl).Err(); err != nil {
				s.logger.Warn("bot cache write failed for %s: %v", slug, err)
			}
		}
	}
	return &bot, nil
}

// Invalidate drops the cached entry; called after builder saves.
func (s *DefaultService) Invalidate(ctx context.Context, slug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(slug)).Err(); err != nil {
		s.logger.Warn("bot cache invalidation failed for %s: %v", slug, err)
	}
}
