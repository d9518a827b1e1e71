package llm

import (
	"context"
	"strings"

	"botforge-server/src/configs"
	"botforge-server/src/core/utils"
	"botforge-server/src/models"
)

// DefaultTemperature applies when a bot carries no explicit setting.
const DefaultTemperature float32 = 0.6

// ResolveProvider picks the provider for a model identifier once, at bot
// save time. Deepseek-prefixed identifiers pin the alternate provider;
// otherwise the gateway takes priority when configured; the primary
// provider is the default.
func ResolveProvider(model string, cfg *configs.Config) string {
	if strings.HasPrefix(strings.ToLower(model), models.ProviderDeepSeek) {
		return models.ProviderDeepSeek
	}
	if cfg.OpenRouter.APIKey != "" && cfg.OpenRouter.Priority {
		return models.ProviderOpenRouter
	}
	return models.ProviderOpenAI
}

// Router dispatches completion requests to exactly one provider path.
type Router struct {
	cfg        *configs.Config
	logger     *utils.Logger
	openai     *openaiClient
	deepseek   *deepseekClient
	openrouter *openrouterClient
}

// NewRouter wires the three provider clients from config.
func NewRouter(cfg *configs.Config, logger *utils.Logger) *Router {
	return &Router{
		cfg:        cfg,
		logger:     logger,
		openai:     newOpenAIClient(cfg.OpenAI),
		deepseek:   newDeepSeekClient(cfg.DeepSeek),
		openrouter: newOpenRouterClient(cfg.OpenRouter),
	}
}

// Complete routes the message list to the provider stored on the bot.
// When the last user turn carries images, the content is restructured into
// multi-part form and the model is overridden to the vision-capable one,
// regardless of the bot's configured model.
func (r *Router) Complete(ctx context.Context, provider, model string, messages []Message, temperature float32) (string, error) {
	if model == "" {
		model = r.cfg.Chat.DefaultModel
	}
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	if provider == "" {
		// rows saved before the provider column existed
		provider = ResolveProvider(model, r.cfg)
	}

	if n := len(messages); n > 0 {
		last := messages[n-1]
		if last.Role == models.RoleUser && HasImages(last.Content) {
			// rewrite on a copy so the caller's slice stays intact
			rewritten := make([]Message, n)
			copy(rewritten, messages)
			rewritten[n-1] = ToVisionMessage(last)
			messages = rewritten
			model = r.cfg.OpenAI.VisionModel
			provider = models.ProviderOpenAI
			r.logger.Info("vision input detected, overriding model to %s", model)
		}
	}

	switch provider {
	case models.ProviderDeepSeek:
		return r.deepseek.Complete(ctx, model, messages, temperature)
	case models.ProviderOpenRouter:
		return r.openrouter.Complete(ctx, model, messages, temperature)
	default:
		return r.openai.Complete(ctx, model, messages, temperature)
	}
}
