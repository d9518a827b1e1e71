package bot

import (
	"botforge-server/src/configs"
	"botforge-server/src/core/providers/llm"
	"botforge-server/src/core/utils"

	"github.com/gin-gonic/gin"
)

// ModelInfo describes one selectable model in the builder UI.
type ModelInfo struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Provider string `json:"provider"`
	Vision   bool   `json:"vision,omitempty"`
}

type catalogEntry struct {
	ModelInfo
	gatewayOnly bool // reachable only through the gateway
}

var catalogModels = []catalogEntry{
	{ModelInfo: ModelInfo{ID: "gpt-4o", Label: "GPT-4o"}},
	{ModelInfo: ModelInfo{ID: "gpt-4o-mini", Label: "GPT-4o mini"}},
	{ModelInfo: ModelInfo{ID: "gpt-4-turbo", Label: "GPT-4 Turbo"}},
	{ModelInfo: ModelInfo{ID: "gpt-3.5-turbo", Label: "GPT-3.5 Turbo"}},
	{ModelInfo: ModelInfo{ID: "deepseek-chat", Label: "DeepSeek Chat"}},
	{ModelInfo: ModelInfo{ID: "deepseek-reasoner", Label: "DeepSeek Reasoner"}},
	{ModelInfo: ModelInfo{ID: "claude-3-5-sonnet", Label: "Claude 3.5 Sonnet"}, gatewayOnly: true},
	{ModelInfo: ModelInfo{ID: "gemini-1.5-pro", Label: "Gemini 1.5 Pro"}, gatewayOnly: true},
	{ModelInfo: ModelInfo{ID: "llama-3.1-70b-instruct", Label: "Llama 3.1 70B"}, gatewayOnly: true},
	{ModelInfo: ModelInfo{ID: "mistral-large", Label: "Mistral Large"}, gatewayOnly: true},
}

// ModelCatalogHandler serves the model list the builder can pick from.
// Provider attribution uses the same resolution the save path uses, so
// the UI reflects what a saved bot would actually route to.
type ModelCatalogHandler struct {
	cfg *configs.Config
}

func NewModelCatalogHandler(cfg *configs.Config) *ModelCatalogHandler {
	return &ModelCatalogHandler{cfg: cfg}
}

func (h *ModelCatalogHandler) RegisterRoutes(apiGroup *gin.RouterGroup, auth gin.HandlerFunc) {
	apiGroup.GET("/models", auth, h.ListModels)
}

func (h *ModelCatalogHandler) ListModels(c *gin.Context) {
	available := make([]ModelInfo, 0, len(catalogModels))
	for _, entry := range catalogModels {
		if entry.gatewayOnly && h.cfg.OpenRouter.APIKey == "" {
			continue
		}
		m := entry.ModelInfo
		m.Provider = llm.ResolveProvider(m.ID, h.cfg)
		if !h.providerConfigured(m.Provider) {
			continue
		}
		if m.ID == h.cfg.OpenAI.VisionModel {
			m.Vision = true
		}
		available = append(available, m)
	}
	utils.Success(c, gin.H{
		"models":  available,
		"default": h.cfg.Chat.DefaultModel,
	})
}

func (h *ModelCatalogHandler) providerConfigured(provider string) bool {
	switch provider {
	case "deepseek":
		return h.cfg.DeepSeek.APIKey != ""
	case "openrouter":
		return h.cfg.OpenRouter.APIKey != ""
	default:
		return h.cfg.OpenAI.APIKey != ""
	}
}
