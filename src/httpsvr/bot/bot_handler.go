package bot

import (
	"net/http"
	"strconv"

	"botforge-server/src/configs"
	"botforge-server/src/core/botconfig"
	"botforge-server/src/core/utils"
	"botforge-server/src/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BotHandler exposes the builder-side bot CRUD endpoints.
type BotHandler struct {
	botService BotService
	published  botconfig.Service
	logger     *utils.Logger
}

func NewBotHandler(db *gorm.DB, cfg *configs.Config, published botconfig.Service, logger *utils.Logger) *BotHandler {
	return &BotHandler{
		botService: NewBotService(db, cfg, logger),
		published:  published,
		logger:     logger,
	}
}

// RegisterRoutes mounts the bot routes. auth guards everything here; the
// public read path lives on the chat handler instead.
func (h *BotHandler) RegisterRoutes(apiGroup *gin.RouterGroup, auth gin.HandlerFunc) {
	botGroup := apiGroup.Group("/bots").Use(auth)
	{
		botGroup.POST("", h.CreateBot)
		botGroup.GET("", h.ListBots)
		botGroup.GET("/:id", h.GetBot)
		botGroup.PATCH("/:id", h.UpdateBot)
		botGroup.DELETE("/:id", h.DeleteBot)
		botGroup.DELETE("/:id/purge", h.PurgeBot)
	}
}

func (h *BotHandler) getUserID(c *gin.Context) uint {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func (h *BotHandler) respondError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		h.logger.Warn("%s %s: %s: %v", c.Request.Method, c.Request.URL.Path, message, err)
	}
	utils.Error(c, status, message)
}

// botID parses the :id path param; 0 means the response is already written.
func (h *BotHandler) botID(c *gin.Context) uint {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		h.respondError(c, http.StatusBadRequest, "invalid bot id", err)
		return 0
	}
	return uint(id)
}

// requireOwner checks that the caller owns the bot, writing the error
// response itself when not.
func (h *BotHandler) requireOwner(c *gin.Context, botID uint) bool {
	owns, err := h.botService.CheckOwnership(c.Request.Context(), botID, h.getUserID(c))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			h.respondError(c, http.StatusNotFound, "bot not found", nil)
		} else {
			h.respondError(c, http.StatusInternalServerError, "ownership check failed", err)
		}
		return false
	}
	if !owns {
		h.respondError(c, http.StatusForbidden, "only the owner can manage this bot", nil)
		return false
	}
	return true
}

func (h *BotHandler) CreateBot(c *gin.Context) {
	var req models.CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	bot, err := h.botService.CreateBot(c.Request.Context(), h.getUserID(c), &req)
	if err != nil {
		h.respondError(c, http.StatusInternalServerError, "failed to create bot", err)
		return
	}
	utils.Created(c, bot.ToResponse())
}

func (h *BotHandler) GetBot(c *gin.Context) {
	id := h.botID(c)
	if id == 0 {
		return
	}
	if !h.requireOwner(c, id) {
		return
	}

	bot, err := h.botService.GetBot(c.Request.Context(), id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			h.respondError(c, http.StatusNotFound, "bot not found", nil)
		} else {
			h.respondError(c, http.StatusInternalServerError, "failed to load bot", err)
		}
		return
	}
	utils.Success(c, bot.ToResponse())
}

func (h *BotHandler) ListBots(c *gin.Context) {
	page := utils.ParsePageParams(c, 20, 100)
	bots, err := h.botService.ListBots(c.Request.Context(), h.getUserID(c), page.PageSize, page.Offset())
	if err != nil {
		h.respondError(c, http.StatusInternalServerError, "failed to list bots", err)
		return
	}

	responses := make([]*models.BotResponse, 0, len(bots))
	for _, bot := range bots {
		responses = append(responses, bot.ToResponse())
	}
	utils.Success(c, gin.H{
		"bots":      responses,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}

func (h *BotHandler) UpdateBot(c *gin.Context) {
	id := h.botID(c)
	if id == 0 {
		return
	}
	if !h.requireOwner(c, id) {
		return
	}

	var req models.UpdateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	bot, err := h.botService.UpdateBot(c.Request.Context(), id, &req)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			h.respondError(c, http.StatusNotFound, "bot not found", nil)
		} else {
			h.respondError(c, http.StatusBadRequest, "failed to update bot", err)
		}
		return
	}
	h.published.Invalidate(c.Request.Context(), bot.Slug)
	utils.Success(c, bot.ToResponse())
}

func (h *BotHandler) DeleteBot(c *gin.Context) {
	id := h.botID(c)
	if id == 0 {
		return
	}
	if !h.requireOwner(c, id) {
		return
	}

	bot, err := h.botService.GetBot(c.Request.Context(), id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			h.respondError(c, http.StatusNotFound, "bot not found", nil)
		} else {
			h.respondError(c, http.StatusInternalServerError, "failed to load bot", err)
		}
		return
	}

	if err := h.botService.SoftDeleteBot(c.Request.Context(), id); err != nil {
		h.respondError(c, http.StatusInternalServerError, "failed to delete bot", err)
		return
	}
	h.published.Invalidate(c.Request.Context(), bot.Slug)
	utils.Success(c, gin.H{"deleted": true})
}

func (h *BotHandler) PurgeBot(c *gin.Context) {
	id := h.botID(c)
	if id == 0 {
		return
	}
	if !h.requireOwner(c, id) {
		return
	}

	// slug lookup must see soft-deleted rows: purge usually follows a delete
	slug := ""
	if bot, err := h.botService.GetBotAnyState(c.Request.Context(), id); err == nil {
		slug = bot.Slug
	}

	if err := h.botService.PurgeBot(c.Request.Context(), id); err != nil {
		if err == gorm.ErrRecordNotFound {
			h.respondError(c, http.StatusNotFound, "bot not found", nil)
		} else {
			h.respondError(c, http.StatusInternalServerError, "failed to purge bot", err)
		}
		return
	}
	if slug != "" {
		h.published.Invalidate(c.Request.Context(), slug)
	}
	utils.Success(c, gin.H{"purged": true})
}
