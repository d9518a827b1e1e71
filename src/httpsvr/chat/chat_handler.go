package chat

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"botforge-server/src/core/botconfig"
	corechat "botforge-server/src/core/chat"
	"botforge-server/src/core/providers/llm"
	"botforge-server/src/core/utils"
	"botforge-server/src/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// OwnershipChecker gates the operator-side conversation endpoints.
type OwnershipChecker interface {
	CheckOwnership(ctx context.Context, botID, userID uint) (bool, error)
}

// ChatHandler exposes the public completion endpoint and the operator-side
// conversation management endpoints.
type ChatHandler struct {
	service   *ChatService
	convs     *corechat.ConversationStore
	ownership OwnershipChecker
	logger    *utils.Logger
}

func NewChatHandler(service *ChatService, convs *corechat.ConversationStore, ownership OwnershipChecker, logger *utils.Logger) *ChatHandler {
	return &ChatHandler{service: service, convs: convs, ownership: ownership, logger: logger}
}

// RegisterRoutes mounts the routes. The completion endpoint is public by
// design; conversation management requires auth.
func (h *ChatHandler) RegisterRoutes(apiGroup *gin.RouterGroup, auth gin.HandlerFunc) {
	apiGroup.POST("/chat/:slug", h.Chat)

	convGroup := apiGroup.Group("/bots/:id/conversations").Use(auth)
	{
		convGroup.GET("", h.ListConversations)
		convGroup.GET("/:cid/messages", h.ListMessages)
		convGroup.PATCH("/:cid", h.RenameConversation)
		convGroup.DELETE("/:cid", h.DeleteConversation)
		convGroup.POST("/:cid/messages", h.InsertOperatorMessage)
		convGroup.PATCH("/:cid/messages/:mid", h.UpdateOperatorMessage)
		convGroup.DELETE("/:cid/messages/:mid", h.DeleteOperatorMessage)
	}
}

func (h *ChatHandler) getUserID(c *gin.Context) uint {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func (h *ChatHandler) respondError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		h.logger.Warn("%s %s: %s: %v", c.Request.Method, c.Request.URL.Path, message, err)
	}
	utils.Error(c, status, message)
}

// Chat answers one turn for a published bot. No auth: the widget on a
// customer's site calls this directly.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.service.Complete(c.Request.Context(), c.Param("slug"), &req)
	if err != nil {
		switch {
		case errors.Is(err, botconfig.ErrNotPublished):
			h.respondError(c, http.StatusNotFound, "bot not found", nil)
		case errors.Is(err, ErrNoMessages), errors.Is(err, ErrLastNotUser):
			h.respondError(c, http.StatusBadRequest, err.Error(), nil)
		default:
			var provErr *llm.ProviderError
			if errors.As(err, &provErr) {
				h.logger.Warn("completion via %s failed with status %d", provErr.Provider, provErr.StatusCode)
				utils.ErrorWithDetail(c, http.StatusInternalServerError, "upstream completion failed", err)
			} else {
				h.respondError(c, http.StatusInternalServerError, "chat completion failed", err)
			}
		}
		return
	}
	utils.Success(c, resp)
}

// requireBotOwner parses :id and verifies ownership; botID 0 means the
// response is already written.
func (h *ChatHandler) requireBotOwner(c *gin.Context) uint {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		h.respondError(c, http.StatusBadRequest, "invalid bot id", err)
		return 0
	}
	owns, err := h.ownership.CheckOwnership(c.Request.Context(), uint(id), h.getUserID(c))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			h.respondError(c, http.StatusNotFound, "bot not found", nil)
		} else {
			h.respondError(c, http.StatusInternalServerError, "ownership check failed", err)
		}
		return 0
	}
	if !owns {
		h.respondError(c, http.StatusForbidden, "only the owner can view conversations", nil)
		return 0
	}
	return uint(id)
}

// conversation loads :cid and confirms it belongs to the bot.
func (h *ChatHandler) conversation(c *gin.Context, botID uint) *models.Conversation {
	conv, err := h.convs.Get(c.Request.Context(), botID, c.Param("cid"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			h.respondError(c, http.StatusNotFound, "conversation not found", nil)
		} else {
			h.respondError(c, http.StatusInternalServerError, "failed to load conversation", err)
		}
		return nil
	}
	return conv
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	botID := h.requireBotOwner(c)
	if botID == 0 {
		return
	}

	page := utils.ParsePageParams(c, 20, 100)
	convs, err := h.convs.ListByBot(c.Request.Context(), botID, page.PageSize, page.Offset())
	if err != nil {
		h.respondError(c, http.StatusInternalServerError, "failed to list conversations", err)
		return
	}
	utils.Success(c, gin.H{
		"conversations": convs,
		"page":          page.Page,
		"page_size":     page.PageSize,
	})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	botID := h.requireBotOwner(c)
	if botID == 0 {
		return
	}
	conv := h.conversation(c, botID)
	if conv == nil {
		return
	}

	msgs, err := h.convs.Messages(c.Request.Context(), conv.ID)
	if err != nil {
		h.respondError(c, http.StatusInternalServerError, "failed to list messages", err)
		return
	}
	utils.Success(c, gin.H{"messages": msgs})
}

func (h *ChatHandler) RenameConversation(c *gin.Context) {
	botID := h.requireBotOwner(c)
	if botID == 0 {
		return
	}
	conv := h.conversation(c, botID)
	if conv == nil {
		return
	}

	var req struct {
		Title string `json:"title" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "title is required", err)
		return
	}

	if err := h.convs.Rename(c.Request.Context(), conv.ID, req.Title); err != nil {
		h.respondError(c, http.StatusInternalServerError, "failed to rename conversation", err)
		return
	}
	utils.Success(c, gin.H{"renamed": true})
}

func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	botID := h.requireBotOwner(c)
	if botID == 0 {
		return
	}
	conv := h.conversation(c, botID)
	if conv == nil {
		return
	}

	if err := h.convs.Delete(c.Request.Context(), conv.ID); err != nil {
		h.respondError(c, http.StatusInternalServerError, "failed to delete conversation", err)
		return
	}
	utils.Success(c, gin.H{"deleted": true})
}

// InsertOperatorMessage lets a human operator drop an assistant turn into
// a live conversation. The message is marker-tagged for later edit/delete.
func (h *ChatHandler) InsertOperatorMessage(c *gin.Context) {
	botID := h.requireBotOwner(c)
	if botID == 0 {
		return
	}
	conv := h.conversation(c, botID)
	if conv == nil {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "content is required", err)
		return
	}

	msg, err := h.convs.InsertOperatorMessage(c.Request.Context(), conv.ID, req.Content)
	if err != nil {
		h.respondError(c, http.StatusInternalServerError, "failed to insert message", err)
		return
	}
	utils.Created(c, msg)
}

func (h *ChatHandler) messageID(c *gin.Context) uint {
	id, err := strconv.ParseUint(c.Param("mid"), 10, 32)
	if err != nil || id == 0 {
		h.respondError(c, http.StatusBadRequest, "invalid message id", err)
		return 0
	}
	return uint(id)
}

func (h *ChatHandler) UpdateOperatorMessage(c *gin.Context) {
	botID := h.requireBotOwner(c)
	if botID == 0 {
		return
	}
	if h.conversation(c, botID) == nil {
		return
	}
	mid := h.messageID(c)
	if mid == 0 {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "content is required", err)
		return
	}

	msg, err := h.convs.UpdateOperatorMessage(c.Request.Context(), mid, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, corechat.ErrNotOperatorMessage):
			h.respondError(c, http.StatusBadRequest, "only operator messages can be edited", nil)
		case err == gorm.ErrRecordNotFound:
			h.respondError(c, http.StatusNotFound, "message not found", nil)
		default:
			h.respondError(c, http.StatusInternalServerError, "failed to update message", err)
		}
		return
	}
	utils.Success(c, msg)
}

func (h *ChatHandler) DeleteOperatorMessage(c *gin.Context) {
	botID := h.requireBotOwner(c)
	if botID == 0 {
		return
	}
	if h.conversation(c, botID) == nil {
		return
	}
	mid := h.messageID(c)
	if mid == 0 {
		return
	}

	if err := h.convs.DeleteOperatorMessage(c.Request.Context(), mid); err != nil {
		switch {
		case errors.Is(err, corechat.ErrNotOperatorMessage):
			h.respondError(c, http.StatusBadRequest, "only operator messages can be deleted", nil)
		case err == gorm.ErrRecordNotFound:
			h.respondError(c, http.StatusNotFound, "message not found", nil)
		default:
			h.respondError(c, http.StatusInternalServerError, "failed to delete message", err)
		}
		return
	}
	utils.Success(c, gin.H{"deleted": true})
}
