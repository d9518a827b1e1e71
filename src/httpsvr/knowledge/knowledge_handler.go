package knowledge

import (
	"context"
	"errors"
	"net/http"

	"botforge-server/src/core/utils"
	"botforge-server/src/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BotLookup is what the handler needs from the bot service.
type BotLookup interface {
	GetBot(ctx context.Context, id uint) (*models.Bot, error)
	CheckOwnership(ctx context.Context, botID, userID uint) (bool, error)
}

// KnowledgeHandler exposes document upload and the direct retrieval
// endpoint.
type KnowledgeHandler struct {
	service *KnowledgeService
	bots    BotLookup
	logger  *utils.Logger
}

func NewKnowledgeHandler(service *KnowledgeService, bots BotLookup, logger *utils.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{service: service, bots: bots, logger: logger}
}

func (h *KnowledgeHandler) RegisterRoutes(apiGroup *gin.RouterGroup, auth gin.HandlerFunc) {
	apiGroup.POST("/knowledge/upload", auth, h.Upload)
	apiGroup.POST("/retrieve", auth, h.Retrieve)
}

func (h *KnowledgeHandler) getUserID(c *gin.Context) uint {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func (h *KnowledgeHandler) respondError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		h.logger.Warn("%s %s: %s: %v", c.Request.Method, c.Request.URL.Path, message, err)
	}
	utils.Error(c, status, message)
}

// requireOwner verifies the caller owns the bot, writing the response on
// failure.
func (h *KnowledgeHandler) requireOwner(c *gin.Context, botID uint) bool {
	owns, err := h.bots.CheckOwnership(c.Request.Context(), botID, h.getUserID(c))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			h.respondError(c, http.StatusNotFound, "bot not found", nil)
		} else {
			h.respondError(c, http.StatusInternalServerError, "ownership check failed", err)
		}
		return false
	}
	if !owns {
		h.respondError(c, http.StatusForbidden, "only the owner can manage knowledge", nil)
		return false
	}
	return true
}

func (h *KnowledgeHandler) Upload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Content == "" && req.FileData == "" {
		h.respondError(c, http.StatusBadRequest, "content or file_data is required", nil)
		return
	}
	if !h.requireOwner(c, req.BotID) {
		return
	}

	count, err := h.service.Ingest(c.Request.Context(), h.getUserID(c), &req)
	if err != nil {
		if errors.Is(err, ErrEmptyDocument) {
			h.respondError(c, http.StatusBadRequest, err.Error(), nil)
		} else {
			h.logger.Warn("ingest %s failed: %v", req.FileName, err)
			utils.ErrorWithDetail(c, http.StatusInternalServerError, "failed to ingest document", err)
		}
		return
	}
	utils.Created(c, gin.H{"chunks": count})
}

func (h *KnowledgeHandler) Retrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if !h.requireOwner(c, req.BotID) {
		return
	}

	bot, err := h.bots.GetBot(c.Request.Context(), req.BotID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			h.respondError(c, http.StatusNotFound, "bot not found", nil)
		} else {
			h.respondError(c, http.StatusInternalServerError, "failed to load bot", err)
		}
		return
	}

	resp, err := h.service.Retrieve(c.Request.Context(), bot, &req)
	if err != nil {
		h.respondError(c, http.StatusInternalServerError, "retrieval failed", err)
		return
	}
	utils.Success(c, resp)
}
