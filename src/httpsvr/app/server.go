package app

import (
	"fmt"

	"botforge-server/src/configs"
	"botforge-server/src/configs/database"
	"botforge-server/src/core/auth"
	"botforge-server/src/core/botconfig"
	corechat "botforge-server/src/core/chat"
	"botforge-server/src/core/embedding"
	"botforge-server/src/core/knowledge"
	"botforge-server/src/core/middleware"
	"botforge-server/src/core/providers/llm"
	"botforge-server/src/core/utils"
	"botforge-server/src/httpsvr/bot"
	"botforge-server/src/httpsvr/chat"
	httpknowledge "botforge-server/src/httpsvr/knowledge"

	"github.com/gin-gonic/gin"
)

// Server wires every service together and owns the gin engine.
type Server struct {
	cfg    *configs.Config
	logger *utils.Logger
	engine *gin.Engine
}

// NewServer builds the full service graph. Database must be initialized
// before calling.
func NewServer(cfg *configs.Config, logger *utils.Logger) (*Server, error) {
	db := database.GetDB()
	serviceDB := database.GetServiceDB()

	embedder, err := embedding.NewClient(cfg.OpenAI)
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}

	published := botconfig.NewService(db, cfg.RedisCache, logger)
	router := llm.NewRouter(cfg, logger)
	convStore := corechat.NewConversationStore(db, serviceDB, logger)
	memStore := corechat.NewMemoryStore(db, logger)
	chunkStore := knowledge.NewStore(db, logger, embedder.Dimensions())

	botService := bot.NewBotService(db, cfg, logger)
	chatService := chat.NewChatService(cfg, logger, published, embedder, chunkStore, router, convStore, memStore)
	knowledgeService := httpknowledge.NewKnowledgeService(cfg, logger, embedder, chunkStore, router, memStore)

	issuer := auth.NewTokenIssuer(cfg.Server.Auth.JWT)
	authMW := middleware.UserAuth(cfg, issuer)

	if cfg.Log.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.CORS())
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	bot.NewBotHandler(db, cfg, published, logger).RegisterRoutes(api, authMW)
	bot.NewModelCatalogHandler(cfg).RegisterRoutes(api, authMW)
	chat.NewChatHandler(chatService, convStore, botService, logger).RegisterRoutes(api, authMW)
	httpknowledge.NewKnowledgeHandler(knowledgeService, botService, logger).RegisterRoutes(api, authMW)

	return &Server{cfg: cfg, logger: logger, engine: engine}, nil
}

// Run blocks serving HTTP until the listener fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.IP, s.cfg.Server.Port)
	s.logger.Info("listening on %s", addr)
	return s.engine.Run(addr)
}
