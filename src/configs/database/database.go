package database

import (
	"fmt"

	"botforge-server/src/configs"
	"botforge-server/src/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db        *gorm.DB
	serviceDB *gorm.DB
)

func open(dialect, dsn string) (*gorm.DB, error) {
	switch dialect {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	default:
		return nil, fmt.Errorf("unsupported db dialect: %s", dialect)
	}
}

// InitDB opens the primary handle plus an elevated-credential handle when a
// service DSN is configured, then migrates the schema.
func InitDB(cfg *configs.Config) error {
	primary, err := open(cfg.DB.Dialect, cfg.DB.DSN)
	if err != nil {
		return err
	}
	db = primary

	serviceDB = primary
	if cfg.DB.ServiceDSN != "" {
		elevated, err := open(cfg.DB.Dialect, cfg.DB.ServiceDSN)
		if err != nil {
			return fmt.Errorf("open service db: %w", err)
		}
		serviceDB = elevated
	}

	if cfg.DB.Dialect == "postgres" {
		// vector columns need the extension before AutoMigrate sees them
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("enable pgvector: %w", err)
		}
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Bot{},
		&models.KnowledgeChunk{},
		&models.Conversation{},
		&models.Message{},
		&models.ChatMemory{},
	); err != nil {
		return err
	}

	if cfg.DB.Dialect == "postgres" {
		db.Exec("CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_embedding ON knowledge_chunks USING ivfflat (embedding vector_cosine_ops)")
		db.Exec("CREATE INDEX IF NOT EXISTS idx_chat_memories_embedding ON chat_memories USING ivfflat (embedding vector_cosine_ops)")
	}
	return nil
}

// GetDB returns the primary handle.
func GetDB() *gorm.DB {
	return db
}

// GetServiceDB returns the elevated handle (primary when none configured).
func GetServiceDB() *gorm.DB {
	return serviceDB
}
