package configs

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// JWTConfig signing settings for user tokens
type JWTConfig struct {
	Key         string `yaml:"key" json:"key"`
	Issuer      string `yaml:"issuer" json:"issuer"`
	ExpiryHours int    `yaml:"expiry_hours" json:"expiry_hours"`
}

// RedisConfig optional published-bot config cache
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	TTL      int    `yaml:"ttl" json:"ttl"` // seconds
}

// DBConfig database connections. ServiceDSN is the elevated-credential
// handle used by the write-with-fallback path; when empty the primary
// handle is reused.
type DBConfig struct {
	Dialect    string `yaml:"dialect" json:"dialect"` // postgres/sqlite
	DSN        string `yaml:"dsn" json:"dsn"`
	ServiceDSN string `yaml:"service_dsn" json:"service_dsn"`
}

// OpenAIConfig primary provider and embeddings
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key" json:"api_key"`
	BaseURL        string `yaml:"base_url" json:"base_url"`
	EmbeddingModel string `yaml:"embedding_model" json:"embedding_model"`
	EmbeddingDims  int    `yaml:"embedding_dims" json:"embedding_dims"`
	VisionModel    string `yaml:"vision_model" json:"vision_model"`
}

// DeepSeekConfig alternate reasoning provider
type DeepSeekConfig struct {
	APIKey  string `yaml:"api_key" json:"api_key"`
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// OpenRouterConfig gateway provider. Priority routes non-deepseek models
// through the gateway whenever the key is present.
type OpenRouterConfig struct {
	APIKey   string `yaml:"api_key" json:"api_key"`
	BaseURL  string `yaml:"base_url" json:"base_url"`
	Priority bool   `yaml:"priority" json:"priority"`
	Referer  string `yaml:"referer" json:"referer"`
	Title    string `yaml:"title" json:"title"`
}

// ChatConfig pipeline tuning knobs
type ChatConfig struct {
	DefaultModel       string  `yaml:"default_model" json:"default_model"`
	DefaultTemperature float32 `yaml:"default_temperature" json:"default_temperature"`
	ContextBudget      int     `yaml:"context_budget" json:"context_budget"` // characters
	TopK               int     `yaml:"top_k" json:"top_k"`
	StrictTopK         int     `yaml:"strict_top_k" json:"strict_top_k"`
	MinSimilarity      float32 `yaml:"min_similarity" json:"min_similarity"`
	HistoryLimit       int     `yaml:"history_limit" json:"history_limit"`
	MemoryEnabled      bool    `yaml:"memory_enabled" json:"memory_enabled"`
}

// Config main configuration structure
type Config struct {
	Server struct {
		IP   string `yaml:"ip" json:"ip"`
		Port int    `yaml:"port" json:"port"`
		Auth struct {
			Enabled bool      `yaml:"enabled" json:"enabled"`
			DevMode bool      `yaml:"dev_mode" json:"dev_mode"` // skip auth, fixed user
			JWT     JWTConfig `yaml:"jwt" json:"jwt"`
		} `yaml:"auth" json:"auth"`
	} `yaml:"server" json:"server"`

	DB         DBConfig    `yaml:"db" json:"db"`
	RedisCache RedisConfig `yaml:"redis_cache" json:"redis_cache"`

	Log struct {
		LogLevel string `yaml:"log_level" json:"log_level"`
		LogDir   string `yaml:"log_dir" json:"log_dir"`
		LogFile  string `yaml:"log_file" json:"log_file"`
	} `yaml:"log" json:"log"`

	OpenAI     OpenAIConfig     `yaml:"openai" json:"openai"`
	DeepSeek   DeepSeekConfig   `yaml:"deepseek" json:"deepseek"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" json:"openrouter"`
	Chat       ChatConfig       `yaml:"chat" json:"chat"`
}

var (
	Cfg *Config
)

func (cfg *Config) ToString() string {
	data, _ := yaml.Marshal(cfg)
	return string(data)
}

func (cfg *Config) FromString(data string) error {
	return yaml.Unmarshal([]byte(data), cfg)
}

func (cfg *Config) setDefaults() {
	cfg.Server.IP = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Server.Auth.Enabled = true
	cfg.Server.Auth.JWT.Issuer = "botforge"
	cfg.Server.Auth.JWT.ExpiryHours = 72

	cfg.DB.Dialect = "sqlite"
	cfg.DB.DSN = "botforge.db"

	cfg.RedisCache.Addr = "localhost:6379"
	cfg.RedisCache.TTL = 300

	cfg.Log.LogDir = "logs"
	cfg.Log.LogLevel = "INFO"
	cfg.Log.LogFile = "server.log"

	cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	cfg.OpenAI.EmbeddingDims = 1536
	cfg.OpenAI.VisionModel = "gpt-4o"

	cfg.DeepSeek.BaseURL = "https://api.deepseek.com"
	cfg.OpenRouter.BaseURL = "https://openrouter.ai/api/v1"
	cfg.OpenRouter.Title = "BotForge"

	cfg.Chat.DefaultModel = "gpt-4o-mini"
	cfg.Chat.DefaultTemperature = 0.6
	cfg.Chat.ContextBudget = 8000
	cfg.Chat.TopK = 3
	cfg.Chat.StrictTopK = 5
	cfg.Chat.MinSimilarity = 0.3
	cfg.Chat.HistoryLimit = 10
	cfg.Chat.MemoryEnabled = true
}

// applyEnv lets deployment credentials override the file, so a .env is
// enough to run without a config.yaml.
func (cfg *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		cfg.DeepSeek.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.OpenRouter.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_PRIORITY"); v == "1" || v == "true" {
		cfg.OpenRouter.Priority = true
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DB.Dialect = "postgres"
		cfg.DB.DSN = v
	}
	if v := os.Getenv("DATABASE_SERVICE_URL"); v != "" {
		cfg.DB.ServiceDSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Server.Auth.JWT.Key = v
	}
	if v := os.Getenv("DEV_MODE"); v == "1" || v == "true" {
		cfg.Server.Auth.DevMode = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisCache.Enabled = true
		cfg.RedisCache.Addr = v
	}
}

// LoadConfig reads config.yaml if present, then applies env overrides.
func LoadConfig() (*Config, string, error) {
	_ = godotenv.Load()

	config := &Config{}
	config.setDefaults()

	path := "config.yaml"
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, path, err
		}
	}

	config.applyEnv()
	Cfg = config
	return config, path, nil
}
