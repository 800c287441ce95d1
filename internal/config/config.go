package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

const (
	DefaultMaxPending       = 50
	DefaultMaxAgeSeconds    = 21 * 24 * 3600
	DefaultReaperCron       = "0 3 * * *"
	DefaultTopK             = 3
	DefaultMaxAttempts      = 3
	DefaultInitialBackoffMs = 10000
)

type Config struct {
	Port          int               `json:"port"`
	Timezone      string            `json:"timezone"`
	LogConfig     logger.LogConfig  `json:"log_config"`
	Database      DatabaseConfig    `json:"database"`
	FileStore     FileStoreConfig   `json:"file_store"`
	VectorStore   VectorStoreConfig `json:"vector_store"`
	TaskQueue     TaskQueueConfig   `json:"task_queue"`
	AI            AIConfig          `json:"ai"`
	EmbedCache    EmbedCacheConfig  `json:"embed_cache"`
	Retrieval     RetrievalConfig   `json:"retrieval"`
	Ingest        IngestConfig      `json:"ingest"`
	Reaper        ReaperConfig      `json:"reaper"`
	Jobs          JobsConfig        `json:"jobs"`
	CORSAllowlist []string          `json:"cors_allowlist"`
	RateLimit     RateLimitConfig   `json:"rate_limit"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type         string   `json:"type"`
	Dir          string   `json:"dir"`
	StaticPrefix string   `json:"static_prefix"`
	UploadPrefix string   `json:"upload_prefix"`
	S3           S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

type VectorStoreConfig struct {
	Type       string       `json:"type"`
	Collection string       `json:"collection"`
	Dimension  int          `json:"dimension"`
	Qdrant     QdrantConfig `json:"qdrant"`
}

type QdrantConfig struct {
	URL            string `json:"url"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type TaskQueueConfig struct {
	Type       string      `json:"type"`
	MaxPending int         `json:"max_pending"`
	Workers    int         `json:"workers"`
	Redis      RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

type AIProviderConfig struct {
	Name string          `json:"name"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type AIModelRef struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type AIConfig struct {
	Providers      []AIProviderConfig `json:"providers"`
	Generator      []AIModelRef       `json:"generator"`
	Embedder       AIModelRef         `json:"embedder"`
	TimeoutSeconds int                `json:"timeout_seconds"`
	MaxInputChars  int                `json:"max_input_chars"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	DB            bool `json:"db"`
}

type RetrievalConfig struct {
	TopK int `json:"top_k"`
}

type IngestConfig struct {
	MaxAttempts      int     `json:"max_attempts"`
	InitialBackoffMs int     `json:"initial_backoff_ms"`
	MaxUploadBytes   int64   `json:"max_upload_bytes"`
	EmbedQPS         float64 `json:"embed_qps"`
}

type ReaperConfig struct {
	Cron          string `json:"cron"`
	MaxAgeSeconds int64  `json:"max_age_seconds"`
}

type JobsConfig struct {
	EmbeddingCacheCron    string `json:"embedding_cache_cron"`
	EmbeddingCacheTTLDays int    `json:"embedding_cache_ttl_days"`
	IngestTaskCleanupCron string `json:"ingest_task_cleanup_cron"`
	IngestTaskRetainHours int    `json:"ingest_task_retain_hours"`
}

type RateLimitConfig struct {
	Limit         int `json:"limit"`
	WindowSeconds int `json:"window_seconds"`
}

func (c *ReaperConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeSeconds) * time.Second
}

// Location resolves the configured timezone, falling back to the process local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	if err := c.normalizeFileStore(); err != nil {
		return err
	}
	if err := c.normalizeVectorStore(); err != nil {
		return err
	}
	if err := c.normalizeTaskQueue(); err != nil {
		return err
	}
	if err := c.normalizeAI(); err != nil {
		return err
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = DefaultTopK
	}
	if c.Ingest.MaxAttempts <= 0 {
		c.Ingest.MaxAttempts = DefaultMaxAttempts
	}
	if c.Ingest.InitialBackoffMs <= 0 {
		c.Ingest.InitialBackoffMs = DefaultInitialBackoffMs
	}
	if c.Ingest.MaxUploadBytes <= 0 {
		c.Ingest.MaxUploadBytes = 50 << 20
	}
	if c.Reaper.Cron == "" {
		c.Reaper.Cron = DefaultReaperCron
	}
	if c.Reaper.MaxAgeSeconds <= 0 {
		c.Reaper.MaxAgeSeconds = DefaultMaxAgeSeconds
	}
	if c.Jobs.EmbeddingCacheCron == "" {
		c.Jobs.EmbeddingCacheCron = "30 3 * * *"
	}
	if c.Jobs.EmbeddingCacheTTLDays <= 0 {
		c.Jobs.EmbeddingCacheTTLDays = 30
	}
	if c.Jobs.IngestTaskCleanupCron == "" {
		c.Jobs.IngestTaskCleanupCron = "0 * * * *"
	}
	if c.Jobs.IngestTaskRetainHours <= 0 {
		c.Jobs.IngestTaskRetainHours = 7 * 24
	}
	if c.EmbedCache.LRUSize <= 0 {
		c.EmbedCache.LRUSize = 1000
	}
	if c.EmbedCache.LRUTTLSeconds <= 0 {
		c.EmbedCache.LRUTTLSeconds = 3600
	}
	if c.RateLimit.Limit <= 0 {
		c.RateLimit.Limit = 120
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = 60
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	if c.Database.DSN == "" {
		c.Database.DSN = os.Getenv("DATABASE_DSN")
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" && c.Database.DSN == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for postgres")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres")
	}
	return nil
}

func (c *Config) normalizeFileStore() error {
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	if c.FileStore.StaticPrefix == "" {
		c.FileStore.StaticPrefix = "static"
	}
	if c.FileStore.UploadPrefix == "" {
		c.FileStore.UploadPrefix = "uploads"
	}
	switch c.FileStore.Type {
	case "local":
		if c.FileStore.Dir == "" {
			return fmt.Errorf("file_store.dir is required for local store")
		}
	case "s3":
		if c.FileStore.S3.Endpoint == "" || c.FileStore.S3.Bucket == "" || c.FileStore.S3.SecretID == "" || c.FileStore.S3.SecretKey == "" {
			return fmt.Errorf("file_store.s3 endpoint/bucket/secret_id/secret_key are required for s3 store")
		}
		if c.FileStore.S3.Region == "" {
			c.FileStore.S3.Region = "us-east-1"
		}
	default:
		return fmt.Errorf("file_store.type must be local or s3")
	}
	return nil
}

func (c *Config) normalizeVectorStore() error {
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = "memory"
	}
	if c.VectorStore.Collection == "" {
		c.VectorStore.Collection = "rag_documents"
	}
	if c.VectorStore.Dimension <= 0 {
		return fmt.Errorf("vector_store.dimension is required")
	}
	switch c.VectorStore.Type {
	case "memory":
	case "pgvector":
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("vector_store pgvector requires database.driver postgres")
		}
	case "qdrant":
		if c.VectorStore.Qdrant.URL == "" {
			c.VectorStore.Qdrant.URL = os.Getenv("QDRANT_URL")
		}
		if c.VectorStore.Qdrant.URL == "" {
			return fmt.Errorf("vector_store.qdrant.url is required")
		}
		if c.VectorStore.Qdrant.APIKey == "" {
			c.VectorStore.Qdrant.APIKey = os.Getenv("QDRANT_API_KEY")
		}
		if c.VectorStore.Qdrant.TimeoutSeconds <= 0 {
			c.VectorStore.Qdrant.TimeoutSeconds = 10
		}
	default:
		return fmt.Errorf("vector_store.type must be memory, pgvector or qdrant")
	}
	return nil
}

func (c *Config) normalizeTaskQueue() error {
	if c.TaskQueue.Type == "" {
		c.TaskQueue.Type = "memory"
	}
	if c.TaskQueue.MaxPending <= 0 {
		c.TaskQueue.MaxPending = DefaultMaxPending
	}
	if c.TaskQueue.Workers <= 0 {
		c.TaskQueue.Workers = 2
	}
	switch c.TaskQueue.Type {
	case "memory":
	case "redis":
		if c.TaskQueue.Redis.Addr == "" {
			c.TaskQueue.Redis.Addr = os.Getenv("REDIS_ADDR")
		}
		if c.TaskQueue.Redis.Addr == "" {
			return fmt.Errorf("task_queue.redis.addr is required")
		}
		if c.TaskQueue.Redis.Key == "" {
			c.TaskQueue.Redis.Key = "ragkb:ingest"
		}
	default:
		return fmt.Errorf("task_queue.type must be memory or redis")
	}
	return nil
}

func (c *Config) normalizeAI() error {
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = 60
	}
	if c.AI.MaxInputChars <= 0 {
		c.AI.MaxInputChars = 20000
	}
	names := make(map[string]struct{}, len(c.AI.Providers))
	for _, p := range c.AI.Providers {
		if p.Name == "" || p.Type == "" {
			return fmt.Errorf("ai.providers entries need name and type")
		}
		names[p.Name] = struct{}{}
	}
	for _, g := range c.AI.Generator {
		if _, ok := names[g.Provider]; !ok {
			return fmt.Errorf("ai.generator references unknown provider %q", g.Provider)
		}
		if g.Model == "" {
			return fmt.Errorf("ai.generator entry for %q needs a model", g.Provider)
		}
	}
	if c.AI.Embedder.Provider != "" {
		if _, ok := names[c.AI.Embedder.Provider]; !ok {
			return fmt.Errorf("ai.embedder references unknown provider %q", c.AI.Embedder.Provider)
		}
		if c.AI.Embedder.Model == "" {
			return fmt.Errorf("ai.embedder needs a model")
		}
	}
	return nil
}
