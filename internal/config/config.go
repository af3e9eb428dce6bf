package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Storage   StorageConfig
	Vector    VectorConfig
	Ingest    IngestConfig
	Query     QueryConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	GeminiKey        string
	OllamaURL        string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
	Temperature      float64
}

type EmbeddingConfig struct {
	Provider string
	Model    string
	CacheTTL time.Duration
}

type StorageConfig struct {
	Backend     string // "supabase", "s3" or "memory"
	SupabaseURL string
	SupabaseKey string
	Bucket      string
	AWSRegion   string
	AWSKey      string
	AWSSecret   string
}

type VectorConfig struct {
	Backend string // "pgvector" or "memory"
}

type IngestConfig struct {
	ChunkSize         int
	ChunkOverlap      int
	BatchSize         int
	MetadataTextLimit int
	Timeout           time.Duration
	ProcessingLease   time.Duration
}

type QueryConfig struct {
	TopK    int
	Timeout time.Duration
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	floatVar := func(key string, fallback float64) float64 {
		v, err := getEnvFloat(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	durationVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           intVar("SERVER_PORT", 8080),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       intVar("DB_MAX_CONNS", 20),
			MinConns:       intVar("DB_MIN_CONNS", 2),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			GeminiKey:        getEnv("GEMINI_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "gemini"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gemini-1.5-flash"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       intVar("LLM_MAX_RETRIES", 0),
			Temperature:      floatVar("LLM_TEMPERATURE", 0.2),
		},
		Embedding: EmbeddingConfig{
			Provider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			Model:    getEnv("EMBEDDING_MODEL", "embedding-001"),
			CacheTTL: durationVar("EMBEDDING_CACHE_TTL", 24*time.Hour),
		},
		Storage: StorageConfig{
			Backend:     getEnv("STORAGE_BACKEND", "supabase"),
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "documents"),
			AWSRegion:   getEnv("AWS_REGION", ""),
			AWSKey:      getEnv("AWS_ACCESS_KEY_ID", ""),
			AWSSecret:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Vector: VectorConfig{
			Backend: getEnv("VECTOR_BACKEND", "pgvector"),
		},
		Ingest: IngestConfig{
			ChunkSize:         intVar("CHUNK_SIZE", 1000),
			ChunkOverlap:      intVar("CHUNK_OVERLAP", 200),
			BatchSize:         intVar("EMBED_BATCH_SIZE", 10),
			MetadataTextLimit: intVar("METADATA_TEXT_LIMIT", 1000),
			Timeout:           durationVar("INGEST_TIMEOUT", 540*time.Second),
			ProcessingLease:   durationVar("PROCESSING_LEASE", 10*time.Minute),
		},
		Query: QueryConfig{
			TopK:    intVar("QUERY_TOP_K", 5),
			Timeout: durationVar("QUERY_TIMEOUT", 60*time.Second),
		},
		RateLimit: RateLimitConfig{
			RPS:   floatVar("RATE_LIMIT_RPS", 20),
			Burst: intVar("RATE_LIMIT_BURST", 40),
		},
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var problems []string
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.Ingest.ChunkSize <= 0 {
		problems = append(problems, "CHUNK_SIZE must be positive")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		problems = append(problems, "CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if c.Ingest.BatchSize <= 0 {
		problems = append(problems, "EMBED_BATCH_SIZE must be positive")
	}
	if c.Ingest.MetadataTextLimit <= 0 {
		problems = append(problems, "METADATA_TEXT_LIMIT must be positive")
	}
	if c.Query.TopK <= 0 {
		problems = append(problems, "QUERY_TOP_K must be positive")
	}
	switch c.Vector.Backend {
	case "pgvector", "memory":
	default:
		problems = append(problems, fmt.Sprintf("VECTOR_BACKEND %q is not supported", c.Vector.Backend))
	}
	switch c.Storage.Backend {
	case "supabase", "s3", "memory":
	default:
		problems = append(problems, fmt.Sprintf("STORAGE_BACKEND %q is not supported", c.Storage.Backend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
