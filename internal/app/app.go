// Package app assembles the ingestion and query services from configuration.
// Both the API server and the worker are built from it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docchat/internal/api/handlers"
	"github.com/nikhilbhutani/docchat/internal/cache"
	"github.com/nikhilbhutani/docchat/internal/chat"
	"github.com/nikhilbhutani/docchat/internal/config"
	"github.com/nikhilbhutani/docchat/internal/database"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/embedding"
	"github.com/nikhilbhutani/docchat/internal/ingest"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/metrics"
	"github.com/nikhilbhutani/docchat/internal/rag"
	"github.com/nikhilbhutani/docchat/internal/storage"
	"github.com/nikhilbhutani/docchat/internal/vectorstore"
	"github.com/nikhilbhutani/docchat/pkg/chunker"
)

type App struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	LLM        llm.Gateway
	Embeddings *embedding.Service
	Documents  *document.Service
	Ingester   *ingest.Orchestrator
	Engine     *rag.Engine
}

// New connects to the configured backends. Without DATABASE_URL documents,
// chats and vectors are kept in memory; an unreachable redis disables the
// query embedding cache.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	var (
		docStore  document.Store
		chatStore chat.Store
		vectors   vectorstore.Gateway
	)
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.DB = db
		if err := database.RunMigrations(ctx, db, os.DirFS(cfg.Database.MigrationsPath)); err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		docStore = document.NewPostgresStore(db)
		chatStore = chat.NewPostgresStore(db)
	} else {
		slog.Warn("DATABASE_URL not set, keeping documents and chats in memory")
		docStore = document.NewMemoryStore()
		chatStore = chat.NewMemoryStore()
	}

	switch {
	case cfg.Vector.Backend == "pgvector" && a.DB != nil:
		vectors = vectorstore.NewPgVectorStore(a.DB)
	case cfg.Vector.Backend == "pgvector":
		slog.Warn("pgvector backend needs DATABASE_URL, using in-memory vectors")
		vectors = vectorstore.NewMemoryStore()
	default:
		vectors = vectorstore.NewMemoryStore()
	}

	blobs, err := newBlobStore(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}

	gw, err := llm.NewGateway(ctx, cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.LLM = gw

	a.Embeddings = embedding.NewService(gw, cfg.Embedding.Provider, cfg.Embedding.Model)
	if rdb := connectRedis(ctx, cfg.Redis); rdb != nil {
		a.Redis = rdb
		a.Embeddings = a.Embeddings.WithQueryCache(cache.NewCache(rdb, "docchat"), cfg.Embedding.CacheTTL)
	}

	a.Documents = document.NewService(docStore, vectors, blobs)
	a.Ingester = ingest.NewOrchestrator(
		docStore,
		blobs,
		embedding.NewBatcher(a.Embeddings, cfg.Ingest.BatchSize, cfg.Ingest.MetadataTextLimit),
		vectors,
		a.Metrics,
		ingest.Options{
			Chunk:   chunker.ChunkOptions{ChunkSize: cfg.Ingest.ChunkSize, ChunkOverlap: cfg.Ingest.ChunkOverlap},
			Lease:   cfg.Ingest.ProcessingLease,
			Timeout: cfg.Ingest.Timeout,
		},
	)
	a.Engine = rag.NewEngine(a.Embeddings, vectors, gw, chatStore, a.Metrics, rag.Options{
		TopK:        cfg.Query.TopK,
		Timeout:     cfg.Query.Timeout,
		Provider:    cfg.LLM.DefaultProvider,
		Model:       cfg.LLM.DefaultModel,
		Temperature: cfg.LLM.Temperature,
	})
	return a, nil
}

// HealthChecks returns the readiness probes for the connected backends.
func (a *App) HealthChecks() map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{}
	if a.DB != nil {
		checks["database"] = a.DB
	}
	if a.Redis != nil {
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}
	return checks
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("close redis", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func newBlobStore(ctx context.Context, cfg config.StorageConfig) (storage.BlobStore, error) {
	switch cfg.Backend {
	case "s3":
		s, err := storage.NewS3Storage(ctx, cfg.AWSRegion, cfg.AWSKey, cfg.AWSSecret, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return s, nil
	case "memory":
		slog.Warn("using in-memory blob storage")
		return storage.NewMemoryStorage(), nil
	default:
		if cfg.SupabaseURL == "" {
			return nil, errors.New("SUPABASE_URL is required for the supabase storage backend")
		}
		return storage.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Bucket), nil
	}
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without query cache", "error", err)
		rdb.Close()
		return nil
	}
	return rdb
}
