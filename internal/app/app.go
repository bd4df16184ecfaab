// Package app wires configuration into the ingestion and query pipeline.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"document-qa/internal/chromemdb"
	"document-qa/internal/chunker"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/embedding"
	"document-qa/internal/llmservice"
	"document-qa/internal/lock"
	"document-qa/internal/memstore"
	"document-qa/internal/parser"
	"document-qa/internal/preocr"
	"document-qa/internal/rag"
)

const ingestLockName = "ingest"

// App holds the assembled pipeline.
type App struct {
	Config    *config.Config
	Store     rag.VectorStore
	Ingestor  *rag.Ingestor
	Retriever *rag.Retriever
	Answerer  *rag.Answerer

	closers []func() error
}

// New builds every collaborator named by cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg}

	embedder, err := embedding.New(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	generator, err := llmservice.New(&cfg.InferenceLLM)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := NewStore(ctx, cfg, embedder.Dimension())
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, closeStore)

	locker, closeLocker, err := NewLocker(ctx, &cfg.Lock)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeLocker)

	a.Ingestor = rag.NewIngestor(
		parser.New(),
		preocr.Classifier{},
		chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		embedder,
		store,
		locker,
		cfg.RAG,
	)
	a.Retriever = rag.NewRetriever(embedder, store, cfg.RAG.UpstreamTimeout)
	a.Answerer = rag.NewAnswerer(a.Retriever, generator, cfg.RAG)

	log.Debug().
		Str("vector_store", cfg.VectorStore.Type).
		Str("lock", cfg.Lock.Type).
		Str("swap_mode", cfg.RAG.SwapMode).
		Msg("Pipeline ready")
	return a, nil
}

// Close releases store and lock connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func noop() error { return nil }

// NewStore opens the vector store selected by cfg.VectorStore.Type.
func NewStore(ctx context.Context, cfg *config.Config, dimension int) (rag.VectorStore, func() error, error) {
	switch cfg.VectorStore.Type {
	case "memory":
		return memstore.New(dimension), noop, nil
	case "chromem":
		m, err := chromemdb.NewVectorDBManager(&cfg.Chromem, dimension)
		if err != nil {
			return nil, nil, err
		}
		return m, noop, nil
	case "pgvector":
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store := db.NewStore(db.NewDB(sqldb, cfg.Database.Debug), dimension)
		if err := store.InitDB(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("initializing database: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector store type: %s", cfg.VectorStore.Type)
	}
}

// NewLocker returns the ingestion lock selected by cfg.Type.
func NewLocker(ctx context.Context, cfg *config.LockConfig) (rag.Locker, func() error, error) {
	switch cfg.Type {
	case "local":
		return lock.NewLocal(), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		l := lock.NewRedis(client, ingestLockName, cfg.Redis.TTL, cfg.Redis.RetryInterval)
		if err := l.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return l, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock type: %s", cfg.Type)
	}
}
