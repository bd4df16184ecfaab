package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/lock"
	"document-qa/internal/memstore"
)

func TestNew_DefaultsToLocalPipeline(t *testing.T) {
	cfg := config.Default()
	cfg.VectorStore.Type = "memory"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &memstore.Store{}, a.Store)
	assert.NotNil(t, a.Ingestor)
	assert.NotNil(t, a.Retriever)
	assert.NotNil(t, a.Answerer)
}

func TestNew_RejectsUnknownSwapMode(t *testing.T) {
	cfg := config.Default()
	cfg.VectorStore.Type = "memory"
	cfg.RAG.SwapMode = "rest"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	t.Run("chromem", func(t *testing.T) {
		cfg := config.Default()
		cfg.Chromem.Path = t.TempDir()
		store, closeFn, err := NewStore(ctx, cfg, 4)
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &chromemdb.VectorDBManager{}, store)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.VectorStore.Type = "milvus"
		_, _, err := NewStore(ctx, cfg, 4)
		assert.ErrorContains(t, err, "unknown vector store type")
	})

	t.Run("unknown database driver", func(t *testing.T) {
		cfg := config.Default()
		cfg.VectorStore.Type = "pgvector"
		cfg.Database.Driver = "mysql"
		_, _, err := NewStore(ctx, cfg, 4)
		assert.ErrorContains(t, err, "unknown database driver")
	})
}

func TestNewLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("local", func(t *testing.T) {
		l, closeFn, err := NewLocker(ctx, &config.LockConfig{Type: "local"})
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &lock.Local{}, l)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Default().Lock
		cfg.Type = "redis"
		cfg.Redis.Addr = mr.Addr()

		l, closeFn, err := NewLocker(ctx, &cfg)
		require.NoError(t, err)
		defer closeFn()

		unlock, err := l.Lock(ctx)
		require.NoError(t, err)
		assert.True(t, mr.Exists("docqa:lock:ingest"))
		unlock()
		assert.False(t, mr.Exists("docqa:lock:ingest"))
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		cfg := config.Default().Lock
		cfg.Type = "redis"
		cfg.Redis.Addr = addr
		_, _, err := NewLocker(ctx, &cfg)
		assert.ErrorContains(t, err, "connecting to redis")
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := NewLocker(ctx, &config.LockConfig{Type: "etcd"})
		assert.Error(t, err)
	})
}
