// Package rag holds the ingestion and query orchestrators for the single
// active document.
package rag

import (
	"context"
	"time"

	"document-qa/internal/lock"
	"document-qa/internal/models"
)

// Loader turns a supported file into plain text.
type Loader interface {
	Load(path string) (string, error)
}

// Classifier makes the PreOCR decision for a file.
type Classifier interface {
	Classify(path string) (models.PreOCRDecision, error)
}

// Embedder returns one vector per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is an overwrite-mode store. Searches only see the committed
// generation; Commit makes a staged generation current and drops the rest.
type VectorStore interface {
	Reset(ctx context.Context) error
	Insert(ctx context.Context, batch models.Batch) error
	Commit(ctx context.Context, gen uint64) error
	Generation(ctx context.Context) (uint64, error)
	Search(ctx context.Context, vector []float32, k int) ([]models.Match, error)
}

// Generator completes a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Locker serializes writers to the store.
type Locker interface {
	Lock(ctx context.Context) (lock.Unlock, error)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Retriever embeds a query and searches the committed generation.
type Retriever struct {
	embedder Embedder
	store    VectorStore
	timeout  time.Duration
}

func NewRetriever(embedder Embedder, store VectorStore, timeout time.Duration) *Retriever {
	return &Retriever{embedder: embedder, store: store, timeout: timeout}
}

// Search returns up to k matches for query, best first.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]models.Match, error) {
	embedCtx, cancel := withTimeout(ctx, r.timeout)
	vectors, err := r.embedder.Embed(embedCtx, []string{query})
	cancel()
	if err != nil {
		return nil, models.Upstream("embed question", err)
	}
	if len(vectors) != 1 {
		return nil, models.ErrLengthMismatch
	}

	searchCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	matches, err := r.store.Search(searchCtx, vectors[0], k)
	if err != nil {
		return nil, models.Upstream("search", err)
	}
	return matches, nil
}
