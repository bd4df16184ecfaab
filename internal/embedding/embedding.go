package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// Provider maps texts to fixed-dimension vectors, preserving order.
type Provider struct {
	embedder  embeddings.Embedder
	dimension int
}

// NewProvider wraps an existing embedder. A dimension of 0 skips the length check.
func NewProvider(embedder embeddings.Embedder, dimension int) *Provider {
	return &Provider{embedder: embedder, dimension: dimension}
}

// New builds the langchaingo embedder selected by cfg.Provider.
func New(cfg *config.LLMConfig) (*Provider, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Initializing embedder")

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch cfg.Provider {
	case "openai":
		client, err = openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
			openai.WithEmbeddingModel(cfg.Model),
		)
	case "ollama":
		client, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s embedding client: %w", cfg.Provider, err)
	}

	var opts []embeddings.Option
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return NewProvider(embedder, cfg.Dimension), nil
}

func (p *Provider) Dimension() int {
	return p.dimension
}

// Embed returns one vector per text; vectors[i] belongs to texts[i].
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", models.ErrLengthMismatch, len(vectors), len(texts))
	}
	if p.dimension > 0 {
		for i, v := range vectors {
			if len(v) != p.dimension {
				return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", models.ErrDimensionMismatch, i, len(v), p.dimension)
			}
		}
	}
	return vectors, nil
}
