package mcp

import (
	"context"

	"document-qa/internal/models"
)

type Classifier interface {
	Classify(path string) (models.PreOCRDecision, error)
}

type Ingester interface {
	Ingest(ctx context.Context, path, displayName string) (*models.IngestResult, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]models.Match, error)
}

// Ports aggregates what the tools call into.
type Ports struct {
	Classifier Classifier
	Ingester   Ingester
	Searcher   Searcher
}

// validate checks that every port the given tools need is set.
func (p *Ports) validate(tools []Tool) error {
	if p == nil {
		return ErrNilPorts
	}
	for _, t := range tools {
		switch t {
		case ToolPreOCR:
			if p.Classifier == nil {
				return ErrMissingClassifier
			}
		case ToolIngest:
			if p.Ingester == nil {
				return ErrMissingIngester
			}
		case ToolVectorSearch:
			if p.Searcher == nil {
				return ErrMissingSearcher
			}
		}
	}
	return nil
}
