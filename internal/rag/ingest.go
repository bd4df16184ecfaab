package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/chunker"
	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/parser"
)

// Ingestor replaces the active document with a new one.
type Ingestor struct {
	loader     Loader
	classifier Classifier
	chunker    *chunker.Chunker
	embedder   Embedder
	store      VectorStore
	locker     Locker
	cfg        config.RAGConfig
}

func NewIngestor(loader Loader, classifier Classifier, ch *chunker.Chunker, embedder Embedder, store VectorStore, locker Locker, cfg config.RAGConfig) *Ingestor {
	return &Ingestor{
		loader:     loader,
		classifier: classifier,
		chunker:    ch,
		embedder:   embedder,
		store:      store,
		locker:     locker,
		cfg:        cfg,
	}
}

// Ingest loads, chunks and embeds path, then swaps it in as the only indexed
// document. Nothing in the store changes unless every step before the swap
// succeeds.
func (i *Ingestor) Ingest(ctx context.Context, path, displayName string) (*models.IngestResult, error) {
	if displayName == "" {
		displayName = filepath.Base(path)
	}
	log.Info().Str("file", path).Str("document", displayName).Msg("Ingesting document")

	decision, err := i.preflight(path, displayName)
	if err != nil {
		return nil, err
	}

	text, err := i.loader.Load(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyDocument
	}

	chunks := i.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, models.ErrNoChunksProduced
	}
	log.Info().Int("chunks", len(chunks)).Msg("Document chunked")
	for n, c := range chunks {
		log.Debug().Int("chunk", n).Int("chars", len([]rune(c))).Msg("Chunk")
	}

	embedCtx, cancel := withTimeout(ctx, i.cfg.UpstreamTimeout)
	vectors, err := i.embedder.Embed(embedCtx, chunks)
	cancel()
	if err != nil {
		return nil, models.Upstream("embed chunks", err)
	}

	docID, err := documentID(path, displayName)
	if err != nil {
		return nil, err
	}
	batch := models.Batch{Vectors: vectors, Texts: chunks, DocumentID: docID, DocumentName: displayName}
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	gen, err := i.swap(ctx, batch)
	if err != nil {
		return nil, err
	}
	log.Info().Str("document", displayName).Uint64("generation", gen).Int("chunks", len(chunks)).Msg("Document ingested")

	return &models.IngestResult{
		Document:   models.Document{ID: docID, Name: displayName, Text: text},
		ChunkCount: len(chunks),
		Generation: gen,
		PreOCR:     decision,
	}, nil
}

// documentID keeps the id of a stored upload so the indexed document and the
// file on disk share one name.
func documentID(path, displayName string) (string, error) {
	if base := filepath.Base(path); helper.IsDocumentID(base) {
		return base, nil
	}
	return helper.NewDocumentID(displayName)
}

// preflight runs the PreOCR check and the extension check. With EnforceOCR set
// the classifier runs first, so an image is reported as needing OCR rather
// than as an unsupported format. Unknown extensions stay unsupported.
func (i *Ingestor) preflight(path, displayName string) (models.PreOCRDecision, error) {
	if !i.cfg.EnforceOCR && !parser.IsSupported(path) {
		return models.PreOCRDecision{}, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filepath.Ext(path))
	}

	decision, err := i.classifier.Classify(path)
	if err != nil {
		return models.PreOCRDecision{}, err
	}
	log.Info().
		Bool("needs_ocr", decision.NeedsOCR).
		Float64("confidence", decision.Confidence).
		Str("reason", string(decision.Reason)).
		Msg("PreOCR decision")

	supported := parser.IsSupported(path)
	if decision.NeedsOCR && i.cfg.EnforceOCR && (supported || decision.Reason != models.ReasonUnknownFormat) {
		return decision, fmt.Errorf("%w: %s (%s)", models.ErrOCRRequired, displayName, decision.Reason)
	}
	if !supported {
		return decision, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filepath.Ext(path))
	}
	return decision, nil
}

// swap writes batch under the next generation and commits it while holding
// the writer lock.
func (i *Ingestor) swap(ctx context.Context, batch models.Batch) (uint64, error) {
	lockCtx, cancel := withTimeout(ctx, i.cfg.UpstreamTimeout)
	unlock, err := i.locker.Lock(lockCtx)
	cancel()
	if err != nil {
		return 0, models.Upstream("acquire ingestion lock", err)
	}
	defer unlock()

	storeCtx, cancel := withTimeout(ctx, i.cfg.UpstreamTimeout)
	defer cancel()

	current, err := i.store.Generation(storeCtx)
	if err != nil {
		return 0, models.Upstream("read generation", err)
	}
	batch.Generation = current + 1

	if i.cfg.SwapMode == config.SwapReset {
		log.Debug().Msg("Resetting vector store")
		if err := i.store.Reset(storeCtx); err != nil {
			return 0, models.Upstream("reset store", err)
		}
	}
	if err := i.store.Insert(storeCtx, batch); err != nil {
		return 0, models.Upstream("insert chunks", err)
	}
	if err := i.store.Commit(storeCtx, batch.Generation); err != nil {
		return 0, models.Upstream("commit generation", err)
	}
	log.Debug().Uint64("generation", batch.Generation).Str("mode", i.cfg.SwapMode).Msg("Generation committed")
	return batch.Generation, nil
}
