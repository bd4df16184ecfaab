package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"
)

const (
	metaDocumentID   = "document_id"
	metaDocumentName = "document_name"
)

var errNoEmbedding = errors.New("chromemdb: documents must carry precomputed embeddings")

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// VectorDBManager is the overwrite-mode store backed by chromem-go. Each
// generation lives in its own collection named "<collection>-g<N>"; once a
// generation is committed every other generation collection is dropped.
type VectorDBManager struct {
	mu            sync.RWMutex
	db            *chromem.DB
	name          string
	dimension     int
	current       uint64
	inMemory      bool
	compress      bool
	encryptionKey string
	filePath      string
	pointerPath   string
}

// NewVectorDBManager opens the database and recovers the committed generation.
func NewVectorDBManager(cfg *config.ChromemConfig, dimension int) (*VectorDBManager, error) {
	if err := helper.CreateFolder(cfg.Path); err != nil {
		return nil, err
	}

	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		name:          cfg.Collection,
		dimension:     dimension,
		inMemory:      cfg.InMemory,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
		filePath:      filepath.Join(cfg.Path, cfg.Collection+".chromem"),
		pointerPath:   filepath.Join(cfg.Path, cfg.Collection+".generation"),
	}

	if m.exportEnabled() {
		if err := m.Import(); err != nil {
			return nil, err
		}
	}
	if err := m.recover(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *VectorDBManager) collectionName(gen uint64) string {
	return fmt.Sprintf("%s-g%d", m.name, gen)
}

func (m *VectorDBManager) parseGeneration(name string) (uint64, bool) {
	rest, ok := strings.CutPrefix(name, m.name+"-g")
	if !ok {
		return 0, false
	}
	gen, err := strconv.ParseUint(rest, 10, 64)
	return gen, err == nil
}

func (m *VectorDBManager) generations() []uint64 {
	var gens []uint64
	for name := range m.db.ListCollections() {
		if gen, ok := m.parseGeneration(name); ok {
			gens = append(gens, gen)
		}
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens
}

// recover restores the generation named by the pointer file and drops every
// other collection. Without a pointer nothing was ever committed, so every
// collection is an unfinished stage.
func (m *VectorDBManager) recover() error {
	committed, err := m.readPointer()
	if err != nil {
		return err
	}

	for _, gen := range m.generations() {
		if gen == committed {
			m.current = gen
			continue
		}
		log.Warn().Uint64("generation", gen).Msg("Dropping uncommitted generation")
		if err := m.db.DeleteCollection(m.collectionName(gen)); err != nil {
			return fmt.Errorf("failed to drop collection: %v", err)
		}
	}
	return nil
}

func (m *VectorDBManager) readPointer() (uint64, error) {
	data, err := os.ReadFile(m.pointerPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read generation pointer: %v", err)
	}
	gen, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid generation pointer %q: %v", data, err)
	}
	return gen, nil
}

// writePointer replaces the pointer file atomically.
func (m *VectorDBManager) writePointer(gen uint64) error {
	tmp := m.pointerPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(gen, 10)), 0o644); err != nil {
		return fmt.Errorf("failed to write generation pointer: %v", err)
	}
	if err := os.Rename(tmp, m.pointerPath); err != nil {
		return fmt.Errorf("failed to write generation pointer: %v", err)
	}
	return nil
}

// Reset drops every generation. Safe on an empty store.
func (m *VectorDBManager) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, gen := range m.generations() {
		if err := m.db.DeleteCollection(m.collectionName(gen)); err != nil {
			return fmt.Errorf("failed to drop collection: %v", err)
		}
	}
	m.current = 0
	if err := os.Remove(m.pointerPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove generation pointer: %v", err)
	}
	if m.exportEnabled() {
		if err := os.Remove(m.filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove export: %v", err)
		}
	}
	return nil
}

// Insert stages a batch in its generation's collection. A staged collection
// left over from a failed ingestion at the same generation is dropped first;
// the committed generation is never written to.
func (m *VectorDBManager) Insert(ctx context.Context, batch models.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	for i, v := range batch.Vectors {
		if len(v) != m.dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", models.ErrDimensionMismatch, i, len(v), m.dimension)
		}
	}
	if len(batch.Texts) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if batch.Generation == m.current {
		return fmt.Errorf("%w: %d", models.ErrGenerationCommitted, batch.Generation)
	}
	name := m.collectionName(batch.Generation)
	if m.db.GetCollection(name, noEmbedding) != nil {
		log.Warn().Uint64("generation", batch.Generation).Msg("Dropping stale staged generation")
		if err := m.db.DeleteCollection(name); err != nil {
			return fmt.Errorf("failed to drop collection: %v", err)
		}
	}
	c, err := m.db.GetOrCreateCollection(name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}

	docs := make([]chromem.Document, len(batch.Texts))
	for i := range batch.Texts {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("%s-%d", batch.DocumentID, i),
			Content: batch.Texts[i],
			Metadata: map[string]string{
				metaDocumentID:   batch.DocumentID,
				metaDocumentName: batch.DocumentName,
			},
			Embedding: batch.Vectors[i],
		}
	}

	log.Debug().Int("documents", len(docs)).Uint64("generation", batch.Generation).Msg("Adding documents to vector database")
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

// Commit makes gen the searchable generation and drops all others.
func (m *VectorDBManager) Commit(_ context.Context, gen uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.db.GetOrCreateCollection(m.collectionName(gen), nil, noEmbedding); err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}
	if err := m.writePointer(gen); err != nil {
		return err
	}
	m.current = gen
	for _, g := range m.generations() {
		if g == gen {
			continue
		}
		if err := m.db.DeleteCollection(m.collectionName(g)); err != nil {
			return fmt.Errorf("failed to drop collection: %v", err)
		}
	}

	if m.exportEnabled() {
		return m.Export()
	}
	return nil
}

func (m *VectorDBManager) Generation(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, nil
}

// Search returns up to k matches from the committed generation, best first.
func (m *VectorDBManager) Search(ctx context.Context, vector []float32, k int) ([]models.Match, error) {
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", models.ErrDimensionMismatch, len(vector), m.dimension)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == 0 || k <= 0 {
		return nil, nil
	}
	c := m.db.GetCollection(m.collectionName(m.current), noEmbedding)
	if c == nil {
		return nil, nil
	}
	n := min(k, c.Count())
	if n == 0 {
		return nil, nil
	}

	results, err := c.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	matches := make([]models.Match, len(results))
	for i, r := range results {
		matches[i] = models.Match{
			Text:         r.Content,
			Score:        r.Similarity,
			DocumentName: r.Metadata[metaDocumentName],
		}
	}
	return matches, nil
}

func (m *VectorDBManager) exportEnabled() bool {
	return m.inMemory && m.encryptionKey != ""
}

// Export writes the committed generation to the encrypted export file.
func (m *VectorDBManager) Export() error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if m.current == 0 {
		return nil
	}

	name := m.collectionName(m.current)
	log.Debug().Str("collection", name).Str("file", m.filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, name); err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	return nil
}

// Import loads the export file if one exists.
func (m *VectorDBManager) Import() error {
	if _, err := os.Stat(m.filePath); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey); err != nil {
		return fmt.Errorf("failed to import database: %v", err)
	}
	return nil
}
