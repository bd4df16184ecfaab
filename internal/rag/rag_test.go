package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/chunker"
	"document-qa/internal/config"
	"document-qa/internal/lock"
	"document-qa/internal/memstore"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/preocr"
)

const dim = 32

// wordEmbedder hashes lowercase words into a bag-of-words vector.
type wordEmbedder struct {
	calls atomic.Int32
	err   error
	short bool
}

func (e *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v := make([]float32, dim)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(strings.Trim(w, ".,?!")))
			v[h.Sum32()%dim]++
		}
		out = append(out, v)
	}
	if e.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

type countingLoader struct {
	calls atomic.Int32
	text  string
}

func (l *countingLoader) Load(path string) (string, error) {
	l.calls.Add(1)
	if l.text != "" {
		return l.text, nil
	}
	return parser.Load(path)
}

type fixedClassifier struct {
	decision models.PreOCRDecision
}

func (c fixedClassifier) Classify(string) (models.PreOCRDecision, error) {
	return c.decision, nil
}

// recordingStore wraps a store, recording calls and flagging overlapping writers.
type recordingStore struct {
	VectorStore
	mu          sync.Mutex
	calls       []string
	writers     atomic.Int32
	overlapped  atomic.Bool
	insertErr   error
	writerPause time.Duration
}

func (s *recordingStore) record(name string) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
}

func (s *recordingStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *recordingStore) Generation(ctx context.Context) (uint64, error) {
	s.record("generation")
	if s.writers.Add(1) > 1 {
		s.overlapped.Store(true)
	}
	time.Sleep(s.writerPause)
	return s.VectorStore.Generation(ctx)
}

func (s *recordingStore) Reset(ctx context.Context) error {
	s.record("reset")
	return s.VectorStore.Reset(ctx)
}

func (s *recordingStore) Insert(ctx context.Context, batch models.Batch) error {
	s.record("insert")
	if s.insertErr != nil {
		s.writers.Add(-1)
		return s.insertErr
	}
	return s.VectorStore.Insert(ctx, batch)
}

func (s *recordingStore) Commit(ctx context.Context, gen uint64) error {
	s.record("commit")
	defer s.writers.Add(-1)
	return s.VectorStore.Commit(ctx, gen)
}

func (s *recordingStore) Search(ctx context.Context, vector []float32, k int) ([]models.Match, error) {
	s.record("search")
	return s.VectorStore.Search(ctx, vector, k)
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (g *fakeGenerator) Complete(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.answer, g.err
}

type pipeline struct {
	loader    *countingLoader
	embedder  *wordEmbedder
	store     *recordingStore
	generator *fakeGenerator
	ingestor  *Ingestor
	answerer  *Answerer
}

func newPipeline(t *testing.T, cfg config.RAGConfig) *pipeline {
	t.Helper()
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	if cfg.SwapMode == "" {
		cfg.SwapMode = config.SwapGeneration
	}
	if cfg.UpstreamTimeout == 0 {
		cfg.UpstreamTimeout = time.Second
	}
	p := &pipeline{
		loader:    &countingLoader{},
		embedder:  &wordEmbedder{},
		store:     &recordingStore{VectorStore: memstore.New(dim)},
		generator: &fakeGenerator{answer: "  generated answer \n"},
	}
	p.ingestor = NewIngestor(p.loader, preocr.Classifier{}, chunker.New(200, 20), p.embedder, p.store, lock.NewLocal(), cfg)
	p.answerer = NewAnswerer(NewRetriever(p.embedder, p.store, cfg.UpstreamTimeout), p.generator, cfg)
	return p
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngest_SecondDocumentReplacesFirst(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, config.RAGConfig{})

	a := writeDoc(t, "a.txt", "Zebras graze on savanna grasslands.\n\nZebras have stripes.")
	b := writeDoc(t, "b.txt", "Compilers translate source code.\n\nLinkers resolve symbols.")

	resA, err := p.ingestor.Ingest(ctx, a, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resA.Generation)

	resB, err := p.ingestor.Ingest(ctx, b, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), resB.Generation)
	assert.Equal(t, 1, resB.ChunkCount)
	assert.Equal(t, models.ReasonOfficeWithText, resB.PreOCR.Reason)
	assert.True(t, strings.HasSuffix(resB.Document.ID, ".txt"))

	matches, err := NewRetriever(p.embedder, p.store, time.Second).Search(ctx, "zebras stripes savanna", 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.Equal(t, "b.txt", m.DocumentName)
		assert.NotContains(t, strings.ToLower(m.Text), "zebra")
	}
}

func TestIngest_ResetModeOrder(t *testing.T) {
	p := newPipeline(t, config.RAGConfig{SwapMode: config.SwapReset})
	path := writeDoc(t, "a.txt", "Some text.")

	_, err := p.ingestor.Ingest(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"generation", "reset", "insert", "commit"}, p.store.Calls())
}

func TestIngest_GenerationModeNeverResets(t *testing.T) {
	p := newPipeline(t, config.RAGConfig{})
	path := writeDoc(t, "a.txt", "Some text.")

	res, err := p.ingestor.Ingest(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", res.Document.Name)
	assert.Equal(t, []string{"generation", "insert", "commit"}, p.store.Calls())
}

func TestIngest_UnsupportedRejectedBeforeAnyCall(t *testing.T) {
	p := newPipeline(t, config.RAGConfig{})
	path := writeDoc(t, "setup.exe", "MZ")

	_, err := p.ingestor.Ingest(context.Background(), path, "setup.exe")
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Zero(t, p.loader.calls.Load())
	assert.Zero(t, p.embedder.calls.Load())
	assert.Empty(t, p.store.Calls())
}

func TestIngest_InputErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    error
	}{
		{"blank text", "blank.txt", "  \n\t\n", models.ErrEmptyDocument},
		{"missing file", "", "", models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, config.RAGConfig{})
			path := filepath.Join(t.TempDir(), "missing.txt")
			if tt.file != "" {
				path = writeDoc(t, tt.file, tt.content)
			}
			_, err := p.ingestor.Ingest(context.Background(), path, "")
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
			assert.Zero(t, p.embedder.calls.Load())
			assert.Empty(t, p.store.Calls())
		})
	}
}

func TestIngest_OCRGate(t *testing.T) {
	path := writeDoc(t, "scan.pdf", "%PDF")
	needsOCR := fixedClassifier{models.PreOCRDecision{NeedsOCR: true, Confidence: 0.5, Reason: models.ReasonUnknownFormat}}

	t.Run("enforced", func(t *testing.T) {
		p := newPipeline(t, config.RAGConfig{EnforceOCR: true})
		p.ingestor.classifier = needsOCR
		_, err := p.ingestor.Ingest(context.Background(), path, "")
		assert.ErrorIs(t, err, models.ErrOCRRequired)
		assert.Zero(t, p.loader.calls.Load())
	})

	t.Run("advisory", func(t *testing.T) {
		p := newPipeline(t, config.RAGConfig{})
		p.ingestor.classifier = needsOCR
		p.loader.text = "Recovered text."
		res, err := p.ingestor.Ingest(context.Background(), path, "")
		require.NoError(t, err)
		assert.True(t, res.PreOCR.NeedsOCR)
	})
}

func TestIngest_ImageNeedsOCRWhenEnforced(t *testing.T) {
	path := writeDoc(t, "scan.png", "\x89PNG")

	t.Run("enforced", func(t *testing.T) {
		p := newPipeline(t, config.RAGConfig{EnforceOCR: true})
		_, err := p.ingestor.Ingest(context.Background(), path, "")
		assert.ErrorIs(t, err, models.ErrOCRRequired)
		assert.Zero(t, p.loader.calls.Load())
		assert.Zero(t, p.embedder.calls.Load())
		assert.Empty(t, p.store.Calls())
	})

	t.Run("advisory", func(t *testing.T) {
		p := newPipeline(t, config.RAGConfig{})
		_, err := p.ingestor.Ingest(context.Background(), path, "")
		assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
	})

	t.Run("unknown extension enforced", func(t *testing.T) {
		p := newPipeline(t, config.RAGConfig{EnforceOCR: true})
		_, err := p.ingestor.Ingest(context.Background(), writeDoc(t, "setup.exe", "MZ"), "")
		assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
		assert.Zero(t, p.loader.calls.Load())
	})
}

func TestIngest_StoredUploadKeepsItsID(t *testing.T) {
	id := "0b6f3c3e-5a0e-4d3b-9f55-2f1d8f0c6a11.txt"
	path := writeDoc(t, id, "Stored upload content.")

	p := newPipeline(t, config.RAGConfig{})
	res, err := p.ingestor.Ingest(context.Background(), path, "report.txt")
	require.NoError(t, err)
	assert.Equal(t, id, res.Document.ID)
	assert.Equal(t, "report.txt", res.Document.Name)

	other, err := p.ingestor.Ingest(context.Background(), writeDoc(t, "plain.txt", "Other content."), "")
	require.NoError(t, err)
	assert.NotEqual(t, "plain.txt", other.Document.ID)
	assert.True(t, strings.HasSuffix(other.Document.ID, ".txt"))
}

func TestIngest_UpstreamFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, config.RAGConfig{})
	_, err := p.ingestor.Ingest(ctx, writeDoc(t, "a.txt", "Original content."), "")
	require.NoError(t, err)

	p.embedder.err = errors.New("quota exceeded")
	_, err = p.ingestor.Ingest(ctx, writeDoc(t, "b.txt", "Replacement content."), "")
	assert.ErrorIs(t, err, models.ErrUpstream)

	gen, err := p.store.VectorStore.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)
	assert.Equal(t, 1, p.store.VectorStore.(*memstore.Store).Len())
}

func TestIngest_LengthMismatch(t *testing.T) {
	p := newPipeline(t, config.RAGConfig{})
	p.embedder.short = true

	_, err := p.ingestor.Ingest(context.Background(), writeDoc(t, "a.txt", "Some text."), "")
	assert.ErrorIs(t, err, models.ErrLengthMismatch)
	assert.ErrorIs(t, err, models.ErrInvariant)
	assert.Empty(t, p.store.Calls())
}

func TestIngest_FailedInsertKeepsPreviousDocument(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, config.RAGConfig{})
	_, err := p.ingestor.Ingest(ctx, writeDoc(t, "a.txt", "Original content."), "")
	require.NoError(t, err)

	p.store.insertErr = errors.New("connection reset")
	_, err = p.ingestor.Ingest(ctx, writeDoc(t, "b.txt", "Replacement content."), "")
	assert.ErrorIs(t, err, models.ErrUpstream)

	matches, err := p.store.Search(ctx, make([]float32, dim), 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a.txt", matches[0].DocumentName)
}

func TestIngest_ConcurrentIngestionsSerialize(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, config.RAGConfig{})
	p.store.writerPause = 2 * time.Millisecond

	names := []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = writeDoc(t, n, "Content of "+n+".\n\nMore of "+n+".")
	}

	var wg sync.WaitGroup
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.ingestor.Ingest(ctx, paths[i], names[i])
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.False(t, p.store.overlapped.Load())
	gen, err := p.store.VectorStore.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(names)), gen)

	matches, err := p.store.VectorStore.Search(ctx, make([]float32, dim), 100)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.Equal(t, matches[0].DocumentName, m.DocumentName)
	}
}

func TestAnswer_EmptyStoreSkipsGenerator(t *testing.T) {
	p := newPipeline(t, config.RAGConfig{})

	resp, err := p.answerer.Answer(context.Background(), "What is in the document?")
	require.NoError(t, err)
	assert.Equal(t, models.NoMatchMessage, resp.Content)
	assert.False(t, resp.Grounded)
	assert.Empty(t, p.generator.prompts)
}

func TestAnswer_PromptContainsChunkVerbatim(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, config.RAGConfig{})
	chunk := "The warranty period is 24 months from delivery."
	_, err := p.ingestor.Ingest(ctx, writeDoc(t, "terms.txt", chunk), "terms.txt")
	require.NoError(t, err)

	resp, err := p.answerer.Answer(ctx, "  How long is the warranty period?  ")
	require.NoError(t, err)
	require.Len(t, p.generator.prompts, 1)
	assert.Contains(t, p.generator.prompts[0], chunk)
	assert.Contains(t, p.generator.prompts[0], "How long is the warranty period?")
	assert.Equal(t, "generated answer", resp.Content)
	assert.Equal(t, "terms.txt", resp.Source)
	assert.True(t, resp.Grounded)
}

func TestAnswer_MinScoreGate(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, config.RAGConfig{MinScore: 0.99})
	_, err := p.ingestor.Ingest(ctx, writeDoc(t, "a.txt", "Quarterly revenue grew by ten percent."), "")
	require.NoError(t, err)

	resp, err := p.answerer.Answer(ctx, "Who painted the ceiling?")
	require.NoError(t, err)
	assert.Equal(t, models.LowConfidenceMessage, resp.Content)
	assert.NotEmpty(t, resp.Matches)
	assert.Empty(t, p.generator.prompts)
}

func TestAnswer_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("blank question", func(t *testing.T) {
		p := newPipeline(t, config.RAGConfig{})
		_, err := p.answerer.Answer(ctx, " \n ")
		assert.ErrorIs(t, err, models.ErrEmptyQuestion)
		assert.Zero(t, p.embedder.calls.Load())
	})

	t.Run("generator failure", func(t *testing.T) {
		p := newPipeline(t, config.RAGConfig{})
		_, err := p.ingestor.Ingest(ctx, writeDoc(t, "a.txt", "Some text."), "")
		require.NoError(t, err)
		p.generator.err = context.DeadlineExceeded
		_, err = p.answerer.Answer(ctx, "Some text?")
		assert.ErrorIs(t, err, models.ErrUpstream)
	})

	t.Run("embedder failure", func(t *testing.T) {
		p := newPipeline(t, config.RAGConfig{})
		p.embedder.err = errors.New("connection refused")
		_, err := p.answerer.Answer(ctx, "Anything?")
		assert.ErrorIs(t, err, models.ErrUpstream)
		assert.Empty(t, p.generator.prompts)
	})
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Why?", []models.Match{{Text: "first"}, {Text: "second"}})
	assert.Contains(t, prompt, "first\n\nsecond")
	assert.Contains(t, prompt, "Question:\nWhy?")
	assert.Less(t, strings.Index(prompt, "first"), strings.Index(prompt, "second"))
}
