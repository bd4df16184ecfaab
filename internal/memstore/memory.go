// Package memstore is an in-process overwrite-mode vector store using
// brute-force cosine similarity.
package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"document-qa/internal/models"
)

type record struct {
	vector []float32
	text   string
	docID  string
	name   string
}

// Store keeps chunk records per generation; searches only see the committed one.
type Store struct {
	mu          sync.RWMutex
	dimension   int
	current     uint64
	generations map[uint64][]record
}

func New(dimension int) *Store {
	return &Store{dimension: dimension, generations: make(map[uint64][]record)}
}

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = 0
	s.generations = make(map[uint64][]record)
	return nil
}

// Insert stages batch as the full content of its generation, replacing any
// leftovers from an earlier failed attempt at the same generation. The
// committed generation is never written to.
func (s *Store) Insert(_ context.Context, batch models.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	for i, v := range batch.Vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", models.ErrDimensionMismatch, i, len(v), s.dimension)
		}
	}

	records := make([]record, len(batch.Texts))
	for i := range batch.Texts {
		records[i] = record{vector: batch.Vectors[i], text: batch.Texts[i], docID: batch.DocumentID, name: batch.DocumentName}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if batch.Generation == s.current {
		return fmt.Errorf("%w: %d", models.ErrGenerationCommitted, batch.Generation)
	}
	s.generations[batch.Generation] = records
	return nil
}

// Commit makes gen current and discards every other generation.
func (s *Store) Commit(_ context.Context, gen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for g := range s.generations {
		if g != gen {
			delete(s.generations, g)
		}
	}
	s.current = gen
	return nil
}

func (s *Store) Generation(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *Store) Search(_ context.Context, vector []float32, k int) ([]models.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", models.ErrDimensionMismatch, len(vector), s.dimension)
	}

	s.mu.RLock()
	records := s.generations[s.current]
	matches := make([]models.Match, len(records))
	for i, r := range records {
		matches[i] = models.Match{Text: r.text, Score: cosine(vector, r.vector), DocumentName: r.name}
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Len reports how many records the committed generation holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.generations[s.current])
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
