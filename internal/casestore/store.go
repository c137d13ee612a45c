// Package casestore holds validated prior cases and serves k-nearest-neighbor
// queries over their symptom embeddings.
package casestore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hci/triagem/internal/models"
	"github.com/hci/triagem/pkg/utils"
)

// Store is an in-memory case repository using brute-force inner-product
// search. Embeddings are unit vectors, so inner product equals cosine
// similarity; the same metric applies at insert and query time. Reads may
// run concurrently; writes are exclusive.
type Store struct {
	dimensions int
	cases      []*models.Case // insertion order, for deterministic tie-breaking
	byID       map[string]int
	mu         sync.RWMutex
}

// QueryResult is a retrieved case with its similarity to the query vector.
type QueryResult struct {
	Case  *models.Case
	Score float64
}

// New creates a case store for embeddings of the given dimension.
func New(dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &Store{
		dimensions: dimensions,
		byID:       make(map[string]int),
	}, nil
}

// Insert adds a case, making it visible to subsequent queries. Re-inserting
// an existing ID overwrites in place, keeping the original insertion slot.
// A case without an embedding is rejected; such a case must never be queryable.
func (s *Store) Insert(id string, embedding []float32, symptomText, outcomeText string) error {
	if len(embedding) != s.dimensions {
		return fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(embedding), s.dimensions)
	}
	vec := make([]float32, s.dimensions)
	copy(vec, embedding)
	c := &models.Case{ID: id, SymptomText: symptomText, OutcomeText: outcomeText, Embedding: vec}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byID[id]; ok {
		s.cases[i] = c
		return nil
	}
	s.byID[id] = len(s.cases)
	s.cases = append(s.cases, c)
	return nil
}

// Query returns up to k cases ranked by descending similarity to embedding.
// Ties are broken by insertion order, earlier first. An empty store returns
// an empty slice; fewer than k cases returns all of them. Returned cases are
// copies; the store's internal state is never aliased out.
func (s *Store) Query(embedding []float32, k int) ([]QueryResult, error) {
	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(embedding), s.dimensions)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.cases) == 0 {
		return []QueryResult{}, nil
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(s.cases))
	for i, c := range s.cases {
		scores[i] = scored{idx: i, score: utils.InnerProduct(embedding, c.Embedding)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]QueryResult, k)
	for i := 0; i < k; i++ {
		c := s.cases[scores[i].idx]
		vec := make([]float32, len(c.Embedding))
		copy(vec, c.Embedding)
		results[i] = QueryResult{
			Case: &models.Case{
				ID:          c.ID,
				SymptomText: c.SymptomText,
				OutcomeText: c.OutcomeText,
				Embedding:   vec,
			},
			Score: scores[i].score,
		}
	}
	return results, nil
}

// Clear removes all cases. Used by the bootstrap rebuild.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = nil
	s.byID = make(map[string]int)
}

// Size returns the number of cases in the store.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cases)
}

// Dimensions returns the embedding dimension the store accepts.
func (s *Store) Dimensions() int {
	return s.dimensions
}
