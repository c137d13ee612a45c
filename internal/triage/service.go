// Package triage orchestrates the similarity-grounded classification
// pipeline: embed symptoms, retrieve neighbor cases, compose a grounded
// prompt, generate, parse, persist.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hci/triagem/internal/casestore"
	"github.com/hci/triagem/internal/embedding"
	"github.com/hci/triagem/internal/generation"
	"github.com/hci/triagem/internal/keyword"
	"github.com/hci/triagem/internal/models"
	"github.com/hci/triagem/internal/parser"
	"github.com/hci/triagem/internal/prompt"
	"github.com/hci/triagem/internal/storage"
)

// ErrEmptySymptoms is returned when a triage request carries no symptom
// text. This is a client error, not a pipeline failure.
var ErrEmptySymptoms = errors.New("symptoms must not be empty")

// Service runs the triage pipeline. All collaborators are injected at
// construction; the service holds no global state.
type Service struct {
	embedder  embedding.Embedder
	cases     *casestore.Store
	composer  *prompt.Composer
	generator generation.Generator
	parser    *parser.Parser
	store     storage.Store
	records   keyword.RecordIndex // optional full-text index over records
	neighbors int
	logger    *zap.Logger
}

// NewService wires the pipeline. records and logger may be nil.
func NewService(
	embedder embedding.Embedder,
	cases *casestore.Store,
	composer *prompt.Composer,
	generator generation.Generator,
	p *parser.Parser,
	store storage.Store,
	records keyword.RecordIndex,
	neighbors int,
	logger *zap.Logger,
) *Service {
	if neighbors <= 0 {
		neighbors = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder:  embedder,
		cases:     cases,
		composer:  composer,
		generator: generator,
		parser:    p,
		store:     store,
		records:   records,
		neighbors: neighbors,
		logger:    logger,
	}
}

// Triage classifies the given symptom text and persists the resulting
// record with pending validation status. Embedding, generation and storage
// failures abort the request; parsing never does.
func (s *Service) Triage(ctx context.Context, symptoms string) (*models.TriageRecord, error) {
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		return nil, ErrEmptySymptoms
	}

	queryVec, err := s.embedder.Embed(ctx, symptoms)
	if err != nil {
		return nil, fmt.Errorf("embed symptoms: %w", err)
	}

	neighbors, err := s.cases.Query(queryVec, s.neighbors)
	if err != nil {
		return nil, fmt.Errorf("query similar cases: %w", err)
	}

	composed := s.composer.Compose(symptoms, neighbors)

	raw, err := s.generator.Generate(ctx, composed)
	if err != nil {
		return nil, fmt.Errorf("generate classification: %w", err)
	}

	result := s.parser.Parse(raw)
	record := &models.TriageRecord{
		ID:              uuid.NewString(),
		Symptoms:        symptoms,
		RawResponse:     raw,
		Classification:  result.Classification,
		Justification:   result.Justification,
		Recommendations: result.Recommendations,
		CreatedAt:       time.Now(),
	}

	if err := s.store.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("persist triage record: %w", err)
	}

	if s.records != nil {
		if err := s.records.Index(ctx, record); err != nil {
			s.logger.Warn("record index update failed", zap.String("id", record.ID), zap.Error(err))
		}
	}

	s.logger.Info("triage completed",
		zap.String("id", record.ID),
		zap.String("classification", string(record.Classification)),
		zap.Int("neighbors", len(neighbors)),
	)
	return record, nil
}

// Delete hard-deletes a record and drops it from the full-text index.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if s.records != nil {
		if err := s.records.Delete(ctx, id); err != nil {
			s.logger.Warn("record index delete failed", zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

// SearchRecords runs a full-text query over stored records.
func (s *Service) SearchRecords(ctx context.Context, query string, limit int) ([]*models.RecordSearchHit, error) {
	if s.records == nil {
		return nil, fmt.Errorf("record search is not enabled")
	}
	if limit <= 0 {
		limit = 10
	}
	hits, err := s.records.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	results := make([]*models.RecordSearchHit, 0, len(hits))
	for _, hit := range hits {
		record, err := s.store.Get(ctx, hit.ID)
		if err != nil {
			// Index can lag a hard delete; skip the stale hit.
			continue
		}
		results = append(results, &models.RecordSearchHit{Record: record, Score: hit.Score})
	}
	return results, nil
}
