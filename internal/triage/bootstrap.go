package triage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hci/triagem/internal/models"
)

// BootstrapResult reports the outcome of a case store rebuild.
type BootstrapResult struct {
	Inserted int
	Failed   int
}

// Bootstrap rebuilds the case store from the durable set of validated
// records: clear, then re-embed and insert every validated case. A full
// rebuild, not an incremental merge, so deleted validated cases never
// linger. Individual embedding failures are logged and skipped; they do not
// abort the rest of the rebuild. Callers must run this to completion before
// serving queries.
func (s *Service) Bootstrap(ctx context.Context) (*BootstrapResult, error) {
	validated, err := s.store.ListValidated(ctx)
	if err != nil {
		return nil, fmt.Errorf("load validated records: %w", err)
	}

	s.cases.Clear()
	result := &BootstrapResult{}
	for _, record := range validated {
		emb, err := s.embedder.Embed(ctx, record.Symptoms)
		if err != nil {
			s.logger.Warn("bootstrap: case embedding failed, skipping",
				zap.String("id", record.ID), zap.Error(err))
			result.Failed++
			continue
		}
		if err := s.cases.Insert(record.ID, emb, record.Symptoms, record.RawResponse); err != nil {
			s.logger.Warn("bootstrap: case insert failed, skipping",
				zap.String("id", record.ID), zap.Error(err))
			result.Failed++
			continue
		}
		result.Inserted++
	}

	s.logger.Info("case store rebuilt",
		zap.Int("inserted", result.Inserted),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// RebuildRecordIndex re-indexes every stored record into the full-text
// index. Run at startup so search reflects the durable state.
func (s *Service) RebuildRecordIndex(ctx context.Context) (int, error) {
	if s.records == nil {
		return 0, nil
	}
	all, err := s.store.List(ctx, models.FilterAll)
	if err != nil {
		return 0, fmt.Errorf("load records for indexing: %w", err)
	}
	indexed := 0
	for _, record := range all {
		if err := s.records.Index(ctx, record); err != nil {
			s.logger.Warn("record indexing failed, skipping",
				zap.String("id", record.ID), zap.Error(err))
			continue
		}
		indexed++
	}
	return indexed, nil
}
