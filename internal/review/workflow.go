// Package review implements the human-review workflow for triage records.
package review

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hci/triagem/internal/casestore"
	"github.com/hci/triagem/internal/embedding"
	"github.com/hci/triagem/internal/storage"
)

// Workflow owns the pending-to-validated transition. It is the only code
// path that mutates a triage record after insertion. The transition is
// terminal: re-validating an already validated record overwrites feedback,
// reviewer and timestamp without error (last writer wins).
type Workflow struct {
	store    storage.Store
	embedder embedding.Embedder
	cases    *casestore.Store
	logger   *zap.Logger
}

// NewWorkflow creates the review workflow. logger may be nil.
func NewWorkflow(store storage.Store, embedder embedding.Embedder, cases *casestore.Store, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{store: store, embedder: embedder, cases: cases, logger: logger}
}

// Validate marks the record validated with the reviewer's feedback and feeds
// it back into the case store so future triages can retrieve it. A failed
// re-embedding after the durable update is logged, not propagated: the case
// joins the store on the next bootstrap rebuild.
func (w *Workflow) Validate(ctx context.Context, recordID, reviewer, feedback string) error {
	if recordID == "" {
		return fmt.Errorf("record id is required")
	}
	if reviewer == "" {
		return fmt.Errorf("reviewer is required")
	}

	if err := w.store.Validate(ctx, recordID, reviewer, feedback, time.Now()); err != nil {
		return err
	}

	record, err := w.store.Get(ctx, recordID)
	if err != nil {
		w.logger.Warn("validated record reload failed", zap.String("id", recordID), zap.Error(err))
		return nil
	}
	emb, err := w.embedder.Embed(ctx, record.Symptoms)
	if err != nil {
		w.logger.Warn("validated case embedding failed, deferring to next rebuild",
			zap.String("id", recordID), zap.Error(err))
		return nil
	}
	if err := w.cases.Insert(record.ID, emb, record.Symptoms, record.RawResponse); err != nil {
		w.logger.Warn("validated case insert failed", zap.String("id", recordID), zap.Error(err))
	}
	return nil
}
