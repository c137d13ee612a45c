package review

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/hci/triagem/internal/casestore"
	"github.com/hci/triagem/internal/embedding"
	"github.com/hci/triagem/internal/models"
	"github.com/hci/triagem/internal/storage"
)

func newTestWorkflow(t *testing.T, embedder embedding.Embedder) (*Workflow, storage.Store, *casestore.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if embedder == nil {
		embedder = embedding.NewMockEmbedder(8)
	}
	cases, err := casestore.New(embedder.Dimensions())
	if err != nil {
		t.Fatalf("casestore.New failed: %v", err)
	}
	return NewWorkflow(store, embedder, cases, nil), store, cases
}

func insertPending(t *testing.T, store storage.Store, id string) {
	t.Helper()
	err := store.Insert(context.Background(), &models.TriageRecord{
		ID:          id,
		Symptoms:    "febre alta e calafrios",
		RawResponse: "Classificação\namarelo\n\nJustificativa\nFebre persistente.\n\nCondutas\nReavaliar.",
		CreatedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
}

func TestValidateTransitionsAndFeedsCaseStore(t *testing.T) {
	w, store, cases := newTestWorkflow(t, nil)
	ctx := context.Background()
	insertPending(t, store, "rec-1")

	if err := w.Validate(ctx, "rec-1", "medico01", "classificação correta"); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	record, _ := store.Get(ctx, "rec-1")
	if !record.Validation.Validated {
		t.Error("Record should be validated")
	}
	if record.Validation.ValidatedBy != "medico01" {
		t.Errorf("ValidatedBy mismatch: %q", record.Validation.ValidatedBy)
	}
	if cases.Size() != 1 {
		t.Errorf("Validated case must join the case store, size %d", cases.Size())
	}

	// The case is immediately retrievable by its own symptoms.
	embedder := embedding.NewMockEmbedder(8)
	vec, _ := embedder.Embed(ctx, "febre alta e calafrios")
	results, err := cases.Query(vec, 1)
	if err != nil || len(results) != 1 {
		t.Fatalf("Query failed: %v (%d results)", err, len(results))
	}
	if results[0].Case.ID != "rec-1" {
		t.Errorf("Expected rec-1, got %s", results[0].Case.ID)
	}
}

func TestValidateRequiresIdentity(t *testing.T) {
	w, store, _ := newTestWorkflow(t, nil)
	insertPending(t, store, "rec-1")

	if err := w.Validate(context.Background(), "rec-1", "", "feedback"); err == nil {
		t.Error("Expected error without reviewer")
	}
	if err := w.Validate(context.Background(), "", "medico01", ""); err == nil {
		t.Error("Expected error without record id")
	}
}

func TestValidateMissingRecord(t *testing.T) {
	w, _, _ := newTestWorkflow(t, nil)
	err := w.Validate(context.Background(), "nope", "medico01", "")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRevalidateOverwrites(t *testing.T) {
	w, store, cases := newTestWorkflow(t, nil)
	ctx := context.Background()
	insertPending(t, store, "rec-1")

	_ = w.Validate(ctx, "rec-1", "medico01", "primeira")
	if err := w.Validate(ctx, "rec-1", "medico02", "segunda"); err != nil {
		t.Fatalf("Re-validation failed: %v", err)
	}

	record, _ := store.Get(ctx, "rec-1")
	if record.Validation.ValidatedBy != "medico02" || record.Validation.Feedback != "segunda" {
		t.Errorf("Last writer must win, got %+v", record.Validation)
	}
	if cases.Size() != 1 {
		t.Errorf("Re-validation must not duplicate the case, size %d", cases.Size())
	}
}

type brokenEmbedder struct{}

func (brokenEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: session lost", embedding.ErrModelUnavailable)
}
func (brokenEmbedder) Dimensions() int { return 8 }
func (brokenEmbedder) Close() error    { return nil }

func TestValidateSurvivesEmbeddingFailure(t *testing.T) {
	w, store, cases := newTestWorkflow(t, brokenEmbedder{})
	ctx := context.Background()
	insertPending(t, store, "rec-1")

	// The durable transition must succeed even when the case store feedback
	// path is down; the rebuild picks the case up later.
	if err := w.Validate(ctx, "rec-1", "medico01", ""); err != nil {
		t.Fatalf("Validate must not propagate embedding failure: %v", err)
	}
	record, _ := store.Get(ctx, "rec-1")
	if !record.Validation.Validated {
		t.Error("Record should be validated despite embedding failure")
	}
	if cases.Size() != 0 {
		t.Errorf("Case store should stay empty, size %d", cases.Size())
	}
}
