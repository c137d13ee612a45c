package casestore

import (
	"fmt"
	"testing"

	"github.com/hci/triagem/pkg/utils"
)

func unitVec(dims int, values ...float32) []float32 {
	v := make([]float32, dims)
	copy(v, values)
	utils.NormalizeL2(v)
	return v
}

func TestNewRejectsInvalidDimensions(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("Expected error for zero dimensions")
	}
	if _, err := New(-3); err == nil {
		t.Error("Expected error for negative dimensions")
	}
}

func TestQueryEmptyStore(t *testing.T) {
	store, err := New(4)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	results, err := store.Query(unitVec(4, 1), 3)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if results == nil {
		t.Fatal("Expected empty slice, got nil")
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}

func TestQueryRanksBySimilarity(t *testing.T) {
	store, _ := New(4)
	exact := unitVec(4, 1, 0, 0, 0)
	near := unitVec(4, 0.9, 0.1, 0, 0)
	far := unitVec(4, 0, 0, 1, 0)

	if err := store.Insert("far", far, "dor nas costas", "verde"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert("exact", exact, "dor torácica", "vermelho"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert("near", near, "dor no peito", "laranja"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	results, err := store.Query(exact, 3)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].Case.ID != "exact" {
		t.Errorf("Expected exact match first, got %s", results[0].Case.ID)
	}
	if results[1].Case.ID != "near" {
		t.Errorf("Expected near match second, got %s", results[1].Case.ID)
	}
	if results[2].Case.ID != "far" {
		t.Errorf("Expected far match last, got %s", results[2].Case.ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("Scores not descending at %d: %f > %f", i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestQueryFewerCasesThanK(t *testing.T) {
	store, _ := New(4)
	_ = store.Insert("only", unitVec(4, 1), "febre", "amarelo")

	results, err := store.Query(unitVec(4, 1), 3)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
}

func TestQueryTiesBreakByInsertionOrder(t *testing.T) {
	store, _ := New(4)
	v := unitVec(4, 0, 1, 0, 0)
	_ = store.Insert("first", v, "cefaleia", "verde")
	_ = store.Insert("second", v, "cefaleia intensa", "amarelo")
	_ = store.Insert("third", v, "cefaleia súbita", "laranja")

	results, err := store.Query(v, 3)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if results[i].Case.ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, results[i].Case.ID)
		}
	}
}

func TestInsertOverwritesInPlace(t *testing.T) {
	store, _ := New(4)
	_ = store.Insert("a", unitVec(4, 1), "original", "verde")
	_ = store.Insert("b", unitVec(4, 0, 1), "other", "azul")
	if err := store.Insert("a", unitVec(4, 1), "updated", "vermelho"); err != nil {
		t.Fatalf("Re-insert failed: %v", err)
	}

	if store.Size() != 2 {
		t.Errorf("Expected size 2 after overwrite, got %d", store.Size())
	}
	results, _ := store.Query(unitVec(4, 1), 1)
	if results[0].Case.SymptomText != "updated" {
		t.Errorf("Expected updated text, got %q", results[0].Case.SymptomText)
	}
	if results[0].Case.OutcomeText != "vermelho" {
		t.Errorf("Expected updated outcome, got %q", results[0].Case.OutcomeText)
	}
}

func TestInsertRejectsDimensionMismatch(t *testing.T) {
	store, _ := New(4)
	if err := store.Insert("bad", []float32{1, 0}, "x", "y"); err == nil {
		t.Error("Expected error for mismatched embedding")
	}
	if store.Size() != 0 {
		t.Errorf("Store should stay empty, size %d", store.Size())
	}
}

func TestInsertCopiesEmbedding(t *testing.T) {
	store, _ := New(2)
	v := []float32{1, 0}
	_ = store.Insert("a", v, "x", "y")
	v[0] = 0
	v[1] = 1

	results, _ := store.Query([]float32{1, 0}, 1)
	if results[0].Score < 0.99 {
		t.Errorf("Caller mutation leaked into stored vector, score %f", results[0].Score)
	}
}

func TestQueryReturnsCopies(t *testing.T) {
	store, _ := New(4)
	v := unitVec(4, 1)
	_ = store.Insert("a", v, "dor torácica", "laranja")

	results, err := store.Query(v, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if results[0].Score < 0.99 {
		t.Fatalf("Expected self-similarity ~1, got %f", results[0].Score)
	}

	// Mutating a returned case must not reach the store's internal state.
	for i := range results[0].Case.Embedding {
		results[0].Case.Embedding[i] = 0
	}
	results[0].Case.SymptomText = "mutated"

	again, err := store.Query(v, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if again[0].Score < 0.99 {
		t.Errorf("Caller mutation corrupted the stored vector, score %f", again[0].Score)
	}
	if again[0].Case.SymptomText != "dor torácica" {
		t.Errorf("Caller mutation reached stored text: %q", again[0].Case.SymptomText)
	}
}

func TestClear(t *testing.T) {
	store, _ := New(2)
	for i := 0; i < 5; i++ {
		_ = store.Insert(fmt.Sprintf("c%d", i), unitVec(2, 1), "s", "o")
	}
	store.Clear()
	if store.Size() != 0 {
		t.Errorf("Expected empty store after Clear, size %d", store.Size())
	}
	results, err := store.Query(unitVec(2, 1), 3)
	if err != nil {
		t.Fatalf("Query after Clear failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results after Clear, got %d", len(results))
	}
	// IDs are reusable after a clear.
	if err := store.Insert("c0", unitVec(2, 1), "s", "o"); err != nil {
		t.Fatalf("Insert after Clear failed: %v", err)
	}
	if store.Size() != 1 {
		t.Errorf("Expected size 1, got %d", store.Size())
	}
}
