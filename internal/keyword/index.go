// Package keyword provides full-text search over triage records.
package keyword

import (
	"context"

	"github.com/hci/triagem/internal/models"
)

// RecordIndex defines full-text indexing and search of triage records.
type RecordIndex interface {
	Index(ctx context.Context, record *models.TriageRecord) error
	Search(ctx context.Context, query string, limit int) ([]*Hit, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// Hit is a single full-text search match.
type Hit struct {
	ID    string
	Score float64
}
