// Package storage defines the durable persistence interface for triage records.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hci/triagem/internal/models"
)

// ErrNotFound is returned when a record ID does not exist.
var ErrNotFound = errors.New("triage record not found")

// Store defines triage record persistence. The pipeline only appends;
// mutation after insert happens solely through Validate, and deletion is an
// administrator action.
type Store interface {
	// Insert persists a new pending record. All-or-nothing: a failed insert
	// leaves no partial row behind.
	Insert(ctx context.Context, record *models.TriageRecord) error
	// Get returns the record with the given ID.
	Get(ctx context.Context, id string) (*models.TriageRecord, error)
	// Validate marks the record validated, attaching reviewer, feedback and
	// timestamp in one atomic update. Re-validating an already validated
	// record overwrites these fields without error.
	Validate(ctx context.Context, id, reviewer, feedback string, at time.Time) error
	// Delete hard-deletes the record.
	Delete(ctx context.Context, id string) error
	// List returns records matching filter, most recent first.
	List(ctx context.Context, filter models.RecordFilter) ([]*models.TriageRecord, error)
	// ListValidated returns all validated records; the case store bootstrap
	// rebuilds from this set.
	ListValidated(ctx context.Context) ([]*models.TriageRecord, error)
	// Stats returns total, validated and pending counts.
	Stats(ctx context.Context) (*models.Stats, error)

	Close() error
}
