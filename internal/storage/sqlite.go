// Package storage provides the SQLite implementation of the Store interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hci/triagem/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS triage_records (
		id TEXT PRIMARY KEY,
		symptoms TEXT NOT NULL,
		raw_response TEXT NOT NULL,
		classification TEXT NOT NULL,
		justification TEXT NOT NULL,
		recommendations TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		validated INTEGER NOT NULL DEFAULT 0,
		feedback TEXT,
		validated_by TEXT,
		validated_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_triage_records_created_at ON triage_records(created_at);
	CREATE INDEX IF NOT EXISTS idx_triage_records_validated ON triage_records(validated);
	`
	_, err := db.Exec(schema)
	return err
}

// Insert persists a new pending record in a single statement.
func (s *SQLiteStore) Insert(ctx context.Context, record *models.TriageRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO triage_records (id, symptoms, raw_response, classification, justification, recommendations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Symptoms, record.RawResponse, string(record.Classification),
		record.Justification, record.Recommendations, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert triage record: %w", err)
	}
	return nil
}

// Get returns the record with the given ID, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.TriageRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, symptoms, raw_response, classification, justification, recommendations,
		        created_at, validated, feedback, validated_by, validated_at
		 FROM triage_records WHERE id = ?`, id,
	)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Validate sets the validation fields atomically. Last writer wins when the
// record is already validated.
func (s *SQLiteStore) Validate(ctx context.Context, id, reviewer, feedback string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE triage_records SET validated = 1, feedback = ?, validated_by = ?, validated_at = ?
		 WHERE id = ?`,
		feedback, reviewer, at, id,
	)
	if err != nil {
		return fmt.Errorf("validate triage record: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Delete removes the record. Deleting an absent ID returns ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM triage_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete triage record: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns records matching filter ordered by creation time, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter models.RecordFilter) ([]*models.TriageRecord, error) {
	query := `SELECT id, symptoms, raw_response, classification, justification, recommendations,
	                 created_at, validated, feedback, validated_by, validated_at
	          FROM triage_records`
	switch filter {
	case models.FilterPending:
		query += ` WHERE validated = 0`
	case models.FilterValidated:
		query += ` WHERE validated = 1`
	case models.FilterAll, "":
	default:
		return nil, fmt.Errorf("unknown record filter: %q", filter)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list triage records: %w", err)
	}
	defer rows.Close()

	var records []*models.TriageRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListValidated returns all validated records in insertion order (oldest
// first), the order the case store rebuild replays them in.
func (s *SQLiteStore) ListValidated(ctx context.Context) ([]*models.TriageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symptoms, raw_response, classification, justification, recommendations,
		        created_at, validated, feedback, validated_by, validated_at
		 FROM triage_records WHERE validated = 1 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list validated records: %w", err)
	}
	defer rows.Close()

	var records []*models.TriageRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Stats returns total, validated and pending counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(validated), 0) FROM triage_records`,
	).Scan(&stats.Total, &stats.Validated)
	if err != nil {
		return nil, fmt.Errorf("count triage records: %w", err)
	}
	stats.Pending = stats.Total - stats.Validated
	return &stats, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*models.TriageRecord, error) {
	var record models.TriageRecord
	var classification string
	var validated int
	var feedback, validatedBy sql.NullString
	var validatedAt sql.NullTime

	err := row.Scan(
		&record.ID, &record.Symptoms, &record.RawResponse, &classification,
		&record.Justification, &record.Recommendations, &record.CreatedAt,
		&validated, &feedback, &validatedBy, &validatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Classification = models.Classification(classification)
	if validated != 0 {
		record.Validation.Validated = true
		record.Validation.Feedback = feedback.String
		record.Validation.ValidatedBy = validatedBy.String
		if validatedAt.Valid {
			t := validatedAt.Time
			record.Validation.ValidatedAt = &t
		}
	}
	return &record, nil
}
