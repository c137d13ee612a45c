package models

import "time"

// Case is a validated prior case held in the similarity store. The embedding
// is computed from SymptomText; OutcomeText is the reviewed triage outcome
// supplied to the generator as grounding context.
type Case struct {
	ID          string
	SymptomText string
	OutcomeText string
	Embedding   []float32
}

// ValidationState records the human-review status of a triage record.
// When Validated is false the remaining fields are unset; once a reviewer
// validates, all three are set together.
type ValidationState struct {
	Validated   bool       `json:"validated"`
	Feedback    string     `json:"feedback,omitempty"`
	ValidatedBy string     `json:"validated_by,omitempty"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
}

// TriageRecord is the durable result of one triage request. It is created
// pending and mutated exactly once, by reviewer validation.
type TriageRecord struct {
	ID              string          `json:"id"`
	Symptoms        string          `json:"symptoms"`
	RawResponse     string          `json:"raw_response"`
	Classification  Classification  `json:"classification"`
	Justification   string          `json:"justification"`
	Recommendations string          `json:"recommendations"`
	CreatedAt       time.Time       `json:"created_at"`
	Validation      ValidationState `json:"validation"`
}

// Stats summarizes the validation store.
type Stats struct {
	Total     int64 `json:"total"`
	Validated int64 `json:"validated"`
	Pending   int64 `json:"pending"`
}

// RecordFilter selects which records a listing returns.
type RecordFilter string

const (
	FilterAll       RecordFilter = "all"
	FilterPending   RecordFilter = "pending"
	FilterValidated RecordFilter = "validated"
)
