package models

// TriageRequest is the body of POST /api/v1/triage.
type TriageRequest struct {
	Symptoms string `json:"symptoms"`
}

// ValidationRequest is the body of POST /api/v1/records/{id}/validate.
type ValidationRequest struct {
	Reviewer string `json:"reviewer"`
	Feedback string `json:"feedback"`
}

// ValidationResponse reports the outcome of a validation action.
type ValidationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RecordSearchHit is one full-text search result over triage records.
type RecordSearchHit struct {
	Record *TriageRecord `json:"record"`
	Score  float64       `json:"score"`
}
