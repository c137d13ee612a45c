// Package parser deterministically extracts the structured triage decision
// from raw generated text. Parsing is total: malformed output degrades to an
// unknown classification plus fixed fallback strings, never an error.
package parser

import (
	"strings"

	"github.com/hci/triagem/internal/models"
)

// Section markers of the response grammar the rubric prompt enforces.
const (
	classificationMarker  = "Classificação"
	justificationMarker   = "Justificativa"
	recommendationsMarker = "Condutas"
)

// Fallback texts surfaced when the generator produced no usable section.
// A reviewer must never see an empty clinical justification.
const (
	FallbackJustification   = "Análise clínica baseada nos sintomas apresentados e protocolos de triagem aplicáveis."
	FallbackRecommendations = "Condutas específicas a serem determinadas pelo profissional de saúde conforme avaliação clínica."
)

// Result is the structured decision extracted from raw generated text.
type Result struct {
	Classification  models.Classification
	Justification   string
	Recommendations string
}

// Parser extracts triage decisions from generated text.
type Parser struct {
	minJustificationLen int
}

// New creates a parser. Justifications shorter than minJustificationLen
// characters are replaced by the fallback text.
func New(minJustificationLen int) *Parser {
	if minJustificationLen <= 0 {
		minJustificationLen = 10
	}
	return &Parser{minJustificationLen: minJustificationLen}
}

// Parse extracts (classification, justification, recommendations) from raw.
// It never fails.
func (p *Parser) Parse(raw string) Result {
	cleaned := stripBoilerplate(raw)
	classification := detectClassification(cleaned)

	parts := strings.SplitN(cleaned, recommendationsMarker, 2)
	justification := extractJustification(parts[0], classification)
	if len(strings.TrimSpace(justification)) < p.minJustificationLen {
		justification = FallbackJustification
	}

	recommendations := ""
	if len(parts) > 1 {
		recommendations = trimSection(parts[1])
	} else if strings.Contains(raw, recommendationsMarker) {
		// Boilerplate stripping can mangle the section split; recover the
		// recommendations from the untouched raw text.
		rawParts := strings.SplitN(raw, recommendationsMarker, 2)
		if len(rawParts) > 1 {
			recommendations = trimSection(rawParts[1])
		}
	}
	if recommendations == "" {
		recommendations = FallbackRecommendations
	}

	return Result{
		Classification:  classification,
		Justification:   justification,
		Recommendations: recommendations,
	}
}

// trimSection trims whitespace and the marker's trailing colon from a
// section body.
func trimSection(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), ":"))
}

// stripBoilerplate removes role-prefix artifacts and stray literal
// "Justificativa" labels the generator tends to echo.
func stripBoilerplate(raw string) string {
	cleaned := strings.ReplaceAll(raw, "assistant:", "")
	cleaned = strings.ReplaceAll(cleaned, justificationMarker+":", "")
	cleaned = strings.ReplaceAll(cleaned, justificationMarker, "")
	return cleaned
}

// detectClassification scans for the five color tokens in fixed priority
// order, most urgent first. The first priority level found anywhere in the
// text wins; none yields unknown.
func detectClassification(text string) models.Classification {
	lower := strings.ToLower(text)
	for _, c := range models.ClassificationsByPriority {
		if strings.Contains(lower, c.Token()) {
			return c
		}
	}
	return models.ClassificationUnknown
}

// extractJustification pulls the justification out of the block preceding
// the recommendations marker. The leading color line, a duplicate color
// token, and a list bullet are cleanup heuristics, not guarantees: the
// generator is told to keep colors out of the justification but does not
// reliably comply.
func extractJustification(block string, classification models.Classification) string {
	justification := strings.TrimSpace(block)
	if idx := strings.Index(justification, classificationMarker); idx >= 0 {
		justification = strings.TrimSpace(justification[idx+len(classificationMarker):])
		justification = strings.TrimSpace(strings.TrimPrefix(justification, ":"))
	}

	token := classification.Token()
	if token != "" {
		// Drop a first line consisting solely of the color word.
		if nl := strings.IndexByte(justification, '\n'); nl >= 0 {
			if strings.EqualFold(strings.TrimSpace(justification[:nl]), token) {
				justification = strings.TrimSpace(justification[nl+1:])
			}
		}
		if len(justification) >= len(token) && strings.EqualFold(justification[:len(token)], token) {
			justification = strings.TrimSpace(justification[len(token):])
		}
	}
	justification = strings.TrimSpace(strings.TrimPrefix(justification, "-"))
	return justification
}
