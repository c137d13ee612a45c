// Package models defines the core triage data types.
package models

// Classification is a Manchester Protocol urgency level.
type Classification string

const (
	ClassificationRed     Classification = "red"
	ClassificationOrange  Classification = "orange"
	ClassificationYellow  Classification = "yellow"
	ClassificationGreen   Classification = "green"
	ClassificationBlue    Classification = "blue"
	ClassificationUnknown Classification = "unknown"
)

// ClassificationsByPriority lists the five levels from most to least urgent.
// Detection in generated text follows this order.
var ClassificationsByPriority = []Classification{
	ClassificationRed,
	ClassificationOrange,
	ClassificationYellow,
	ClassificationGreen,
	ClassificationBlue,
}

// portugueseTokens maps each level to the color word the generator is
// instructed to emit (the rubric prompt is Portuguese).
var portugueseTokens = map[Classification]string{
	ClassificationRed:    "vermelho",
	ClassificationOrange: "laranja",
	ClassificationYellow: "amarelo",
	ClassificationGreen:  "verde",
	ClassificationBlue:   "azul",
}

// Token returns the lowercase Portuguese color word for c, or "" for unknown.
func (c Classification) Token() string {
	return portugueseTokens[c]
}

// Valid reports whether c is one of the five rubric levels or unknown.
func (c Classification) Valid() bool {
	if c == ClassificationUnknown {
		return true
	}
	_, ok := portugueseTokens[c]
	return ok
}
