// Package generation invokes the external text-generation service that
// produces the triage classification text.
package generation

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the generation service is unreachable, returned
// an error, or timed out. The caller surfaces it to the user; retrying is
// the user's action, not ours, so a down dependency is never masked.
var ErrUnavailable = errors.New("generation service unavailable")

// Generator produces raw classification text for a composed prompt.
// Implementations bound the call with a timeout.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
