package scorer

import (
	"context"

	"github.com/Souradip121/sentiment-service/internal/domain"
)

// Scorer produces a sentiment label and signed score for a piece of text.
// Both the remote client and the local lexicon satisfy it; the orchestrator
// decides which one a request actually hits.
type Scorer interface {
	Score(ctx context.Context, text string) (domain.Result, error)
}
