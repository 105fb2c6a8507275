package domain

import (
	"time"
)

// Label is the sentiment classification of a text. Every scoring path,
// remote or local, produces exactly one of the three enumerated values.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// Valid reports whether the label is one of the three enumerated values.
func (l Label) Valid() bool {
	switch l {
	case LabelPositive, LabelNegative, LabelNeutral:
		return true
	}
	return false
}

// Source identifies which scoring path produced a result.
type Source string

const (
	SourceRemote        Source = "remote"
	SourceLocalFallback Source = "local-fallback"
)

// Result is the outcome of a single sentiment analysis. Created fresh per
// request and never persisted as-is.
type Result struct {
	Label   Label         `json:"label"`
	Score   float64       `json:"score"`
	Source  Source        `json:"source"`
	Latency time.Duration `json:"-"`
}

// LabelForScore maps a compound score in [-1, 1] to a label using the same
// thresholds for both scoring paths.
func LabelForScore(score float64) Label {
	switch {
	case score >= 0.05:
		return LabelPositive
	case score <= -0.05:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// Analysis is a persisted record of a completed sentiment analysis, kept so
// users can retrieve their history.
type Analysis struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Text      string    `json:"text"`
	Score     float64   `json:"score"`
	Label     Label     `json:"label"`
	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
