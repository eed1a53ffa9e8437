// Package sentiment scores chat messages so the assistant can gauge cohort
// mood around deadlines.
package sentiment

import "context"

// Score is a normalized sentiment verdict for one message.
type Score struct {
	// Polarity ranges -1 (negative) to 1 (positive).
	Polarity float64 `json:"polarity"`
	Label    string  `json:"label"`
}

// Analyzer scores free-form message text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Score, error)
}
