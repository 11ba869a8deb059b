// Package scoring merges triggered signals into one bounded risk score and
// turns that score into a flag/alert decision.
package scoring

import "github.com/vigilant-watch/vigilant/internal/domain"

// Flag and severity thresholds.
const (
	// FlagThreshold is the score above which a transaction is flagged.
	FlagThreshold = 50

	// HighSeverityThreshold is the score above which an alert is "High".
	HighSeverityThreshold = 80

	// PlaceholderRule is recorded on an alert when flagging happened with
	// an empty label set (the statistical path can push the score over the
	// flag threshold without crossing its own label threshold).
	PlaceholderRule = "High Risk Score"
)

// Aggregate reduces the signal set and the statistical contribution to a
// single score in [0, 100]. Each signal carries the score floor fixed at
// emission (95 high amount, 80 velocity, 88 ML anomaly, custom rules their
// configured floor); the conditions are independent and combine via max,
// never sum, so weak signals can never outrank the strongest one. Absence
// of all signals yields 0.
func Aggregate(signals domain.SignalSet, statScore int) int {
	score := statScore
	for _, sig := range signals.Signals() {
		if sig.Score > score {
			score = sig.Score
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
