// Package stats provides the per-account statistical anomaly detector.
package stats

import (
	"fmt"
	"math"

	"github.com/vigilant-watch/vigilant/internal/domain"
)

const (
	// MinSamples is the history size below which no statistical score is
	// produced; a smaller sample is too noisy to call anything an outlier.
	MinSamples = 6

	// LabelThreshold is the score above which a z-score label is emitted.
	// Note this sits above the alert policy's flag threshold (50), so a
	// statistical score in (50, 60] can flag a transaction without
	// emitting a label. Deliberately preserved from the original policy.
	LabelThreshold = 60

	// zScale maps |z| to a 0-99 score: z=2 lands near 60, z=3 near 90.
	zScale = 30

	maxScore = 99
)

// Detector computes a bounded statistical risk contribution from the
// deviation of a new amount against the account's historical amounts.
type Detector struct{}

// NewDetector creates a statistical anomaly detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Score computes the statistical contribution for amount against history
// and appends a z-score label to the signal set when the contribution is
// strong enough. Label emission is idempotent: if any "Z-Score"-prefixed
// label is already present, none is added. The returned score participates
// in max-aggregation whether or not a label was emitted.
func (d *Detector) Score(amount float64, history []float64, signals domain.SignalSet) (int, domain.SignalSet) {
	if len(history) < MinSamples {
		return 0, signals
	}

	mean, std := meanStd(history)
	if std == 0 {
		// Degenerate all-identical history; no deviation to measure.
		return 0, signals
	}

	z := (amount - mean) / std
	// Cap before the int conversion: for extreme amounts |z|*zScale can
	// overflow float64 range, and converting +Inf to int is undefined.
	score := int(math.Min(math.Abs(z)*zScale, maxScore))

	if score > LabelThreshold && !signals.ContainsPrefix(domain.LabelZScorePrefix) {
		signals = signals.Append(domain.Signal{
			Label: fmt.Sprintf("Z-Score Anomaly (Risk: %d%%)", score),
			Score: score,
		})
	}

	return score, signals
}

// meanStd returns the mean and population standard deviation of values.
func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
