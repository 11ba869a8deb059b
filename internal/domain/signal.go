// Package domain defines the core types and interfaces for Vigilant.
package domain

import "strings"

// Well-known signal labels emitted by the detectors.
const (
	LabelHighAmount = "High Amount Transaction"
	LabelRapid      = "Rapid Transactions"
	LabelMLAnomaly  = "ML Anomaly (Isolation Forest)"

	// LabelZScorePrefix prefixes statistical anomaly labels, which embed
	// their own risk percentage (e.g. "Z-Score Anomaly (Risk: 72%)").
	LabelZScorePrefix = "Z-Score"
)

// Score floors applied when the corresponding signal is present. The final
// risk score is the maximum across floors, never a sum: no combination of
// weak signals may exceed the strongest single signal.
const (
	FloorHighAmount = 95
	FloorMLAnomaly  = 88
	FloorRapid      = 80
)

// Signal is one triggered detection with the score floor it contributes.
type Signal struct {
	Label string `json:"label"`
	Score int    `json:"score"`
}

// SignalSet is an ordered set of triggered signals. Order is stable for
// display only; scoring precedence comes from the floors. Duplicate labels
// are dropped on insert, which is what makes the statistical detector's
// label emission idempotent.
type SignalSet struct {
	signals []Signal
}

// Append adds a signal unless a signal with the same label is present.
// It returns the (possibly unchanged) set by value; sets are passed by
// value between pipeline stages so no stage mutates another's view.
func (s SignalSet) Append(sig Signal) SignalSet {
	for _, existing := range s.signals {
		if existing.Label == sig.Label {
			return s
		}
	}
	out := make([]Signal, len(s.signals), len(s.signals)+1)
	copy(out, s.signals)
	return SignalSet{signals: append(out, sig)}
}

// ContainsPrefix reports whether any signal label starts with prefix.
func (s SignalSet) ContainsPrefix(prefix string) bool {
	for _, sig := range s.signals {
		if strings.HasPrefix(sig.Label, prefix) {
			return true
		}
	}
	return false
}

// Contains reports whether a signal with exactly this label is present.
func (s SignalSet) Contains(label string) bool {
	for _, sig := range s.signals {
		if sig.Label == label {
			return true
		}
	}
	return false
}

// Signals returns the signals in insertion order.
func (s SignalSet) Signals() []Signal {
	out := make([]Signal, len(s.signals))
	copy(out, s.signals)
	return out
}

// Labels returns the labels in insertion order.
func (s SignalSet) Labels() []string {
	labels := make([]string, len(s.signals))
	for i, sig := range s.signals {
		labels[i] = sig.Label
	}
	return labels
}

// Join renders the labels as one display string.
func (s SignalSet) Join(sep string) string {
	return strings.Join(s.Labels(), sep)
}

// Len returns the number of signals in the set.
func (s SignalSet) Len() int {
	return len(s.signals)
}
