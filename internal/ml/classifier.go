// Package ml wraps the optional pre-trained isolation forest model used to
// flag point anomalies from (amount, category) features.
package ml

// Classifier is the external anomaly model capability. Implementations
// never fail: every degradation path is a negative verdict, so the scoring
// pipeline can call Classify unconditionally.
type Classifier interface {
	// Classify reports whether (amount, category) is a point anomaly.
	Classify(amount float64, category string) bool

	// Available reports whether a trained model is actually loaded.
	Available() bool
}

// Disabled returns the classifier used when no model artifact is present:
// it always reports "not anomalous" and the system runs rule-only.
func Disabled() Classifier {
	return disabledClassifier{}
}

type disabledClassifier struct{}

func (disabledClassifier) Classify(amount float64, category string) bool { return false }
func (disabledClassifier) Available() bool                               { return false }

// Model is a loaded isolation forest plus its fitted category encoder.
// It is immutable after load and safe to share across concurrent
// evaluations without synchronization.
type Model struct {
	forest  *Forest
	encoder *LabelEncoder
}

// NewModel builds a classifier from a trained forest and encoder.
func NewModel(forest *Forest, encoder *LabelEncoder) *Model {
	return &Model{forest: forest, encoder: encoder}
}

// Classify runs inference. An unseen category maps to the encoder's
// fallback code; a malformed model or input yields a negative verdict
// rather than an error.
func (m *Model) Classify(amount float64, category string) bool {
	if m == nil || m.forest == nil || len(m.forest.Trees) == 0 {
		return false
	}

	code := 0
	if m.encoder != nil {
		code = m.encoder.Encode(category)
	}

	anomalous, ok := m.forest.Anomalous([]float64{amount, float64(code)})
	if !ok {
		return false
	}
	return anomalous
}

// Available reports that a trained model is loaded.
func (m *Model) Available() bool {
	return m != nil && m.forest != nil && len(m.forest.Trees) > 0
}
