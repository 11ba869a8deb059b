package ml

import "sort"

// FallbackCode is the code assigned to categories the encoder has never
// seen. Inference must not reject an unseen category.
const FallbackCode = 0

// LabelEncoder maps merchant category labels to learned numeric codes.
// Codes are assigned in sorted label order at fit time; the mapping is
// immutable afterwards.
type LabelEncoder struct {
	Classes map[string]int `json:"classes"`
}

// FitEncoder learns the category mapping from training labels.
func FitEncoder(categories []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		seen[c] = struct{}{}
	}

	sorted := make([]string, 0, len(seen))
	for c := range seen {
		sorted = append(sorted, c)
	}
	sort.Strings(sorted)

	classes := make(map[string]int, len(sorted))
	for i, c := range sorted {
		classes[c] = i
	}
	return &LabelEncoder{Classes: classes}
}

// Encode returns the learned code for a category, or FallbackCode for a
// category unseen at fit time.
func (e *LabelEncoder) Encode(category string) int {
	if e == nil || e.Classes == nil {
		return FallbackCode
	}
	code, ok := e.Classes[category]
	if !ok {
		return FallbackCode
	}
	return code
}
