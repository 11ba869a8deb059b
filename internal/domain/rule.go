package domain

import "time"

// RuleConfig defines an operator-supplied custom detection rule.
//
// The two deterministic builtin rules (high amount, velocity) are fixed in
// code; custom rules extend them with a CEL boolean expression over the
// incoming transaction. A firing custom rule contributes its label and its
// configured score floor to the signal set, so aggregation stays max-based.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Label emitted when the rule fires.
	Label string `json:"label"`

	// Expression is a CEL expression that must evaluate to bool.
	// Available variables: amount, currency, category, channel,
	// account_id, velocity_count.
	Expression string `json:"expression"`

	// ScoreFloor contributed when the rule fires, clamped to [0, 100].
	ScoreFloor int `json:"scoreFloor"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
