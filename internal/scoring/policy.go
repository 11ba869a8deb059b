package scoring

import (
	"fmt"

	"github.com/vigilant-watch/vigilant/internal/domain"
)

// Decide maps a final score and the triggered signals to an alert, or nil
// when the score does not cross the flag threshold. The alert references
// the transaction and embeds the numeric score in its details; its
// severity derives solely from the score.
func Decide(txID string, finalScore int, signals domain.SignalSet) *domain.Alert {
	if finalScore <= FlagThreshold {
		return nil
	}

	severity := domain.SeverityMedium
	if finalScore > HighSeverityThreshold {
		severity = domain.SeverityHigh
	}

	ruleTriggered := signals.Join(", ")
	if ruleTriggered == "" {
		ruleTriggered = PlaceholderRule
	}

	return &domain.Alert{
		TransactionID: txID,
		RuleTriggered: ruleTriggered,
		Severity:      severity,
		Details:       fmt.Sprintf("Risk Score: %d%%", finalScore),
		Status:        domain.AlertStatusNew,
	}
}
