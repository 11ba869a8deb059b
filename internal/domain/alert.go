package domain

import "time"

// Alert severity tiers, derived solely from the final risk score.
const (
	SeverityHigh   = "High"
	SeverityMedium = "Medium"
)

// Alert lifecycle states. Alerts are created in StatusNew and only ever
// move to StatusRead via the review workflow; nothing else mutates them.
const (
	AlertStatusNew  = "new"
	AlertStatusRead = "read"
)

// Alert is raised when a transaction's final risk score crosses the flag
// threshold. It is persisted atomically with its parent transaction.
type Alert struct {
	ID            int64     `json:"id"`
	TransactionID string    `json:"transactionId"`
	RuleTriggered string    `json:"ruleTriggered"`
	Severity      string    `json:"severity"`
	Details       string    `json:"details"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
}
