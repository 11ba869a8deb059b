package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// SaveDecision durably stores a scored transaction and, when flagged,
	// its alert, as one unit: both rows commit or neither does. On success
	// the alert's generated ID and timestamp are filled in.
	SaveDecision(ctx context.Context, tx *Transaction, alert *Alert) error

	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context, offset, limit int) ([]*Transaction, error)

	// RecentAmounts returns up to limit of the most recent historical
	// amounts for an account. No history is an empty slice, not an error.
	RecentAmounts(ctx context.Context, accountID string, limit int) ([]float64, error)

	// CountSince counts persisted transactions for an account with a
	// timestamp at or after since. Used by the velocity rule; reads
	// committed state only, with no isolation against concurrent writers.
	CountSince(ctx context.Context, accountID string, since time.Time) (int64, error)

	// Alert review workflow
	ListAlerts(ctx context.Context, offset, limit int) ([]*Alert, error)
	MarkAlertsRead(ctx context.Context) (int64, error)

	// Custom rule configuration
	SaveRuleConfig(ctx context.Context, rule *RuleConfig) error
	ListRuleConfigs(ctx context.Context) ([]*RuleConfig, error)

	// AmountCategoryPairs exports the (amount, merchant category) training
	// set for the offline anomaly model trainer.
	AmountCategoryPairs(ctx context.Context) ([]AmountCategory, error)

	// Analytics aggregates
	CountAnomalyAlerts(ctx context.Context) (int64, error)
	AnomalyAlertsSince(ctx context.Context, since time.Time) ([]*Alert, error)
	FlaggedByCategory(ctx context.Context) ([]CategoryCount, error)

	// RuleContribution counts how often each deterministic rule label
	// appears across all alerts, anomaly labels excluded, most frequent
	// first, truncated to limit entries.
	RuleContribution(ctx context.Context, limit int) ([]RuleCount, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// AmountCategory is one training sample for the anomaly model.
type AmountCategory struct {
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

// CategoryCount is a per-merchant-category flagged transaction count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"fraudCount"`
}

// RuleCount is how often one rule label fired, with its share of all
// deterministic rule firings.
type RuleCount struct {
	Rule       string  `json:"rule"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
