package scoring

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vigilant-watch/vigilant/internal/domain"
)

var tracer = otel.Tracer("vigilant-scoring")

// HistoryReader retrieves the bounded account profile window.
type HistoryReader interface {
	RecentAmounts(ctx context.Context, accountID string) ([]float64, error)
}

// RuleEvaluator produces triggered-rule signals for a transaction.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, tx *domain.Transaction) domain.SignalSet
}

// AnomalyClassifier is the external anomaly model capability. It never
// fails: a missing model or a broken inference is a negative verdict.
type AnomalyClassifier interface {
	Classify(amount float64, category string) bool
}

// StatDetector computes the statistical contribution and may append its
// own label to the signal set.
type StatDetector interface {
	Score(amount float64, history []float64, signals domain.SignalSet) (int, domain.SignalSet)
}

// Pipeline runs the ordered risk-scoring stages for one transaction:
// profile read, deterministic rules, anomaly model, statistical detector,
// max-aggregation, alert policy, atomic persistence.
type Pipeline struct {
	profiles   HistoryReader
	rules      RuleEvaluator
	classifier AnomalyClassifier
	detector   StatDetector
	repo       domain.Repository
	bus        domain.EventBus
}

// NewPipeline wires the scoring stages together. bus may be nil when
// decision fan-out is not wanted (tests).
func NewPipeline(profiles HistoryReader, rules RuleEvaluator, classifier AnomalyClassifier, detector StatDetector, repo domain.Repository, bus domain.EventBus) *Pipeline {
	return &Pipeline{
		profiles:   profiles,
		rules:      rules,
		classifier: classifier,
		detector:   detector,
		repo:       repo,
		bus:        bus,
	}
}

// DecisionEvent is the payload published to the decision and alert topics.
type DecisionEvent struct {
	Transaction *domain.Transaction `json:"transaction"`
	Alert       *domain.Alert       `json:"alert,omitempty"`
	Labels      []string            `json:"labels,omitempty"`
}

// Process scores one transaction and persists the decision. It returns the
// stored transaction and the alert, which is nil when the transaction was
// not flagged. The only error it can return is a persistence failure;
// every detector failure degrades to "no signal" instead of aborting.
func (p *Pipeline) Process(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, *domain.Alert, error) {
	ctx, span := tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(
			attribute.String("account.id", tx.AccountID),
			attribute.Float64("tx.amount", tx.Amount),
		),
	)
	defer span.End()

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	// Fresh read per evaluation; no caching, no isolation against
	// concurrent writers for the same account.
	history, err := p.profiles.RecentAmounts(ctx, tx.AccountID)
	if err != nil {
		slog.Error("failed to load account history", "account_id", tx.AccountID, "error", err)
		history = nil
	}

	signals := p.collectRuleSignals(ctx, tx)

	if p.classifier != nil && p.classifier.Classify(tx.Amount, tx.MerchantCategory) {
		signals = signals.Append(domain.Signal{
			Label: domain.LabelMLAnomaly,
			Score: domain.FloorMLAnomaly,
		})
	}

	// The statistical detector runs last: it inspects the accumulated set
	// only to keep its label emission idempotent.
	statScore, signals := p.detector.Score(tx.Amount, history, signals)

	finalScore := Aggregate(signals, statScore)
	tx.RiskScore = finalScore
	tx.IsFlagged = finalScore > FlagThreshold

	alert := Decide(tx.ID, finalScore, signals)

	span.SetAttributes(
		attribute.Int("risk.score", finalScore),
		attribute.Bool("risk.flagged", tx.IsFlagged),
	)

	if err := p.repo.SaveDecision(ctx, tx, alert); err != nil {
		return nil, nil, err
	}

	p.publish(ctx, tx, alert, signals)

	return tx, alert, nil
}

// collectRuleSignals evaluates the deterministic rules. Any unexpected
// failure is recovered here and treated as "no rules triggered"; the
// transaction is still scored and persisted.
func (p *Pipeline) collectRuleSignals(ctx context.Context, tx *domain.Transaction) (signals domain.SignalSet) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("rule evaluation panicked, treating as no rules triggered",
				"tx_id", tx.ID,
				"panic", r,
			)
			signals = domain.SignalSet{}
		}
	}()

	if p.rules == nil {
		return domain.SignalSet{}
	}
	return p.rules.Evaluate(ctx, tx)
}

// publish fans the decision out on the bus, best-effort.
func (p *Pipeline) publish(ctx context.Context, tx *domain.Transaction, alert *domain.Alert, signals domain.SignalSet) {
	if p.bus == nil {
		return
	}

	payload, err := json.Marshal(DecisionEvent{
		Transaction: tx,
		Alert:       alert,
		Labels:      signals.Labels(),
	})
	if err != nil {
		slog.Error("failed to encode decision event", "tx_id", tx.ID, "error", err)
		return
	}

	if err := p.bus.Publish(ctx, domain.TopicDecision, payload); err != nil {
		slog.Error("failed to publish decision", "tx_id", tx.ID, "error", err)
	}
	if alert != nil {
		if err := p.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert", "tx_id", tx.ID, "error", err)
		}
	}
}
