// Package rules evaluates the deterministic fraud rules against incoming
// transactions.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/vigilant-watch/vigilant/internal/domain"
)

// VelocityCounter returns the committed transaction count for an account
// inside a trailing window.
type VelocityCounter func(ctx context.Context, accountID string, window time.Duration) (int64, error)

// Engine evaluates the two builtin rules, then any loaded custom CEL
// rules. Each rule is independent and the output order is fixed: high
// amount, velocity, customs sorted by rule ID. A rule that cannot evaluate
// simply does not fire.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	custom   map[string]*compiledRule
	velocity VelocityCounter
	cfg      domain.ScoringConfig
}

type compiledRule struct {
	config  *domain.RuleConfig
	program cel.Program
}

// NewEngine creates a rule engine. velocity may be nil, in which case the
// velocity rule never fires.
func NewEngine(velocity VelocityCounter, cfg domain.ScoringConfig) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("account_id", cel.StringType),
		cel.Variable("velocity_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	if cfg.HighAmountThreshold <= 0 {
		cfg.HighAmountThreshold = 10000
	}
	if cfg.VelocityWindowSecs <= 0 {
		cfg.VelocityWindowSecs = 300
	}
	if cfg.VelocityThreshold <= 0 {
		cfg.VelocityThreshold = 3
	}

	return &Engine{
		env:      env,
		custom:   make(map[string]*compiledRule),
		velocity: velocity,
		cfg:      cfg,
	}, nil
}

// Evaluate runs all rules against the transaction and returns the
// triggered signals.
func (e *Engine) Evaluate(ctx context.Context, tx *domain.Transaction) domain.SignalSet {
	var signals domain.SignalSet

	// Builtin: high amount. Currency-unit-agnostic threshold, a known
	// simplification.
	if tx.Amount > e.cfg.HighAmountThreshold {
		signals = signals.Append(domain.Signal{
			Label: domain.LabelHighAmount,
			Score: domain.FloorHighAmount,
		})
	}

	// Builtin: velocity over committed history. A count that cannot be
	// read means the rule does not fire, not that the evaluation fails.
	velocityCount := int64(0)
	if e.velocity != nil {
		window := time.Duration(e.cfg.VelocityWindowSecs) * time.Second
		count, err := e.velocity(ctx, tx.AccountID, window)
		if err != nil {
			slog.Warn("velocity count unavailable, rule skipped",
				"account_id", tx.AccountID,
				"error", err,
			)
		} else {
			velocityCount = count
			if count >= int64(e.cfg.VelocityThreshold) {
				signals = signals.Append(domain.Signal{
					Label: domain.LabelRapid,
					Score: domain.FloorRapid,
				})
			}
		}
	}

	return e.evaluateCustom(tx, velocityCount, signals)
}

func (e *Engine) evaluateCustom(tx *domain.Transaction, velocityCount int64, signals domain.SignalSet) domain.SignalSet {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.custom))
	for _, r := range e.custom {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return signals
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].config.ID < rules[j].config.ID
	})

	activation := map[string]any{
		"amount":         tx.Amount,
		"currency":       tx.Currency,
		"category":       tx.MerchantCategory,
		"channel":        tx.Channel,
		"account_id":     tx.AccountID,
		"velocity_count": velocityCount,
	}

	for _, rule := range rules {
		out, _, err := rule.program.Eval(activation)
		if err != nil {
			slog.Warn("custom rule evaluation failed, rule skipped",
				"rule_id", rule.config.ID,
				"error", err,
			)
			continue
		}
		fired, ok := out.(types.Bool)
		if !ok || !bool(fired) {
			continue
		}
		signals = signals.Append(domain.Signal{
			Label: rule.config.Label,
			Score: clampFloor(rule.config.ScoreFloor),
		})
	}

	return signals
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: rule config is required", domain.ErrInvalidInput)
	}
	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a custom rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.custom[cfg.ID] = compiled
	return nil
}

// ReloadRules replaces all loaded custom rules, enabling hot reload from
// the repository.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	next := make(map[string]*compiledRule, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.custom = next
	return nil
}

// LoadedRules returns the currently loaded custom rule configurations.
func (e *Engine) LoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.RuleConfig, 0, len(e.custom))
	for _, r := range e.custom {
		out = append(out, r.config)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RulesCount returns the number of loaded custom rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.custom)
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*compiledRule, error) {
	if cfg.ID == "" || cfg.Label == "" || cfg.Expression == "" {
		return nil, fmt.Errorf("%w: rule id, label, and expression are required", domain.ErrInvalidInput)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &compiledRule{config: cfg, program: program}, nil
}

func clampFloor(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
