package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/vigilant-watch/vigilant/internal/domain"
)

// SQLRepository implements domain.Repository over database/sql. It speaks
// both SQLite and PostgreSQL; queries are written with ? placeholders and
// rebound per driver.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a repository based on the configured driver.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg)
	case "postgres":
		return NewPostgres(cfg)
	default:
		return nil, fmt.Errorf("unknown repository driver %q", cfg.Driver)
	}
}

// rebind converts ? placeholders to $1..$n for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	for _, stmt := range AllSchemas(r.driver) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// SaveDecision writes the scored transaction and, when present, its alert
// in a single database transaction. The alert's generated ID is filled in
// on success.
func (r *SQLRepository) SaveDecision(ctx context.Context, tx *domain.Transaction, alert *domain.Alert) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin decision tx: %w", err)
	}
	defer dbtx.Rollback()

	_, err = dbtx.ExecContext(ctx, r.rebind(`
		INSERT INTO transactions
			(id, account_id, amount, currency, merchant_category,
			 location_lat, location_lon, channel, timestamp, risk_score, is_flagged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		tx.ID, tx.AccountID, tx.Amount, tx.Currency, tx.MerchantCategory,
		tx.LocationLat, tx.LocationLon, tx.Channel, tx.Timestamp,
		tx.RiskScore, boolToInt(tx.IsFlagged))
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}

	if alert != nil {
		if alert.Timestamp.IsZero() {
			alert.Timestamp = time.Now().UTC()
		}
		err = dbtx.QueryRowContext(ctx, r.rebind(`
			INSERT INTO alerts
				(transaction_id, rule_triggered, severity, details, timestamp, status)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`),
			alert.TransactionID, alert.RuleTriggered, alert.Severity,
			alert.Details, alert.Timestamp, alert.Status).Scan(&alert.ID)
		if err != nil {
			return fmt.Errorf("insert alert for %s: %w", tx.ID, err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit decision tx: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT id, account_id, amount, currency, merchant_category,
		       location_lat, location_lon, channel, timestamp, risk_score, is_flagged
		FROM transactions WHERE id = ?`), txID)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", txID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", txID, err)
	}
	return tx, nil
}

func (r *SQLRepository) ListTransactions(ctx context.Context, offset, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, account_id, amount, currency, merchant_category,
		       location_lat, location_lon, channel, timestamp, risk_score, is_flagged
		FROM transactions
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*domain.Transaction, 0, limit)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *SQLRepository) RecentAmounts(ctx context.Context, accountID string, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT amount FROM transactions
		WHERE account_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`), accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent amounts for %s: %w", accountID, err)
	}
	defer rows.Close()

	amounts := make([]float64, 0, limit)
	for rows.Next() {
		var a float64
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan amount: %w", err)
		}
		amounts = append(amounts, a)
	}
	return amounts, rows.Err()
}

func (r *SQLRepository) CountSince(ctx context.Context, accountID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT COUNT(*) FROM transactions
		WHERE account_id = ? AND timestamp >= ?`), accountID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count since for %s: %w", accountID, err)
	}
	return count, nil
}

func (r *SQLRepository) ListAlerts(ctx context.Context, offset, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, transaction_id, rule_triggered, severity, details, timestamp, status
		FROM alerts
		ORDER BY id DESC
		LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func (r *SQLRepository) MarkAlertsRead(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE alerts SET status = ? WHERE status = ?`),
		domain.AlertStatusRead, domain.AlertStatusNew)
	if err != nil {
		return 0, fmt.Errorf("mark alerts read: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO rule_configs
			(id, name, description, label, expression, score_floor, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			label = excluded.label,
			expression = excluded.expression,
			score_floor = excluded.score_floor,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`),
		rule.ID, rule.Name, rule.Description, rule.Label, rule.Expression,
		rule.ScoreFloor, boolToInt(rule.Enabled), rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save rule config %s: %w", rule.ID, err)
	}
	return nil
}

func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, label, expression, score_floor, enabled, created_at, updated_at
		FROM rule_configs
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list rule configs: %w", err)
	}
	defer rows.Close()

	var rules []*domain.RuleConfig
	for rows.Next() {
		var rc domain.RuleConfig
		var enabled int
		if err := rows.Scan(&rc.ID, &rc.Name, &rc.Description, &rc.Label,
			&rc.Expression, &rc.ScoreFloor, &enabled, &rc.CreatedAt, &rc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rule config: %w", err)
		}
		rc.Enabled = enabled != 0
		rules = append(rules, &rc)
	}
	return rules, rows.Err()
}

func (r *SQLRepository) AmountCategoryPairs(ctx context.Context) ([]domain.AmountCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT amount, COALESCE(merchant_category, '') FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("amount-category pairs: %w", err)
	}
	defer rows.Close()

	var pairs []domain.AmountCategory
	for rows.Next() {
		var p domain.AmountCategory
		if err := rows.Scan(&p.Amount, &p.Category); err != nil {
			return nil, fmt.Errorf("scan training pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// anomalyFilter matches alerts worth surfacing in anomaly analytics:
// anomaly-labelled rules, the high-amount rule, or anything high severity.
const anomalyFilter = `(rule_triggered LIKE '%Anomaly%'
		OR rule_triggered LIKE '%High Amount%'
		OR severity = 'High')`

func (r *SQLRepository) CountAnomalyAlerts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE `+anomalyFilter).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count anomaly alerts: %w", err)
	}
	return count, nil
}

func (r *SQLRepository) AnomalyAlertsSince(ctx context.Context, since time.Time) ([]*domain.Alert, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, transaction_id, rule_triggered, severity, details, timestamp, status
		FROM alerts
		WHERE `+anomalyFilter+` AND timestamp >= ?
		ORDER BY timestamp DESC`), since)
	if err != nil {
		return nil, fmt.Errorf("anomaly alerts since %s: %w", since, err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func (r *SQLRepository) FlaggedByCategory(ctx context.Context) ([]domain.CategoryCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(merchant_category, ''), COUNT(*)
		FROM transactions
		WHERE is_flagged = 1
		GROUP BY merchant_category
		ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("flagged by category: %w", err)
	}
	defer rows.Close()

	var counts []domain.CategoryCount
	for rows.Next() {
		var c domain.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// defaultRuleContributionLimit bounds the rule contribution aggregate to
// the few rules worth charting.
const defaultRuleContributionLimit = 5

func (r *SQLRepository) RuleContribution(ctx context.Context, limit int) ([]domain.RuleCount, error) {
	if limit <= 0 {
		limit = defaultRuleContributionLimit
	}

	rows, err := r.db.QueryContext(ctx, `SELECT rule_triggered FROM alerts`)
	if err != nil {
		return nil, fmt.Errorf("rule contribution: %w", err)
	}
	defer rows.Close()

	// rule_triggered is a comma-joined label list; split it here rather
	// than in SQL so the same query serves both drivers. Anomaly labels
	// are excluded, this aggregate covers deterministic rules only.
	counts := make(map[string]int64)
	var total int64
	for rows.Next() {
		var triggered string
		if err := rows.Scan(&triggered); err != nil {
			return nil, fmt.Errorf("scan rule triggered: %w", err)
		}
		for _, rule := range strings.Split(triggered, ", ") {
			if rule == "" || strings.Contains(rule, "Anomaly") || strings.Contains(rule, "Z-Score") {
				continue
			}
			counts[rule]++
			total++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rule contribution: %w", err)
	}

	stats := make([]domain.RuleCount, 0, len(counts))
	for rule, count := range counts {
		var pct float64
		if total > 0 {
			pct = math.Round(float64(count)/float64(total)*1000) / 10
		}
		stats = append(stats, domain.RuleCount{Rule: rule, Count: count, Percentage: pct})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Rule < stats[j].Rule
	})
	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var lat, lon sql.NullFloat64
	var flagged int
	err := row.Scan(&tx.ID, &tx.AccountID, &tx.Amount, &tx.Currency,
		&tx.MerchantCategory, &lat, &lon, &tx.Channel, &tx.Timestamp,
		&tx.RiskScore, &flagged)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		tx.LocationLat = &lat.Float64
	}
	if lon.Valid {
		tx.LocationLon = &lon.Float64
	}
	tx.IsFlagged = flagged != 0
	return &tx, nil
}

func collectAlerts(rows *sql.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.ID, &a.TransactionID, &a.RuleTriggered,
			&a.Severity, &a.Details, &a.Timestamp, &a.Status); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
