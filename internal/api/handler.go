package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vigilant-watch/vigilant/internal/domain"
	"github.com/vigilant-watch/vigilant/internal/ml"
	"github.com/vigilant-watch/vigilant/internal/notify"
	"github.com/vigilant-watch/vigilant/internal/rules"
	"github.com/vigilant-watch/vigilant/internal/scoring"
)

// analyticsTTL is how long cached analytics aggregates stay fresh.
const analyticsTTL = 30 * time.Second

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	pipeline   *scoring.Pipeline
	engine     *rules.Engine
	ticker     *notify.Ticker
	classifier ml.Classifier
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, pipeline *scoring.Pipeline, engine *rules.Engine, ticker *notify.Ticker, classifier ml.Classifier, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		pipeline:   pipeline,
		engine:     engine,
		ticker:     ticker,
		classifier: classifier,
		version:    version,
	}
}

// ScoreResponse is the response for POST /api/v1/transactions.
type ScoreResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
	Alert       *domain.Alert       `json:"alert,omitempty"`
	Metadata    struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// ScoreTransaction handles POST /api/v1/transactions: it validates the
// request, runs the scoring pipeline and returns the persisted decision.
func (h *Handler) ScoreTransaction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	tx, alert, err := h.pipeline.Process(ctx, req.ToTransaction())
	if err != nil {
		slog.Error("failed to score transaction", "account_id", req.AccountID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to persist decision",
		})
		return
	}

	resp := ScoreResponse{Transaction: tx, Alert: alert}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusCreated, resp)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")

	tx, err := h.repo.GetTransaction(r.Context(), txID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListTransactions returns recent transactions, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)

	txs, err := h.repo.ListTransactions(r.Context(), offset, limit)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	})
}

// ListAlerts returns alerts, newest first.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)

	alerts, err := h.repo.ListAlerts(r.Context(), offset, limit)
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// MarkAlertsRead transitions every new alert to read.
func (h *Handler) MarkAlertsRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.repo.MarkAlertsRead(r.Context())
	if err != nil {
		slog.Error("failed to mark alerts read", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to mark alerts read",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
	})
}

// AlertTicker returns the in-memory live feed of recent alert events.
func (h *Handler) AlertTicker(w http.ResponseWriter, r *http.Request) {
	limit := notify.DefaultFeedSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events := h.ticker.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// anomalySummary is the payload for GET /api/v1/analytics/anomaly.
type anomalySummary struct {
	TotalAnomalies int64             `json:"totalAnomalies"`
	Recent24h      int64             `json:"recentAnomalies24h"`
	Series         []timeSeriesPoint `json:"series"`
	ModelActive    bool              `json:"modelActive"`
}

// timeSeriesPoint is one hourly bucket in an analytics series.
type timeSeriesPoint struct {
	Timestamp string `json:"timestamp"`
	Count     int64  `json:"count"`
}

// hourlySeries buckets timestamps into 24 hourly points ending at now,
// oldest first. Bucket labels are the UTC hour, "15:00" style.
func hourlySeries(now time.Time, stamps []time.Time) []timeSeriesPoint {
	buckets := make(map[string]int64, 24)
	for _, ts := range stamps {
		buckets[ts.UTC().Format("15:00")]++
	}

	series := make([]timeSeriesPoint, 0, 24)
	for i := 23; i >= 0; i-- {
		key := now.UTC().Add(-time.Duration(i) * time.Hour).Format("15:00")
		series = append(series, timeSeriesPoint{Timestamp: key, Count: buckets[key]})
	}
	return series
}

// AnomalySummary aggregates anomaly-related alerts: the all-time count,
// the count from the last 24 hours and an hourly series over that window.
func (h *Handler) AnomalySummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.serveCached(w, ctx, "analytics:anomaly") {
		return
	}

	total, err := h.repo.CountAnomalyAlerts(ctx)
	if err != nil {
		slog.Error("failed to count anomaly alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute anomaly summary",
		})
		return
	}

	now := time.Now().UTC()
	recent, err := h.repo.AnomalyAlertsSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		slog.Error("failed to load recent anomaly alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute anomaly summary",
		})
		return
	}

	stamps := make([]time.Time, 0, len(recent))
	for _, alert := range recent {
		stamps = append(stamps, alert.Timestamp)
	}

	summary := anomalySummary{
		TotalAnomalies: total,
		Recent24h:      int64(len(recent)),
		Series:         hourlySeries(now, stamps),
		ModelActive:    h.classifier != nil && h.classifier.Available(),
	}

	h.writeAndCache(w, ctx, "analytics:anomaly", summary)
}

// FraudByCategory returns flagged transaction counts per merchant
// category, highest first.
func (h *Handler) FraudByCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.serveCached(w, ctx, "analytics:fraud-by-category") {
		return
	}

	counts, err := h.repo.FlaggedByCategory(ctx)
	if err != nil {
		slog.Error("failed to aggregate flagged categories", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute category summary",
		})
		return
	}
	if counts == nil {
		counts = []domain.CategoryCount{}
	}

	h.writeAndCache(w, ctx, "analytics:fraud-by-category", map[string]any{
		"categories": counts,
	})
}

// RuleContribution returns how often each deterministic rule fired across
// all alerts, as counts and percentage shares, most frequent first.
func (h *Handler) RuleContribution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.serveCached(w, ctx, "analytics:rule-contribution") {
		return
	}

	stats, err := h.repo.RuleContribution(ctx, 0)
	if err != nil {
		slog.Error("failed to aggregate rule contribution", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute rule contribution",
		})
		return
	}
	if stats == nil {
		stats = []domain.RuleCount{}
	}

	h.writeAndCache(w, ctx, "analytics:rule-contribution", map[string]any{
		"rules": stats,
	})
}

// ListRules returns the custom rules currently loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.LoadedRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateRule validates, persists and hot-loads a custom rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.RuleConfig
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if rule.ID == "" || rule.Label == "" || rule.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, label, and expression are required",
		})
		return
	}

	if err := h.engine.ValidateRule(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveRuleConfig(ctx, &rule); err != nil {
		slog.Error("failed to save rule config", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	if rule.Enabled {
		if err := h.engine.LoadRule(&rule); err != nil {
			slog.Error("failed to load rule into engine", "id", rule.ID, "error", err)
		}
	}

	slog.Info("rule created", "id", rule.ID, "label", rule.Label)
	writeJSON(w, http.StatusCreated, rule)
}

// ReloadRules replaces the engine's custom rules with the enabled set
// from the repository.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	configs, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rule configs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules",
		})
		return
	}

	if err := h.engine.ReloadRules(configs); err != nil {
		slog.Error("failed to reload rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	count := h.engine.RulesCount()
	slog.Info("rules reloaded", "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded",
		"count":   count,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"version":      h.version,
		"model_active": h.classifier != nil && h.classifier.Available(),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// serveCached writes a cached analytics payload if one is fresh.
func (h *Handler) serveCached(w http.ResponseWriter, ctx context.Context, key string) bool {
	if h.cache == nil {
		return false
	}
	data, err := h.cache.Get(ctx, key)
	if err != nil || data == nil {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return true
}

// writeAndCache responds with v and stores the encoded payload for
// subsequent reads.
func (h *Handler) writeAndCache(w http.ResponseWriter, ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode analytics payload", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode response",
		})
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, data, analyticsTTL); err != nil {
			slog.Warn("failed to cache analytics payload", "key", key, "error", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func pagination(r *http.Request) (offset, limit int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return offset, limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
