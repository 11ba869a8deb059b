package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/vigilant-watch/vigilant/internal/bus"
	"github.com/vigilant-watch/vigilant/internal/cache"
	"github.com/vigilant-watch/vigilant/internal/domain"
	"github.com/vigilant-watch/vigilant/internal/ml"
	"github.com/vigilant-watch/vigilant/internal/notify"
	"github.com/vigilant-watch/vigilant/internal/profile"
	"github.com/vigilant-watch/vigilant/internal/repository"
	"github.com/vigilant-watch/vigilant/internal/rules"
	"github.com/vigilant-watch/vigilant/internal/scoring"
	"github.com/vigilant-watch/vigilant/internal/stats"
	"github.com/vigilant-watch/vigilant/internal/velocity"
)

// createTestServer wires the full stack over a temp SQLite database.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := repository.NewSQLite(domain.RepositoryConfig{
		SQLitePath: filepath.Join(t.TempDir(), "api-test.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	scoringCfg := domain.DefaultConfig().Scoring
	engine, err := rules.NewEngine(velocity.NewService(repo).Getter(), scoringCfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	ticker := notify.NewTicker(eventBus, 10)
	if err := ticker.Start(); err != nil {
		t.Fatalf("ticker.Start: %v", err)
	}
	t.Cleanup(ticker.Stop)

	classifier := ml.Disabled()
	pipeline := scoring.NewPipeline(
		profile.NewReader(repo, scoringCfg.HistoryLimit),
		engine,
		classifier,
		stats.NewDetector(),
		repo,
		eventBus,
	)

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}
	return NewServer(cfg, repo, cache.NewLRUCache(100), pipeline, engine, ticker, classifier, "test-v1")
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestScoreTransactionEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("CleanTransaction", func(t *testing.T) {
		rr := postJSON(t, server, "/api/v1/transactions", domain.TransactionRequest{
			AccountID:        "acct-clean",
			Amount:           120.50,
			MerchantCategory: "retail",
			Channel:          "card",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
		}

		var resp ScoreResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("parse response: %v", err)
		}
		if resp.Transaction.ID == "" {
			t.Error("transaction ID not generated")
		}
		if resp.Transaction.RiskScore != 0 || resp.Transaction.IsFlagged {
			t.Errorf("clean transaction scored %d flagged=%v", resp.Transaction.RiskScore, resp.Transaction.IsFlagged)
		}
		if resp.Alert != nil {
			t.Errorf("unexpected alert: %+v", resp.Alert)
		}
		if resp.Transaction.Currency != "USD" {
			t.Errorf("currency default = %q", resp.Transaction.Currency)
		}
	})

	t.Run("HighAmountFlagged", func(t *testing.T) {
		rr := postJSON(t, server, "/api/v1/transactions", domain.TransactionRequest{
			AccountID:        "acct-big",
			Amount:           25000,
			MerchantCategory: "travel",
			Channel:          "wire",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
		}

		var resp ScoreResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("parse response: %v", err)
		}
		if resp.Transaction.RiskScore != 95 || !resp.Transaction.IsFlagged {
			t.Errorf("score = %d flagged=%v", resp.Transaction.RiskScore, resp.Transaction.IsFlagged)
		}
		if resp.Alert == nil {
			t.Fatal("expected alert")
		}
		if resp.Alert.Severity != domain.SeverityHigh {
			t.Errorf("severity = %q", resp.Alert.Severity)
		}
		if resp.Alert.RuleTriggered != domain.LabelHighAmount {
			t.Errorf("rule = %q", resp.Alert.RuleTriggered)
		}
	})

	t.Run("MissingAccount", func(t *testing.T) {
		rr := postJSON(t, server, "/api/v1/transactions", domain.TransactionRequest{
			Amount: 100,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", bytes.NewBufferString("{"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rr.Code)
		}
	})
}

func TestGetTransactionEndpoint(t *testing.T) {
	server := createTestServer(t)

	rr := postJSON(t, server, "/api/v1/transactions", domain.TransactionRequest{
		ID:        "tx-known",
		AccountID: "acct-1",
		Amount:    42,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = get(t, server, "/api/v1/transactions/tx-known")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var tx domain.Transaction
	if err := json.Unmarshal(rr.Body.Bytes(), &tx); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tx.ID != "tx-known" || tx.Amount != 42 {
		t.Errorf("got %+v", tx)
	}

	rr = get(t, server, "/api/v1/transactions/absent")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d for missing transaction", rr.Code)
	}
}

func TestAlertWorkflow(t *testing.T) {
	server := createTestServer(t)

	rr := postJSON(t, server, "/api/v1/transactions", domain.TransactionRequest{
		AccountID: "acct-alert",
		Amount:    50000,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = get(t, server, "/api/v1/alerts")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var listResp struct {
		Alerts []*domain.Alert `json:"alerts"`
		Count  int             `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if listResp.Count != 1 || listResp.Alerts[0].Status != domain.AlertStatusNew {
		t.Fatalf("unexpected alerts: %+v", listResp)
	}

	rr = postJSON(t, server, "/api/v1/alerts/mark-read", struct{}{})
	if rr.Code != http.StatusOK {
		t.Fatalf("mark-read status = %d", rr.Code)
	}
	var markResp struct {
		Updated int64 `json:"updated"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &markResp); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if markResp.Updated != 1 {
		t.Errorf("updated = %d", markResp.Updated)
	}

	rr = get(t, server, "/api/v1/alerts")
	if err := json.Unmarshal(rr.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if listResp.Alerts[0].Status != domain.AlertStatusRead {
		t.Errorf("status = %q after mark-read", listResp.Alerts[0].Status)
	}
}

func TestAlertTickerEndpoint(t *testing.T) {
	server := createTestServer(t)

	rr := postJSON(t, server, "/api/v1/transactions", domain.TransactionRequest{
		AccountID: "acct-ticker",
		Amount:    99999,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	// Bus delivery is asynchronous.
	deadline := time.Now().Add(time.Second)
	for {
		rr = get(t, server, "/api/v1/alerts/ticker")
		if rr.Code != http.StatusOK {
			t.Fatalf("ticker status = %d", rr.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("parse: %v", err)
		}
		if resp.Count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("ticker never saw the alert: %s", rr.Body.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	server := createTestServer(t)

	for i, amount := range []float64{15000, 20000, 30} {
		rr := postJSON(t, server, "/api/v1/transactions", domain.TransactionRequest{
			AccountID:        fmt.Sprintf("acct-an-%d", i),
			Amount:           amount,
			MerchantCategory: "electronics",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
		}
	}

	rr := get(t, server, "/api/v1/analytics/anomaly")
	if rr.Code != http.StatusOK {
		t.Fatalf("anomaly status = %d", rr.Code)
	}
	var summary anomalySummary
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if summary.TotalAnomalies != 2 {
		t.Errorf("totalAnomalies = %d", summary.TotalAnomalies)
	}
	if summary.Recent24h != 2 {
		t.Errorf("recentAnomalies24h = %d", summary.Recent24h)
	}
	if len(summary.Series) != 24 {
		t.Fatalf("series length = %d", len(summary.Series))
	}
	var seriesTotal int64
	for _, point := range summary.Series {
		seriesTotal += point.Count
	}
	if seriesTotal != 2 {
		t.Errorf("series total = %d", seriesTotal)
	}
	if summary.ModelActive {
		t.Error("model should be inactive in tests")
	}

	rr = get(t, server, "/api/v1/analytics/fraud-by-category")
	if rr.Code != http.StatusOK {
		t.Fatalf("category status = %d", rr.Code)
	}
	var catResp struct {
		Categories []domain.CategoryCount `json:"categories"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &catResp); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(catResp.Categories) != 1 || catResp.Categories[0].Count != 2 {
		t.Errorf("categories = %+v", catResp.Categories)
	}

	rr = get(t, server, "/api/v1/analytics/rule-contribution")
	if rr.Code != http.StatusOK {
		t.Fatalf("rule contribution status = %d", rr.Code)
	}
	var ruleResp struct {
		Rules []domain.RuleCount `json:"rules"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &ruleResp); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ruleResp.Rules) != 1 {
		t.Fatalf("rules = %+v", ruleResp.Rules)
	}
	if top := ruleResp.Rules[0]; top.Rule != "High Amount Transaction" || top.Count != 2 || top.Percentage != 100 {
		t.Errorf("top rule = %+v", top)
	}
}

func TestHourlySeries(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)
	stamps := []time.Time{
		now.Add(-10 * time.Minute),
		now.Add(-30 * time.Minute),
		now.Add(-3 * time.Hour),
		now.Add(-23 * time.Hour),
	}

	series := hourlySeries(now, stamps)
	if len(series) != 24 {
		t.Fatalf("series length = %d", len(series))
	}
	if series[0].Timestamp != "16:00" || series[23].Timestamp != "15:00" {
		t.Errorf("series bounds = %q .. %q", series[0].Timestamp, series[23].Timestamp)
	}
	if series[23].Count != 2 {
		t.Errorf("current hour = %+v", series[23])
	}
	if series[20].Timestamp != "12:00" || series[20].Count != 1 {
		t.Errorf("three hours back = %+v", series[20])
	}
	if series[0].Count != 1 {
		t.Errorf("oldest bucket = %+v", series[0])
	}
}

func TestRuleManagementEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateAndList", func(t *testing.T) {
		rr := postJSON(t, server, "/api/v1/rules", domain.RuleConfig{
			ID:         "wire-watch",
			Name:       "Wire watch",
			Label:      "Wire Transfer Watch",
			Expression: `channel == "wire" && amount > 1000.0`,
			ScoreFloor: 65,
			Enabled:    true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
		}

		rr = get(t, server, "/api/v1/rules")
		var listResp struct {
			Rules []*domain.RuleConfig `json:"rules"`
			Count int                  `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &listResp); err != nil {
			t.Fatalf("parse: %v", err)
		}
		if listResp.Count != 1 || listResp.Rules[0].ID != "wire-watch" {
			t.Errorf("rules = %+v", listResp)
		}
	})

	t.Run("CustomRuleScores", func(t *testing.T) {
		rr := postJSON(t, server, "/api/v1/transactions", domain.TransactionRequest{
			AccountID: "acct-wire",
			Amount:    2000,
			Channel:   "wire",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
		}
		var resp ScoreResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("parse: %v", err)
		}
		if resp.Transaction.RiskScore != 65 {
			t.Errorf("score = %d, want 65", resp.Transaction.RiskScore)
		}
		if resp.Alert == nil || resp.Alert.RuleTriggered != "Wire Transfer Watch" {
			t.Errorf("alert = %+v", resp.Alert)
		}
	})

	t.Run("RejectInvalidExpression", func(t *testing.T) {
		rr := postJSON(t, server, "/api/v1/rules", domain.RuleConfig{
			ID:         "broken",
			Name:       "Broken",
			Label:      "Broken",
			Expression: `amount +`,
			Enabled:    true,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rr.Code)
		}
	})

	t.Run("Reload", func(t *testing.T) {
		rr := postJSON(t, server, "/api/v1/rules/reload", struct{}{})
		if rr.Code != http.StatusOK {
			t.Fatalf("reload status = %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("parse: %v", err)
		}
		if resp.Count != 1 {
			t.Errorf("count = %d", resp.Count)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t)

	rr := get(t, server, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
	var health struct {
		Status      string `json:"status"`
		Version     string `json:"version"`
		ModelActive bool   `json:"model_active"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if health.Status != "healthy" || health.Version != "test-v1" {
		t.Errorf("health = %+v", health)
	}

	rr = get(t, server, "/ready")
	if rr.Code != http.StatusOK {
		t.Errorf("ready status = %d", rr.Code)
	}
}
