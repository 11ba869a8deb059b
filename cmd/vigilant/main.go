// Vigilant - real-time transaction fraud risk scoring.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vigilant-watch/vigilant/internal/api"
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

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	_ = godotenv.Load()
	cfg := domain.FromEnv()

	setupLogging(cfg.Logging)

	slog.Info("starting vigilant",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"model_dir", cfg.Model.Dir,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	velocitySvc := velocity.NewService(repo)

	engine, err := rules.NewEngine(velocitySvc.Getter(), cfg.Scoring)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	loadCustomRules(ctx, repo, engine)
	slog.Info("rule engine initialized", "custom_rules", engine.RulesCount())

	classifier := loadClassifier(cfg.Model.Dir)

	pipeline := scoring.NewPipeline(
		profile.NewReader(repo, cfg.Scoring.HistoryLimit),
		engine,
		classifier,
		stats.NewDetector(),
		repo,
		busImpl,
	)

	ticker := notify.NewTicker(busImpl, notify.DefaultFeedSize)
	if err := ticker.Start(); err != nil {
		slog.Error("failed to start alert ticker", "error", err)
		os.Exit(1)
	}
	defer ticker.Stop()

	srv := api.NewServer(cfg.Server, repo, cacheImpl, pipeline, engine, ticker, classifier, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("vigilant is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version, classifier.Available())

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("vigilant shutdown complete")
}

func setupLogging(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// loadCustomRules loads enabled custom rules from the database. Missing or
// unreadable rules are not fatal; rules can be added later via the API.
func loadCustomRules(ctx context.Context, repo domain.Repository, engine *rules.Engine) {
	configs, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list custom rules", "error", err)
		return
	}
	if len(configs) == 0 {
		slog.Info("no custom rules configured")
		return
	}
	if err := engine.ReloadRules(configs); err != nil {
		slog.Warn("failed to load custom rules", "error", err)
	}
}

// loadClassifier loads the anomaly model artifacts, degrading to the
// disabled classifier when they are absent or unreadable.
func loadClassifier(dir string) ml.Classifier {
	model, err := ml.Load(dir)
	if err != nil {
		slog.Warn("anomaly model unavailable, running rule-only",
			"dir", dir,
			"error", err,
		)
		return ml.Disabled()
	}
	slog.Info("anomaly model loaded", "dir", dir)
	return model
}

func printBanner(cfg *domain.Config, version string, modelActive bool) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║              VIGILANT WATCH               ║")
	fmt.Println("  ║     Transaction Fraud Risk Scoring        ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Model:    active=%v\n", modelActive)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/v1/transactions                  - Score a transaction")
	fmt.Println("    GET  /api/v1/transactions                  - List transactions")
	fmt.Println("    GET  /api/v1/transactions/{id}             - Get transaction by ID")
	fmt.Println("    GET  /api/v1/alerts                        - List alerts")
	fmt.Println("    POST /api/v1/alerts/mark-read              - Mark all alerts read")
	fmt.Println("    GET  /api/v1/alerts/ticker                 - Live alert feed")
	fmt.Println("    GET  /api/v1/analytics/anomaly             - Anomaly summary")
	fmt.Println("    GET  /api/v1/analytics/fraud-by-category   - Flagged by category")
	fmt.Println("    GET  /api/v1/analytics/rule-contribution   - Rule firing shares")
	fmt.Println("    GET  /api/v1/rules                         - List custom rules")
	fmt.Println("    POST /api/v1/rules                         - Create a custom rule")
	fmt.Println("    POST /api/v1/rules/reload                  - Hot-reload custom rules")
	fmt.Println("    GET  /health                               - Health check")
	fmt.Println()
}
