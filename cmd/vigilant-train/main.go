// vigilant-train fits the isolation forest anomaly model from scored
// transaction history and writes the artifact pair the server loads at
// startup.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vigilant-watch/vigilant/internal/domain"
	"github.com/vigilant-watch/vigilant/internal/ml"
	"github.com/vigilant-watch/vigilant/internal/repository"
)

// minTrainingRows is the point below which stored history is too thin to
// fit a useful model; synthetic data is used instead.
const minTrainingRows = 10

func main() {
	_ = godotenv.Load()
	cfg := domain.FromEnv()

	outDir := flag.String("out", cfg.Model.Dir, "artifact output directory")
	trees := flag.Int("trees", 100, "number of trees in the forest")
	contamination := flag.Float64("contamination", 0.05, "expected anomaly fraction")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to open repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pairs, err := repo.AmountCategoryPairs(ctx)
	if err != nil {
		slog.Error("failed to read training data", "error", err)
		os.Exit(1)
	}

	if len(pairs) < minTrainingRows {
		slog.Warn("insufficient stored history, generating synthetic training data",
			"rows", len(pairs),
		)
		pairs = syntheticTrainingData(*seed)
	}
	slog.Info("training set prepared", "rows", len(pairs))

	categories := make([]string, len(pairs))
	for i, p := range pairs {
		categories[i] = p.Category
	}
	encoder := ml.FitEncoder(categories)

	samples := make([][]float64, len(pairs))
	for i, p := range pairs {
		samples[i] = []float64{p.Amount, float64(encoder.Encode(p.Category))}
	}

	opts := ml.DefaultFitOptions()
	opts.Trees = *trees
	opts.Contamination = *contamination
	opts.Seed = *seed

	slog.Info("fitting isolation forest",
		"trees", opts.Trees,
		"sample_size", opts.SampleSize,
		"contamination", opts.Contamination,
	)
	forest := ml.Fit(samples, opts)

	if err := ml.Save(*outDir, forest, encoder); err != nil {
		slog.Error("failed to write artifacts", "dir", *outDir, "error", err)
		os.Exit(1)
	}

	slog.Info("model artifacts written",
		"dir", *outDir,
		"forest", ml.ForestFile,
		"encoder", ml.EncoderFile,
	)
	fmt.Printf("model trained on %d samples, artifacts in %s\n", len(samples), *outDir)
}

// syntheticTrainingData mirrors typical traffic: mostly small retail
// amounts with a sprinkle of large outliers, so a fresh install still gets
// a sane model.
func syntheticTrainingData(seed int64) []domain.AmountCategory {
	rng := rand.New(rand.NewSource(seed))
	categories := []string{"retail", "grocery", "electronics", "travel", "dining"}

	pairs := make([]domain.AmountCategory, 0, 1000)
	for i := 0; i < 950; i++ {
		pairs = append(pairs, domain.AmountCategory{
			Amount:   10 + rng.Float64()*490,
			Category: categories[rng.Intn(len(categories))],
		})
	}
	for i := 0; i < 50; i++ {
		pairs = append(pairs, domain.AmountCategory{
			Amount:   5000 + rng.Float64()*45000,
			Category: categories[rng.Intn(len(categories))],
		})
	}
	return pairs
}
