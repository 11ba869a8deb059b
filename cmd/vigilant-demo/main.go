// Demo traffic generator for Vigilant.
//
// Usage:
//   go run cmd/vigilant-demo/main.go -url http://localhost:8080 -count 500
//
// This tool:
//  1. Generates synthetic transactions across a set of accounts, mostly
//     ordinary amounts with an injected fraction of suspicious ones
//  2. Sends each to the scoring endpoint
//  3. Reports how many were flagged and at what severity
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ScoreRequest is the Vigilant API request format.
type ScoreRequest struct {
	AccountID        string  `json:"accountId"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency,omitempty"`
	MerchantCategory string  `json:"merchantCategory"`
	Channel          string  `json:"channel"`
}

// ScoreResponse is the Vigilant API response format.
type ScoreResponse struct {
	Transaction struct {
		ID        string `json:"id"`
		RiskScore int    `json:"riskScore"`
		IsFlagged bool   `json:"isFlagged"`
	} `json:"transaction"`
	Alert *struct {
		RuleTriggered string `json:"ruleTriggered"`
		Severity      string `json:"severity"`
	} `json:"alert"`
}

// Metrics tracks demo run results.
type Metrics struct {
	TotalSent    int64
	TotalFlagged int64
	HighSeverity int64
	TotalErrors  int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Vigilant base URL")
	count := flag.Int("count", 500, "Number of transactions to send")
	accounts := flag.Int("accounts", 20, "Number of distinct accounts")
	fraudRate := flag.Float64("fraud-rate", 0.05, "Fraction of suspicious transactions (0.0-1.0)")
	workers := flag.Int("workers", 5, "Number of concurrent senders")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	verbose := flag.Bool("verbose", false, "Print each flagged transaction")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║       VIGILANT DEMO - Synthetic Traffic       ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
	fmt.Printf("\nVigilant URL: %s\n", *baseURL)
	fmt.Printf("Count:        %d\n", *count)
	fmt.Printf("Accounts:     %d\n", *accounts)
	fmt.Printf("Fraud Rate:   %.2f\n", *fraudRate)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Vigilant not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure the server is running: go run cmd/vigilant/main.go")
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(*seed))
	requests := make([]ScoreRequest, *count)
	for i := range requests {
		requests[i] = generate(rng, *accounts, *fraudRate)
	}

	var metrics Metrics
	var wg sync.WaitGroup
	jobs := make(chan ScoreRequest)

	client := &http.Client{Timeout: 10 * time.Second}
	start := time.Now()

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				resp, err := send(client, *baseURL, req)
				atomic.AddInt64(&metrics.TotalSent, 1)
				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					continue
				}
				if resp.Transaction.IsFlagged {
					atomic.AddInt64(&metrics.TotalFlagged, 1)
					if resp.Alert != nil && resp.Alert.Severity == "High" {
						atomic.AddInt64(&metrics.HighSeverity, 1)
					}
					if *verbose {
						rule := ""
						if resp.Alert != nil {
							rule = resp.Alert.RuleTriggered
						}
						fmt.Printf("FLAGGED %s amount=%.2f score=%d rule=%q\n",
							req.AccountID, req.Amount, resp.Transaction.RiskScore, rule)
					}
				}
			}
		}()
	}

	for _, req := range requests {
		jobs <- req
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Println()
	fmt.Println("Results:")
	fmt.Printf("  Sent:          %d\n", metrics.TotalSent)
	fmt.Printf("  Flagged:       %d (%.1f%%)\n", metrics.TotalFlagged,
		100*float64(metrics.TotalFlagged)/float64(max(metrics.TotalSent, 1)))
	fmt.Printf("  High severity: %d\n", metrics.HighSeverity)
	fmt.Printf("  Errors:        %d\n", metrics.TotalErrors)
	fmt.Printf("  Elapsed:       %s (%.0f tx/s)\n", elapsed.Round(time.Millisecond),
		float64(metrics.TotalSent)/elapsed.Seconds())
}

var (
	categories = []string{"retail", "grocery", "electronics", "travel", "dining"}
	channels   = []string{"card", "upi", "wire", "online"}
)

func generate(rng *rand.Rand, accounts int, fraudRate float64) ScoreRequest {
	req := ScoreRequest{
		AccountID:        fmt.Sprintf("demo-acct-%03d", rng.Intn(accounts)),
		MerchantCategory: categories[rng.Intn(len(categories))],
		Channel:          channels[rng.Intn(len(channels))],
	}
	if rng.Float64() < fraudRate {
		// Suspicious: a large amount well past the high-amount rule.
		req.Amount = 12000 + rng.Float64()*40000
	} else {
		req.Amount = 5 + rng.Float64()*300
	}
	return req
}

func send(client *http.Client, baseURL string, req ScoreRequest) (*ScoreResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpResp, err := client.Post(baseURL+"/api/v1/transactions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("unexpected status %d", httpResp.StatusCode)
	}

	var resp ScoreResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func checkHealth(baseURL string) error {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}
