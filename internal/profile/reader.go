// Package profile retrieves the historical account context used by the
// statistical anomaly detector.
package profile

import (
	"context"
	"fmt"

	"github.com/vigilant-watch/vigilant/internal/domain"
)

// DefaultHistoryLimit bounds the profile window.
const DefaultHistoryLimit = 50

// Reader loads a bounded window of an account's past transaction amounts.
// Reads are side-effect free and always hit the repository: the profile is
// read fresh per evaluation, with no caching and no isolation against
// writers racing on the same account.
type Reader struct {
	repo  domain.Repository
	limit int
}

// NewReader creates a profile reader. A non-positive limit falls back to
// DefaultHistoryLimit.
func NewReader(repo domain.Repository, limit int) *Reader {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Reader{repo: repo, limit: limit}
}

// RecentAmounts returns up to the limit most recent historical amounts for
// the account. An account with no history yields an empty slice, not an
// error.
func (r *Reader) RecentAmounts(ctx context.Context, accountID string) ([]float64, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: accountID is required", domain.ErrInvalidInput)
	}
	return r.repo.RecentAmounts(ctx, accountID, r.limit)
}
