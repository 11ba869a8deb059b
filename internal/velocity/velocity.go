// Package velocity provides transaction frequency counting for the
// velocity rule.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilant-watch/vigilant/internal/domain"
)

// Service counts an account's persisted transactions inside a trailing
// window. Counts run against already-committed rows only: the in-flight
// transaction is not included, and concurrent evaluations for the same
// account may both read the same pre-commit count. That race is accepted.
type Service struct {
	repo domain.Repository
}

// NewService creates a new velocity service.
func NewService(repo domain.Repository) *Service {
	return &Service{repo: repo}
}

// CountRecent returns the number of transactions for an account within the
// trailing window.
func (s *Service) CountRecent(ctx context.Context, accountID string, window time.Duration) (int64, error) {
	if accountID == "" {
		return 0, fmt.Errorf("%w: accountID is required", domain.ErrInvalidInput)
	}
	since := time.Now().UTC().Add(-window)
	return s.repo.CountSince(ctx, accountID, since)
}

// Getter returns the counting function consumed by the rule engine.
func (s *Service) Getter() func(ctx context.Context, accountID string, window time.Duration) (int64, error) {
	return s.CountRecent
}
