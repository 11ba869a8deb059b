// Package notify consumes the alert fan-out and keeps a bounded in-memory
// feed of recent alerts for the live ticker endpoint.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/vigilant-watch/vigilant/internal/domain"
	"github.com/vigilant-watch/vigilant/internal/scoring"
)

// DefaultFeedSize bounds how many recent alerts the ticker retains.
const DefaultFeedSize = 100

// Ticker subscribes to the alert topic and retains the most recent alert
// events in a ring. Because the bus is best-effort, the ticker is a live
// view only; the repository remains the source of truth for alerts.
type Ticker struct {
	bus     domain.EventBus
	maxSize int

	mu     sync.RWMutex
	events []*scoring.DecisionEvent
	next   int
	filled bool

	sub    domain.Subscription
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTicker creates a ticker over the given bus.
func NewTicker(bus domain.EventBus, maxSize int) *Ticker {
	if maxSize <= 0 {
		maxSize = DefaultFeedSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Ticker{
		bus:     bus,
		maxSize: maxSize,
		events:  make([]*scoring.DecisionEvent, maxSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the alert topic.
func (t *Ticker) Start() error {
	sub, err := t.bus.Subscribe(t.ctx, domain.TopicAlert, t.handleAlert)
	if err != nil {
		return err
	}
	t.sub = sub
	slog.Info("alert ticker started", "topic", domain.TopicAlert, "feed_size", t.maxSize)
	return nil
}

// Stop unsubscribes and halts processing.
func (t *Ticker) Stop() {
	t.cancel()
	if t.sub != nil {
		_ = t.sub.Unsubscribe()
	}
}

func (t *Ticker) handleAlert(ctx context.Context, msg *domain.Message) error {
	var event scoring.DecisionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to decode alert event", "message_id", msg.ID, "error", err)
		return nil
	}
	if event.Alert == nil {
		return nil
	}

	t.mu.Lock()
	t.events[t.next] = &event
	t.next = (t.next + 1) % t.maxSize
	if t.next == 0 {
		t.filled = true
	}
	t.mu.Unlock()
	return nil
}

// Recent returns up to limit of the most recent alert events, newest
// first.
func (t *Ticker) Recent(limit int) []*scoring.DecisionEvent {
	if limit <= 0 || limit > t.maxSize {
		limit = t.maxSize
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	size := t.next
	if t.filled {
		size = t.maxSize
	}
	if limit > size {
		limit = size
	}

	out := make([]*scoring.DecisionEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (t.next - i + t.maxSize) % t.maxSize
		out = append(out, t.events[idx])
	}
	return out
}
