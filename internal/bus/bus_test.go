package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vigilant-watch/vigilant/internal/domain"
)

func TestChannelBusPublishSubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	received := make(chan *domain.Message, 1)
	sub, err := b.Subscribe(ctx, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, domain.TopicAlert, []byte("payload")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg.Payload) != "payload" {
			t.Errorf("payload = %q", msg.Payload)
		}
		if msg.Topic != domain.TopicAlert {
			t.Errorf("topic = %q", msg.Topic)
		}
		if msg.ID == "" {
			t.Error("message ID not set")
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestChannelBusTopicIsolation(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	received := make(chan *domain.Message, 1)
	sub, err := b.Subscribe(ctx, domain.TopicDecision, func(ctx context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, domain.TopicAlert, []byte("other")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-received:
		t.Errorf("message leaked across topics: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChannelBusMultipleSubscribers(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		_, err := b.Subscribe(ctx, domain.TopicDecision, func(ctx context.Context, msg *domain.Message) error {
			wg.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe %d: %v", i, err)
		}
	}

	if err := b.Publish(ctx, domain.TopicDecision, []byte("fanout")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the message")
	}
}

func TestChannelBusUnsubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	received := make(chan *domain.Message, 1)
	sub, err := b.Subscribe(ctx, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if err := b.Publish(ctx, domain.TopicAlert, []byte("late")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-received:
		t.Errorf("received after unsubscribe: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChannelBusClosed(t *testing.T) {
	b := NewChannelBus(10)
	ctx := context.Background()

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Publish(ctx, domain.TopicAlert, []byte("x")); err == nil {
		t.Error("expected publish on closed bus to fail")
	}
	if _, err := b.Subscribe(ctx, domain.TopicAlert, nil); err == nil {
		t.Error("expected subscribe on closed bus to fail")
	}
	if err := b.Ping(ctx); err == nil {
		t.Error("expected ping on closed bus to fail")
	}
	// Close is idempotent.
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestChannelBusCloseDuringPublish(t *testing.T) {
	b := NewChannelBus(1)
	ctx := context.Background()

	// A tiny buffer keeps the subscriber channel full so publishers are
	// still touching it when Close lands. A send on a closed channel
	// would panic the publishing goroutine and fail the test.
	_, err := b.Subscribe(ctx, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if err := b.Publish(ctx, domain.TopicAlert, []byte("x")); err != nil {
					return
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()
}

func TestNewDefaultsToChannel(t *testing.T) {
	b, err := New(domain.EventBusConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()
	if _, ok := b.(*ChannelBus); !ok {
		t.Errorf("expected *ChannelBus, got %T", b)
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
		t.Error("expected error for unknown bus type")
	}
}
