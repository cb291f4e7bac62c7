package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// memStorage собирает пачки в памяти для проверки drain-семантики
type memStorage struct {
	mu      sync.Mutex
	events  []DecisionEvent
	batches int
}

func (s *memStorage) WriteBatch(_ context.Context, events []DecisionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	s.batches++
	return nil
}

func (s *memStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestTrail_FlushOnStop(t *testing.T) {
	storage := &memStorage{}
	trail := NewTrail(storage, zap.NewNop())
	trail.Start()

	for i := 0; i < 250; i++ {
		trail.Log(DecisionEvent{ID: "evt", Action: "place_order_ibkr", Allowed: i%2 == 0})
	}
	trail.Stop()

	if got := storage.count(); got != 250 {
		t.Fatalf("expected all 250 events flushed on stop, got %d", got)
	}
}

func TestTrail_TimestampDefaulted(t *testing.T) {
	storage := &memStorage{}
	trail := NewTrail(storage, zap.NewNop())
	trail.Start()

	trail.Log(DecisionEvent{ID: "no-ts"})
	trail.Stop()

	if storage.count() != 1 {
		t.Fatalf("expected 1 event, got %d", storage.count())
	}
	if storage.events[0].Timestamp.IsZero() {
		t.Fatal("timestamp must be defaulted on Log")
	}
}

func TestTrail_LogAfterStopDropped(t *testing.T) {
	storage := &memStorage{}
	trail := NewTrail(storage, zap.NewNop())
	trail.Start()
	trail.Stop()

	// Не должно паниковать и не должно ничего записать
	trail.Log(DecisionEvent{ID: "late"})
	time.Sleep(20 * time.Millisecond)

	if storage.count() != 0 {
		t.Fatalf("late event must be dropped, got %d", storage.count())
	}
}
