package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IdempotencyStore records processed event IDs so redeliveries can be
// skipped. Implementations must be safe for concurrent use.
type IdempotencyStore interface {
	// Contains reports whether the event ID was already processed.
	Contains(ctx context.Context, eventID string) (bool, error)
	// Add records the event ID after its handler succeeded.
	Add(ctx context.Context, eventID string) error
}

// MemoryIdempotencyStore keeps processed IDs in process memory, expiring
// them after a TTL to bound growth. Suitable for a single replica;
// multi-replica deployments need a shared store.
type MemoryIdempotencyStore struct {
	mu   sync.RWMutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewMemoryIdempotencyStore builds a store whose entries expire after ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Contains reports whether eventID was recorded within the TTL. Expired
// entries are removed as they are found.
func (s *MemoryIdempotencyStore) Contains(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	at, ok := s.seen[eventID]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if time.Since(at) <= s.ttl {
		return true, nil
	}

	s.mu.Lock()
	// Re-check under the write lock; Add may have refreshed the entry.
	if cur, ok := s.seen[eventID]; ok && time.Since(cur) > s.ttl {
		delete(s.seen, eventID)
	}
	s.mu.Unlock()
	return false, nil
}

// Add records eventID with the current time.
func (s *MemoryIdempotencyStore) Add(_ context.Context, eventID string) error {
	s.mu.Lock()
	s.seen[eventID] = time.Now()
	s.mu.Unlock()
	return nil
}

// Len counts the stored entries, expired ones included.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// IdempotentHandler wraps inner so events whose ID is already recorded
// in store are skipped. Skips count toward the duplicate metric for the
// given topic and consumer group. Events are recorded only after inner
// succeeds, so errors leave the event eligible for redelivery.
func IdempotentHandler(store IdempotencyStore, topic, group string, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			// Nothing to key the dedup on.
			return inner(ctx, event)
		}

		seen, err := store.Contains(ctx, event.EventID)
		if err != nil {
			// Prefer reprocessing over dropping when the store cannot answer.
			logger.Warn("idempotency lookup failed, processing anyway",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
			return inner(ctx, event)
		}
		if seen {
			ConsumerMessagesDuplicate.WithLabelValues(topic, group).Inc()
			logger.Debug("skipping duplicate event",
				slog.String("event_id", event.EventID),
				slog.String("event_type", event.EventType),
				slog.String("aggregate_id", event.AggregateID),
			)
			return nil
		}

		if err := inner(ctx, event); err != nil {
			return err
		}

		if err := store.Add(ctx, event.EventID); err != nil {
			logger.Warn("failed to record processed event",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
}
