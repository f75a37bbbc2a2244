package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenStore fails every lookup; Add still works so the recording path
// stays observable.
type brokenStore struct {
	added []string
}

func (s *brokenStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("store unavailable")
}

func (s *brokenStore) Add(_ context.Context, eventID string) error {
	s.added = append(s.added, eventID)
	return nil
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(ctx, "evt-1"))

	seen, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryStore_ExpiryRemovesEntries(t *testing.T) {
	store := NewMemoryIdempotencyStore(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "evt-2"))
	time.Sleep(25 * time.Millisecond)

	seen, err := store.Contains(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Zero(t, store.Len(), "expired entry should be dropped on lookup")
}

func TestMemoryStore_Len(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Add(ctx, fmt.Sprintf("evt-%d", i)))
	}
	require.NoError(t, store.Add(ctx, "evt-0")) // refresh, not a new entry

	assert.Equal(t, 5, store.Len())
}

func TestMemoryStore_ConcurrentUse(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("evt-%d-%d", g, i)
				_ = store.Add(ctx, id)
				_, _ = store.Contains(ctx, id)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 800, store.Len())
}

func TestIdempotentHandler_ProcessesFirstDelivery(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	var calls int
	h := IdempotentHandler(store, "relist.product.registered", "dedup-first",
		func(ctx context.Context, e *Event) error {
			calls++
			return nil
		}, discardLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "evt-10"}))

	assert.Equal(t, 1, calls)
	seen, err := store.Contains(context.Background(), "evt-10")
	require.NoError(t, err)
	assert.True(t, seen, "successful handling should be recorded")
}

func TestIdempotentHandler_SkipsDuplicate(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	var calls int
	h := IdempotentHandler(store, "relist.product.registered", "dedup-dup",
		func(ctx context.Context, e *Event) error {
			calls++
			return nil
		}, discardLogger())

	event := &Event{EventID: "evt-11", EventType: "product.registered"}
	require.NoError(t, h(context.Background(), event))
	require.NoError(t, h(context.Background(), event))

	assert.Equal(t, 1, calls)
	dup := ConsumerMessagesDuplicate.WithLabelValues("relist.product.registered", "dedup-dup")
	assert.Equal(t, 1.0, testutil.ToFloat64(dup))
}

func TestIdempotentHandler_NoEventIDAlwaysProcesses(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	var calls int
	h := IdempotentHandler(store, "relist.product.harvested", "dedup-noid",
		func(ctx context.Context, e *Event) error {
			calls++
			return nil
		}, discardLogger())

	require.NoError(t, h(context.Background(), &Event{}))
	require.NoError(t, h(context.Background(), &Event{}))

	assert.Equal(t, 2, calls)
	assert.Zero(t, store.Len())
}

func TestIdempotentHandler_FailureLeavesEventEligible(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	var calls int
	h := IdempotentHandler(store, "relist.product.materialized", "dedup-retry",
		func(ctx context.Context, e *Event) error {
			calls++
			if calls == 1 {
				return errors.New("transient failure")
			}
			return nil
		}, discardLogger())

	event := &Event{EventID: "evt-12"}

	require.Error(t, h(context.Background(), event))
	seen, err := store.Contains(context.Background(), "evt-12")
	require.NoError(t, err)
	assert.False(t, seen, "failed handling must not be recorded")

	// Redelivery goes through.
	require.NoError(t, h(context.Background(), event))
	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_BrokenStoreProcessesAnyway(t *testing.T) {
	store := &brokenStore{}
	var calls int
	h := IdempotentHandler(store, "relist.product.deleted", "dedup-broken",
		func(ctx context.Context, e *Event) error {
			calls++
			return nil
		}, discardLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "evt-13"}))
	require.NoError(t, h(context.Background(), &Event{EventID: "evt-13"}))

	// Lookups fail, so both deliveries run; losing dedup beats losing data.
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"evt-13", "evt-13"}, store.added)
}
