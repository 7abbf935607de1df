package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	audit "warden/pkg/platform/audit"
	"warden/pkg/platform/audit/store/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rejected(subject string) audit.Event {
	event := audit.NewEvent(audit.EventConnectionRejected, time.Time{})
	event.Subject = subject
	event.Processor = "ddos"
	return event
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subject := uuid.NewString()
	err := pub.Emit(context.Background(), rejected(subject))
	require.NoError(t, err)

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventConnectionRejected), events[0].Action)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100), WithFlushInterval(time.Hour))

	subject := uuid.NewString()
	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), rejected(subject)))
	}

	pub.Close()

	events, err := store.ListBySubject(context.Background(), subject)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_AsyncDeliversWithoutClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	subject := uuid.NewString()
	require.NoError(t, pub.Emit(context.Background(), rejected(subject)))

	assert.Eventually(t, func() bool {
		events, _ := store.ListBySubject(context.Background(), subject)
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublisher_BufferFullNeverBlocks(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))

	subject := uuid.NewString()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, pub.Emit(context.Background(), rejected(subject)))
		}()
	}
	wg.Wait()
	pub.Close()

	events, err := store.ListBySubject(context.Background(), subject)
	require.NoError(t, err)
	assert.Equal(t, int64(50), int64(len(events))+pub.Dropped())
}

func TestPublisher_EmitAfterCloseFails(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(4))
	pub.Close()

	err := pub.Emit(context.Background(), rejected(uuid.NewString()))
	assert.Error(t, err)
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	subject := uuid.NewString()
	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), rejected(subject)))
	after := time.Now()

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.False(t, events[0].Timestamp.Before(before), "timestamp should be >= before")
	assert.False(t, events[0].Timestamp.After(after), "timestamp should be <= after")
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	subject := uuid.NewString()
	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	event := rejected(subject)
	event.Timestamp = customTime

	require.NoError(t, pub.Emit(context.Background(), event))

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestRing_DropsOldest(t *testing.T) {
	r := newRing(2)
	a, b, c := rejected("a"), rejected("b"), rejected("c")

	require.True(t, r.push(a))
	require.True(t, r.push(b))
	require.True(t, r.push(c))

	out := r.popAll()
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Subject)
	assert.Equal(t, "c", out[1].Subject)
	assert.Equal(t, int64(1), r.droppedCount())
	assert.Nil(t, r.popAll())
}
