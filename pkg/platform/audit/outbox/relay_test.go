package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeSource struct {
	mu        sync.Mutex
	entries   []Entry
	published map[uuid.UUID]bool
	markErr   error
}

func newFakeSource(entries ...Entry) *fakeSource {
	return &fakeSource{entries: entries, published: map[uuid.UUID]bool{}}
}

func (f *fakeSource) Pending(_ context.Context, limit int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entry
	for _, e := range f.entries {
		if !f.published[e.ID] && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeSource) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	for _, id := range ids {
		f.published[id] = true
	}
	return nil
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func entry(aggregateID string) Entry {
	return Entry{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   "registration_confirmed",
		Payload:     []byte(`{"action":"registration_confirmed"}`),
		CreatedAt:   time.Now(),
	}
}

func TestRelayOnce_PublishesAndMarks(t *testing.T) {
	src := newFakeSource(entry("reg-1"), entry("reg-2"), entry("reg-3"))
	prod := &fakeProducer{}
	relay := NewRelay(src, prod, "club.audit", WithBatchSize(2))

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, prod.records, 2)
	assert.Equal(t, "club.audit", prod.records[0].Topic)
	assert.Equal(t, []byte("reg-1"), prod.records[0].Key)

	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelayOnce_ProduceFailureLeavesEntriesPending(t *testing.T) {
	src := newFakeSource(entry("reg-1"))
	prod := &fakeProducer{err: errors.New("broker down")}
	relay := NewRelay(src, prod, "club.audit")

	_, err := relay.RelayOnce(context.Background())
	require.Error(t, err)

	pending, err := src.Pending(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRelayOnce_MarkFailureIsReported(t *testing.T) {
	src := newFakeSource(entry("reg-1"))
	src.markErr = errors.New("db gone")
	relay := NewRelay(src, &fakeProducer{}, "club.audit")

	_, err := relay.RelayOnce(context.Background())
	require.ErrorContains(t, err, "mark outbox entries published")
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := newFakeSource(entry("reg-1"))
	prod := &fakeProducer{}
	relay := NewRelay(src, prod, "club.audit", WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		pending, _ := src.Pending(context.Background(), 10)
		return len(pending) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
