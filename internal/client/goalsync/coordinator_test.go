package goalsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/models"
	"github.com/dmitrijs2005/goalkeeper/internal/clock"
	"github.com/dmitrijs2005/goalkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

type fakePusher struct {
	calls  chan []models.GoalRecord
	failed map[string]bool
	// gate, when set, holds every flush until a value is received.
	gate chan struct{}
}

func newFakePusher() *fakePusher {
	return &fakePusher{calls: make(chan []models.GoalRecord, 16), failed: map[string]bool{}}
}

func (p *fakePusher) PushBatch(_ context.Context, records []models.GoalRecord) models.BatchResult {
	res := models.BatchResult{Attempts: 1}
	for _, r := range records {
		st := models.StatusSynced
		if p.failed[r.ID] {
			st = models.StatusFailed
		}
		res.Items = append(res.Items, models.ItemResult{ID: r.ID, OwnerID: r.OwnerID, Revision: r.Revision, Status: st})
	}
	p.calls <- records
	if p.gate != nil {
		<-p.gate
	}
	return res
}

type fakeAcker struct {
	mu   sync.Mutex
	acks []models.SyncAck
}

func (a *fakeAcker) MarkRevisionsSynced(_ context.Context, acks []models.SyncAck, _ time.Time) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, acks...)
	return len(acks), nil
}

func (a *fakeAcker) all() []models.SyncAck {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.SyncAck(nil), a.acks...)
}

func rec(id string, revision int64) models.GoalRecord {
	return models.GoalRecord{ID: id, OwnerID: "u1", Revision: revision, IsDirty: true}
}

func ids(rs []models.GoalRecord) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

type harness struct {
	clk    *clock.FakeClock
	pusher *fakePusher
	acker  *fakeAcker
	coord  *Coordinator
	done   chan error
	cancel context.CancelFunc
}

func start(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		clk:    clock.Fake(epoch),
		pusher: newFakePusher(),
		acker:  &fakeAcker{},
		done:   make(chan error, 1),
	}
	h.coord = New(cfg, h.pusher, h.acker, h.clk, logging.NopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.coord.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) nextBatch(t *testing.T) []models.GoalRecord {
	t.Helper()
	select {
	case b := <-h.pusher.calls:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no flush happened")
		return nil
	}
}

func (h *harness) noBatch(t *testing.T) {
	t.Helper()
	select {
	case b := <-h.pusher.calls:
		t.Fatalf("unexpected flush of %v", ids(b))
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCoordinator_FlushesWhenBatchIsFull(t *testing.T) {
	h := start(t, Config{BatchSize: 3, MaxWait: 5 * time.Second, MinFlushInterval: 30 * time.Second})

	h.coord.Enqueue(rec("a", 1))
	h.coord.EnqueueBatch([]models.GoalRecord{rec("b", 1), rec("c", 1)})

	batch := h.nextBatch(t)
	assert.Equal(t, []string{"a", "b", "c"}, ids(batch))
	require.Eventually(t, func() bool { return len(h.acker.all()) == 3 }, time.Second, time.Millisecond)
	assert.ElementsMatch(t, []models.SyncAck{{ID: "a", Revision: 1}, {ID: "b", Revision: 1}, {ID: "c", Revision: 1}}, h.acker.all())
}

func TestCoordinator_FlushesAfterMaxWait(t *testing.T) {
	h := start(t, Config{BatchSize: 10, MaxWait: 5 * time.Second, MinFlushInterval: 30 * time.Second})

	h.coord.Enqueue(rec("a", 1))
	h.clk.WaitForTimers(1)
	h.noBatch(t)

	h.clk.Advance(5 * time.Second)
	assert.Equal(t, []string{"a"}, ids(h.nextBatch(t)))
}

func TestCoordinator_MaxWaitCountsFromEnqueue(t *testing.T) {
	clk := clock.Fake(epoch)
	pusher := newFakePusher()
	pusher.gate = make(chan struct{})
	h := &harness{clk: clk, pusher: pusher, acker: &fakeAcker{}, done: make(chan error, 1)}
	h.coord = New(Config{BatchSize: 2, MaxWait: 5 * time.Second}, pusher, h.acker, clk, logging.NopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.done <- h.coord.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})

	h.coord.EnqueueBatch([]models.GoalRecord{rec("a", 1), rec("b", 1)})
	assert.Equal(t, []string{"a", "b"}, ids(h.nextBatch(t)))

	// c arrives while the first flush is still in flight.
	h.coord.Enqueue(rec("c", 1))
	clk.Advance(4 * time.Second)
	pusher.gate <- struct{}{}

	clk.WaitForTimers(1)
	clk.Advance(time.Second)
	assert.Equal(t, []string{"c"}, ids(h.nextBatch(t)))
	pusher.gate <- struct{}{}
}

func TestCoordinator_ThrottlesFlushes(t *testing.T) {
	h := start(t, Config{BatchSize: 2, MaxWait: 5 * time.Second, MinFlushInterval: 30 * time.Second})

	h.coord.EnqueueBatch([]models.GoalRecord{rec("a", 1), rec("b", 1)})
	assert.Equal(t, []string{"a", "b"}, ids(h.nextBatch(t)))

	h.coord.EnqueueBatch([]models.GoalRecord{rec("c", 1), rec("d", 1)})
	h.clk.WaitForTimers(1)
	h.noBatch(t)

	h.clk.Advance(29 * time.Second)
	h.noBatch(t)

	h.clk.Advance(time.Second)
	assert.Equal(t, []string{"c", "d"}, ids(h.nextBatch(t)))
}

func TestCoordinator_KeepsHighestRevision(t *testing.T) {
	h := start(t, Config{BatchSize: 10, MaxWait: time.Minute})

	h.coord.Enqueue(rec("a", 2))
	h.coord.Enqueue(rec("a", 1))
	h.coord.Enqueue(rec("a", 3))
	h.coord.Enqueue(rec("b", 1))

	require.NoError(t, h.coord.ForceFlush(context.Background()))
	batch := h.nextBatch(t)
	require.Len(t, batch, 2)
	assert.Equal(t, "a", batch[0].ID)
	assert.Equal(t, int64(3), batch[0].Revision)
}

func TestCoordinator_ForceFlushTakesEverything(t *testing.T) {
	h := start(t, Config{BatchSize: 2, MaxWait: time.Minute, MinFlushInterval: time.Hour})

	h.coord.EnqueueBatch([]models.GoalRecord{rec("a", 1), rec("b", 1)})
	h.nextBatch(t)

	h.coord.EnqueueBatch([]models.GoalRecord{rec("c", 1), rec("d", 1), rec("e", 1)})
	require.NoError(t, h.coord.ForceFlush(context.Background()))

	assert.Equal(t, []string{"c", "d", "e"}, ids(h.nextBatch(t)))
	st := h.coord.Stats()
	assert.Equal(t, 2, st.Flushes)
	assert.Equal(t, 5, st.Synced)
	assert.Equal(t, 0, st.Pending)
}

func TestCoordinator_RequeuesTransientFailures(t *testing.T) {
	h := start(t, Config{BatchSize: 10, MaxWait: time.Second, MaxRequeues: 1})
	h.pusher.failed["a"] = true

	h.coord.EnqueueBatch([]models.GoalRecord{rec("a", 1), rec("b", 1)})
	require.NoError(t, h.coord.ForceFlush(context.Background()))
	assert.Equal(t, []string{"a", "b"}, ids(h.nextBatch(t)))

	st := h.coord.Stats()
	assert.Equal(t, 1, st.Requeued)
	assert.Equal(t, 1, st.Pending)

	require.NoError(t, h.coord.ForceFlush(context.Background()))
	assert.Equal(t, []string{"a"}, ids(h.nextBatch(t)))

	st = h.coord.Stats()
	assert.Equal(t, 2, st.Failed)
	assert.Equal(t, 1, st.Abandoned)
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, []models.SyncAck{{ID: "b", Revision: 1}}, h.acker.all())
}

func TestCoordinator_EnqueueDoesNotBlockWithoutRun(t *testing.T) {
	c := New(DefaultConfig(), newFakePusher(), &fakeAcker{}, clock.Fake(epoch), logging.NopLogger{})

	for i := 0; i < 1000; i++ {
		c.Enqueue(rec("a", int64(i)))
	}
	assert.Equal(t, 1000, c.Stats().Pending)
	assert.Equal(t, 1000, c.Stats().Enqueued)
}

func TestCoordinator_RunOnlyOnce(t *testing.T) {
	h := start(t, DefaultConfig())
	require.Eventually(t, func() bool {
		h.coord.mu.Lock()
		defer h.coord.mu.Unlock()
		return h.coord.running
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, h.coord.Run(context.Background()), ErrAlreadyRunning)
}

func TestCoordinator_ForceFlushHonoursContext(t *testing.T) {
	c := New(DefaultConfig(), newFakePusher(), &fakeAcker{}, clock.Fake(epoch), logging.NopLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.ForceFlush(ctx), context.DeadlineExceeded)
}

func TestCoordinator_StopsOnCancel(t *testing.T) {
	c := New(DefaultConfig(), newFakePusher(), &fakeAcker{}, clock.Fake(epoch), logging.NopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	c.Enqueue(rec("a", 1))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
