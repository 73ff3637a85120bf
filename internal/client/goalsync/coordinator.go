// Package goalsync batches sync requests from the goal store and hands them
// to the remote client.
//
// Enqueue never blocks: requests land in an unbounded inbox that a single
// drain loop (Run) folds into the pending set. The loop flushes when
// BatchSize records are pending or MaxWait has passed since the oldest one
// arrived, but never starts two flushes less than MinFlushInterval apart.
package goalsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/models"
	"github.com/dmitrijs2005/goalkeeper/internal/clock"
	"github.com/dmitrijs2005/goalkeeper/internal/logging"
)

var ErrAlreadyRunning = errors.New("coordinator already running")

// Pusher writes a batch to the remote store.
type Pusher interface {
	PushBatch(ctx context.Context, records []models.GoalRecord) models.BatchResult
}

// Acker records which revisions the remote acknowledged.
type Acker interface {
	MarkRevisionsSynced(ctx context.Context, acks []models.SyncAck, syncTime time.Time) (int, error)
}

type Config struct {
	BatchSize        int
	MaxWait          time.Duration
	MinFlushInterval time.Duration
	// MaxRequeues caps how often a transiently failed record is put back
	// into the queue; after that it waits for the reconciliation worker.
	MaxRequeues int
}

func DefaultConfig() Config {
	return Config{
		BatchSize:        10,
		MaxWait:          5 * time.Second,
		MinFlushInterval: 30 * time.Second,
		MaxRequeues:      3,
	}
}

type RequestKind string

const (
	RequestSingle RequestKind = "single"
	RequestBatch  RequestKind = "batch"
)

type Request struct {
	Kind    RequestKind
	Records []models.GoalRecord
	// At is when the request was submitted. The MaxWait window of its
	// records starts here, not when the drain loop picks them up.
	At time.Time
}

type Stats struct {
	Enqueued     int
	Flushes      int
	Synced       int
	Failed       int
	Rejected     int
	Unauthorized int
	Requeued     int
	// Abandoned counts failed records that hit MaxRequeues.
	Abandoned int
	Pending   int
}

type entry struct {
	record models.GoalRecord
	since  time.Time
}

type Coordinator struct {
	cfg    Config
	pusher Pusher
	acker  Acker
	clock  clock.Clock
	log    logging.Logger

	notify chan struct{}
	force  chan chan struct{}

	mu        sync.Mutex
	running   bool
	inbox     []Request
	pending   map[string]*entry
	order     []string
	lastFlush time.Time
	requeues  map[string]int
	stats     Stats
}

func New(cfg Config, pusher Pusher, acker Acker, clk clock.Clock, log logging.Logger) *Coordinator {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = def.MaxWait
	}
	if cfg.MinFlushInterval < 0 {
		cfg.MinFlushInterval = 0
	}
	if cfg.MaxRequeues < 0 {
		cfg.MaxRequeues = 0
	}
	return &Coordinator{
		cfg:      cfg,
		pusher:   pusher,
		acker:    acker,
		clock:    clk,
		log:      log.With("module", "goalsync"),
		notify:   make(chan struct{}, 1),
		force:    make(chan chan struct{}),
		pending:  make(map[string]*entry),
		requeues: make(map[string]int),
	}
}

// Enqueue schedules one record for synchronization.
func (c *Coordinator) Enqueue(r models.GoalRecord) {
	c.submit(Request{Kind: RequestSingle, Records: []models.GoalRecord{r}})
}

// EnqueueBatch schedules several records as one request.
func (c *Coordinator) EnqueueBatch(rs []models.GoalRecord) {
	if len(rs) == 0 {
		return
	}
	c.submit(Request{Kind: RequestBatch, Records: append([]models.GoalRecord(nil), rs...)})
}

func (c *Coordinator) submit(req Request) {
	req.At = c.clock.Now()
	c.mu.Lock()
	c.inbox = append(c.inbox, req)
	c.stats.Enqueued += len(req.Records)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Stats returns a snapshot of the counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Pending = len(c.order)
	for _, req := range c.inbox {
		s.Pending += len(req.Records)
	}
	return s
}

// addLocked adds r to the pending set. A pending record with a higher
// revision wins over r.
func (c *Coordinator) addLocked(r models.GoalRecord, now time.Time) {
	if e, ok := c.pending[r.ID]; ok {
		if r.Revision >= e.record.Revision {
			e.record = r
		}
		return
	}
	c.pending[r.ID] = &entry{record: r, since: now}
	c.order = append(c.order, r.ID)
}

func (c *Coordinator) drainInboxLocked(now time.Time) {
	for _, req := range c.inbox {
		at := req.At
		if at.IsZero() {
			at = now
		}
		for _, r := range req.Records {
			c.addLocked(r, at)
		}
	}
	c.inbox = nil
}

// takeLocked removes up to n records from the front of the pending set.
// n <= 0 takes everything.
func (c *Coordinator) takeLocked(n int) []models.GoalRecord {
	if n <= 0 || n > len(c.order) {
		n = len(c.order)
	}
	out := make([]models.GoalRecord, 0, n)
	for _, id := range c.order[:n] {
		out = append(out, c.pending[id].record)
		delete(c.pending, id)
	}
	c.order = append([]string(nil), c.order[n:]...)
	return out
}

// dueLocked returns when the next flush may start.
func (c *Coordinator) dueLocked(now time.Time) (time.Time, bool) {
	if len(c.order) == 0 {
		return time.Time{}, false
	}
	due := c.pending[c.order[0]].since.Add(c.cfg.MaxWait)
	if len(c.order) >= c.cfg.BatchSize {
		due = now
	}
	if !c.lastFlush.IsZero() {
		if earliest := c.lastFlush.Add(c.cfg.MinFlushInterval); earliest.After(due) {
			due = earliest
		}
	}
	return due, true
}

// Run drains the queue until ctx is done. Only one Run may be active.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	c.log.Info(ctx, "sync coordinator started", "batch_size", c.cfg.BatchSize, "max_wait", c.cfg.MaxWait)
	for {
		now := c.clock.Now()

		c.mu.Lock()
		c.drainInboxLocked(now)
		due, ok := c.dueLocked(now)
		var batch []models.GoalRecord
		if ok && !now.Before(due) {
			batch = c.takeLocked(c.cfg.BatchSize)
		}
		c.mu.Unlock()

		if batch != nil {
			c.flush(ctx, batch)
			continue
		}

		var timer *clock.Timer
		var fire <-chan time.Time
		if ok {
			timer = c.clock.NewTimer(due.Sub(now))
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			c.log.Info(ctx, "sync coordinator stopped", "pending", c.Stats().Pending)
			return ctx.Err()
		case <-c.notify:
		case <-fire:
		case done := <-c.force:
			c.mu.Lock()
			c.drainInboxLocked(c.clock.Now())
			all := c.takeLocked(0)
			c.mu.Unlock()
			if len(all) > 0 {
				c.flush(ctx, all)
			}
			close(done)
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// ForceFlush flushes everything pending, bypassing the batching window and
// the throttle, and waits until the flush has finished. It needs a running
// Run loop.
func (c *Coordinator) ForceFlush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case c.force <- done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) flush(ctx context.Context, batch []models.GoalRecord) {
	started := c.clock.Now()
	c.mu.Lock()
	c.lastFlush = started
	c.stats.Flushes++
	c.mu.Unlock()

	res := c.pusher.PushBatch(ctx, batch)

	if acks := res.Acks(); len(acks) > 0 {
		marked, err := c.acker.MarkRevisionsSynced(ctx, acks, c.clock.Now())
		if err != nil {
			// The records stay dirty and are picked up by reconciliation.
			c.log.Error(ctx, "failed to record sync acknowledgements", "acks", len(acks), "error", err)
		} else if marked < len(acks) {
			c.log.Debug(ctx, "some records changed while in flight", "acked", len(acks), "marked", marked)
		}
	}

	byID := make(map[string]models.GoalRecord, len(batch))
	for _, r := range batch {
		byID[r.ID] = r
	}

	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, it := range res.Items {
		switch it.Status {
		case models.StatusSynced:
			c.stats.Synced++
			delete(c.requeues, it.ID)
		case models.StatusRejected:
			c.stats.Rejected++
			delete(c.requeues, it.ID)
		case models.StatusUnauthorized:
			c.stats.Unauthorized++
			delete(c.requeues, it.ID)
		case models.StatusFailed:
			c.stats.Failed++
			if ctx.Err() != nil {
				continue
			}
			if c.requeues[it.ID] >= c.cfg.MaxRequeues {
				c.stats.Abandoned++
				delete(c.requeues, it.ID)
				c.log.Warn(ctx, "record left dirty for reconciliation", "id", it.ID, "error", it.Err)
				continue
			}
			c.requeues[it.ID]++
			c.stats.Requeued++
			c.addLocked(byID[it.ID], now)
		}
	}

	c.log.Debug(ctx, "flush finished", "records", len(batch), "synced", len(res.Synced()),
		"failed", len(res.Failed()), "took", c.clock.Now().Sub(started))
}
