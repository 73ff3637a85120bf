// Package reconcile runs the periodic maintenance pass of the client:
// re-enqueue dirty records, purge old history and rotate the encryption key
// when it is due.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/models"
	"github.com/dmitrijs2005/goalkeeper/internal/clock"
	"github.com/dmitrijs2005/goalkeeper/internal/cryptox"
	"github.com/dmitrijs2005/goalkeeper/internal/logging"
)

const (
	DefaultInterval  = time.Hour
	DefaultRetention = 90 * 24 * time.Hour
)

// Store is the part of the goal store the worker needs.
type Store interface {
	GetDirty(ctx context.Context) ([]models.GoalRecord, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Rewrap(ctx context.Context) (int, error)
}

type Enqueuer interface {
	EnqueueBatch(records []models.GoalRecord)
}

type KeyRotator interface {
	IsRotationDue() bool
	RotateKey(ctx context.Context) (cryptox.KeyRotationResult, error)
}

type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

// Report summarizes one pass.
type Report struct {
	Requeued  int
	Purged    int
	Rotated   bool
	Rewrapped int
}

type Worker struct {
	cfg   Config
	store Store
	queue Enqueuer
	keys  KeyRotator
	clock clock.Clock
	log   logging.Logger
}

func NewWorker(cfg Config, store Store, queue Enqueuer, keys KeyRotator, clk clock.Clock, log logging.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &Worker{
		cfg:   cfg,
		store: store,
		queue: queue,
		keys:  keys,
		clock: clk,
		log:   log.With("module", "reconcile"),
	}
}

// RunOnce performs a single pass. Every step runs even if an earlier one
// failed; the errors are joined.
func (w *Worker) RunOnce(ctx context.Context) (Report, error) {
	var (
		rep  Report
		errs []error
	)

	dirty, err := w.store.GetDirty(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list dirty: %w", err))
	} else if len(dirty) > 0 {
		w.queue.EnqueueBatch(dirty)
		rep.Requeued = len(dirty)
	}

	cutoff := w.clock.Now().Add(-w.cfg.Retention)
	if rep.Purged, err = w.store.PurgeOlderThan(ctx, cutoff); err != nil {
		errs = append(errs, fmt.Errorf("purge: %w", err))
	}

	if w.keys != nil && w.keys.IsRotationDue() {
		if _, err := w.keys.RotateKey(ctx); err != nil {
			errs = append(errs, fmt.Errorf("rotate key: %w", err))
		} else {
			rep.Rotated = true
			if rep.Rewrapped, err = w.store.Rewrap(ctx); err != nil {
				errs = append(errs, fmt.Errorf("rewrap: %w", err))
			}
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		w.log.Error(ctx, "reconciliation pass failed", "error", err)
	}
	w.log.Info(ctx, "reconciliation pass finished", "requeued", rep.Requeued, "purged", rep.Purged,
		"rotated", rep.Rotated, "rewrapped", rep.Rewrapped)

	return rep, err
}

// Run performs a pass immediately and then every Interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if rep, err := w.RunOnce(ctx); err != nil {
			w.log.Debug(ctx, "reconciliation pass incomplete, retrying on next tick",
				"requeued", rep.Requeued, "purged", rep.Purged, "next_in", w.cfg.Interval)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
