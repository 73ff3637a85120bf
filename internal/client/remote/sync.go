// Package remote pushes goal records to the remote authoritative store.
//
// PushBatch never fails as a whole: it reports a tagged result per record.
// Records are grouped by owner because every remote write is authenticated
// as one owner. Each group is written in one transport call, retried with
// exponential backoff, and isolated into single-record pushes when the
// batch keeps failing.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/client"
	"github.com/dmitrijs2005/goalkeeper/internal/client/models"
	"github.com/dmitrijs2005/goalkeeper/internal/clock"
	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/logging"
	"github.com/dmitrijs2005/goalkeeper/internal/wire"
)

// Authorizer hands out the access token for an owner.
type Authorizer interface {
	Authorize(ctx context.Context, ownerID string) (string, error)
}

type SyncClient struct {
	transport client.Client
	auth      Authorizer
	clock     clock.Clock
	log       logging.Logger
	policy    RetryPolicy
}

func NewSyncClient(transport client.Client, auth Authorizer, clk clock.Clock, log logging.Logger, policy RetryPolicy) *SyncClient {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Deadline <= 0 {
		policy.Deadline = DefaultRetryPolicy().Deadline
	}
	return &SyncClient{
		transport: transport,
		auth:      auth,
		clock:     clk,
		log:       log.With("module", "remote"),
		policy:    policy,
	}
}

// Ping reports whether the remote store is reachable.
func (c *SyncClient) Ping(ctx context.Context) error {
	return c.transport.Ping(ctx)
}

func ToDocument(r models.GoalRecord) wire.Document {
	return wire.Document{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Steps:        r.Values.Steps,
		Calories:     r.Values.Calories,
		HeartPoints:  r.Values.HeartPoints,
		CalculatedAt: r.CalculatedAt,
		Source:       string(r.Source),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func result(r models.GoalRecord, status models.ItemStatus, err error) models.ItemResult {
	return models.ItemResult{ID: r.ID, OwnerID: r.OwnerID, Revision: r.Revision, Status: status, Err: err}
}

func groupByOwner(records []models.GoalRecord) [][]models.GoalRecord {
	var (
		groups [][]models.GoalRecord
		pos    = map[string]int{}
	)
	for _, r := range records {
		i, ok := pos[r.OwnerID]
		if !ok {
			i = len(groups)
			pos[r.OwnerID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}
	return groups
}

// PushBatch writes records and reports the outcome of each one.
func (c *SyncClient) PushBatch(ctx context.Context, records []models.GoalRecord) models.BatchResult {
	var res models.BatchResult
	if len(records) == 0 {
		return res
	}
	deadline := c.clock.Now().Add(c.policy.Deadline)

	for _, group := range groupByOwner(records) {
		c.pushGroup(ctx, group[0].OwnerID, group, deadline, &res)
	}

	c.log.Debug(ctx, "batch pushed",
		"records", len(records), "synced", len(res.Synced()), "failed", len(res.Failed()),
		"attempts", res.Attempts, "fell_back", res.FellBack)
	return res
}

// authorize checks the owner's session. On failure the records are
// reported unauthorized and false is returned.
func (c *SyncClient) authorize(ctx context.Context, owner string, records []models.GoalRecord, res *models.BatchResult) (string, bool) {
	token, err := c.auth.Authorize(ctx, owner)
	if err != nil {
		c.log.Warn(ctx, "no usable session, records stay dirty until login", "owner", owner, "records", len(records), "error", err)
		c.finish(records, models.StatusUnauthorized, err, res)
		return "", false
	}
	return token, true
}

// callContext bounds one transport call by the time left before deadline.
// ok is false when no time is left.
func (c *SyncClient) callContext(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc, bool) {
	remaining := deadline.Sub(c.clock.Now())
	if remaining <= 0 {
		return ctx, func() {}, false
	}
	callCtx, cancel := context.WithTimeout(ctx, remaining)
	return callCtx, cancel, true
}

// callError turns a call that ran out of its own time budget into
// common.ErrUnavailable. Cancellation of the parent ctx is left as is.
func callError(ctx, callCtx context.Context, err error) error {
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: push timed out: %v", common.ErrUnavailable, err)
	}
	return err
}

var errDeadline = fmt.Errorf("%w: push deadline reached", common.ErrUnavailable)

func (c *SyncClient) pushGroup(ctx context.Context, owner string, group []models.GoalRecord, deadline time.Time, res *models.BatchResult) {
	pending := append([]models.GoalRecord(nil), group...)

	var lastErr error
	for attempt := 1; ; attempt++ {
		token, ok := c.authorize(ctx, owner, pending, res)
		if !ok {
			return
		}

		callCtx, cancel, ok := c.callContext(ctx, deadline)
		if !ok {
			lastErr = errDeadline
			break
		}

		docs := make([]wire.Document, 0, len(pending))
		for _, r := range pending {
			docs = append(docs, ToDocument(r))
		}

		res.Attempts++
		ack, err := c.transport.PushBatch(callCtx, token, docs)
		err = callError(ctx, callCtx, err)
		cancel()

		pending = c.applyAck(pending, ack, res)
		if err == nil && len(pending) == 0 {
			return
		}
		if err == nil {
			err = fmt.Errorf("%w: %d documents not acknowledged", common.ErrRemote, len(pending))
		}
		lastErr = err

		switch {
		case errors.Is(err, common.ErrUnauthorized):
			c.log.Warn(ctx, "remote refused token, records stay dirty until login", "records", len(pending), "error", err)
			c.finish(pending, models.StatusUnauthorized, err, res)
			return
		case ctx.Err() != nil:
			c.finish(pending, models.StatusFailed, ctx.Err(), res)
			return
		case errors.Is(err, common.ErrValidation):
			c.log.Info(ctx, "batch refused, isolating records", "records", len(pending), "error", err)
			c.fallback(ctx, owner, pending, res)
			return
		}

		if attempt >= c.policy.MaxAttempts {
			break
		}
		delay := c.policy.Delay(attempt)
		if c.clock.Now().Add(delay).After(deadline) {
			c.log.Info(ctx, "push deadline reached", "attempt", attempt, "error", err)
			break
		}

		c.log.Debug(ctx, "batch push failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		timer := c.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.finish(pending, models.StatusFailed, ctx.Err(), res)
			return
		case <-timer.C:
		}
	}

	c.log.Info(ctx, "batch push exhausted, pushing records individually", "records", len(pending), "error", lastErr)
	c.fallback(ctx, owner, pending, res)
}

// applyAck records acknowledged and rejected documents and returns the
// records the ack did not mention.
func (c *SyncClient) applyAck(pending []models.GoalRecord, ack wire.BatchAck, res *models.BatchResult) []models.GoalRecord {
	if len(ack.Accepted) == 0 && len(ack.Rejected) == 0 {
		return pending
	}
	accepted := make(map[string]bool, len(ack.Accepted))
	for _, id := range ack.Accepted {
		accepted[id] = true
	}

	remaining := pending[:0:0]
	for _, r := range pending {
		switch reason, rejected := ack.Rejected[r.ID]; {
		case accepted[r.ID]:
			res.Items = append(res.Items, result(r, models.StatusSynced, nil))
		case rejected:
			res.Items = append(res.Items, result(r, models.StatusRejected, fmt.Errorf("%w: %s", common.ErrValidation, reason)))
		default:
			remaining = append(remaining, r)
		}
	}
	return remaining
}

func (c *SyncClient) finish(records []models.GoalRecord, status models.ItemStatus, err error, res *models.BatchResult) {
	for _, r := range records {
		res.Items = append(res.Items, result(r, status, err))
	}
}

// fallback pushes each record once on its own. The individual pushes get a
// fresh Deadline window; records left when it runs out fail without a call.
// The session is checked before every push.
func (c *SyncClient) fallback(ctx context.Context, owner string, records []models.GoalRecord, res *models.BatchResult) {
	res.FellBack = true
	deadline := c.clock.Now().Add(c.policy.Deadline)

	for i, r := range records {
		if ctx.Err() != nil {
			res.Items = append(res.Items, result(r, models.StatusFailed, ctx.Err()))
			continue
		}

		token, ok := c.authorize(ctx, owner, records[i:], res)
		if !ok {
			return
		}

		callCtx, cancel, ok := c.callContext(ctx, deadline)
		if !ok {
			res.Items = append(res.Items, result(r, models.StatusFailed, errDeadline))
			continue
		}
		err := callError(ctx, callCtx, c.transport.Push(callCtx, token, ToDocument(r)))
		cancel()

		switch {
		case err == nil:
			res.Items = append(res.Items, result(r, models.StatusSynced, nil))
		case errors.Is(err, common.ErrValidation):
			c.log.Warn(ctx, "remote rejected record", "id", r.ID, "error", err)
			res.Items = append(res.Items, result(r, models.StatusRejected, err))
		case errors.Is(err, common.ErrUnauthorized):
			res.Items = append(res.Items, result(r, models.StatusUnauthorized, err))
		default:
			res.Items = append(res.Items, result(r, models.StatusFailed, err))
		}
	}
}
