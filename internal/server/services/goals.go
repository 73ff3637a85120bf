// Package services holds the goal store server's business logic, independent
// of the gRPC transport.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/dbx"
	"github.com/dmitrijs2005/goalkeeper/internal/logging"
	"github.com/dmitrijs2005/goalkeeper/internal/server/models"
	"github.com/dmitrijs2005/goalkeeper/internal/server/repositories/goals"
	"github.com/dmitrijs2005/goalkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/goalkeeper/internal/wire"
)

type GoalService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

// NewGoalService builds the service. db may be nil when the repository
// manager is in-memory; writes then run without a transaction.
func NewGoalService(db *sql.DB, repomanager repomanager.RepositoryManager, log logging.Logger) *GoalService {
	return &GoalService{
		db:          db,
		repomanager: repomanager,
		log:         log.With("module", "goalservice"),
	}
}

func (s *GoalService) inTx(ctx context.Context, fn func(ctx context.Context, repo goals.Repository) error) error {
	if s.db == nil {
		return fn(ctx, s.repomanager.Goals(nil))
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, s.repomanager.Goals(tx))
	})
}

func checkOwner(owner string, docs []wire.Document) error {
	for _, d := range docs {
		if d.OwnerID != "" && d.OwnerID != owner {
			return fmt.Errorf("%w: record %s is not owned by the session owner", common.ErrUnauthorized, d.ID)
		}
	}
	return nil
}

// PushBatch stores the documents for owner. A document owned by anyone else
// fails the whole batch with common.ErrUnauthorized. Invalid documents are
// rejected one by one; the valid rest is written in a single transaction
// and acknowledged, including stale writes that lost to a newer copy.
func (s *GoalService) PushBatch(ctx context.Context, owner string, docs []wire.Document) (wire.BatchAck, error) {
	ack := wire.BatchAck{Rejected: map[string]string{}}
	if err := checkOwner(owner, docs); err != nil {
		return ack, err
	}

	valid := make([]wire.Document, 0, len(docs))
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			ack.Rejected[d.ID] = err.Error()
			continue
		}
		valid = append(valid, d)
	}

	var accepted, stale []string
	err := s.inTx(ctx, func(ctx context.Context, repo goals.Repository) error {
		accepted, stale = accepted[:0], stale[:0]
		for _, d := range valid {
			applied, err := repo.Upsert(ctx, models.GoalFromDocument(d))
			if errors.Is(err, common.ErrValidation) {
				ack.Rejected[d.ID] = err.Error()
				continue
			}
			if err != nil {
				return fmt.Errorf("store goal %s: %w", d.ID, err)
			}
			if !applied {
				stale = append(stale, d.ID)
			}
			accepted = append(accepted, d.ID)
		}
		return nil
	})
	if err != nil {
		s.log.Error(ctx, "batch write failed", "owner", owner, "size", len(docs), "error", err)
		return wire.BatchAck{}, err
	}

	ack.Accepted = accepted
	s.log.Info(ctx, "batch stored",
		"owner", owner, "accepted", len(accepted), "stale", len(stale), "rejected", len(ack.Rejected))
	return ack, nil
}

// Push stores a single document. Unlike PushBatch a rejected document is
// returned as an error wrapping common.ErrValidation.
func (s *GoalService) Push(ctx context.Context, owner string, doc wire.Document) error {
	ack, err := s.PushBatch(ctx, owner, []wire.Document{doc})
	if err != nil {
		return err
	}
	if reason, ok := ack.Rejected[doc.ID]; ok {
		return fmt.Errorf("%w: %s", common.ErrValidation, reason)
	}
	return nil
}
