// Package goals persists encrypted goal records in the local SQLite
// database. It deals in models.StoredGoal rows only; encryption and the
// owner index are applied by the caller.
package goals

import (
	"context"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/models"
)

// Repository describes storage and query operations for goal rows.
//
// Queries by owner take the owner's blind index, never the owner id.
// "Current" means greatest calculated_at, then updated_at, then id.
type Repository interface {
	// Upsert inserts the row or replaces every column of the row with the
	// same id.
	Upsert(ctx context.Context, g *models.StoredGoal) error

	// GetByID returns common.ErrorNotFound if no row has the id.
	GetByID(ctx context.Context, id string) (*models.StoredGoal, error)

	// LatestForOwner returns the owner's current row or common.ErrorNotFound.
	LatestForOwner(ctx context.Context, ownerIndex []byte) (*models.StoredGoal, error)

	// ListForOwner returns the owner's rows, current first.
	ListForOwner(ctx context.Context, ownerIndex []byte) ([]models.StoredGoal, error)

	ListDirty(ctx context.Context) ([]models.StoredGoal, error)
	ListAll(ctx context.Context) ([]models.StoredGoal, error)

	// MarkSynced clears the dirty flag of the given ids unconditionally.
	MarkSynced(ctx context.Context, ids []string, at time.Time) (int, error)

	// MarkRevisionSynced clears the dirty flag only if the row still has
	// the given revision.
	MarkRevisionSynced(ctx context.Context, id string, revision int64, at time.Time) (bool, error)

	DeleteForOwner(ctx context.Context, ownerIndex []byte) (int, error)

	// PurgeOlderThan deletes clean rows calculated before cutoff, keeping
	// each owner's current row.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// UpdateCiphers replaces the encrypted columns without touching any
	// bookkeeping column.
	UpdateCiphers(ctx context.Context, id string, ownerCipher, valuesCipher []byte) error
}
