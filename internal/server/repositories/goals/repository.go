// Package goals provides the server-side goal repositories: PostgreSQL for
// production and an in-memory map for development and tests.
package goals

import (
	"context"

	"github.com/dmitrijs2005/goalkeeper/internal/server/models"
)

// Repository stores goals with last-writer-wins semantics on UpdatedAt.
//
// Upsert reports whether g was written. A goal whose stored copy is not
// older than g is left untouched (applied=false, err=nil), so replays are
// harmless. A goal id already owned by another owner yields
// common.ErrValidation.
type Repository interface {
	Upsert(ctx context.Context, g *models.Goal) (applied bool, err error)
	GetByID(ctx context.Context, id string) (*models.Goal, error)
}
