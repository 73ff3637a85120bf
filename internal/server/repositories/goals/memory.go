package goals

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/server/models"
)

// MemoryRepository keeps goals in a map. It ignores transactions: every
// Upsert is applied immediately.
type MemoryRepository struct {
	mu    sync.RWMutex
	goals map[string]models.Goal
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{goals: make(map[string]models.Goal)}
}

func (r *MemoryRepository) Upsert(_ context.Context, g *models.Goal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.goals[g.ID]; ok {
		if cur.OwnerID != g.OwnerID {
			return false, fmt.Errorf("%w: goal %s belongs to another owner", common.ErrValidation, g.ID)
		}
		if cur.UpdatedAt.After(g.UpdatedAt) {
			return false, nil
		}
		g.CreatedAt = cur.CreatedAt
	}
	r.goals[g.ID] = *g
	return true, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.goals[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &g, nil
}
