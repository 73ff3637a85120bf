package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/goalkeeper/internal/dbx"
	"github.com/dmitrijs2005/goalkeeper/internal/server/repositories/goals"
)

// MemoryRepositoryManager hands out one shared in-memory goals repository
// regardless of the DBTX passed in. It has no schema to migrate.
type MemoryRepositoryManager struct {
	goals *goals.MemoryRepository
}

func NewMemoryRepositoryManager() RepositoryManager {
	return &MemoryRepositoryManager{goals: goals.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *MemoryRepositoryManager) Goals(dbx.DBTX) goals.Repository              { return m.goals }
