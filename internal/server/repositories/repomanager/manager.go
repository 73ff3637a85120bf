package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/goalkeeper/internal/dbx"
	"github.com/dmitrijs2005/goalkeeper/internal/server/repositories/goals"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Goals(db dbx.DBTX) goals.Repository
}
