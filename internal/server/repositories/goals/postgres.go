package goals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/dbx"
	"github.com/dmitrijs2005/goalkeeper/internal/server/models"
)

// PostgresRepository implements goal storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, g *models.Goal) (bool, error) {
	query := `
		INSERT INTO goals (id, owner_id, steps, calories, heart_points, calculated_at, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			steps = EXCLUDED.steps,
			calories = EXCLUDED.calories,
			heart_points = EXCLUDED.heart_points,
			calculated_at = EXCLUDED.calculated_at,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at,
			received_at = now()
			WHERE goals.owner_id = EXCLUDED.owner_id AND goals.updated_at <= EXCLUDED.updated_at;
	`
	res, err := r.db.ExecContext(ctx, query,
		g.ID, g.OwnerID, g.Steps, g.Calories, g.HeartPoints, g.CalculatedAt, g.Source, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return true, nil
	case 0:
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}

	var owner string
	err = r.db.QueryRowContext(ctx, `SELECT owner_id FROM goals WHERE id = $1`, g.ID).Scan(&owner)
	if err != nil {
		return false, fmt.Errorf("failed to check goal owner: %w", err)
	}
	if owner != g.OwnerID {
		return false, fmt.Errorf("%w: goal %s belongs to another owner", common.ErrValidation, g.ID)
	}
	return false, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Goal, error) {
	query := `SELECT id, owner_id, steps, calories, heart_points, calculated_at, source, created_at, updated_at
		FROM goals WHERE id = $1`

	var g models.Goal
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.OwnerID, &g.Steps, &g.Calories, &g.HeartPoints, &g.CalculatedAt, &g.Source, &g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select goal: %w", err)
	}
	return &g, nil
}
