package goals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/models"
	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/dbx"
	"github.com/dmitrijs2005/goalkeeper/internal/timex"
)

const goalColumns = `id, owner_index, owner_cipher, steps, calories, heart_points, values_cipher,
	calculated_at, calculation_source, created_at, updated_at, last_sync_at, is_dirty, revision`

const currentOrder = `calculated_at DESC, updated_at DESC, id DESC`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func scanGoal(s scanner) (*models.StoredGoal, error) {
	var (
		g                            models.StoredGoal
		steps, calories, heartPoints sql.NullInt64
		calculatedAt, createdAt      int64
		updatedAt                    int64
		lastSyncAt                   sql.NullInt64
		dirty                        int
	)
	err := s.Scan(&g.ID, &g.OwnerIndex, &g.OwnerCipher, &steps, &calories, &heartPoints, &g.ValuesCipher,
		&calculatedAt, &g.Source, &createdAt, &updatedAt, &lastSyncAt, &dirty, &g.Revision)
	if err != nil {
		return nil, err
	}

	g.Steps = intPtr(steps)
	g.Calories = intPtr(calories)
	g.HeartPoints = intPtr(heartPoints)
	g.CalculatedAt = timex.FromUnixNano(calculatedAt)
	g.CreatedAt = timex.FromUnixNano(createdAt)
	g.UpdatedAt = timex.FromUnixNano(updatedAt)
	if lastSyncAt.Valid {
		t := timex.FromUnixNano(lastSyncAt.Int64)
		g.LastSyncAt = &t
	}
	g.IsDirty = dirty == 1
	return &g, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.StoredGoal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select goals: %w", err)
	}
	defer rows.Close()

	var result []models.StoredGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal row: %w", err)
		}
		result = append(result, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate goal rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) one(ctx context.Context, query string, args ...any) (*models.StoredGoal, error) {
	g, err := scanGoal(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select goal: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, g *models.StoredGoal) error {
	dirty := 0
	if g.IsDirty {
		dirty = 1
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goal_records (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_index = excluded.owner_index,
			owner_cipher = excluded.owner_cipher,
			steps = excluded.steps,
			calories = excluded.calories,
			heart_points = excluded.heart_points,
			values_cipher = excluded.values_cipher,
			calculated_at = excluded.calculated_at,
			calculation_source = excluded.calculation_source,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			last_sync_at = excluded.last_sync_at,
			is_dirty = excluded.is_dirty,
			revision = excluded.revision
	`,
		g.ID, g.OwnerIndex, g.OwnerCipher,
		nullableInt(g.Steps), nullableInt(g.Calories), nullableInt(g.HeartPoints), g.ValuesCipher,
		timex.ToUnixNano(g.CalculatedAt), g.Source,
		timex.ToUnixNano(g.CreatedAt), timex.ToUnixNano(g.UpdatedAt), timex.NullableUnixNano(g.LastSyncAt),
		dirty, g.Revision,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert goal %s: %w", g.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.StoredGoal, error) {
	return r.one(ctx, `SELECT `+goalColumns+` FROM goal_records WHERE id = ?`, id)
}

func (r *SQLiteRepository) LatestForOwner(ctx context.Context, ownerIndex []byte) (*models.StoredGoal, error) {
	return r.one(ctx, `SELECT `+goalColumns+` FROM goal_records WHERE owner_index = ? ORDER BY `+currentOrder+` LIMIT 1`, ownerIndex)
}

func (r *SQLiteRepository) ListForOwner(ctx context.Context, ownerIndex []byte) ([]models.StoredGoal, error) {
	return r.list(ctx, `SELECT `+goalColumns+` FROM goal_records WHERE owner_index = ? ORDER BY `+currentOrder, ownerIndex)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.StoredGoal, error) {
	return r.list(ctx, `SELECT `+goalColumns+` FROM goal_records WHERE is_dirty = 1 ORDER BY updated_at, id`)
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]models.StoredGoal, error) {
	return r.list(ctx, `SELECT `+goalColumns+` FROM goal_records ORDER BY id`)
}

func affected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, ids []string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := append([]any{timex.ToUnixNano(at)}, dbx.StringArgs(ids)...)
	res, err := r.db.ExecContext(ctx,
		`UPDATE goal_records SET is_dirty = 0, last_sync_at = ? WHERE id IN (`+dbx.Placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark goals synced: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepository) MarkRevisionSynced(ctx context.Context, id string, revision int64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goal_records SET is_dirty = 0, last_sync_at = ? WHERE id = ? AND revision = ?`,
		timex.ToUnixNano(at), id, revision)
	if err != nil {
		return false, fmt.Errorf("failed to mark goal %s synced: %w", id, err)
	}
	n, err := affected(res)
	return n == 1, err
}

func (r *SQLiteRepository) DeleteForOwner(ctx context.Context, ownerIndex []byte) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goal_records WHERE owner_index = ?`, ownerIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to delete owner goals: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM goal_records
		WHERE is_dirty = 0
		  AND calculated_at < ?
		  AND id NOT IN (
			SELECT (
				SELECT c.id FROM goal_records c
				WHERE c.owner_index = o.owner_index
				ORDER BY c.calculated_at DESC, c.updated_at DESC, c.id DESC
				LIMIT 1
			)
			FROM (SELECT DISTINCT owner_index FROM goal_records) o
		  )
	`, timex.ToUnixNano(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge goals: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepository) UpdateCiphers(ctx context.Context, id string, ownerCipher, valuesCipher []byte) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goal_records SET owner_cipher = ?, values_cipher = ? WHERE id = ?`,
		ownerCipher, valuesCipher, id)
	if err != nil {
		return fmt.Errorf("failed to update goal %s ciphers: %w", id, err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n != 1 {
		return common.ErrorNotFound
	}
	return nil
}
