package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/models"
	"github.com/dmitrijs2005/goalkeeper/internal/client/repositories/goals"
	"github.com/dmitrijs2005/goalkeeper/internal/clock"
	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/dbx"
	"github.com/dmitrijs2005/goalkeeper/internal/logging"
)

// Encryptor seals and opens sensitive fields. Open also reports the key
// version that opened the blob.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(blob []byte) ([]byte, error)
	Open(blob []byte) ([]byte, int, error)
	ActiveVersion() int
}

// OwnerIndexer maps an owner id to its blind index.
type OwnerIndexer interface {
	Index(ownerID string) []byte
}

// SensitiveFields selects which fields are encrypted at rest in addition
// to the owner id, which always is.
type SensitiveFields struct {
	GoalValues bool
}

// GoalStore is durable local storage for goal records.
//
// Contract:
//   - Upsert: validate, encrypt and insert-or-replace by id. Re-saving
//     identical content changes nothing.
//   - GetCurrent: the owner's record with the greatest calculation time, or
//     nil when the owner has none.
//   - GetHistory / GetDirty: undecryptable rows are logged and skipped.
//   - MarkSynced / MarkRevisionsSynced: clear the dirty flag atomically.
//   - PurgeOlderThan: never removes an owner's current record or a dirty one.
//   - Rewrap: re-encrypt rows still sealed under a previous key.
type GoalStore interface {
	Upsert(ctx context.Context, record models.GoalRecord, markDirty bool) (models.GoalRecord, error)
	GetCurrent(ctx context.Context, ownerID string) (*models.GoalRecord, error)
	GetHistory(ctx context.Context, ownerID string) ([]models.GoalRecord, error)
	GetDirty(ctx context.Context) ([]models.GoalRecord, error)
	MarkSynced(ctx context.Context, ids []string, syncTime time.Time) error
	MarkRevisionsSynced(ctx context.Context, acks []models.SyncAck, syncTime time.Time) (int, error)
	DeleteForOwner(ctx context.Context, ownerID string) (int, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Rewrap(ctx context.Context) (int, error)
}

type goalStore struct {
	db     *sql.DB
	enc    Encryptor
	index  OwnerIndexer
	clock  clock.Clock
	log    logging.Logger
	fields SensitiveFields
}

func NewGoalStore(db *sql.DB, enc Encryptor, index OwnerIndexer, clk clock.Clock, log logging.Logger, fields SensitiveFields) GoalStore {
	return &goalStore{
		db:     db,
		enc:    enc,
		index:  index,
		clock:  clk,
		log:    log.With("module", "goalstore"),
		fields: fields,
	}
}

func (s *goalStore) repo(db dbx.DBTX) goals.Repository {
	return goals.NewSQLiteRepository(db)
}

func persistence(err error) error {
	return fmt.Errorf("%w: %w", common.ErrLocalPersistence, err)
}

// seal fills the encrypted and plain value columns of row from r.
func (s *goalStore) seal(r models.GoalRecord, row *models.StoredGoal) error {
	ownerCipher, err := s.enc.Encrypt([]byte(r.OwnerID))
	if err != nil {
		return fmt.Errorf("encrypt owner: %w", err)
	}
	row.OwnerIndex = s.index.Index(r.OwnerID)
	row.OwnerCipher = ownerCipher

	if !s.fields.GoalValues {
		steps, calories, heartPoints := r.Values.Steps, r.Values.Calories, r.Values.HeartPoints
		row.Steps, row.Calories, row.HeartPoints = &steps, &calories, &heartPoints
		row.ValuesCipher = nil
		return nil
	}

	plain, err := json.Marshal(r.Values)
	if err != nil {
		return fmt.Errorf("%w: encode goal values: %v", common.ErrEncryption, err)
	}
	valuesCipher, err := s.enc.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypt goal values: %w", err)
	}
	row.Steps, row.Calories, row.HeartPoints = nil, nil, nil
	row.ValuesCipher = valuesCipher
	return nil
}

// open decrypts a stored row into a record.
func (s *goalStore) open(row models.StoredGoal) (models.GoalRecord, error) {
	owner, err := s.enc.Decrypt(row.OwnerCipher)
	if err != nil {
		return models.GoalRecord{}, fmt.Errorf("goal %s owner: %w", row.ID, err)
	}

	var values models.GoalValues
	switch {
	case row.ValuesCipher != nil:
		plain, err := s.enc.Decrypt(row.ValuesCipher)
		if err != nil {
			return models.GoalRecord{}, fmt.Errorf("goal %s values: %w", row.ID, err)
		}
		if err := json.Unmarshal(plain, &values); err != nil {
			return models.GoalRecord{}, fmt.Errorf("%w: goal %s values: %v", common.ErrDecryption, row.ID, err)
		}
	case row.Steps != nil && row.Calories != nil && row.HeartPoints != nil:
		values = models.GoalValues{Steps: *row.Steps, Calories: *row.Calories, HeartPoints: *row.HeartPoints}
	default:
		return models.GoalRecord{}, fmt.Errorf("%w: goal %s has no values", common.ErrLocalPersistence, row.ID)
	}

	return models.GoalRecord{
		ID:           row.ID,
		OwnerID:      string(owner),
		Values:       values,
		CalculatedAt: row.CalculatedAt,
		Source:       models.CalculationSource(row.Source),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastSyncAt:   row.LastSyncAt,
		IsDirty:      row.IsDirty,
		Revision:     row.Revision,
	}, nil
}

func (s *goalStore) Upsert(ctx context.Context, record models.GoalRecord, markDirty bool) (models.GoalRecord, error) {
	if err := record.Validate(); err != nil {
		return models.GoalRecord{}, err
	}

	row := models.StoredGoal{
		ID:           record.ID,
		CalculatedAt: record.CalculatedAt,
		Source:       string(record.Source),
	}
	if err := s.seal(record, &row); err != nil {
		return models.GoalRecord{}, err
	}

	var (
		result  models.GoalRecord
		changed bool
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		now := s.clock.Now()

		existing, err := repo.GetByID(ctx, record.ID)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			row.Revision = 1
			row.CreatedAt = now
		case err != nil:
			return persistence(err)
		default:
			if !bytes.Equal(existing.OwnerIndex, row.OwnerIndex) {
				return fmt.Errorf("%w: goal %s belongs to another owner", common.ErrValidation, record.ID)
			}
			if prev, err := s.open(*existing); err == nil && prev.SameContent(record) {
				result = prev
				return nil
			} else if err != nil {
				s.log.Warn(ctx, "overwriting undecryptable goal", "id", record.ID, "error", err)
			}
			row.Revision = existing.Revision + 1
			row.CreatedAt = existing.CreatedAt
			row.LastSyncAt = existing.LastSyncAt
		}

		row.UpdatedAt = now
		if row.LastSyncAt != nil && !row.UpdatedAt.After(*row.LastSyncAt) {
			row.UpdatedAt = row.LastSyncAt.Add(time.Nanosecond)
		}
		row.IsDirty = markDirty

		if err := repo.Upsert(ctx, &row); err != nil {
			return persistence(err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return models.GoalRecord{}, err
	}

	if !changed {
		s.log.Debug(ctx, "goal unchanged", "id", record.ID)
		return result, nil
	}

	saved := record
	saved.CreatedAt = row.CreatedAt
	saved.UpdatedAt = row.UpdatedAt
	saved.LastSyncAt = row.LastSyncAt
	saved.IsDirty = row.IsDirty
	saved.Revision = row.Revision
	s.log.Debug(ctx, "goal saved", "id", record.ID, "revision", row.Revision, "dirty", row.IsDirty)
	return saved, nil
}

func (s *goalStore) GetCurrent(ctx context.Context, ownerID string) (*models.GoalRecord, error) {
	row, err := s.repo(s.db).LatestForOwner(ctx, s.index.Index(ownerID))
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence(err)
	}

	r, err := s.open(*row)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// openAll decrypts rows, skipping the ones that fail.
func (s *goalStore) openAll(ctx context.Context, rows []models.StoredGoal) []models.GoalRecord {
	result := make([]models.GoalRecord, 0, len(rows))
	for _, row := range rows {
		r, err := s.open(row)
		if err != nil {
			s.log.Warn(ctx, "skipping undecryptable goal", "id", row.ID, "error", err)
			continue
		}
		result = append(result, r)
	}
	return result
}

func (s *goalStore) GetHistory(ctx context.Context, ownerID string) ([]models.GoalRecord, error) {
	rows, err := s.repo(s.db).ListForOwner(ctx, s.index.Index(ownerID))
	if err != nil {
		return nil, persistence(err)
	}
	return s.openAll(ctx, rows), nil
}

func (s *goalStore) GetDirty(ctx context.Context) ([]models.GoalRecord, error) {
	rows, err := s.repo(s.db).ListDirty(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	return s.openAll(ctx, rows), nil
}

func (s *goalStore) MarkSynced(ctx context.Context, ids []string, syncTime time.Time) error {
	if _, err := s.repo(s.db).MarkSynced(ctx, ids, syncTime); err != nil {
		return persistence(err)
	}
	return nil
}

func (s *goalStore) MarkRevisionsSynced(ctx context.Context, acks []models.SyncAck, syncTime time.Time) (int, error) {
	if len(acks) == 0 {
		return 0, nil
	}

	marked := 0
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		for _, ack := range acks {
			ok, err := repo.MarkRevisionSynced(ctx, ack.ID, ack.Revision, syncTime)
			if err != nil {
				return persistence(err)
			}
			if ok {
				marked++
			} else {
				s.log.Debug(ctx, "goal changed while in flight, staying dirty", "id", ack.ID, "revision", ack.Revision)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

func (s *goalStore) DeleteForOwner(ctx context.Context, ownerID string) (int, error) {
	n, err := s.repo(s.db).DeleteForOwner(ctx, s.index.Index(ownerID))
	if err != nil {
		return 0, persistence(err)
	}
	return n, nil
}

func (s *goalStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.repo(s.db).PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, persistence(err)
	}
	if n > 0 {
		s.log.Info(ctx, "purged expired goals", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// reseal re-encrypts blob under the active key. It reports false when the
// blob already uses the active key.
func (s *goalStore) reseal(blob []byte, active int) ([]byte, bool, error) {
	if blob == nil {
		return nil, false, nil
	}
	plain, version, err := s.enc.Open(blob)
	if err != nil {
		return nil, false, err
	}
	if version == active {
		return blob, false, nil
	}
	fresh, err := s.enc.Encrypt(plain)
	if err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

func (s *goalStore) Rewrap(ctx context.Context) (int, error) {
	rewrapped := 0
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		rows, err := repo.ListAll(ctx)
		if err != nil {
			return persistence(err)
		}

		active := s.enc.ActiveVersion()
		for _, row := range rows {
			owner, ownerChanged, err := s.reseal(row.OwnerCipher, active)
			if err != nil {
				s.log.Warn(ctx, "cannot rewrap goal", "id", row.ID, "error", err)
				continue
			}
			values, valuesChanged, err := s.reseal(row.ValuesCipher, active)
			if err != nil {
				s.log.Warn(ctx, "cannot rewrap goal", "id", row.ID, "error", err)
				continue
			}
			if !ownerChanged && !valuesChanged {
				continue
			}
			if err := repo.UpdateCiphers(ctx, row.ID, owner, values); err != nil {
				return persistence(err)
			}
			rewrapped++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if rewrapped > 0 {
		s.log.Info(ctx, "rewrapped goals under active key", "count", rewrapped)
	}
	return rewrapped, nil
}
