package keystore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"

	"filippo.io/age"
	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/dbx"
)

// DefaultWorkFactor is the scrypt work factor (log2 N) used to seal secrets.
const DefaultWorkFactor = 18

// age refuses identities whose stanza asks for more than this unless told
// otherwise.
const ageDefaultMaxWorkFactor = 22

// SQLiteKeystore stores secrets in the keystore table, each one sealed
// with an age scrypt recipient derived from a passphrase. Opened secrets are
// cached for the life of the keystore since scrypt is deliberately slow.
type SQLiteKeystore struct {
	db         dbx.DBTX
	passphrase string
	workFactor int

	mu    sync.Mutex
	cache map[string][]byte
}

func NewSQLiteKeystore(db dbx.DBTX, passphrase string, workFactor int) (*SQLiteKeystore, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: empty keystore passphrase", common.ErrEncryption)
	}
	if workFactor <= 0 {
		workFactor = DefaultWorkFactor
	}
	return &SQLiteKeystore{
		db:         db,
		passphrase: passphrase,
		workFactor: workFactor,
		cache:      make(map[string][]byte),
	}, nil
}

func (k *SQLiteKeystore) seal(secret []byte) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(k.passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(k.workFactor)

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(secret); err != nil {
		return nil, fmt.Errorf("sealing secret: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing sealed secret: %w", err)
	}
	return buf.Bytes(), nil
}

func (k *SQLiteKeystore) open(sealed []byte) ([]byte, error) {
	identity, err := age.NewScryptIdentity(k.passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	if k.workFactor > ageDefaultMaxWorkFactor {
		identity.SetMaxWorkFactor(k.workFactor)
	}

	r, err := age.Decrypt(bytes.NewReader(sealed), identity)
	if err != nil {
		return nil, fmt.Errorf("opening sealed secret: %w", err)
	}
	return io.ReadAll(r)
}

func (k *SQLiteKeystore) Put(ctx context.Context, alias string, secret []byte) error {
	sealed, err := k.seal(secret)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}

	_, err = k.db.ExecContext(ctx, `
		INSERT INTO keystore (alias, sealed) VALUES (?, ?)
		ON CONFLICT(alias) DO UPDATE SET sealed = excluded.sealed
	`, alias, sealed)
	if err != nil {
		return fmt.Errorf("failed to store key %s: %w", alias, err)
	}

	k.mu.Lock()
	k.cache[alias] = append([]byte(nil), secret...)
	k.mu.Unlock()
	return nil
}

func (k *SQLiteKeystore) Get(ctx context.Context, alias string) ([]byte, error) {
	k.mu.Lock()
	if s, ok := k.cache[alias]; ok {
		k.mu.Unlock()
		return append([]byte(nil), s...), nil
	}
	k.mu.Unlock()

	var sealed []byte
	err := k.db.QueryRowContext(ctx, `SELECT sealed FROM keystore WHERE alias = ?`, alias).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load key %s: %w", alias, err)
	}

	secret, err := k.open(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	k.mu.Lock()
	k.cache[alias] = append([]byte(nil), secret...)
	k.mu.Unlock()
	return secret, nil
}

func (k *SQLiteKeystore) Delete(ctx context.Context, alias string) error {
	if _, err := k.db.ExecContext(ctx, `DELETE FROM keystore WHERE alias = ?`, alias); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", alias, err)
	}

	k.mu.Lock()
	if s, ok := k.cache[alias]; ok {
		common.WipeByteArray(s)
		delete(k.cache, alias)
	}
	k.mu.Unlock()
	return nil
}
