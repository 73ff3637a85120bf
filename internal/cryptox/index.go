package cryptox

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/goalkeeper/internal/client/keystore"
	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/zeebo/blake3"
)

const (
	indexKeyAlias = "owner-index"
	indexDomain   = "goalkeeper owner index v1"
)

// Indexer derives a deterministic blind index from an owner id. Its key is
// never rotated; rotating it would orphan every stored index.
type Indexer struct {
	key []byte
}

// NewIndexer loads the index key from the keystore, creating it on first
// use.
func NewIndexer(ctx context.Context, keys keystore.Keystore) (*Indexer, error) {
	key, err := keys.Get(ctx, indexKeyAlias)
	if errors.Is(err, common.ErrKeyNotFound) {
		key = common.GenerateRandByteArray(32)
		if err := keys.Put(ctx, indexKeyAlias, key); err != nil {
			return nil, fmt.Errorf("store index key: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("load index key: %w", err)
	}

	if _, err := blake3.NewKeyed(key); err != nil {
		return nil, fmt.Errorf("%w: invalid index key: %v", common.ErrKeyNotFound, err)
	}
	return &Indexer{key: key}, nil
}

// Index returns the 32-byte blind index of ownerID.
func (i *Indexer) Index(ownerID string) []byte {
	h, err := blake3.NewKeyed(i.key)
	if err != nil {
		panic("cryptox: keyed BLAKE3 rejected a validated key: " + err.Error())
	}
	h.Write([]byte(indexDomain))
	h.Write([]byte{0})
	h.Write([]byte(ownerID))
	return h.Sum(nil)
}
