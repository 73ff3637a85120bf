// Package keystore holds the secrets of the encryption service. Secrets are
// addressed by alias; raw material is only handed back to the caller that
// stored it.
package keystore

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/goalkeeper/internal/common"
)

type Keystore interface {
	Put(ctx context.Context, alias string, secret []byte) error
	// Get returns common.ErrKeyNotFound when nothing is stored under alias.
	Get(ctx context.Context, alias string) ([]byte, error)
	Delete(ctx context.Context, alias string) error
}

// MemoryKeystore keeps secrets in process memory. Used by tests and by
// ephemeral databases.
type MemoryKeystore struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

func NewMemoryKeystore() *MemoryKeystore {
	return &MemoryKeystore{secrets: make(map[string][]byte)}
}

func (k *MemoryKeystore) Put(_ context.Context, alias string, secret []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.secrets[alias] = append([]byte(nil), secret...)
	return nil
}

func (k *MemoryKeystore) Get(_ context.Context, alias string) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	s, ok := k.secrets[alias]
	if !ok {
		return nil, common.ErrKeyNotFound
	}
	return append([]byte(nil), s...), nil
}

func (k *MemoryKeystore) Delete(_ context.Context, alias string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if s, ok := k.secrets[alias]; ok {
		common.WipeByteArray(s)
		delete(k.secrets, alias)
	}
	return nil
}
