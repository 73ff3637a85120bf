package cryptox

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/goalkeeper/internal/client/keystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexerIsDeterministicPerKey(t *testing.T) {
	ctx := context.Background()
	keys := keystore.NewMemoryKeystore()

	a, err := NewIndexer(ctx, keys)
	require.NoError(t, err)
	b, err := NewIndexer(ctx, keys)
	require.NoError(t, err)

	assert.Len(t, a.Index("alice"), 32)
	assert.Equal(t, a.Index("alice"), b.Index("alice"))
	assert.NotEqual(t, a.Index("alice"), a.Index("bob"))

	other, err := NewIndexer(ctx, keystore.NewMemoryKeystore())
	require.NoError(t, err)
	assert.NotEqual(t, a.Index("alice"), other.Index("alice"))
}
