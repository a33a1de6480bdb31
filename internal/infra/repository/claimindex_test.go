package repository

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
)

func hashOf(b byte) factguard.FactHash {
	var h factguard.FactHash
	h[0] = b
	h[31] = b
	return h
}

func TestClaimIndexNormalizesText(t *testing.T) {
	ctx := context.Background()
	index := NewClaimIndex()

	require.NoError(t, index.Put(ctx, "Vaccines  cause\tautism", hashOf(1)))

	hash, ok, err := index.Lookup(ctx, "  vaccines cause AUTISM ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, hashOf(1), hash)

	_, ok, err = index.Lookup(ctx, "vaccines cause autism in adults")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimIndexReplacesAndIgnoresBlank(t *testing.T) {
	ctx := context.Background()
	index := NewClaimIndex()

	require.NoError(t, index.Put(ctx, "X cures Y", hashOf(1)))
	require.NoError(t, index.Put(ctx, "x cures y", hashOf(2)))
	require.NoError(t, index.Put(ctx, "   ", hashOf(3)))
	assert.Equal(t, 1, index.Len())

	hash, ok, err := index.Lookup(ctx, "X CURES Y")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, hashOf(2), hash)
}

func TestClaimIndexLoadFrom(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryProjectionRepository()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < claimIndexPageSize+5; i++ {
		require.NoError(t, store.Save(ctx, domain.PublishedFact{
			Record: factguard.FactRecord{
				FactID:    "f-" + strconv.Itoa(i),
				ClaimText: "claim " + strconv.Itoa(i),
				IssuedAt:  base.Add(time.Duration(i) * time.Hour),
			},
			FactHash: hashOf(byte(i)),
		}))
	}

	index := NewClaimIndex()
	require.NoError(t, index.LoadFrom(ctx, store))
	assert.Equal(t, claimIndexPageSize+5, index.Len())

	hash, ok, err := index.Lookup(ctx, "claim 7")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, hashOf(7), hash)
}
