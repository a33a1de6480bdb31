package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
)

func TestMemoryProjection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryProjectionRepository()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"f-a", "f-b", "f-c"} {
		require.NoError(t, store.Save(ctx, domain.PublishedFact{
			Record:   factguard.FactRecord{FactID: id, IssuedAt: base.Add(time.Duration(i) * time.Hour), Version: 1},
			FactHash: hashOf(byte(i + 1)),
		}))
	}

	// newer version replaces the row for the same fact id
	require.NoError(t, store.Save(ctx, domain.PublishedFact{
		Record:   factguard.FactRecord{FactID: "f-a", IssuedAt: base.Add(5 * time.Hour), Version: 2},
		FactHash: hashOf(9),
	}))

	fact, err := store.Get(ctx, "f-a")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), fact.Record.Version)

	fact, err = store.GetByHash(ctx, hashOf(2))
	require.NoError(t, err)
	assert.Equal(t, "f-b", fact.Record.FactID)

	_, err = store.GetByHash(ctx, hashOf(1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Get(ctx, "f-z")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	page, total, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "f-a", page[0].Record.FactID)
	assert.Equal(t, "f-c", page[1].Record.FactID)

	page, _, err = store.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "f-b", page[0].Record.FactID)

	page, _, err = store.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	require.NoError(t, store.UpdateStatus(ctx, hashOf(2), factguard.StatusWithdrawn))
	fact, err = store.Get(ctx, "f-b")
	require.NoError(t, err)
	assert.Equal(t, factguard.StatusWithdrawn, fact.Record.Status)

	assert.ErrorIs(t, store.UpdateStatus(ctx, hashOf(1), factguard.StatusWithdrawn), domain.ErrNotFound)
}
