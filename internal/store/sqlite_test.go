package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T) *SQLiteMemory {
	t.Helper()
	m, err := NewSQLite(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	require.NoError(t, m.Migrate(context.Background()))
	return m
}

func TestSQLiteMemory_ContainsAfterAdd(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	ok, err := m.Contains(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Add(ctx, "s1"))
	ok, err = m.Contains(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteMemory_AddIsIdempotent(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, "s1"))
	require.NoError(t, m.Add(ctx, "s1"))

	ids, err := m.ListConfirmed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestSQLiteMemory_Remove(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, "s1"))
	require.NoError(t, m.Remove(ctx, "s1"))

	ok, err := m.Contains(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing an absent id is not an error.
	require.NoError(t, m.Remove(ctx, "ghost"))
}

func TestSQLiteMemory_Favorites(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.AddFavorite(ctx, "s1", "Corner Market"))
	require.NoError(t, m.AddFavorite(ctx, "s2", "Midtown Grocer"))
	require.NoError(t, m.AddFavorite(ctx, "s1", "Corner Market (renamed)"))

	favs, err := m.ListFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, favs, 2)

	byID := map[string]string{}
	for _, f := range favs {
		byID[f.StoreID] = f.Name
	}
	assert.Equal(t, "Corner Market (renamed)", byID["s1"])

	require.NoError(t, m.RemoveFavorite(ctx, "s2"))
	favs, err = m.ListFavorites(ctx)
	require.NoError(t, err)
	assert.Len(t, favs, 1)
}
