package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	_, err := os.Stat(dbPath)
	require.True(t, os.IsNotExist(err), "database file should not exist before creating store")

	s, err := New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist after creating store")
	assert.Equal(t, dbPath, s.Path())
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	var name string
	err := s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		"watermarks",
	).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "watermarks", name)
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Watermarks().Advance("receiver", 12.5))
	require.NoError(t, s.Close())

	s, err = New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Watermarks().Get("receiver")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)
}

func TestWatermarkRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Watermarks()

	t.Run("missing", func(t *testing.T) {
		_, err := repo.Get("receiver")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("advance", func(t *testing.T) {
		require.NoError(t, repo.Advance("receiver", 5))
		require.NoError(t, repo.Advance("receiver", 7.25))

		v, err := repo.Get("receiver")
		require.NoError(t, err)
		assert.Equal(t, 7.25, v)
	})

	t.Run("never lowers", func(t *testing.T) {
		require.NoError(t, repo.Advance("receiver", 3))

		v, err := repo.Get("receiver")
		require.NoError(t, err)
		assert.Equal(t, 7.25, v)
	})

	t.Run("names are independent", func(t *testing.T) {
		require.NoError(t, repo.Advance("other", 1))

		v, err := repo.Get("receiver")
		require.NoError(t, err)
		assert.Equal(t, 7.25, v)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete("other"))
		assert.ErrorIs(t, repo.Delete("other"), ErrNotFound)
	})
}

func TestNamedWatermark(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	w := s.WatermarkStore("receiver")

	_, ok, err := w.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, w.Save(ctx, 1700000000.5))

	v, ok, err := w.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1700000000.5, v)
}

func TestNamedWatermark_ReplaceMovesBackwards(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	w := s.WatermarkStore("receiver")

	require.NoError(t, w.Save(ctx, 4102444800))
	require.NoError(t, w.Save(ctx, 1700000000))
	v, _, err := w.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4102444800.0, v, "Save must not lower the watermark")

	require.NoError(t, w.Replace(ctx, 1700000000))
	v, ok, err := w.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1700000000.0, v)

	require.NoError(t, w.Save(ctx, 1700000001))
	v, _, err = w.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1700000001.0, v)
}
