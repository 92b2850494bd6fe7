package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tkbcal/internal/model"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_KV(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "k", []byte("v1")))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, s.Put(ctx, "k", []byte("v2")))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got, "Put should replace the previous value")

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "k"), "Deleting a missing key should not fail")
}

func TestStore_Snapshot(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	_, err := s.LoadSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	snap := model.Snapshot{
		FileName:   "tkb_hk1.xlsx",
		UploadedAt: time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC),
		Rows: []model.RawRow{
			model.NewRawRow("Thứ", "2", "Mã học phần", "IT001", "Thời gian học", "01/01/2024-15/01/2024"),
			model.NewRawRow("Thứ", float64(3), "Mã học phần", "IT002", "Thời gian học", "02/01/2024-16/01/2024"),
		},
	}
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	loaded, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.FileName, loaded.FileName)
	assert.True(t, snap.UploadedAt.Equal(loaded.UploadedAt))
	assert.Equal(t, snap.Rows, loaded.Rows, "column order and values should survive a round trip")

	require.NoError(t, s.ClearSnapshot(ctx))
	_, err = s.LoadSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_RunsMigrationsOnce(t *testing.T) {
	path := t.TempDir() + "/tkbcal.db"

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err, "Reopening should not re-apply migrations")
	defer s.Close()

	got, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
