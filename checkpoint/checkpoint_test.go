package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcode/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewManager(db)
}

func TestRevertNonexistentFileStaysAbsent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "ghost.txt")

	id, err := m.Create(ctx, path)
	require.NoError(t, err)

	_, err = m.Revert(ctx, id)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "path should not exist after revert, stat err: %v", err)
}

func TestRevertRemovesNewlyWrittenFile(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "new.txt")

	id, err := m.Create(ctx, path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("generated"), 0644))

	cp, err := m.Revert(ctx, id)
	require.NoError(t, err)
	assert.False(t, cp.Existed)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRevertRestoresContent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0644))

	id, err := m.Create(ctx, path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("broken"), 0644))

	_, err = m.Revert(ctx, id)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))

	// Reverting is not itself checkpointed.
	list, err := m.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRevertUnknownID(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Revert(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndPrune(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	dir := t.TempDir()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now.Add(-30 * time.Hour)
	m.now = func() time.Time { return clock }

	oldID, err := m.Create(ctx, filepath.Join(dir, "old.txt"))
	require.NoError(t, err)

	clock = now.Add(-5 * time.Minute)
	newID, err := m.Create(ctx, filepath.Join(dir, "new.txt"))
	require.NoError(t, err)

	clock = now
	list, err := m.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newID, list[0].ID)
	assert.Equal(t, "5 minutes ago", list[0].Age)
	assert.Equal(t, oldID, list[1].ID)

	n, err := m.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err = m.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, newID, list[0].ID)
}
