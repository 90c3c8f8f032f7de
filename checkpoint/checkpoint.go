// Package checkpoint snapshots files before they are changed so that a
// change can be reverted later.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"tcode/storage"
)

// Retention is how long checkpoints are kept before Prune removes them.
const Retention = 24 * time.Hour

// ErrNotFound is returned by Revert for an unknown checkpoint id.
var ErrNotFound = errors.New("checkpoint not found")

// Store persists checkpoints. *storage.DB implements it.
type Store interface {
	InsertCheckpoint(ctx context.Context, rec storage.CheckpointRecord) error
	GetCheckpoint(ctx context.Context, id string) (*storage.CheckpointRecord, error)
	ListCheckpoints(ctx context.Context, limit int) ([]storage.CheckpointRecord, error)
	DeleteCheckpointsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Checkpoint is a snapshot of a file taken before a mutation.
type Checkpoint struct {
	ID        string
	FilePath  string
	Existed   bool
	CreatedAt time.Time
	// Age is a human-relative rendering of CreatedAt, e.g. "3 minutes ago".
	Age string
}

// Manager creates and restores checkpoints.
type Manager struct {
	store Store
	now   func() time.Time
}

// NewManager returns a manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Create records the current state of path and returns the checkpoint id.
// A path that does not exist is recorded as absent.
func (m *Manager) Create(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	rec := storage.CheckpointRecord{
		ID:        uuid.New().String(),
		FilePath:  abs,
		CreatedAt: m.now(),
	}

	content, err := os.ReadFile(abs)
	switch {
	case err == nil:
		rec.Content = content
		rec.Existed = true
	case errors.Is(err, fs.ErrNotExist):
		rec.Existed = false
	default:
		return "", fmt.Errorf("failed to snapshot %s: %w", abs, err)
	}

	if err := m.store.InsertCheckpoint(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Revert restores the file recorded by checkpoint id. If the file did not
// exist when the checkpoint was taken it is removed. Reverting does not
// create a new checkpoint.
func (m *Manager) Revert(ctx context.Context, id string) (*Checkpoint, error) {
	rec, err := m.store.GetCheckpoint(ctx, id)
	if errors.Is(err, storage.ErrCheckpointNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if rec.Existed {
		if err := os.MkdirAll(filepath.Dir(rec.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to restore %s: %w", rec.FilePath, err)
		}
		if err := os.WriteFile(rec.FilePath, rec.Content, 0644); err != nil {
			return nil, fmt.Errorf("failed to restore %s: %w", rec.FilePath, err)
		}
	} else {
		if err := os.Remove(rec.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove %s: %w", rec.FilePath, err)
		}
	}

	cp := m.fromRecord(*rec)
	return &cp, nil
}

// List returns up to limit checkpoints, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]Checkpoint, error) {
	records, err := m.store.ListCheckpoints(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := make([]Checkpoint, 0, len(records))
	for _, rec := range records {
		result = append(result, m.fromRecord(rec))
	}
	return result, nil
}

// Prune deletes checkpoints older than Retention and returns how many were
// removed.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	return m.store.DeleteCheckpointsBefore(ctx, m.now().Add(-Retention))
}

func (m *Manager) fromRecord(rec storage.CheckpointRecord) Checkpoint {
	return Checkpoint{
		ID:        rec.ID,
		FilePath:  rec.FilePath,
		Existed:   rec.Existed,
		CreatedAt: rec.CreatedAt,
		Age:       humanize.RelTime(rec.CreatedAt, m.now(), "ago", "from now"),
	}
}
