package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrCheckpointNotFound is returned when a checkpoint id is unknown.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CheckpointRecord is a stored snapshot of one file.
// Existed is false when the file did not exist at snapshot time.
type CheckpointRecord struct {
	ID        string
	FilePath  string
	Content   []byte
	Existed   bool
	CreatedAt time.Time
}

// InsertCheckpoint stores a snapshot.
func (s *DB) InsertCheckpoint(ctx context.Context, rec CheckpointRecord) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO checkpoints (id, file_path, content, existed, created_at)
	VALUES (?, ?, ?, ?, ?)`,
		rec.ID,
		rec.FilePath,
		rec.Content,
		boolToInt(rec.Existed),
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint loads one snapshot by id.
func (s *DB) GetCheckpoint(ctx context.Context, id string) (*CheckpointRecord, error) {
	var (
		rec     CheckpointRecord
		existed int
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT id, file_path, content, existed, created_at
	FROM checkpoints
	WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.FilePath, &rec.Content, &existed, &rec.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	rec.Existed = existed != 0
	return &rec, nil
}

// ListCheckpoints returns snapshots newest first, without their content.
func (s *DB) ListCheckpoints(ctx context.Context, limit int) ([]CheckpointRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, file_path, existed, created_at
	FROM checkpoints
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var records []CheckpointRecord
	for rows.Next() {
		var (
			rec     CheckpointRecord
			existed int
		)
		if err := rows.Scan(&rec.ID, &rec.FilePath, &existed, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Existed = existed != 0
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DeleteCheckpointsBefore removes snapshots created before cutoff and
// returns how many were deleted.
func (s *DB) DeleteCheckpointsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune checkpoints: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return int(n), nil
}
