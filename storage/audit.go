package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CallRecord is one attempt against a model backend.
type CallRecord struct {
	ID           int64
	Provider     string
	RequestID    string
	Success      bool
	StatusCode   int
	LatencyMS    int64
	TokensUsed   int
	ErrorMessage string
	CreatedAt    time.Time
}

// FailoverEvent records a switch of the serving backend.
type FailoverEvent struct {
	ID          int64
	From        string
	To          string
	Reason      string
	ContextSize int
	Success     bool
	CreatedAt   time.Time
}

// RecordCall appends rec to the provider call log.
func (s *DB) RecordCall(ctx context.Context, rec CallRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO provider_calls (provider, request_id, success, status_code, latency_ms, tokens_used, error_message, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Provider,
		rec.RequestID,
		boolToInt(rec.Success),
		rec.StatusCode,
		rec.LatencyMS,
		rec.TokensUsed,
		rec.ErrorMessage,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record provider call: %w", err)
	}
	return nil
}

// RecordFailover appends ev to the failover log.
func (s *DB) RecordFailover(ctx context.Context, ev FailoverEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	ev.CreatedAt = ev.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO failover_events (from_provider, to_provider, reason, context_size, success, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		ev.From,
		ev.To,
		ev.Reason,
		ev.ContextSize,
		boolToInt(ev.Success),
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record failover: %w", err)
	}
	return nil
}

// RecentCalls returns the latest call records, newest first.
func (s *DB) RecentCalls(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, provider, request_id, success, status_code, latency_ms, tokens_used, error_message, created_at
	FROM provider_calls
	ORDER BY id DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider calls: %w", err)
	}
	defer rows.Close()

	var records []CallRecord
	for rows.Next() {
		var (
			rec       CallRecord
			requestID sql.NullString
			errMsg    sql.NullString
			success   int
		)
		err := rows.Scan(
			&rec.ID,
			&rec.Provider,
			&requestID,
			&success,
			&rec.StatusCode,
			&rec.LatencyMS,
			&rec.TokensUsed,
			&errMsg,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.RequestID = requestID.String
		rec.ErrorMessage = errMsg.String
		rec.Success = success != 0
		records = append(records, rec)
	}

	return records, rows.Err()
}

// RecentFailovers returns the latest failover events, newest first.
func (s *DB) RecentFailovers(ctx context.Context, limit int) ([]FailoverEvent, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, from_provider, to_provider, reason, context_size, success, created_at
	FROM failover_events
	ORDER BY id DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query failover events: %w", err)
	}
	defer rows.Close()

	var events []FailoverEvent
	for rows.Next() {
		var (
			ev      FailoverEvent
			reason  sql.NullString
			success int
		)
		if err := rows.Scan(&ev.ID, &ev.From, &ev.To, &reason, &ev.ContextSize, &success, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Reason = reason.String
		ev.Success = success != 0
		events = append(events, ev)
	}

	return events, rows.Err()
}
