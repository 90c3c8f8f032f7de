package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tcode/model"
)

// ErrConversationNotFound is returned when a conversation id is unknown.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationSummary is a lightweight view of a conversation for listing.
type ConversationSummary struct {
	model.Conversation
	MessageCount int
}

// CreateConversation starts a new conversation with the given title.
func (s *DB) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// GetConversation loads a conversation by id.
func (s *DB) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	return &conv, nil
}

// ListConversations returns conversations, most recently updated first.
func (s *DB) ListConversations(ctx context.Context, limit int) ([]ConversationSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT c.id, c.title, c.created_at, c.updated_at, COUNT(m.seq)
	FROM conversations c
	LEFT JOIN messages m ON m.conversation_id = c.id
	GROUP BY c.id
	ORDER BY c.updated_at DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var result []ConversationSummary
	for rows.Next() {
		var cs ConversationSummary
		if err := rows.Scan(&cs.ID, &cs.Title, &cs.CreatedAt, &cs.UpdatedAt, &cs.MessageCount); err != nil {
			return nil, err
		}
		result = append(result, cs)
	}

	return result, rows.Err()
}

// AddMessage appends msg to its conversation and returns the stored id.
// Messages are append-only; their order is the order of insertion.
func (s *DB) AddMessage(ctx context.Context, msg model.Message) (string, error) {
	if msg.ConversationID == "" {
		return "", errors.New("message has no conversation id")
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()

	var metadata sql.NullString
	if !msg.Metadata.IsEmpty() {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return "", fmt.Errorf("failed to marshal message metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO messages (id, conversation_id, role, content, provider, model, token_count, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.ConversationID,
		string(msg.Role),
		msg.Content,
		msg.Provider,
		msg.Model,
		msg.TokenCount,
		metadata,
		msg.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, msg.CreatedAt, msg.ConversationID)
	if err != nil {
		return "", fmt.Errorf("failed to touch conversation: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return "", fmt.Errorf("%w: %s", ErrConversationNotFound, msg.ConversationID)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit message: %w", err)
	}

	return msg.ID, nil
}

// GetMessages returns up to limit messages of a conversation, newest first.
// A limit of zero or less returns every message.
func (s *DB) GetMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, conversation_id, role, content, provider, model, token_count, metadata, created_at
	FROM messages
	WHERE conversation_id = ?
	ORDER BY seq DESC
	LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// SearchMessages finds non-system messages containing query across all
// conversations, newest first.
func (s *DB) SearchMessages(ctx context.Context, query string, limit int) ([]model.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Message{}, nil
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, conversation_id, role, content, provider, model, token_count, metadata, created_at
	FROM messages
	WHERE role != 'system' AND LOWER(content) LIKE ?
	ORDER BY seq DESC
	LIMIT ?`, "%"+strings.ToLower(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func scanMessage(rows *sql.Rows) (model.Message, error) {
	var (
		msg      model.Message
		role     string
		provider sql.NullString
		modelStr sql.NullString
		metadata sql.NullString
	)

	err := rows.Scan(
		&msg.ID,
		&msg.ConversationID,
		&role,
		&msg.Content,
		&provider,
		&modelStr,
		&msg.TokenCount,
		&metadata,
		&msg.CreatedAt,
	)
	if err != nil {
		return msg, fmt.Errorf("failed to scan message: %w", err)
	}

	msg.Role = model.Role(role)
	msg.Provider = provider.String
	msg.Model = modelStr.String

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &msg.Metadata); err != nil {
			return msg, fmt.Errorf("failed to parse metadata of message %s: %w", msg.ID, err)
		}
	}

	return msg, nil
}
