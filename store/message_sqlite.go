package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"example.com/campus-chat/models"
)

type SQLiteMessageStore struct {
	db *sql.DB
}

func NewSQLiteMessageStore(db *sql.DB) *SQLiteMessageStore {
	return &SQLiteMessageStore{db: db}
}

func (s *SQLiteMessageStore) Append(ctx context.Context, input MessageCreateInput) (*models.Message, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if input.SentAt.IsZero() {
		input.SentAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (room_id, sender_id, sender_name, body, sent_at)
		VALUES (@room_id, @sender_id, @sender_name, @body, @sent_at)`,
		sql.Named("room_id", input.RoomID),
		sql.Named("sender_id", input.SenderID),
		sql.Named("sender_name", input.SenderName),
		sql.Named("body", input.Body),
		sql.Named("sent_at", input.SentAt))

	if err != nil {
		return nil, fmt.Errorf("ExecContext(insert messages): %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("LastInsertId: %w", err)
	}

	return &models.Message{
		ID:         int(id),
		RoomID:     input.RoomID,
		SenderID:   input.SenderID,
		SenderName: input.SenderName,
		Body:       input.Body,
		SentAt:     input.SentAt,
	}, nil
}

func (s *SQLiteMessageStore) History(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	// Sorted ascending with the limit applied at the query level: a full
	// room returns the oldest `limit` messages.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, sender_id, sender_name, body, sent_at FROM messages
		WHERE room_id = @room_id ORDER BY sent_at ASC, id ASC LIMIT @limit`,
		sql.Named("room_id", roomID),
		sql.Named("limit", limit))

	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0, limit)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &m.Body, &m.SentAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return messages, nil
}
