package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thanhtam3704/joynet/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

// Create inserts the message and, when VisibleTo is set, its visibility rows
// in one transaction.
func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (content, message_type, conversation_id, sender_id, created_at, file_path, file_type, call_duration, is_deleted)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, ?, ?, ?, ?)
	`,
		m.Content,
		m.MessageType,
		m.ConversationID,
		m.SenderID,
		m.FilePath,
		m.FileType,
		m.CallDuration,
		m.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id

	for _, uid := range m.VisibleTo {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO message_visibility (message_id, user_id) VALUES (?, ?)
		`, id, uid); err != nil {
			return fmt.Errorf("insert message visibility: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

// ListForConversation returns the newest messages visible to the viewer.
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID, viewerID int64, limit int) ([]*domain.Message, error) {
	query := `
		SELECT m.id, m.content, m.message_type, m.conversation_id, m.sender_id, m.created_at, m.file_path, m.file_type, m.call_duration, m.is_deleted
		FROM messages m
		WHERE m.conversation_id = ?
		  AND (
			NOT EXISTS (SELECT 1 FROM message_visibility v WHERE v.message_id = m.id)
			OR EXISTS (SELECT 1 FROM message_visibility v WHERE v.message_id = m.id AND v.user_id = ?)
		  )
		ORDER BY m.created_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(
			&m.ID,
			&m.Content,
			&m.MessageType,
			&m.ConversationID,
			&m.SenderID,
			&m.CreatedAt,
			&m.FilePath,
			&m.FileType,
			&m.CallDuration,
			&m.IsDeleted,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
