package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thanhtam3704/joynet/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, is_group, last_message_id, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.IsGroup, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, conversationID, messageID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, messageID, conversationID)
	if err != nil {
		return fmt.Errorf("update last message: %w", err)
	}
	return nil
}
