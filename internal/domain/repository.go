package domain

import (
	"context"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	ListOnline(ctx context.Context) ([]*User, error)
	SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error
	TouchLastSeen(ctx context.Context, id int64) error
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	UpdateLastMessage(ctx context.Context, conversationID, messageID int64) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	ListForConversation(ctx context.Context, conversationID, viewerID int64, limit int) ([]*Message, error)
}

// ParticipantRepository defines operations around conversation participants.
type ParticipantRepository interface {
	ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
}
