package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thanhtam3704/joynet/internal/domain"
	"github.com/thanhtam3704/joynet/internal/security"
)

// ErrNotParticipant is returned when the sender does not belong to the
// conversation; callers surface it as protocol feedback.
var ErrNotParticipant = errors.New("not a participant of this conversation")

type MessageService struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	messages      domain.MessageRepository
	users         domain.UserRepository
	encryptor     *security.Encryptor

	MaxMessagesPerConversation int
}

func NewMessageService(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	encryptor *security.Encryptor,
	maxMessages int,
) *MessageService {
	return &MessageService{
		conversations:              conversations,
		participants:               participants,
		messages:                   messages,
		users:                      users,
		encryptor:                  encryptor,
		MaxMessagesPerConversation: maxMessages,
	}
}

type MessageCreateInput struct {
	ConversationID int64
	Content        string
	FilePath       *string
	FileType       *string
	VisibleTo      []int64
}

// CreateMessage persists a user-authored message. Content is encrypted at
// rest; the conversation's last-message pointer is advanced.
func (s *MessageService) CreateMessage(
	ctx context.Context,
	in MessageCreateInput,
	senderID int64,
) (*domain.Message, error) {
	if len([]rune(in.Content)) > 5000 {
		return nil, errors.New("message content exceeds 5000 characters")
	}
	if in.Content == "" && (in.FilePath == nil || *in.FilePath == "") {
		return nil, errors.New("message content cannot be empty")
	}

	if _, err := s.conversations.GetByID(ctx, in.ConversationID); err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	isParticipant, err := s.participants.IsParticipant(ctx, in.ConversationID, senderID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return nil, ErrNotParticipant
	}

	encrypted, err := s.encryptor.Encrypt(in.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	msg := &domain.Message{
		Content:        encrypted,
		MessageType:    domain.MessageTypeText,
		ConversationID: in.ConversationID,
		SenderID:       senderID,
		FilePath:       in.FilePath,
		FileType:       in.FileType,
		VisibleTo:      in.VisibleTo,
	}
	if in.FilePath != nil && *in.FilePath != "" {
		msg.MessageType = domain.MessageTypeFile
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.conversations.UpdateLastMessage(ctx, in.ConversationID, msg.ID); err != nil {
		return nil, fmt.Errorf("update last message: %w", err)
	}

	return msg, nil
}

type CallMessageInput struct {
	ConversationID int64
	SenderID       int64 // the caller
	Type           string
	Duration       *int // seconds, call_ended only
	VisibleTo      []int64
}

// CreateCallMessage persists one system message summarizing a call outcome.
// The message type is the canonical event code; clients render caller and
// receiver copy from sender_id, so a single row never diverges into two
// history entries.
func (s *MessageService) CreateCallMessage(ctx context.Context, in CallMessageInput) (*domain.Message, error) {
	switch in.Type {
	case domain.MessageTypeCallMissed, domain.MessageTypeCallCancelled, domain.MessageTypeCallEnded:
	default:
		return nil, fmt.Errorf("unsupported call message type %q", in.Type)
	}

	encrypted, err := s.encryptor.Encrypt("Video call")
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	msg := &domain.Message{
		Content:        encrypted,
		MessageType:    in.Type,
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		CallDuration:   in.Duration,
		VisibleTo:      in.VisibleTo,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.conversations.UpdateLastMessage(ctx, in.ConversationID, msg.ID); err != nil {
		return nil, fmt.Errorf("update last message: %w", err)
	}
	return msg, nil
}

// GetParticipantIDs returns the user ids participating in a conversation.
func (s *MessageService) GetParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	return s.participants.ListParticipantIDs(ctx, conversationID)
}

type MessageResponse struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	SenderID       int64     `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	SenderName     string    `json:"sender_name"`
	CreatedAt      time.Time `json:"created_at"`
	FilePath       *string   `json:"file_path,omitempty"`
	FileType       *string   `json:"file_type,omitempty"`
	CallDuration   *int      `json:"call_duration,omitempty"`
	IsDeleted      bool      `json:"is_deleted"`
	VisibleTo      []int64   `json:"visible_to,omitempty"`
}

// ToResponse decrypts the message and attaches sender identity for clients.
func (s *MessageService) ToResponse(ctx context.Context, m *domain.Message) (*MessageResponse, error) {
	content, err := s.encryptor.Decrypt(m.Content)
	if err != nil {
		return nil, fmt.Errorf("decrypt content: %w", err)
	}
	sender, err := s.users.GetByID(ctx, m.SenderID)
	if err != nil {
		return nil, fmt.Errorf("get sender: %w", err)
	}
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Content:        content,
		MessageType:    m.MessageType,
		SenderID:       m.SenderID,
		SenderUsername: sender.Username,
		SenderName:     sender.DisplayName,
		CreatedAt:      m.CreatedAt,
		FilePath:       m.FilePath,
		FileType:       m.FileType,
		CallDuration:   m.CallDuration,
		IsDeleted:      m.IsDeleted,
		VisibleTo:      m.VisibleTo,
	}, nil
}
