package domain

import "time"

// User represents an application user.
type User struct {
	ID          int64     `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"display_name"`
	AvatarURL   *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	IsOnline    bool      `db:"is_online" json:"is_online"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	LastSeen    time.Time `db:"last_seen" json:"last_seen"`
}

// Conversation represents a chat conversation (direct or group).
type Conversation struct {
	ID            int64     `db:"id"`
	Name          *string   `db:"name"`
	IsGroup       bool      `db:"is_group"`
	LastMessageID *int64    `db:"last_message_id"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// ConversationParticipant represents the membership of a user in a conversation.
type ConversationParticipant struct {
	UserID         int64      `db:"user_id"`
	ConversationID int64      `db:"conversation_id"`
	LastReadAt     *time.Time `db:"last_read_at"`
	JoinedAt       *time.Time `db:"joined_at"`
}

// Message types stored in messages.message_type. The call_* values are system
// messages synthesized by the call signaling layer; one row serves both
// viewpoints, clients pick caller vs. receiver copy from sender_id.
const (
	MessageTypeText          = "text"
	MessageTypeImage         = "image"
	MessageTypeFile          = "file"
	MessageTypeCallMissed    = "call_missed"
	MessageTypeCallCancelled = "call_cancelled"
	MessageTypeCallEnded     = "call_ended"
)

// Message represents a single chat message.
type Message struct {
	ID             int64     `db:"id"`
	Content        string    `db:"content"` // encrypted at rest
	MessageType    string    `db:"message_type"`
	ConversationID int64     `db:"conversation_id"`
	SenderID       int64     `db:"sender_id"`
	CreatedAt      time.Time `db:"created_at"`
	FilePath       *string   `db:"file_path"`
	FileType       *string   `db:"file_type"`
	CallDuration   *int      `db:"call_duration"` // seconds, call_ended only
	IsDeleted      bool      `db:"is_deleted"`

	// VisibleTo restricts the message to the listed user ids. Empty means
	// visible to every participant of the conversation.
	VisibleTo []int64 `db:"-"`
}
