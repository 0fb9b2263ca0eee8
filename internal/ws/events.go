package ws

import "encoding/json"

// Inbound event names (client -> server).
const (
	EvtJoinConversation  = "join_conversation"
	EvtLeaveConversation = "leave_conversation"
	EvtTypingStart       = "typing_start"
	EvtTypingStop        = "typing_stop"
	EvtUserActivity      = "user_activity"

	EvtCallStart       = "video-call:start"
	EvtCallAccept      = "video-call:accept"
	EvtCallJoin        = "video-call:join"
	EvtCallReject      = "video-call:reject"
	EvtCallCancel      = "video-call:cancel"
	EvtCallEnd         = "video-call:end"
	EvtCallToggleMedia = "video-call:toggle-media"
	EvtCallOffer       = "video-call:offer"
	EvtCallAnswer      = "video-call:answer"
	EvtCallICE         = "video-call:ice-candidate"
)

// Outbound event names (server -> client).
const (
	EvtNewNotification        = "new_notification"
	EvtNewMessage             = "newMessage"
	EvtNewMessageNotification = "newMessageNotification"
	EvtConversationUpdate     = "conversationUpdate"
	EvtUserTyping             = "user_typing"
	EvtUserStopTyping         = "user_stop_typing"
	EvtMessagesRead           = "messagesRead"
	EvtMessageReaction        = "messageReactionUpdated"
	EvtUserOnline             = "user_online"
	EvtUserOffline            = "user_offline"
	EvtError                  = "error"

	EvtGroupCreated  = "groupCreated"
	EvtMemberAdded   = "memberAdded"
	EvtMemberRemoved = "memberRemoved"
	EvtGroupUpdated  = "groupUpdated"

	EvtCallIncoming   = "video-call:incoming"
	EvtCallAccepted   = "video-call:accepted"
	EvtCallJoined     = "video-call:joined"
	EvtCallCancelled  = "video-call:cancelled"
	EvtCallRejected   = "video-call:rejected"
	EvtCallEnded      = "video-call:ended"
	EvtCallUserJoined = "video-call:user-joined"
	EvtCallUserLeft   = "video-call:user-left"
)

// Event is the outbound wire envelope.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// InboundEvent is the single typed envelope every client event decodes into.
// Which fields are meaningful depends on Type; the handler's dispatch switch
// is the one place interpreting them.
type InboundEvent struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id,omitempty"`

	// video-call:start
	Participants []int64 `json:"participants,omitempty"`
	IsGroupCall  bool    `json:"is_group_call,omitempty"`

	// video-call:offer / answer / ice-candidate
	To      int64           `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// video-call:toggle-media
	MediaType string `json:"media_type,omitempty"`
	Enabled   bool   `json:"enabled,omitempty"`

	// video-call:end
	Duration            int  `json:"duration,omitempty"`
	CreateSystemMessage bool `json:"create_system_message,omitempty"`
}
