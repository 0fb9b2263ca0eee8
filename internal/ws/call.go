package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thanhtam3704/joynet/internal/domain"
	"github.com/thanhtam3704/joynet/internal/service"
)

// ErrCallInProgress is returned when a call is started on a conversation that
// already has one. The existing call is left untouched.
var ErrCallInProgress = errors.New("a call is already in progress for this conversation")

// MessagePersister is the persistence collaborator the signaling machine
// writes synthesized system messages through. *service.MessageService
// satisfies it.
type MessagePersister interface {
	CreateCallMessage(ctx context.Context, in service.CallMessageInput) (*domain.Message, error)
	ToResponse(ctx context.Context, m *domain.Message) (*service.MessageResponse, error)
}

// CallRecord is the in-memory state of one active call, keyed by conversation
// id. At most one exists per conversation. All fields are guarded by the
// CallManager mutex; once resolved is set the record has been removed from
// the map and every further transition is a no-op.
type CallRecord struct {
	ID             uuid.UUID
	ConversationID int64
	CallerID       int64
	ParticipantIDs []int64 // invited set, fixed at call start, caller included
	IsGroupCall    bool

	JoinedUserIDs map[int64]struct{} // every user who ever joined
	ActiveUserIDs map[int64]struct{} // users currently in the call

	WasAnswered   bool
	IsCancelled   bool
	StartTime     time.Time
	ConnectedTime *time.Time // first invitee join; duration base

	resolved bool
	timer    Timer
}

func (r *CallRecord) joinedList() []int64 {
	out := make([]int64, 0, len(r.JoinedUserIDs))
	for id := range r.JoinedUserIDs {
		out = append(out, id)
	}
	return out
}

func (r *CallRecord) activeList() []int64 {
	out := make([]int64, 0, len(r.ActiveUserIDs))
	for id := range r.ActiveUserIDs {
		out = append(out, id)
	}
	return out
}

// CallManager drives the call signaling state machine. Transitions are
// decided under one mutex: the correctness-critical checks on WasAnswered,
// IsCancelled and resolved happen synchronously before any broadcast or
// persistence work, so a cancel and a racing ring timeout can never both act.
// Broadcasts and message writes always run on an already-decided outcome,
// outside the lock.
type CallManager struct {
	hub      *Hub
	messages MessagePersister
	clock    Clock
	ringFor  time.Duration
	log      *slog.Logger

	mu    sync.Mutex
	calls map[int64]*CallRecord // conversation id -> active call
}

func NewCallManager(hub *Hub, messages MessagePersister, clock Clock, ringTimeout time.Duration, log *slog.Logger) *CallManager {
	return &CallManager{
		hub:      hub,
		messages: messages,
		clock:    clock,
		ringFor:  ringTimeout,
		log:      log,
		calls:    make(map[int64]*CallRecord),
	}
}

// HasActiveCall reports whether a conversation currently has a CallRecord.
func (m *CallManager) HasActiveCall(conversationID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.calls[conversationID]
	return ok
}

// Start creates the CallRecord, arms the ring timeout and rings every
// invitee. Starting while a call exists for the conversation is rejected and
// leaves the existing record untouched.
func (m *CallManager) Start(caller *Client, conversationID int64, participants []int64, isGroup bool) error {
	withCaller := participants
	if !containsID(participants, caller.UserID) {
		withCaller = append(append([]int64{}, participants...), caller.UserID)
	}

	rec := &CallRecord{
		ID:             uuid.New(),
		ConversationID: conversationID,
		CallerID:       caller.UserID,
		ParticipantIDs: withCaller,
		IsGroupCall:    isGroup,
		JoinedUserIDs:  map[int64]struct{}{caller.UserID: {}},
		ActiveUserIDs:  map[int64]struct{}{caller.UserID: {}},
		StartTime:      m.clock.Now(),
	}

	m.mu.Lock()
	if _, exists := m.calls[conversationID]; exists {
		m.mu.Unlock()
		return ErrCallInProgress
	}
	m.calls[conversationID] = rec
	callID := rec.ID
	rec.timer = m.clock.AfterFunc(m.ringFor, func() {
		m.handleRingTimeout(conversationID, callID)
	})
	m.mu.Unlock()

	m.hub.Join(caller.ID, CallRoom(conversationID))

	m.hub.BroadcastToUsersExcept(rec.ParticipantIDs, caller.UserID, Event{
		Type: EvtCallIncoming,
		Data: map[string]any{
			"conversation_id": conversationID,
			"call_id":         rec.ID.String(),
			"is_group_call":   isGroup,
			"participants":    rec.ParticipantIDs,
			"caller": map[string]any{
				"id":           caller.UserID,
				"username":     caller.Username,
				"display_name": caller.DisplayName,
				"avatar_url":   caller.AvatarURL,
			},
		},
	})
	return nil
}

// Accept handles an invitee answering a ringing call.
func (m *CallManager) Accept(c *Client, conversationID int64) {
	m.join(c, conversationID)
}

// Join handles an invitee joining an already-connected group call.
func (m *CallManager) Join(c *Client, conversationID int64) {
	m.join(c, conversationID)
}

func (m *CallManager) join(c *Client, conversationID int64) {
	m.mu.Lock()
	rec, ok := m.calls[conversationID]
	if !ok || rec.resolved {
		m.mu.Unlock()
		return
	}
	if !containsID(rec.ParticipantIDs, c.UserID) {
		m.mu.Unlock()
		return
	}
	if _, already := rec.ActiveUserIDs[c.UserID]; already {
		m.mu.Unlock()
		return
	}

	prevActive := rec.activeList()
	rec.JoinedUserIDs[c.UserID] = struct{}{}
	rec.ActiveUserIDs[c.UserID] = struct{}{}

	firstJoin := !rec.WasAnswered
	if firstJoin {
		rec.WasAnswered = true
		now := m.clock.Now()
		rec.ConnectedTime = &now
		if rec.timer != nil {
			rec.timer.Stop()
		}
	}
	callerID := rec.CallerID
	joined := rec.joinedList()
	m.mu.Unlock()

	m.hub.Join(c.ID, CallRoom(conversationID))

	// Existing participants and the newcomer are told symmetrically: they
	// see who arrived, the newcomer sees who is already there.
	joinedData := map[string]any{
		"conversation_id": conversationID,
		"user_id":         c.UserID,
		"display_name":    c.DisplayName,
	}
	for _, uid := range prevActive {
		if firstJoin && uid == callerID {
			m.hub.BroadcastToUser(uid, Event{Type: EvtCallAccepted, Data: joinedData})
			continue
		}
		m.hub.BroadcastToUser(uid, Event{Type: EvtCallUserJoined, Data: joinedData})
	}
	m.hub.BroadcastToUser(c.UserID, Event{
		Type: EvtCallJoined,
		Data: map[string]any{
			"conversation_id": conversationID,
			"joined_user_ids": joined,
		},
	})
}

// Reject handles an invitee declining. In a group call this only informs the
// caller and the record persists untouched; in a 1:1 call it is terminal.
func (m *CallManager) Reject(ctx context.Context, c *Client, conversationID int64) {
	m.mu.Lock()
	rec, ok := m.calls[conversationID]
	if !ok || rec.resolved || !containsID(rec.ParticipantIDs, c.UserID) {
		m.mu.Unlock()
		return
	}

	rejectedData := map[string]any{
		"conversation_id": conversationID,
		"user_id":         c.UserID,
		"display_name":    c.DisplayName,
	}

	if rec.IsGroupCall {
		callerID := rec.CallerID
		m.mu.Unlock()
		m.hub.BroadcastToUser(callerID, Event{Type: EvtCallRejected, Data: rejectedData})
		return
	}

	rec.resolved = true
	if rec.timer != nil {
		rec.timer.Stop()
	}
	delete(m.calls, conversationID)
	callerID := rec.CallerID
	participants := rec.ParticipantIDs
	m.mu.Unlock()

	m.hub.DropRoom(CallRoom(conversationID))
	m.hub.BroadcastToUser(callerID, Event{Type: EvtCallRejected, Data: rejectedData})

	// One role-neutral message covers both viewpoints: the caller renders
	// "no answer", the receiver renders "missed call".
	m.persistCallMessage(ctx, service.CallMessageInput{
		ConversationID: conversationID,
		SenderID:       callerID,
		Type:           domain.MessageTypeCallMissed,
	}, participants)
}

// Cancel handles the caller withdrawing a ringing call. IsCancelled is set
// and the timer cleared in the same critical section, so a scheduled timeout
// can never act after a successful cancel.
func (m *CallManager) Cancel(ctx context.Context, c *Client, conversationID int64) {
	m.mu.Lock()
	rec, ok := m.calls[conversationID]
	if !ok || rec.resolved || rec.CallerID != c.UserID {
		m.mu.Unlock()
		return
	}
	rec.IsCancelled = true
	rec.resolved = true
	if rec.timer != nil {
		rec.timer.Stop()
	}
	delete(m.calls, conversationID)
	participants := rec.ParticipantIDs
	m.mu.Unlock()

	m.hub.DropRoom(CallRoom(conversationID))
	m.hub.BroadcastToUsersExcept(participants, c.UserID, Event{
		Type: EvtCallCancelled,
		Data: map[string]any{
			"conversation_id": conversationID,
			"cancelled_by":    c.UserID,
		},
	})

	m.persistCallMessage(ctx, service.CallMessageInput{
		ConversationID: conversationID,
		SenderID:       c.UserID,
		Type:           domain.MessageTypeCallCancelled,
	}, participants)
}

// handleRingTimeout fires when nobody answered within the ring window. The
// call id guards against acting on a newer call that reused the conversation
// slot after this timer was scheduled.
func (m *CallManager) handleRingTimeout(conversationID int64, callID uuid.UUID) {
	m.mu.Lock()
	rec, ok := m.calls[conversationID]
	if !ok || rec.ID != callID || rec.resolved || rec.WasAnswered || rec.IsCancelled {
		m.mu.Unlock()
		return
	}
	rec.resolved = true
	delete(m.calls, conversationID)
	callerID := rec.CallerID
	participants := rec.ParticipantIDs
	m.mu.Unlock()

	m.hub.DropRoom(CallRoom(conversationID))
	// Invitees stop ringing; the caller learns nobody answered.
	m.hub.BroadcastToUsersExcept(participants, callerID, Event{
		Type: EvtCallCancelled,
		Data: map[string]any{
			"conversation_id": conversationID,
			"reason":          "timeout",
		},
	})
	m.hub.BroadcastToUser(callerID, Event{
		Type: EvtCallEnded,
		Data: map[string]any{
			"conversation_id": conversationID,
			"reason":          "no_answer",
		},
	})

	m.persistCallMessage(context.Background(), service.CallMessageInput{
		ConversationID: conversationID,
		SenderID:       callerID,
		Type:           domain.MessageTypeCallMissed,
	}, participants)
}

// End handles a participant hanging up. In a group call with other active
// participants remaining this is a leave; the teardown happens when the last
// active participant hangs up. A 1:1 end always tears down.
func (m *CallManager) End(ctx context.Context, c *Client, conversationID int64, clientDuration int, createSystemMessage bool) {
	m.mu.Lock()
	rec, ok := m.calls[conversationID]
	if !ok || rec.resolved || !containsID(rec.ParticipantIDs, c.UserID) {
		m.mu.Unlock()
		return
	}

	if rec.IsGroupCall {
		// Only a participant who is actually in the call may hang it up. An
		// invitee still ringing cannot end the call for the connected users;
		// declining is what reject is for.
		if _, active := rec.ActiveUserIDs[c.UserID]; !active {
			m.mu.Unlock()
			return
		}
		if len(rec.ActiveUserIDs) > 1 {
			delete(rec.ActiveUserIDs, c.UserID)
			remaining := rec.activeList()
			m.mu.Unlock()

			m.hub.Leave(c.ID, CallRoom(conversationID))
			m.hub.BroadcastToUsers(remaining, Event{
				Type: EvtCallUserLeft,
				Data: map[string]any{
					"conversation_id": conversationID,
					"user_id":         c.UserID,
					"display_name":    c.DisplayName,
				},
			})
			return
		}
	}

	rec.resolved = true
	if rec.timer != nil {
		rec.timer.Stop()
	}
	delete(m.calls, conversationID)

	participants := rec.ParticipantIDs
	joined := rec.joinedList()
	callerID := rec.CallerID
	isGroup := rec.IsGroupCall

	duration := clientDuration
	answered := rec.WasAnswered && rec.ConnectedTime != nil
	if answered {
		duration = int(m.clock.Now().Sub(*rec.ConnectedTime) / time.Second)
	}
	// A group call nobody joined besides the initiator has no meaningful
	// duration and is reported as missed even though an end event arrived.
	missed := !answered || (isGroup && len(joined) < 2)
	m.mu.Unlock()

	m.hub.DropRoom(CallRoom(conversationID))
	m.hub.BroadcastToUsers(participants, Event{
		Type: EvtCallEnded,
		Data: map[string]any{
			"conversation_id": conversationID,
			"ended_by":        c.UserID,
			"duration":        duration,
		},
	})

	if !createSystemMessage {
		return
	}

	if missed {
		m.persistCallMessage(ctx, service.CallMessageInput{
			ConversationID: conversationID,
			SenderID:       callerID,
			Type:           domain.MessageTypeCallMissed,
		}, participants)
		return
	}

	// Summary goes to the users who were actually in the call; invitees who
	// never joined each get their own missed-call entry instead.
	summaryVisibleTo := []int64(nil)
	if isGroup {
		summaryVisibleTo = joined
	}
	m.persistCallMessage(ctx, service.CallMessageInput{
		ConversationID: conversationID,
		SenderID:       callerID,
		Type:           domain.MessageTypeCallEnded,
		Duration:       &duration,
		VisibleTo:      summaryVisibleTo,
	}, participants)

	if isGroup {
		for _, uid := range participants {
			if containsID(joined, uid) {
				continue
			}
			m.persistCallMessage(ctx, service.CallMessageInput{
				ConversationID: conversationID,
				SenderID:       callerID,
				Type:           domain.MessageTypeCallMissed,
				VisibleTo:      []int64{uid},
			}, participants)
		}
	}
}

// ToggleMedia relays a mute/camera toggle to the other call participants.
func (m *CallManager) ToggleMedia(c *Client, conversationID int64, mediaType string, enabled bool) {
	m.mu.Lock()
	rec, ok := m.calls[conversationID]
	if !ok || rec.resolved {
		m.mu.Unlock()
		return
	}
	if _, active := rec.ActiveUserIDs[c.UserID]; !active {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.hub.BroadcastToRoomExcept(CallRoom(conversationID), c.ID, Event{
		Type: EvtCallToggleMedia,
		Data: map[string]any{
			"conversation_id": conversationID,
			"user_id":         c.UserID,
			"media_type":      mediaType,
			"enabled":         enabled,
		},
	})
}

// Relay forwards an SDP offer/answer or ICE candidate point-to-point. The
// payload is never interpreted; a target with no live connection means the
// attempt simply fails to connect for that peer.
func (m *CallManager) Relay(c *Client, eventType string, targetUserID, conversationID int64, payload json.RawMessage) {
	if !m.hub.IsOnline(targetUserID) {
		m.log.Debug("call relay dropped, target offline",
			"event", eventType, "target", targetUserID, "conversation_id", conversationID)
		return
	}
	m.hub.BroadcastToUser(targetUserID, Event{
		Type: eventType,
		Data: map[string]any{
			"conversation_id": conversationID,
			"from":            c.UserID,
			"payload":         payload,
		},
	})
}

// persistCallMessage writes one system message and fans the result out. A
// persistence failure is logged and swallowed; the call teardown that
// triggered it has already completed.
func (m *CallManager) persistCallMessage(ctx context.Context, in service.CallMessageInput, participantIDs []int64) {
	msg, err := m.messages.CreateCallMessage(ctx, in)
	if err != nil {
		m.log.Error("call message write failed",
			"conversation_id", in.ConversationID, "type", in.Type, "err", err)
		return
	}

	var payload any = msg
	if resp, err := m.messages.ToResponse(ctx, msg); err == nil {
		payload = resp
	} else {
		m.log.Error("call message response failed", "message_id", msg.ID, "err", err)
	}

	if len(in.VisibleTo) == 0 {
		m.hub.EmitNewMessage(in.ConversationID, payload)
		m.hub.EmitNewMessageToParticipants(in.ConversationID, payload, participantIDs, 0)
		return
	}
	// Restricted visibility: deliver only to the message's audience.
	ev := Event{
		Type: EvtNewMessageNotification,
		Data: map[string]any{
			"conversation_id": in.ConversationID,
			"message":         payload,
		},
	}
	for _, uid := range in.VisibleTo {
		m.hub.BroadcastToUser(uid, ev)
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
