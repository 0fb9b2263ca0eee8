package ws

// Route-facing broadcast API. The REST layer calls these after mutating
// durable state; delivery is best-effort and a target with no live connection
// is simply skipped.

// EmitNewNotification pushes a notification to one user's personal room.
func (h *Hub) EmitNewNotification(userID int64, notification any) {
	h.BroadcastToRoom(UserRoom(userID), Event{Type: EvtNewNotification, Data: notification})
}

// EmitNewMessage pushes a message to everyone currently viewing the
// conversation.
func (h *Hub) EmitNewMessage(conversationID int64, message any) {
	h.BroadcastToRoom(ConversationRoom(conversationID), Event{
		Type: EvtNewMessage,
		Data: map[string]any{
			"conversation_id": conversationID,
			"message":         message,
		},
	})
}

// EmitNewMessageToParticipants pushes an unread-count notification to each
// participant's personal room, skipping the sender.
func (h *Hub) EmitNewMessageToParticipants(conversationID int64, message any, participantIDs []int64, senderID int64) {
	ev := Event{
		Type: EvtNewMessageNotification,
		Data: map[string]any{
			"conversation_id": conversationID,
			"message":         message,
		},
	}
	for _, pid := range participantIDs {
		if pid == senderID {
			continue
		}
		h.BroadcastToRoom(UserRoom(pid), ev)
	}
}

// EmitConversationUpdate notifies each participant that conversation metadata
// changed.
func (h *Hub) EmitConversationUpdate(conversation any, participantIDs []int64) {
	h.BroadcastToUsers(participantIDs, Event{Type: EvtConversationUpdate, Data: conversation})
}

// EmitMessagesRead notifies participants that a user caught up on a
// conversation.
func (h *Hub) EmitMessagesRead(conversationID, readerID int64, participantIDs []int64) {
	h.BroadcastToUsers(participantIDs, Event{
		Type: EvtMessagesRead,
		Data: map[string]any{
			"conversation_id": conversationID,
			"user_id":         readerID,
		},
	})
}

// EmitMessageReactionUpdated fans a reaction change out to the conversation.
func (h *Hub) EmitMessageReactionUpdated(conversationID int64, payload any) {
	h.BroadcastToRoom(ConversationRoom(conversationID), Event{Type: EvtMessageReaction, Data: payload})
}

// EmitGroupCreated notifies every initial member of a new group.
func (h *Hub) EmitGroupCreated(group any, participantIDs []int64) {
	h.BroadcastToUsers(participantIDs, Event{Type: EvtGroupCreated, Data: group})
}

// EmitMemberAdded notifies all members (existing and new) of an addition.
func (h *Hub) EmitMemberAdded(conversationID int64, newMemberIDs, allParticipantIDs []int64) {
	h.BroadcastToUsers(allParticipantIDs, Event{
		Type: EvtMemberAdded,
		Data: map[string]any{
			"conversation_id":  conversationID,
			"new_member_ids":   newMemberIDs,
			"all_participants": allParticipantIDs,
		},
	})
}

// EmitMemberRemoved notifies the removed member and the remaining ones.
func (h *Hub) EmitMemberRemoved(conversationID, removedMemberID int64, remainingParticipantIDs []int64) {
	h.BroadcastToUser(removedMemberID, Event{
		Type: EvtMemberRemoved,
		Data: map[string]any{
			"conversation_id":   conversationID,
			"removed_member_id": removedMemberID,
		},
	})
	h.BroadcastToUsers(remainingParticipantIDs, Event{
		Type: EvtMemberRemoved,
		Data: map[string]any{
			"conversation_id":        conversationID,
			"removed_member_id":      removedMemberID,
			"remaining_participants": remainingParticipantIDs,
		},
	})
}

// EmitGroupUpdated notifies every member of changed group metadata.
func (h *Hub) EmitGroupUpdated(group any, participantIDs []int64) {
	h.BroadcastToUsers(participantIDs, Event{Type: EvtGroupUpdated, Data: group})
}
