package ws

import (
	"fmt"
	"log/slog"
	"sync"
)

// Room id helpers. Personal rooms are joined automatically at registration;
// conversation and call rooms are joined and left by explicit client action.
func UserRoom(userID int64) string         { return fmt.Sprintf("user:%d", userID) }
func ConversationRoom(convID int64) string { return fmt.Sprintf("conversation:%d", convID) }
func CallRoom(convID int64) string         { return fmt.Sprintf("call:%d", convID) }

// Hub is the connection registry, room membership table and event
// broadcaster. It is the single authority for "is user X reachable right
// now"; every broadcast resolves its targets against the live maps at call
// time, so delivery is at-most-once with no queueing for absent targets.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*Client            // connection id -> client
	userConns map[int64]map[string]*Client  // user id -> connection id -> client
	rooms     map[string]map[string]*Client // room id -> connection id -> client

	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		userConns: make(map[int64]map[string]*Client),
		rooms:     make(map[string]map[string]*Client),
		log:       log,
	}
}

// Register adds the client to the forward and inverse maps and auto-joins its
// personal room. Idempotent. Returns true when this is the user's first live
// connection.
func (h *Hub) Register(c *Client) (first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; ok {
		return false
	}
	h.clients[c.ID] = c

	conns := h.userConns[c.UserID]
	first = len(conns) == 0
	if conns == nil {
		conns = make(map[string]*Client)
		h.userConns[c.UserID] = conns
	}
	conns[c.ID] = c

	h.joinLocked(c, UserRoom(c.UserID))
	return first
}

// Unregister removes the connection from both maps and every room it joined.
// Returns the owning user id and whether that user now has no connections
// left (the signal for the presence offline debounce).
func (h *Hub) Unregister(connID string) (userID int64, last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return 0, false
	}
	delete(h.clients, connID)

	if conns, ok := h.userConns[c.UserID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.userConns, c.UserID)
			last = true
		}
	}

	for roomID, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	return c.UserID, last
}

// Join adds a connection to a room. Idempotent; unknown connections are
// ignored.
func (h *Hub) Join(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	h.joinLocked(c, roomID)
}

// Leave removes a connection from a room. Idempotent.
func (h *Hub) Leave(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// DropRoom removes a room and all its memberships, used when a call is torn
// down so stale membership cannot leak into the conversation's next call.
func (h *Hub) DropRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, roomID)
}

func (h *Hub) joinLocked(c *Client, roomID string) {
	members := h.rooms[roomID]
	if members == nil {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[c.ID] = c
}

// ConnectionsFor returns the live clients of a user.
func (h *Hub) ConnectionsFor(userID int64) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.userConns[userID]
	out := make([]*Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns[userID]) > 0
}

// OnlineUserIDs returns every user id with at least one live connection.
func (h *Hub) OnlineUserIDs() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]int64, 0, len(h.userConns))
	for id := range h.userConns {
		ids = append(ids, id)
	}
	return ids
}

// BroadcastToRoom delivers the event to every connection currently in the
// room. Fire-and-forget: targets resolved at invocation time, no retries.
func (h *Hub) BroadcastToRoom(roomID string, ev Event) {
	for _, c := range h.roomMembers(roomID, "") {
		c.Send(ev)
	}
}

// BroadcastToRoomExcept delivers to the room, skipping one connection
// (typically the sender's own).
func (h *Hub) BroadcastToRoomExcept(roomID, exceptConnID string, ev Event) {
	for _, c := range h.roomMembers(roomID, exceptConnID) {
		c.Send(ev)
	}
}

// BroadcastToUser delivers to all of the user's connections.
func (h *Hub) BroadcastToUser(userID int64, ev Event) {
	for _, c := range h.ConnectionsFor(userID) {
		c.Send(ev)
	}
}

// BroadcastToUsers delivers to all connections of each listed user.
func (h *Hub) BroadcastToUsers(userIDs []int64, ev Event) {
	for _, uid := range userIDs {
		h.BroadcastToUser(uid, ev)
	}
}

// BroadcastToUsersExcept delivers to every listed user but the excluded one.
// Used by the signaling machine to notify every invitee except the actor.
func (h *Hub) BroadcastToUsersExcept(userIDs []int64, exceptUserID int64, ev Event) {
	for _, uid := range userIDs {
		if uid == exceptUserID {
			continue
		}
		h.BroadcastToUser(uid, ev)
	}
}

func (h *Hub) roomMembers(roomID, exceptConnID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[roomID]
	out := make([]*Client, 0, len(members))
	for id, c := range members {
		if id == exceptConnID {
			continue
		}
		out = append(out, c)
	}
	return out
}
