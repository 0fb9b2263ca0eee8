package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/thanhtam3704/joynet/internal/domain"
)

// PresenceTracker derives durable online/offline state from registry churn.
// The offline transition is debounced: page navigations and transient network
// drops reconnect within seconds, and flapping the durable flag (plus the
// user_offline broadcast) for those would be noise.
//
// Persistence failures are logged and swallowed; presence writes must never
// fail or close a live connection.
type PresenceTracker struct {
	hub   *Hub
	users domain.UserRepository
	clock Clock
	grace time.Duration
	log   *slog.Logger

	mu      sync.Mutex
	pending map[int64]Timer // user id -> armed offline-debounce timer
}

func NewPresenceTracker(hub *Hub, users domain.UserRepository, clock Clock, grace time.Duration, log *slog.Logger) *PresenceTracker {
	return &PresenceTracker{
		hub:     hub,
		users:   users,
		clock:   clock,
		grace:   grace,
		log:     log,
		pending: make(map[int64]Timer),
	}
}

// HandleConnect is called after a connection registers. A pending offline
// timer for the user is cancelled; a first connection flips the durable flag
// and announces the user online.
func (p *PresenceTracker) HandleConnect(userID int64, firstConn bool) {
	p.mu.Lock()
	if t, ok := p.pending[userID]; ok {
		t.Stop()
		delete(p.pending, userID)
	}
	p.mu.Unlock()

	if !firstConn {
		return
	}
	go func() {
		if err := p.users.SetOnlineStatus(context.Background(), userID, true); err != nil {
			p.log.Error("presence: set online failed", "user_id", userID, "err", err)
		}
	}()
	p.hub.BroadcastToUsersExcept(p.hub.OnlineUserIDs(), userID, Event{
		Type: EvtUserOnline,
		Data: map[string]any{"user_id": userID},
	})
}

// HandleDisconnect is called after a user's last connection unregisters. The
// offline transition is armed; a reconnect within the grace window cancels it
// and the user stays online throughout.
func (p *PresenceTracker) HandleDisconnect(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.pending[userID]; ok {
		t.Stop()
	}
	p.pending[userID] = p.clock.AfterFunc(p.grace, func() {
		p.finishOffline(userID)
	})
}

func (p *PresenceTracker) finishOffline(userID int64) {
	p.mu.Lock()
	delete(p.pending, userID)
	p.mu.Unlock()

	// The registry is the authority; a reconnect may have raced the timer.
	if p.hub.IsOnline(userID) {
		return
	}

	if err := p.users.SetOnlineStatus(context.Background(), userID, false); err != nil {
		p.log.Error("presence: set offline failed", "user_id", userID, "err", err)
	}
	p.hub.BroadcastToUsers(p.hub.OnlineUserIDs(), Event{
		Type: EvtUserOffline,
		Data: map[string]any{"user_id": userID},
	})
}

// Touch refreshes last-seen eagerly on an explicit activity ping.
func (p *PresenceTracker) Touch(userID int64) {
	go func() {
		if err := p.users.TouchLastSeen(context.Background(), userID); err != nil {
			p.log.Error("presence: touch last seen failed", "user_id", userID, "err", err)
		}
	}()
}
