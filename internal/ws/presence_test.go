package ws_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhtam3704/joynet/internal/ws"
)

const testGrace = 5 * time.Second

func newPresenceFixture() (*ws.Hub, *stubUserRepo, *fakeClock, *ws.PresenceTracker) {
	hub := ws.NewHub(newTestLogger())
	users := newStubUserRepo()
	clock := newFakeClock()
	tracker := ws.NewPresenceTracker(hub, users, clock, testGrace, newTestLogger())
	return hub, users, clock, tracker
}

func TestOfflineAfterGraceWindow(t *testing.T) {
	hub, users, clock, tracker := newPresenceFixture()

	c, _ := connect(hub, 1)
	tracker.HandleConnect(1, true)
	require.Eventually(t, func() bool { return users.writeCount() == 1 }, time.Second, time.Millisecond)

	_, last := hub.Unregister(c.ID)
	require.True(t, last)
	tracker.HandleDisconnect(1)

	clock.Advance(testGrace - time.Second)
	online, _ := users.isOnline(1)
	assert.True(t, online, "must not be marked offline before the grace window")

	clock.Advance(2 * time.Second)
	online, written := users.isOnline(1)
	require.True(t, written, "offline write expected after the grace window")
	assert.False(t, online)
}

func TestReconnectWithinGraceStaysOnline(t *testing.T) {
	hub, users, clock, tracker := newPresenceFixture()

	c, _ := connect(hub, 1)
	tracker.HandleConnect(1, true)

	_, last := hub.Unregister(c.ID)
	require.True(t, last)
	tracker.HandleDisconnect(1)

	clock.Advance(2 * time.Second)
	connect(hub, 1)
	tracker.HandleConnect(1, true)

	clock.Advance(time.Hour)

	online, written := users.isOnline(1)
	if written {
		assert.True(t, online, "reconnect within the window must never flap offline")
	}
}

func TestRacedTimerDefersToRegistry(t *testing.T) {
	hub, users, clock, tracker := newPresenceFixture()

	c, _ := connect(hub, 1)
	tracker.HandleConnect(1, true)
	hub.Unregister(c.ID)
	tracker.HandleDisconnect(1)

	// The user reconnects but the tracker is not told before the timer fires.
	connect(hub, 1)
	clock.Advance(testGrace + time.Second)

	online, written := users.isOnline(1)
	if written {
		assert.True(t, online, "registry says online, timer must not mark offline")
	}
}

func TestDisconnectRearmsTimer(t *testing.T) {
	hub, users, clock, tracker := newPresenceFixture()

	c1, _ := connect(hub, 1)
	tracker.HandleConnect(1, true)
	require.Eventually(t, func() bool { return users.writeCount() == 1 }, time.Second, time.Millisecond)
	hub.Unregister(c1.ID)
	tracker.HandleDisconnect(1)

	clock.Advance(3 * time.Second)
	c2, _ := connect(hub, 1)
	tracker.HandleConnect(1, true)
	require.Eventually(t, func() bool { return users.writeCount() == 2 }, time.Second, time.Millisecond)
	hub.Unregister(c2.ID)
	tracker.HandleDisconnect(1)

	// The first timer's deadline passes but it was replaced.
	clock.Advance(3 * time.Second)
	online, _ := users.isOnline(1)
	assert.True(t, online, "replaced timer must not fire")

	clock.Advance(3 * time.Second)
	online, written := users.isOnline(1)
	require.True(t, written)
	assert.False(t, online)
}

func TestOfflineBroadcastReachesRemainingUsers(t *testing.T) {
	hub, _, clock, tracker := newPresenceFixture()

	c1, _ := connect(hub, 1)
	_, fc2 := connect(hub, 2)
	tracker.HandleConnect(1, true)
	tracker.HandleConnect(2, true)

	hub.Unregister(c1.ID)
	tracker.HandleDisconnect(1)
	clock.Advance(testGrace)

	events := fc2.eventsOfType(ws.EvtUserOffline)
	require.Len(t, events, 1)
	data, ok := events[0].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(1), data["user_id"])
}

func TestOnlineBroadcastSkipsSelf(t *testing.T) {
	hub, _, _, tracker := newPresenceFixture()

	_, fc1 := connect(hub, 1)
	_, fc2 := connect(hub, 2)

	tracker.HandleConnect(2, true)

	assert.Equal(t, 1, fc1.countOfType(ws.EvtUserOnline))
	assert.Zero(t, fc2.countOfType(ws.EvtUserOnline), "the connecting user is not told about itself")
}
