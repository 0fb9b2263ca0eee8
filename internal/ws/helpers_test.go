package ws_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/thanhtam3704/joynet/internal/domain"
	"github.com/thanhtam3704/joynet/internal/service"
	"github.com/thanhtam3704/joynet/internal/ws"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// --- fake transport ---

type fakeConn struct {
	mu     sync.Mutex
	events []ws.Event
	closed bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	if ev, ok := v.(ws.Event); ok {
		c.events = append(c.events, ev)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) eventsOfType(t string) []ws.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ws.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) countOfType(t string) int {
	return len(c.eventsOfType(t))
}

func testUser(id int64) *domain.User {
	return &domain.User{
		ID:          id,
		Username:    fmt.Sprintf("user%d", id),
		DisplayName: fmt.Sprintf("User %d", id),
		IsActive:    true,
	}
}

// connect registers a fresh client for the user and returns it with its
// recording transport.
func connect(hub *ws.Hub, userID int64) (*ws.Client, *fakeConn) {
	fc := &fakeConn{}
	c := ws.NewClient(testUser(userID), fc)
	hub.Register(c)
	return c, fc
}

// --- fake clock ---

type fakeTimer struct {
	clk      *fakeClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) ws.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clk: c, deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and runs every due, unstopped timer.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.deadline.After(c.now) {
			t.fired = true
			due = append(due, t.fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range due {
		fn()
	}
}

// --- stub user repository ---

type stubUserRepo struct {
	mu           sync.Mutex
	onlineStatus map[int64]bool
	statusWrites []int64
	touched      []int64
	failWrites   bool
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{onlineStatus: make(map[int64]bool)}
}

func (r *stubUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	return &domain.User{
		ID:          id,
		Username:    fmt.Sprintf("user%d", id),
		DisplayName: fmt.Sprintf("User %d", id),
		IsActive:    true,
	}, nil
}

func (r *stubUserRepo) ListOnline(_ context.Context) ([]*domain.User, error) {
	return nil, nil
}

func (r *stubUserRepo) SetOnlineStatus(_ context.Context, id int64, isOnline bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return errors.New("write failed")
	}
	r.onlineStatus[id] = isOnline
	r.statusWrites = append(r.statusWrites, id)
	return nil
}

func (r *stubUserRepo) TouchLastSeen(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return errors.New("write failed")
	}
	r.touched = append(r.touched, id)
	return nil
}

func (r *stubUserRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statusWrites)
}

func (r *stubUserRepo) isOnline(id int64) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.onlineStatus[id]
	return v, ok
}

// --- fake message persister ---

type fakePersister struct {
	mu      sync.Mutex
	created []service.CallMessageInput
	nextID  int64
	err     error
}

func (p *fakePersister) CreateCallMessage(_ context.Context, in service.CallMessageInput) (*domain.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.nextID++
	p.created = append(p.created, in)
	return &domain.Message{
		ID:             p.nextID,
		MessageType:    in.Type,
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		CallDuration:   in.Duration,
		VisibleTo:      in.VisibleTo,
	}, nil
}

func (p *fakePersister) ToResponse(_ context.Context, m *domain.Message) (*service.MessageResponse, error) {
	return &service.MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		MessageType:    m.MessageType,
		SenderID:       m.SenderID,
		CallDuration:   m.CallDuration,
		VisibleTo:      m.VisibleTo,
	}, nil
}

func (p *fakePersister) messagesOfType(t string) []service.CallMessageInput {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []service.CallMessageInput
	for _, in := range p.created {
		if in.Type == t {
			out = append(out, in)
		}
	}
	return out
}

func (p *fakePersister) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.created)
}
