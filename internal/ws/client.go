package ws

import (
	"sync"

	"github.com/segmentio/ksuid"
	"github.com/thanhtam3704/joynet/internal/domain"
)

// Conn is the transport surface the hub writes to. *websocket.Conn satisfies
// it; tests inject recording fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Client is one live authenticated connection. A user may hold several
// clients at once (multi-device).
type Client struct {
	ID          string
	UserID      int64
	Username    string
	DisplayName string
	AvatarURL   *string

	conn    Conn
	writeMu sync.Mutex
}

// NewClient wraps an authenticated transport connection. The connection id is
// a fresh ksuid, opaque to clients.
func NewClient(user *domain.User, conn Conn) *Client {
	return &Client{
		ID:          ksuid.New().String(),
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		conn:        conn,
	}
}

// Send writes one event to the connection. Writes are serialized per client;
// delivery is best-effort and a failed write closes the transport, leaving
// cleanup to the read loop's unregister path.
func (c *Client) Send(ev Event) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteJSON(ev); err != nil {
		c.conn.Close()
	}
}
