package hub

import (
	"github.com/uitrace/gateway/internal/gateway/domain"
	"github.com/uitrace/gateway/pkg/idx"
)

// sendBuffer is how many undelivered events a connection may queue
// before the hub gives up on it. Delivery is best-effort; a consumer
// that can't keep up gets dropped rather than stalling publishers.
const sendBuffer = 64

// Conn is one live subscriber registered with the hub. The hub owns it
// for its whole lifetime: created by Connect, destroyed by Disconnect
// (or by the hub itself when the send buffer overflows).
type Conn struct {
	id   string
	send chan domain.Event

	// session and closed are guarded by the owning hub's mutex.
	session string
	closed  bool
}

func newConn() *Conn {
	return &Conn{
		id:   idx.New().String(),
		send: make(chan domain.Event, sendBuffer),
	}
}

// ID returns the connection's identifier, used for logging only.
func (c *Conn) ID() string { return c.id }

// Events is the delivery channel the transport writer drains. It is
// closed exactly once, when the hub destroys the connection.
func (c *Conn) Events() <-chan domain.Event { return c.send }
