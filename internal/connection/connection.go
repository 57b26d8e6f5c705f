// Package connection implements one subscriber session: its identity, its
// outbound delivery queue, its subscribed-channel set and its presence
// identity.
//
// Delivery runs through an unbounded FIFO drained by one writer goroutine,
// so sends are ordered per connection and Send itself never blocks: a
// slow or stalled peer grows its own queue instead of stalling whichever
// goroutine is broadcasting to it.
package connection

import (
	"encoding/json"
	"sync"

	"github.com/pulsewire/broker/internal/logger"
	"github.com/pulsewire/broker/internal/transport"
)

// presenceIdentity is the identity a connection announced on one specific
// presence channel.
type presenceIdentity struct {
	userID   string
	userInfo json.RawMessage
}

// Connection is one client session.
type Connection struct {
	SocketID string

	tr transport.Transport

	mu                 sync.Mutex
	subscribedChannels map[string]struct{}
	presenceByChannel  map[string]presenceIdentity

	outboundMu    sync.Mutex
	outboundCond  *sync.Cond
	outboundQueue [][]byte
	closed        bool

	closeOnce sync.Once
}

// New creates a Connection over tr and spawns its writer goroutine. The
// caller owns tr exclusively from this point on.
func New(socketID string, tr transport.Transport) *Connection {
	c := &Connection{
		SocketID:           socketID,
		tr:                 tr,
		subscribedChannels: make(map[string]struct{}),
		presenceByChannel:  make(map[string]presenceIdentity),
	}
	c.outboundCond = sync.NewCond(&c.outboundMu)
	go c.writeLoop()
	return c
}

// writeLoop is the connection's single writer goroutine: it drains the
// outbound queue in FIFO order and performs the transport write. A write
// failure is logged and the loop continues; only Close or a Recv-side
// transport error ends the session.
func (c *Connection) writeLoop() {
	log := logger.Connection()
	for {
		c.outboundMu.Lock()
		for len(c.outboundQueue) == 0 && !c.closed {
			c.outboundCond.Wait()
		}
		if len(c.outboundQueue) == 0 && c.closed {
			c.outboundMu.Unlock()
			return
		}
		msg := c.outboundQueue[0]
		c.outboundQueue = c.outboundQueue[1:]
		c.outboundMu.Unlock()

		if err := c.tr.Send(msg); err != nil {
			log.Warn().Err(err).Str("socket_id", c.SocketID).Msg("outbound write failed")
		}
	}
}

// Send appends text to the outbound queue and wakes the writer goroutine.
// The queue is unbounded, so Send never blocks on a slow peer; it only
// drops the message, logging the drop, once the connection has closed.
func (c *Connection) Send(text []byte) {
	c.outboundMu.Lock()
	if c.closed {
		c.outboundMu.Unlock()
		logger.Connection().Debug().Str("socket_id", c.SocketID).Msg("dropped send on closed connection")
		return
	}
	c.outboundQueue = append(c.outboundQueue, text)
	c.outboundMu.Unlock()
	c.outboundCond.Signal()
}

// SendJSON marshals v and enqueues it, logging (not returning) any
// marshal error — wire envelopes are constructed internally and are never
// expected to fail to marshal.
func (c *Connection) SendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Connection().Error().Err(err).Msg("failed to marshal outbound envelope")
		return
	}
	c.Send(data)
}

// Subscribe records channelName in the connection's subscribed-channels
// set. It does not touch the channel registry; the protocol engine pairs
// this with the corresponding channel.Subscribe call.
func (c *Connection) Subscribe(channelName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribedChannels[channelName] = struct{}{}
}

// Unsubscribe removes channelName from the connection's subscribed-channels
// set.
func (c *Connection) Unsubscribe(channelName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribedChannels, channelName)
}

// SubscribedChannels returns a snapshot of the channel names this
// connection is currently subscribed to.
func (c *Connection) SubscribedChannels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.subscribedChannels))
	for name := range c.subscribedChannels {
		names = append(names, name)
	}
	return names
}

// SetPresence records this connection's presence identity on channelName,
// scoped independently of any identity announced on other presence
// channels this connection also belongs to.
func (c *Connection) SetPresence(channelName, userID string, userInfo json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presenceByChannel[channelName] = presenceIdentity{userID: userID, userInfo: userInfo}
}

// ClearPresence forgets the presence identity previously set for channelName.
func (c *Connection) ClearPresence(channelName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.presenceByChannel, channelName)
}

// Presence returns the connection's presence identity on channelName, if any.
func (c *Connection) Presence(channelName string) (userID string, userInfo json.RawMessage, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.presenceByChannel[channelName]
	return id.userID, id.userInfo, ok
}

// Close marks the outbound queue closed, so further Sends are dropped and
// the writer goroutine exits once it has worked through whatever was
// already enqueued, then emits a transport close frame carrying reason.
// It does not wait for the writer to finish first. Safe to call more than
// once.
func (c *Connection) Close(reason string) {
	c.closeOnce.Do(func() {
		c.outboundMu.Lock()
		c.closed = true
		c.outboundMu.Unlock()
		c.outboundCond.Broadcast()

		if err := c.tr.Close(reason); err != nil {
			logger.Connection().Debug().Err(err).Str("socket_id", c.SocketID).Msg("transport close error")
		}
	})
}

// Recv yields the next transport event. The protocol engine's read loop
// calls this in a tight loop until it returns a close or error event.
func (c *Connection) Recv() (transport.Event, error) {
	return c.tr.Recv()
}
