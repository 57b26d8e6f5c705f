// Package channel implements the three channel flavors (public, private,
// presence) and their subscriber-set fan-out. Each flavor shares the same
// subscriber bookkeeping; public and private differ only in what the
// protocol layer requires before letting a connection join, and presence
// additionally keeps a presence identity per subscriber.
package channel

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pulsewire/broker/internal/apperrors"
	"github.com/pulsewire/broker/internal/connection"
	"github.com/pulsewire/broker/internal/logger"
)

// Type is the channel flavor, a pure function of the channel name's prefix.
type Type string

const (
	Public   Type = "public"
	Private  Type = "private"
	Presence Type = "presence"
)

// TypeOf returns the Type a channel name implies. No channel may change
// type, because the type never comes from anywhere but the name.
func TypeOf(name string) Type {
	switch {
	case strings.HasPrefix(name, "presence-"):
		return Presence
	case strings.HasPrefix(name, "private-"):
		return Private
	default:
		return Public
	}
}

// PresenceUser is a presence identity scoped to one (channel, connection)
// pair.
type PresenceUser struct {
	UserID   string          `json:"user_id"`
	UserInfo json.RawMessage `json:"user_info"`
}

// Channel is the shared capability set every variant exposes.
type Channel interface {
	Name() string
	Type() Type
	Subscribers() []string
	Subscribe(conn *connection.Connection) error
	Unsubscribe(socketID string)
	Broadcast(message []byte)
	BroadcastExcept(message []byte, excludeSocketID string)
	SendToConnection(socketID string, message []byte) error
	Count() int
}

// Presenceable is the extension capability presence channels add on top of
// Channel.
type Presenceable interface {
	Channel
	AddPresenceUser(conn *connection.Connection, user PresenceUser)
	RemovePresenceUser(socketID string)
	PresenceUsers() []PresenceUser
}

// base holds the subscriber map shared by the public and private variants;
// they differ only in the upstream auth requirement the protocol engine
// enforces before calling Subscribe. The channel itself never re-verifies
// a signature.
type base struct {
	name string
	typ  Type

	mu          sync.RWMutex
	subscribers map[string]*connection.Connection
}

func newBase(name string, typ Type) *base {
	return &base{name: name, typ: typ, subscribers: make(map[string]*connection.Connection)}
}

func (b *base) Name() string { return b.name }
func (b *base) Type() Type   { return b.typ }

func (b *base) Subscribers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	return ids
}

func (b *base) Subscribe(conn *connection.Connection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[conn.SocketID] = conn
	return nil
}

func (b *base) Unsubscribe(socketID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, socketID)
}

// Broadcast snapshots the subscriber set under a read lock, releases the
// lock, then enqueues on each recipient. The subscriber-set lock is never
// held across a per-recipient enqueue, so a slow connection can't stall
// every other subscriber's delivery.
func (b *base) Broadcast(message []byte) {
	b.mu.RLock()
	recipients := make([]*connection.Connection, 0, len(b.subscribers))
	for _, conn := range b.subscribers {
		recipients = append(recipients, conn)
	}
	b.mu.RUnlock()

	log := logger.Channel()
	for _, conn := range recipients {
		conn.Send(message)
	}
	log.Debug().Str("channel", b.name).Int("recipients", len(recipients)).Msg("broadcast enqueued")
}

// BroadcastExcept is Broadcast with one socket-id skipped — used to
// re-emit a client event or a member-added notice to everyone but the
// connection that triggered it, under the same single-RLock-snapshot
// discipline as Broadcast.
func (b *base) BroadcastExcept(message []byte, excludeSocketID string) {
	b.mu.RLock()
	recipients := make([]*connection.Connection, 0, len(b.subscribers))
	for id, conn := range b.subscribers {
		if id == excludeSocketID {
			continue
		}
		recipients = append(recipients, conn)
	}
	b.mu.RUnlock()

	for _, conn := range recipients {
		conn.Send(message)
	}
}

func (b *base) SendToConnection(socketID string, message []byte) error {
	b.mu.RLock()
	conn, ok := b.subscribers[socketID]
	b.mu.RUnlock()
	if !ok {
		return apperrors.NotFoundErr("connection " + socketID + " on channel " + b.name)
	}
	conn.Send(message)
	return nil
}

func (b *base) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// PublicChannel requires no subscription auth.
type PublicChannel struct{ *base }

func NewPublic(name string) *PublicChannel {
	return &PublicChannel{base: newBase(name, Public)}
}

// PrivateChannel requires a valid subscription signature, enforced by the
// protocol engine before Subscribe is ever called.
type PrivateChannel struct{ *base }

func NewPrivate(name string) *PrivateChannel {
	return &PrivateChannel{base: newBase(name, Private)}
}

// PresenceChannel additionally tracks a PresenceUser per subscriber.
type PresenceChannel struct {
	*base
	presenceMu sync.RWMutex
	presence   map[string]PresenceUser
}

func NewPresence(name string) *PresenceChannel {
	return &PresenceChannel{
		base:     newBase(name, Presence),
		presence: make(map[string]PresenceUser),
	}
}

// AddPresenceUser is idempotent by socket-id: a second call for the same
// connection replaces its prior identity.
func (p *PresenceChannel) AddPresenceUser(conn *connection.Connection, user PresenceUser) {
	p.presenceMu.Lock()
	p.presence[conn.SocketID] = user
	p.presenceMu.Unlock()
}

func (p *PresenceChannel) RemovePresenceUser(socketID string) {
	p.presenceMu.Lock()
	delete(p.presence, socketID)
	p.presenceMu.Unlock()
}

func (p *PresenceChannel) PresenceUsers() []PresenceUser {
	p.presenceMu.RLock()
	defer p.presenceMu.RUnlock()
	users := make([]PresenceUser, 0, len(p.presence))
	for _, u := range p.presence {
		users = append(users, u)
	}
	return users
}

// Unsubscribe additionally drops any presence identity for socketID, so the
// two maps (subscribers, presence) never drift apart.
func (p *PresenceChannel) Unsubscribe(socketID string) {
	p.base.Unsubscribe(socketID)
	p.RemovePresenceUser(socketID)
}

var (
	_ Channel      = (*PublicChannel)(nil)
	_ Channel      = (*PrivateChannel)(nil)
	_ Presenceable = (*PresenceChannel)(nil)
)
