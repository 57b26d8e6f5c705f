package protocol

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/pulsewire/broker/internal/app"
	"github.com/pulsewire/broker/internal/apperrors"
	"github.com/pulsewire/broker/internal/channel"
	"github.com/pulsewire/broker/internal/connection"
	"github.com/pulsewire/broker/internal/logger"
	"github.com/pulsewire/broker/internal/signature"
	"github.com/pulsewire/broker/internal/transport"
)

// socketIDRand is process-wide; math/rand (not crypto/rand) is the right
// tool here because the id only needs to be practically unique within the
// process, not unguessable.
var (
	socketIDRandMu sync.Mutex
	socketIDRand   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

const socketIDMax = 10_000_000_000

func newSocketID() string {
	socketIDRandMu.Lock()
	a := socketIDRand.Int63n(socketIDMax + 1)
	b := socketIDRand.Int63n(socketIDMax + 1)
	socketIDRandMu.Unlock()
	return fmt.Sprintf("%d.%d", a, b)
}

// Engine drives one application's session state machine: handshake,
// inbound envelope dispatch, and cleanup on disconnect.
type Engine struct {
	App *app.Application
}

func New(a *app.Application) *Engine {
	return &Engine{App: a}
}

// Serve runs the full lifecycle of one connection: handshake, read loop,
// and teardown. It blocks until the transport closes or errors.
func (e *Engine) Serve(tr transport.Transport) {
	log := logger.Protocol()
	socketID := newSocketID()
	conn := connection.New(socketID, tr)
	e.App.Connections.Add(conn)
	log.Info().Str("socket_id", socketID).Str("app_id", e.App.ID).Msg("connection established")

	conn.SendJSON(ConnectionEstablished(socketID))

readLoop:
	for {
		ev, err := conn.Recv()
		if err != nil {
			log.Debug().Err(err).Str("socket_id", socketID).Msg("transport error, terminating session")
			break readLoop
		}
		switch ev.Type {
		case transport.EventData:
			e.handleFrame(conn, ev.Data)
		case transport.EventClose:
			log.Info().Str("socket_id", socketID).Msg("client closed connection")
			break readLoop
		case transport.EventError:
			log.Debug().Err(ev.Err).Str("socket_id", socketID).Msg("transport error event")
			break readLoop
		}
	}

	e.teardown(conn)
}

// teardown unsubscribes conn from every channel it belongs to and removes
// it from the connection registry.
func (e *Engine) teardown(conn *connection.Connection) {
	for _, name := range conn.SubscribedChannels() {
		e.unsubscribe(conn, name)
	}
	e.App.Connections.Remove(conn.SocketID)
	conn.Close("")
	logger.Protocol().Info().Str("socket_id", conn.SocketID).Msg("connection torn down")
}

// handleFrame parses one inbound data frame and dispatches it. A malformed
// frame is logged and the session continues.
func (e *Engine) handleFrame(conn *connection.Connection, data []byte) {
	var envl Envelope
	if err := json.Unmarshal(data, &envl); err != nil {
		logger.Protocol().Warn().Err(err).Str("socket_id", conn.SocketID).Msg("malformed envelope")
		return
	}

	switch {
	case envl.Event == EventSubscribe:
		e.handleSubscribe(conn, envl.Data)
	case envl.Event == EventUnsubscribe:
		e.handleUnsubscribeEnvelope(conn, envl.Data)
	case envl.Event == EventPing:
		conn.SendJSON(Pong())
	case strings.HasPrefix(envl.Event, ClientEventPrefix):
		e.handleClientEvent(conn, envl.Event, envl.Data)
	default:
		// Unknown event names are ignored without erroring the session.
		logger.Protocol().Debug().Str("event", envl.Event).Msg("ignoring unknown inbound event")
	}
}

func (e *Engine) handleSubscribe(conn *connection.Connection, raw json.RawMessage) {
	var req subscribeData
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Protocol().Warn().Err(err).Msg("malformed subscribe payload")
		return
	}

	typ := channel.TypeOf(req.Channel)

	if typ == channel.Private || typ == channel.Presence {
		channelDataStr := ""
		if len(req.ChannelData) > 0 {
			channelDataStr = string(req.ChannelData)
		}
		if !signature.Verify(e.App.Key, e.App.Secret, conn.SocketID, req.Channel, channelDataStr, req.Auth) {
			e.replySubscriptionError(conn, req.Channel, "invalid signature")
			return
		}
	}

	var presenceUser channel.PresenceUser
	if typ == channel.Presence {
		var pcd presenceChannelData
		if err := json.Unmarshal(req.ChannelData, &pcd); err != nil || pcd.UserID == "" {
			e.replySubscriptionError(conn, req.Channel, "invalid channel_data for presence subscribe")
			return
		}
		presenceUser = channel.PresenceUser{UserID: pcd.UserID, UserInfo: pcd.UserInfo}
	}

	ch := e.App.Channels.GetOrCreate(req.Channel)

	if typ == channel.Presence {
		presenceCh := ch.(channel.Presenceable)
		presenceCh.AddPresenceUser(conn, presenceUser)
		conn.SetPresence(req.Channel, presenceUser.UserID, presenceUser.UserInfo)
	}

	if err := ch.Subscribe(conn); err != nil {
		e.replySubscriptionError(conn, req.Channel, err.Error())
		return
	}
	conn.Subscribe(req.Channel)

	e.replySubscriptionSucceeded(conn, ch)

	if typ == channel.Presence {
		e.broadcastMemberAdded(ch.(channel.Presenceable), conn, req.Channel, presenceUser)
	}
}

func (e *Engine) replySubscriptionError(conn *connection.Connection, channelName, reason string) {
	data, _ := json.Marshal(subscriptionErrorData{Channel: channelName, Error: reason})
	conn.SendJSON(Envelope{Event: EventSubscriptionError, Data: data})
}

func (e *Engine) replySubscriptionSucceeded(conn *connection.Connection, ch channel.Channel) {
	var dataPayload interface{} = struct{}{}
	if presenceCh, ok := ch.(channel.Presenceable); ok {
		users := presenceCh.PresenceUsers()
		ids := make([]string, 0, len(users))
		hash := make(map[string]json.RawMessage, len(users))
		for _, u := range users {
			ids = append(ids, u.UserID)
			hash[u.UserID] = u.UserInfo
		}
		dataPayload = struct {
			Presence subscriptionSucceededPresence `json:"presence"`
		}{
			Presence: subscriptionSucceededPresence{Count: len(users), IDs: ids, Hash: hash},
		}
	}
	data, _ := json.Marshal(dataPayload)
	conn.SendJSON(Envelope{Event: EventSubscriptionSucceeded, Channel: ch.Name(), Data: data})
}

func (e *Engine) broadcastMemberAdded(ch channel.Presenceable, joiner *connection.Connection, channelName string, user channel.PresenceUser) {
	data, _ := json.Marshal(memberAddedData{Channel: channelName, UserID: user.UserID, UserInfo: user.UserInfo})
	envl := Envelope{Event: EventMemberAdded, Data: data}
	payload, _ := json.Marshal(envl)
	ch.BroadcastExcept(payload, joiner.SocketID)
}

func (e *Engine) handleUnsubscribeEnvelope(conn *connection.Connection, raw json.RawMessage) {
	var req unsubscribeData
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Protocol().Warn().Err(err).Msg("malformed unsubscribe payload")
		return
	}
	e.unsubscribe(conn, req.Channel)
}

// unsubscribe removes conn from channelName's subscriber set and from
// conn's own subscribed-set; unsubscribing from an unknown channel is a
// no-op.
func (e *Engine) unsubscribe(conn *connection.Connection, channelName string) {
	ch, ok := e.App.Channels.Get(channelName)
	if !ok {
		conn.Unsubscribe(channelName)
		return
	}

	var removedUser channel.PresenceUser
	hadPresence := false
	if _, ok := ch.(channel.Presenceable); ok {
		if userID, userInfo, has := conn.Presence(channelName); has {
			removedUser = channel.PresenceUser{UserID: userID, UserInfo: userInfo}
			hadPresence = true
		}
	}

	ch.Unsubscribe(conn.SocketID)
	conn.Unsubscribe(channelName)
	conn.ClearPresence(channelName)

	if hadPresence {
		if presenceCh, ok := ch.(channel.Presenceable); ok {
			data, _ := json.Marshal(memberRemovedData{Channel: channelName, UserID: removedUser.UserID})
			payload, _ := json.Marshal(Envelope{Event: EventMemberRemoved, Data: data})
			presenceCh.Broadcast(payload)
		}
	}
}

// handleClientEvent re-emits a client-* event to every other subscriber of
// the channel, provided the channel is private or presence.
func (e *Engine) handleClientEvent(conn *connection.Connection, eventName string, raw json.RawMessage) {
	var req clientEventData
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Protocol().Warn().Err(err).Msg("malformed client event payload")
		return
	}

	typ := channel.TypeOf(req.Channel)
	if typ != channel.Private && typ != channel.Presence {
		logger.Protocol().Debug().Str("channel", req.Channel).Msg("client event dropped: not a private/presence channel")
		return
	}

	ch, ok := e.App.Channels.Get(req.Channel)
	if !ok {
		logger.Protocol().Debug().Str("channel", req.Channel).Msg("client event dropped: unknown channel")
		return
	}

	payload, _ := json.Marshal(publicEvent{Event: eventName, Channel: req.Channel, Data: req.Data})
	ch.BroadcastExcept(payload, conn.SocketID) // sender never receives its own client event back
}

// Publish fans an admin-published event out to every named channel. It
// stops at the first channel that doesn't exist, having already fanned
// out to every channel before it.
func (e *Engine) Publish(channels []string, eventName string, data json.RawMessage) error {
	for _, name := range channels {
		ch, ok := e.App.Channels.Get(name)
		if !ok {
			return apperrors.ChannelNotFoundErr(name)
		}
		payload, err := json.Marshal(publicEvent{Event: eventName, Channel: name, Data: data})
		if err != nil {
			return apperrors.Wrap(apperrors.SerializationErr, "failed to encode event", err)
		}
		ch.Broadcast(payload)
	}
	return nil
}
