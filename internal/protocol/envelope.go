// Package protocol implements the wire-level client protocol: the framed
// JSON envelopes exchanged over the transport and the session state
// machine that drives them.
package protocol

import "encoding/json"

// Envelope is the generic shape every inbound and outbound message shares:
// a string event selector plus an event-dependent data payload.
type Envelope struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Server -> client event names.
const (
	EventConnectionEstablished = "pusher:connection_established"
	EventPong                  = "pusher:pong"
	EventError                 = "pusher:error"
	EventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
	EventMemberAdded           = "pusher_internal:member_added"
	EventMemberRemoved         = "pusher_internal:member_removed"
	EventSubscriptionError     = "pusher:subscription_error"
)

// Client -> server event names.
const (
	EventSubscribe   = "pusher:subscribe"
	EventUnsubscribe = "pusher:unsubscribe"
	EventPing        = "pusher:ping"
)

// ClientEventPrefix marks custom client-originated events.
const ClientEventPrefix = "client-"

// connectionEstablishedData is the payload of the single frame emitted on
// accept.
type connectionEstablishedData struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

// ConnectionEstablished builds the handshake envelope.
func ConnectionEstablished(socketID string) Envelope {
	data, _ := json.Marshal(connectionEstablishedData{SocketID: socketID, ActivityTimeout: 120})
	return Envelope{Event: EventConnectionEstablished, Data: data}
}

// Pong builds the reply to a pusher:ping.
func Pong() Envelope {
	return Envelope{Event: EventPong, Data: json.RawMessage(`{}`)}
}

// ErrorEnvelope builds an engine-level pusher:error frame.
func ErrorEnvelope(message string) Envelope {
	data, _ := json.Marshal(struct {
		Message string `json:"message"`
	}{Message: message})
	return Envelope{Event: EventError, Data: data}
}

// subscribeData is the payload of a pusher:subscribe request.
type subscribeData struct {
	Channel     string          `json:"channel"`
	Auth        string          `json:"auth,omitempty"`
	ChannelData json.RawMessage `json:"channel_data,omitempty"`
}

// presenceChannelData is what ChannelData must parse as on a presence
// subscribe.
type presenceChannelData struct {
	UserID   string          `json:"user_id"`
	UserInfo json.RawMessage `json:"user_info"`
}

// unsubscribeData is the payload of a pusher:unsubscribe request.
type unsubscribeData struct {
	Channel string `json:"channel"`
}

// clientEventData is the payload of a client-* event.
type clientEventData struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// subscriptionSucceededPresence is the presence sub-object of a
// subscription_succeeded reply's data.
type subscriptionSucceededPresence struct {
	Count int                        `json:"count"`
	IDs   []string                   `json:"ids"`
	Hash  map[string]json.RawMessage `json:"hash"`
}

// memberAddedData is the payload of a member_added broadcast.
type memberAddedData struct {
	Channel  string          `json:"channel"`
	UserID   string          `json:"user_id"`
	UserInfo json.RawMessage `json:"user_info"`
}

// memberRemovedData is the payload of a member_removed broadcast.
type memberRemovedData struct {
	Channel string `json:"channel"`
	UserID  string `json:"user_id"`
}

// subscriptionErrorData is the payload of a subscription_error reply.
type subscriptionErrorData struct {
	Channel string `json:"channel"`
	Error   string `json:"error"`
}

// publicEvent is the wire form of an application or client-* event
// delivered inside a channel: {event, channel, data}.
type publicEvent struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}
