package protocol_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewire/broker/internal/app"
	"github.com/pulsewire/broker/internal/protocol"
	"github.com/pulsewire/broker/internal/signature"
	"github.com/pulsewire/broker/internal/testutil"
)

func waitForFrame(t *testing.T, tr *testutil.FakeTransport, n int) []byte {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sent := tr.Sent(); len(sent) >= n {
			return sent[n-1]
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "timed out waiting for frame")
	return nil
}

func decodeEnvelope(t *testing.T, raw []byte) protocol.Envelope {
	t.Helper()
	var envl protocol.Envelope
	require.NoError(t, json.Unmarshal(raw, &envl))
	return envl
}

func TestServe_SendsConnectionEstablished(t *testing.T) {
	a := app.New("test", "key", "secret")
	tr := testutil.NewFakeTransport()

	go protocol.New(a).Serve(tr)

	frame := waitForFrame(t, tr, 1)
	envl := decodeEnvelope(t, frame)
	assert.Equal(t, protocol.EventConnectionEstablished, envl.Event)

	var data struct {
		SocketID        string `json:"socket_id"`
		ActivityTimeout int    `json:"activity_timeout"`
	}
	require.NoError(t, json.Unmarshal(envl.Data, &data))
	assert.NotEmpty(t, data.SocketID)
	assert.Equal(t, 120, data.ActivityTimeout)

	tr.PushClose()
}

func TestPublicChannel_SubscribeAndBroadcast(t *testing.T) {
	a := app.New("test", "key", "secret")
	tr1 := testutil.NewFakeTransport()
	tr2 := testutil.NewFakeTransport()

	go protocol.New(a).Serve(tr1)
	go protocol.New(a).Serve(tr2)

	waitForFrame(t, tr1, 1)
	waitForFrame(t, tr2, 1)

	tr1.Push([]byte(`{"event":"pusher:subscribe","data":{"channel":"chat-room"}}`))
	frame := waitForFrame(t, tr1, 2)
	envl := decodeEnvelope(t, frame)
	assert.Equal(t, protocol.EventSubscriptionSucceeded, envl.Event)
	assert.Equal(t, "chat-room", envl.Channel)

	tr2.Push([]byte(`{"event":"pusher:subscribe","data":{"channel":"chat-room"}}`))
	waitForFrame(t, tr2, 2)

	require.NoError(t, protocol.New(a).Publish([]string{"chat-room"}, "my-event", json.RawMessage(`{"hello":"world"}`)))

	frame = waitForFrame(t, tr1, 3)
	envl = decodeEnvelope(t, frame)
	assert.Equal(t, "my-event", envl.Event)
	assert.Equal(t, "chat-room", envl.Channel)
	assert.JSONEq(t, `{"hello":"world"}`, string(envl.Data))

	frame = waitForFrame(t, tr2, 3)
	envl = decodeEnvelope(t, frame)
	assert.Equal(t, "my-event", envl.Event)

	tr1.PushClose()
	tr2.PushClose()
}

func TestPrivateChannel_RejectsBadAuth(t *testing.T) {
	a := app.New("test", "key", "secret")
	tr := testutil.NewFakeTransport()

	go protocol.New(a).Serve(tr)
	waitForFrame(t, tr, 1)

	tr.Push([]byte(`{"event":"pusher:subscribe","data":{"channel":"private-x","auth":"key:deadbeef"}}`))
	frame := waitForFrame(t, tr, 2)
	envl := decodeEnvelope(t, frame)
	assert.Equal(t, protocol.EventSubscriptionError, envl.Event)

	tr.PushClose()
}

func TestPrivateChannel_AcceptsValidAuth(t *testing.T) {
	a := app.New("test", "key", "secret")
	tr := testutil.NewFakeTransport()

	go protocol.New(a).Serve(tr)
	establishedFrame := waitForFrame(t, tr, 1)
	var established struct {
		SocketID string `json:"socket_id"`
	}
	envl := decodeEnvelope(t, establishedFrame)
	require.NoError(t, json.Unmarshal(envl.Data, &established))

	auth := signature.Sign(a.Key, a.Secret, established.SocketID, "private-x", "")
	msg, _ := json.Marshal(map[string]interface{}{
		"event": "pusher:subscribe",
		"data": map[string]interface{}{
			"channel": "private-x",
			"auth":    auth,
		},
	})
	tr.Push(msg)

	frame := waitForFrame(t, tr, 2)
	envl = decodeEnvelope(t, frame)
	assert.Equal(t, protocol.EventSubscriptionSucceeded, envl.Event)

	tr.PushClose()
}

func TestPresenceChannel_BroadcastsMemberAdded(t *testing.T) {
	a := app.New("test", "key", "secret")
	tr1 := testutil.NewFakeTransport()
	tr2 := testutil.NewFakeTransport()

	go protocol.New(a).Serve(tr1)
	go protocol.New(a).Serve(tr2)

	established1 := decodeEnvelope(t, waitForFrame(t, tr1, 1))
	var data1 struct {
		SocketID string `json:"socket_id"`
	}
	require.NoError(t, json.Unmarshal(established1.Data, &data1))
	waitForFrame(t, tr2, 1)

	auth1 := signature.Sign(a.Key, a.Secret, data1.SocketID, "presence-room", `{"user_id":"u1"}`)
	msg1, _ := json.Marshal(map[string]interface{}{
		"event": "pusher:subscribe",
		"data": map[string]interface{}{
			"channel":      "presence-room",
			"auth":         auth1,
			"channel_data": map[string]interface{}{"user_id": "u1"},
		},
	})
	tr1.Push(msg1)
	frame := waitForFrame(t, tr1, 2)
	envl := decodeEnvelope(t, frame)
	assert.Equal(t, protocol.EventSubscriptionSucceeded, envl.Event)

	established2 := decodeEnvelope(t, tr2.Sent()[0])
	var data2 struct {
		SocketID string `json:"socket_id"`
	}
	require.NoError(t, json.Unmarshal(established2.Data, &data2))

	auth2 := signature.Sign(a.Key, a.Secret, data2.SocketID, "presence-room", `{"user_id":"u2"}`)
	msg2, _ := json.Marshal(map[string]interface{}{
		"event": "pusher:subscribe",
		"data": map[string]interface{}{
			"channel":      "presence-room",
			"auth":         auth2,
			"channel_data": map[string]interface{}{"user_id": "u2"},
		},
	})
	tr2.Push(msg2)
	waitForFrame(t, tr2, 2)

	frame = waitForFrame(t, tr1, 3)
	envl = decodeEnvelope(t, frame)
	assert.Equal(t, protocol.EventMemberAdded, envl.Event)

	var memberAdded struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(envl.Data, &memberAdded))
	assert.Equal(t, "u2", memberAdded.UserID)

	tr1.PushClose()
	tr2.PushClose()
}

func TestUnsubscribeOnDisconnect_RemovesFromChannel(t *testing.T) {
	a := app.New("test", "key", "secret")
	tr := testutil.NewFakeTransport()

	go protocol.New(a).Serve(tr)
	waitForFrame(t, tr, 1)

	tr.Push([]byte(`{"event":"pusher:subscribe","data":{"channel":"chat-room"}}`))
	waitForFrame(t, tr, 2)

	ch, ok := a.Channels.Get("chat-room")
	require.True(t, ok)
	assert.Equal(t, 1, ch.Count())

	tr.PushClose()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && ch.Count() != 0 {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 0, ch.Count())
}

// A connection joined to two presence channels must announce member_removed
// on both when it disconnects, not just the first one torn down.
func TestTeardown_BroadcastsMemberRemovedOnEveryPresenceChannel(t *testing.T) {
	a := app.New("test", "key", "secret")
	trJoiner := testutil.NewFakeTransport()
	trWatcherA := testutil.NewFakeTransport()
	trWatcherB := testutil.NewFakeTransport()

	go protocol.New(a).Serve(trJoiner)
	go protocol.New(a).Serve(trWatcherA)
	go protocol.New(a).Serve(trWatcherB)

	joinerEstablished := decodeEnvelope(t, waitForFrame(t, trJoiner, 1))
	var joinerData struct {
		SocketID string `json:"socket_id"`
	}
	require.NoError(t, json.Unmarshal(joinerEstablished.Data, &joinerData))
	waitForFrame(t, trWatcherA, 1)
	waitForFrame(t, trWatcherB, 1)

	subscribe := func(tr *testutil.FakeTransport, channelName string) {
		auth := signature.Sign(a.Key, a.Secret, joinerData.SocketID, channelName, `{"user_id":"joiner"}`)
		msg, _ := json.Marshal(map[string]interface{}{
			"event": "pusher:subscribe",
			"data": map[string]interface{}{
				"channel":      channelName,
				"auth":         auth,
				"channel_data": map[string]interface{}{"user_id": "joiner"},
			},
		})
		tr.Push(msg)
	}

	subscribe(trJoiner, "presence-a")
	waitForFrame(t, trJoiner, 2)
	subscribe(trJoiner, "presence-b")
	waitForFrame(t, trJoiner, 3)

	subscribeWatcher := func(socketID string, tr *testutil.FakeTransport, channelName string) {
		auth := signature.Sign(a.Key, a.Secret, socketID, channelName, `{"user_id":"watcher"}`)
		msg, _ := json.Marshal(map[string]interface{}{
			"event": "pusher:subscribe",
			"data": map[string]interface{}{
				"channel":      channelName,
				"auth":         auth,
				"channel_data": map[string]interface{}{"user_id": "watcher"},
			},
		})
		tr.Push(msg)
	}

	watcherAEstablished := decodeEnvelope(t, trWatcherA.Sent()[0])
	var watcherAData struct {
		SocketID string `json:"socket_id"`
	}
	require.NoError(t, json.Unmarshal(watcherAEstablished.Data, &watcherAData))
	subscribeWatcher(watcherAData.SocketID, trWatcherA, "presence-a")
	waitForFrame(t, trWatcherA, 2)

	watcherBEstablished := decodeEnvelope(t, trWatcherB.Sent()[0])
	var watcherBData struct {
		SocketID string `json:"socket_id"`
	}
	require.NoError(t, json.Unmarshal(watcherBEstablished.Data, &watcherBData))
	subscribeWatcher(watcherBData.SocketID, trWatcherB, "presence-b")
	waitForFrame(t, trWatcherB, 2)

	trJoiner.PushClose()

	frameA := waitForFrame(t, trWatcherA, 3)
	envlA := decodeEnvelope(t, frameA)
	assert.Equal(t, protocol.EventMemberRemoved, envlA.Event)

	frameB := waitForFrame(t, trWatcherB, 3)
	envlB := decodeEnvelope(t, frameB)
	assert.Equal(t, protocol.EventMemberRemoved, envlB.Event)

	trWatcherA.PushClose()
	trWatcherB.PushClose()
}
