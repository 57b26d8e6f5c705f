package channel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewire/broker/internal/apperrors"
	"github.com/pulsewire/broker/internal/channel"
	"github.com/pulsewire/broker/internal/connection"
	"github.com/pulsewire/broker/internal/testutil"
)

func TestTypeOf_ClassifiesByPrefix(t *testing.T) {
	assert.Equal(t, channel.Public, channel.TypeOf("chat-room"))
	assert.Equal(t, channel.Private, channel.TypeOf("private-x"))
	assert.Equal(t, channel.Presence, channel.TypeOf("presence-room"))
	assert.Equal(t, channel.Presence, channel.TypeOf("presence-"))
}

func newConn(socketID string) *connection.Connection {
	return connection.New(socketID, testutil.NewFakeTransport())
}

func TestPublicChannel_SubscribeBroadcastCount(t *testing.T) {
	ch := channel.NewPublic("chat-room")
	c1 := newConn("1.1")
	c2 := newConn("1.2")

	require.NoError(t, ch.Subscribe(c1))
	require.NoError(t, ch.Subscribe(c2))
	assert.Equal(t, 2, ch.Count())
	assert.ElementsMatch(t, []string{"1.1", "1.2"}, ch.Subscribers())

	ch.Broadcast([]byte("hello"))

	ch.Unsubscribe("1.1")
	assert.Equal(t, 1, ch.Count())
}

func waitForSentCount(t *testing.T, tr *testutil.FakeTransport, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sent := tr.Sent(); len(sent) >= n {
			return sent
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "timed out waiting for sent frames")
	return nil
}

func TestPublicChannel_BroadcastExceptSkipsOneRecipient(t *testing.T) {
	ch := channel.NewPublic("chat-room")
	tr1 := testutil.NewFakeTransport()
	tr2 := testutil.NewFakeTransport()
	c1 := connection.New("1.1", tr1)
	c2 := connection.New("1.2", tr2)

	require.NoError(t, ch.Subscribe(c1))
	require.NoError(t, ch.Subscribe(c2))

	ch.BroadcastExcept([]byte("hello"), "1.1")

	sent := waitForSentCount(t, tr2, 1)
	assert.Equal(t, "hello", string(sent[0]))
	assert.Empty(t, tr1.Sent())
}

func TestSendToConnection_NotFoundForUnknownSocket(t *testing.T) {
	ch := channel.NewPublic("chat-room")
	err := ch.SendToConnection("missing", []byte("hi"))
	require.Error(t, err)
	appErr, ok := err.(*apperrors.Error)
	require.True(t, ok)
	assert.Equal(t, apperrors.NotFound, appErr.Kind)
}

func TestPresenceChannel_AddRemoveIdempotent(t *testing.T) {
	ch := channel.NewPresence("presence-room")
	c1 := newConn("1.1")

	ch.AddPresenceUser(c1, channel.PresenceUser{UserID: "u1"})
	ch.AddPresenceUser(c1, channel.PresenceUser{UserID: "u1-renamed"})

	users := ch.PresenceUsers()
	require.Len(t, users, 1)
	assert.Equal(t, "u1-renamed", users[0].UserID)

	require.NoError(t, ch.Subscribe(c1))
	ch.Unsubscribe(c1.SocketID)
	assert.Empty(t, ch.PresenceUsers())
	assert.Equal(t, 0, ch.Count())
}

func TestGetOrCreate_TypesMatchName(t *testing.T) {
	reg := channel.NewRegistry()

	pub := reg.GetOrCreate("chat-room")
	assert.Equal(t, channel.Public, pub.Type())

	priv := reg.GetOrCreate("private-x")
	assert.Equal(t, channel.Private, priv.Type())

	pres := reg.GetOrCreate("presence-room")
	assert.Equal(t, channel.Presence, pres.Type())
	_, ok := pres.(channel.Presenceable)
	assert.True(t, ok)

	again := reg.GetOrCreate("chat-room")
	assert.Same(t, pub, again)
	assert.Equal(t, 3, reg.Count())
}
