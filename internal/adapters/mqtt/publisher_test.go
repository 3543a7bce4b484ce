package mqtt

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/go-logr/logr"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
)

type message struct {
	topic   string
	payload []byte
	retain  bool
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// startBroker runs an in-process broker and returns its URL and a channel of
// messages published under wprov/#.
func startBroker(t *testing.T) (string, <-chan message) {
	t.Helper()
	server := mochi.New(&mochi.Options{InlineClient: true})
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))

	addr := freeAddr(t)
	require.NoError(t, server.AddListener(listeners.NewTCP(listeners.Config{
		ID:      "tcp",
		Address: addr,
	})))

	msgs := make(chan message, 16)
	require.NoError(t, server.Subscribe("wprov/#", 1, func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet) {
		msgs <- message{topic: pk.TopicName, payload: append([]byte(nil), pk.Payload...), retain: pk.FixedHeader.Retain}
	}))

	go server.Serve()
	t.Cleanup(func() { server.Close() })
	return "tcp://" + addr, msgs
}

func next(t *testing.T, msgs <-chan message) message {
	t.Helper()
	select {
	case m := <-msgs:
		return m
	case <-time.After(3 * time.Second):
		t.Fatal("no message")
	}
	return message{}
}

func TestPublisher_PublishesStatus(t *testing.T) {
	broker, msgs := startBroker(t)
	p := NewPublisher(broker, "wprov/board1", "test-client", logr.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Connect(ctx))

	snap := domain.BoardSnapshot{State: domain.StateClient, SSID: "home", Connected: true, IP: "192.168.1.50"}
	require.NoError(t, p.Publish(snap))

	m := next(t, msgs)
	assert.Equal(t, "wprov/board1/status", m.topic)
	assert.True(t, m.retain)

	var got domain.BoardSnapshot
	require.NoError(t, json.Unmarshal(m.payload, &got))
	assert.Equal(t, domain.StateClient, got.State)
	assert.Equal(t, "home", got.SSID)
	assert.True(t, got.Connected)

	p.Disconnect()
	m = next(t, msgs)
	assert.JSONEq(t, offlinePayload, string(m.payload))

	assert.ErrorIs(t, p.Publish(snap), errNotConnected)
}

func TestPublisher_ConnectFails(t *testing.T) {
	p := NewPublisher("tcp://"+freeAddr(t), "wprov/board1", "", logr.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, p.Connect(ctx))
	assert.ErrorIs(t, p.Publish(domain.BoardSnapshot{}), errNotConnected)

	// Disconnect without a session is harmless.
	p.Disconnect()
}
