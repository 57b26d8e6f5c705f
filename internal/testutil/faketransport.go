// Package testutil provides a minimal in-memory transport.Transport used
// across this module's tests so the connection and protocol packages can
// be exercised without a real WebSocket.
package testutil

import (
	"sync"

	"github.com/pulsewire/broker/internal/transport"
)

// FakeTransport is a Transport double: Push feeds inbound events, Sent
// returns every frame written via Send.
type FakeTransport struct {
	mu       sync.Mutex
	sent     [][]byte
	inbound  chan transport.Event
	closed   bool
	CloseMsg string
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{inbound: make(chan transport.Event, 64)}
}

func (f *FakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *FakeTransport) Recv() (transport.Event, error) {
	ev, ok := <-f.inbound
	if !ok {
		return transport.Event{Type: transport.EventClose}, nil
	}
	return ev, nil
}

func (f *FakeTransport) Close(reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.CloseMsg = reason
		close(f.inbound)
	}
	return nil
}

// Push enqueues an inbound data frame, as if the peer had sent it.
func (f *FakeTransport) Push(data []byte) {
	f.inbound <- transport.Event{Type: transport.EventData, Data: data}
}

// PushClose enqueues an inbound close event.
func (f *FakeTransport) PushClose() {
	f.inbound <- transport.Event{Type: transport.EventClose}
}

// Sent returns every frame written so far, in write order.
func (f *FakeTransport) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}
