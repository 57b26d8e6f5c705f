// Package transport - WebSocket adapter.
//
// This file frames github.com/gorilla/websocket's *websocket.Conn into the
// Transport interface the protocol engine depends on: a pull-based Recv
// rather than a push-to-channel hub, since channel/broadcast fan-out lives
// one layer up in the connection's own outbound queue.
package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocket adapts a *websocket.Conn to the Transport interface. There is
// no read deadline and no pong handler: a quiet connection is never
// mistaken for a dead one, and nothing here terminates a session on its
// own initiative for being idle.
type WebSocket struct {
	conn *websocket.Conn
}

// NewWebSocket wraps an already-upgraded connection.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

func (w *WebSocket) Send(data []byte) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) Recv() (Event, error) {
	msgType, data, err := w.conn.ReadMessage()
	if err != nil {
		if ce, ok := err.(*websocket.CloseError); ok {
			return Event{Type: EventClose, Data: []byte(ce.Text)}, nil
		}
		return Event{Type: EventError, Err: err}, err
	}
	switch msgType {
	case websocket.TextMessage, websocket.BinaryMessage:
		return Event{Type: EventData, Data: data}, nil
	case websocket.PingMessage:
		return Event{Type: EventPing}, nil
	case websocket.PongMessage:
		return Event{Type: EventPong}, nil
	default:
		return Event{Type: EventData, Data: data}, nil
	}
}

func (w *WebSocket) Close(reason string) error {
	deadline := time.Now().Add(writeWait)
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
	return w.conn.Close()
}
