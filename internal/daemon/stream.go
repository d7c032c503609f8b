package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/stakemate/stakemate/internal/logging"
	"github.com/stakemate/stakemate/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The API binds to loopback; cross-origin browsers are not a
		// supported client.
		return true
	},
}

// streamMessage is one push update to connected stream clients.
type streamMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// streamHub fans state updates out to WebSocket clients.
type streamHub struct {
	mu      sync.RWMutex
	clients map[*streamClient]bool

	messages chan streamMessage
}

func newStreamHub() *streamHub {
	return &streamHub{
		clients:  make(map[*streamClient]bool),
		messages: make(chan streamMessage, 256),
	}
}

// run delivers broadcasts until the context ends, then closes every
// client.
func (h *streamHub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case msg := <-h.messages:
			data, err := json.Marshal(msg)
			if err != nil {
				logging.Warn("stream: failed to encode message", logging.Err(err))
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow consumer, skip this update.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// broadcast queues a message for all clients, dropping it when the hub
// is saturated.
func (h *streamHub) broadcast(msg streamMessage) {
	select {
	case h.messages <- msg:
	default:
		logging.Warn("stream: broadcast queue full, dropping", "type", msg.Type)
	}
}

// serve upgrades one HTTP request into a stream connection.
func (h *streamHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("stream: upgrade failed", logging.Err(err))
		return
	}

	client := &streamClient{conn: conn, send: make(chan []byte, 64)}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	logging.Debug("stream client connected", logging.Component("stream"))

	util.SafeGoWithName("stream-writer", func() {
		defer conn.Close()
		for data := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				break
			}
		}
	})
	util.SafeGoWithName("stream-reader", func() {
		defer h.drop(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

func (h *streamHub) drop(client *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	client.conn.Close()
}
