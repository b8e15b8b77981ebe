package surface

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/coder/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/flitsinc/go-bridge/internal/schema"
)

// Conn is the slice of a websocket connection the hub needs. Satisfied by
// *websocket.Conn; tests substitute fakes.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

// Hub tracks attached presentation surfaces and fans outbound messages out to
// them. Inbound messages are handed to OnMessage; OnLastDetach fires when the
// final surface disconnects so the readiness latch can be rearmed.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*subscriber

	OnMessage    func(msg schema.SurfaceMessage)
	OnLastDetach func()
}

type subscriber struct {
	ch chan schema.SurfaceMessage
}

func NewHub() *Hub {
	return &Hub{conns: map[string]*subscriber{}}
}

// Attach registers one surface connection, writes the hello messages, and
// runs its read and write loops until the connection or ctx ends.
func (h *Hub) Attach(ctx context.Context, conn Conn, hello ...schema.SurfaceMessage) error {
	id := ulid.Make().String()
	sub := &subscriber{ch: make(chan schema.SurfaceMessage, 16)}

	h.mu.Lock()
	h.conns[id] = sub
	h.mu.Unlock()
	defer h.detach(id)

	for _, msg := range hello {
		if err := writeMessage(ctx, conn, msg); err != nil {
			return err
		}
	}

	readErr := make(chan error, 1)
	go func() { readErr <- h.readLoop(ctx, conn) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case msg := <-sub.ch:
			if err := writeMessage(ctx, conn, msg); err != nil {
				return err
			}
		}
	}
}

// Broadcast fans msg out to every attached surface. A slow surface drops
// messages rather than blocking the bridge.
func (h *Hub) Broadcast(msg schema.SurfaceMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.conns {
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// Attached reports how many surfaces are currently connected.
func (h *Hub) Attached() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) detach(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	last := len(h.conns) == 0
	h.mu.Unlock()
	if last && h.OnLastDetach != nil {
		h.OnLastDetach()
	}
}

func (h *Hub) readLoop(ctx context.Context, conn Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var msg schema.SurfaceMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("surface: drop malformed message: %v", err)
			continue
		}
		if h.OnMessage != nil {
			h.OnMessage(msg)
		}
	}
}

func writeMessage(ctx context.Context, conn Conn, msg schema.SurfaceMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}
