// Package push is the live event channel between the chat service and the
// client. A Channel delivers named events; handlers are registered with On
// and removed per event name with Off.
package push

import (
	"encoding/json"
	"sync"
)

const (
	// EventNewMessage carries a models.Message addressed to this user.
	EventNewMessage = "newMessage"
	// EventOnlineUsers carries the IDs of every connected user.
	EventOnlineUsers = "getOnlineUsers"
)

// Handler receives the raw JSON payload of one event. Handlers run on the
// channel's read goroutine and must not block for long.
type Handler func(payload json.RawMessage)

type Channel interface {
	On(event string, h Handler)
	// Off removes every handler registered for event.
	Off(event string)
	Close() error
}

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Emitter is an in-process handler registry. It backs the websocket Conn
// and doubles as a Channel where no network is involved.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
}

func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string][]Handler)}
}

func (e *Emitter) On(event string, h Handler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.handlers[event] = append(e.handlers[event], h)
}

func (e *Emitter) Off(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, event)
}

// Emit calls every handler for event in registration order and returns how
// many ran. Handlers may call On/Off; changes apply to the next Emit.
func (e *Emitter) Emit(event string, payload json.RawMessage) int {
	e.mu.RLock()
	handlers := append([]Handler(nil), e.handlers[event]...)
	e.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
	return len(handlers)
}

// EmitJSON marshals v and emits it.
func (e *Emitter) EmitJSON(event string, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return e.Emit(event, data), nil
}

func (e *Emitter) HandlerCount(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[event])
}

// Close drops all handlers and ignores later registrations.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.handlers = make(map[string][]Handler)
	return nil
}
