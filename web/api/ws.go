package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hochfrequenz/claude-task-master/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local status tool, same-origin policy does not apply.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans lifecycle events out to connected websocket clients. It
// implements events.Sink, so it plugs into the orchestrator's sink
// chain directly.
type Hub struct {
	clients    map[chan events.Event]bool
	broadcast  chan events.Event
	register   chan chan events.Event
	unregister chan chan events.Event
	mu         sync.RWMutex
}

// NewHub creates an event hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[chan events.Event]bool),
		broadcast:  make(chan events.Event, 16),
		register:   make(chan chan events.Event),
		unregister: make(chan chan events.Event),
	}
}

// Run dispatches events until the context ends
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client <- event:
				default:
					// Slow client, drop it rather than block the run.
					close(client)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Emit implements events.Sink
func (h *Hub) Emit(ev events.Event) error {
	select {
	case h.broadcast <- ev:
	default:
	}
	return nil
}

func (s *Server) eventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := make(chan events.Event, 8)
		s.hub.register <- client
		defer func() {
			// After hub shutdown nobody drains unregister; the next
			// broadcast prunes dead clients anyway.
			select {
			case s.hub.unregister <- client:
			default:
			}
		}()

		// Reader goroutine detects client disconnect.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case ev, ok := <-client:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			}
		}
	}
}
