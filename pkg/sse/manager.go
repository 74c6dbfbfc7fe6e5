// Package sse is a small per-user server-sent-events hub. Senders never
// block: a slow or gone client just misses events, which is acceptable for
// the UI-refresh hints this carries.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/gin-gonic/gin"
)

type event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type client struct {
	userID string
	ch     chan event
}

type Manager struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run owns the client set. Call once in a goroutine.
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.mu.Lock()
			m.clients[c] = struct{}{}
			m.mu.Unlock()
		case c := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[c]; ok {
				delete(m.clients, c)
				close(c.ch)
			}
			m.mu.Unlock()
		}
	}
}

// SendToUser pushes an event to every connection the user has open.
// Fire-and-forget: full client buffers are skipped.
func (m *Manager) SendToUser(userID, eventType string, payload interface{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := range m.clients {
		if c.userID != userID {
			continue
		}
		select {
		case c.ch <- event{Type: eventType, Payload: payload}:
		default:
			log.Printf("[SSE] Dropping %s event for user %s (slow client)", eventType, userID)
		}
	}
}

// ServeHTTP upgrades the gin request to an SSE stream for userID.
func (m *Manager) ServeHTTP(c *gin.Context, userID string) {
	cl := &client{userID: userID, ch: make(chan event, 16)}
	m.register <- cl
	defer func() { m.unregister <- cl }()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-cl.ch
		if !ok {
			return false
		}
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return true
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		return true
	})
}
