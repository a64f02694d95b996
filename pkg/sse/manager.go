package sse

import (
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Event is one message pushed to a user's streams
type Event struct {
	Type    string
	Payload interface{}
}

type client struct {
	userID string
	events chan Event
}

type delivery struct {
	userID string
	event  Event
}

// Manager fans events out to every open stream of a user
type Manager struct {
	mu        sync.RWMutex
	clients   map[string]map[*client]struct{}
	register  chan *client
	remove    chan *client
	deliver   chan delivery
	done      chan struct{}
	closeOnce sync.Once

	// Heartbeat is the keep-alive interval for idle streams
	Heartbeat time.Duration
}

func NewManager() *Manager {
	return &Manager{
		clients:   make(map[string]map[*client]struct{}),
		register:  make(chan *client),
		remove:    make(chan *client),
		deliver:   make(chan delivery, 64),
		done:      make(chan struct{}),
		Heartbeat: 30 * time.Second,
	}
}

// Run processes registrations and deliveries until Stop is called
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.mu.Lock()
			if m.clients[c.userID] == nil {
				m.clients[c.userID] = make(map[*client]struct{})
			}
			m.clients[c.userID][c] = struct{}{}
			m.mu.Unlock()
			log.Printf("[SSE] Client connected for user %s", c.userID)

		case c := <-m.remove:
			m.mu.Lock()
			if set, ok := m.clients[c.userID]; ok {
				if _, ok := set[c]; ok {
					delete(set, c)
					close(c.events)
				}
				if len(set) == 0 {
					delete(m.clients, c.userID)
				}
			}
			m.mu.Unlock()
			log.Printf("[SSE] Client disconnected for user %s", c.userID)

		case d := <-m.deliver:
			m.mu.RLock()
			for c := range m.clients[d.userID] {
				select {
				case c.events <- d.event:
				default:
					log.Printf("[SSE] Dropping %s event for slow client of user %s", d.event.Type, d.userID)
				}
			}
			m.mu.RUnlock()

		case <-m.done:
			m.mu.Lock()
			for userID, set := range m.clients {
				for c := range set {
					close(c.events)
				}
				delete(m.clients, userID)
			}
			m.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and closes every open stream
func (m *Manager) Stop() {
	m.closeOnce.Do(func() { close(m.done) })
}

// SendToUser queues an event for all streams of userID. It never blocks;
// events are dropped when the queue is full.
func (m *Manager) SendToUser(userID string, eventType string, payload interface{}) {
	select {
	case m.deliver <- delivery{userID: userID, event: Event{Type: eventType, Payload: payload}}:
	case <-m.done:
	default:
		log.Printf("[SSE] Delivery queue full, dropping %s event for user %s", eventType, userID)
	}
}

// Connections returns the number of open streams for userID
func (m *Manager) Connections(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[userID])
}

// Subscribe opens a stream for userID. The returned cancel func must be
// called when the consumer goes away.
func (m *Manager) Subscribe(userID string) (<-chan Event, func()) {
	c := &client{userID: userID, events: make(chan Event, 16)}
	select {
	case m.register <- c:
	case <-m.done:
		close(c.events)
		return c.events, func() {}
	}

	var once sync.Once
	return c.events, func() {
		once.Do(func() {
			select {
			case m.remove <- c:
			case <-m.done:
			}
		})
	}
}

// ServeHTTP streams events for userID until the client disconnects
func (m *Manager) ServeHTTP(c *gin.Context, userID string) {
	events, cancel := m.Subscribe(userID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{"user_id": userID})
	c.Writer.Flush()

	heartbeat := time.NewTicker(m.Heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"time": time.Now().Unix()})
			c.Writer.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(event.Type, event.Payload)
			c.Writer.Flush()
		}
	}
}
