// Package reload notifies browsers when files under the site root change.
package reload

import (
	"log/slog"
	"sync"
	"time"
)

// Event is broadcast after a burst of file changes settles.
type Event struct {
	TS    time.Time `json:"ts"`
	Paths []string  `json:"paths"`
}

// Broker manages live-reload subscribers and broadcasts events.
type Broker struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
}

// NewBroker creates a new broker.
func NewBroker() *Broker {
	return &Broker{
		clients: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new client and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	slog.Debug("reload client connected", "total", b.Count())
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
	b.mu.Unlock()
	slog.Debug("reload client disconnected", "total", b.Count())
}

// Broadcast sends an event to all connected clients.
// Slow clients that can't keep up will have their event dropped.
func (b *Broker) Broadcast(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- e:
		default:
			slog.Warn("dropping reload event for slow client")
		}
	}
}

// Count returns the number of connected clients.
func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
