// Package events carries console lifecycle events to SSE consumers.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Type represents the kind of lifecycle event.
type Type string

const (
	TypeFileStaged     Type = "file_staged"
	TypeFileRemoved    Type = "file_removed"
	TypeGenerateStart  Type = "generate_start"
	TypeGenerateDone   Type = "generate_done"
	TypeGenerateFailed Type = "generate_failed"
	TypeBackendHealth  Type = "backend_health"
)

// Event is one console lifecycle event.
type Event struct {
	Type       Type      `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id,omitempty"`
	Slot       string    `json:"slot,omitempty"`
	File       string    `json:"file,omitempty"`
	GrandTotal string    `json:"grand_total,omitempty"`
	Error      string    `json:"error,omitempty"`
	Online     *bool     `json:"online,omitempty"`
}

// Bus manages event publishing and subscription for SSE consumers.
type Bus struct {
	events      chan Event
	subscribers map[chan Event]struct{}
	mu          sync.RWMutex
	shutdown    chan struct{}
	once        sync.Once
}

// NewBus creates an event bus with the specified buffer size.
func NewBus(bufferSize int) *Bus {
	b := &Bus{
		events:      make(chan Event, bufferSize),
		subscribers: make(map[chan Event]struct{}),
		shutdown:    make(chan struct{}),
	}
	go b.forward()
	return b
}

// forward fans events out from the main channel to all subscribers.
func (b *Bus) forward() {
	for {
		select {
		case event, ok := <-b.events:
			if !ok {
				return
			}
			b.mu.RLock()
			subs := make([]chan Event, 0, len(b.subscribers))
			for ch := range b.subscribers {
				subs = append(subs, ch)
			}
			b.mu.RUnlock()

			// Non-blocking send; a slow subscriber misses events rather
			// than stalling the bus.
			for _, ch := range subs {
				select {
				case ch <- event:
				default:
				}
			}
		case <-b.shutdown:
			return
		}
	}
}

// Publish publishes an event. Non-blocking; drops when the buffer is full.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case b.events <- event:
	default:
	}
}

// Subscribe creates a new subscription channel.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 10)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscription channel and closes it.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, exists := b.subscribers[ch]; exists {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Shutdown stops the bus and closes all subscriber channels.
func (b *Bus) Shutdown() {
	b.once.Do(func() {
		close(b.shutdown)
		close(b.events)

		b.mu.Lock()
		for ch := range b.subscribers {
			close(ch)
		}
		b.subscribers = make(map[chan Event]struct{})
		b.mu.Unlock()
	})
}

// FormatSSE formats an event as a Server-Sent Events frame.
func FormatSSE(event Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return "data: " + string(data) + "\n\n", nil
}
