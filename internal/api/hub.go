package api

import (
	"sync"
	"time"

	"github.com/bryanchriswhite/winshift/internal/logger"
)

// Change is one focus change as sent to clients
type Change struct {
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub remembers the focused title and fans changes out to subscribers.
// It implements focus.Observer.
type Hub struct {
	buffer int
	now    func() time.Time

	mu        sync.RWMutex
	current   *Change
	listeners []chan Change
	closed    bool
}

// NewHub creates a Hub whose subscribers queue up to buffer changes.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		buffer: buffer,
		now:    time.Now,
	}
}

// OnFocusChange records title and notifies subscribers. A subscriber whose
// queue is full misses the change.
func (h *Hub) OnFocusChange(title string) {
	change := Change{Title: title, Timestamp: h.now()}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = &change
	for _, ch := range h.listeners {
		select {
		case ch <- change:
		default:
			logger.WithComponent("api").Warn().Str("title", title).Msg("Subscriber queue full, dropping change")
		}
	}
}

// Current returns the last change, or nil before the first one
func (h *Hub) Current() *Change {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return nil
	}
	c := *h.current
	return &c
}

// Subscribe adds a listener for focus changes and returns it with the change
// current at that moment (nil before the first one). Only later changes are
// sent on the channel. After Close it returns a closed channel.
func (h *Hub) Subscribe() (chan Change, *Change) {
	ch := make(chan Change, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()

	var current *Change
	if h.current != nil {
		c := *h.current
		current = &c
	}
	if h.closed {
		close(ch)
		return ch, current
	}
	h.listeners = append(h.listeners, ch)
	return ch, current
}

// Unsubscribe removes a listener and closes it
func (h *Hub) Unsubscribe(ch chan Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, listener := range h.listeners {
		if listener == ch {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// Close closes every listener, ending their streams
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.listeners {
		close(ch)
	}
	h.listeners = nil
	h.closed = true
}

// Subscribers returns the number of live listeners
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
