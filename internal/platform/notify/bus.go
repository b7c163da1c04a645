// Package notify is the transient-message bus. Components report action
// outcomes here; sinks (the CLI, a future UI) subscribe and render them. The
// bus knows nothing about presentation.
package notify

import (
	"sync"
	"time"
)

// Type classifies a notification for presentation.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
)

// DefaultDuration is how long a notification lives unless the caller says
// otherwise. Duration 0 means "persist until removed".
const DefaultDuration = 4000 * time.Millisecond

// Notification is one transient message.
type Notification struct {
	ID      int64
	Message string
	Type    Type
}

// Listener observes bus changes. Added fires on Show, Removed on expiry or
// explicit removal. Callbacks run on the mutating goroutine; keep them cheap.
type Listener struct {
	Added   func(Notification)
	Removed func(id int64)
}

// Bus holds the pending notifications in display order.
type Bus struct {
	mu        sync.Mutex
	nextID    int64
	pending   []Notification
	timers    map[int64]*time.Timer
	listeners []Listener
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{timers: make(map[int64]*time.Timer)}
}

// Subscribe registers a listener for subsequent notifications.
func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Show appends a notification and schedules its expiry. Returns its ID so the
// caller can remove it early.
func (b *Bus) Show(message string, typ Type, duration time.Duration) int64 {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	n := Notification{ID: id, Message: message, Type: typ}
	b.pending = append(b.pending, n)
	if duration > 0 {
		b.timers[id] = time.AfterFunc(duration, func() { b.Remove(id) })
	}
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		if l.Added != nil {
			l.Added(n)
		}
	}
	return id
}

// Success shows a success message with the default duration.
func (b *Bus) Success(message string) int64 { return b.Show(message, TypeSuccess, DefaultDuration) }

// Error shows an error message with the default duration.
func (b *Bus) Error(message string) int64 { return b.Show(message, TypeError, DefaultDuration) }

// Info shows an info message with the default duration.
func (b *Bus) Info(message string) int64 { return b.Show(message, TypeInfo, DefaultDuration) }

// Warning shows a warning message with the default duration.
func (b *Bus) Warning(message string) int64 { return b.Show(message, TypeWarning, DefaultDuration) }

// Remove drops a notification and stops its expiry timer. Unknown IDs are a
// no-op, so auto-expiry racing a manual dismissal is harmless.
func (b *Bus) Remove(id int64) {
	b.mu.Lock()
	idx := -1
	for i, n := range b.pending {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return
	}
	b.pending = append(b.pending[:idx], b.pending[idx+1:]...)
	if t, ok := b.timers[id]; ok {
		t.Stop()
		delete(b.timers, id)
	}
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		if l.Removed != nil {
			l.Removed(id)
		}
	}
}

// Pending returns the notifications currently alive, in display order.
func (b *Bus) Pending() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, len(b.pending))
	copy(out, b.pending)
	return out
}
