// Package event provides the session event bus power-up plugins publish
// lifecycle notifications through. The bus is constructed by the session
// and injected where needed; the plugin engine itself only sees the
// narrow publisher interface it is handed.
package event

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Topic represents a hierarchical event type using dot notation.
// Examples: "powerup.activated", "powerup.conflict"
type Topic string

// Wildcard constants for subscription patterns.
const (
	// WildcardSingle matches exactly one segment.
	WildcardSingle = "*"

	// WildcardMulti matches zero or more segments.
	WildcardMulti = "**"

	// Separator is the character used to separate topic segments.
	Separator = "."
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the topic split by the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Matches returns true if this topic matches the given pattern.
// The pattern may contain wildcards: "*" matches exactly one segment,
// "**" matches zero or more segments.
func (t Topic) Matches(pattern Topic) bool {
	return matchSegments(t.Segments(), pattern.Segments())
}

func matchSegments(topic, pattern []string) bool {
	ti, pi := 0, 0

	for pi < len(pattern) {
		if pattern[pi] == WildcardMulti {
			for ti <= len(topic) {
				if matchSegments(topic[ti:], pattern[pi+1:]) {
					return true
				}
				ti++
			}
			return false
		}

		if ti >= len(topic) {
			return false
		}

		switch pattern[pi] {
		case WildcardSingle:
			ti++
			pi++
		case topic[ti]:
			ti++
			pi++
		default:
			return false
		}
	}

	return ti == len(topic)
}

// Event is the envelope delivered to subscribers.
type Event struct {
	// ID uniquely identifies this event instance.
	ID string

	// Topic is the event type.
	Topic Topic

	// Payload is the typed event data.
	Payload any

	// Time is when the event was published.
	Time time.Time
}

// HandlerFunc handles a delivered event.
// Handlers must be non-blocking and should not publish from within
// themselves. Panics in handlers are recovered.
type HandlerFunc func(ev Event)

// Stats is a snapshot of bus delivery counters.
type Stats struct {
	Published uint64
	Delivered uint64
	Panics    uint64
}

type subscription struct {
	pattern Topic
	fn      HandlerFunc
}

// Bus is a synchronous publish/subscribe bus. Delivery happens on the
// publisher's goroutine in subscription order; a panicking handler is
// isolated and counted, never propagated.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscription

	published atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for topics matching the pattern.
// Returns an unsubscribe function to remove the handler.
func (b *Bus) Subscribe(pattern Topic, fn HandlerFunc) func() {
	if fn == nil {
		return func() {} // No-op for nil handlers
	}

	sub := &subscription{pattern: pattern, fn: fn}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	index := len(b.subs) - 1
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		// Set to nil instead of removing to avoid index shifting issues
		if index < len(b.subs) {
			b.subs[index] = nil
		}
	}
}

// Publish delivers the payload to every subscriber whose pattern matches
// the topic. Safe to call with no subscribers.
func (b *Bus) Publish(topic Topic, payload any) {
	ev := Event{
		ID:      uuid.NewString(),
		Topic:   topic,
		Payload: payload,
		Time:    time.Now(),
	}
	b.published.Add(1)

	// Copy matching subscriptions under lock
	b.mu.RLock()
	matched := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub == nil {
			continue
		}
		if topic.Matches(sub.pattern) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	// Call handlers outside lock with panic recovery
	for _, sub := range matched {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
		}
	}()
	sub.fn(ev)
	b.delivered.Add(1)
}

// Stats returns a snapshot of delivery counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Panics:    b.panics.Load(),
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, sub := range b.subs {
		if sub != nil {
			count++
		}
	}
	return count
}
