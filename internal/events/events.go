// Package events carries rendition change notifications to registered observers.
package events

import (
	"sync"

	"github.com/agleyzer/renditionctl/internal/variant"
)

// Type identifies a notification.
type Type string

const (
	// RenditionEnabled is emitted after a usable rendition was enabled.
	RenditionEnabled Type = "renditionenabled"
	// RenditionDisabled is emitted after a usable rendition was disabled.
	RenditionDisabled Type = "renditiondisabled"
)

// CauseFastQuality is the cause reported for toggle-driven changes.
const CauseFastQuality = "fast-quality"

// RenditionInfo describes the rendition an event refers to.
// Fields are nil/empty when the variant declared no such attribute.
type RenditionInfo struct {
	ID         string              `json:"id"`
	Bandwidth  *int                `json:"bandwidth,omitempty"`
	Resolution *variant.Resolution `json:"resolution,omitempty"`
	Codecs     string              `json:"codecs,omitempty"`
}

// Metadata is the payload of a rendition event.
type Metadata struct {
	RenditionInfo RenditionInfo `json:"renditionInfo"`
	Cause         string        `json:"cause"`
}

// Event is a single notification.
type Event struct {
	Type     Type     `json:"type"`
	Metadata Metadata `json:"metadata"`
}

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches events synchronously to subscribers in registration order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Type][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Type][]subscription)}
}

// Subscribe registers h for events of type t and returns a function that removes it.
func (b *Bus) Subscribe(t Type, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subs[t]
		for i, s := range subs {
			if s.id == id {
				b.subs[t] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers e to every subscriber of e.Type.
// Handlers run on the caller's goroutine and may subscribe or emit themselves.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[e.Type]))
	copy(subs, b.subs[e.Type])
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(e)
	}
}
