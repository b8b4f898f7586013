// Package demo wires a synthetic page's events to an agent, the way a browser
// page forwards DOM events once it has loaded.
package demo

import (
	"context"
	"sync"
	"time"

	"ezagent/internal/core"
)

// Occurrence describes one fired page event.
type Occurrence struct {
	Type      string    `json:"type"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Listener receives page events.
type Listener func(ctx context.Context, occ Occurrence)

// Page is a minimal event target standing in for a document body.
type Page struct {
	mu        sync.RWMutex
	listeners map[core.Kind][]Listener
}

// NewPage returns a page with no listeners.
func NewPage() *Page {
	return &Page{listeners: make(map[core.Kind][]Listener)}
}

// AddEventListener subscribes fn to kind. Listeners run in the order added.
func (p *Page) AddEventListener(kind core.Kind, fn Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners[kind] = append(p.listeners[kind], fn)
}

// Fire delivers an occurrence of kind to its listeners and reports whether
// any were attached.
func (p *Page) Fire(ctx context.Context, kind core.Kind, detail string) bool {
	p.mu.RLock()
	ls := append([]Listener(nil), p.listeners[kind]...)
	p.mu.RUnlock()
	if len(ls) == 0 {
		return false
	}
	occ := Occurrence{Type: string(kind), Detail: detail, Timestamp: time.Now()}
	for _, fn := range ls {
		fn(ctx, occ)
	}
	return true
}

// Wire forwards every DOM kind fired on page to sink with a synthesized
// payload. Sink errors are handed to onErr when it is non-nil.
func Wire(page *Page, sink core.Agent, onErr func(kind core.Kind, err error)) {
	for _, kind := range core.DOMKinds() {
		kind := kind
		page.AddEventListener(kind, func(ctx context.Context, occ Occurrence) {
			data := core.Payload{
				"message": string(kind) + " event occurred",
				"event":   occ,
			}
			if err := sink.HandleEvent(ctx, string(kind), data); err != nil && onErr != nil {
				onErr(kind, err)
			}
		})
	}
}
