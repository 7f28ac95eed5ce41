package store

import (
	"sync"
	"time"

	"github.com/mattepiu/drift/internal/pattern"
)

// EventKind identifies a store lifecycle event.
type EventKind string

const (
	EventPatternAdded         EventKind = "pattern.added"
	EventPatternUpdated       EventKind = "pattern.updated"
	EventPatternDeleted       EventKind = "pattern.deleted"
	EventPatternStatusChanged EventKind = "pattern.statusChanged"
	EventStoreSaved           EventKind = "store.saved"
)

// Event carries the payload delivered to subscribers.
type Event struct {
	Kind       EventKind
	Pattern    *pattern.Pattern
	FromStatus pattern.Status
	ToStatus   pattern.Status
	Categories []pattern.Category
	Time       time.Time
}

// Handler receives store events. Handlers run synchronously on the
// mutating goroutine and must not call back into the store.
type Handler func(Event)

// Subscription is the token returned by Subscribe; used to unsubscribe.
type Subscription int

type publisher struct {
	mu   sync.RWMutex
	next Subscription
	subs map[EventKind]map[Subscription]Handler
}

func newPublisher() *publisher {
	return &publisher{subs: make(map[EventKind]map[Subscription]Handler)}
}

func (p *publisher) subscribe(kind EventKind, h Handler) Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subs[kind] == nil {
		p.subs[kind] = make(map[Subscription]Handler)
	}
	p.next++
	p.subs[kind][p.next] = h
	return p.next
}

func (p *publisher) unsubscribe(token Subscription) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, handlers := range p.subs {
		if _, ok := handlers[token]; ok {
			delete(handlers, token)
			return true
		}
	}
	return false
}

func (p *publisher) publish(ev Event) {
	p.mu.RLock()
	handlers := make([]Handler, 0, len(p.subs[ev.Kind]))
	for _, h := range p.subs[ev.Kind] {
		handlers = append(handlers, h)
	}
	p.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}
