package events

import (
	"context"
	"strings"
	"sync"
)

// Handler receives events delivered by the Bus. Handlers run synchronously on
// the publishing goroutine and must not block.
type Handler func(ctx context.Context, ev Event)

// Bus is an in-process publish/subscribe service. Topics are matched on the
// event type; a pattern ending in ".>" matches every type under that prefix
// and ">" matches everything.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	pattern string
	handler Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscription)}
}

// Subscribe registers handler for pattern and returns a func that removes it.
func (b *Bus) Subscribe(pattern string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{pattern: pattern, handler: handler}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for id := 0; id < b.nextID; id++ {
		sub, ok := b.subs[id]
		if ok && Match(sub.pattern, ev.Type) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}

// Match reports whether eventType is covered by pattern.
func Match(pattern, eventType string) bool {
	switch {
	case pattern == ">":
		return true
	case strings.HasSuffix(pattern, ".>"):
		return strings.HasPrefix(eventType, strings.TrimSuffix(pattern, ">"))
	default:
		return pattern == eventType
	}
}
