package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Queue hands events to a slow handler on its own goroutine so the publisher
// is never held up. When the buffer is full the event is dropped.
type Queue struct {
	name    string
	handler Handler
	ch      chan Event
	wg      sync.WaitGroup
	once    sync.Once
}

func NewQueue(name string, size int, handler Handler) *Queue {
	q := &Queue{name: name, handler: handler, ch: make(chan Event, size)}
	q.wg.Add(1)
	go q.run()
	return q
}

// Handle is the Handler to subscribe on the bus.
func (q *Queue) Handle(_ context.Context, ev Event) {
	select {
	case q.ch <- ev:
	default:
		log.Warn().Str("queue", q.name).Str("event_type", ev.Type).Msg("event queue full, dropping event")
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for ev := range q.ch {
		q.handler(context.Background(), ev)
	}
}

// Close drains the buffered events and stops the worker. Handle must not be
// called after Close.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.ch) })
	q.wg.Wait()
}
