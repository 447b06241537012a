package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const defaultRetry = 2 * time.Second

// Writer flushes documents to a Store in the background. Saves to the same
// key coalesce so a later document always replaces an earlier one, and a
// failed write is retried unless a newer document has been queued meanwhile.
type Writer struct {
	store Store
	clock clockwork.Clock
	retry time.Duration

	mu      sync.Mutex
	pending map[string]json.RawMessage

	writeMu sync.Mutex
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	started bool
	once    sync.Once
}

type WriterOption func(*Writer)

func WithWriterClock(clock clockwork.Clock) WriterOption {
	return func(w *Writer) { w.clock = clock }
}

func WithRetryInterval(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.retry = d
		}
	}
}

func NewWriter(s Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:   s,
		clock:   clockwork.NewRealClock(),
		retry:   defaultRetry,
		pending: make(map[string]json.RawMessage),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the flush loop until Close.
func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.loop()
}

// Save queues v under key. v is encoded immediately so later mutations of the
// caller's value do not leak into the queued document.
func (w *Writer) Save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	w.SaveRaw(key, raw)
	return nil
}

func (w *Writer) SaveRaw(key string, raw json.RawMessage) {
	w.mu.Lock()
	w.pending[key] = raw
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending reports how many keys are waiting to be written.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Flush writes everything queued so far.
func (w *Writer) Flush(ctx context.Context) error {
	return w.writeOnce(ctx)
}

// Close stops the loop and makes a final flush.
func (w *Writer) Close(ctx context.Context) error {
	w.once.Do(func() { close(w.stop) })
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		select {
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return w.Flush(ctx)
}

func (w *Writer) loop() {
	defer close(w.done)
	ctx := context.Background()
	for {
		select {
		case <-w.stop:
			return
		case <-w.wake:
		}
		for w.writeOnce(ctx) != nil {
			select {
			case <-w.stop:
				return
			case <-w.clock.After(w.retry):
			}
		}
	}
}

func (w *Writer) writeOnce(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]json.RawMessage, len(batch))
	w.mu.Unlock()

	keys := make([]string, 0, len(batch))
	for k := range batch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		raw := batch[key]
		if err := w.store.Save(ctx, key, raw); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("save failed, will retry")
			w.mu.Lock()
			if _, newer := w.pending[key]; !newer {
				w.pending[key] = raw
			}
			w.mu.Unlock()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
