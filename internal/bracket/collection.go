package bracket

import (
	"context"
	"errors"
	"sync"

	"gamecenter/internal/events"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrNotFound = errors.New("tournament not found")
	ErrStale    = errors.New("tournament changed since it was read")
)

// Tournaments is the saved tournament list, keyed by id and kept in creation
// order.
type Tournaments struct {
	clock clockwork.Clock
	pub   events.Publisher
	newID func() string

	mu    sync.Mutex
	items []Tournament
}

type Option func(*Tournaments)

func WithClock(clock clockwork.Clock) Option {
	return func(ts *Tournaments) { ts.clock = clock }
}

func WithPublisher(pub events.Publisher) Option {
	return func(ts *Tournaments) { ts.pub = pub }
}

func WithIDGenerator(fn func() string) Option {
	return func(ts *Tournaments) { ts.newID = fn }
}

func NewTournaments(opts ...Option) *Tournaments {
	ts := &Tournaments{
		clock: clockwork.NewRealClock(),
		pub:   events.Discard,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

func (ts *Tournaments) Create(ctx context.Context, in NewTournament) (Tournament, error) {
	t, err := Create(ts.newID(), in, ts.clock.Now())
	if err != nil {
		return Tournament{}, err
	}
	return ts.Save(ctx, t), nil
}

// Save inserts or replaces t by id.
func (ts *Tournaments) Save(ctx context.Context, t Tournament) Tournament {
	t = t.Clone()
	if t.ID == "" {
		t.ID = ts.newID()
	}
	t.refresh()

	ts.mu.Lock()
	if i := ts.indexLocked(t.ID); i >= 0 {
		ts.items[i] = t
	} else {
		ts.items = append(ts.items, t)
	}
	out := t.Clone()
	ts.mu.Unlock()

	ts.publish(ctx, events.TournamentUpdated, out)
	return out
}

// Replace stores next only while the stored tournament still has the bracket
// of base. A stored tournament that already matches next is returned as is.
// Otherwise ErrStale is returned along with the stored tournament.
func (ts *Tournaments) Replace(ctx context.Context, base, next Tournament) (Tournament, error) {
	ts.mu.Lock()
	i := ts.indexLocked(next.ID)
	if i < 0 {
		ts.mu.Unlock()
		return Tournament{}, ErrNotFound
	}
	current := ts.items[i]
	if current.SameProgress(next) {
		ts.mu.Unlock()
		return current.Clone(), nil
	}
	if !current.SameProgress(base) {
		ts.mu.Unlock()
		return current.Clone(), ErrStale
	}
	next = next.Clone()
	next.refresh()
	ts.items[i] = next
	out := next.Clone()
	ts.mu.Unlock()

	ts.publish(ctx, events.TournamentUpdated, out)
	return out, nil
}

func (ts *Tournaments) SelectWinner(ctx context.Context, id string, round, match int, winner string) (Tournament, error) {
	return ts.update(ctx, id, func(t *Tournament) error {
		return t.SelectWinner(round, match, winner)
	})
}

func (ts *Tournaments) Revert(ctx context.Context, id string, round, match int) (Tournament, error) {
	return ts.update(ctx, id, func(t *Tournament) error {
		return t.Revert(round, match)
	})
}

func (ts *Tournaments) update(ctx context.Context, id string, fn func(*Tournament) error) (Tournament, error) {
	ts.mu.Lock()
	i := ts.indexLocked(id)
	if i < 0 {
		ts.mu.Unlock()
		return Tournament{}, ErrNotFound
	}
	next := ts.items[i].Clone()
	if err := fn(&next); err != nil {
		ts.mu.Unlock()
		return Tournament{}, err
	}
	ts.items[i] = next
	out := next.Clone()
	ts.mu.Unlock()

	ts.publish(ctx, events.TournamentUpdated, out)
	return out, nil
}

func (ts *Tournaments) Get(id string) (Tournament, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if i := ts.indexLocked(id); i >= 0 {
		return ts.items[i].Clone(), nil
	}
	return Tournament{}, ErrNotFound
}

func (ts *Tournaments) List() []Tournament {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]Tournament, len(ts.items))
	for i, t := range ts.items {
		out[i] = t.Clone()
	}
	return out
}

func (ts *Tournaments) Delete(ctx context.Context, id string) error {
	ts.mu.Lock()
	i := ts.indexLocked(id)
	if i < 0 {
		ts.mu.Unlock()
		return ErrNotFound
	}
	t := ts.items[i]
	ts.items = append(ts.items[:i], ts.items[i+1:]...)
	ts.mu.Unlock()

	ts.publish(ctx, events.TournamentDeleted, t)
	return nil
}

// Restore replaces the list with persisted tournaments.
func (ts *Tournaments) Restore(items []Tournament) {
	restored := make([]Tournament, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, t := range items {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		t = t.Clone()
		t.refresh()
		restored = append(restored, t)
	}
	ts.mu.Lock()
	ts.items = restored
	ts.mu.Unlock()
}

func (ts *Tournaments) indexLocked(id string) int {
	for i := range ts.items {
		if ts.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (ts *Tournaments) publish(ctx context.Context, eventType string, t Tournament) {
	ts.pub.Publish(ctx, events.New(eventType, t.ID, t, ts.clock.Now()))
}
