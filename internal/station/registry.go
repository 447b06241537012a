package station

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gamecenter/internal/events"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const tickInterval = time.Second

var (
	ErrNotFound      = errors.New("station not found")
	ErrInvalidKind   = errors.New("invalid table kind")
	ErrTooFewPlayers = errors.New("a table roster needs at least two players")
)

// Rates provides the hourly rate in effect for a station kind.
type Rates interface {
	RateFor(kind Kind, table TableKind) int64
}

// FixedRate charges the same rate for every kind.
type FixedRate int64

func (r FixedRate) RateFor(Kind, TableKind) int64 { return int64(r) }

// Registry owns the active stations of one kind and the single tick handle of
// each running station.
type Registry struct {
	kind  Kind
	clock clockwork.Clock
	rates Rates
	pub   events.Publisher
	newID func() string

	// pubMu is taken before mu by ticks and by the operations that cancel a
	// handle, so a tick event is never published after the cancelling one.
	pubMu sync.Mutex

	mu       sync.Mutex
	stations map[string]*Station
	order    []string
	handles  map[string]*tickHandle
}

type tickHandle struct {
	ticker clockwork.Ticker
	done   chan struct{}
}

type Option func(*Registry)

func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

func WithRates(rates Rates) Option {
	return func(r *Registry) { r.rates = rates }
}

func WithPublisher(pub events.Publisher) Option {
	return func(r *Registry) { r.pub = pub }
}

func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

func NewRegistry(kind Kind, opts ...Option) *Registry {
	r := &Registry{
		kind:     kind,
		clock:    clockwork.NewRealClock(),
		rates:    FixedRate(0),
		pub:      events.Discard,
		newID:    func() string { return uuid.NewString() },
		stations: make(map[string]*Station),
		handles:  make(map[string]*tickHandle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Kind() Kind { return r.kind }

// NewStation describes a station to add.
type NewStation struct {
	Title     string
	ClientID  string
	TableKind TableKind
	Date      *time.Time
}

func (r *Registry) Add(ctx context.Context, in NewStation) (Station, error) {
	if r.kind == KindTable && !in.TableKind.Valid() {
		return Station{}, ErrInvalidKind
	}
	st := &Station{
		ID:        r.newID(),
		Kind:      r.kind,
		TableKind: in.TableKind,
		Title:     strings.TrimSpace(in.Title),
		ClientID:  in.ClientID,
		Date:      copyTime(in.Date),
	}
	if r.kind != KindTable {
		st.TableKind = ""
	}
	st.CostPerHour = r.rates.RateFor(r.kind, st.TableKind)

	r.mu.Lock()
	r.stations[st.ID] = st
	r.order = append(r.order, st.ID)
	out := st.clone()
	r.mu.Unlock()

	r.publish(ctx, events.StationAdded, out)
	return out, nil
}

// Restore replaces the active set with persisted stations. Stations persisted
// as running get a fresh tick handle.
func (r *Registry) Restore(stations []Station) {
	r.mu.Lock()
	for id := range r.handles {
		r.cancelLocked(id)
	}
	r.stations = make(map[string]*Station, len(stations))
	r.order = r.order[:0]
	for i := range stations {
		st := stations[i].clone()
		if st.ID == "" {
			st.ID = r.newID()
		}
		if _, dup := r.stations[st.ID]; dup {
			continue
		}
		st.Kind = r.kind
		r.stations[st.ID] = &st
		r.order = append(r.order, st.ID)
		if st.IsRunning {
			r.scheduleLocked(st.ID)
		}
	}
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (Station, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stations[id]
	if !ok {
		return Station{}, ErrNotFound
	}
	return st.clone(), nil
}

// List returns copies of the active stations in insertion order.
func (r *Registry) List() []Station {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Station, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.stations[id].clone())
	}
	return out
}

// FindByClient returns the station linked to clientID. Stations without a
// client link fall back to an exact title match on fullName.
func (r *Registry) FindByClient(clientID, fullName string) (Station, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if clientID != "" {
		for _, id := range r.order {
			if st := r.stations[id]; st.ClientID == clientID {
				return st.clone(), true
			}
		}
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return Station{}, false
	}
	for _, id := range r.order {
		if st := r.stations[id]; st.ClientID == "" && st.Title == fullName {
			return st.clone(), true
		}
	}
	return Station{}, false
}

func (r *Registry) Rename(ctx context.Context, id, title string) (Station, error) {
	r.mu.Lock()
	st, ok := r.stations[id]
	if !ok {
		r.mu.Unlock()
		return Station{}, ErrNotFound
	}
	st.Title = strings.TrimSpace(title)
	out := st.clone()
	r.mu.Unlock()

	r.publish(ctx, events.StationUpdated, out)
	return out, nil
}

// Remove deletes a station and cancels its tick handle.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	r.mu.Lock()
	st, ok := r.stations[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	r.cancelLocked(id)
	delete(r.stations, id)
	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	out := st.clone()
	r.mu.Unlock()

	r.publish(ctx, events.StationRemoved, out)
	return nil
}

// StartOptions carries table-only start inputs.
type StartOptions struct {
	Players          []string
	CustomerFullName string
}

// Start begins or continues ticking. Starting a running station is a no-op.
func (r *Registry) Start(ctx context.Context, id string, opts StartOptions) (Station, error) {
	r.mu.Lock()
	st, ok := r.stations[id]
	if !ok {
		r.mu.Unlock()
		return Station{}, ErrNotFound
	}
	if st.IsRunning || r.handles[id] != nil {
		out := st.clone()
		r.mu.Unlock()
		log.Debug().Str("station_id", id).Msg("start ignored, station already running")
		return out, nil
	}

	if r.kind == KindTable {
		if len(opts.Players) > 0 {
			roster := NewRoster(opts.Players)
			if len(roster) < 2 {
				r.mu.Unlock()
				return Station{}, ErrTooFewPlayers
			}
			st.Players = roster
		}
		if st.SessionCode == "" {
			st.SessionCode = NewSessionCode()
		}
	}
	if name := strings.TrimSpace(opts.CustomerFullName); name != "" {
		st.CustomerFullName = name
	}

	if st.StartedAt == nil {
		st.SetRate(r.rates.RateFor(r.kind, st.TableKind))
	}
	st.Start(r.clock.Now())
	r.scheduleLocked(id)
	out := st.clone()
	r.mu.Unlock()

	r.publish(ctx, events.StationStarted, out)
	return out, nil
}

// Stop cancels the tick handle and freezes the station. A station that is not
// running yields a nil draft.
func (r *Registry) Stop(ctx context.Context, id string) (*StopDraft, error) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	r.mu.Lock()
	st, ok := r.stations[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNotFound
	}
	r.cancelLocked(id)
	draft, stopped := st.Stop(r.clock.Now())
	r.mu.Unlock()

	if !stopped {
		log.Debug().Str("station_id", id).Msg("stop ignored, station not running")
		return nil, nil
	}
	r.publish(ctx, events.StationStopped, draft)
	return &draft, nil
}

// Restart cancels any tick handle and discards the unbilled session.
func (r *Registry) Restart(ctx context.Context, id string) (Station, error) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	r.mu.Lock()
	st, ok := r.stations[id]
	if !ok {
		r.mu.Unlock()
		return Station{}, ErrNotFound
	}
	r.cancelLocked(id)
	st.Restart()
	out := st.clone()
	r.mu.Unlock()

	r.publish(ctx, events.StationRestarted, out)
	return out, nil
}

// Resume continues a stopped station, for instance after a cancelled checkout.
func (r *Registry) Resume(ctx context.Context, id string) (Station, error) {
	r.mu.Lock()
	st, ok := r.stations[id]
	if !ok {
		r.mu.Unlock()
		return Station{}, ErrNotFound
	}
	if r.handles[id] != nil || !st.Resume(r.clock.Now()) {
		out := st.clone()
		r.mu.Unlock()
		log.Debug().Str("station_id", id).Msg("resume ignored, station already running")
		return out, nil
	}
	r.scheduleLocked(id)
	out := st.clone()
	r.mu.Unlock()

	r.publish(ctx, events.StationResumed, out)
	return out, nil
}

// Reprice applies the current rate to stations that have not started a
// session yet.
func (r *Registry) Reprice() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.stations {
		if st.StartedAt == nil {
			st.SetRate(r.rates.RateFor(r.kind, st.TableKind))
		}
	}
}

// ActiveTimers reports how many tick handles are live.
func (r *Registry) ActiveTimers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Close cancels every tick handle. Stations keep their running flag so that
// they can be persisted and restored.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.handles {
		r.cancelLocked(id)
	}
}

func (r *Registry) scheduleLocked(id string) {
	if _, exists := r.handles[id]; exists {
		return
	}
	h := &tickHandle{
		ticker: r.clock.NewTicker(tickInterval),
		done:   make(chan struct{}),
	}
	r.handles[id] = h
	go r.run(id, h)
}

func (r *Registry) cancelLocked(id string) {
	h, ok := r.handles[id]
	if !ok {
		return
	}
	h.ticker.Stop()
	close(h.done)
	delete(r.handles, id)
}

func (r *Registry) run(id string, h *tickHandle) {
	for {
		select {
		case <-h.done:
			return
		case <-h.ticker.Chan():
			if !r.tick(id, h) {
				return
			}
		}
	}
}

// tick applies one second to id if h is still its live handle. It reports
// false when the handle is stale and the loop should exit.
func (r *Registry) tick(id string, h *tickHandle) bool {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	r.mu.Lock()
	if r.handles[id] != h {
		r.mu.Unlock()
		return false
	}
	st, ok := r.stations[id]
	if !ok {
		r.cancelLocked(id)
		r.mu.Unlock()
		log.Debug().Str("station_id", id).Msg("tick for removed station dropped")
		return false
	}
	if !st.Tick() {
		r.mu.Unlock()
		return true
	}
	out := st.clone()
	r.mu.Unlock()

	r.publish(context.Background(), events.StationTicked, out)
	return true
}

func (r *Registry) publish(ctx context.Context, eventType string, payload any) {
	var subject string
	switch p := payload.(type) {
	case Station:
		subject = p.ID
	case StopDraft:
		subject = p.StationID
	}
	r.pub.Publish(ctx, events.New(eventType, subject, payload, r.clock.Now()))
}
