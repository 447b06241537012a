// Package gamecenter wires the station registries, the checkout recorder, the
// client directory, tournaments and settings into one application, and keeps
// the key/value store in step with every change.
package gamecenter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gamecenter/internal/bracket"
	"gamecenter/internal/checkout"
	"gamecenter/internal/events"
	"gamecenter/internal/settings"
	"gamecenter/internal/station"
	"gamecenter/internal/store"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownKind      = errors.New("unknown station kind")
	ErrCustomerRequired = errors.New("customer name is required to start this table")
	ErrNotRunning       = errors.New("station is not running")
)

// stationKeys maps each station kind to the store key its registry is saved
// under.
var stationKeys = map[station.Kind]string{
	station.KindTimer:  store.KeyGameCards,
	station.KindStable: store.KeyStableSeats,
	station.KindTable:  store.KeyTableSessions,
}

type options struct {
	clock   clockwork.Clock
	loc     *time.Location
	billing settings.Billing
	retry   time.Duration
	newID   func() string
}

type Option func(*options)

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithLocation sets the time zone daily reports are cut in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

func WithBilling(b settings.Billing) Option {
	return func(o *options) { o.billing = b }
}

func WithRetryInterval(d time.Duration) Option {
	return func(o *options) { o.retry = d }
}

func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// App is the game center. Every mutating call updates memory synchronously;
// persistence follows asynchronously through a store.Writer driven by bus
// events.
type App struct {
	Bus         *events.Bus
	Settings    *settings.Service
	Clients     *checkout.Clients
	History     *checkout.Recorder
	Tournaments *bracket.Tournaments

	registries map[station.Kind]*station.Registry
	engine     TournamentEngine
	store      store.Store
	writer     *store.Writer
	clock      clockwork.Clock
	loc        *time.Location
	unsub      func()
}

func New(s store.Store, opts ...Option) *App {
	o := options{
		clock: clockwork.NewRealClock(),
		loc:   time.Local,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	bus := events.NewBus()
	app := &App{
		Bus:        bus,
		Settings:   settings.NewService(o.billing, settings.WithClock(o.clock), settings.WithPublisher(bus)),
		registries: make(map[station.Kind]*station.Registry, len(stationKeys)),
		store:      s,
		writer:     store.NewWriter(s, store.WithWriterClock(o.clock), store.WithRetryInterval(o.retry)),
		clock:      o.clock,
		loc:        o.loc,
	}
	shared := []checkout.Option{
		checkout.WithClock(o.clock),
		checkout.WithPublisher(bus),
		checkout.WithIDGenerator(o.newID),
	}
	app.Clients = checkout.NewClients(shared...)
	app.History = checkout.NewRecorder(shared...)
	app.Tournaments = bracket.NewTournaments(
		bracket.WithClock(o.clock),
		bracket.WithPublisher(bus),
		bracket.WithIDGenerator(o.newID),
	)
	for kind := range stationKeys {
		app.registries[kind] = station.NewRegistry(kind,
			station.WithClock(o.clock),
			station.WithRates(app.Settings),
			station.WithPublisher(bus),
			station.WithIDGenerator(o.newID),
		)
	}
	app.engine = LocalEngine{Tournaments: app.Tournaments}
	return app
}

// SetTournamentEngine replaces the in-process tournament engine, for
// instance with a durable workflow runner.
func (a *App) SetTournamentEngine(e TournamentEngine) {
	a.engine = e
}

// Open restores persisted state, subscribes persistence to the bus and
// starts the background writer.
func (a *App) Open(ctx context.Context) error {
	if err := a.restore(ctx); err != nil {
		return err
	}
	a.unsub = a.Bus.Subscribe(">", a.persist)
	if err := a.ensureTables(ctx); err != nil {
		return err
	}
	a.writer.Start()
	log.Info().
		Int("timers", len(a.registries[station.KindTimer].List())).
		Int("stable", len(a.registries[station.KindStable].List())).
		Int("history", len(a.History.List())).
		Int("tournaments", len(a.Tournaments.List())).
		Msg("game center state restored")
	return nil
}

// Close stops every tick handle, saves the stations one last time and
// flushes the writer.
func (a *App) Close(ctx context.Context) error {
	if a.unsub != nil {
		a.unsub()
	}
	for kind, reg := range a.registries {
		reg.Close()
		a.saveStations(kind)
	}
	return a.writer.Close(ctx)
}

func (a *App) restore(ctx context.Context) error {
	for kind, key := range stationKeys {
		stations, err := store.LoadOr(ctx, a.store, key, []station.Station{})
		if err != nil {
			return fmt.Errorf("restore %s: %w", key, err)
		}
		a.registries[kind].Restore(stations)
	}

	clients, err := store.LoadOr(ctx, a.store, store.KeyClients, []checkout.Client{})
	if err != nil {
		return fmt.Errorf("restore %s: %w", store.KeyClients, err)
	}
	a.Clients.Restore(clients)

	history, err := store.LoadOr(ctx, a.store, store.KeyHistory, []checkout.PlayHistoryItem{})
	if err != nil {
		return fmt.Errorf("restore %s: %w", store.KeyHistory, err)
	}
	a.History.Restore(history)

	tournaments, err := store.LoadOr(ctx, a.store, store.KeyTournaments, []bracket.Tournament{})
	if err != nil {
		return fmt.Errorf("restore %s: %w", store.KeyTournaments, err)
	}
	a.Tournaments.Restore(tournaments)

	appRaw, err := store.LoadRaw(ctx, a.store, store.KeyAppSettings)
	if err != nil {
		return fmt.Errorf("restore %s: %w", store.KeyAppSettings, err)
	}
	tableRaw, err := store.LoadRaw(ctx, a.store, store.KeyTableSettings)
	if err != nil {
		return fmt.Errorf("restore %s: %w", store.KeyTableSettings, err)
	}
	if err := a.Settings.Restore(appRaw, tableRaw); err != nil {
		return fmt.Errorf("restore settings: %w", err)
	}
	for _, reg := range a.registries {
		reg.Reprice()
	}
	return nil
}

// ensureTables makes sure there is one table station per table kind.
func (a *App) ensureTables(ctx context.Context) error {
	reg := a.registries[station.KindTable]
	have := make(map[station.TableKind]bool)
	for _, st := range reg.List() {
		have[st.TableKind] = true
	}
	for _, tk := range []station.TableKind{station.Snooker, station.EightBall} {
		if have[tk] {
			continue
		}
		if _, err := reg.Add(ctx, station.NewStation{Title: string(tk), TableKind: tk}); err != nil {
			return err
		}
	}
	return nil
}

// persist maps each event to the document it changed.
func (a *App) persist(_ context.Context, ev events.Event) {
	switch {
	case strings.HasPrefix(ev.Type, "station."):
		var st struct {
			Kind station.Kind `json:"kind"`
		}
		if err := ev.Decode(&st); err != nil {
			log.Warn().Err(err).Str("event_type", ev.Type).Msg("undecodable station event")
			return
		}
		a.saveStations(st.Kind)
	case ev.Type == events.CheckoutCompleted, ev.Type == events.PaymentRecorded,
		ev.Type == events.HistoryEdited, ev.Type == events.HistoryDeleted:
		a.save(store.KeyHistory, a.History.List())
	case strings.HasPrefix(ev.Type, "client."):
		a.save(store.KeyClients, a.Clients.List())
	case strings.HasPrefix(ev.Type, "tournament."):
		a.save(store.KeyTournaments, a.Tournaments.List())
	case ev.Type == events.SettingsChanged:
		switch ev.Subject {
		case store.KeyAppSettings:
			a.save(store.KeyAppSettings, a.Settings.App())
			for kind, reg := range a.registries {
				reg.Reprice()
				a.saveStations(kind)
			}
		case store.KeyTableSettings:
			a.save(store.KeyTableSettings, a.Settings.Table())
		}
	}
}

func (a *App) saveStations(kind station.Kind) {
	reg, ok := a.registries[kind]
	if !ok {
		return
	}
	a.save(stationKeys[kind], reg.List())
}

func (a *App) save(key string, v any) {
	if err := a.writer.Save(key, v); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to queue save")
	}
}

// Flush writes everything queued so far.
func (a *App) Flush(ctx context.Context) error {
	return a.writer.Flush(ctx)
}

// Store is the key/value store behind the app, for the raw document API.
func (a *App) Store() store.Store { return a.store }

func (a *App) Location() *time.Location { return a.loc }

func (a *App) Now() time.Time { return a.clock.Now() }
