package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gamecenter/internal/events"
	"gamecenter/internal/station"

	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidTiming = errors.New("timing must be start or stop")
	ErrInvalidRate   = errors.New("rate must be a non-negative whole number")
)

// Timing says when a table session collects the customer's name.
type Timing string

const (
	AskOnStart Timing = "start"
	AskOnStop  Timing = "stop"
)

// AppSettings is persisted under the appSettings key. CostPerHour keeps the
// string encoding operators type into the settings form.
type AppSettings struct {
	DarkVeilEnabled bool             `json:"darkVeilEnabled"`
	DarkVeilOpacity float64          `json:"darkVeilOpacity"`
	DarkVeilTint    string           `json:"darkVeilTint"`
	CostPerHour     string           `json:"costPerHour"`
	GameCenterName  string           `json:"gameCenterName"`
	BackgroundImage *string          `json:"backgroundImage"`
	HomeShowTopTabs bool             `json:"homeShowTopTabs"`
	HomeDefaultTab  station.Kind     `json:"homeDefaultTab"`
	RatesByKind     map[string]int64 `json:"ratesByKind,omitempty"`
}

// TableSettings is persisted under the tableSettings key.
type TableSettings struct {
	AskCustomerTimingByKind map[station.TableKind]Timing `json:"askCustomerTimingByKind"`
}

func DefaultApp() AppSettings {
	return AppSettings{
		DarkVeilEnabled: true,
		DarkVeilOpacity: 0.5,
		DarkVeilTint:    "#ffffff",
		HomeDefaultTab:  station.KindStable,
	}
}

func DefaultTable() TableSettings {
	return TableSettings{AskCustomerTimingByKind: map[station.TableKind]Timing{
		station.Snooker:   AskOnStop,
		station.EightBall: AskOnStop,
	}}
}

// Billing holds the configured fallback rates, used when the operator has set
// none.
type Billing struct {
	DefaultRate int64
	Rates       map[string]int64
}

// Service holds the current settings and answers rate lookups for the
// station registries.
type Service struct {
	billing Billing
	clock   clockwork.Clock
	pub     events.Publisher

	mu    sync.RWMutex
	app   AppSettings
	table TableSettings
}

type Option func(*Service)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithPublisher(pub events.Publisher) Option {
	return func(s *Service) { s.pub = pub }
}

// NewService keys the configured rates case-insensitively, since config
// loaders lowercase map keys.
func NewService(billing Billing, opts ...Option) *Service {
	rates := make(map[string]int64, len(billing.Rates))
	for k, v := range billing.Rates {
		rates[strings.ToLower(k)] = v
	}
	billing.Rates = rates
	s := &Service{
		billing: billing,
		clock:   clockwork.NewRealClock(),
		pub:     events.Discard,
		app:     DefaultApp(),
		table:   DefaultTable(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads persisted settings over the defaults. Nil or empty input
// leaves the defaults in place; table timings merge per kind.
func (s *Service) Restore(app, table json.RawMessage) error {
	nextApp := DefaultApp()
	if err := mergeJSON(&nextApp, app); err != nil {
		return fmt.Errorf("app settings: %w", err)
	}
	nextTable := DefaultTable()
	if err := mergeJSON(&nextTable, table); err != nil {
		return fmt.Errorf("table settings: %w", err)
	}
	if err := validateTable(nextTable); err != nil {
		return err
	}

	s.mu.Lock()
	s.app, s.table = nextApp, nextTable
	s.mu.Unlock()
	return nil
}

func (s *Service) App() AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneApp(s.app)
}

func (s *Service) Table() TableSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTable(s.table)
}

// SaveAppPartial merges a JSON patch into the app settings.
func (s *Service) SaveAppPartial(ctx context.Context, patch json.RawMessage) (AppSettings, error) {
	s.mu.Lock()
	next := cloneApp(s.app)
	if err := mergeJSON(&next, patch); err != nil {
		s.mu.Unlock()
		return AppSettings{}, err
	}
	if _, err := parseRate(next.CostPerHour); err != nil {
		s.mu.Unlock()
		return AppSettings{}, err
	}
	for _, v := range next.RatesByKind {
		if v < 0 {
			s.mu.Unlock()
			return AppSettings{}, ErrInvalidRate
		}
	}
	s.app = next
	out := cloneApp(next)
	s.mu.Unlock()

	s.pub.Publish(ctx, events.New(events.SettingsChanged, "appSettings", out, s.clock.Now()))
	return out, nil
}

// SaveTablePartial merges a JSON patch into the table settings.
func (s *Service) SaveTablePartial(ctx context.Context, patch json.RawMessage) (TableSettings, error) {
	s.mu.Lock()
	next := cloneTable(s.table)
	if err := mergeJSON(&next, patch); err != nil {
		s.mu.Unlock()
		return TableSettings{}, err
	}
	if err := validateTable(next); err != nil {
		s.mu.Unlock()
		return TableSettings{}, err
	}
	s.table = next
	out := cloneTable(next)
	s.mu.Unlock()

	s.pub.Publish(ctx, events.New(events.SettingsChanged, "tableSettings", out, s.clock.Now()))
	return out, nil
}

func (s *Service) SetAskCustomerTiming(ctx context.Context, kind station.TableKind, timing Timing) (TableSettings, error) {
	if !kind.Valid() {
		return TableSettings{}, station.ErrInvalidKind
	}
	patch, err := json.Marshal(TableSettings{AskCustomerTimingByKind: map[station.TableKind]Timing{kind: timing}})
	if err != nil {
		return TableSettings{}, err
	}
	return s.SaveTablePartial(ctx, patch)
}

// AsksOnStart reports whether sessions of kind collect the customer at start.
func (s *Service) AsksOnStart(kind station.TableKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.AskCustomerTimingByKind[kind] == AskOnStart
}

// RateFor picks the hourly rate for a station: an operator rate for the table
// kind, then for the station kind, then the operator's general rate, then
// the configured billing rates.
func (s *Service) RateFor(kind station.Kind, table station.TableKind) int64 {
	s.mu.RLock()
	app := s.app
	s.mu.RUnlock()

	if table != "" {
		if v, ok := app.RatesByKind[string(table)]; ok {
			return v
		}
	}
	if v, ok := app.RatesByKind[string(kind)]; ok {
		return v
	}
	if v, err := parseRate(app.CostPerHour); err == nil && v > 0 {
		return v
	}
	if table != "" {
		if v, ok := s.billing.Rates[strings.ToLower(string(table))]; ok {
			return v
		}
	}
	if v, ok := s.billing.Rates[strings.ToLower(string(kind))]; ok {
		return v
	}
	return s.billing.DefaultRate
}

// parseRate reads the operator-typed general rate. Blank is zero.
func parseRate(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, ErrInvalidRate
	}
	return v, nil
}

func validateTable(t TableSettings) error {
	for kind, timing := range t.AskCustomerTimingByKind {
		if !kind.Valid() {
			return fmt.Errorf("%w: %q", station.ErrInvalidKind, kind)
		}
		if timing != AskOnStart && timing != AskOnStop {
			return fmt.Errorf("%w: %q", ErrInvalidTiming, timing)
		}
	}
	return nil
}

// mergeJSON decodes raw over dst, so absent fields keep their current value
// and map entries are added to the existing map.
func mergeJSON(dst any, raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func cloneApp(a AppSettings) AppSettings {
	c := a
	if a.BackgroundImage != nil {
		img := *a.BackgroundImage
		c.BackgroundImage = &img
	}
	if a.RatesByKind != nil {
		c.RatesByKind = make(map[string]int64, len(a.RatesByKind))
		for k, v := range a.RatesByKind {
			c.RatesByKind[k] = v
		}
	}
	return c
}

func cloneTable(t TableSettings) TableSettings {
	c := TableSettings{AskCustomerTimingByKind: make(map[station.TableKind]Timing, len(t.AskCustomerTimingByKind))}
	for k, v := range t.AskCustomerTimingByKind {
		c.AskCustomerTimingByKind[k] = v
	}
	return c
}
