package station

import (
	"bytes"
	"encoding/json"
	"time"
)

type Kind string

const (
	KindTimer  Kind = "timer"
	KindStable Kind = "stable"
	KindTable  Kind = "table"
)

func (k Kind) Valid() bool {
	switch k {
	case KindTimer, KindStable, KindTable:
		return true
	}
	return false
}

type TableKind string

const (
	Snooker   TableKind = "snooker"
	EightBall TableKind = "eightBall"
)

func (k TableKind) Valid() bool {
	return k == Snooker || k == EightBall
}

// Player is one entry of a table roster.
type Player struct {
	Code     string `json:"code"`
	FullName string `json:"fullName"`
}

// Station is a billable timed unit: an ad-hoc timer card, a stable seat or a
// billiard table.
type Station struct {
	ID               string     `json:"id"`
	Kind             Kind       `json:"kind"`
	TableKind        TableKind  `json:"tableKind,omitempty"`
	Title            string     `json:"title"`
	ClientID         string     `json:"clientId,omitempty"`
	ElapsedSeconds   int64      `json:"elapsedSeconds"`
	IsRunning        bool       `json:"isRunning"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	StoppedAt        *time.Time `json:"stoppedAt,omitempty"`
	CostPerHour      int64      `json:"costPerHour"`
	TotalCost        int64      `json:"totalCost"`
	Date             *time.Time `json:"date,omitempty"`
	SessionCode      string     `json:"sessionCode,omitempty"`
	CustomerFullName string     `json:"customerFullName,omitempty"`
	Players          []Player   `json:"players,omitempty"`
}

// StopDraft is the frozen timing and cost of a station at the moment it was
// stopped, pending checkout.
type StopDraft struct {
	StationID        string     `json:"stationId"`
	Kind             Kind       `json:"kind"`
	TableKind        TableKind  `json:"tableKind,omitempty"`
	Title            string     `json:"title"`
	ClientID         string     `json:"clientId,omitempty"`
	ElapsedSeconds   int64      `json:"elapsedSeconds"`
	TotalCost        int64      `json:"totalCost"`
	CostPerHour      int64      `json:"costPerHour"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	StoppedAt        time.Time  `json:"stoppedAt"`
	SessionDate      *time.Time `json:"sessionDate,omitempty"`
	SessionCode      string     `json:"sessionCode,omitempty"`
	CustomerFullName string     `json:"customerFullName,omitempty"`
	Players          []Player   `json:"players,omitempty"`
}

// Cost converts elapsed seconds into whole currency units at costPerHour,
// rounding half up. A non-positive rate is free.
func Cost(elapsedSeconds, costPerHour int64) int64 {
	if costPerHour <= 0 || elapsedSeconds <= 0 {
		return 0
	}
	return (elapsedSeconds*costPerHour + 1800) / 3600
}

// Start marks the station running. It reports false when the station was
// already running.
func (s *Station) Start(now time.Time) bool {
	if s.IsRunning {
		return false
	}
	s.IsRunning = true
	s.StoppedAt = nil
	if s.StartedAt == nil {
		started := now
		s.StartedAt = &started
	}
	return true
}

// Tick accrues one second. Stopped stations ignore ticks.
func (s *Station) Tick() bool {
	if !s.IsRunning {
		return false
	}
	s.ElapsedSeconds++
	s.TotalCost = Cost(s.ElapsedSeconds, s.CostPerHour)
	return true
}

// Stop freezes the station and returns the draft to hand to checkout.
func (s *Station) Stop(now time.Time) (StopDraft, bool) {
	if !s.IsRunning {
		return StopDraft{}, false
	}
	stopped := now
	s.IsRunning = false
	s.StoppedAt = &stopped
	s.TotalCost = Cost(s.ElapsedSeconds, s.CostPerHour)
	return s.draft(), true
}

// Restart discards the current unbilled session.
func (s *Station) Restart() {
	s.IsRunning = false
	s.ElapsedSeconds = 0
	s.TotalCost = 0
	s.StartedAt = nil
	s.StoppedAt = nil
	s.SessionCode = ""
	s.CustomerFullName = ""
	s.Players = nil
}

// Resume continues a stopped station without losing elapsed time.
func (s *Station) Resume(now time.Time) bool {
	if s.IsRunning {
		return false
	}
	s.IsRunning = true
	s.StoppedAt = nil
	if s.StartedAt == nil {
		started := now
		s.StartedAt = &started
	}
	return true
}

// SetRate changes the rate in effect and recomputes the running cost.
func (s *Station) SetRate(costPerHour int64) {
	s.CostPerHour = costPerHour
	s.TotalCost = Cost(s.ElapsedSeconds, s.CostPerHour)
}

func (s *Station) draft() StopDraft {
	d := StopDraft{
		StationID:        s.ID,
		Kind:             s.Kind,
		TableKind:        s.TableKind,
		Title:            s.Title,
		ClientID:         s.ClientID,
		ElapsedSeconds:   s.ElapsedSeconds,
		TotalCost:        s.TotalCost,
		CostPerHour:      s.CostPerHour,
		StartedAt:        copyTime(s.StartedAt),
		SessionDate:      copyTime(s.Date),
		SessionCode:      s.SessionCode,
		CustomerFullName: s.CustomerFullName,
		Players:          append([]Player(nil), s.Players...),
	}
	if s.StoppedAt != nil {
		d.StoppedAt = *s.StoppedAt
	}
	return d
}

func (s *Station) clone() Station {
	c := *s
	c.StartedAt = copyTime(s.StartedAt)
	c.StoppedAt = copyTime(s.StoppedAt)
	c.Date = copyTime(s.Date)
	c.Players = append([]Player(nil), s.Players...)
	return c
}

// UnmarshalJSON accepts the legacy card layout where the id is numeric and
// elapsed seconds are stored under "time".
func (s *Station) UnmarshalJSON(data []byte) error {
	type plain Station
	aux := struct {
		*plain
		ID     json.RawMessage `json:"id"`
		Legacy *int64          `json:"time"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	raw := bytes.TrimSpace(aux.ID)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		s.ID = ""
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &s.ID); err != nil {
			return err
		}
	default:
		s.ID = string(raw)
	}

	if s.ElapsedSeconds == 0 && aux.Legacy != nil {
		s.ElapsedSeconds = *aux.Legacy
	}
	if s.Kind == "" {
		s.Kind = KindTimer
	}
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
