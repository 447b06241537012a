package events

import (
	"context"
	"encoding/json"
	"time"
)

const (
	StationAdded      = "station.added"
	StationUpdated    = "station.updated"
	StationStarted    = "station.started"
	StationTicked     = "station.ticked"
	StationStopped    = "station.stopped"
	StationResumed    = "station.resumed"
	StationRestarted  = "station.restarted"
	StationRemoved    = "station.removed"
	CheckoutCompleted = "checkout.completed"
	PaymentRecorded   = "payment.recorded"
	HistoryEdited     = "history.edited"
	HistoryDeleted    = "history.deleted"
	ClientAdded       = "client.added"
	ClientUpdated     = "client.updated"
	ClientRemoved     = "client.removed"
	TournamentUpdated = "tournament.updated"
	TournamentDeleted = "tournament.deleted"
	SettingsChanged   = "settings.changed"
)

// Event is the envelope every publisher in the process hands to the bus.
type Event struct {
	Type       string          `json:"event_type"`
	Subject    string          `json:"subject,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// New builds an event, marshalling payload. A payload that cannot be
// marshalled is dropped and the event is still returned.
func New(eventType, subject string, payload any, at time.Time) Event {
	ev := Event{Type: eventType, Subject: subject, OccurredAt: at}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}

// Decode unmarshals the payload into dst.
func (e Event) Decode(dst any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, dst)
}

type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) {}
