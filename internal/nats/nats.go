package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"gamecenter/config"
	"gamecenter/internal/events"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

func Connect(cfg *config.NATSConfig) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(cfg.URL(), nats.Name("gamecenter"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return nc, js, nil
}

// ConfigureStream creates the stream, or updates it when it already exists.
func ConfigureStream(js nats.JetStreamContext, streamCfg *config.StreamConfig) error {
	sc := &nats.StreamConfig{
		Name:     streamCfg.Name,
		Subjects: streamCfg.Subjects,
	}
	if _, err := js.StreamInfo(streamCfg.Name); err == nil {
		if _, err := js.UpdateStream(sc); err != nil {
			return fmt.Errorf("failed to update stream: %w", err)
		}
		return nil
	}
	if _, err := js.AddStream(sc); err != nil {
		return fmt.Errorf("failed to add stream: %w", err)
	}
	return nil
}

// Forwarder republishes domain events onto JetStream under
// <prefix>.<event type>. Ticks stay in process.
type Forwarder struct {
	js     nats.JetStreamContext
	prefix string
}

func NewForwarder(js nats.JetStreamContext, prefix string) *Forwarder {
	return &Forwarder{js: js, prefix: prefix}
}

func (f *Forwarder) Subject(eventType string) string {
	return f.prefix + "." + eventType
}

// Handle is an events.Handler. Publishing is asynchronous; failures are
// logged and the event is not retried.
func (f *Forwarder) Handle(_ context.Context, ev events.Event) {
	if ev.Type == events.StationTicked {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event_type", ev.Type).Msg("failed to encode event")
		return
	}
	if _, err := f.js.PublishAsync(f.Subject(ev.Type), data); err != nil {
		log.Warn().Err(err).Str("event_type", ev.Type).Msg("failed to publish event")
	}
}
