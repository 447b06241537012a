package gamecenter

import (
	"context"
	"strings"

	"gamecenter/internal/checkout"
	"gamecenter/internal/station"

	"github.com/rs/zerolog/log"
)

func (a *App) Registry(kind station.Kind) (*station.Registry, error) {
	reg, ok := a.registries[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	return reg, nil
}

func (a *App) Stations(kind station.Kind) ([]station.Station, error) {
	reg, err := a.Registry(kind)
	if err != nil {
		return nil, err
	}
	return reg.List(), nil
}

func (a *App) AddStation(ctx context.Context, kind station.Kind, in station.NewStation) (station.Station, error) {
	reg, err := a.Registry(kind)
	if err != nil {
		return station.Station{}, err
	}
	return reg.Add(ctx, in)
}

// Start begins a session. A table whose kind collects the customer at start
// refuses a fresh session without a customer name.
func (a *App) Start(ctx context.Context, kind station.Kind, id string, opts station.StartOptions) (station.Station, error) {
	reg, err := a.Registry(kind)
	if err != nil {
		return station.Station{}, err
	}
	if kind == station.KindTable {
		st, err := reg.Get(id)
		if err != nil {
			return station.Station{}, err
		}
		fresh := st.StartedAt == nil && !st.IsRunning
		if fresh && a.Settings.AsksOnStart(st.TableKind) &&
			strings.TrimSpace(opts.CustomerFullName) == "" && st.CustomerFullName == "" {
			return station.Station{}, ErrCustomerRequired
		}
	}
	return reg.Start(ctx, id, opts)
}

// Stop freezes a running station and returns its draft. Stopping an idle
// station yields a nil draft.
func (a *App) Stop(ctx context.Context, kind station.Kind, id string) (*station.StopDraft, error) {
	reg, err := a.Registry(kind)
	if err != nil {
		return nil, err
	}
	return reg.Stop(ctx, id)
}

func (a *App) Resume(ctx context.Context, kind station.Kind, id string) (station.Station, error) {
	reg, err := a.Registry(kind)
	if err != nil {
		return station.Station{}, err
	}
	return reg.Resume(ctx, id)
}

func (a *App) Restart(ctx context.Context, kind station.Kind, id string) (station.Station, error) {
	reg, err := a.Registry(kind)
	if err != nil {
		return station.Station{}, err
	}
	return reg.Restart(ctx, id)
}

func (a *App) Rename(ctx context.Context, kind station.Kind, id, title string) (station.Station, error) {
	reg, err := a.Registry(kind)
	if err != nil {
		return station.Station{}, err
	}
	return reg.Rename(ctx, id, title)
}

func (a *App) RemoveStation(ctx context.Context, kind station.Kind, id string) error {
	reg, err := a.Registry(kind)
	if err != nil {
		return err
	}
	return reg.Remove(ctx, id)
}

// Search filters the stations of kind through the client directory.
func (a *App) Search(kind station.Kind, f station.Filter) ([]station.Station, error) {
	reg, err := a.Registry(kind)
	if err != nil {
		return nil, err
	}
	return station.Search(reg.List(), a.Clients.Identities(), f), nil
}

// Checkout records a stopped session. When the operator picked no client,
// the draft's client link is used, then a best-effort match on the entered
// identity. A table is reset once its session is checked out.
func (a *App) Checkout(ctx context.Context, draft station.StopDraft, c checkout.Customer, p checkout.Payment) (checkout.PlayHistoryItem, error) {
	if c.MatchedClient == nil {
		if client, ok := a.matchClient(draft, c); ok {
			c.MatchedClient = &client
		}
	}
	item, err := a.History.Checkout(ctx, draft, c, p)
	if err != nil {
		return checkout.PlayHistoryItem{}, err
	}
	if draft.Kind == station.KindTable && draft.StationID != "" {
		if _, err := a.registries[station.KindTable].Restart(ctx, draft.StationID); err != nil {
			log.Warn().Err(err).Str("station_id", draft.StationID).Msg("failed to reset table after checkout")
		}
	}
	return item, nil
}

func (a *App) matchClient(draft station.StopDraft, c checkout.Customer) (checkout.Client, bool) {
	if draft.ClientID != "" {
		if client, err := a.Clients.Get(draft.ClientID); err == nil {
			return client, true
		}
	}
	name := strings.TrimSpace(c.FullName)
	if name == "" {
		name = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	if name == "" {
		name = draft.CustomerFullName
	}
	if name == "" && draft.Kind == station.KindStable {
		name = draft.Title
	}
	return checkout.MatchClient(a.Clients.List(), checkout.Lookup{FullName: name, PhoneNumber: c.PhoneNumber})
}

// StopAndCheckout stops a running station and checks it out in one step.
func (a *App) StopAndCheckout(ctx context.Context, kind station.Kind, id string, c checkout.Customer, p checkout.Payment) (checkout.PlayHistoryItem, error) {
	draft, err := a.Stop(ctx, kind, id)
	if err != nil {
		return checkout.PlayHistoryItem{}, err
	}
	if draft == nil {
		return checkout.PlayHistoryItem{}, ErrNotRunning
	}
	return a.Checkout(ctx, *draft, c, p)
}
