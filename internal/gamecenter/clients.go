package gamecenter

import (
	"context"
	"errors"

	"gamecenter/internal/checkout"
	"gamecenter/internal/station"
)

// AddStableClient registers a client and gives them a stable seat linked by
// client id.
func (a *App) AddStableClient(ctx context.Context, in checkout.NewClient) (checkout.Client, station.Station, error) {
	c, err := a.Clients.Add(ctx, in)
	if err != nil {
		return checkout.Client{}, station.Station{}, err
	}
	seat, err := a.registries[station.KindStable].Add(ctx, station.NewStation{Title: c.FullName(), ClientID: c.ID})
	if err != nil {
		return c, station.Station{}, err
	}
	return c, seat, nil
}

// UpdateClient edits a client and keeps the title of their stable seat in
// step with the new name.
func (a *App) UpdateClient(ctx context.Context, id string, patch checkout.ClientPatch) (checkout.Client, error) {
	old, err := a.Clients.Get(id)
	if err != nil {
		return checkout.Client{}, err
	}
	c, err := a.Clients.Update(ctx, id, patch)
	if err != nil {
		return checkout.Client{}, err
	}
	stable := a.registries[station.KindStable]
	if seat, ok := stable.FindByClient(c.ID, old.FullName()); ok && seat.Title != c.FullName() {
		if _, err := stable.Rename(ctx, seat.ID, c.FullName()); err != nil {
			return c, err
		}
	}
	return c, nil
}

// RemoveClient deletes a client together with their stable seat. History
// rows keep their snapshot of the client.
func (a *App) RemoveClient(ctx context.Context, id string) error {
	c, err := a.Clients.Get(id)
	if err != nil {
		return err
	}
	stable := a.registries[station.KindStable]
	if seat, ok := stable.FindByClient(c.ID, c.FullName()); ok {
		if err := stable.Remove(ctx, seat.ID); err != nil && !errors.Is(err, station.ErrNotFound) {
			return err
		}
	}
	return a.Clients.Remove(ctx, id)
}

func (a *App) SuggestCustomers(query string) []checkout.Suggestion {
	return checkout.SuggestCustomers(a.History.List(), query)
}

// MatchClient exposes the checkout auto-match for forms.
func (a *App) MatchClient(q checkout.Lookup) (checkout.Client, bool) {
	return checkout.MatchClient(a.Clients.List(), q)
}
