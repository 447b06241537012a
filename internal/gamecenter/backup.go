package gamecenter

import (
	"context"
	"fmt"

	"gamecenter/internal/backup"
	"gamecenter/internal/station"
	"gamecenter/internal/store"
)

// Export snapshots the timer cards, tournaments and app settings.
func (a *App) Export() (backup.Snapshot, error) {
	return backup.New(
		a.registries[station.KindTimer].List(),
		a.Tournaments.List(),
		a.Settings.App(),
		a.clock.Now(),
	)
}

// Import replaces the sections present in snap. Settings merge over the
// current ones.
func (a *App) Import(ctx context.Context, snap backup.Snapshot) error {
	if snap.Settings != nil {
		if _, err := a.Settings.SaveAppPartial(ctx, snap.Settings); err != nil {
			return fmt.Errorf("import settings: %w", err)
		}
	}
	if snap.GameCards != nil {
		a.registries[station.KindTimer].Restore(snap.GameCards)
		a.saveStations(station.KindTimer)
	}
	if snap.Tournaments != nil {
		a.Tournaments.Restore(snap.Tournaments)
		a.save(store.KeyTournaments, a.Tournaments.List())
	}
	return nil
}
