package temporal

import (
	"context"
	"errors"

	"gamecenter/internal/bracket"

	"go.temporal.io/sdk/activity"
)

// Activities persist workflow state into the tournament collection.
type Activities struct {
	Tournaments *bracket.Tournaments
}

// TournamentChange is one accepted step: the workflow's bracket before and
// after applying it.
type TournamentChange struct {
	Before bracket.Tournament `json:"before"`
	After  bracket.Tournament `json:"after"`
}

// SaveTournament stores the new bracket unless the local copy moved on
// without the workflow, and returns what the collection now holds. A
// tournament deleted meanwhile stays deleted.
func (a *Activities) SaveTournament(ctx context.Context, change TournamentChange) (bracket.Tournament, error) {
	logger := activity.GetLogger(ctx)
	saved, err := a.Tournaments.Replace(ctx, change.Before, change.After)
	switch {
	case errors.Is(err, bracket.ErrNotFound):
		logger.Info("Tournament gone, skipping save", "tournament", change.After.ID)
		return change.After, nil
	case errors.Is(err, bracket.ErrStale):
		logger.Warn("Workflow copy is behind the local tournament, keeping local", "tournament", change.After.ID)
		return saved, nil
	case err != nil:
		return bracket.Tournament{}, err
	}
	return saved, nil
}
