package gamecenter

import (
	"context"

	"gamecenter/internal/bracket"
)

// TournamentEngine applies bracket progress. The local engine mutates the
// collection directly; a durable engine may also record each step elsewhere.
type TournamentEngine interface {
	SelectWinner(ctx context.Context, id string, round, match int, winner string) (bracket.Tournament, error)
	Revert(ctx context.Context, id string, round, match int) (bracket.Tournament, error)
	Delete(ctx context.Context, id string) error
}

type LocalEngine struct {
	Tournaments *bracket.Tournaments
}

func (e LocalEngine) SelectWinner(ctx context.Context, id string, round, match int, winner string) (bracket.Tournament, error) {
	return e.Tournaments.SelectWinner(ctx, id, round, match, winner)
}

func (e LocalEngine) Revert(ctx context.Context, id string, round, match int) (bracket.Tournament, error) {
	return e.Tournaments.Revert(ctx, id, round, match)
}

func (e LocalEngine) Delete(ctx context.Context, id string) error {
	return e.Tournaments.Delete(ctx, id)
}

// CreateTournament builds and saves a new bracket.
func (a *App) CreateTournament(ctx context.Context, in bracket.NewTournament) (bracket.Tournament, error) {
	return a.Tournaments.Create(ctx, in)
}

func (a *App) SelectWinner(ctx context.Context, id string, round, match int, winner string) (bracket.Tournament, error) {
	return a.engine.SelectWinner(ctx, id, round, match, winner)
}

func (a *App) RevertMatch(ctx context.Context, id string, round, match int) (bracket.Tournament, error) {
	return a.engine.Revert(ctx, id, round, match)
}

func (a *App) DeleteTournament(ctx context.Context, id string) error {
	return a.engine.Delete(ctx, id)
}
