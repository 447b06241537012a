package temporal

import (
	"context"
	"errors"
	"fmt"

	"gamecenter/config"
	"gamecenter/internal/bracket"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func Dial(cfg *config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    zerologAdapter{l: log.With().Str("component", "temporal").Logger()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Temporal client: %w", err)
	}
	return c, nil
}

// StartWorker registers the tournament workflow and its activities and
// starts polling taskQueue. Stop the returned worker on shutdown.
func StartWorker(c client.Client, taskQueue string, ts *bracket.Tournaments) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(TournamentWorkflow)
	w.RegisterActivity(&Activities{Tournaments: ts})
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return w, nil
}

// Engine applies bracket progress locally and mirrors every accepted step
// into the tournament's workflow, starting it on first use.
type Engine struct {
	client      client.Client
	taskQueue   string
	tournaments *bracket.Tournaments
}

func NewEngine(c client.Client, taskQueue string, ts *bracket.Tournaments) *Engine {
	return &Engine{client: c, taskQueue: taskQueue, tournaments: ts}
}

func (e *Engine) SelectWinner(ctx context.Context, id string, round, match int, winner string) (bracket.Tournament, error) {
	before, err := e.tournaments.Get(id)
	if err != nil {
		return bracket.Tournament{}, err
	}
	after, err := e.tournaments.SelectWinner(ctx, id, round, match, winner)
	if err != nil {
		return bracket.Tournament{}, err
	}
	e.signal(ctx, before, SignalSelectWinner, MatchRef{Round: round, Match: match, Winner: winner})
	return after, nil
}

func (e *Engine) Revert(ctx context.Context, id string, round, match int) (bracket.Tournament, error) {
	before, err := e.tournaments.Get(id)
	if err != nil {
		return bracket.Tournament{}, err
	}
	after, err := e.tournaments.Revert(ctx, id, round, match)
	if err != nil {
		return bracket.Tournament{}, err
	}
	e.signal(ctx, before, SignalRevert, MatchRef{Round: round, Match: match})
	return after, nil
}

func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.tournaments.Delete(ctx, id); err != nil {
		return err
	}
	if err := e.client.SignalWorkflow(ctx, WorkflowID(id), "", SignalClose, nil); err != nil {
		log.Debug().Err(err).Str("tournament_id", id).Msg("no tournament workflow to close")
	}
	return nil
}

// signal delivers step to the workflow of t, starting it from t when it is
// not running. The local collection stays authoritative, so a failure is
// only logged.
func (e *Engine) signal(ctx context.Context, t bracket.Tournament, name string, step MatchRef) {
	_, err := e.client.SignalWithStartWorkflow(ctx, WorkflowID(t.ID), name, step, client.StartWorkflowOptions{
		ID:        WorkflowID(t.ID),
		TaskQueue: e.taskQueue,
	}, TournamentWorkflow, t)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("tournament_id", t.ID).Str("signal", name).Msg("failed to signal tournament workflow")
	}
}

// zerologAdapter satisfies the SDK logger interface.
type zerologAdapter struct {
	l zerolog.Logger
}

func (z zerologAdapter) Debug(msg string, keyvals ...interface{}) {
	z.l.Debug().Fields(keyvals).Msg(msg)
}

func (z zerologAdapter) Info(msg string, keyvals ...interface{}) {
	z.l.Info().Fields(keyvals).Msg(msg)
}

func (z zerologAdapter) Warn(msg string, keyvals ...interface{}) {
	z.l.Warn().Fields(keyvals).Msg(msg)
}

func (z zerologAdapter) Error(msg string, keyvals ...interface{}) {
	z.l.Error().Fields(keyvals).Msg(msg)
}
