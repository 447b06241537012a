package temporal

import (
	"time"

	"gamecenter/internal/bracket"

	"go.temporal.io/sdk/workflow"
)

const (
	SignalSelectWinner = "select-winner"
	SignalRevert       = "revert"
	SignalClose        = "close"
	QueryState         = "state"
)

// idleAfterCompletion is how long a completed tournament waits for a revert
// before its workflow ends.
const idleAfterCompletion = 24 * time.Hour

// MatchRef addresses one match. Winner is ignored by revert.
type MatchRef struct {
	Round  int    `json:"round"`
	Match  int    `json:"match"`
	Winner string `json:"winner,omitempty"`
}

func WorkflowID(tournamentID string) string {
	return "tournament-" + tournamentID
}

// TournamentWorkflow holds one tournament and applies winner and revert
// signals in arrival order, saving the bracket after every accepted change.
// When the local collection has moved on, the workflow adopts its bracket.
func TournamentWorkflow(ctx workflow.Context, t bracket.Tournament) (bracket.Tournament, error) {
	logger := workflow.GetLogger(ctx)
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	err := workflow.SetQueryHandler(ctx, QueryState, func() (bracket.Tournament, error) {
		return t, nil
	})
	if err != nil {
		return t, err
	}

	selectCh := workflow.GetSignalChannel(ctx, SignalSelectWinner)
	revertCh := workflow.GetSignalChannel(ctx, SignalRevert)
	closeCh := workflow.GetSignalChannel(ctx, SignalClose)

	var a *Activities
	closed := false
	for !closed {
		changed := false
		before := t.Clone()
		timerCtx, cancelTimer := workflow.WithCancel(ctx)

		selector := workflow.NewSelector(ctx)
		selector.AddReceive(selectCh, func(c workflow.ReceiveChannel, more bool) {
			var m MatchRef
			c.Receive(ctx, &m)
			if err := t.SelectWinner(m.Round, m.Match, m.Winner); err != nil {
				logger.Warn("Select winner rejected", "round", m.Round, "match", m.Match, "error", err)
				return
			}
			changed = true
		})
		selector.AddReceive(revertCh, func(c workflow.ReceiveChannel, more bool) {
			var m MatchRef
			c.Receive(ctx, &m)
			if err := t.Revert(m.Round, m.Match); err != nil {
				logger.Warn("Revert rejected", "round", m.Round, "match", m.Match, "error", err)
				return
			}
			changed = true
		})
		selector.AddReceive(closeCh, func(c workflow.ReceiveChannel, more bool) {
			c.Receive(ctx, nil)
			closed = true
		})
		if t.Completed {
			selector.AddFuture(workflow.NewTimer(timerCtx, idleAfterCompletion), func(f workflow.Future) {
				if f.Get(ctx, nil) == nil {
					closed = true
				}
			})
		}

		selector.Select(ctx)
		cancelTimer()

		if changed {
			var saved bracket.Tournament
			change := TournamentChange{Before: before, After: t}
			if err := workflow.ExecuteActivity(ctx, a.SaveTournament, change).Get(ctx, &saved); err != nil {
				return t, err
			}
			t = saved
		}
	}

	logger.Info("Tournament workflow finished", "tournament", t.ID, "completed", t.Completed)
	return t, nil
}
