package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"gamecenter/internal/bracket"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/testsuite"
)

var createdAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type TournamentWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env         *testsuite.TestWorkflowEnvironment
	tournaments *bracket.Tournaments
	start       bracket.Tournament
}

func TestTournamentWorkflowSuite(t *testing.T) {
	suite.Run(t, new(TournamentWorkflowSuite))
}

func (s *TournamentWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.tournaments = bracket.NewTournaments()
	tr, err := bracket.Create("t1", bracket.NewTournament{Name: "Friday", Players: []string{"A", "B", "C"}}, createdAt)
	s.Require().NoError(err)
	s.start = s.tournaments.Save(context.Background(), tr)
	s.env.RegisterActivity(&Activities{Tournaments: s.tournaments})
}

func (s *TournamentWorkflowSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *TournamentWorkflowSuite) signalAt(d time.Duration, name string, arg interface{}) {
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(name, arg)
	}, d)
}

func (s *TournamentWorkflowSuite) Test_PlaysToChampion() {
	s.signalAt(time.Second, SignalSelectWinner, MatchRef{Round: 0, Match: 0, Winner: "B"})
	s.signalAt(2*time.Second, SignalSelectWinner, MatchRef{Round: 0, Match: 1, Winner: "C"})
	s.env.RegisterDelayedCallback(func() {
		val, err := s.env.QueryWorkflow(QueryState)
		s.Require().NoError(err)
		var t bracket.Tournament
		s.Require().NoError(val.Get(&t))
		final, _ := t.Final()
		s.Require().NotNil(final.Player1)
		s.Require().NotNil(final.Player2)
		s.Equal("B", *final.Player1)
		s.Equal("C", *final.Player2)
	}, 3*time.Second)
	s.signalAt(4*time.Second, SignalSelectWinner, MatchRef{Round: 1, Match: 0, Winner: "C"})

	s.env.ExecuteWorkflow(TournamentWorkflow, s.start)

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	var result bracket.Tournament
	s.NoError(s.env.GetWorkflowResult(&result))
	s.True(result.Completed)
	s.Equal("C", result.Winner)

	saved, err := s.tournaments.Get("t1")
	s.Require().NoError(err)
	s.True(saved.Completed)
}

func (s *TournamentWorkflowSuite) Test_RejectedSignalIsIgnored() {
	s.signalAt(time.Second, SignalSelectWinner, MatchRef{Round: 0, Match: 1, Winner: bracket.Bye})
	s.signalAt(2*time.Second, SignalRevert, MatchRef{Round: 0, Match: 0})
	s.signalAt(3*time.Second, SignalClose, nil)

	s.env.ExecuteWorkflow(TournamentWorkflow, s.start)

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	var result bracket.Tournament
	s.NoError(s.env.GetWorkflowResult(&result))
	s.False(result.Completed)
	s.Nil(result.Rounds[0][1].Winner)
}

func (s *TournamentWorkflowSuite) Test_RevertAfterCompletion() {
	s.signalAt(time.Second, SignalSelectWinner, MatchRef{Round: 0, Match: 0, Winner: "A"})
	s.signalAt(2*time.Second, SignalSelectWinner, MatchRef{Round: 0, Match: 1, Winner: "C"})
	s.signalAt(3*time.Second, SignalSelectWinner, MatchRef{Round: 1, Match: 0, Winner: "A"})
	s.signalAt(4*time.Second, SignalRevert, MatchRef{Round: 1, Match: 0})
	s.signalAt(5*time.Second, SignalClose, nil)

	s.env.ExecuteWorkflow(TournamentWorkflow, s.start)

	s.True(s.env.IsWorkflowCompleted())
	var result bracket.Tournament
	s.NoError(s.env.GetWorkflowResult(&result))
	s.False(result.Completed)
	s.Empty(result.Winner)

	saved, err := s.tournaments.Get("t1")
	s.Require().NoError(err)
	s.False(saved.Completed)
}

func (s *TournamentWorkflowSuite) Test_StaleCopyKeepsLocalDecision() {
	_, err := s.tournaments.SelectWinner(context.Background(), "t1", 0, 1, "C")
	s.Require().NoError(err)

	// the workflow copy never saw C win; its first step is dropped for the
	// local bracket and the next one applies on top of it
	s.signalAt(time.Second, SignalSelectWinner, MatchRef{Round: 0, Match: 0, Winner: "A"})
	s.signalAt(2*time.Second, SignalSelectWinner, MatchRef{Round: 0, Match: 0, Winner: "B"})
	s.signalAt(3*time.Second, SignalClose, nil)

	s.env.ExecuteWorkflow(TournamentWorkflow, s.start)

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	var result bracket.Tournament
	s.NoError(s.env.GetWorkflowResult(&result))

	saved, err := s.tournaments.Get("t1")
	s.Require().NoError(err)
	s.Require().NotNil(saved.Rounds[0][1].Winner)
	s.Equal("C", *saved.Rounds[0][1].Winner)
	s.Require().NotNil(saved.Rounds[0][0].Winner)
	s.Equal("B", *saved.Rounds[0][0].Winner)
	s.True(result.SameProgress(saved))
}

func (s *TournamentWorkflowSuite) Test_SaveTournamentActivity() {
	ctx := context.Background()
	acts := &Activities{Tournaments: s.tournaments}
	env := s.NewTestActivityEnvironment()
	env.RegisterActivity(acts)

	local, err := s.tournaments.SelectWinner(ctx, "t1", 0, 0, "A")
	s.Require().NoError(err)
	stale := s.start.Clone()
	s.Require().NoError(stale.SelectWinner(0, 1, "C"))

	val, err := env.ExecuteActivity(acts.SaveTournament, TournamentChange{Before: s.start, After: stale})
	s.Require().NoError(err)
	var got bracket.Tournament
	s.Require().NoError(val.Get(&got))
	s.True(got.SameProgress(local))

	saved, err := s.tournaments.Get("t1")
	s.Require().NoError(err)
	s.Require().NotNil(saved.Rounds[0][0].Winner)
	s.Nil(saved.Rounds[0][1].Winner)

	s.Require().NoError(s.tournaments.Delete(ctx, "t1"))
	val, err = env.ExecuteActivity(acts.SaveTournament, TournamentChange{Before: local, After: stale})
	s.Require().NoError(err)
	s.Require().NoError(val.Get(&got))
	_, err = s.tournaments.Get("t1")
	s.ErrorIs(err, bracket.ErrNotFound)
}

func TestEngineMirrorsAcceptedSteps(t *testing.T) {
	ctx := context.Background()
	ts := bracket.NewTournaments()
	tr, err := ts.Create(ctx, bracket.NewTournament{Name: "Cup", Players: []string{"A", "B"}})
	require.NoError(t, err)

	c := &mocks.Client{}
	c.On("SignalWithStartWorkflow", mock.Anything, WorkflowID(tr.ID), SignalSelectWinner,
		MatchRef{Round: 0, Match: 0, Winner: "A"}, mock.Anything, mock.Anything, mock.Anything).
		Return(&mocks.WorkflowRun{}, nil).Once()
	c.On("SignalWorkflow", mock.Anything, WorkflowID(tr.ID), "", SignalClose, nil).
		Return(errors.New("workflow not found")).Once()

	e := NewEngine(c, "queue", ts)

	_, err = e.SelectWinner(ctx, tr.ID, 0, 0, bracket.Bye)
	require.Error(t, err)

	done, err := e.SelectWinner(ctx, tr.ID, 0, 0, "A")
	require.NoError(t, err)
	require.True(t, done.Completed)

	require.NoError(t, e.Delete(ctx, tr.ID))
	_, err = ts.Get(tr.ID)
	require.ErrorIs(t, err, bracket.ErrNotFound)

	c.AssertExpectations(t)
}
