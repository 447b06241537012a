package bracket

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("P%d", i+1)
	}
	return out
}

func val(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestBuildWellFormed(t *testing.T) {
	for n := 2; n <= 100; n++ {
		padded, rounds, err := Build(names(n))
		require.NoError(t, err, "n=%d", n)

		size := nextPow2(n)
		require.Len(t, padded, size)
		assert.Len(t, rounds[0], size/2, "n=%d", n)
		assert.Len(t, rounds[len(rounds)-1], 1, "n=%d", n)
		for r := 1; r < len(rounds); r++ {
			assert.Equal(t, len(rounds[r-1])/2, len(rounds[r]), "n=%d round=%d", n, r)
			for i, m := range rounds[r] {
				assert.Equal(t, fmt.Sprintf("r%d-m%d", r, i), m.ID)
			}
		}

		seen := map[string]int{}
		for _, m := range rounds[0] {
			seen[val(m.Player1)]++
			seen[val(m.Player2)]++
		}
		for _, name := range names(n) {
			assert.Equal(t, 1, seen[name], "n=%d player %s appears once", n, name)
		}
		assert.Equal(t, size-n, seen[Bye])
	}
}

func TestBuildFiveRoundsSizes(t *testing.T) {
	padded, rounds, err := Build(names(5))
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2", "P3", "P4", "P5", Bye, Bye, Bye}, padded)

	sizes := make([]int, len(rounds))
	for i, r := range rounds {
		sizes[i] = len(r)
	}
	assert.Equal(t, []int{4, 2, 1}, sizes)

	noContest := rounds[0][3]
	assert.True(t, noContest.NoContest())
	assert.Equal(t, Decided, noContest.State())
	assert.Equal(t, Bye, val(noContest.Winner))
	assert.Equal(t, Bye, val(rounds[1][1].Player2), "no contest propagates a bye")
	assert.Nil(t, rounds[1][1].Player1)
	assert.Equal(t, Pending, rounds[0][2].State(), "player against bye is not auto-advanced")
}

func TestBuildRejects(t *testing.T) {
	_, _, err := Build([]string{"A"})
	assert.ErrorIs(t, err, ErrTooFewPlayers)
	_, _, err = Build([]string{"A", " ", ""})
	assert.ErrorIs(t, err, ErrTooFewPlayers)
	_, _, err = Build([]string{"A", "B", "A"})
	assert.ErrorIs(t, err, ErrDuplicatePlayer)
	_, _, err = Build([]string{"A", "bye"})
	assert.ErrorIs(t, err, ErrReservedName)
}

func TestAdvancementSlots(t *testing.T) {
	tr, err := Create("t1", NewTournament{Name: "Cup", Players: names(8)}, time.Now())
	require.NoError(t, err)

	require.NoError(t, tr.SelectWinner(0, 3, "P8"))
	next := tr.Rounds[1][1]
	assert.Nil(t, next.Player1)
	assert.Equal(t, "P8", val(next.Player2))

	require.NoError(t, tr.SelectWinner(0, 2, "P5"))
	assert.Equal(t, "P5", val(tr.Rounds[1][1].Player1))

	for r := range tr.Rounds {
		for i, m := range tr.Rounds[r] {
			if r == 1 && i == 1 {
				continue
			}
			if r > 0 {
				assert.Nil(t, m.Player1, "round %d match %d untouched", r, i)
				assert.Nil(t, m.Player2, "round %d match %d untouched", r, i)
			}
		}
	}
}

func TestSelectWinnerRejections(t *testing.T) {
	tr, err := Create("t1", NewTournament{Name: "Cup", Players: []string{"A", "B", "C"}}, time.Now())
	require.NoError(t, err)

	assert.ErrorIs(t, tr.SelectWinner(0, 1, Bye), ErrInvalidWinner)
	assert.ErrorIs(t, tr.SelectWinner(0, 0, "C"), ErrInvalidWinner)
	assert.ErrorIs(t, tr.SelectWinner(1, 0, "A"), ErrMatchNotReady)
	assert.ErrorIs(t, tr.SelectWinner(2, 0, "A"), ErrNoSuchMatch)
	assert.ErrorIs(t, tr.SelectWinner(0, -1, "A"), ErrNoSuchMatch)

	require.NoError(t, tr.SelectWinner(0, 0, "A"))
	assert.ErrorIs(t, tr.SelectWinner(0, 0, "B"), ErrMatchDecided)
	assert.Equal(t, "A", val(tr.Rounds[1][0].Player1))
}

func TestEndToEndThreePlayers(t *testing.T) {
	tr, err := Create("t1", NewTournament{Name: "Cup", Players: []string{"A", "B", "C"}}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", Bye}, tr.Players)
	assert.Equal(t, "A", val(tr.Rounds[0][0].Player1))
	assert.Equal(t, "B", val(tr.Rounds[0][0].Player2))
	assert.Equal(t, "C", val(tr.Rounds[0][1].Player1))
	assert.Equal(t, Bye, val(tr.Rounds[0][1].Player2))

	require.NoError(t, tr.SelectWinner(0, 0, "B"))
	require.NoError(t, tr.SelectWinner(0, 1, "C"))
	final, _ := tr.Final()
	assert.Equal(t, "B", val(final.Player1))
	assert.Equal(t, "C", val(final.Player2))
	assert.False(t, tr.Completed)

	require.NoError(t, tr.SelectWinner(1, 0, "C"))
	assert.True(t, tr.Completed)
	assert.Equal(t, "C", tr.Winner)

	s := tr.Podium()
	assert.Equal(t, Standings{Champion: "C", Second: "B", Third: "A"}, s)
}

func TestRevertClearsDownstream(t *testing.T) {
	tr, err := Create("t1", NewTournament{Name: "Cup", Players: names(4)}, time.Now())
	require.NoError(t, err)
	require.NoError(t, tr.SelectWinner(0, 0, "P1"))
	require.NoError(t, tr.SelectWinner(0, 1, "P4"))
	require.NoError(t, tr.SelectWinner(1, 0, "P4"))
	require.True(t, tr.Completed)

	require.NoError(t, tr.Revert(0, 1))
	assert.False(t, tr.Completed)
	assert.Empty(t, tr.Winner)
	assert.Nil(t, tr.Rounds[0][1].Winner)
	final, _ := tr.Final()
	assert.Equal(t, "P1", val(final.Player1))
	assert.Nil(t, final.Player2)
	assert.Nil(t, final.Winner)

	require.NoError(t, tr.SelectWinner(0, 1, "P3"))
	require.NoError(t, tr.SelectWinner(1, 0, "P3"))
	assert.Equal(t, "P3", tr.Winner)

	assert.ErrorIs(t, tr.Revert(5, 0), ErrNoSuchMatch)

	fresh, _ := Create("t2", NewTournament{Name: "Cup", Players: names(4)}, time.Now())
	assert.ErrorIs(t, fresh.Revert(0, 0), ErrMatchPending)

	five, _ := Create("t3", NewTournament{Name: "Cup", Players: names(5)}, time.Now())
	assert.ErrorIs(t, five.Revert(0, 3), ErrNoContest)
}

func TestRoundName(t *testing.T) {
	assert.Equal(t, "Round 1", RoundName(0, 5))
	assert.Equal(t, "Round 2", RoundName(1, 5))
	assert.Equal(t, "Quarter-finals", RoundName(2, 5))
	assert.Equal(t, "Semi-finals", RoundName(3, 5))
	assert.Equal(t, "Final", RoundName(4, 5))
	assert.Equal(t, "Final", RoundName(0, 1))
}

func TestPrizeSplit(t *testing.T) {
	t.Run("championOnlyLeavesRemainderUnallocated", func(t *testing.T) {
		p := SplitPool(1_000_000, false, false)
		assert.Equal(t, int64(500_000), p.Champion)
		assert.Zero(t, p.Second)
		assert.Zero(t, p.Third)
		assert.Equal(t, int64(500_000), p.Unallocated)
	})

	t.Run("fullPodium", func(t *testing.T) {
		p := SplitPool(1_000_000, true, true)
		assert.Equal(t, Prizes{Pool: 1_000_000, Champion: 500_000, Second: 300_000, Third: 200_000}, p)
	})

	t.Run("floorRounding", func(t *testing.T) {
		p := SplitPool(7, true, false)
		assert.Equal(t, int64(3), p.Champion)
		assert.Equal(t, int64(2), p.Second)
		assert.Equal(t, int64(2), p.Unallocated)
		assert.Equal(t, p.Pool, p.Champion+p.Second+p.Third+p.Unallocated)
	})
}

func TestTournamentResults(t *testing.T) {
	tr, err := Create("t1", NewTournament{
		Name:            "Cup",
		EntryPrice:      50000,
		Players:         []string{"Dan", "Ava", "Cy"},
		ShowSecondPlace: true,
		ShowThirdPlace:  true,
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(150000), tr.TotalPool())

	require.NoError(t, tr.SelectWinner(0, 0, "Ava"))
	require.NoError(t, tr.SelectWinner(0, 1, "Cy"))
	assert.Equal(t, Prizes{Pool: 150000, Unallocated: 150000}, tr.Prizes(), "no prizes before the final")
	require.NoError(t, tr.SelectWinner(1, 0, "Ava"))

	results := tr.Results()
	require.Len(t, results, 3)
	assert.Equal(t, PlayerResult{Name: "Ava", Place: 1, Entry: 50000, Wins: 2, Prize: 75000}, results[0])
	assert.Equal(t, PlayerResult{Name: "Cy", Place: 2, Entry: 50000, Wins: 1, Prize: 45000}, results[1])
	assert.Equal(t, PlayerResult{Name: "Dan", Place: 3, Entry: 50000, Wins: 0, Prize: 30000}, results[2])
	assert.Equal(t, map[string]int{"Ava": 2, "Cy": 1}, Wins(tr.Rounds))
}

func TestTournamentJSON(t *testing.T) {
	tr, err := Create("t1", NewTournament{Name: "Cup", EntryPrice: 50000, Players: []string{"A", "B"}}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	raw, err := json.Marshal(tr)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"entryPrice":"50000"`)
	assert.Contains(t, string(raw), `"winner":null`)

	legacy := `{"id":"1","name":"Old","entryPrice":"","players":["A","B"],"rounds":[[{"id":"r0-m0","player1":"A","player2":"B","winner":"B"}]],"createdAt":"2025-01-01T00:00:00Z","completed":true,"winner":"B"}`
	var back Tournament
	require.NoError(t, json.Unmarshal([]byte(legacy), &back))
	assert.Zero(t, back.EntryPrice)
	assert.Equal(t, "B", back.Podium().Champion)

	var p Price
	require.NoError(t, json.Unmarshal([]byte(`"50,000"`), &p))
	assert.Equal(t, Price(50000), p)
	require.NoError(t, json.Unmarshal([]byte(`1200`), &p))
	assert.Equal(t, Price(1200), p)
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &p))
}

func TestResultsPayRunnerUpWhenSecondHidden(t *testing.T) {
	tr, err := Create("t1", NewTournament{Name: "Cup", EntryPrice: 50000, Players: []string{"Dan", "Ava", "Cy"}}, time.Now())
	require.NoError(t, err)
	require.NoError(t, tr.SelectWinner(0, 0, "Ava"))
	require.NoError(t, tr.SelectWinner(0, 1, "Cy"))
	require.NoError(t, tr.SelectWinner(1, 0, "Ava"))

	assert.Equal(t, Prizes{Pool: 150000, Champion: 75000, Unallocated: 75000}, tr.Prizes())
	results := tr.Results()
	require.Len(t, results, 3)
	assert.Equal(t, PlayerResult{Name: "Ava", Place: 1, Entry: 50000, Wins: 2, Prize: 75000}, results[0])
	assert.Equal(t, PlayerResult{Name: "Cy", Place: 2, Entry: 50000, Wins: 1, Prize: 45000}, results[1])
	assert.Equal(t, PlayerResult{Name: "Dan", Place: 3, Entry: 50000, Wins: 0, Prize: 0}, results[2])
}

func TestPriceRange(t *testing.T) {
	for _, in := range []string{"Inf", "+Inf", "NaN", "1e30", "9223372036854775808", "-5"} {
		_, err := ParsePrice(in)
		assert.Error(t, err, in)
	}

	var p Price
	assert.Error(t, json.Unmarshal([]byte(`1e19`), &p))
	assert.Error(t, json.Unmarshal([]byte(`"Inf"`), &p))
	assert.Error(t, json.Unmarshal([]byte(`"1e30"`), &p))

	v, err := ParsePrice("9e18")
	require.NoError(t, err)
	assert.Equal(t, Price(9e18), v)
}

func TestTotalPoolSaturates(t *testing.T) {
	tr, err := Create("t1", NewTournament{Name: "Cup", EntryPrice: Price(math.MaxInt64 / 2), Players: []string{"A", "B", "C"}}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), tr.TotalPool())

	p := SplitPool(tr.TotalPool(), true, true)
	assert.Positive(t, p.Champion)
	assert.Positive(t, p.Second)
	assert.Positive(t, p.Third)
	assert.Equal(t, p.Pool, p.Champion+p.Second+p.Third+p.Unallocated)
	for _, r := range tr.Results() {
		assert.Positive(t, r.Entry)
	}
}

func TestShuffleKeepsPlayers(t *testing.T) {
	in := names(16)
	out := Shuffle(in, rand.New(rand.NewPCG(1, 2)))
	assert.ElementsMatch(t, in, out)
	assert.Equal(t, names(16), in, "input is not mutated")
}
