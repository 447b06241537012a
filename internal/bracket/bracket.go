// Package bracket builds and advances single-elimination tournaments.
//
// A match is pending until its winner is recorded and decided afterwards. A
// decided match cannot be overwritten; Revert clears it together with every
// later match that consumed its winner.
package bracket

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"time"
)

// Bye fills the slots left over when the player count is not a power of two.
const Bye = "BYE"

var (
	ErrTooFewPlayers   = errors.New("a tournament needs at least two players")
	ErrDuplicatePlayer = errors.New("duplicate player name")
	ErrReservedName    = errors.New("BYE is reserved")
	ErrNameRequired    = errors.New("tournament name is required")
	ErrNoSuchMatch     = errors.New("no such match")
	ErrMatchNotReady   = errors.New("match is still waiting for a player")
	ErrMatchDecided    = errors.New("match already has a winner")
	ErrMatchPending    = errors.New("match has no winner to revert")
	ErrNoContest       = errors.New("bye against bye cannot be reverted")
	ErrInvalidWinner   = errors.New("winner must be one of the match's players")
)

type MatchState string

const (
	Pending MatchState = "pending"
	Decided MatchState = "decided"
)

// Match slots and winner are nil until determined.
type Match struct {
	ID      string  `json:"id"`
	Player1 *string `json:"player1"`
	Player2 *string `json:"player2"`
	Winner  *string `json:"winner"`
}

func (m Match) State() MatchState {
	if m.Winner != nil {
		return Decided
	}
	return Pending
}

// NoContest reports whether the match paired two byes.
func (m Match) NoContest() bool {
	return isBye(m.Player1) && isBye(m.Player2)
}

// Ready reports whether both slots are filled.
func (m Match) Ready() bool {
	return m.Player1 != nil && m.Player2 != nil
}

// Loser is the other slot of a decided match.
func (m Match) Loser() (string, bool) {
	if m.Winner == nil || !m.Ready() {
		return "", false
	}
	if *m.Player1 == *m.Winner {
		return *m.Player2, true
	}
	return *m.Player1, true
}

func (m Match) clone() Match {
	return Match{ID: m.ID, Player1: copyStr(m.Player1), Player2: copyStr(m.Player2), Winner: copyStr(m.Winner)}
}

// Tournament is a single-elimination competition.
type Tournament struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	EntryPrice      Price     `json:"entryPrice"`
	Players         []string  `json:"players"`
	Rounds          [][]Match `json:"rounds"`
	CreatedAt       time.Time `json:"createdAt"`
	Completed       bool      `json:"completed"`
	Winner          string    `json:"winner,omitempty"`
	ShowSecondPlace bool      `json:"showSecondPlace,omitempty"`
	ShowThirdPlace  bool      `json:"showThirdPlace,omitempty"`
}

// NewTournament describes a tournament to create.
type NewTournament struct {
	Name            string   `json:"name"`
	EntryPrice      Price    `json:"entryPrice"`
	Players         []string `json:"players"`
	Shuffle         bool     `json:"shuffle,omitempty"`
	ShowSecondPlace bool     `json:"showSecondPlace,omitempty"`
	ShowThirdPlace  bool     `json:"showThirdPlace,omitempty"`
}

// Create builds a fully allocated tournament.
func Create(id string, in NewTournament, now time.Time) (Tournament, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Tournament{}, ErrNameRequired
	}
	players := in.Players
	if in.Shuffle {
		players = Shuffle(players, nil)
	}
	padded, rounds, err := Build(players)
	if err != nil {
		return Tournament{}, err
	}
	t := Tournament{
		ID:              id,
		Name:            name,
		EntryPrice:      in.EntryPrice,
		Players:         padded,
		Rounds:          rounds,
		CreatedAt:       now,
		ShowSecondPlace: in.ShowSecondPlace,
		ShowThirdPlace:  in.ShowThirdPlace,
	}
	t.refresh()
	return t, nil
}

// Build pads players with byes up to the next power of two and allocates every
// round. Round 0 pairs the padded list positionally; later rounds start empty.
// Bye against bye is decided on the spot as a no contest.
func Build(players []string) ([]string, [][]Match, error) {
	names, err := normalize(players)
	if err != nil {
		return nil, nil, err
	}

	size := nextPow2(len(names))
	padded := make([]string, size)
	copy(padded, names)
	for i := len(names); i < size; i++ {
		padded[i] = Bye
	}

	first := make([]Match, size/2)
	for i := range first {
		first[i] = Match{
			ID:      matchID(0, i),
			Player1: str(padded[2*i]),
			Player2: str(padded[2*i+1]),
		}
	}
	rounds := [][]Match{first}
	for r, n := 1, size/4; n >= 1; r, n = r+1, n/2 {
		round := make([]Match, n)
		for i := range round {
			round[i] = Match{ID: matchID(r, i)}
		}
		rounds = append(rounds, round)
	}

	for i := range first {
		settleNoContest(rounds, 0, i)
	}
	return padded, rounds, nil
}

func normalize(players []string) ([]string, error) {
	names := make([]string, 0, len(players))
	seen := make(map[string]bool, len(players))
	for _, p := range players {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.EqualFold(p, Bye) {
			return nil, ErrReservedName
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlayer, p)
		}
		seen[p] = true
		names = append(names, p)
	}
	if len(names) < 2 {
		return nil, ErrTooFewPlayers
	}
	return names, nil
}

// SelectWinner decides a ready match and seeds the winner into the next
// round: player1 from an even match index, player2 from an odd one.
func (t *Tournament) SelectWinner(round, match int, winner string) error {
	m, err := t.match(round, match)
	if err != nil {
		return err
	}
	if m.Winner != nil {
		return ErrMatchDecided
	}
	if !m.Ready() {
		return ErrMatchNotReady
	}
	if winner == Bye || (winner != *m.Player1 && winner != *m.Player2) {
		return ErrInvalidWinner
	}
	m.Winner = str(winner)
	advance(t.Rounds, round, match)
	t.refresh()
	return nil
}

// Revert clears a decided match and every later match that depended on it.
func (t *Tournament) Revert(round, match int) error {
	m, err := t.match(round, match)
	if err != nil {
		return err
	}
	if m.Winner == nil {
		return ErrMatchPending
	}
	if m.NoContest() {
		return ErrNoContest
	}
	clearFrom(t.Rounds, round, match)
	t.refresh()
	return nil
}

func (t *Tournament) match(round, match int) (*Match, error) {
	if round < 0 || round >= len(t.Rounds) || match < 0 || match >= len(t.Rounds[round]) {
		return nil, fmt.Errorf("%w: round %d match %d", ErrNoSuchMatch, round, match)
	}
	return &t.Rounds[round][match], nil
}

// Final is the single match of the last round.
func (t Tournament) Final() (Match, bool) {
	if len(t.Rounds) == 0 || len(t.Rounds[len(t.Rounds)-1]) == 0 {
		return Match{}, false
	}
	return t.Rounds[len(t.Rounds)-1][0], true
}

// refresh derives the completion flag from the final match.
func (t *Tournament) refresh() {
	final, ok := t.Final()
	if ok && final.Winner != nil && *final.Winner != Bye {
		t.Completed = true
		t.Winner = *final.Winner
		return
	}
	t.Completed = false
	t.Winner = ""
}

// RealPlayers lists the players that are not byes.
func (t Tournament) RealPlayers() []string {
	out := make([]string, 0, len(t.Players))
	for _, p := range t.Players {
		if p != Bye {
			out = append(out, p)
		}
	}
	return out
}

func (t Tournament) Clone() Tournament {
	c := t
	c.Players = append([]string(nil), t.Players...)
	c.Rounds = make([][]Match, len(t.Rounds))
	for r, round := range t.Rounds {
		c.Rounds[r] = make([]Match, len(round))
		for i, m := range round {
			c.Rounds[r][i] = m.clone()
		}
	}
	return c
}

// SameProgress reports whether t and o have the same bracket: equal slots and
// winners in every match.
func (t Tournament) SameProgress(o Tournament) bool {
	if t.ID != o.ID || t.Completed != o.Completed || t.Winner != o.Winner || len(t.Rounds) != len(o.Rounds) {
		return false
	}
	for r := range t.Rounds {
		if len(t.Rounds[r]) != len(o.Rounds[r]) {
			return false
		}
		for i, m := range t.Rounds[r] {
			n := o.Rounds[r][i]
			if !sameStr(m.Player1, n.Player1) || !sameStr(m.Player2, n.Player2) || !sameStr(m.Winner, n.Winner) {
				return false
			}
		}
	}
	return true
}

func advance(rounds [][]Match, round, match int) {
	if round+1 >= len(rounds) {
		return
	}
	winner := *rounds[round][match].Winner
	next := &rounds[round+1][match/2]
	if match%2 == 0 {
		next.Player1 = str(winner)
	} else {
		next.Player2 = str(winner)
	}
	settleNoContest(rounds, round+1, match/2)
}

func settleNoContest(rounds [][]Match, round, match int) {
	m := &rounds[round][match]
	if m.Winner == nil && m.NoContest() {
		m.Winner = str(Bye)
		advance(rounds, round, match)
	}
}

func clearFrom(rounds [][]Match, round, match int) {
	m := &rounds[round][match]
	m.Winner = nil
	if round+1 >= len(rounds) {
		return
	}
	next := &rounds[round+1][match/2]
	if match%2 == 0 {
		next.Player1 = nil
	} else {
		next.Player2 = nil
	}
	if next.Winner != nil {
		clearFrom(rounds, round+1, match/2)
	}
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func matchID(round, match int) string {
	return fmt.Sprintf("r%d-m%d", round, match)
}

func isBye(s *string) bool { return s != nil && *s == Bye }

func str(s string) *string { return &s }

func sameStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	return str(*s)
}
