package bracket

import (
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
)

// RoundName labels a round counted from the end of the bracket.
func RoundName(round, totalRounds int) string {
	switch totalRounds - round {
	case 1:
		return "Final"
	case 2:
		return "Semi-finals"
	case 3:
		return "Quarter-finals"
	}
	return "Round " + strconv.Itoa(round+1)
}

// Wins counts decided matches per real player. No-contest matches count for
// nobody.
func Wins(rounds [][]Match) map[string]int {
	wins := make(map[string]int)
	for _, round := range rounds {
		for _, m := range round {
			if m.Winner != nil && *m.Winner != Bye {
				wins[*m.Winner]++
			}
		}
	}
	return wins
}

// Standings is the podium of a completed tournament. Empty names mean the
// place is not determined.
type Standings struct {
	Champion string `json:"champion,omitempty"`
	Second   string `json:"secondPlace,omitempty"`
	Third    string `json:"thirdPlace,omitempty"`
}

// Podium derives the standings from the bracket. Third place is the first
// real semifinal loser in match order; there is no playoff.
func (t Tournament) Podium() Standings {
	final, ok := t.Final()
	if !ok || final.Winner == nil || *final.Winner == Bye {
		return Standings{}
	}
	s := Standings{Champion: *final.Winner}
	if loser, ok := final.Loser(); ok && loser != Bye {
		s.Second = loser
	}
	if semi := len(t.Rounds) - 2; semi >= 0 {
		for _, m := range t.Rounds[semi] {
			if loser, ok := m.Loser(); ok && loser != Bye {
				s.Third = loser
				break
			}
		}
	}
	return s
}

// TotalPool is the entry price times the number of real players, capped at
// math.MaxInt64.
func (t Tournament) TotalPool() int64 {
	price, n := int64(t.EntryPrice), int64(len(t.RealPlayers()))
	if price <= 0 || n == 0 {
		return 0
	}
	if price > math.MaxInt64/n {
		return math.MaxInt64
	}
	return price * n
}

// Prizes splits the pool 50/30/rest. Second and third are paid only when
// shown and determined; whatever is not paid out is reported as unallocated.
type Prizes struct {
	Pool        int64 `json:"pool"`
	Champion    int64 `json:"champion"`
	Second      int64 `json:"second"`
	Third       int64 `json:"third"`
	Unallocated int64 `json:"unallocated"`
}

func SplitPool(pool int64, showSecond, showThird bool) Prizes {
	if pool < 0 {
		pool = 0
	}
	champion := pool / 2
	second := pool/10*3 + pool%10*3/10
	third := pool - champion - second

	p := Prizes{Pool: pool, Champion: champion}
	if showSecond {
		p.Second = second
	}
	if showThird {
		p.Third = third
	}
	p.Unallocated = pool - p.Champion - p.Second - p.Third
	return p
}

func (t Tournament) Prizes() Prizes {
	s := t.Podium()
	if s.Champion == "" {
		return Prizes{Pool: t.TotalPool(), Unallocated: t.TotalPool()}
	}
	return SplitPool(t.TotalPool(), t.ShowSecondPlace && s.Second != "", t.ShowThirdPlace && s.Third != "")
}

// PlayerResult is one row of the players and prizes table.
type PlayerResult struct {
	Name  string `json:"name"`
	Place int    `json:"place,omitempty"`
	Entry int64  `json:"entry"`
	Wins  int    `json:"wins"`
	Prize int64  `json:"prize"`
}

// Results lists every real player, podium first and then by name. The
// runner-up row carries the second-place share even when that place is not
// shown on the podium.
func (t Tournament) Results() []PlayerResult {
	s := t.Podium()
	prizes := t.Prizes()
	if s.Second != "" {
		prizes.Second = SplitPool(prizes.Pool, true, false).Second
	}
	wins := Wins(t.Rounds)

	out := make([]PlayerResult, 0, len(t.Players))
	for _, name := range t.RealPlayers() {
		r := PlayerResult{Name: name, Entry: int64(t.EntryPrice), Wins: wins[name]}
		switch name {
		case s.Champion:
			r.Place, r.Prize = 1, prizes.Champion
		case s.Second:
			r.Place, r.Prize = 2, prizes.Second
		case s.Third:
			r.Place, r.Prize = 3, prizes.Third
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i].Place), rank(out[j].Place)
		if ri != rj {
			return ri < rj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func rank(place int) int {
	if place == 0 {
		return 4
	}
	return place
}

// Shuffle returns a uniformly shuffled copy of players. A nil r uses the
// package source.
func Shuffle(players []string, r *rand.Rand) []string {
	out := append([]string(nil), players...)
	swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
	if r == nil {
		rand.Shuffle(len(out), swap)
	} else {
		r.Shuffle(len(out), swap)
	}
	return out
}
