package checkout

import (
	"sort"
	"time"
)

const unknownCustomer = "Unknown"

// DailyReport summarises the history rows of one local day.
type DailyReport struct {
	Day      string `json:"day"`
	Sessions int    `json:"sessions"`
	Earned   int64  `json:"earned"`
	Users    int    `json:"users"`
}

// Daily reports the rows whose session end (or record time) falls on day in
// loc. Earned is the sum of paid amounts.
func Daily(history []PlayHistoryItem, day time.Time, loc *time.Location) DailyReport {
	if loc == nil {
		loc = time.Local
	}
	want := dayKey(day, loc)
	rep := DailyReport{Day: want}
	users := make(map[string]struct{})
	for _, h := range history {
		if dayKey(h.seenAt(), loc) != want {
			continue
		}
		rep.Sessions++
		rep.Earned += h.PaidAmount
		users[h.customerKey()] = struct{}{}
	}
	rep.Users = len(users)
	return rep
}

// CustomerStats aggregates history per customer.
type CustomerStats struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Count        int    `json:"count"`
	TotalSeconds int64  `json:"totalSeconds"`
	TotalPaid    int64  `json:"totalPaid"`
}

type Leaderboard struct {
	Customers  []CustomerStats `json:"customers"`
	TopByCount []CustomerStats `json:"topByCount"`
	TopByTime  []CustomerStats `json:"topByTime"`
	Repeat     []CustomerStats `json:"repeat"`
}

const leaderboardSize = 5

// CustomerLeaderboard groups history by phone, else by name.
func CustomerLeaderboard(history []PlayHistoryItem) Leaderboard {
	index := make(map[string]int)
	var customers []CustomerStats
	for _, h := range history {
		name := h.FullName()
		if name == "" {
			name = unknownCustomer
		}
		key := h.customerKey()
		if key == "" {
			key = name
		}
		i, ok := index[key]
		if !ok {
			i = len(customers)
			index[key] = i
			customers = append(customers, CustomerStats{Key: key, Name: name, Phone: h.PhoneNumber})
		}
		customers[i].Count++
		customers[i].TotalSeconds += h.SecondsPlayed
		customers[i].TotalPaid += h.PaidAmount
	}

	byCount := append([]CustomerStats(nil), customers...)
	sort.SliceStable(byCount, func(i, j int) bool { return byCount[i].Count > byCount[j].Count })
	byTime := append([]CustomerStats(nil), customers...)
	sort.SliceStable(byTime, func(i, j int) bool { return byTime[i].TotalSeconds > byTime[j].TotalSeconds })

	repeat := make([]CustomerStats, 0)
	for _, c := range byCount {
		if c.Count > 1 {
			repeat = append(repeat, c)
		}
	}

	return Leaderboard{
		Customers:  customers,
		TopByCount: head(byCount, leaderboardSize),
		TopByTime:  head(byTime, leaderboardSize),
		Repeat:     repeat,
	}
}

type DayTotal struct {
	Day   string `json:"day"`
	Total int64  `json:"total"`
}

// DailyTotals sums each local day's takings, newest day first. Rows with
// nothing paid count their total cost.
func DailyTotals(history []PlayHistoryItem, loc *time.Location) []DayTotal {
	if loc == nil {
		loc = time.Local
	}
	totals := make(map[string]int64)
	for _, h := range history {
		seen := h.seenAt()
		if seen.IsZero() {
			continue
		}
		amount := h.PaidAmount
		if amount == 0 {
			amount = h.TotalCost
		}
		totals[dayKey(seen, loc)] += amount
	}
	out := make([]DayTotal, 0, len(totals))
	for day, total := range totals {
		out = append(out, DayTotal{Day: day, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	return out
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

func head(s []CustomerStats, n int) []CustomerStats {
	if len(s) > n {
		return s[:n]
	}
	return s
}
