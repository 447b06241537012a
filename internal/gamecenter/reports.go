package gamecenter

import (
	"time"

	"gamecenter/internal/checkout"
	"gamecenter/internal/station"
)

func (a *App) DailyReport(day time.Time) checkout.DailyReport {
	return checkout.Daily(a.History.List(), day, a.loc)
}

func (a *App) Leaderboard() checkout.Leaderboard {
	return checkout.CustomerLeaderboard(a.History.List())
}

// TableTotals sums the table sessions per local day.
func (a *App) TableTotals() []checkout.DayTotal {
	var tables []checkout.PlayHistoryItem
	for _, h := range a.History.List() {
		if h.SessionType == station.KindTable {
			tables = append(tables, h)
		}
	}
	return checkout.DailyTotals(tables, a.loc)
}
