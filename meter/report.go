package meter

import (
	"context"

	"github.com/xraph/perk/types"
)

// DayRow is one day of a DailyReport.
type DayRow struct {
	Day      types.Day        `json:"day"`
	DAU      int64            `json:"dau"`
	Counters map[string]int64 `json:"counters"`
}

// RefRow is one (day, code) entry of a ReferralReport.
type RefRow struct {
	Day  types.Day `json:"day"`
	Code string    `json:"code"`
	Hits float64   `json:"hits"`
}

// DailyReport returns one row per day for the last n days, oldest first,
// with the daily active users and the requested counters.
func (a *Aggregator) DailyReport(ctx context.Context, n int, counters ...string) []DayRow {
	days := a.LastDays(n)
	rows := make([]DayRow, 0, len(days))
	for _, day := range days {
		row := DayRow{
			Day:      day,
			DAU:      a.DAUForDay(ctx, day),
			Counters: make(map[string]int64, len(counters)),
		}
		for _, name := range counters {
			row.Counters[name] = a.GetForDay(ctx, name, day)
		}
		rows = append(rows, row)
	}
	return rows
}

// ReferralReport returns every code hit over the last n days, oldest day
// first and by descending hits within a day.
func (a *Aggregator) ReferralReport(ctx context.Context, n int) []RefRow {
	var rows []RefRow
	for _, day := range a.LastDays(n) {
		for _, sm := range a.AllRefsForDay(ctx, day) {
			rows = append(rows, RefRow{Day: day, Code: sm.Member, Hits: sm.Score})
		}
	}
	return rows
}
