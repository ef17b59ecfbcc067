package types

import (
	"fmt"
	"time"
)

// DayLayout is the layout of a Day in store keys.
const DayLayout = "20060102"

// Day is a calendar date in UTC, formatted YYYYMMDD.
type Day string

// DayOf returns the UTC day containing t.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(DayLayout))
}

// ParseDay validates s as a YYYYMMDD day.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(DayLayout, s); err != nil {
		return "", fmt.Errorf("types: parse day %q: %w", s, err)
	}
	return Day(s), nil
}

// String returns the YYYYMMDD form.
func (d Day) String() string { return string(d) }

// Time returns midnight UTC at the start of d.
func (d Day) Time() time.Time {
	t, err := time.Parse(DayLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// ISO returns d as YYYY-MM-DD, the form used in reports.
func (d Day) ISO() string {
	t := d.Time()
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// LastDays returns the n UTC days ending with the day of now, oldest first.
func LastDays(now time.Time, n int) []Day {
	if n <= 0 {
		return nil
	}
	today := now.UTC()
	out := make([]Day, n)
	for i := range n {
		out[i] = DayOf(today.AddDate(0, 0, i-(n-1)))
	}
	return out
}

// UntilMidnight returns the time left until the next UTC midnight, never
// less than one minute.
func UntilMidnight(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	if d := next.Sub(now); d > time.Minute {
		return d
	}
	return time.Minute
}
