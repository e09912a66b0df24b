package catalog

import (
	"time"

	"expenso/internal/core"
)

type DateRange string

const (
	ThisWeek  DateRange = "THIS_WEEK"
	ThisMonth DateRange = "THIS_MONTH"
	LastMonth DateRange = "LAST_MONTH"
	ThisYear  DateRange = "THIS_YEAR"
	LastYear  DateRange = "LAST_YEAR"
)

// DateRanges in display order.
var DateRanges = []DateRange{ThisWeek, ThisMonth, LastMonth, ThisYear, LastYear}

// ParseDateRange falls back to ThisMonth.
func ParseDateRange(s string) DateRange {
	for _, r := range DateRanges {
		if string(r) == s {
			return r
		}
	}
	return ThisMonth
}

func (r DateRange) Label() string {
	switch r {
	case ThisWeek:
		return "This Week"
	case ThisMonth:
		return "This Month"
	case LastMonth:
		return "Last Month"
	case ThisYear:
		return "This Year"
	case LastYear:
		return "Last Year"
	}
	return string(r)
}

// Bounds returns the inclusive calendar dates covered by r relative to now.
// Weeks start on Monday.
func (r DateRange) Bounds(now time.Time) (from, to core.Date) {
	y, m, d := now.Date()
	switch r {
	case ThisWeek:
		offset := (int(now.Weekday()) + 6) % 7
		start := time.Date(y, m, d-offset, 0, 0, 0, 0, time.UTC)
		return core.DateOf(start), core.DateOf(start.AddDate(0, 0, 6))
	case LastMonth:
		start := time.Date(y, m-1, 1, 0, 0, 0, 0, time.UTC)
		return core.DateOf(start), core.DateOf(start.AddDate(0, 1, -1))
	case ThisYear:
		return core.NewDate(y, 1, 1), core.NewDate(y, 12, 31)
	case LastYear:
		return core.NewDate(y-1, 1, 1), core.NewDate(y-1, 12, 31)
	default:
		start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return core.DateOf(start), core.DateOf(start.AddDate(0, 1, -1))
	}
}

// Palette is the chart colour cycle.
var Palette = []string{"#008080", "#1A237E", "#FF6D00", "#43A047", "#E53935", "#9C27B0", "#FF9800", "#2196F3"}

// Color cycles through Palette; negative indexes are treated as 0.
func Color(i int) string {
	if i < 0 {
		i = 0
	}
	return Palette[i%len(Palette)]
}
