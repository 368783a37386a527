package stats

import "time"

// Period selects the aggregation window for the dashboard.
type Period string

const (
	PeriodToday  Period = "today"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodYear   Period = "year"
	Period30Days Period = "30days"
)

// ParsePeriod maps a query-string value onto a Period, defaulting to the
// trailing 30 day window.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodYear:
		return Period(s)
	default:
		return Period30Days
	}
}

// PerPage picks the upstream page size for the period. Longer windows need
// more activities since filtering happens after the fetch.
func (p Period) PerPage() int {
	switch p {
	case PeriodYear:
		return 200
	case PeriodMonth:
		return 100
	default:
		return 50
	}
}

// CutoffAt returns the inclusive start of the window relative to now.
//
// The rolling windows (week, 30days) count today as day one, so they reach
// back N-1 whole days; month and year anchor to calendar boundaries, matching
// what the dashboard displays.
func (p Period) CutoffAt(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch p {
	case PeriodToday:
		return midnight
	case PeriodWeek:
		return now.AddDate(0, 0, -6)
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case PeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return now.AddDate(0, 0, -29)
	}
}
