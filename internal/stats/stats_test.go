package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmallard/velostats/internal/strava/sdk"
)

var testNow = time.Date(2025, time.June, 15, 14, 30, 0, 0, time.UTC)

func ride(start time.Time, distance float64, movingTime int) sdk.Activity {
	return sdk.Activity{Type: "Ride", Distance: distance, MovingTime: movingTime, StartDate: start}
}

func TestComputeTotalsAndDerivedFields(t *testing.T) {
	activities := []sdk.Activity{
		ride(testNow.Add(-1*time.Hour), 10000, 1800),
		ride(testNow.AddDate(0, 0, -1), 20000, 3600),
	}

	summary := Compute(activities, PeriodWeek, testNow)

	assert.Equal(t, 2, summary.TotalActivities)
	assert.Equal(t, "30.0", summary.TotalDistanceKm)
	assert.Equal(t, "1.5", summary.TotalMovingTimeHours)
	// 30000m / 5400s * 3.6, distance weighted
	assert.Equal(t, "20.0", summary.AverageSpeed)
	assert.Equal(t, map[string]int{"Ride": 2}, summary.ActivityTypes)
}

func TestComputeZeroMovingTime(t *testing.T) {
	summary := Compute([]sdk.Activity{ride(testNow, 1000, 0)}, PeriodWeek, testNow)
	assert.Equal(t, "0", summary.AverageSpeed)
}

func TestComputeEmptyInput(t *testing.T) {
	summary := Compute(nil, Period30Days, testNow)

	assert.Equal(t, 0, summary.TotalActivities)
	assert.Equal(t, "0.0", summary.TotalDistanceKm)
	assert.Equal(t, "0", summary.AverageSpeed)
	assert.Empty(t, summary.RecentActivities)
	assert.Empty(t, summary.Locations)
}

func TestWeekWindowBoundaries(t *testing.T) {
	sixDaysAgo := ride(testNow.AddDate(0, 0, -6), 1000, 60)
	sevenDaysAgo := ride(testNow.AddDate(0, 0, -7), 1000, 60)

	filtered := FilterByPeriod([]sdk.Activity{sixDaysAgo, sevenDaysAgo}, PeriodWeek, testNow)

	require.Len(t, filtered, 1)
	assert.Equal(t, sixDaysAgo.StartDate, filtered[0].StartDate)
}

func Test30DaysWindowBoundaries(t *testing.T) {
	day29 := ride(testNow.AddDate(0, 0, -29), 1000, 60)
	day30 := ride(testNow.AddDate(0, 0, -30), 1000, 60)

	filtered := FilterByPeriod([]sdk.Activity{day29, day30}, Period30Days, testNow)

	require.Len(t, filtered, 1)
	assert.Equal(t, day29.StartDate, filtered[0].StartDate)
}

func TestTodayWindowStartsAtMidnight(t *testing.T) {
	thisMorning := ride(time.Date(2025, time.June, 15, 0, 0, 1, 0, time.UTC), 1000, 60)
	lastNight := ride(time.Date(2025, time.June, 14, 23, 59, 0, 0, time.UTC), 1000, 60)

	filtered := FilterByPeriod([]sdk.Activity{thisMorning, lastNight}, PeriodToday, testNow)

	require.Len(t, filtered, 1)
	assert.Equal(t, thisMorning.StartDate, filtered[0].StartDate)
}

func TestMonthAndYearAnchorToCalendar(t *testing.T) {
	firstOfMonth := ride(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), 1000, 60)
	endOfMay := ride(time.Date(2025, time.May, 31, 23, 0, 0, 0, time.UTC), 1000, 60)
	january := ride(time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC), 1000, 60)
	lastYear := ride(time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), 1000, 60)

	all := []sdk.Activity{firstOfMonth, endOfMay, january, lastYear}

	assert.Len(t, FilterByPeriod(all, PeriodMonth, testNow), 1)
	assert.Len(t, FilterByPeriod(all, PeriodYear, testNow), 3)
}

func TestRecentActivitiesCapAndOrder(t *testing.T) {
	activities := []sdk.Activity{}
	for day := 0; day < 8; day++ {
		activities = append(activities, ride(testNow.AddDate(0, 0, -day), 1000, 60))
	}

	summary := Compute(activities, Period30Days, testNow)

	require.Len(t, summary.RecentActivities, 5)
	for i := 1; i < len(summary.RecentActivities); i++ {
		assert.True(t, summary.RecentActivities[i-1].StartDate.After(summary.RecentActivities[i].StartDate))
	}
}

func TestParsePeriodDefaults(t *testing.T) {
	assert.Equal(t, Period30Days, ParsePeriod(""))
	assert.Equal(t, Period30Days, ParsePeriod("bogus"))
	assert.Equal(t, PeriodWeek, ParsePeriod("week"))
	assert.Equal(t, PeriodYear, ParsePeriod("year"))
}

func TestPerPageScalesWithPeriod(t *testing.T) {
	assert.Equal(t, 200, PeriodYear.PerPage())
	assert.Equal(t, 100, PeriodMonth.PerPage())
	assert.Equal(t, 50, PeriodWeek.PerPage())
	assert.Equal(t, 50, Period30Days.PerPage())
	assert.Equal(t, 50, PeriodToday.PerPage())
}

func TestComputeIsDeterministic(t *testing.T) {
	activities := []sdk.Activity{
		ride(testNow.AddDate(0, 0, -1), 12000, 1800),
		ride(testNow.AddDate(0, 0, -2), 8000, 1200),
	}

	first := Compute(activities, PeriodWeek, testNow)
	second := Compute(activities, PeriodWeek, testNow)
	assert.Equal(t, first, second)
}
