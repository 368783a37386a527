// Package stats turns a raw activity list into the summary the dashboard
// renders. Everything here is a pure function of its inputs; the reference
// time is always passed in so aggregation is deterministic under test.
package stats

import (
	"sort"
	"strconv"
	"time"

	"github.com/jmallard/velostats/internal/strava/sdk"
)

// LocationCount is one entry of the top-locations list.
type LocationCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary is recomputed in full on every load and never merged incrementally.
type Summary struct {
	TotalDistance      float64         `json:"totalDistance"`
	TotalMovingTime    int             `json:"totalMovingTime"`
	TotalElevationGain float64         `json:"totalElevationGain"`
	TotalActivities    int             `json:"totalActivities"`
	RecentActivities   []sdk.Activity  `json:"recentActivities"`
	ActivityTypes      map[string]int  `json:"activityTypes"`
	Locations          []LocationCount `json:"locations"`

	TotalDistanceKm      string `json:"totalDistanceKm"`
	TotalMovingTimeHours string `json:"totalMovingTimeHours"`
	AverageSpeed         string `json:"averageSpeed"`
}

const (
	recentActivityCount = 5
	topLocationCount    = 5
)

// FilterByPeriod keeps activities that started inside the period's window,
// newest first.
func FilterByPeriod(activities []sdk.Activity, period Period, now time.Time) []sdk.Activity {
	cutoff := period.CutoffAt(now)

	filtered := []sdk.Activity{}
	for _, activity := range activities {
		if !activity.StartDate.Before(cutoff) {
			filtered = append(filtered, activity)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].StartDate.After(filtered[j].StartDate)
	})
	return filtered
}

// Compute filters activities to the requested period and derives the summary.
func Compute(activities []sdk.Activity, period Period, now time.Time) *Summary {
	filtered := FilterByPeriod(activities, period, now)

	summary := &Summary{
		TotalActivities:  len(filtered),
		RecentActivities: recent(filtered),
		ActivityTypes:    map[string]int{},
	}

	locationCounts := map[string]int{}
	for _, activity := range filtered {
		summary.TotalDistance += activity.Distance
		summary.TotalMovingTime += activity.MovingTime
		summary.TotalElevationGain += activity.TotalElevationGain

		activityType := activity.Type
		if activityType == "" {
			activityType = "Unknown"
		}
		summary.ActivityTypes[activityType]++

		if location := inferLocation(activity); location != "" {
			locationCounts[location]++
		}
	}

	summary.Locations = topLocations(locationCounts)

	summary.TotalDistanceKm = formatOneDecimal(summary.TotalDistance / 1000)
	summary.TotalMovingTimeHours = formatOneDecimal(float64(summary.TotalMovingTime) / 3600)
	summary.AverageSpeed = averageSpeed(summary.TotalDistance, summary.TotalMovingTime)

	return summary
}

func recent(filtered []sdk.Activity) []sdk.Activity {
	if len(filtered) > recentActivityCount {
		return filtered[:recentActivityCount]
	}
	return filtered
}

func topLocations(counts map[string]int) []LocationCount {
	locations := []LocationCount{}
	for name, count := range counts {
		// the Abidjan placeholder must never reach the UI
		if name == "Abidjan" {
			continue
		}
		locations = append(locations, LocationCount{Name: name, Count: count})
	}

	sort.Slice(locations, func(i, j int) bool {
		if locations[i].Count != locations[j].Count {
			return locations[i].Count > locations[j].Count
		}
		return locations[i].Name < locations[j].Name
	})

	if len(locations) > topLocationCount {
		locations = locations[:topLocationCount]
	}
	return locations
}

// averageSpeed is distance weighted: total distance over total moving time,
// not a mean of per-activity speeds.
func averageSpeed(distanceMeters float64, movingTimeSeconds int) string {
	if distanceMeters <= 0 || movingTimeSeconds <= 0 {
		return "0"
	}
	kmh := distanceMeters / float64(movingTimeSeconds) * 3.6
	return formatOneDecimal(kmh)
}

func formatOneDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
