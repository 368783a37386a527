package stats

import (
	"regexp"
	"strings"

	"github.com/jmallard/velostats/internal/strava/sdk"
)

// Rough bounding box for the United Kingdom.
const (
	ukMinLat = 49.9
	ukMaxLat = 58.7
	ukMinLng = -8.2
	ukMaxLng = 1.8
)

const unitedKingdom = "United Kingdom"

// Timezones arrive as "(GMT-08:00) America/Los_Angeles".
var timezoneRegexp = regexp.MustCompile(`\(GMT[+-]\d{2}:\d{2}\)\s+(.+)`)

// inferLocation resolves a display label for where an activity happened.
// Precedence: start coordinates, then the deprecated location_country field,
// then the timezone string. An empty result means the activity contributes
// nothing to the location tally.
func inferLocation(activity sdk.Activity) string {
	if len(activity.StartLatLng) == 2 {
		lat, lng := activity.StartLatLng[0], activity.StartLatLng[1]
		if lat >= ukMinLat && lat <= ukMaxLat && lng >= ukMinLng && lng <= ukMaxLng {
			return unitedKingdom
		}
	}

	if activity.LocationCountry != "" {
		return activity.LocationCountry
	}

	if activity.Timezone != "" {
		return locationFromTimezone(activity.Timezone)
	}

	return ""
}

func locationFromTimezone(timezone string) string {
	match := timezoneRegexp.FindStringSubmatch(timezone)
	if match == nil {
		return ""
	}

	parts := strings.Split(match[1], "/")
	region := parts[0]
	city := ""
	if len(parts) > 1 {
		city = parts[1]
	}

	// Strava stamps GMT+0 activities with Africa/Abidjan by default; that
	// placeholder must never surface as a real location.
	if region == "Africa" && city == "Abidjan" {
		return unitedKingdom
	}

	if region == "Europe" && city == "London" {
		return unitedKingdom
	}

	if city != "" {
		return strings.ReplaceAll(city, "_", " ")
	}
	return region
}
