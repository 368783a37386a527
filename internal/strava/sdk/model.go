package sdk

import "time"

// Athlete is the subset of the Strava athlete profile this system consumes.
type Athlete struct {
	ID        int    `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Profile   string `json:"profile"`
}

type AuthorizationCodeResponse struct {
	TokenType    string  `json:"token_type"`
	ExpiresAt    int64   `json:"expires_at"`
	ExpiresIn    int     `json:"expires_in"`
	RefreshToken string  `json:"refresh_token"`
	AccessToken  string  `json:"access_token"`
	Athlete      Athlete `json:"athlete"`
}

func (acr AuthorizationCodeResponse) Tokens() *StravaTokens {
	return &StravaTokens{
		AccessToken:  acr.AccessToken,
		ExpiresAt:    acr.ExpiresAt,
		ExpiresIn:    acr.ExpiresIn,
		RefreshToken: acr.RefreshToken,
	}
}

type StravaTokens struct {
	AccessToken  string `json:"access_token"`
	ExpiresAt    int64  `json:"expires_at"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// Activity is a narrow typed view of a Strava activity. Fields the dashboard
// never reads are left out and ignored at decode time.
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	Distance           float64   `json:"distance"`
	MovingTime         int       `json:"moving_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	StartDate          time.Time `json:"start_date"`
	StartLatLng        []float64 `json:"start_latlng,omitempty"`
	Timezone           string    `json:"timezone,omitempty"`
	// Deprecated upstream, still populated on old activities.
	LocationCountry string `json:"location_country,omitempty"`
	Map             struct {
		SummaryPolyline string `json:"summary_polyline,omitempty"`
	} `json:"map"`
}
