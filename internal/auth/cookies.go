package auth

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmallard/velostats/internal/strava/sdk"
)

// Cookie names shared with the dashboard frontend. The athlete cookie is the
// only one client script may read.
const (
	AccessTokenCookie  = "strava_access_token"
	RefreshTokenCookie = "strava_refresh_token"
	AthleteCookie      = "strava_athlete"

	cookiePath = "/"

	// The refresh token outlives the access token by design so an expired
	// session can still rotate itself.
	refreshTokenTTL = 30 * 24 * time.Hour
)

// CookieStore is the cookie-backed token store. It holds no state beyond the
// secure flag; all reads and writes go through the request and response.
// Nothing outside this package touches these cookies.
type CookieStore struct {
	Secure bool
}

func (cs *CookieStore) AccessToken(c *gin.Context) (string, bool) {
	return readCookie(c, AccessTokenCookie)
}

func (cs *CookieStore) RefreshToken(c *gin.Context) (string, bool) {
	return readCookie(c, RefreshTokenCookie)
}

func (cs *CookieStore) Athlete(c *gin.Context) (*sdk.Athlete, error) {
	raw, ok := readCookie(c, AthleteCookie)
	if !ok {
		return nil, nil
	}

	athlete := &sdk.Athlete{}
	if err := json.Unmarshal([]byte(raw), athlete); err != nil {
		return nil, err
	}
	return athlete, nil
}

// WriteTokens overwrites both token cookies. The rotated refresh token
// replaces the old one, which upstream voids on use.
func (cs *CookieStore) WriteTokens(c *gin.Context, tokens *sdk.StravaTokens) {
	c.SetCookie(AccessTokenCookie, tokens.AccessToken, tokens.ExpiresIn, cookiePath, "", cs.Secure, true)
	c.SetCookie(RefreshTokenCookie, tokens.RefreshToken, int(refreshTokenTTL.Seconds()), cookiePath, "", cs.Secure, true)
}

// WriteSession stores the token pair plus the denormalized athlete identity.
// The identity cookie is script readable so the dashboard can render a name
// and avatar without a round trip; it expires with the access token.
func (cs *CookieStore) WriteSession(c *gin.Context, tokens *sdk.StravaTokens, athlete *sdk.Athlete) error {
	cs.WriteTokens(c, tokens)

	raw, err := json.Marshal(athlete)
	if err != nil {
		return err
	}
	c.SetCookie(AthleteCookie, string(raw), tokens.ExpiresIn, cookiePath, "", cs.Secure, false)
	return nil
}

// Clear drops every session cookie. Safe to call when none are set.
func (cs *CookieStore) Clear(c *gin.Context) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie, AthleteCookie} {
		c.SetCookie(name, "", -1, cookiePath, "", cs.Secure, name != AthleteCookie)
	}
}

// Present reports which session cookies exist on the request, for the
// development debug endpoint.
func (cs *CookieStore) Present(c *gin.Context) map[string]bool {
	present := map[string]bool{}
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie, AthleteCookie} {
		_, ok := readCookie(c, name)
		present[name] = ok
	}
	return present
}

func readCookie(c *gin.Context, name string) (string, bool) {
	value, err := c.Cookie(name)
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}
