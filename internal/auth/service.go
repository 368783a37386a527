// Package auth is the OAuth session manager: it runs the authorization-code
// exchange against Strava and owns the cookie-backed token store. Upstream
// failures never escape raw; every operation maps onto a small set of named
// errors the HTTP layer translates into redirects or status payloads.
package auth

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/jmallard/velostats/internal/strava/sdk"
)

const (
	authorizeURL = "https://www.strava.com/oauth/authorize"
	oauthScope   = "read,activity:read"
)

var (
	ErrMissingClientID = errors.New("strava client id not configured")
	ErrMissingCode     = errors.New("authorization code missing")
	ErrTokenExchange   = errors.New("token exchange failed")
	ErrNoRefreshToken  = errors.New("no refresh token found")
	ErrRefreshFailed   = errors.New("token refresh failed")
)

// Status is the session state reported to the frontend.
type Status struct {
	IsLoggedIn bool         `json:"isLoggedIn"`
	Athlete    *sdk.Athlete `json:"athlete"`
}

type Service struct {
	stravaSDK sdk.StravaSDK
	cookies   *CookieStore
	clientID  string
	publicURL string
}

func NewService(stravaSDK sdk.StravaSDK, cookies *CookieStore, clientID, publicURL string) *Service {
	return &Service{
		stravaSDK: stravaSDK,
		cookies:   cookies,
		clientID:  clientID,
		publicURL: publicURL,
	}
}

// AuthorizeURL builds the upstream authorization URL the login route
// redirects to. No local state is created at this point.
func (s *Service) AuthorizeURL() (string, error) {
	if s.clientID == "" {
		return "", ErrMissingClientID
	}

	conf := &oauth2.Config{
		ClientID:    s.clientID,
		RedirectURL: s.publicURL + "/auth/callback",
		Scopes:      []string{oauthScope},
		Endpoint: oauth2.Endpoint{
			AuthURL: authorizeURL,
		},
	}
	return conf.AuthCodeURL(""), nil
}

// HandleCallback exchanges the authorization code for a token pair and
// writes the session cookies.
func (s *Service) HandleCallback(c *gin.Context) error {
	code := c.Query("code")
	if code == "" {
		return ErrMissingCode
	}

	res, err := s.stravaSDK.ExchangeAuthToken(c.Request.Context(), code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		// upstream answered but without tokens; treat as a failed exchange
		return ErrTokenExchange
	}

	if err := s.cookies.WriteSession(c, res.Tokens(), &res.Athlete); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}

	log.WithField("athleteID", res.Athlete.ID).Info("session established")
	return nil
}

// Refresh rotates the token pair using the refresh-token cookie and returns
// the new access token. The old refresh token is void the moment upstream
// accepts it, so the rotated pair always overwrites the cookies.
func (s *Service) Refresh(c *gin.Context) (string, error) {
	refreshToken, ok := s.cookies.RefreshToken(c)
	if !ok {
		return "", ErrNoRefreshToken
	}

	tokens, err := s.stravaSDK.RefreshAuthToken(c.Request.Context(), refreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return "", ErrRefreshFailed
	}

	s.cookies.WriteTokens(c, tokens)
	return tokens.AccessToken, nil
}

// Status reports whether a session exists plus the cached athlete identity.
// A session predating identity caching heals itself with a profile fetch;
// that read is folded into the response, not written back.
func (s *Service) Status(c *gin.Context) Status {
	token, ok := s.cookies.AccessToken(c)
	if !ok {
		return Status{}
	}

	athlete, err := s.cookies.Athlete(c)
	if err == nil && athlete != nil {
		return Status{IsLoggedIn: true, Athlete: athlete}
	}
	if err != nil {
		log.WithError(err).Warn("athlete cookie unreadable, falling back to profile fetch")
	}

	profile, err := s.stravaSDK.GetAthlete(c.Request.Context(), token)
	if err != nil {
		log.WithError(err).Warn("profile fallback fetch failed")
		return Status{IsLoggedIn: true}
	}
	return Status{IsLoggedIn: true, Athlete: profile}
}

// Logout clears the session cookies. Idempotent; upstream tokens are left to
// expire on their own, Strava has no revoke call in this flow.
func (s *Service) Logout(c *gin.Context) {
	s.cookies.Clear(c)
}

// AccessToken exposes the current access token for the activity pipeline.
func (s *Service) AccessToken(c *gin.Context) (string, bool) {
	return s.cookies.AccessToken(c)
}

// AthleteID returns the athlete id from the identity cookie, or zero when
// unknown. The cache layer uses it only as a namespace key.
func (s *Service) AthleteID(c *gin.Context) int {
	athlete, err := s.cookies.Athlete(c)
	if err != nil || athlete == nil {
		return 0
	}
	return athlete.ID
}

// CookiePresence is used by the development-only debug route.
func (s *Service) CookiePresence(c *gin.Context) map[string]bool {
	return s.cookies.Present(c)
}
