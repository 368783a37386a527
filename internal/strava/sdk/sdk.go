package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// StatusError represents a non-2xx response from the Strava API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP status = %d", e.Code)
}

func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	return ok && t.Code == e.Code
}

func makeHTTPError(code int) error {
	return &StatusError{Code: code}
}

// Common error codes for HTTP responses
var (
	ErrorBadRequest          = makeHTTPError(http.StatusBadRequest)
	ErrorUnauthorized        = makeHTTPError(http.StatusUnauthorized)
	ErrorNotFound            = makeHTTPError(http.StatusNotFound)
	ErrorTooManyRequests     = makeHTTPError(http.StatusTooManyRequests)
	ErrorInternalServerError = makeHTTPError(http.StatusInternalServerError)

	// ErrorUpstreamUnreachable is returned once the retry budget is spent on
	// network errors or timeouts without ever receiving a usable response.
	ErrorUpstreamUnreachable = errors.New("strava unreachable after retries")
)

// IsUnauthorized reports whether err is a 401 from Strava.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrorUnauthorized)
}

// IsRateLimited reports whether err is a 429 from Strava.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrorTooManyRequests)
}

// IsUpstreamDown reports whether err represents a 5xx response or an
// exhausted network-level retry budget.
func IsUpstreamDown(err error) bool {
	if errors.Is(err, ErrorUpstreamUnreachable) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500
	}
	return false
}

// StravaSDK wraps API calls to Strava
type StravaSDK interface {
	// authentication APIs
	ExchangeAuthToken(ctx context.Context, code string) (*AuthorizationCodeResponse, error)
	RefreshAuthToken(ctx context.Context, refreshToken string) (*StravaTokens, error)

	// athlete APIs
	GetActivities(ctx context.Context, token string, perPage int) ([]Activity, error)
	GetAthlete(ctx context.Context, token string) (*Athlete, error)
}

type StravaSDKConfig struct {
	Timeout      time.Duration
	ClientID     string
	ClientSecret string

	// BaseURL overrides the Strava API root, used by tests.
	BaseURL string

	// MaxAttempts bounds the total number of tries per request, including
	// the first one. Zero means the default of 3.
	MaxAttempts int

	// RetryWaitBase is the first backoff interval; each retry doubles it.
	// Zero means the default of 1s.
	RetryWaitBase time.Duration
}

// NewStravaSDK create a new SDK
func NewStravaSDK(config StravaSDKConfig) StravaSDK {
	return sdkImpl{
		client:       newHTTPClient(config),
		baseURL:      config.baseURL(),
		clientID:     config.ClientID,
		clientSecret: config.ClientSecret,
	}
}

func (c StravaSDKConfig) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return apiRootURL
}

func (c StravaSDKConfig) maxAttempts() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return defaultMaxAttempts
}

func (c StravaSDKConfig) retryWaitBase() time.Duration {
	if c.RetryWaitBase > 0 {
		return c.RetryWaitBase
	}
	return defaultRetryWaitBase
}
