package sdk

import (
	"errors"
	"net/http"
	"time"

	resty "github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts   = 3
	defaultRetryWaitBase = time.Second
)

// determine whether or not to retry a request
func retryConditionFunc(r *resty.Response, err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		// retry only server-side failures; 401 and other 4xx are final
		if statusErr.Code >= 500 {
			log.WithError(err).Debug("server error from strava, will retry")
			return true
		}
		return false
	}

	// network error or timeout, no response to inspect
	return r == nil || r.RawResponse == nil
}

// convert non 200 status code responses into error
func afterResponseConvertNon200ToError(c *resty.Client, r *resty.Response) error {
	switch r.StatusCode() {
	case http.StatusBadRequest:
		return ErrorBadRequest
	case http.StatusUnauthorized:
		return ErrorUnauthorized
	case http.StatusNotFound:
		return ErrorNotFound
	case http.StatusTooManyRequests:
		return ErrorTooManyRequests
	case http.StatusInternalServerError:
		return ErrorInternalServerError
	default:
		if r.StatusCode() >= 300 {
			return makeHTTPError(r.StatusCode())
		}
		return nil
	}
}

// exponential backoff: base, 2*base, 4*base, ...
func makeRetryAfterFunc(base time.Duration) resty.RetryAfterFunc {
	return func(c *resty.Client, r *resty.Response) (time.Duration, error) {
		attempt := 1
		if r != nil && r.Request != nil && r.Request.Attempt > 0 {
			attempt = r.Request.Attempt
		}
		return base << (attempt - 1), nil
	}
}

func newHTTPClient(config StravaSDKConfig) *resty.Client {
	http := &http.Client{Timeout: config.Timeout}
	limits := newRateLimitState(time.Now)
	return resty.
		NewWithClient(http).
		SetRetryCount(config.maxAttempts() - 1).
		SetRetryAfter(makeRetryAfterFunc(config.retryWaitBase())).
		AddRetryCondition(retryConditionFunc).
		OnBeforeRequest(makeAPILimitRequestMiddleware(limits)).
		OnAfterResponse(makeAPILimitResponseMiddleware(limits)).
		OnAfterResponse(afterResponseConvertNon200ToError)
}
