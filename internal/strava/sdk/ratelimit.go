package sdk

import (
	"strconv"
	"strings"
	"sync"
	"time"

	resty "github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

const (
	rateLimitHeader      = "X-Ratelimit-Limit"
	rateLimitUsageHeader = "X-Ratelimit-Usage"
)

// rateLimitState tracks how long the local client should back off based on
// the usage headers Strava attaches to every response. Strava enforces a
// 15-minute and a daily budget; once either is spent, further calls are
// rejected locally without touching the network.
type rateLimitState struct {
	mu           sync.Mutex
	limitedUntil time.Time
	now          func() time.Time
}

func newRateLimitState(now func() time.Time) *rateLimitState {
	return &rateLimitState{now: now}
}

func (s *rateLimitState) limitedUntilTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limitedUntil
}

func (s *rateLimitState) setLimitedUntil(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limitedUntil = t
}

type rateLimit struct {
	fifteenMinute int
	daily         int
}

// parse header containing rate limit information
func parseRateLimitHeader(r *resty.Response, headerName string) *rateLimit {
	h := r.Header().Get(headerName)
	parts := strings.Split(h, ",")
	if len(parts) != 2 {
		return nil
	}

	fifteenMinute, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil
	}
	daily, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil
	}

	return &rateLimit{fifteenMinute, daily}
}

func getDelayTime(now time.Time, bucket time.Duration) time.Time {
	return now.UTC().Truncate(bucket).Add(bucket)
}

// fail request early while in a rate limited window
func makeAPILimitRequestMiddleware(state *rateLimitState) resty.RequestMiddleware {
	return func(c *resty.Client, r *resty.Request) error {
		limitedUntil := state.limitedUntilTime()
		if state.now().UTC().Before(limitedUntil) {
			log.WithField("limitedUntil", limitedUntil).Warn("holding strava call, rate limit budget spent")
			return ErrorTooManyRequests
		}
		return nil
	}
}

// record consumed rate limit
func makeAPILimitResponseMiddleware(state *rateLimitState) resty.ResponseMiddleware {
	return func(c *resty.Client, r *resty.Response) error {
		limits := parseRateLimitHeader(r, rateLimitHeader)
		used := parseRateLimitHeader(r, rateLimitUsageHeader)
		if limits == nil || used == nil {
			return nil
		}

		now := state.now()
		if used.daily >= limits.daily {
			state.setLimitedUntil(getDelayTime(now, time.Hour*24))
		} else if used.fifteenMinute >= limits.fifteenMinute {
			state.setLimitedUntil(getDelayTime(now, time.Minute*15))
		}

		return nil
	}
}
