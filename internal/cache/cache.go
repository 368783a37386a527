// Package cache mediates every activity load. It decides whether the network
// is touched at all, refreshes the session once on a 401, and degrades to the
// last persisted result when Strava is rate limiting or down.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/jmallard/velostats/internal/kv"
	"github.com/jmallard/velostats/internal/stats"
	"github.com/jmallard/velostats/internal/strava/sdk"
)

var (
	// ErrSessionExpired means a 401 could not be recovered by a token
	// refresh; the user must log in again.
	ErrSessionExpired = errors.New("session expired")

	// ErrRateLimited is surfaced only when Strava rate limits and no cached
	// result exists to fall back on.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUpstreamDown is surfaced only when Strava is unreachable and no
	// cached result exists to fall back on.
	ErrUpstreamDown = errors.New("strava unavailable")
)

const (
	defaultRateLimitWindow = 15 * time.Minute
	defaultMaxAge          = 30 * time.Minute
)

// Entry is the persisted unit of cache: the filtered activity list, its
// summary, and when it was written.
type Entry struct {
	Activities []sdk.Activity `json:"activities"`
	Stats      *stats.Summary `json:"stats"`
	CachedAt   int64          `json:"cachedAt"`
}

// Result is what a load produces, fresh or cached.
type Result struct {
	Activities   []sdk.Activity
	Stats        *stats.Summary
	FromCache    bool
	IsStravaDown bool
	Message      string
}

// RefreshFunc rotates the session tokens and returns a fresh access token.
type RefreshFunc func(ctx context.Context) (string, error)

type LoadRequest struct {
	AthleteID   int
	Period      stats.Period
	AccessToken string
	Refresh     RefreshFunc
}

type Config struct {
	// RateLimitWindow is the minimum gap between upstream fetches for the
	// same athlete and period. Zero means 15 minutes.
	RateLimitWindow time.Duration

	// MaxAge is how long a persisted entry stays fresh enough to serve
	// without fetching. Zero means 30 minutes.
	MaxAge time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	stravaSDK sdk.StravaSDK
	store     kv.Store
	window    time.Duration
	maxAge    time.Duration
	now       func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	lastFetch map[string]time.Time
}

func NewService(stravaSDK sdk.StravaSDK, store kv.Store, config Config) *Service {
	if config.RateLimitWindow <= 0 {
		config.RateLimitWindow = defaultRateLimitWindow
	}
	if config.MaxAge <= 0 {
		config.MaxAge = defaultMaxAge
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Service{
		stravaSDK: stravaSDK,
		store:     store,
		window:    config.RateLimitWindow,
		maxAge:    config.MaxAge,
		now:       config.Now,
		lastFetch: map[string]time.Time{},
	}
}

// Load returns activities and stats for the requested period. Overlapping
// loads for the same athlete and period collapse into a single upstream call.
func (s *Service) Load(ctx context.Context, req LoadRequest) (*Result, error) {
	key := cacheKey(req.AthleteID, req.Period)

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.load(ctx, key, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (s *Service) load(ctx context.Context, key string, req LoadRequest) (*Result, error) {
	now := s.now()

	entry, hasCache := s.readEntry(key)
	if hasCache && !s.shouldFetch(key, entry, now) {
		return cachedResult(entry, ""), nil
	}

	activities, err := s.fetchWithRefresh(ctx, req)
	switch {
	case err == nil:
		filtered := stats.FilterByPeriod(activities, req.Period, now)
		summary := stats.Compute(activities, req.Period, now)

		fresh := &Entry{Activities: filtered, Stats: summary, CachedAt: now.UnixMilli()}
		if storeErr := s.store.Set(key, fresh); storeErr != nil {
			log.WithError(storeErr).Warn("persisting activity cache entry failed")
		}
		s.setLastFetch(key, now)

		return &Result{Activities: filtered, Stats: summary}, nil

	case errors.Is(err, ErrSessionExpired):
		return nil, err

	case sdk.IsRateLimited(err):
		if hasCache {
			log.Warn("strava rate limited, serving cached activities")
			return cachedResult(entry, "Rate limit exceeded, showing previously cached data."), nil
		}
		return nil, ErrRateLimited

	case sdk.IsUpstreamDown(err):
		if hasCache {
			log.WithError(err).Warn("strava down, serving cached activities")
			result := cachedResult(entry, "Strava is currently unavailable, showing previously cached data.")
			result.IsStravaDown = true
			return result, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamDown, err)

	default:
		if hasCache {
			log.WithError(err).Warn("activity fetch failed, serving cached activities")
			return cachedResult(entry, "Unable to load fresh data, showing previously cached data."), nil
		}
		return nil, err
	}
}

// shouldFetch reports whether the network should be hit. Either an unexpired
// rate-limit window or a young enough persisted entry keeps us on cache.
func (s *Service) shouldFetch(key string, entry *Entry, now time.Time) bool {
	s.mu.Lock()
	last, fetched := s.lastFetch[key]
	s.mu.Unlock()

	if fetched && now.Sub(last) < s.window {
		return false
	}
	if now.Sub(time.UnixMilli(entry.CachedAt)) < s.maxAge {
		return false
	}
	return true
}

// fetchWithRefresh fetches activities and, on a 401, refreshes the session
// exactly once before retrying. There is no backoff loop around refresh.
func (s *Service) fetchWithRefresh(ctx context.Context, req LoadRequest) ([]sdk.Activity, error) {
	activities, err := s.stravaSDK.GetActivities(ctx, req.AccessToken, req.Period.PerPage())
	if err == nil || !sdk.IsUnauthorized(err) {
		return activities, err
	}

	if req.Refresh == nil {
		return nil, ErrSessionExpired
	}

	token, refreshErr := req.Refresh(ctx)
	if refreshErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, refreshErr)
	}

	activities, err = s.stravaSDK.GetActivities(ctx, token, req.Period.PerPage())
	if sdk.IsUnauthorized(err) {
		return nil, ErrSessionExpired
	}
	return activities, err
}

func (s *Service) readEntry(key string) (*Entry, bool) {
	entry := &Entry{}
	err := s.store.Get(key, entry)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		log.WithError(err).Warn("reading activity cache entry failed")
		return nil, false
	}
	return entry, true
}

func (s *Service) setLastFetch(key string, t time.Time) {
	s.mu.Lock()
	s.lastFetch[key] = t
	s.mu.Unlock()
}

func cachedResult(entry *Entry, message string) *Result {
	return &Result{
		Activities: entry.Activities,
		Stats:      entry.Stats,
		FromCache:  true,
		Message:    message,
	}
}

func cacheKey(athleteID int, period stats.Period) string {
	return fmt.Sprintf("activities/%d/%s", athleteID, period)
}
