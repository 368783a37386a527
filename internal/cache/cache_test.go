package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmallard/velostats/internal/kv"
	"github.com/jmallard/velostats/internal/stats"
	"github.com/jmallard/velostats/internal/strava/sdk"
)

type fakeSDK struct {
	activities   []sdk.Activity
	err          error
	calls        int
	tokensSeen   []string
	activitiesFn func(token string) ([]sdk.Activity, error)
}

func (f *fakeSDK) GetActivities(ctx context.Context, token string, perPage int) ([]sdk.Activity, error) {
	f.calls++
	f.tokensSeen = append(f.tokensSeen, token)
	if f.activitiesFn != nil {
		return f.activitiesFn(token)
	}
	return f.activities, f.err
}

func (f *fakeSDK) GetAthlete(ctx context.Context, token string) (*sdk.Athlete, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSDK) ExchangeAuthToken(ctx context.Context, code string) (*sdk.AuthorizationCodeResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSDK) RefreshAuthToken(ctx context.Context, refreshToken string) (*sdk.StravaTokens, error) {
	return nil, errors.New("not implemented")
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(fake *fakeSDK, store kv.Store) (*Service, *clock) {
	c := &clock{t: time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)}
	svc := NewService(fake, store, Config{
		RateLimitWindow: 15 * time.Minute,
		MaxAge:          30 * time.Minute,
		Now:             c.now,
	})
	return svc, c
}

func rideOn(t time.Time) sdk.Activity {
	return sdk.Activity{Type: "Ride", Distance: 10000, MovingTime: 1800, StartDate: t}
}

func loadRequest() LoadRequest {
	return LoadRequest{AthleteID: 42, Period: stats.PeriodWeek, AccessToken: "token"}
}

func TestLoadFetchesAndPersists(t *testing.T) {
	store := kv.NewMemoryStore()
	fake := &fakeSDK{activities: []sdk.Activity{rideOn(time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC))}}
	svc, _ := newTestService(fake, store)

	result, err := svc.Load(context.Background(), loadRequest())
	require.NoError(t, err)

	assert.False(t, result.FromCache)
	assert.Equal(t, 1, result.Stats.TotalActivities)
	assert.Equal(t, 1, fake.calls)

	entry := &Entry{}
	require.NoError(t, store.Get("activities/42/week", entry))
	assert.Len(t, entry.Activities, 1)
}

func TestRateLimitWindowServesCache(t *testing.T) {
	store := kv.NewMemoryStore()
	fake := &fakeSDK{activities: []sdk.Activity{rideOn(time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC))}}
	svc, c := newTestService(fake, store)

	first, err := svc.Load(context.Background(), loadRequest())
	require.NoError(t, err)

	c.advance(5 * time.Minute)
	second, err := svc.Load(context.Background(), loadRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, fake.calls, "second load within the window must not hit the network")
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Stats, second.Stats)
}

func TestExpiredWindowsTriggerFresh(t *testing.T) {
	store := kv.NewMemoryStore()
	fake := &fakeSDK{activities: []sdk.Activity{rideOn(time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC))}}
	svc, c := newTestService(fake, store)

	_, err := svc.Load(context.Background(), loadRequest())
	require.NoError(t, err)

	// both the rate-limit window and the cache max age must lapse
	c.advance(31 * time.Minute)
	result, err := svc.Load(context.Background(), loadRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, fake.calls)
	assert.False(t, result.FromCache)
}

func TestYoungPersistedEntrySurvivesRestart(t *testing.T) {
	store := kv.NewMemoryStore()
	fake := &fakeSDK{activities: []sdk.Activity{rideOn(time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC))}}
	svc, c := newTestService(fake, store)

	_, err := svc.Load(context.Background(), loadRequest())
	require.NoError(t, err)

	// a new service has no in-memory fetch timestamp, only the stored entry
	restarted := NewService(fake, store, Config{Now: c.now})
	c.advance(20 * time.Minute)

	result, err := restarted.Load(context.Background(), loadRequest())
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, 1, fake.calls)
}

func TestUnauthorizedTriggersSingleRefreshAndRetry(t *testing.T) {
	store := kv.NewMemoryStore()
	fake := &fakeSDK{}
	fake.activitiesFn = func(token string) ([]sdk.Activity, error) {
		if token == "fresh-token" {
			return []sdk.Activity{rideOn(time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC))}, nil
		}
		return nil, sdk.ErrorUnauthorized
	}
	svc, _ := newTestService(fake, store)

	refreshes := 0
	req := loadRequest()
	req.Refresh = func(ctx context.Context) (string, error) {
		refreshes++
		return "fresh-token", nil
	}

	result, err := svc.Load(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, refreshes)
	assert.Equal(t, 2, fake.calls)
	assert.Equal(t, []string{"token", "fresh-token"}, fake.tokensSeen)
	assert.Equal(t, 1, result.Stats.TotalActivities)
}

func TestRefreshFailureIsSessionExpired(t *testing.T) {
	store := kv.NewMemoryStore()
	fake := &fakeSDK{err: sdk.ErrorUnauthorized}
	svc, _ := newTestService(fake, store)

	req := loadRequest()
	req.Refresh = func(ctx context.Context) (string, error) {
		return "", errors.New("upstream rejected refresh")
	}

	_, err := svc.Load(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, fake.calls, "no fetch retry after a failed refresh")
}

func TestStillUnauthorizedAfterRefreshIsSessionExpired(t *testing.T) {
	store := kv.NewMemoryStore()
	fake := &fakeSDK{err: sdk.ErrorUnauthorized}
	svc, _ := newTestService(fake, store)

	req := loadRequest()
	req.Refresh = func(ctx context.Context) (string, error) { return "fresh-token", nil }

	_, err := svc.Load(context.Background(), req)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 2, fake.calls)
}

func TestOutageFallsBackToCache(t *testing.T) {
	store := kv.NewMemoryStore()
	fake := &fakeSDK{activities: []sdk.Activity{rideOn(time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC))}}
	svc, c := newTestService(fake, store)

	_, err := svc.Load(context.Background(), loadRequest())
	require.NoError(t, err)

	c.advance(31 * time.Minute)
	fake.err = sdk.ErrorInternalServerError
	fake.activities = nil

	result, err := svc.Load(context.Background(), loadRequest())
	require.NoError(t, err)

	assert.True(t, result.FromCache)
	assert.True(t, result.IsStravaDown)
	assert.NotEmpty(t, result.Message)
	assert.Equal(t, 1, result.Stats.TotalActivities)
}

func TestOutageWithEmptyCacheSurfacesError(t *testing.T) {
	store := kv.NewMemoryStore()
	fake := &fakeSDK{err: sdk.ErrorInternalServerError}
	svc, _ := newTestService(fake, store)

	_, err := svc.Load(context.Background(), loadRequest())
	assert.ErrorIs(t, err, ErrUpstreamDown)
}

func TestRateLimitedFallsBackToCache(t *testing.T) {
	store := kv.NewMemoryStore()
	fake := &fakeSDK{activities: []sdk.Activity{rideOn(time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC))}}
	svc, c := newTestService(fake, store)

	_, err := svc.Load(context.Background(), loadRequest())
	require.NoError(t, err)

	c.advance(31 * time.Minute)
	fake.err = sdk.ErrorTooManyRequests

	result, err := svc.Load(context.Background(), loadRequest())
	require.NoError(t, err)

	assert.True(t, result.FromCache)
	assert.False(t, result.IsStravaDown)
	assert.NotEmpty(t, result.Message)
}

func TestRateLimitedWithEmptyCacheSurfacesError(t *testing.T) {
	store := kv.NewMemoryStore()
	fake := &fakeSDK{err: sdk.ErrorTooManyRequests}
	svc, _ := newTestService(fake, store)

	_, err := svc.Load(context.Background(), loadRequest())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestPeriodsAreCachedSeparately(t *testing.T) {
	store := kv.NewMemoryStore()
	fake := &fakeSDK{activities: []sdk.Activity{rideOn(time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC))}}
	svc, _ := newTestService(fake, store)

	_, err := svc.Load(context.Background(), loadRequest())
	require.NoError(t, err)

	monthReq := loadRequest()
	monthReq.Period = stats.PeriodMonth
	result, err := svc.Load(context.Background(), monthReq)
	require.NoError(t, err)

	// a period never loaded before has nothing to serve from cache
	assert.False(t, result.FromCache)
	assert.Equal(t, 2, fake.calls)
}
