package backend

import (
	"context"

	"github.com/jmallard/velostats/internal/auth"
	"github.com/jmallard/velostats/internal/cache"
	"github.com/jmallard/velostats/internal/goals"
	"github.com/jmallard/velostats/internal/kv"
	"github.com/jmallard/velostats/internal/strava/sdk"
)

type Dependencies struct {
	Store  kv.Store
	Strava sdk.StravaSDK
	Auth   *auth.Service
	Cache  *cache.Service
	Goals  *goals.Service
}

func GetDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	store, err := kv.NewBadgerStore(config.Cache.DBPath)
	if err != nil {
		return nil, err
	}

	stravaSDK := sdk.NewStravaSDK(sdk.StravaSDKConfig{
		Timeout:      config.HttpClient.Timeout,
		ClientID:     config.Strava.ClientID,
		ClientSecret: config.Strava.ClientSecret,
	})

	cookies := &auth.CookieStore{Secure: config.Production()}

	deps := &Dependencies{
		Store:  store,
		Strava: stravaSDK,
		Auth:   auth.NewService(stravaSDK, cookies, config.Strava.ClientID, config.PublicURL),
		Cache: cache.NewService(stravaSDK, store, cache.Config{
			RateLimitWindow: config.Cache.RateLimitWindow,
			MaxAge:          config.Cache.MaxAge,
		}),
		Goals: goals.NewService(store),
	}

	return deps, nil
}

func (d *Dependencies) Close() error {
	return d.Store.Close()
}
