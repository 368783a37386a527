package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type HttpServerConfig struct {
	Port int `env:"PORT,default=8080"`
}

type HttpClientConfig struct {
	Timeout time.Duration `env:"HTTP_CLIENT_TIMEOUT,default=10s"`
}

// StravaAppConfig is not marked required: a missing client id must surface as
// a redirect with reason code, not a startup crash.
type StravaAppConfig struct {
	ClientID     string `env:"STRAVA_CLIENT_ID"`
	ClientSecret string `env:"STRAVA_CLIENT_SECRET"`
}

type CacheConfig struct {
	RateLimitWindow time.Duration `env:"CACHE_RATE_LIMIT_WINDOW,default=15m"`
	MaxAge          time.Duration `env:"CACHE_MAX_AGE,default=30m"`
	DBPath          string        `env:"CACHE_DB_PATH,default=./data/velostats"`
}

type Config struct {
	Env            string `env:"APP_ENV,default=development"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	PublicURL      string `env:"PUBLIC_URL,default=http://localhost:8080"`
	StaticFileRoot string `env:"STATIC_FILE_ROOT,default=./static"`
	HttpServer     HttpServerConfig
	HttpClient     HttpClientConfig
	Strava         StravaAppConfig
	Cache          CacheConfig
}

func (c *Config) Validate() error {
	var errs *multierror.Error

	switch c.Env {
	case "development", "staging", "production":
	default:
		errs = multierror.Append(errs, fmt.Errorf("APP_ENV must be development, staging or production; got %q", c.Env))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if c.Cache.RateLimitWindow <= 0 || c.Cache.MaxAge <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("cache windows must be positive"))
	}

	return errs.ErrorOrNil()
}

// Production reports whether cookies must carry the secure flag.
func (c *Config) Production() bool {
	return c.Env == "production"
}

func GetConfig(ctx context.Context) (*Config, error) {
	// a .env file is optional; real environments set variables directly
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment from .env")
	}

	var config Config
	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
