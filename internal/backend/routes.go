package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/jmallard/velostats/internal/auth"
	"github.com/jmallard/velostats/internal/cache"
	"github.com/jmallard/velostats/internal/goals"
	"github.com/jmallard/velostats/internal/stats"
)

const (
	ResponseError        = "error"
	ResponseActivities   = "activities"
	ResponseStats        = "stats"
	ResponseFromCache    = "fromCache"
	ResponseMessage      = "message"
	ResponseStravaDown   = "isStravaDown"
	ResponseSuccess      = "success"
	ResponseGoal         = "goal"
	ResponseProgress     = "progress"
	ResponseCurrentValue = "currentValue"
	QueryParamCode       = "code"
	QueryParamPeriod     = "period"

	redirectHome                = "/"
	redirectMissingClientID     = "/?error=missing_client_id"
	redirectMissingCode         = "/?error=missing_code"
	redirectTokenExchangeFailed = "/?error=token_exchange_failed"
)

type HttpRoutes struct {
	LoginRoute        gin.HandlerFunc
	CallbackRoute     gin.HandlerFunc
	RefreshRoute      gin.HandlerFunc
	StatusRoute       gin.HandlerFunc
	LogoutRoute       gin.HandlerFunc
	CheckConfigRoute  gin.HandlerFunc
	DebugRoute        gin.HandlerFunc
	ActivitiesRoute   gin.HandlerFunc
	GetGoalRoute      gin.HandlerFunc
	PutGoalRoute      gin.HandlerFunc
	DeleteGoalRoute   gin.HandlerFunc
	GoalProgressRoute gin.HandlerFunc
	StaticFileServer  func(string) gin.HandlerFunc
}

func GetRoutes(config *Config, deps *Dependencies) *HttpRoutes {
	return &HttpRoutes{
		LoginRoute:        getLoginRoute(deps.Auth),
		CallbackRoute:     getCallbackRoute(deps.Auth),
		RefreshRoute:      getRefreshRoute(deps.Auth),
		StatusRoute:       getStatusRoute(deps.Auth),
		LogoutRoute:       getLogoutRoute(deps.Auth),
		CheckConfigRoute:  getCheckConfigRoute(config.Strava),
		DebugRoute:        getDebugRoute(config, deps.Auth),
		ActivitiesRoute:   getActivitiesRoute(deps.Auth, deps.Cache),
		GetGoalRoute:      getGoalRoute(deps.Auth, deps.Goals),
		PutGoalRoute:      putGoalRoute(deps.Auth, deps.Goals),
		DeleteGoalRoute:   deleteGoalRoute(deps.Auth, deps.Goals),
		GoalProgressRoute: getGoalProgressRoute(deps.Auth, deps.Cache, deps.Goals),
		StaticFileServer: func(urlPrefix string) gin.HandlerFunc {
			return static.Serve(urlPrefix, static.LocalFile(config.StaticFileRoot, false))
		},
	}
}

var getLoginRoute = func(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		url, err := authSvc.AuthorizeURL()
		if err != nil {
			log.WithError(err).Error("cannot start oauth flow")
			c.Redirect(http.StatusFound, redirectMissingClientID)
			return
		}
		c.Redirect(http.StatusFound, url)
	}
}

var getCallbackRoute = func(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := authSvc.HandleCallback(c)
		switch {
		case err == nil:
			c.Redirect(http.StatusFound, redirectHome)
		case errors.Is(err, auth.ErrMissingCode):
			c.Redirect(http.StatusFound, redirectMissingCode)
		default:
			log.WithError(err).Error("token exchange failed")
			c.Redirect(http.StatusFound, redirectTokenExchangeFailed)
		}
	}
}

var getRefreshRoute = func(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := authSvc.Refresh(c); err != nil {
			message := "Failed to refresh token"
			if errors.Is(err, auth.ErrNoRefreshToken) {
				message = "No refresh token found"
			} else {
				log.WithError(err).Warn("token refresh failed")
			}
			c.JSON(http.StatusUnauthorized, gin.H{ResponseError: message})
			return
		}
		c.JSON(http.StatusOK, gin.H{ResponseSuccess: true})
	}
}

var getStatusRoute = func(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, authSvc.Status(c))
	}
}

var getLogoutRoute = func(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authSvc.Logout(c)
		c.Redirect(http.StatusFound, redirectHome)
	}
}

var getCheckConfigRoute = func(stravaConfig StravaAppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"clientIdConfigured":     stravaConfig.ClientID != "",
			"clientSecretConfigured": stravaConfig.ClientSecret != "",
			"clientIdValue":          redactValue(stravaConfig.ClientID),
		})
	}
}

var getDebugRoute = func(config *Config, authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.Production() {
			c.JSON(http.StatusForbidden, gin.H{ResponseError: "Debugging is disabled in production"})
			return
		}

		status := authSvc.Status(c)
		c.JSON(http.StatusOK, gin.H{
			"cookies": authSvc.CookiePresence(c),
			"athlete": status.Athlete,
		})
	}
}

var getActivitiesRoute = func(authSvc *auth.Service, cacheSvc *cache.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := authSvc.AccessToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{ResponseError: "Not authenticated"})
			return
		}

		period := stats.ParsePeriod(c.Query(QueryParamPeriod))
		result, err := cacheSvc.Load(c.Request.Context(), cache.LoadRequest{
			AthleteID:   authSvc.AthleteID(c),
			Period:      period,
			AccessToken: token,
			Refresh: func(ctx context.Context) (string, error) {
				return authSvc.Refresh(c)
			},
		})
		if err != nil {
			writeLoadError(c, err)
			return
		}

		payload := gin.H{
			ResponseActivities: result.Activities,
			ResponseStats:      result.Stats,
		}
		if result.FromCache {
			payload[ResponseFromCache] = true
		}
		if result.Message != "" {
			payload[ResponseMessage] = result.Message
		}
		if result.IsStravaDown {
			payload[ResponseStravaDown] = true
		}
		c.JSON(http.StatusOK, payload)
	}
}

var getGoalRoute = func(authSvc *auth.Service, goalSvc *goals.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		athleteID, ok := requireSession(c, authSvc)
		if !ok {
			return
		}

		goal, err := goalSvc.Get(athleteID)
		if errors.Is(err, goals.ErrNoGoal) {
			c.JSON(http.StatusNotFound, gin.H{ResponseError: "No goal set"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{ResponseError: "Failed to load goal"})
			return
		}
		c.JSON(http.StatusOK, gin.H{ResponseGoal: goal})
	}
}

var putGoalRoute = func(authSvc *auth.Service, goalSvc *goals.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		athleteID, ok := requireSession(c, authSvc)
		if !ok {
			return
		}

		var goal goals.Goal
		if err := c.ShouldBindJSON(&goal); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{ResponseError: "Invalid goal payload"})
			return
		}

		if err := goal.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{ResponseError: err.Error()})
			return
		}

		if err := goalSvc.Set(athleteID, goal); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{ResponseError: "Failed to save goal"})
			return
		}
		c.JSON(http.StatusOK, gin.H{ResponseGoal: goal})
	}
}

var deleteGoalRoute = func(authSvc *auth.Service, goalSvc *goals.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		athleteID, ok := requireSession(c, authSvc)
		if !ok {
			return
		}

		if err := goalSvc.Delete(athleteID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{ResponseError: "Failed to delete goal"})
			return
		}
		c.JSON(http.StatusOK, gin.H{ResponseSuccess: true})
	}
}

var getGoalProgressRoute = func(authSvc *auth.Service, cacheSvc *cache.Service, goalSvc *goals.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		athleteID, ok := requireSession(c, authSvc)
		if !ok {
			return
		}

		goal, err := goalSvc.Get(athleteID)
		if errors.Is(err, goals.ErrNoGoal) {
			c.JSON(http.StatusNotFound, gin.H{ResponseError: "No goal set"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{ResponseError: "Failed to load goal"})
			return
		}

		token, _ := authSvc.AccessToken(c)
		result, err := cacheSvc.Load(c.Request.Context(), cache.LoadRequest{
			AthleteID:   athleteID,
			Period:      goal.Period(),
			AccessToken: token,
			Refresh: func(ctx context.Context) (string, error) {
				return authSvc.Refresh(c)
			},
		})
		if err != nil {
			writeLoadError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			ResponseGoal:         goal,
			ResponseProgress:     goal.Progress(result.Stats),
			ResponseCurrentValue: goal.CurrentValue(result.Stats),
		})
	}
}

// writeLoadError maps activity-pipeline failures onto the status codes and
// copy the dashboard expects.
func writeLoadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cache.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{ResponseError: "Authentication expired, please log in again"})
	case errors.Is(err, cache.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{ResponseError: "Rate limit exceeded. Please try again later."})
	case errors.Is(err, cache.ErrUpstreamDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			ResponseError:      "Strava service is currently unavailable. We'll try to show cached data if available.",
			ResponseStravaDown: true,
		})
	default:
		log.WithError(err).Error("activity load failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{ResponseError: "Failed to fetch activities. Please try again later."})
	}
}

// requireSession rejects requests without an access token and resolves the
// athlete namespace for per-user storage.
func requireSession(c *gin.Context, authSvc *auth.Service) (int, bool) {
	if _, ok := authSvc.AccessToken(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{ResponseError: "Not authenticated"})
		return 0, false
	}
	return authSvc.AthleteID(c), true
}

func redactValue(v string) string {
	if v == "" {
		return "not set"
	}
	if len(v) < 2 {
		return "..."
	}
	return v[:2] + "..."
}
