package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	resty "github.com/go-resty/resty/v2"
)

type sdkImpl struct {
	client       *resty.Client
	baseURL      string
	clientID     string
	clientSecret string
}

const (
	// according to https://developers.strava.com/docs/
	maxPaginatedResults = 200
	apiRootURL          = "https://www.strava.com/api/v3/"
)

func (sdk sdkImpl) ExchangeAuthToken(ctx context.Context, code string) (*AuthorizationCodeResponse, error) {
	res, err := sdk.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     sdk.clientID,
			"client_secret": sdk.clientSecret,
			"grant_type":    "authorization_code",
			"code":          code,
		}).
		Post(sdk.baseURL + "oauth/token")

	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	authCodeResponse := &AuthorizationCodeResponse{}
	err = json.Unmarshal(res.Body(), authCodeResponse)
	return authCodeResponse, err
}

func (sdk sdkImpl) RefreshAuthToken(ctx context.Context, refreshToken string) (*StravaTokens, error) {
	res, err := sdk.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     sdk.clientID,
			"client_secret": sdk.clientSecret,
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}).
		Post(sdk.baseURL + "oauth/token")

	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	tokens := &StravaTokens{}
	err = json.Unmarshal(res.Body(), tokens)
	return tokens, err
}

// GetActivities returns the most recent activities for the authenticated
// athlete, up to perPage results. Strava has no server side date filter, so
// window selection happens after the fetch.
func (sdk sdkImpl) GetActivities(ctx context.Context, token string, perPage int) ([]Activity, error) {
	if perPage > maxPaginatedResults {
		perPage = maxPaginatedResults
	}

	res, err := sdk.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		SetQueryParams(map[string]string{
			"per_page": strconv.Itoa(perPage),
		}).
		Get(sdk.baseURL + "athlete/activities")

	if err != nil {
		return nil, classifyTerminalError(err)
	}

	activities := []Activity{}
	if err := json.Unmarshal(res.Body(), &activities); err != nil {
		return nil, fmt.Errorf("decoding activities: %w", err)
	}
	return activities, nil
}

func (sdk sdkImpl) GetAthlete(ctx context.Context, token string) (*Athlete, error) {
	res, err := sdk.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		Get(sdk.baseURL + "athlete")

	if err != nil {
		return nil, classifyTerminalError(err)
	}

	athlete := &Athlete{}
	if err := json.Unmarshal(res.Body(), athlete); err != nil {
		return nil, fmt.Errorf("decoding athlete: %w", err)
	}
	return athlete, nil
}

// classifyTerminalError folds raw transport failures into
// ErrorUpstreamUnreachable once the retry budget is exhausted; status-coded
// errors pass through for the caller to classify.
func classifyTerminalError(err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrorUpstreamUnreachable, err)
}
