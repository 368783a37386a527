// Package goals stores a single training goal per athlete and scores it
// against an aggregated stats summary.
package goals

import (
	"errors"
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"

	"github.com/jmallard/velostats/internal/kv"
	"github.com/jmallard/velostats/internal/stats"
)

const (
	TypeDistance   = "distance"
	TypeTime       = "time"
	TypeActivities = "activities"
)

var ErrNoGoal = errors.New("no goal set")

// Goal targets a distance (km), moving time (hours) or activity count over a
// recurring timeframe.
type Goal struct {
	Type      string  `json:"type"`
	Target    float64 `json:"target"`
	Timeframe string  `json:"timeframe"`
}

func (g Goal) Validate() error {
	var errs *multierror.Error

	switch g.Type {
	case TypeDistance, TypeTime, TypeActivities:
	default:
		errs = multierror.Append(errs, fmt.Errorf("type must be one of distance, time, activities; got %q", g.Type))
	}

	if g.Target <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("target must be positive; got %v", g.Target))
	}

	switch g.Timeframe {
	case "week", "month", "year":
	default:
		errs = multierror.Append(errs, fmt.Errorf("timeframe must be one of week, month, year; got %q", g.Timeframe))
	}

	return errs.ErrorOrNil()
}

// Period maps the goal timeframe onto an aggregation window.
func (g Goal) Period() stats.Period {
	switch g.Timeframe {
	case "week":
		return stats.PeriodWeek
	case "year":
		return stats.PeriodYear
	default:
		return stats.PeriodMonth
	}
}

// CurrentValue extracts the goal-relevant figure from a summary, in the
// goal's own unit.
func (g Goal) CurrentValue(summary *stats.Summary) float64 {
	if summary == nil {
		return 0
	}
	switch g.Type {
	case TypeTime:
		return float64(summary.TotalMovingTime) / 3600
	case TypeActivities:
		return float64(summary.TotalActivities)
	default:
		return summary.TotalDistance / 1000
	}
}

// Progress is the percentage of the target reached, capped at 100.
func (g Goal) Progress(summary *stats.Summary) float64 {
	if g.Target <= 0 {
		return 0
	}
	return math.Min(g.CurrentValue(summary)/g.Target*100, 100)
}

type Service struct {
	store kv.Store
}

func NewService(store kv.Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(athleteID int) (*Goal, error) {
	goal := &Goal{}
	err := s.store.Get(goalKey(athleteID), goal)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNoGoal
	}
	if err != nil {
		return nil, err
	}
	return goal, nil
}

func (s *Service) Set(athleteID int, goal Goal) error {
	if err := goal.Validate(); err != nil {
		return err
	}
	return s.store.Set(goalKey(athleteID), goal)
}

func (s *Service) Delete(athleteID int) error {
	return s.store.Delete(goalKey(athleteID))
}

func goalKey(athleteID int) string {
	return fmt.Sprintf("goals/%d", athleteID)
}
