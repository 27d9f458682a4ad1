package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidGoalStatus = errors.New("model: invalid goal status")

// GoalStatus is derived from progress and never set independently.
type GoalStatus string

const (
	GoalNotStarted GoalStatus = "not-started"
	GoalInProgress GoalStatus = "in-progress"
	GoalCompleted  GoalStatus = "completed"
)

func (s GoalStatus) IsValid() bool {
	switch s {
	case GoalNotStarted, GoalInProgress, GoalCompleted:
		return true
	default:
		return false
	}
}

// Goal is a longer-running objective tracked by percentage progress.
type Goal struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      GoalStatus `json:"status"`
	Progress    int        `json:"progress"`
	TargetDate  string     `json:"targetDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ClampProgress bounds p to [0,100].
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// StatusForProgress maps an already clamped progress value to its status.
func StatusForProgress(p int) GoalStatus {
	switch {
	case p <= 0:
		return GoalNotStarted
	case p >= 100:
		return GoalCompleted
	default:
		return GoalInProgress
	}
}

// WithProgress returns g with progress clamped and status recomputed.
func (g Goal) WithProgress(p int) Goal {
	g.Progress = ClampProgress(p)
	g.Status = StatusForProgress(g.Progress)
	return g
}

// Normalized enforces the progress/status invariant on g.
func (g Goal) Normalized() Goal {
	return g.WithProgress(g.Progress)
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return errors.New("model: goal title is required")
	}
	if g.Status != "" && !g.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidGoalStatus, g.Status)
	}
	if g.TargetDate != "" {
		if _, ok := ParseDate(g.TargetDate, time.UTC); !ok {
			return errors.New("model: goal target date must be YYYY-MM-DD")
		}
	}
	return nil
}
