package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Routine is a recurring activity scheduled on a set of weekdays.
type Routine struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Time       string    `json:"time"`
	DaysOfWeek []int     `json:"daysOfWeek"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RunsOn reports whether the routine is scheduled on the given weekday.
// Sunday is 0.
func (r Routine) RunsOn(day time.Weekday) bool {
	for _, d := range r.DaysOfWeek {
		if d == int(day) {
			return true
		}
	}
	return false
}

// TimeOn returns the routine's clock time on the calendar day of day.
func (r Routine) TimeOn(day time.Time) (time.Time, error) {
	clock, err := time.Parse("15:04", r.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing routine time %q: %w", r.Time, err)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, day.Location()), nil
}

func (r Routine) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("model: routine title is required")
	}
	if _, err := time.Parse("15:04", r.Time); err != nil {
		return errors.New("model: routine time must be HH:MM")
	}
	for _, d := range r.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("model: routine day %d out of range 0-6", d)
		}
	}
	return nil
}
