package model

import (
	"errors"
	"strings"
	"time"
)

// Task is a single to-do item, optionally part of a routine.
type Task struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Completed    bool      `json:"completed"`
	IsRoutine    bool      `json:"isRoutine"`
	DueDate      string    `json:"dueDate,omitempty"`
	ReminderTime string    `json:"reminderTime,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Validate checks the fields a caller must supply.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("model: task title is required")
	}
	if t.DueDate != "" {
		if _, ok := ParseDate(t.DueDate, time.UTC); !ok {
			return errors.New("model: task due date must be YYYY-MM-DD")
		}
	}
	return nil
}
