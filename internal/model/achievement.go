package model

import (
	"errors"
	"strings"
	"time"
)

// Achievement records something the user completed.
type Achievement struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	DateCompleted string    `json:"dateCompleted"`
	Tags          []string  `json:"tags"`
	ProofURL      string    `json:"proofUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (a Achievement) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return errors.New("model: achievement title is required")
	}
	return nil
}
