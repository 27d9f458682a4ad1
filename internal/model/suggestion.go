package model

import "time"

type SuggestionType string

const (
	SuggestionNextAction   SuggestionType = "next-action"
	SuggestionCatchUp      SuggestionType = "catch-up"
	SuggestionOptimization SuggestionType = "optimization"
	SuggestionMotivation   SuggestionType = "motivation"
)

// SmartSuggestion is an actionable recommendation derived from the
// current collections. ActionData is interpreted by the consumer.
type SmartSuggestion struct {
	ID            string         `json:"id"`
	Type          SuggestionType `json:"type"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Reasoning     string         `json:"reasoning"`
	Priority      Priority       `json:"priority"`
	EstimatedTime int            `json:"estimatedTime"`
	Points        int            `json:"points"`
	ActionData    map[string]any `json:"actionData,omitempty"`
	ExpiresAt     time.Time      `json:"expiresAt"`
	Dismissed     bool           `json:"dismissed,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Key identifies what a suggestion is about, independent of when it was made.
func (s SmartSuggestion) Key() string {
	if s.ActionData != nil {
		if id, ok := s.ActionData["entityId"].(string); ok && id != "" {
			return string(s.Type) + ":" + id
		}
	}
	return string(s.Type) + ":" + s.Title
}
