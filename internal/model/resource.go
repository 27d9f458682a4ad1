package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidResourceType = errors.New("model: invalid resource type")

type ResourceType string

const (
	ResourceNote  ResourceType = "note"
	ResourceLink  ResourceType = "link"
	ResourceFile  ResourceType = "file"
	ResourceOther ResourceType = "other"
)

func (t ResourceType) IsValid() bool {
	switch t {
	case ResourceNote, ResourceLink, ResourceFile, ResourceOther:
		return true
	default:
		return false
	}
}

// Resource is a saved note, link, or file reference.
type Resource struct {
	ID        string       `json:"id"`
	Type      ResourceType `json:"type"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	URL       string       `json:"url,omitempty"`
	Category  string       `json:"category"`
	Tags      []string     `json:"tags"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (r Resource) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("model: resource title is required")
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidResourceType, r.Type)
	}
	return nil
}
