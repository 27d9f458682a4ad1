package collection

import (
	"strings"

	"github.com/nhle/chronicle/internal/model"
)

type Resources struct {
	Collection[model.Resource]
}

func NewResources(c Collection[model.Resource]) *Resources {
	return &Resources{Collection: c}
}

func (r *Resources) ByType(typ model.ResourceType) []model.Resource {
	return filter(r.Items(), func(res model.Resource) bool { return res.Type == typ })
}

func (r *Resources) ByCategory(category string) []model.Resource {
	return filter(r.Items(), func(res model.Resource) bool {
		return strings.EqualFold(res.Category, category)
	})
}

// Search matches query case-insensitively against title, content and tags.
func (r *Resources) Search(query string) []model.Resource {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return r.Items()
	}
	return filter(r.Items(), func(res model.Resource) bool {
		if strings.Contains(strings.ToLower(res.Title), q) ||
			strings.Contains(strings.ToLower(res.Content), q) {
			return true
		}
		for _, tag := range res.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				return true
			}
		}
		return false
	})
}
