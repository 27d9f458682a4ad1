package collection

import (
	"slices"

	"github.com/nhle/chronicle/internal/model"
)

type Achievements struct {
	Collection[model.Achievement]
}

func NewAchievements(c Collection[model.Achievement]) *Achievements {
	return &Achievements{Collection: c}
}

func (a *Achievements) ByType(typ string) []model.Achievement {
	return filter(a.Items(), func(item model.Achievement) bool { return item.Type == typ })
}

func (a *Achievements) WithTag(tag string) []model.Achievement {
	return filter(a.Items(), func(item model.Achievement) bool { return slices.Contains(item.Tags, tag) })
}
