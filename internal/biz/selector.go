package biz

import (
	"fmt"
	"strings"

	"FlapBoard/internal/conf"
	"FlapBoard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// ModelSelector maps a quality/cost tier to its configured (provider,
// model) preference list. Select returns the preferred pair; Alternate
// returns a fallback pair from a different provider, or nil when the
// tier has no second provider.
type ModelSelector struct {
	tiers  map[model.ModelTier][]conf.TierModel
	logger *log.Helper
}

// NewModelSelector builds a selector from the configured tier lists.
func NewModelSelector(cfg *conf.AI, logger log.Logger) *ModelSelector {
	tiers := make(map[model.ModelTier][]conf.TierModel)
	if cfg != nil {
		for name, list := range cfg.Tiers {
			tiers[model.ModelTier(strings.ToUpper(name))] = list
		}
	}
	return &ModelSelector{
		tiers:  tiers,
		logger: log.NewHelper(logger),
	}
}

// Select returns the preferred selection for a tier. An unknown or empty
// tier is a configuration error.
func (s *ModelSelector) Select(tier model.ModelTier) (*model.ModelSelection, error) {
	list, ok := s.tiers[tier]
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("no models configured for tier %s", tier)
	}
	return &model.ModelSelection{
		Provider: list[0].Provider,
		Model:    list[0].Model,
		Tier:     tier,
	}, nil
}

// Alternate returns the next selection for the same tier whose provider
// differs from the given one, or nil when no distinct provider exists.
func (s *ModelSelector) Alternate(sel *model.ModelSelection) *model.ModelSelection {
	if sel == nil {
		return nil
	}
	for _, tm := range s.tiers[sel.Tier] {
		if tm.Provider == sel.Provider {
			continue
		}
		return &model.ModelSelection{
			Provider: tm.Provider,
			Model:    tm.Model,
			Tier:     sel.Tier,
		}
	}
	return nil
}
