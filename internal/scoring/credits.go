package scoring

import (
	"math"
	"sort"

	"teacher_connect_backend/internal/config"
	"teacher_connect_backend/internal/model"
)

type Tier struct {
	MinPercentage float64
	Credits       int
}

// CreditPolicy maps a percentage to base credits and scales them by difficulty.
type CreditPolicy struct {
	// Tiers sorted by MinPercentage, highest first.
	Tiers       []Tier
	BaseCredits int
	Multipliers map[model.Difficulty]float64
}

func DefaultCreditPolicy() CreditPolicy {
	return CreditPolicy{
		Tiers: []Tier{
			{MinPercentage: 90, Credits: 50},
			{MinPercentage: 80, Credits: 40},
			{MinPercentage: 70, Credits: 30},
			{MinPercentage: 60, Credits: 20},
		},
		BaseCredits: 10,
		Multipliers: map[model.Difficulty]float64{
			model.DifficultyEasy:   1.0,
			model.DifficultyMedium: 1.2,
			model.DifficultyHard:   1.5,
		},
	}
}

// NewCreditPolicy builds a policy from config; missing parts fall back to the defaults.
func NewCreditPolicy(cfg config.CreditsConfig) CreditPolicy {
	p := DefaultCreditPolicy()

	if len(cfg.Tiers) > 0 {
		p.Tiers = make([]Tier, 0, len(cfg.Tiers))
		for _, t := range cfg.Tiers {
			p.Tiers = append(p.Tiers, Tier{MinPercentage: t.MinPercentage, Credits: t.Credits})
		}
		sort.Slice(p.Tiers, func(i, j int) bool {
			return p.Tiers[i].MinPercentage > p.Tiers[j].MinPercentage
		})
	}
	if cfg.BaseCredits > 0 {
		p.BaseCredits = cfg.BaseCredits
	}
	for name, m := range cfg.Multipliers {
		if m > 0 {
			p.Multipliers[model.Difficulty(name)] = m
		}
	}
	return p
}

func (p CreditPolicy) Base(percentage float64) int {
	for _, t := range p.Tiers {
		if percentage >= t.MinPercentage {
			return t.Credits
		}
	}
	return p.BaseCredits
}

// Multiplier defaults to 1 for an unknown difficulty.
func (p CreditPolicy) Multiplier(d model.Difficulty) float64 {
	if m, ok := p.Multipliers[d]; ok {
		return m
	}
	return 1.0
}

func (p CreditPolicy) Credits(percentage float64, d model.Difficulty) int {
	return int(math.Round(float64(p.Base(percentage)) * p.Multiplier(d)))
}
