package scoring

import (
	"testing"

	"teacher_connect_backend/internal/config"
	"teacher_connect_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCredits(t *testing.T) {
	p := DefaultCreditPolicy()

	tests := []struct {
		percentage float64
		difficulty model.Difficulty
		want       int
	}{
		{90, model.DifficultyHard, 75},
		{55, model.DifficultyEasy, 10},
		{72, model.DifficultyMedium, 36},
		{100, model.DifficultyEasy, 50},
		{0, model.DifficultyEasy, 10},
		{80, model.DifficultyEasy, 40},
		{79.99, model.DifficultyEasy, 30},
		{60, model.DifficultyHard, 30},
		{0, model.DifficultyMedium, 12},
		{85, model.Difficulty("unknown"), 40},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Credits(tt.percentage, tt.difficulty),
			"credits(%v, %s)", tt.percentage, tt.difficulty)
	}
}

func TestCreditsDeterministic(t *testing.T) {
	p := DefaultCreditPolicy()
	for i := 0; i < 10; i++ {
		assert.Equal(t, 36, p.Credits(72, model.DifficultyMedium))
	}
}

func TestNewCreditPolicyFromConfig(t *testing.T) {
	p := NewCreditPolicy(config.CreditsConfig{
		Tiers: []config.CreditTier{
			{MinPercentage: 50, Credits: 5},
			{MinPercentage: 100, Credits: 100},
		},
		BaseCredits: 1,
		Multipliers: map[string]float64{"hard": 2},
	})

	assert.Equal(t, 200, p.Credits(100, model.DifficultyHard))
	assert.Equal(t, 5, p.Credits(75, model.DifficultyEasy))
	assert.Equal(t, 1, p.Credits(10, model.DifficultyEasy))
	assert.Equal(t, 6, p.Credits(60, model.DifficultyMedium))
}

func TestNewCreditPolicyEmptyConfigMatchesDefault(t *testing.T) {
	assert.Equal(t, DefaultCreditPolicy(), NewCreditPolicy(config.CreditsConfig{}))
}
