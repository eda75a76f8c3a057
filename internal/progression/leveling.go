// Package progression holds the pure rules that mutate a learner's game state:
// leveling, streaks, reward scaling and the coin economy. Nothing here touches
// storage; callers load and persist the state around these calls.
package progression

import (
	"math"
	"math/big"

	"github.com/vyakaran/platform/internal/domain"
)

// LevelChange reports the level before and after a leveling pass.
type LevelChange struct {
	From int
	To   int
}

// LeveledUp reports whether at least one level was gained.
func (c LevelChange) LeveledUp() bool { return c.To > c.From }

// ThresholdForLevel returns the experience needed to leave the given level:
// floor(100 * 1.5^(level-1)), computed exactly as 100*3^n / 2^n.
func ThresholdForLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	n := big.NewInt(int64(level - 1))
	num := new(big.Int).Exp(big.NewInt(3), n, nil)
	num.Mul(num, big.NewInt(domain.StartingThreshold))
	den := new(big.Int).Exp(big.NewInt(2), n, nil)
	num.Quo(num, den)
	if !num.IsInt64() {
		return math.MaxInt64
	}
	return num.Int64()
}

// AddPoints credits amount to both points and experience, then levels up as
// many times as the experience allows.
func AddPoints(state *domain.GameState, amount int64) (LevelChange, error) {
	if err := domain.ValidatePositiveAmount(amount); err != nil {
		return LevelChange{From: state.Level, To: state.Level}, err
	}
	if wouldOverflow(state.Points, amount) {
		return LevelChange{From: state.Level, To: state.Level}, domain.ErrBalanceOverflow(state.Points, amount)
	}
	if wouldOverflow(state.Experience, amount) {
		return LevelChange{From: state.Level, To: state.Level}, domain.ErrBalanceOverflow(state.Experience, amount)
	}
	state.Points += amount
	state.Experience += amount
	return applyLevels(state), nil
}

// AddExperience credits experience without touching points.
func AddExperience(state *domain.GameState, amount int64) (LevelChange, error) {
	if err := domain.ValidatePositiveAmount(amount); err != nil {
		return LevelChange{From: state.Level, To: state.Level}, err
	}
	if wouldOverflow(state.Experience, amount) {
		return LevelChange{From: state.Level, To: state.Level}, domain.ErrBalanceOverflow(state.Experience, amount)
	}
	state.Experience += amount
	return applyLevels(state), nil
}

// wouldOverflow reports whether current + amount exceeds MaxInt64 for amount > 0.
func wouldOverflow(current, amount int64) bool {
	return amount > math.MaxInt64-current
}

func applyLevels(state *domain.GameState) LevelChange {
	change := LevelChange{From: state.Level}
	if state.ExperienceToNextLevel <= 0 {
		state.ExperienceToNextLevel = ThresholdForLevel(state.Level)
	}
	for state.Experience >= state.ExperienceToNextLevel {
		state.Experience -= state.ExperienceToNextLevel
		state.Level++
		state.ExperienceToNextLevel = ThresholdForLevel(state.Level)
	}
	change.To = state.Level
	return change
}
