package progression

import "github.com/vyakaran/platform/internal/domain"

// Earn credits coins. It is the only way coins are added.
func Earn(state *domain.GameState, amount int64) error {
	if err := domain.ValidatePositiveAmount(amount); err != nil {
		return err
	}
	if wouldOverflow(state.Coins, amount) {
		return domain.ErrBalanceOverflow(state.Coins, amount)
	}
	state.Coins += amount
	return nil
}

// Spend debits coins, rejecting an overspend without touching the balance.
func Spend(state *domain.GameState, amount int64) error {
	if err := domain.ValidatePositiveAmount(amount); err != nil {
		return err
	}
	if state.Coins < amount {
		return domain.ErrInsufficientFunds(state.Coins, amount)
	}
	state.Coins -= amount
	return nil
}

// ApplyReward credits a reward through AddPoints and Earn, skipping zero parts.
func ApplyReward(state *domain.GameState, r Reward) (LevelChange, error) {
	change := LevelChange{From: state.Level, To: state.Level}
	if r.Points > 0 {
		var err error
		if change, err = AddPoints(state, r.Points); err != nil {
			return change, err
		}
	}
	if r.Coins > 0 {
		if err := Earn(state, r.Coins); err != nil {
			return change, err
		}
	}
	return change, nil
}
