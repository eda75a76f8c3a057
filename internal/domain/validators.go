package domain

import (
	"fmt"
	"regexp"
)

var zoneIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{0,63}$`)

// Upper bounds on learner-supplied quantities.
const (
	MaxAmount    int64 = 1_000_000
	MaxGameScore int64 = 10_000_000
)

// ValidatePositiveAmount checks that a points or coins amount is at least 1.
func ValidatePositiveAmount(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount(amount)
	}
	return nil
}

// ValidateAmount checks a request amount is within 1..MaxAmount.
func ValidateAmount(amount int64) error {
	if err := ValidatePositiveAmount(amount); err != nil {
		return err
	}
	if amount > MaxAmount {
		return ErrAmountTooLarge(amount, MaxAmount)
	}
	return nil
}

// ValidateGameScore checks a raw game score is within 0..MaxGameScore.
func ValidateGameScore(score int64) error {
	if score < 0 || score > MaxGameScore {
		return fmt.Errorf("game score must be between 0 and %d, got %d", MaxGameScore, score)
	}
	return nil
}

// ValidateScorePercent checks a lesson score is within 0..100.
func ValidateScorePercent(score int) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("score must be between 0 and 100, got %d", score)
	}
	return nil
}

// ValidateQuizCounts checks 0 <= correct <= total and total > 0.
func ValidateQuizCounts(correct, total int) error {
	if total <= 0 {
		return fmt.Errorf("total questions must be positive, got %d", total)
	}
	if correct < 0 || correct > total {
		return fmt.Errorf("correct answers must be between 0 and %d, got %d", total, correct)
	}
	return nil
}

// ValidateTimeSpent checks a duration in seconds is not negative.
func ValidateTimeSpent(seconds int64) error {
	if seconds < 0 {
		return fmt.Errorf("time spent cannot be negative, got %d", seconds)
	}
	return nil
}

// ValidateZoneID checks a village zone identifier.
func ValidateZoneID(id string) error {
	if !zoneIDRegex.MatchString(id) {
		return fmt.Errorf("invalid zone id: %q", id)
	}
	return nil
}
