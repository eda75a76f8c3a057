package progression

import (
	"time"

	"github.com/vyakaran/platform/internal/domain"
)

// streakMilestones maps a streak length to its one-off coin bonus.
var streakMilestones = map[int]int64{
	7:   50,
	30:  200,
	100: 500,
}

// StreakResult describes what UpdateStreak did.
type StreakResult struct {
	Current   int
	Longest   int
	Changed   bool // false when activity was already recorded today
	Broken    bool // a gap of 2+ days reset the streak
	ClockSkew bool // last activity date was after today
}

// UpdateStreak records activity on the calendar day today (UTC midnight, see
// domain.CalendarDay). Consecutive days extend the streak, a gap resets it to 1
// and a repeat on the same day is a no-op.
func UpdateStreak(state *domain.GameState, today time.Time) StreakResult {
	res := StreakResult{Changed: true}

	switch {
	case state.LastActivityDate == nil:
		state.CurrentStreak = 1
	default:
		gap := domain.DaysBetween(*state.LastActivityDate, today)
		switch {
		case gap == 0:
			return StreakResult{Current: state.CurrentStreak, Longest: state.LongestStreak}
		case gap == 1:
			state.CurrentStreak++
		case gap < 0:
			state.CurrentStreak = 1
			res.ClockSkew = true
		default:
			state.CurrentStreak = 1
			res.Broken = true
		}
	}

	day := today
	state.LastActivityDate = &day
	if state.CurrentStreak > state.LongestStreak {
		state.LongestStreak = state.CurrentStreak
	}
	res.Current = state.CurrentStreak
	res.Longest = state.LongestStreak
	return res
}

// ResetStreak zeroes the current streak. Longest streak and last activity stay.
func ResetStreak(state *domain.GameState) {
	state.CurrentStreak = 0
}

// StreakMilestoneFor returns the bonus for landing exactly on a milestone day.
func StreakMilestoneFor(days int) (domain.StreakMilestone, bool) {
	coins, ok := streakMilestones[days]
	if !ok {
		return domain.StreakMilestone{}, false
	}
	return domain.StreakMilestone{Days: days, CoinsAwarded: coins}, true
}
