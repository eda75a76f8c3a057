package progression

import (
	"fmt"
	"math"
)

// RewardKind selects how a baseline is turned into a reward.
type RewardKind string

const (
	RewardLesson      RewardKind = "lesson"
	RewardQuiz        RewardKind = "quiz"
	RewardWriting     RewardKind = "writing"
	RewardGame        RewardKind = "game"
	RewardQuest       RewardKind = "quest"
	RewardAchievement RewardKind = "achievement"
	RewardStreak      RewardKind = "streak"
)

// Baseline is the configured full reward for a piece of content.
type Baseline struct {
	Points int64
	Coins  int64
}

// Reward is what a learner actually receives.
type Reward struct {
	Points int64
	Coins  int64
}

// IsZero reports whether nothing is awarded.
func (r Reward) IsZero() bool { return r.Points == 0 && r.Coins == 0 }

// ComputeReward turns a baseline into a reward.
//
// lesson, quiz, writing: floor(baseline * score / 100), score a percentage 0..100.
// game: base + floor(score/10) points and base + floor(score/20) coins, score a raw game score.
// quest, achievement, streak: the full baseline, score ignored.
func ComputeReward(kind RewardKind, score int64, base Baseline) (Reward, error) {
	switch kind {
	case RewardLesson, RewardQuiz, RewardWriting:
		if score < 0 || score > 100 {
			return Reward{}, fmt.Errorf("score must be between 0 and 100, got %d", score)
		}
		return Reward{
			Points: base.Points * score / 100,
			Coins:  base.Coins * score / 100,
		}, nil
	case RewardGame:
		if score < 0 {
			return Reward{}, fmt.Errorf("game score cannot be negative, got %d", score)
		}
		return Reward{
			Points: base.Points + score/10,
			Coins:  base.Coins + score/20,
		}, nil
	case RewardQuest, RewardAchievement, RewardStreak:
		return Reward{Points: base.Points, Coins: base.Coins}, nil
	default:
		return Reward{}, fmt.Errorf("unknown reward kind: %s", kind)
	}
}

// QuizReward scales the baseline by correct/total without an intermediate
// rounded percentage, so 2 of 3 correct on 30 points yields exactly 20.
func QuizReward(base Baseline, correct, total int) Reward {
	if total <= 0 {
		return Reward{}
	}
	return Reward{
		Points: base.Points * int64(correct) / int64(total),
		Coins:  base.Coins * int64(correct) / int64(total),
	}
}

// QuizPercentage returns correct/total as a percentage rounded to 2 places.
func QuizPercentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(correct) / float64(total) * 100
	return math.Round(pct*100) / 100
}

// QuizPassed compares correct/total against a pass percentage without floats.
func QuizPassed(correct, total, passPercentage int) bool {
	if total <= 0 {
		return false
	}
	return correct*100 >= passPercentage*total
}

// WritingScore is the placeholder assessment: min(100, floor(words/minWords*50) + 50).
func WritingScore(wordCount, minWords int) int {
	if wordCount < 0 {
		wordCount = 0
	}
	if minWords <= 0 {
		return 100
	}
	score := wordCount*50/minWords + 50
	if score > 100 {
		return 100
	}
	return score
}
