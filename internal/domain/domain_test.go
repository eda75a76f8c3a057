package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Validator Tests ---

func TestValidatePositiveAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		wantErr bool
	}{
		{"positive", 100, false},
		{"one", 1, false},
		{"zero", 0, true},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositiveAmount(tt.amount)
			if tt.wantErr {
				require.Error(t, err)
				appErr, ok := AsAppError(err)
				require.True(t, ok)
				assert.Equal(t, "INVALID_AMOUNT", appErr.Code)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	require.NoError(t, ValidateAmount(1))
	require.NoError(t, ValidateAmount(MaxAmount))

	for _, amount := range []int64{0, -1, MaxAmount + 1, 1<<63 - 1} {
		err := ValidateAmount(amount)
		require.Error(t, err, "amount %d", amount)
		appErr, ok := AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, "INVALID_AMOUNT", appErr.Code)
		assert.Equal(t, 400, appErr.Status)
	}
}

func TestValidateGameScore(t *testing.T) {
	assert.NoError(t, ValidateGameScore(0))
	assert.NoError(t, ValidateGameScore(MaxGameScore))
	assert.Error(t, ValidateGameScore(-1))
	assert.Error(t, ValidateGameScore(MaxGameScore+1))
}

func TestValidateScorePercent(t *testing.T) {
	assert.NoError(t, ValidateScorePercent(0))
	assert.NoError(t, ValidateScorePercent(100))
	assert.Error(t, ValidateScorePercent(-1))
	assert.Error(t, ValidateScorePercent(101))
}

func TestValidateQuizCounts(t *testing.T) {
	tests := []struct {
		name           string
		correct, total int
		wantErr        string
	}{
		{"all correct", 10, 10, ""},
		{"none correct", 0, 5, ""},
		{"zero total", 0, 0, "total questions must be positive"},
		{"more correct than total", 6, 5, "correct answers must be between"},
		{"negative correct", -1, 5, "correct answers must be between"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuizCounts(tt.correct, tt.total)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateZoneID(t *testing.T) {
	assert.NoError(t, ValidateZoneID("market"))
	assert.NoError(t, ValidateZoneID("temple-2"))
	assert.Error(t, ValidateZoneID(""))
	assert.Error(t, ValidateZoneID("Market"))
	assert.Error(t, ValidateZoneID("-market"))
}

// --- AppError Tests ---

func TestAppError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := ErrNotFound("lesson", "abc-123")
		assert.Equal(t, "NOT_FOUND: lesson abc-123 not found", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := ErrInternal("database error", cause)
		assert.Contains(t, err.Error(), "INTERNAL_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrInternal("wrapped", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestAsAppError_Wrapped(t *testing.T) {
	err := fmt.Errorf("spend coins: %w", ErrInsufficientFunds(20, 30))
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "INSUFFICIENT_FUNDS", appErr.Code)

	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorFactories(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"ErrNotFound", ErrNotFound("quiz", "123"), "NOT_FOUND", 404},
		{"ErrConflict", ErrConflict("already unlocked"), "CONFLICT", 409},
		{"ErrValidation", ErrValidation("bad input"), "VALIDATION_ERROR", 400},
		{"ErrUnauthorized", ErrUnauthorized("no token"), "UNAUTHORIZED", 401},
		{"ErrForbidden", ErrForbidden("not allowed"), "FORBIDDEN", 403},
		{"ErrInvalidAmount", ErrInvalidAmount(0), "INVALID_AMOUNT", 400},
		{"ErrInsufficientFunds", ErrInsufficientFunds(20, 30), "INSUFFICIENT_FUNDS", 400},
		{"ErrRateLimited", ErrRateLimited("slow down"), "RATE_LIMITED", 429},
		{"ErrInternal", ErrInternal("oops", nil), "INTERNAL_ERROR", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.Status)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

// --- StringSet Tests ---

func TestStringSet_Add(t *testing.T) {
	var s StringSet
	assert.True(t, s.Add("lesson-1"))
	assert.True(t, s.Add("lesson-2"))
	assert.False(t, s.Add("lesson-1"))
	assert.False(t, s.Add(""))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"lesson-1", "lesson-2"}, s.Items())
}

func TestStringSet_JSON(t *testing.T) {
	t.Run("empty marshals to array", func(t *testing.T) {
		data, err := json.Marshal(StringSet{})
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(data))
	})

	t.Run("unmarshal drops duplicates", func(t *testing.T) {
		var s StringSet
		require.NoError(t, json.Unmarshal([]byte(`["a","b","a","c"]`), &s))
		assert.Equal(t, []string{"a", "b", "c"}, s.Items())
	})

	t.Run("items returns a copy", func(t *testing.T) {
		s := NewStringSet("a")
		items := s.Items()
		items[0] = "z"
		assert.True(t, s.Contains("a"))
	})
}

// --- GameState Tests ---

func TestNewGameState_Defaults(t *testing.T) {
	now := time.Now()
	g := NewGameState(uuid.New(), now)
	assert.Equal(t, 1, g.Level)
	assert.Equal(t, int64(100), g.ExperienceToNextLevel)
	assert.Zero(t, g.Points)
	assert.Zero(t, g.Coins)
	assert.Nil(t, g.LastActivityDate)
	assert.Zero(t, g.UnlockedZones.Len())
}

func TestGameState_Accuracy(t *testing.T) {
	g := &GameState{}
	assert.Equal(t, 0.0, g.Accuracy())

	g.TotalCorrectAnswers = 2
	g.TotalQuestionsAttempted = 3
	assert.Equal(t, 66.67, g.Accuracy())
}

func TestGameState_Reset(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewGameState(uuid.New(), created)
	g.Points = 500
	g.Level = 4
	g.Coins = 70
	g.Version = 9
	g.CompletedLessons.Add("l1")

	g.Reset(created.Add(time.Hour))
	assert.Equal(t, 1, g.Level)
	assert.Zero(t, g.Points)
	assert.Zero(t, g.CompletedLessons.Len())
	assert.Equal(t, int64(9), g.Version)
	assert.Equal(t, created, g.CreatedAt)
}

func TestCalendarDay(t *testing.T) {
	kathmandu := time.FixedZone("NPT", 5*3600+45*60)
	// 20:00 UTC is already the next day in Kathmandu.
	ts := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), CalendarDay(ts, kathmandu))
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), CalendarDay(ts, nil))

	a := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, DaysBetween(a, a.AddDate(0, 0, 3)))
	assert.Equal(t, -1, DaysBetween(a, a.AddDate(0, 0, -1)))
}

// --- Activity Tests ---

func TestParseActivityKind(t *testing.T) {
	k, err := ParseActivityKind("lesson_complete")
	require.NoError(t, err)
	assert.Equal(t, ActivityLessonComplete, k)

	_, err = ParseActivityKind("bet_placed")
	assert.Error(t, err)
}

func TestActivityFilter_Normalize(t *testing.T) {
	assert.Equal(t, DefaultActivityLimit, ActivityFilter{}.Normalize().Limit)
	assert.Equal(t, MaxActivityLimit, ActivityFilter{Limit: 10000}.Normalize().Limit)
	assert.Equal(t, 5, ActivityFilter{Limit: 5}.Normalize().Limit)
}

func TestParseLeaderboardType(t *testing.T) {
	lt, ok := ParseLeaderboardType("")
	assert.True(t, ok)
	assert.Equal(t, LeaderboardPoints, lt)

	lt, ok = ParseLeaderboardType("streak")
	assert.True(t, ok)
	assert.Equal(t, LeaderboardStreak, lt)

	_, ok = ParseLeaderboardType("coins")
	assert.False(t, ok)
}

// --- Event Factory Tests ---

func TestNewProgressUpdatedEvent(t *testing.T) {
	userID := uuid.New()
	state := NewGameState(userID, time.Now())
	state.Points = 250

	event := NewProgressUpdatedEvent(state, "lesson", ProgressOutcome{PointsAwarded: 250})

	assert.NotEqual(t, uuid.Nil, event.EventID)
	assert.Equal(t, AggregateGameState, event.AggregateType)
	assert.Equal(t, userID.String(), event.AggregateID)
	assert.Equal(t, EventProgressUpdated, event.EventType)
	assert.Equal(t, userID.String(), event.PartitionKey)
	assert.False(t, event.OccurredAt.IsZero())
	assert.Equal(t, "vyakaran.game_state.progress.updated", event.Topic("vyakaran"))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, float64(250), payload["points"])
	assert.Equal(t, "lesson", payload["source"])
}

func TestNewLevelUpEvent(t *testing.T) {
	userID := uuid.New()
	event := NewLevelUpEvent(userID, 1, 3)
	assert.Equal(t, EventLevelUp, event.EventType)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, float64(1), payload["from_level"])
	assert.Equal(t, float64(3), payload["to_level"])
}

func TestCommandResult_Finalize(t *testing.T) {
	state := NewGameState(uuid.New(), time.Now())
	state.Points = 10
	state.Coins = 5
	state.CurrentStreak = 2
	state.LongestStreak = 4

	res := &CommandResult{State: state}
	res.Finalize()
	assert.Equal(t, int64(10), res.Outcome.TotalPoints)
	assert.Equal(t, int64(5), res.Outcome.TotalCoins)
	assert.Equal(t, 1, res.Outcome.Level)
	assert.Equal(t, 2, res.Outcome.CurrentStreak)
	assert.Equal(t, 4, res.Outcome.LongestStreak)
}

func TestParseGamePeriod(t *testing.T) {
	p, ok := ParseGamePeriod("")
	require.True(t, ok)
	assert.Equal(t, GamePeriodAllTime, p)

	for _, s := range []string{"daily", "weekly", "monthly", "all-time"} {
		p, ok := ParseGamePeriod(s)
		assert.True(t, ok, s)
		assert.Equal(t, GamePeriod(s), p)
	}
	_, ok = ParseGamePeriod("yearly")
	assert.False(t, ok)
}

func TestGamePeriodSince(t *testing.T) {
	kathmandu := time.FixedZone("NPT", 5*3600+45*60)
	// 20:00 UTC on March 9 is already March 10 in Kathmandu.
	now := time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC)

	daily := GamePeriodDaily.Since(now, kathmandu)
	assert.True(t, daily.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, kathmandu)))
	assert.Equal(t, now.AddDate(0, 0, -7), GamePeriodWeekly.Since(now, kathmandu))
	assert.Equal(t, now.AddDate(0, 0, -30), GamePeriodMonthly.Since(now, nil))
	assert.True(t, GamePeriodAllTime.Since(now, nil).IsZero())
}
