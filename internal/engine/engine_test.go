package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/repository/repotest"
)

type harness struct {
	engine  *Engine
	states  *repotest.GameStates
	content *repotest.Content
	records *repotest.Completions
	outbox  *repotest.Outbox
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := &harness{
		states:  repotest.NewGameStates(now),
		content: repotest.NewContent(),
		records: repotest.NewCompletions(),
		outbox:  repotest.NewOutbox(),
		now:     now,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.engine = NewEngine(h.states, h.content, h.records, h.outbox, logger,
		WithClock(func() time.Time { return h.now }))
	return h
}

func (h *harness) stored(userID uuid.UUID) *domain.GameState {
	return h.states.Rows[userID]
}

func (h *harness) eventTypes() []domain.EventType {
	return h.outbox.Types()
}

func activityKinds(r *domain.CommandResult) []domain.ActivityKind {
	var out []domain.ActivityKind
	for _, a := range r.Activities {
		out = append(out, a.Kind)
	}
	return out
}

func requireAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

var ctx = context.Background()

// --- direct progress commands ---

func TestAddPoints_CascadesLevels(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	res, err := h.engine.ExecuteAddPoints(ctx, nil, domain.AddPointsParams{UserID: user, Amount: 250, Reason: "bonus"})
	require.NoError(t, err)

	assert.True(t, res.Outcome.LeveledUp)
	assert.Equal(t, 3, res.Outcome.Level)
	assert.Equal(t, int64(250), res.Outcome.TotalPoints)
	assert.Equal(t, int64(250), res.Outcome.PointsAwarded)

	stored := h.stored(user)
	assert.Equal(t, 3, stored.Level)
	assert.Equal(t, int64(0), stored.Experience)
	assert.Equal(t, int64(225), stored.ExperienceToNextLevel)
	assert.Equal(t, int64(1), stored.Version)

	assert.Equal(t, []domain.EventType{domain.EventLevelUp, domain.EventProgressUpdated}, h.eventTypes())
	assert.Equal(t, []domain.ActivityKind{domain.ActivityPointsEarned, domain.ActivityLevelUp}, activityKinds(res))
}

func TestAddPoints_InvalidAmount(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	for _, amount := range []int64{0, -5, domain.MaxAmount + 1, math.MaxInt64} {
		_, err := h.engine.ExecuteAddPoints(ctx, nil, domain.AddPointsParams{UserID: user, Amount: amount})
		requireAppError(t, err, "INVALID_AMOUNT")
	}
	assert.Nil(t, h.stored(user))
	assert.Empty(t, h.outbox.Events)
}

func TestEarnAndSpendCoins(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	_, err := h.engine.ExecuteEarnCoins(ctx, nil, domain.EarnCoinsParams{UserID: user, Amount: 100, Source: "gift"})
	require.NoError(t, err)

	res, err := h.engine.ExecuteSpendCoins(ctx, nil, domain.SpendCoinsParams{UserID: user, Amount: 30, ItemID: "hat", ItemType: "avatar"})
	require.NoError(t, err)
	assert.Equal(t, int64(70), res.Outcome.TotalCoins)
	assert.Equal(t, int64(70), h.stored(user).Coins)
	assert.Contains(t, h.eventTypes(), domain.EventCoinsSpent)
}

func TestSpendCoins_InsufficientLeavesBalance(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	_, err := h.engine.ExecuteEarnCoins(ctx, nil, domain.EarnCoinsParams{UserID: user, Amount: 20})
	require.NoError(t, err)
	events := len(h.outbox.Events)

	_, err = h.engine.ExecuteSpendCoins(ctx, nil, domain.SpendCoinsParams{UserID: user, Amount: 30, ItemID: "hat"})
	requireAppError(t, err, "INSUFFICIENT_FUNDS")
	assert.Equal(t, int64(20), h.stored(user).Coins)
	assert.Equal(t, int64(1), h.stored(user).Version)
	assert.Len(t, h.outbox.Events, events)
}

func TestSpendCoins_RequiresItem(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.ExecuteSpendCoins(ctx, nil, domain.SpendCoinsParams{UserID: uuid.New(), Amount: 5})
	requireAppError(t, err, "VALIDATION_ERROR")
}

func TestUnlockZone(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	res, err := h.engine.ExecuteUnlockZone(ctx, nil, domain.UnlockZoneParams{UserID: user, ZoneID: "temple"})
	require.NoError(t, err)
	assert.True(t, res.State.UnlockedZones.Contains("temple"))

	_, err = h.engine.ExecuteUnlockZone(ctx, nil, domain.UnlockZoneParams{UserID: user, ZoneID: "temple"})
	requireAppError(t, err, "CONFLICT")
	assert.Equal(t, 1, h.stored(user).UnlockedZones.Len())

	_, err = h.engine.ExecuteUnlockZone(ctx, nil, domain.UnlockZoneParams{UserID: user, ZoneID: "Bad Zone!"})
	requireAppError(t, err, "VALIDATION_ERROR")
}

func TestUpdateStreak_SameDayIsNoop(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	res, err := h.engine.ExecuteUpdateStreak(ctx, nil, user)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Outcome.CurrentStreak)

	res, err = h.engine.ExecuteUpdateStreak(ctx, nil, user)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Outcome.CurrentStreak)
	assert.Equal(t, 1, res.Outcome.LongestStreak)
}

func TestUpdateStreak_MilestonePaysCoins(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	yesterday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	s := domain.NewGameState(user, h.now)
	s.CurrentStreak, s.LongestStreak, s.LastActivityDate = 6, 6, &yesterday
	h.states.Rows[user] = s

	res, err := h.engine.ExecuteUpdateStreak(ctx, nil, user)
	require.NoError(t, err)

	require.NotNil(t, res.Outcome.StreakMilestone)
	assert.Equal(t, 7, res.Outcome.StreakMilestone.Days)
	assert.Equal(t, int64(50), res.Outcome.StreakMilestone.CoinsAwarded)
	assert.Equal(t, int64(50), h.stored(user).Coins)
	assert.Contains(t, h.eventTypes(), domain.EventStreakMilestone)
	assert.Contains(t, activityKinds(res), domain.ActivityStreakMilestone)
}

func TestUpdateStreak_FutureDateResets(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	future := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	s := domain.NewGameState(user, h.now)
	s.CurrentStreak, s.LongestStreak, s.LastActivityDate = 4, 9, &future
	h.states.Rows[user] = s

	res, err := h.engine.ExecuteUpdateStreak(ctx, nil, user)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Outcome.CurrentStreak)
	assert.Equal(t, 9, res.Outcome.LongestStreak)
	assert.True(t, h.engine.Today().Equal(*h.stored(user).LastActivityDate))
}

func TestResetStreak(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	_, err := h.engine.ExecuteUpdateStreak(ctx, nil, user)
	require.NoError(t, err)

	res, err := h.engine.ExecuteResetStreak(ctx, nil, user)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Outcome.CurrentStreak)
	assert.Equal(t, 1, res.Outcome.LongestStreak)
	assert.NotNil(t, h.stored(user).LastActivityDate)
}

func TestResetProgress(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	_, err := h.engine.ExecuteAddPoints(ctx, nil, domain.AddPointsParams{UserID: user, Amount: 500})
	require.NoError(t, err)
	_, err = h.engine.ExecuteUnlockZone(ctx, nil, domain.UnlockZoneParams{UserID: user, ZoneID: "market"})
	require.NoError(t, err)

	res, err := h.engine.ExecuteResetProgress(ctx, nil, user)
	require.NoError(t, err)

	stored := h.stored(user)
	assert.Equal(t, 1, stored.Level)
	assert.Zero(t, stored.Points)
	assert.Equal(t, int64(100), stored.ExperienceToNextLevel)
	assert.Zero(t, stored.UnlockedZones.Len())
	assert.Equal(t, int64(3), stored.Version)
	assert.Equal(t, int64(0), res.Outcome.TotalPoints)
	assert.Contains(t, h.eventTypes(), domain.EventProgressReset)
}

func TestCommitGameState_StaleVersion(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	state, err := h.engine.LockGameState(ctx, nil, user)
	require.NoError(t, err)

	// Another writer commits first.
	h.states.Rows[user].Version = 5

	err = h.engine.CommitGameState(ctx, nil, &domain.CommandResult{State: state}, "test")
	assert.True(t, errors.Is(err, domain.ErrStaleState))
	assert.Empty(t, h.outbox.Events)
}

func TestGetGameState_CreatesDefault(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	state, err := h.engine.GetGameState(ctx, nil, user)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Level)
	assert.Equal(t, int64(100), state.ExperienceToNextLevel)
	assert.NotNil(t, h.stored(user))
}

// --- learning commands ---

func (h *harness) addLesson(published bool) *domain.Lesson {
	l := &domain.Lesson{ID: uuid.New(), Slug: "nouns", Title: "Nouns", PointsReward: 10, CoinsReward: 5, Published: published}
	h.content.Lessons[l.ID] = l
	return l
}

func TestCompleteLesson(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	lesson := h.addLesson(true)
	h.content.Next = &domain.Lesson{ID: uuid.New(), Title: "Verbs"}

	res, err := h.engine.ExecuteCompleteLesson(ctx, nil, domain.CompleteLessonParams{UserID: user, LessonID: lesson.ID, Score: 80, TimeSpent: 120})
	require.NoError(t, err)

	assert.Equal(t, int64(8), res.Outcome.PointsAwarded)
	assert.Equal(t, int64(4), res.Outcome.CoinsAwarded)
	assert.Equal(t, 1, res.Outcome.CurrentStreak)
	require.NotNil(t, res.NextLesson)
	assert.Equal(t, "Verbs", res.NextLesson.Title)

	stored := h.stored(user)
	assert.True(t, stored.CompletedLessons.Contains(lesson.ID.String()))
	assert.Equal(t, int64(120), stored.TotalTimeSpent)

	progress := h.records.Lessons[repotest.Key{User: user, Item: lesson.ID}]
	require.NotNil(t, progress)
	assert.Equal(t, domain.LessonCompleted, progress.Status)
	assert.Equal(t, 80, progress.BestScore)
	assert.Equal(t, 1, progress.Attempts)
}

func TestStartLesson(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	lesson := h.addLesson(true)

	res, err := h.engine.ExecuteStartLesson(ctx, nil, domain.StartLessonParams{UserID: user, LessonID: lesson.ID})
	require.NoError(t, err)
	require.NotNil(t, res.Lesson)
	assert.Equal(t, domain.LessonInProgress, res.Lesson.Status)
	assert.Equal(t, 1, res.Lesson.Attempts)
	require.NotNil(t, res.Lesson.StartedAt)
	assert.Equal(t, h.now, *res.Lesson.StartedAt)
	assert.Equal(t, []domain.ActivityKind{domain.ActivityLessonStart}, activityKinds(res))
	assert.Empty(t, h.outbox.Events, "starting awards nothing")
	assert.Zero(t, res.Outcome.PointsAwarded)

	// Completing the started attempt does not count it twice.
	_, err = h.engine.ExecuteCompleteLesson(ctx, nil, domain.CompleteLessonParams{UserID: user, LessonID: lesson.ID, Score: 90})
	require.NoError(t, err)
	progress := h.records.Lessons[repotest.Key{User: user, Item: lesson.ID}]
	assert.Equal(t, domain.LessonCompleted, progress.Status)
	assert.Equal(t, 1, progress.Attempts)

	// Restarting a completed lesson opens a second attempt and keeps the best score.
	res, err = h.engine.ExecuteStartLesson(ctx, nil, domain.StartLessonParams{UserID: user, LessonID: lesson.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.LessonInProgress, res.Lesson.Status)
	assert.Equal(t, 2, res.Lesson.Attempts)
	assert.Equal(t, 90, res.Lesson.BestScore)
}

func TestStartLesson_Unpublished(t *testing.T) {
	h := newHarness(t)
	lesson := h.addLesson(false)

	_, err := h.engine.ExecuteStartLesson(ctx, nil, domain.StartLessonParams{UserID: uuid.New(), LessonID: lesson.ID})
	requireAppError(t, err, "NOT_FOUND")
	_, err = h.engine.ExecuteStartLesson(ctx, nil, domain.StartLessonParams{UserID: uuid.New(), LessonID: uuid.New()})
	requireAppError(t, err, "NOT_FOUND")
}

func TestCompleteLesson_RecompletionReawards(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	lesson := h.addLesson(true)

	_, err := h.engine.ExecuteCompleteLesson(ctx, nil, domain.CompleteLessonParams{UserID: user, LessonID: lesson.ID, Score: 80})
	require.NoError(t, err)
	res, err := h.engine.ExecuteCompleteLesson(ctx, nil, domain.CompleteLessonParams{UserID: user, LessonID: lesson.ID, Score: 50})
	require.NoError(t, err)

	assert.Equal(t, int64(5), res.Outcome.PointsAwarded)
	assert.Equal(t, int64(13), res.Outcome.TotalPoints)
	assert.Equal(t, 1, h.stored(user).CompletedLessons.Len())

	progress := h.records.Lessons[repotest.Key{User: user, Item: lesson.ID}]
	assert.Equal(t, 80, progress.BestScore)
	assert.Equal(t, 50, progress.Score)
	assert.Equal(t, 2, progress.Attempts)
}

func TestCompleteLesson_ZeroScoreStillRecorded(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	lesson := h.addLesson(true)

	res, err := h.engine.ExecuteCompleteLesson(ctx, nil, domain.CompleteLessonParams{UserID: user, LessonID: lesson.ID, Score: 0})
	require.NoError(t, err)
	assert.Zero(t, res.Outcome.PointsAwarded)
	assert.Contains(t, activityKinds(res), domain.ActivityLessonComplete)
}

func TestCompleteLesson_Errors(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	draft := h.addLesson(false)
	lesson := h.addLesson(true)

	tests := []struct {
		name   string
		params domain.CompleteLessonParams
		code   string
	}{
		{"unknown lesson", domain.CompleteLessonParams{UserID: user, LessonID: uuid.New(), Score: 50}, "NOT_FOUND"},
		{"unpublished lesson", domain.CompleteLessonParams{UserID: user, LessonID: draft.ID, Score: 50}, "NOT_FOUND"},
		{"score above 100", domain.CompleteLessonParams{UserID: user, LessonID: lesson.ID, Score: 101}, "VALIDATION_ERROR"},
		{"negative time", domain.CompleteLessonParams{UserID: user, LessonID: lesson.ID, Score: 50, TimeSpent: -1}, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.ExecuteCompleteLesson(ctx, nil, tt.params)
			requireAppError(t, err, tt.code)
		})
	}
	assert.Nil(t, h.stored(user))
}

func TestCompleteLesson_ExtendsStreakToMilestone(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	lesson := h.addLesson(true)
	yesterday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	s := domain.NewGameState(user, h.now)
	s.CurrentStreak, s.LongestStreak, s.LastActivityDate = 29, 29, &yesterday
	h.states.Rows[user] = s

	res, err := h.engine.ExecuteCompleteLesson(ctx, nil, domain.CompleteLessonParams{UserID: user, LessonID: lesson.ID, Score: 100})
	require.NoError(t, err)

	require.NotNil(t, res.Outcome.StreakMilestone)
	assert.Equal(t, 30, res.Outcome.StreakMilestone.Days)
	assert.Equal(t, int64(5), res.Outcome.CoinsAwarded)
	assert.Equal(t, int64(205), res.Outcome.TotalCoins)
}

func TestSubmitQuiz(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	quiz := &domain.Quiz{ID: uuid.New(), Title: "Cases", PointsReward: 30, CoinsReward: 10, PassPercentage: 70, Published: true}
	h.content.Quizzes[quiz.ID] = quiz

	res, err := h.engine.ExecuteSubmitQuiz(ctx, nil, domain.SubmitQuizParams{UserID: user, QuizID: quiz.ID, Correct: 2, Total: 3, TimeSpent: 60})
	require.NoError(t, err)

	assert.Equal(t, int64(20), res.Outcome.PointsAwarded)
	assert.Equal(t, int64(6), res.Outcome.CoinsAwarded)
	require.NotNil(t, res.Quiz)
	assert.InDelta(t, 66.67, res.Quiz.Percentage, 0.001)
	assert.False(t, res.Quiz.Passed)

	stored := h.stored(user)
	assert.Equal(t, int64(2), stored.TotalCorrectAnswers)
	assert.Equal(t, int64(3), stored.TotalQuestionsAttempted)
	assert.Len(t, h.records.QuizResults, 1)
}

func TestSubmitQuiz_InvalidCounts(t *testing.T) {
	h := newHarness(t)
	quiz := &domain.Quiz{ID: uuid.New(), Published: true}
	h.content.Quizzes[quiz.ID] = quiz

	for _, p := range []domain.SubmitQuizParams{
		{QuizID: quiz.ID, Correct: 1, Total: 0},
		{QuizID: quiz.ID, Correct: 4, Total: 3},
		{QuizID: quiz.ID, Correct: -1, Total: 3},
	} {
		p.UserID = uuid.New()
		_, err := h.engine.ExecuteSubmitQuiz(ctx, nil, p)
		requireAppError(t, err, "VALIDATION_ERROR")
	}
}

func TestEndGame_HighScore(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	game := &domain.Game{ID: uuid.New(), Name: "Word Match", BasePoints: 10, BaseCoins: 5, Active: true}
	h.content.Games[game.ID] = game

	res, err := h.engine.ExecuteEndGame(ctx, nil, domain.EndGameParams{UserID: user, GameID: game.ID, Score: 250})
	require.NoError(t, err)
	assert.Equal(t, int64(35), res.Outcome.PointsAwarded)
	assert.Equal(t, int64(17), res.Outcome.CoinsAwarded)
	assert.True(t, res.Session.IsHighScore)
	assert.JSONEq(t, `{}`, string(res.Session.Stats))

	res, err = h.engine.ExecuteEndGame(ctx, nil, domain.EndGameParams{UserID: user, GameID: game.ID, Score: 100})
	require.NoError(t, err)
	assert.False(t, res.Session.IsHighScore)

	res, err = h.engine.ExecuteEndGame(ctx, nil, domain.EndGameParams{UserID: user, GameID: game.ID, Score: 300})
	require.NoError(t, err)
	assert.True(t, res.Session.IsHighScore)
}

func TestEndGame_Ranking(t *testing.T) {
	h := newHarness(t)
	game := &domain.Game{ID: uuid.New(), Name: "Word Match", Active: true}
	h.content.Games[game.ID] = game
	first, second, third := uuid.New(), uuid.New(), uuid.New()

	end := func(user uuid.UUID, score int64) int64 {
		t.Helper()
		res, err := h.engine.ExecuteEndGame(ctx, nil, domain.EndGameParams{UserID: user, GameID: game.ID, Score: score})
		require.NoError(t, err)
		return res.Ranking
	}

	assert.Equal(t, int64(1), end(first, 500))
	assert.Equal(t, int64(1), end(first, 700), "beating your own score keeps first place")
	assert.Equal(t, int64(2), end(second, 600))
	assert.Equal(t, int64(3), end(third, 100))
	assert.Equal(t, int64(2), end(third, 650), "players count once however many sessions they have")
}

func TestGameLeaderboard_Periods(t *testing.T) {
	h := newHarness(t)
	game := &domain.Game{ID: uuid.New(), Name: "Word Match", Active: true}
	h.content.Games[game.ID] = game
	veteran, regular, newcomer := uuid.New(), uuid.New(), uuid.New()

	play := func(user uuid.UUID, score int64, ago time.Duration) {
		h.records.Sessions = append(h.records.Sessions, &domain.GameSession{
			ID: uuid.New(), UserID: user, GameID: game.ID, Score: score, CreatedAt: h.now.Add(-ago),
		})
	}
	play(veteran, 900, 40*24*time.Hour)
	play(regular, 400, 10*24*time.Hour)
	play(regular, 300, 3*24*time.Hour)
	play(newcomer, 200, time.Hour)

	tests := []struct {
		period  domain.GamePeriod
		want    []uuid.UUID
		myRank  int64
		myScore int64
	}{
		{domain.GamePeriodAllTime, []uuid.UUID{veteran, regular, newcomer}, 2, 400},
		{domain.GamePeriodMonthly, []uuid.UUID{regular, newcomer}, 1, 400},
		{domain.GamePeriodWeekly, []uuid.UUID{regular, newcomer}, 1, 300},
		{domain.GamePeriodDaily, []uuid.UUID{newcomer}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			board, err := h.engine.GameLeaderboard(ctx, nil, regular, game.ID, tt.period, 10)
			require.NoError(t, err)
			var got []uuid.UUID
			for i, e := range board.Entries {
				assert.Equal(t, int64(i+1), e.Rank)
				got = append(got, e.UserID)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.myRank, board.MyRank)
			assert.Equal(t, tt.myScore, board.MyScore)
		})
	}

	board, err := h.engine.GameLeaderboard(ctx, nil, regular, game.ID, domain.GamePeriodAllTime, 1)
	require.NoError(t, err)
	assert.Len(t, board.Entries, 1)
	assert.Equal(t, int64(2), board.MyRank, "the caller's place ignores the page size")

	_, err = h.engine.GameLeaderboard(ctx, nil, regular, uuid.New(), domain.GamePeriodAllTime, 10)
	requireAppError(t, err, "NOT_FOUND")
}

func TestEndGame_Errors(t *testing.T) {
	h := newHarness(t)
	inactive := &domain.Game{ID: uuid.New(), Active: false}
	h.content.Games[inactive.ID] = inactive

	_, err := h.engine.ExecuteEndGame(ctx, nil, domain.EndGameParams{UserID: uuid.New(), GameID: inactive.ID, Score: 10})
	requireAppError(t, err, "NOT_FOUND")

	for _, score := range []int64{-1, domain.MaxGameScore + 1, math.MaxInt64} {
		_, err = h.engine.ExecuteEndGame(ctx, nil, domain.EndGameParams{UserID: uuid.New(), GameID: inactive.ID, Score: score})
		requireAppError(t, err, "VALIDATION_ERROR")
	}
}

func TestEarnCoins_OverflowLeavesBalance(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	_, err := h.engine.ExecuteEarnCoins(ctx, nil, domain.EarnCoinsParams{UserID: user, Amount: 10, Source: "seed"})
	require.NoError(t, err)
	h.stored(user).Coins = math.MaxInt64 - 5
	events := len(h.outbox.Events)

	_, err = h.engine.ExecuteEarnCoins(ctx, nil, domain.EarnCoinsParams{UserID: user, Amount: 10, Source: "bonus"})
	requireAppError(t, err, "INVALID_AMOUNT")
	assert.Equal(t, int64(math.MaxInt64-5), h.stored(user).Coins)
	assert.Len(t, h.outbox.Events, events)
}

func TestSubmitWriting(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	prompt := &domain.WritingPrompt{ID: uuid.New(), Title: "My village", MinWords: 100, PointsReward: 30, CoinsReward: 15, Active: true}
	h.content.Prompts[prompt.ID] = prompt

	res, err := h.engine.ExecuteSubmitWriting(ctx, nil, domain.SubmitWritingParams{UserID: user, PromptID: prompt.ID, WordCount: 50})
	require.NoError(t, err)

	require.NotNil(t, res.Submission)
	assert.Equal(t, 75, res.Submission.Score)
	assert.Equal(t, int64(22), res.Outcome.PointsAwarded)
	assert.Equal(t, int64(11), res.Outcome.CoinsAwarded)
}

func TestSubmitWriting_CountsWordsFromContent(t *testing.T) {
	h := newHarness(t)
	prompt := &domain.WritingPrompt{ID: uuid.New(), MinWords: 4, PointsReward: 30, CoinsReward: 15, Active: true}
	h.content.Prompts[prompt.ID] = prompt

	res, err := h.engine.ExecuteSubmitWriting(ctx, nil, domain.SubmitWritingParams{UserID: uuid.New(), PromptID: prompt.ID, Content: "मेरो गाउँ धेरै राम्रो छ"})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Submission.WordCount)
	assert.Equal(t, 100, res.Submission.Score)

	_, err = h.engine.ExecuteSubmitWriting(ctx, nil, domain.SubmitWritingParams{UserID: uuid.New(), PromptID: prompt.ID, Content: "   "})
	requireAppError(t, err, "VALIDATION_ERROR")
}

// --- quests ---

func TestQuestLifecycle(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	quest := &domain.Quest{ID: uuid.New(), Title: "Market day", MinLevel: 1, PointsReward: 50, CoinsReward: 25, ExperienceReward: 20, Active: true}
	h.content.Quests[quest.ID] = quest

	_, err := h.engine.ExecuteCompleteQuest(ctx, nil, domain.QuestParams{UserID: user, QuestID: quest.ID})
	requireAppError(t, err, "NOT_FOUND")

	res, err := h.engine.ExecuteStartQuest(ctx, nil, domain.QuestParams{UserID: user, QuestID: quest.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.QuestActive, res.Quest.Status)
	assert.Empty(t, h.outbox.Events)

	_, err = h.engine.ExecuteStartQuest(ctx, nil, domain.QuestParams{UserID: user, QuestID: quest.ID})
	requireAppError(t, err, "CONFLICT")

	res, err = h.engine.ExecuteCompleteQuest(ctx, nil, domain.QuestParams{UserID: user, QuestID: quest.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Outcome.PointsAwarded)
	assert.Equal(t, int64(25), res.Outcome.CoinsAwarded)
	assert.Equal(t, int64(20), res.Outcome.ExperienceAwarded)
	assert.Equal(t, domain.QuestCompleted, res.Quest.Status)

	stored := h.stored(user)
	assert.Equal(t, int64(50), stored.Points)
	assert.Equal(t, int64(70), stored.Experience)

	_, err = h.engine.ExecuteStartQuest(ctx, nil, domain.QuestParams{UserID: user, QuestID: quest.ID})
	require.NoError(t, err, "a completed quest can be started again")
}

func TestStartQuest_LevelGate(t *testing.T) {
	h := newHarness(t)
	quest := &domain.Quest{ID: uuid.New(), MinLevel: 3, Active: true}
	h.content.Quests[quest.ID] = quest

	_, err := h.engine.ExecuteStartQuest(ctx, nil, domain.QuestParams{UserID: uuid.New(), QuestID: quest.ID})
	requireAppError(t, err, "VALIDATION_ERROR")
}

// --- achievements ---

func TestAchievementGrantAndClaim(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	ach := &domain.Achievement{ID: uuid.New(), Name: "First steps", PointsReward: 100, CoinsReward: 50}
	h.content.Achievements[ach.ID] = ach
	params := domain.AchievementParams{UserID: user, AchievementID: ach.ID}

	_, err := h.engine.ExecuteClaimAchievement(ctx, nil, params)
	requireAppError(t, err, "NOT_FOUND")

	res, err := h.engine.ExecuteGrantAchievement(ctx, nil, params)
	require.NoError(t, err)
	assert.Equal(t, []domain.ActivityKind{domain.ActivityAchievement}, activityKinds(res))

	res, err = h.engine.ExecuteGrantAchievement(ctx, nil, params)
	require.NoError(t, err)
	assert.Empty(t, res.Activities)

	res, err = h.engine.ExecuteClaimAchievement(ctx, nil, params)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Outcome.PointsAwarded)
	assert.Equal(t, int64(50), res.Outcome.CoinsAwarded)
	assert.True(t, res.Outcome.LeveledUp)
	assert.True(t, h.stored(user).Achievements.Contains(ach.ID.String()))
	assert.True(t, h.records.Achievements[repotest.Key{User: user, Item: ach.ID}].RewardsClaimed)

	_, err = h.engine.ExecuteClaimAchievement(ctx, nil, params)
	requireAppError(t, err, "CONFLICT")
	assert.Equal(t, int64(100), h.stored(user).Points)
}
