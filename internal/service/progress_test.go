package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vyakaran/platform/internal/activity"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/engine"
	"github.com/vyakaran/platform/internal/guard"
	"github.com/vyakaran/platform/internal/projection"
	"github.com/vyakaran/platform/internal/repository/repotest"
)

type fakeTx struct {
	calls int
	err   error
}

func (f *fakeTx) Run(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn(ctx, nil)
}

type sent struct {
	user  uuid.UUID
	event string
}

type fakeNotifier struct {
	sent []sent
}

func (f *fakeNotifier) Publish(userID uuid.UUID, event string, _ interface{}) {
	f.sent = append(f.sent, sent{userID, event})
}

func (f *fakeNotifier) events() []string {
	var out []string
	for _, s := range f.sent {
		out = append(out, s.event)
	}
	return out
}

type fixture struct {
	svc        *ProgressService
	tx         *fakeTx
	states     *repotest.GameStates
	content    *repotest.Content
	activities *repotest.Activities
	store      projection.Store
	notifier   *fakeNotifier
}

func newFixture(t *testing.T, spendLimit *guard.RateLimiter) *fixture {
	t.Helper()
	return newFixtureWithStore(t, spendLimit, projection.NewInMemoryStore())
}

func newFixtureWithStore(t *testing.T, spendLimit *guard.RateLimiter, store projection.Store) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		tx:         &fakeTx{},
		states:     repotest.NewGameStates(now),
		content:    repotest.NewContent(),
		activities: &repotest.Activities{},
		store:      store,
		notifier:   &fakeNotifier{},
	}
	completions := repotest.NewCompletions()
	eng := engine.NewEngine(f.states, f.content, completions, repotest.NewOutbox(), logger,
		engine.WithClock(func() time.Time { return now }))
	recorder := activity.NewRecorder(nil, f.activities, logger)
	f.svc = NewProgressService(nil, f.tx, eng, f.states, completions, recorder, f.store, f.notifier, spendLimit, logger)
	return f
}

func requireCode(t *testing.T, err error, code string) *domain.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestAddPoints_PostCommitSteps(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := uuid.New()

	_, err := f.svc.GetGameState(ctx, user)
	require.NoError(t, err)

	res, err := f.svc.AddPoints(ctx, domain.AddPointsParams{UserID: user, Amount: 150, Reason: "bonus"})
	require.NoError(t, err)
	assert.True(t, res.Outcome.LeveledUp)

	require.Len(t, f.activities.Events, 2)
	assert.Equal(t, domain.ActivityPointsEarned, f.activities.Events[0].Kind)
	assert.Equal(t, domain.ActivityLevelUp, f.activities.Events[1].Kind)

	assert.Equal(t, []string{NotifyProgressUpdated, NotifyLevelUp}, f.notifier.events())

	_, err = projection.GetGameState(ctx, f.store, user)
	assert.ErrorIs(t, err, projection.ErrMiss, "commit must drop the cached snapshot")

	state, err := f.svc.GetGameState(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(150), state.Points)
}

func TestGetGameState_ReadThrough(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := uuid.New()

	first, err := f.svc.GetGameState(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, domain.StartingLevel, first.Level)
	require.Contains(t, f.states.Rows, user, "first read creates the record")

	f.states.Rows[user].Points = 999
	cached, err := f.svc.GetGameState(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cached.Points, "second read is served from the projection")
}

// fillHook runs before once ahead of the first snapshot fill, which lets a
// test commit between a read-through query and its cache write.
type fillHook struct {
	projection.Store
	before func()
}

func (h *fillHook) SetVersioned(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (bool, error) {
	if value != nil && h.before != nil {
		fn := h.before
		h.before = nil
		fn()
	}
	return h.Store.SetVersioned(ctx, key, version, value, ttl)
}

func TestGetGameState_CommitDuringFillIsNotMasked(t *testing.T) {
	hook := &fillHook{Store: projection.NewInMemoryStore()}
	f := newFixtureWithStore(t, nil, hook)
	ctx := context.Background()
	user := uuid.New()

	_, err := f.svc.AddPoints(ctx, domain.AddPointsParams{UserID: user, Amount: 10})
	require.NoError(t, err)

	hook.before = func() {
		_, err := f.svc.AddPoints(ctx, domain.AddPointsParams{UserID: user, Amount: 5})
		require.NoError(t, err)
	}
	state, err := f.svc.GetGameState(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(10), state.Points, "the read returns what it loaded")

	_, err = projection.GetGameState(ctx, f.store, user)
	assert.ErrorIs(t, err, projection.ErrMiss, "the older snapshot must not land after the commit")

	state, err = f.svc.GetGameState(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(15), state.Points)

	cached, err := projection.GetGameState(ctx, f.store, user)
	require.NoError(t, err)
	assert.Equal(t, int64(15), cached.Points)
}

func TestExecute_ErrorMapping(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		txErr error
		code  string
	}{
		{"stale state after retries", domain.ErrStaleState, "CONFLICT"},
		{"database failure", errors.New("connection reset"), "INTERNAL_ERROR"},
		{"domain error passes through", domain.ErrInsufficientFunds(0, 10), "INSUFFICIENT_FUNDS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.tx.err = tt.txErr
			_, err := f.svc.AddPoints(ctx, domain.AddPointsParams{UserID: uuid.New(), Amount: 5})
			requireCode(t, err, tt.code)
			assert.Empty(t, f.activities.Events)
			assert.Empty(t, f.notifier.sent)
		})
	}
}

func TestSpendCoins_RateLimited(t *testing.T) {
	f := newFixture(t, guard.NewRateLimiter(1, time.Minute))
	ctx := context.Background()
	user := uuid.New()

	_, err := f.svc.EarnCoins(ctx, domain.EarnCoinsParams{UserID: user, Amount: 50, Source: "gift"})
	require.NoError(t, err)

	_, err = f.svc.SpendCoins(ctx, domain.SpendCoinsParams{UserID: user, Amount: 10, ItemID: "hat", ItemType: "avatar"})
	require.NoError(t, err)

	calls := f.tx.calls
	_, err = f.svc.SpendCoins(ctx, domain.SpendCoinsParams{UserID: user, Amount: 10, ItemID: "hat", ItemType: "avatar"})
	appErr := requireCode(t, err, "RATE_LIMITED")
	assert.Equal(t, 429, appErr.Status)

	var retry *domain.RetryAfterError
	require.ErrorAs(t, err, &retry)
	assert.Greater(t, retry.After, time.Duration(0))
	assert.Equal(t, calls, f.tx.calls, "limited spend never opens a transaction")
	assert.Equal(t, int64(40), f.states.Rows[user].Coins)
}

func TestSpendCoins_InsufficientFundsLeavesNoTrace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := uuid.New()

	_, err := f.svc.SpendCoins(ctx, domain.SpendCoinsParams{UserID: user, Amount: 30, ItemID: "hat"})
	requireCode(t, err, "INSUFFICIENT_FUNDS")
	assert.Empty(t, f.activities.Events)
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	for i, u := range users {
		_, err := f.svc.AddPoints(ctx, domain.AddPointsParams{UserID: u, Amount: int64(10 * (i + 1))})
		require.NoError(t, err)
	}

	board, err := f.svc.Leaderboard(ctx, users[0], domain.LeaderboardPoints, 2)
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, users[2], board.Entries[0].UserID)
	assert.Equal(t, int64(3), board.MyRank)

	cached, err := projection.GetLeaderboard(ctx, f.store, domain.LeaderboardPoints, 10)
	require.NoError(t, err)
	assert.Len(t, cached, 3, "the full board is cached")

	_, err = f.svc.AddPoints(ctx, domain.AddPointsParams{UserID: users[0], Amount: 100})
	require.NoError(t, err)

	board, err = f.svc.Leaderboard(ctx, users[0], domain.LeaderboardPoints, 0)
	require.NoError(t, err)
	assert.Equal(t, users[0], board.Entries[0].UserID, "a commit invalidates cached boards")
	assert.Equal(t, int64(1), board.MyRank)
}

func TestLeaderboard_UnrankedCaller(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.AddPoints(ctx, domain.AddPointsParams{UserID: uuid.New(), Amount: 10})
	require.NoError(t, err)

	board, err := f.svc.Leaderboard(ctx, uuid.New(), domain.LeaderboardPoints, 10)
	require.NoError(t, err)
	assert.Len(t, board.Entries, 1)
	assert.Zero(t, board.MyRank, "a learner with no state is not ranked")
}

func TestLeaderboard_EmptyIsNotNil(t *testing.T) {
	f := newFixture(t, nil)

	board, err := f.svc.Leaderboard(context.Background(), uuid.Nil, domain.LeaderboardStreak, 5)
	require.NoError(t, err)
	assert.NotNil(t, board.Entries)
	assert.Empty(t, board.Entries)
	assert.Zero(t, board.MyRank)
}

func TestStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := uuid.New()
	lesson := &domain.Lesson{ID: uuid.New(), Title: "Nouns", PointsReward: 10, CoinsReward: 5, Published: true}
	f.content.Lessons[lesson.ID] = lesson

	_, err := f.svc.CompleteLesson(ctx, domain.CompleteLessonParams{UserID: user, LessonID: lesson.ID, Score: 100, TimeSpent: 60})
	require.NoError(t, err)
	_, err = f.svc.UnlockZone(ctx, domain.UnlockZoneParams{UserID: user, ZoneID: "temple"})
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Points)
	assert.Equal(t, int64(60), stats.TotalTimeSpent)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 1, stats.ZonesUnlocked)
	assert.Equal(t, int64(1), stats.Completion.LessonsCompleted)
	assert.Equal(t, int64(1), stats.ActiveDays)
	assert.Equal(t, int64(1), stats.PointsRank)
}

func TestActivity_FiltersByKind(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := uuid.New()

	_, err := f.svc.EarnCoins(ctx, domain.EarnCoinsParams{UserID: user, Amount: 20, Source: "gift"})
	require.NoError(t, err)
	_, err = f.svc.UnlockZone(ctx, domain.UnlockZoneParams{UserID: user, ZoneID: "market"})
	require.NoError(t, err)

	all, err := f.svc.Activity(ctx, user, domain.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.ActivityZoneUnlocked, all[0].Kind, "newest first")

	coins, err := f.svc.Activity(ctx, user, domain.ActivityFilter{Kind: domain.ActivityCoinsEarned})
	require.NoError(t, err)
	require.Len(t, coins, 1)
	assert.Equal(t, domain.ActivityCoinsEarned, coins[0].Kind)
}

func TestStartQuest_NoNotifications(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	quest := &domain.Quest{ID: uuid.New(), Title: "Market day", MinLevel: 1, Active: true}
	f.content.Quests[quest.ID] = quest

	_, err := f.svc.StartQuest(ctx, domain.QuestParams{UserID: uuid.New(), QuestID: quest.ID})
	require.NoError(t, err)
	assert.Empty(t, f.notifier.sent)
}
