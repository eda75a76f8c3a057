package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vyakaran/platform/internal/auth"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/infra"
	"github.com/vyakaran/platform/internal/projection"
	"github.com/vyakaran/platform/internal/repository/repotest"
)

type inlineTx struct{}

func (inlineTx) Run(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

type testServer struct {
	handler http.Handler
	jwt     *auth.JWTManager
	content *repotest.Content
	states  *repotest.GameStates
	hub     *infra.NotifyHub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := &testServer{
		jwt:     auth.NewJWTManager("test-secret-key-with-enough-length!", time.Hour, time.Hour),
		content: repotest.NewContent(),
		states:  repotest.NewGameStates(now),
		hub:     infra.NewNotifyHub(logger),
	}
	ts.handler = NewRouter(RouterDeps{
		Health: func(context.Context) error { return nil },
		Tx:     inlineTx{},
		Repos: Repositories{
			States:      ts.states,
			Content:     ts.content,
			Completions: repotest.NewCompletions(),
			Activity:    &repotest.Activities{},
			Outbox:      repotest.NewOutbox(),
		},
		JWTMgr:          ts.jwt,
		Store:           projection.NewInMemoryStore(),
		Hub:             ts.hub,
		Logger:          logger,
		Clock:           func() time.Time { return now },
		SpendRateLimit:  5,
		SpendRateWindow: time.Minute,
		IdempotencyTTL:  time.Hour,
		CORSOrigins:     "*",
	})
	return ts
}

func (ts *testServer) learnerToken(t *testing.T, id uuid.UUID) string {
	t.Helper()
	token, err := ts.jwt.GenerateToken(auth.RealmLearner, id, "", "")
	require.NoError(t, err)
	return token
}

func (ts *testServer) adminToken(t *testing.T, role string) string {
	t.Helper()
	token, err := ts.jwt.GenerateToken(auth.RealmAdmin, uuid.New(), "ops", role)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(dst))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLearnerRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/progress", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	admin := ts.adminToken(t, auth.RoleAdmin)
	w = ts.do(t, http.MethodGet, "/api/v1/progress", admin, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "admin tokens are not learner tokens")
}

func TestGetProgress_CreatesDefaultState(t *testing.T) {
	ts := newTestServer(t)
	user := uuid.New()

	w := ts.do(t, http.MethodGet, "/api/v1/progress", ts.learnerToken(t, user), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var state domain.GameState
	decode(t, w, &state)
	assert.Equal(t, user, state.UserID)
	assert.Equal(t, 1, state.Level)
	assert.Equal(t, int64(100), state.ExperienceToNextLevel)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestCompleteLesson_IdempotencyKey(t *testing.T) {
	ts := newTestServer(t)
	user := uuid.New()
	token := ts.learnerToken(t, user)
	lesson := &domain.Lesson{ID: uuid.New(), Title: "Greetings", PointsReward: 20, CoinsReward: 10, Published: true}
	ts.content.Lessons[lesson.ID] = lesson
	path := "/api/v1/lessons/" + lesson.ID.String() + "/complete"
	body := map[string]interface{}{"score": 50, "time_spent": 90}

	w := ts.do(t, http.MethodPost, path, token, body, "Idempotency-Key", "attempt-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out domain.ProgressOutcome
	decode(t, w, &out)
	assert.Equal(t, int64(10), out.PointsAwarded)
	assert.Equal(t, int64(5), out.CoinsAwarded)
	assert.Equal(t, 1, out.CurrentStreak)

	w = ts.do(t, http.MethodPost, path, token, body, "Idempotency-Key", "attempt-1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, int64(10), ts.states.Rows[user].Points, "replay must not re-award")

	w = ts.do(t, http.MethodPost, path, token, body, "Idempotency-Key", "attempt-2")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(20), ts.states.Rows[user].Points)
}

func TestCompleteLesson_BadInput(t *testing.T) {
	ts := newTestServer(t)
	token := ts.learnerToken(t, uuid.New())

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"malformed id", "/api/v1/lessons/not-a-uuid/complete", map[string]int{"score": 50}, http.StatusBadRequest},
		{"unknown lesson", "/api/v1/lessons/" + uuid.NewString() + "/complete", map[string]int{"score": 50}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, tt.path, token, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestSpendCoins_Overspend(t *testing.T) {
	ts := newTestServer(t)
	token := ts.learnerToken(t, uuid.New())

	w := ts.do(t, http.MethodPost, "/api/v1/progress/coins/earn", token, map[string]interface{}{"amount": 20, "source": "gift"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/progress/coins/spend", token, map[string]interface{}{"amount": 30, "item_id": "hat"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "INSUFFICIENT_FUNDS", body["code"])
}

func TestUnlockZone_Twice(t *testing.T) {
	ts := newTestServer(t)
	token := ts.learnerToken(t, uuid.New())

	w := ts.do(t, http.MethodPost, "/api/v1/progress/zones", token, map[string]string{"zone_id": "temple"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/progress/zones", token, map[string]string{"zone_id": "temple"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLeaderboardAndActivity(t *testing.T) {
	ts := newTestServer(t)
	user := uuid.New()
	token := ts.learnerToken(t, user)

	w := ts.do(t, http.MethodPost, "/api/v1/progress/points", token, map[string]interface{}{"amount": 250, "reason": "bonus"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/leaderboard?type=level&limit=5", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var board domain.Leaderboard
	decode(t, w, &board)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, 3, board.Entries[0].Level)
	assert.Equal(t, int64(1), board.MyRank)

	w = ts.do(t, http.MethodGet, "/api/v1/leaderboard?type=coins", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/activity?kind=level_up", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var activity struct {
		Events []domain.ActivityEvent `json:"events"`
	}
	decode(t, w, &activity)
	require.Len(t, activity.Events, 1)
	assert.Equal(t, domain.ActivityLevelUp, activity.Events[0].Kind)

	w = ts.do(t, http.MethodGet, "/api/v1/activity?since=yesterday", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	user := uuid.New()
	learner := ts.learnerToken(t, user)
	ach := &domain.Achievement{ID: uuid.New(), Name: "First steps", PointsReward: 10, CoinsReward: 5}
	ts.content.Achievements[ach.ID] = ach

	w := ts.do(t, http.MethodPost, "/api/v1/progress/points", learner, map[string]interface{}{"amount": 40})
	require.Equal(t, http.StatusOK, w.Code)

	viewer := ts.adminToken(t, auth.RoleViewer)
	admin := ts.adminToken(t, auth.RoleAdmin)
	base := "/api/v1/admin/users/" + user.String()

	w = ts.do(t, http.MethodGet, base+"/progress", viewer, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, base+"/reset", viewer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPost, base+"/achievements/"+ach.ID.String(), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/achievements/"+ach.ID.String()+"/claim", learner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(50), ts.states.Rows[user].Points)

	w = ts.do(t, http.MethodPost, base+"/reset", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), ts.states.Rows[user].Points)
	assert.Equal(t, int64(0), ts.states.Rows[user].Coins)
}

func TestStartLesson_Route(t *testing.T) {
	ts := newTestServer(t)
	token := ts.learnerToken(t, uuid.New())
	lesson := &domain.Lesson{ID: uuid.New(), Title: "Greetings", PointsReward: 20, Published: true}
	ts.content.Lessons[lesson.ID] = lesson

	w := ts.do(t, http.MethodPost, "/api/v1/lessons/"+lesson.ID.String()+"/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		PointsAwarded int64                  `json:"points_awarded"`
		Lesson        *domain.LessonProgress `json:"lesson_progress"`
	}
	decode(t, w, &out)
	require.NotNil(t, out.Lesson)
	assert.Equal(t, domain.LessonInProgress, out.Lesson.Status)
	assert.Equal(t, 1, out.Lesson.Attempts)
	assert.Zero(t, out.PointsAwarded)

	w = ts.do(t, http.MethodPost, "/api/v1/lessons/"+uuid.NewString()+"/start", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGameRankingAndLeaderboard(t *testing.T) {
	ts := newTestServer(t)
	game := &domain.Game{ID: uuid.New(), Name: "Word Match", BasePoints: 10, Active: true}
	ts.content.Games[game.ID] = game
	alice, bob := uuid.New(), uuid.New()
	aliceToken, bobToken := ts.learnerToken(t, alice), ts.learnerToken(t, bob)

	end := func(token string, score int64) int64 {
		t.Helper()
		w := ts.do(t, http.MethodPost, "/api/v1/games/"+game.ID.String()+"/end", token, map[string]interface{}{"score": score})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out struct {
			Ranking int64 `json:"ranking"`
		}
		decode(t, w, &out)
		return out.Ranking
	}
	assert.Equal(t, int64(1), end(aliceToken, 800))
	assert.Equal(t, int64(2), end(bobToken, 300))

	w := ts.do(t, http.MethodGet, "/api/v1/games/"+game.ID.String()+"/leaderboard?period=weekly", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var board domain.GameLeaderboard
	decode(t, w, &board)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, alice, board.Entries[0].UserID)
	assert.Equal(t, int64(800), board.Entries[0].Score)
	assert.Equal(t, domain.GamePeriodWeekly, board.Period)
	assert.Equal(t, int64(2), board.MyRank)
	assert.Equal(t, int64(300), board.MyScore)

	w = ts.do(t, http.MethodGet, "/api/v1/games/"+game.ID.String()+"/leaderboard?period=yearly", bobToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/games/"+uuid.NewString()+"/leaderboard", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/games/"+game.ID.String()+"/end", bobToken, map[string]interface{}{"score": domain.MaxGameScore + 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
