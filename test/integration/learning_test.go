//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/test/integration/testutil"
)

func TestStartThenCompleteLesson(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token, userID := env.LearnerToken()
	lessonID := env.SeedLesson(20, 10)
	base := "/api/v1/lessons/" + lessonID.String()

	resp := env.AuthPOST(base+"/start", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started struct {
		Lesson domain.LessonProgress `json:"lesson_progress"`
	}
	testutil.DecodeJSON(t, resp, &started)
	assert.Equal(t, domain.LessonInProgress, started.Lesson.Status)
	assert.Equal(t, 1, started.Lesson.Attempts)
	assert.NotNil(t, started.Lesson.StartedAt)
	assert.Zero(t, testutil.CountOutbox(t, env, userID, string(domain.EventProgressUpdated)), "starting awards nothing")

	resp = env.AuthPOST(base+"/complete", map[string]interface{}{"score": 100}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var completed struct {
		Lesson domain.LessonProgress `json:"lesson_progress"`
	}
	testutil.DecodeJSON(t, resp, &completed)
	assert.Equal(t, domain.LessonCompleted, completed.Lesson.Status)
	assert.Equal(t, 1, completed.Lesson.Attempts)
	assert.NotNil(t, completed.Lesson.StartedAt, "start time survives completion")
	testutil.AssertBalances(t, env, userID, 20, 10)
}

func TestGameRankingAndLeaderboard(t *testing.T) {
	env := testutil.NewTestEnv(t)
	gameID := env.SeedGame(10, 5)
	first, firstID := env.LearnerToken()
	second, _ := env.LearnerToken()
	base := "/api/v1/games/" + gameID.String()

	end := func(token string, score int) int64 {
		t.Helper()
		resp := env.AuthPOST(base+"/end", map[string]interface{}{"score": score}, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out struct {
			Ranking int64 `json:"ranking"`
		}
		testutil.DecodeJSON(t, resp, &out)
		return out.Ranking
	}
	assert.Equal(t, int64(1), end(first, 500))
	assert.Equal(t, int64(1), end(first, 900))
	assert.Equal(t, int64(2), end(second, 600))

	resp := env.AuthGET(base+"/leaderboard?period=daily", second)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var board domain.GameLeaderboard
	testutil.DecodeJSON(t, resp, &board)
	require.Len(t, board.Entries, 2, "one row per learner")
	assert.Equal(t, firstID, board.Entries[0].UserID)
	assert.Equal(t, int64(900), board.Entries[0].Score)
	assert.Equal(t, int64(2), board.MyRank)
	assert.Equal(t, int64(600), board.MyScore)
}
