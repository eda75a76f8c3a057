//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vyakaran/platform/internal/auth"
)

// LearnerToken mints a learner token for a fresh user id.
func (env *TestEnv) LearnerToken() (token string, userID uuid.UUID) {
	env.t.Helper()
	userID = uuid.New()
	token, err := env.JWTMgr.GenerateToken(auth.RealmLearner, userID, "", "")
	if err != nil {
		env.t.Fatalf("LearnerToken: %v", err)
	}
	return token, userID
}

// AdminToken mints an admin token with the given role.
func (env *TestEnv) AdminToken(role string) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateToken(auth.RealmAdmin, uuid.New(), "ops", role)
	if err != nil {
		env.t.Fatalf("AdminToken: %v", err)
	}
	return token
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodGet, path, nil, "")
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodGet, path, nil, token)
}

// AuthPOST performs an authenticated POST request. Extra arguments are
// header name/value pairs.
func (env *TestEnv) AuthPOST(path string, body interface{}, token string, headers ...string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodPost, path, body, token, headers...)
}

// AuthDELETE performs an authenticated DELETE request.
func (env *TestEnv) AuthDELETE(path, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodDelete, path, nil, token)
}

func (env *TestEnv) do(method, path string, body interface{}, token string, headers ...string) *http.Response {
	env.t.Helper()
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("%s %s: encode: %v", method, path, err)
		}
		reader = &buf
	}
	req, err := http.NewRequest(method, env.Server.URL+path, reader)
	if err != nil {
		env.t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// SeedLesson inserts a published lesson with the given base rewards.
func (env *TestEnv) SeedLesson(points, coins int64) uuid.UUID {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.New()
	_, err := env.Pool.Exec(ctx,
		`INSERT INTO lessons (id, slug, title, points_reward, coins_reward, published)
		 VALUES ($1, $2, $3, $4, $5, true)`,
		id, "lesson-"+id.String()[:8], "Test lesson", points, coins)
	if err != nil {
		env.t.Fatalf("SeedLesson: %v", err)
	}
	return id
}

// SeedAchievement inserts an achievement with the given rewards.
func (env *TestEnv) SeedAchievement(points, coins int64) uuid.UUID {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.New()
	_, err := env.Pool.Exec(ctx,
		`INSERT INTO achievements (id, name, points_reward, coins_reward) VALUES ($1, $2, $3, $4)`,
		id, "Test achievement", points, coins)
	if err != nil {
		env.t.Fatalf("SeedAchievement: %v", err)
	}
	return id
}

// SeedGame inserts an active game with the given base rewards.
func (env *TestEnv) SeedGame(basePoints, baseCoins int64) uuid.UUID {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.New()
	_, err := env.Pool.Exec(ctx,
		`INSERT INTO games (id, name, base_points, base_coins) VALUES ($1, $2, $3, $4)`,
		id, "Test game", basePoints, baseCoins)
	if err != nil {
		env.t.Fatalf("SeedGame: %v", err)
	}
	return id
}
