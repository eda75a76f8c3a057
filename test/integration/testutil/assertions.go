//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
)

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// AssertStatus checks that the response has the expected HTTP status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertErrorCode checks that the response body contains the expected error code.
func AssertErrorCode(t *testing.T, resp *http.Response, expectedCode string) {
	t.Helper()
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	DecodeJSON(t, resp, &errResp)
	if errResp.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, errResp.Code, errResp.Message)
	}
}

// AssertBalances reads the learner's row directly and checks points and coins.
func AssertBalances(t *testing.T, env *TestEnv, userID uuid.UUID, points, coins int64) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var gotPoints, gotCoins int64
	err := env.Pool.QueryRow(ctx,
		"SELECT points, coins FROM game_states WHERE user_id = $1", userID).Scan(&gotPoints, &gotCoins)
	if err != nil {
		t.Fatalf("AssertBalances: query: %v", err)
	}
	if gotPoints != points {
		t.Errorf("points: expected %d, got %d", points, gotPoints)
	}
	if gotCoins != coins {
		t.Errorf("coins: expected %d, got %d", coins, gotCoins)
	}
}

// CountOutbox returns the number of outbox rows for one learner and event type.
func CountOutbox(t *testing.T, env *TestEnv, userID uuid.UUID, eventType string) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var n int
	err := env.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_outbox WHERE "aggregateId" = $1 AND "eventType" = $2`,
		userID.String(), eventType).Scan(&n)
	if err != nil {
		t.Fatalf("CountOutbox: query: %v", err)
	}
	return n
}
