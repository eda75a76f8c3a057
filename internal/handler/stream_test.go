package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vyakaran/platform/internal/auth"
	"github.com/vyakaran/platform/internal/infra"
)

func TestStream_DeliversNotifications(t *testing.T) {
	hub := infra.NewNotifyHub(noopLogger())
	h := NewStreamHandler(hub, time.Hour, noopLogger())
	user := uuid.New()

	claims := &auth.Claims{Realm: auth.RealmLearner}
	claims.Subject = user.String()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/progress/stream", nil)
	r = r.WithContext(auth.WithClaims(context.Background(), claims))
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Stream(w, r)
		close(done)
	}()

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(user, "level_up", map[string]int{"new_level": 2})
	hub.Publish(uuid.New(), "level_up", map[string]int{"new_level": 9})
	hub.Shutdown(context.Background())
	<-done

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, `data: {"event":"level_up","data":{"new_level":2}}`)
	assert.NotContains(t, body, `"new_level":9`)
}

func TestStream_RequiresLearner(t *testing.T) {
	h := NewStreamHandler(infra.NewNotifyHub(noopLogger()), time.Hour, noopLogger())
	w := httptest.NewRecorder()
	h.Stream(w, httptest.NewRequest(http.MethodGet, "/api/v1/progress/stream", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
