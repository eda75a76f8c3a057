package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/service"
)

// InsightsHandler serves read-only history, stats and leaderboards.
type InsightsHandler struct {
	svc *service.ProgressService
}

// NewInsightsHandler creates a new InsightsHandler.
func NewInsightsHandler(svc *service.ProgressService) *InsightsHandler {
	return &InsightsHandler{svc: svc}
}

// ParseActivityFilter reads kind, since (RFC 3339) and limit from the query string.
func ParseActivityFilter(r *http.Request) (domain.ActivityFilter, error) {
	q := r.URL.Query()
	var filter domain.ActivityFilter

	if k := q.Get("kind"); k != "" {
		kind, err := domain.ParseActivityKind(k)
		if err != nil {
			return filter, domain.ErrValidation(err.Error())
		}
		filter.Kind = kind
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, domain.ErrValidation("since must be an RFC 3339 timestamp")
		}
		filter.Since = &since
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return filter, domain.ErrValidation("limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	return filter.Normalize(), nil
}

type activityResponse struct {
	Events []domain.ActivityEvent `json:"events"`
}

// Activity handles GET /activity.
func (h *InsightsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	filter, err := ParseActivityFilter(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	events, err := h.svc.Activity(r.Context(), userID, filter)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, activityResponse{Events: events})
}

// Stats handles GET /stats/overview.
func (h *InsightsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	stats, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, stats)
}

// queryLimit reads an optional non-negative limit; 0 means the service default.
func queryLimit(r *http.Request) (int, error) {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(l)
	if err != nil || n < 0 {
		return 0, domain.ErrValidation("limit must be a non-negative integer")
	}
	return n, nil
}

// GameLeaderboard handles GET /games/{id}/leaderboard?period=daily|weekly|monthly|all-time&limit=.
func (h *InsightsHandler) GameLeaderboard(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	gameID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	period, ok := domain.ParseGamePeriod(r.URL.Query().Get("period"))
	if !ok {
		RespondError(w, domain.ErrValidation("period must be one of daily, weekly, monthly, all-time"))
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	board, err := h.svc.GameLeaderboard(r.Context(), userID, gameID, period, limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, board)
}

// Leaderboard handles GET /leaderboard?type=points|level|streak&limit=.
func (h *InsightsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	by, ok := domain.ParseLeaderboardType(r.URL.Query().Get("type"))
	if !ok {
		RespondError(w, domain.ErrValidation("type must be one of points, level, streak"))
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	board, err := h.svc.Leaderboard(r.Context(), userID, by, limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, board)
}
