package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vyakaran/platform/internal/auth"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/handler"
	"github.com/vyakaran/platform/internal/service"
)

// ProgressAdminHandler lets operators inspect and repair learner progress.
type ProgressAdminHandler struct {
	svc    *service.ProgressService
	logger *slog.Logger
}

// NewProgressAdminHandler creates a new ProgressAdminHandler.
func NewProgressAdminHandler(svc *service.ProgressService, logger *slog.Logger) *ProgressAdminHandler {
	return &ProgressAdminHandler{svc: svc, logger: logger}
}

func userIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, domain.ErrValidation("invalid user id")
	}
	return id, nil
}

func (h *ProgressAdminHandler) audit(r *http.Request, action string, userID uuid.UUID, attrs ...any) {
	args := []any{"action", action, "user_id", userID, "admin_id", auth.SubjectFromContext(r.Context())}
	h.logger.Info("admin progress action", append(args, attrs...)...)
}

// GetProgress handles GET /admin/users/{id}/progress.
func (h *ProgressAdminHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	stats, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, stats)
}

// ResetProgress handles POST /admin/users/{id}/reset.
func (h *ProgressAdminHandler) ResetProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	res, err := h.svc.ResetProgress(r.Context(), userID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	h.audit(r, "reset_progress", userID)
	handler.RespondJSON(w, http.StatusOK, res.Outcome)
}

// ResetStreak handles DELETE /admin/users/{id}/streak.
func (h *ProgressAdminHandler) ResetStreak(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	res, err := h.svc.ResetStreak(r.Context(), userID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	h.audit(r, "reset_streak", userID)
	handler.RespondJSON(w, http.StatusOK, res.Outcome)
}

// GrantAchievement handles POST /admin/users/{id}/achievements/{aid}.
func (h *ProgressAdminHandler) GrantAchievement(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	achievementID, err := uuid.Parse(chi.URLParam(r, "aid"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid achievement id"))
		return
	}

	res, err := h.svc.GrantAchievement(r.Context(), domain.AchievementParams{UserID: userID, AchievementID: achievementID})
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	granted := len(res.Activities) > 0
	h.audit(r, "grant_achievement", userID, "achievement_id", achievementID, "granted", granted)
	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"achievement_id": achievementID,
		"granted":        granted,
	})
}

// Activity handles GET /admin/users/{id}/activity.
func (h *ProgressAdminHandler) Activity(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	filter, err := handler.ParseActivityFilter(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	events, err := h.svc.Activity(r.Context(), userID, filter)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
