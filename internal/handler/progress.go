package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vyakaran/platform/internal/auth"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/service"
)

// ProgressHandler handles the learner's own game state endpoints.
type ProgressHandler struct {
	svc *service.ProgressService
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(svc *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{svc: svc}
}

// progressResponse is the summary returned by every progress mutation.
type progressResponse struct {
	domain.ProgressOutcome
	NextLesson *domain.Lesson            `json:"next_lesson,omitempty"`
	Lesson     *domain.LessonProgress    `json:"lesson_progress,omitempty"`
	Quiz       *domain.QuizResult        `json:"quiz_result,omitempty"`
	Session    *domain.GameSession       `json:"game_session,omitempty"`
	Ranking    int64                     `json:"ranking,omitempty"`
	Submission *domain.WritingSubmission `json:"submission,omitempty"`
	Quest      *domain.QuestProgress     `json:"quest,omitempty"`
}

func toProgressResponse(res *domain.CommandResult) progressResponse {
	return progressResponse{
		ProgressOutcome: res.Outcome,
		NextLesson:      res.NextLesson,
		Lesson:          res.Lesson,
		Quiz:            res.Quiz,
		Session:         res.Session,
		Ranking:         res.Ranking,
		Submission:      res.Submission,
		Quest:           res.Quest,
	}
}

func learnerIDFromContext(r *http.Request) (uuid.UUID, error) {
	sub := auth.SubjectFromContext(r.Context())
	if sub == "" {
		return uuid.Nil, domain.ErrUnauthorized("no subject in context")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid subject")
	}
	return id, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.ErrValidation("invalid " + name)
	}
	return id, nil
}

// Get handles GET /progress.
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	state, err := h.svc.GetGameState(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, state)
}

type addPointsRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// AddPoints handles POST /progress/points.
func (h *ProgressHandler) AddPoints(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req addPointsRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.svc.AddPoints(r.Context(), domain.AddPointsParams{UserID: userID, Amount: req.Amount, Reason: req.Reason})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toProgressResponse(res))
}

type earnCoinsRequest struct {
	Amount int64  `json:"amount"`
	Source string `json:"source"`
}

// EarnCoins handles POST /progress/coins/earn.
func (h *ProgressHandler) EarnCoins(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req earnCoinsRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.svc.EarnCoins(r.Context(), domain.EarnCoinsParams{UserID: userID, Amount: req.Amount, Source: req.Source})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toProgressResponse(res))
}

type spendCoinsRequest struct {
	Amount   int64  `json:"amount"`
	ItemID   string `json:"item_id"`
	ItemType string `json:"item_type"`
}

// SpendCoins handles POST /progress/coins/spend.
func (h *ProgressHandler) SpendCoins(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req spendCoinsRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.svc.SpendCoins(r.Context(), domain.SpendCoinsParams{
		UserID:   userID,
		Amount:   req.Amount,
		ItemID:   req.ItemID,
		ItemType: req.ItemType,
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toProgressResponse(res))
}

type unlockZoneRequest struct {
	ZoneID string `json:"zone_id"`
}

// UnlockZone handles POST /progress/zones.
func (h *ProgressHandler) UnlockZone(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req unlockZoneRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.svc.UnlockZone(r.Context(), domain.UnlockZoneParams{UserID: userID, ZoneID: req.ZoneID})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toProgressResponse(res))
}

// UpdateStreak handles POST /progress/streak.
func (h *ProgressHandler) UpdateStreak(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.svc.UpdateStreak)
}

// ResetStreak handles DELETE /progress/streak.
func (h *ProgressHandler) ResetStreak(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.svc.ResetStreak)
}

// ResetProgress handles POST /progress/reset.
func (h *ProgressHandler) ResetProgress(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.svc.ResetProgress)
}

type userCommand func(ctx context.Context, userID uuid.UUID) (*domain.CommandResult, error)

func (h *ProgressHandler) simple(w http.ResponseWriter, r *http.Request, op userCommand) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	res, err := op(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toProgressResponse(res))
}
