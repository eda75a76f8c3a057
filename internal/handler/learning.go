package handler

import (
	"encoding/json"
	"net/http"

	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/service"
)

// LearningHandler handles completion endpoints for curriculum content.
type LearningHandler struct {
	svc *service.ProgressService
}

// NewLearningHandler creates a new LearningHandler.
func NewLearningHandler(svc *service.ProgressService) *LearningHandler {
	return &LearningHandler{svc: svc}
}

// StartLesson handles POST /lessons/{id}/start.
func (h *LearningHandler) StartLesson(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	lessonID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.svc.StartLesson(r.Context(), domain.StartLessonParams{UserID: userID, LessonID: lessonID})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toProgressResponse(res))
}

type completeLessonRequest struct {
	Score     int   `json:"score"`
	TimeSpent int64 `json:"time_spent"`
}

// CompleteLesson handles POST /lessons/{id}/complete.
func (h *LearningHandler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	lessonID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req completeLessonRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.svc.CompleteLesson(r.Context(), domain.CompleteLessonParams{
		UserID:    userID,
		LessonID:  lessonID,
		Score:     req.Score,
		TimeSpent: req.TimeSpent,
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toProgressResponse(res))
}

type submitQuizRequest struct {
	Correct   int   `json:"correct"`
	Total     int   `json:"total"`
	TimeSpent int64 `json:"time_spent"`
}

// SubmitQuiz handles POST /quizzes/{id}/submit.
func (h *LearningHandler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	quizID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req submitQuizRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.svc.SubmitQuiz(r.Context(), domain.SubmitQuizParams{
		UserID:    userID,
		QuizID:    quizID,
		Correct:   req.Correct,
		Total:     req.Total,
		TimeSpent: req.TimeSpent,
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toProgressResponse(res))
}

type endGameRequest struct {
	Score     int64           `json:"score"`
	TimeSpent int64           `json:"time_spent"`
	Stats     json.RawMessage `json:"stats"`
}

// EndGame handles POST /games/{id}/end.
func (h *LearningHandler) EndGame(w http.ResponseWriter, r *http.Request) {
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
	var req endGameRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.svc.EndGame(r.Context(), domain.EndGameParams{
		UserID:    userID,
		GameID:    gameID,
		Score:     req.Score,
		TimeSpent: req.TimeSpent,
		Stats:     req.Stats,
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toProgressResponse(res))
}

type submitWritingRequest struct {
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
	TimeSpent int64  `json:"time_spent"`
}

// SubmitWriting handles POST /writing/{promptID}/submit.
func (h *LearningHandler) SubmitWriting(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	promptID, err := pathUUID(r, "promptID")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req submitWritingRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.svc.SubmitWriting(r.Context(), domain.SubmitWritingParams{
		UserID:    userID,
		PromptID:  promptID,
		Content:   req.Content,
		WordCount: req.WordCount,
		TimeSpent: req.TimeSpent,
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toProgressResponse(res))
}

// StartQuest handles POST /quests/{id}/start.
func (h *LearningHandler) StartQuest(w http.ResponseWriter, r *http.Request) {
	params, err := questParams(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	res, err := h.svc.StartQuest(r.Context(), params)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, toProgressResponse(res))
}

// CompleteQuest handles POST /quests/{id}/complete.
func (h *LearningHandler) CompleteQuest(w http.ResponseWriter, r *http.Request) {
	params, err := questParams(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	res, err := h.svc.CompleteQuest(r.Context(), params)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toProgressResponse(res))
}

func questParams(r *http.Request) (domain.QuestParams, error) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		return domain.QuestParams{}, err
	}
	questID, err := pathUUID(r, "id")
	if err != nil {
		return domain.QuestParams{}, err
	}
	return domain.QuestParams{UserID: userID, QuestID: questID}, nil
}

// ClaimAchievement handles POST /achievements/{id}/claim.
func (h *LearningHandler) ClaimAchievement(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	achievementID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}

	res, err := h.svc.ClaimAchievement(r.Context(), domain.AchievementParams{UserID: userID, AchievementID: achievementID})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, toProgressResponse(res))
}
