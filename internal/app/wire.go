package app

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vyakaran/platform/internal/activity"
	"github.com/vyakaran/platform/internal/auth"
	"github.com/vyakaran/platform/internal/engine"
	"github.com/vyakaran/platform/internal/guard"
	"github.com/vyakaran/platform/internal/handler"
	adminhandler "github.com/vyakaran/platform/internal/handler/admin"
	"github.com/vyakaran/platform/internal/infra"
	"github.com/vyakaran/platform/internal/projection"
	"github.com/vyakaran/platform/internal/repository"
	"github.com/vyakaran/platform/internal/service"
)

// Repositories groups the persistence adapters the router wires together.
type Repositories struct {
	States      repository.GameStateRepository
	Content     repository.ContentRepository
	Completions repository.CompletionRepository
	Activity    repository.ActivityRepository
	Outbox      repository.OutboxRepository
}

// PostgresRepositories returns the pgx-backed repositories.
func PostgresRepositories() Repositories {
	return Repositories{
		States:      repository.NewGameStateRepository(),
		Content:     repository.NewContentRepository(),
		Completions: repository.NewCompletionRepository(),
		Activity:    repository.NewActivityRepository(),
		Outbox:      repository.NewOutboxRepository(),
	}
}

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	DB     repository.DBTX
	Health handler.Pinger
	Tx     service.TxRunner
	Repos  Repositories
	JWTMgr *auth.JWTManager
	Store  projection.Store
	Hub    *infra.NotifyHub
	Logger *slog.Logger

	Location        *time.Location
	Clock           func() time.Time
	SpendRateLimit  int
	SpendRateWindow time.Duration
	IdempotencyTTL  time.Duration
	CORSOrigins     string
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	repos := deps.Repos

	// Engine and services
	opts := []engine.Option{}
	if deps.Location != nil {
		opts = append(opts, engine.WithLocation(deps.Location))
	}
	if deps.Clock != nil {
		opts = append(opts, engine.WithClock(deps.Clock))
	}
	progressEngine := engine.NewEngine(repos.States, repos.Content, repos.Completions, repos.Outbox, logger, opts...)
	recorder := activity.NewRecorder(deps.DB, repos.Activity, logger)
	var notifier service.Notifier
	if deps.Hub != nil {
		notifier = deps.Hub
	}
	progressSvc := service.NewProgressService(
		deps.DB, deps.Tx, progressEngine, repos.States, repos.Completions, recorder,
		deps.Store, notifier, guard.NewRateLimiter(deps.SpendRateLimit, deps.SpendRateWindow), logger,
	)

	// Guards
	idempotency := guard.NewIdempotencyGuard(deps.IdempotencyTTL)

	// Handlers
	progressHandler := handler.NewProgressHandler(progressSvc)
	learningHandler := handler.NewLearningHandler(progressSvc)
	insightsHandler := handler.NewInsightsHandler(progressSvc)
	progressAdmin := adminhandler.NewProgressAdminHandler(progressSvc, logger)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(deps.CORSOrigins))
	r.Use(handler.JSONContentType)
	r.Use(handler.ActivityOrigin)

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(deps.Health))

	r.Route("/api/v1", func(r chi.Router) {
		// Learner-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthenticateLearner(deps.JWTMgr))

			r.Route("/progress", func(r chi.Router) {
				r.Get("/", progressHandler.Get)
				if deps.Hub != nil {
					streamHandler := handler.NewStreamHandler(deps.Hub, 0, logger)
					r.Get("/stream", streamHandler.Stream)
				}
				r.Post("/points", progressHandler.AddPoints)
				r.Post("/coins/earn", progressHandler.EarnCoins)
				r.Post("/coins/spend", progressHandler.SpendCoins)
				r.Post("/zones", progressHandler.UnlockZone)
				r.Post("/streak", progressHandler.UpdateStreak)
				r.Delete("/streak", progressHandler.ResetStreak)
				r.Post("/reset", progressHandler.ResetProgress)
			})

			// Completion endpoints accept an Idempotency-Key
			r.Group(func(r chi.Router) {
				r.Use(handler.Idempotency(idempotency))

				r.Post("/lessons/{id}/start", learningHandler.StartLesson)
				r.Post("/lessons/{id}/complete", learningHandler.CompleteLesson)
				r.Post("/quizzes/{id}/submit", learningHandler.SubmitQuiz)
				r.Post("/games/{id}/end", learningHandler.EndGame)
				r.Post("/writing/{promptID}/submit", learningHandler.SubmitWriting)
				r.Post("/quests/{id}/start", learningHandler.StartQuest)
				r.Post("/quests/{id}/complete", learningHandler.CompleteQuest)
				r.Post("/achievements/{id}/claim", learningHandler.ClaimAchievement)
			})

			r.Get("/activity", insightsHandler.Activity)
			r.Get("/stats/overview", insightsHandler.Stats)
			r.Get("/leaderboard", insightsHandler.Leaderboard)
			r.Get("/games/{id}/leaderboard", insightsHandler.GameLeaderboard)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.AuthenticateAdmin(deps.JWTMgr))
			r.Use(auth.RequireRole(auth.AllAdminRoles()...))

			r.Route("/users/{id}", func(r chi.Router) {
				r.Get("/progress", progressAdmin.GetProgress)
				r.Get("/activity", progressAdmin.Activity)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireRole(auth.WriteRoles()...))
					r.Post("/reset", progressAdmin.ResetProgress)
					r.Delete("/streak", progressAdmin.ResetStreak)
					r.Post("/achievements/{aid}", progressAdmin.GrantAchievement)
				})
			})
		})
	})

	return r
}
