// Package repotest provides in-memory repository implementations for unit
// tests. They ignore the DBTX/tx arguments and are not safe for concurrent use.
package repotest

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/repository"
)

// CloneState deep-copies a game state the way a database round trip would.
func CloneState(s *domain.GameState) *domain.GameState {
	data, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	var out domain.GameState
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

// GameStates is an in-memory GameStateRepository with version checks.
type GameStates struct {
	Rows map[uuid.UUID]*domain.GameState
	Now  time.Time
}

// NewGameStates creates an empty store whose new rows are stamped with now.
func NewGameStates(now time.Time) *GameStates {
	return &GameStates{Rows: map[uuid.UUID]*domain.GameState{}, Now: now}
}

func (f *GameStates) EnsureExists(_ context.Context, _ repository.DBTX, userID uuid.UUID) error {
	if _, ok := f.Rows[userID]; !ok {
		f.Rows[userID] = domain.NewGameState(userID, f.Now)
	}
	return nil
}

func (f *GameStates) FindByUserID(_ context.Context, _ repository.DBTX, userID uuid.UUID) (*domain.GameState, error) {
	s, ok := f.Rows[userID]
	if !ok {
		return nil, nil
	}
	return CloneState(s), nil
}

func (f *GameStates) LockForUpdate(ctx context.Context, _ pgx.Tx, userID uuid.UUID) (*domain.GameState, error) {
	return f.FindByUserID(ctx, nil, userID)
}

func (f *GameStates) Update(_ context.Context, _ pgx.Tx, state *domain.GameState) error {
	stored, ok := f.Rows[state.UserID]
	if !ok || stored.Version != state.Version {
		return domain.ErrStaleState
	}
	state.Version++
	f.Rows[state.UserID] = CloneState(state)
	return nil
}

func (f *GameStates) ranked(by domain.LeaderboardType) []*domain.GameState {
	all := make([]*domain.GameState, 0, len(f.Rows))
	for _, s := range f.Rows {
		all = append(all, s)
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		switch by {
		case domain.LeaderboardLevel:
			if a.Level != b.Level {
				return a.Level > b.Level
			}
			return a.Experience > b.Experience
		case domain.LeaderboardStreak:
			return a.CurrentStreak > b.CurrentStreak
		default:
			return a.Points > b.Points
		}
	})
	return all
}

func (f *GameStates) Leaderboard(_ context.Context, _ repository.DBTX, by domain.LeaderboardType, limit int) ([]domain.LeaderboardEntry, error) {
	var out []domain.LeaderboardEntry
	for i, s := range f.ranked(by) {
		if i >= limit {
			break
		}
		out = append(out, domain.LeaderboardEntry{
			Rank:          int64(i + 1),
			UserID:        s.UserID,
			Level:         s.Level,
			Points:        s.Points,
			Experience:    s.Experience,
			CurrentStreak: s.CurrentStreak,
			LongestStreak: s.LongestStreak,
		})
	}
	return out, nil
}

func (f *GameStates) Rank(_ context.Context, _ repository.DBTX, userID uuid.UUID, by domain.LeaderboardType) (int64, error) {
	for i, s := range f.ranked(by) {
		if s.UserID == userID {
			return int64(i + 1), nil
		}
	}
	return 0, nil
}

// Content is an in-memory ContentRepository.
type Content struct {
	Lessons      map[uuid.UUID]*domain.Lesson
	Quizzes      map[uuid.UUID]*domain.Quiz
	Games        map[uuid.UUID]*domain.Game
	Quests       map[uuid.UUID]*domain.Quest
	Achievements map[uuid.UUID]*domain.Achievement
	Prompts      map[uuid.UUID]*domain.WritingPrompt
	Next         *domain.Lesson
}

// NewContent creates an empty catalog.
func NewContent() *Content {
	return &Content{
		Lessons:      map[uuid.UUID]*domain.Lesson{},
		Quizzes:      map[uuid.UUID]*domain.Quiz{},
		Games:        map[uuid.UUID]*domain.Game{},
		Quests:       map[uuid.UUID]*domain.Quest{},
		Achievements: map[uuid.UUID]*domain.Achievement{},
		Prompts:      map[uuid.UUID]*domain.WritingPrompt{},
	}
}

func (f *Content) FindLesson(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Lesson, error) {
	return f.Lessons[id], nil
}

func (f *Content) NextLesson(context.Context, repository.DBTX, *domain.Lesson) (*domain.Lesson, error) {
	return f.Next, nil
}

func (f *Content) FindQuiz(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Quiz, error) {
	return f.Quizzes[id], nil
}

func (f *Content) FindGame(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Game, error) {
	return f.Games[id], nil
}

func (f *Content) FindQuest(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Quest, error) {
	return f.Quests[id], nil
}

func (f *Content) FindAchievement(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Achievement, error) {
	return f.Achievements[id], nil
}

func (f *Content) FindWritingPrompt(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.WritingPrompt, error) {
	return f.Prompts[id], nil
}

// Key identifies a (learner, content item) record.
type Key struct{ User, Item uuid.UUID }

// Completions is an in-memory CompletionRepository.
type Completions struct {
	Lessons      map[Key]*domain.LessonProgress
	QuizResults  []*domain.QuizResult
	Sessions     []*domain.GameSession
	Quests       map[Key]*domain.QuestProgress
	Achievements map[Key]*domain.UserAchievement
	Writing      []*domain.WritingSubmission
}

// NewCompletions creates an empty record store.
func NewCompletions() *Completions {
	return &Completions{
		Lessons:      map[Key]*domain.LessonProgress{},
		Quests:       map[Key]*domain.QuestProgress{},
		Achievements: map[Key]*domain.UserAchievement{},
	}
}

func (f *Completions) FindLessonProgress(_ context.Context, _ repository.DBTX, userID, lessonID uuid.UUID) (*domain.LessonProgress, error) {
	p, ok := f.Lessons[Key{userID, lessonID}]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *Completions) UpsertLessonProgress(_ context.Context, _ repository.DBTX, p *domain.LessonProgress) error {
	cp := *p
	f.Lessons[Key{p.UserID, p.LessonID}] = &cp
	return nil
}

func (f *Completions) InsertQuizResult(_ context.Context, _ repository.DBTX, r *domain.QuizResult) error {
	f.QuizResults = append(f.QuizResults, r)
	return nil
}

func (f *Completions) BestGameScore(_ context.Context, _ repository.DBTX, userID, gameID uuid.UUID, since time.Time) (int64, bool, error) {
	best, found := f.bestScores(gameID, since)[userID]
	return best, found, nil
}

// bestScores maps each learner to their best score on a game since the given time.
func (f *Completions) bestScores(gameID uuid.UUID, since time.Time) map[uuid.UUID]int64 {
	out := map[uuid.UUID]int64{}
	for _, s := range f.Sessions {
		if s.GameID != gameID || s.CreatedAt.Before(since) {
			continue
		}
		if best, ok := out[s.UserID]; !ok || s.Score > best {
			out[s.UserID] = s.Score
		}
	}
	return out
}

func (f *Completions) GameLeaderboard(_ context.Context, _ repository.DBTX, gameID uuid.UUID, since time.Time, limit int) ([]domain.GameScoreEntry, error) {
	var entries []domain.GameScoreEntry
	for user, best := range f.bestScores(gameID, since) {
		entries = append(entries, domain.GameScoreEntry{UserID: user, Score: best})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID.String() < entries[j].UserID.String()
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = int64(i + 1)
	}
	return entries, nil
}

func (f *Completions) PlayersAbove(_ context.Context, _ repository.DBTX, gameID uuid.UUID, score int64, since time.Time) (int64, error) {
	var n int64
	for _, best := range f.bestScores(gameID, since) {
		if best > score {
			n++
		}
	}
	return n, nil
}

func (f *Completions) InsertGameSession(_ context.Context, _ repository.DBTX, s *domain.GameSession) error {
	f.Sessions = append(f.Sessions, s)
	return nil
}

func (f *Completions) FindQuestProgress(_ context.Context, _ repository.DBTX, userID, questID uuid.UUID) (*domain.QuestProgress, error) {
	p, ok := f.Quests[Key{userID, questID}]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *Completions) UpsertQuestProgress(_ context.Context, _ repository.DBTX, p *domain.QuestProgress) error {
	cp := *p
	f.Quests[Key{p.UserID, p.QuestID}] = &cp
	return nil
}

func (f *Completions) FindUserAchievement(_ context.Context, _ repository.DBTX, userID, achievementID uuid.UUID) (*domain.UserAchievement, error) {
	ua, ok := f.Achievements[Key{userID, achievementID}]
	if !ok {
		return nil, nil
	}
	cp := *ua
	return &cp, nil
}

func (f *Completions) GrantAchievement(_ context.Context, _ repository.DBTX, ua *domain.UserAchievement) (bool, error) {
	key := Key{ua.UserID, ua.AchievementID}
	if _, ok := f.Achievements[key]; ok {
		return false, nil
	}
	cp := *ua
	f.Achievements[key] = &cp
	return true, nil
}

func (f *Completions) MarkAchievementClaimed(_ context.Context, _ repository.DBTX, ua *domain.UserAchievement) error {
	cp := *ua
	f.Achievements[Key{ua.UserID, ua.AchievementID}] = &cp
	return nil
}

func (f *Completions) InsertWritingSubmission(_ context.Context, _ repository.DBTX, s *domain.WritingSubmission) error {
	f.Writing = append(f.Writing, s)
	return nil
}

func (f *Completions) Counts(_ context.Context, _ repository.DBTX, userID uuid.UUID) (domain.CompletionCounts, error) {
	var c domain.CompletionCounts
	for k, p := range f.Lessons {
		if k.User == userID && p.Status == domain.LessonCompleted {
			c.LessonsCompleted++
		}
	}
	for _, r := range f.QuizResults {
		if r.UserID == userID {
			c.QuizzesTaken++
			if r.Passed {
				c.QuizzesPassed++
			}
		}
	}
	for _, s := range f.Sessions {
		if s.UserID == userID {
			c.GamesPlayed++
		}
	}
	for k, p := range f.Quests {
		if k.User == userID && p.Status == domain.QuestCompleted {
			c.QuestsCompleted++
		}
	}
	for _, w := range f.Writing {
		if w.UserID == userID {
			c.WritingSubmissions++
		}
	}
	return c, nil
}

// Outbox is an in-memory OutboxRepository.
type Outbox struct {
	Events    []domain.OutboxDraft
	Published map[int64]bool
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{Published: map[int64]bool{}}
}

func (f *Outbox) Insert(_ context.Context, _ repository.DBTX, draft domain.OutboxDraft) error {
	f.Events = append(f.Events, draft)
	return nil
}

func (f *Outbox) FetchUnpublished(_ context.Context, _ repository.DBTX, limit int) ([]domain.OutboxRecord, error) {
	var out []domain.OutboxRecord
	for i, e := range f.Events {
		seq := int64(i + 1)
		if f.Published[seq] {
			continue
		}
		out = append(out, domain.OutboxRecord{SeqID: seq, OutboxDraft: e})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *Outbox) MarkPublished(_ context.Context, _ repository.DBTX, ids []int64) error {
	for _, id := range ids {
		f.Published[id] = true
	}
	return nil
}

// Types lists the event types written so far, in order.
func (f *Outbox) Types() []domain.EventType {
	out := make([]domain.EventType, 0, len(f.Events))
	for _, e := range f.Events {
		out = append(out, e.EventType)
	}
	return out
}

// Activities is an in-memory ActivityRepository.
type Activities struct {
	Events []domain.ActivityEvent
}

func (f *Activities) Insert(_ context.Context, _ repository.DBTX, e *domain.ActivityEvent) error {
	f.Events = append(f.Events, *e)
	return nil
}

func (f *Activities) List(_ context.Context, _ repository.DBTX, userID uuid.UUID, filter domain.ActivityFilter) ([]domain.ActivityEvent, error) {
	filter = filter.Normalize()
	var out []domain.ActivityEvent
	for i := len(f.Events) - 1; i >= 0; i-- {
		e := f.Events[i]
		if e.UserID != userID {
			continue
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if filter.Since != nil && e.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, e)
		if len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *Activities) ActiveDays(_ context.Context, _ repository.DBTX, userID uuid.UUID) (int64, error) {
	days := map[string]bool{}
	for _, e := range f.Events {
		if e.UserID == userID {
			days[e.CreatedAt.UTC().Format(time.DateOnly)] = true
		}
	}
	return int64(len(days)), nil
}

// Interface checks.
var (
	_ repository.GameStateRepository  = (*GameStates)(nil)
	_ repository.ContentRepository    = (*Content)(nil)
	_ repository.CompletionRepository = (*Completions)(nil)
	_ repository.OutboxRepository     = (*Outbox)(nil)
	_ repository.ActivityRepository   = (*Activities)(nil)
)
