package app

import (
	"context"

	"quizboard-client/internal/domain"
)

// SessionStore persists the authenticated identity across client restarts,
// plus the last-known final score per room code (used as a fallback when the
// leaderboard is opened before the backend settles).
type SessionStore interface {
	Load(ctx context.Context) (domain.Identity, error)
	Save(ctx context.Context, id domain.Identity) error
	Clear(ctx context.Context) error
	SaveFinalScore(ctx context.Context, code string, score int) error
	FinalScore(ctx context.Context, code string) (int, bool, error)
}

// QuizAPI is the request/response surface the room consumes. Implementations
// translate transport failures into the domain sentinel errors.
type QuizAPI interface {
	FetchQuiz(ctx context.Context, code string) (domain.Snapshot, error)
	StartQuiz(ctx context.Context, code, creatorName string) ([]domain.Question, error)
	SubmitAnswer(ctx context.Context, code, userID string, questionIndex int, answer string) (domain.AnswerResult, error)
	EndQuiz(ctx context.Context, code, createdBy string) (map[string]int, error)
	Leaderboard(ctx context.Context, code string) (domain.Leaderboard, error)
}

// SnapshotInvalidator is implemented by caching QuizAPI decorators. Rooms drop
// the cached snapshot for their code when the quiz status changes under it.
type SnapshotInvalidator interface {
	Invalidate(code string)
}

// EventChannel is the long-lived connection carrying room lifecycle events.
// On returns a cancel handle; cancelling twice is a no-op.
type EventChannel interface {
	On(event string, fn func(payload []byte)) (cancel func())
	Emit(event string, payload any) error
}
