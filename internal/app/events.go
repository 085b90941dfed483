package app

import "quizboard-client/internal/domain"

// Channel event names. The wire protocol is owned by the backend; these must
// match it verbatim.
const (
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventPlayerJoined    = "player-joined"
	EventPlayerList      = "player-list"
	EventQuizStarted     = "quiz-started"
	EventQuizEnded       = "quiz-ended"
	EventQuizError       = "quiz-error"
	EventStartQuiz       = "start-quiz"
	EventEndQuiz         = "end-quiz"
	EventPlayerCompleted = "player-completed"

	// EventReconnected is synthesized locally by the channel client after a
	// successful redial so the room can re-emit its join intent.
	EventReconnected = "_reconnected"
)

// RoomIntent is the join-room / leave-room payload.
type RoomIntent struct {
	Code     string `json:"code"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// StartedPayload carries the question list on quiz-started.
type StartedPayload struct {
	Questions []domain.Question `json:"questions"`
}

// EndedPayload carries the finality flag on quiz-ended.
type EndedPayload struct {
	Redirect bool `json:"redirect"`
}

// ErrorPayload is a channel-level error notification.
type ErrorPayload struct {
	Message string `json:"message"`
}

// StartBroadcast asks the backend to fan out quiz-started to the room.
type StartBroadcast struct {
	Code string `json:"code"`
}

// EndBroadcast asks the backend to fan out quiz-ended to the room.
type EndBroadcast struct {
	Code        string         `json:"code"`
	CreatedBy   string         `json:"createdBy"`
	FinalScores map[string]int `json:"finalScores,omitempty"`
}

// CompletedNotice announces that this player finished all questions.
type CompletedNotice struct {
	Code       string `json:"code"`
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	FinalScore int    `json:"finalScore"`
}
