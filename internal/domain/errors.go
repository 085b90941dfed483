package domain

import "errors"

var (
	// ErrNotLoggedIn is returned when no persisted identity exists (or it expired).
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrBadCredentials is returned when the backend rejects a login.
	ErrBadCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when signup collides with an existing account.
	ErrUserExists = errors.New("user already exists")
	// ErrQuizNotFound indicates the room code does not resolve to a quiz.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrLoadFailed is a generic snapshot/leaderboard fetch failure.
	ErrLoadFailed = errors.New("failed to load quiz")
	// ErrNotOwner is returned when a non-owner attempts an owner-only action.
	ErrNotOwner = errors.New("only the quiz creator may do this")
	// ErrNotEnoughPlayers is returned when start is requested with fewer than
	// two distinct players in the lobby.
	ErrNotEnoughPlayers = errors.New("at least 2 players are required to start")
	// ErrQuizActive is returned when starting a quiz that is already running.
	ErrQuizActive = errors.New("quiz already active")
	// ErrQuizCompleted is returned when acting on a quiz that already ended.
	ErrQuizCompleted = errors.New("quiz already completed")
	// ErrEmptyAnswer is returned when submit is requested with no selection.
	ErrEmptyAnswer = errors.New("answer must not be empty")
	// ErrBadAnswer indicates the backend rejected the answer encoding.
	ErrBadAnswer = errors.New("malformed answer")
	// ErrTimeExpired is returned when submit is requested after the question
	// timer reached zero.
	ErrTimeExpired = errors.New("time is up for this question")
	// ErrChannelClosed is returned when emitting on a closed event channel.
	ErrChannelClosed = errors.New("event channel closed")
)
