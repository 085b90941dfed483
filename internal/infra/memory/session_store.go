package memory

import (
	"context"
	"sync"

	"quizboard-client/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. Nothing
// survives the process; it backs tests and --session=memory runs.
type SessionStore struct {
	mu       sync.RWMutex
	identity domain.Identity
	loggedIn bool
	scores   map[string]int
}

func NewSessionStore() *SessionStore {
	return &SessionStore{scores: make(map[string]int)}
}

func (s *SessionStore) Load(_ context.Context) (domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loggedIn {
		return domain.Identity{}, domain.ErrNotLoggedIn
	}
	return s.identity, nil
}

func (s *SessionStore) Save(_ context.Context, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
	s.loggedIn = true
	return nil
}

func (s *SessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = domain.Identity{}
	s.loggedIn = false
	return nil
}

func (s *SessionStore) SaveFinalScore(_ context.Context, code string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[code] = score
	return nil
}

func (s *SessionStore) FinalScore(_ context.Context, code string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.scores[code]
	return score, ok, nil
}
