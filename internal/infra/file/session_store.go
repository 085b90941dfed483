// Package file persists the session to a JSON file under the user's config
// directory, the terminal analog of browser localStorage: the identity and
// per-room final scores survive client restarts.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"quizboard-client/internal/auth"
	"quizboard-client/internal/domain"
)

type state struct {
	Identity    domain.Identity `json:"identity"`
	FinalScores map[string]int  `json:"finalScores"`
}

// SessionStore is a file-backed implementation of app.SessionStore.
type SessionStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path, now: time.Now}
}

// DefaultPath resolves the per-user session file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "quizboard", "session.json"), nil
}

func (s *SessionStore) Load(_ context.Context) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return domain.Identity{}, err
	}
	if st.Identity.Token == "" {
		return domain.Identity{}, domain.ErrNotLoggedIn
	}
	if auth.Expired(st.Identity.Token, s.now()) {
		return domain.Identity{}, domain.ErrNotLoggedIn
	}
	return st.Identity, nil
}

func (s *SessionStore) Save(_ context.Context, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil && !errors.Is(err, domain.ErrNotLoggedIn) {
		return err
	}
	st.Identity = id
	return s.write(st)
}

func (s *SessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil && !errors.Is(err, domain.ErrNotLoggedIn) {
		return err
	}
	st.Identity = domain.Identity{}
	return s.write(st)
}

func (s *SessionStore) SaveFinalScore(_ context.Context, code string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil && !errors.Is(err, domain.ErrNotLoggedIn) {
		return err
	}
	if st.FinalScores == nil {
		st.FinalScores = make(map[string]int)
	}
	st.FinalScores[code] = score
	return s.write(st)
}

func (s *SessionStore) FinalScore(_ context.Context, code string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil && !errors.Is(err, domain.ErrNotLoggedIn) {
		return 0, false, err
	}
	score, ok := st.FinalScores[code]
	return score, ok, nil
}

func (s *SessionStore) read() (state, error) {
	st := state{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, domain.ErrNotLoggedIn
		}
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		// Corrupt session files behave like a logged-out state.
		return state{}, domain.ErrNotLoggedIn
	}
	return st, nil
}

func (s *SessionStore) write(st state) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
