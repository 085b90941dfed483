// Package http implements the remote call layer: a thin REST client over the
// Quiz Board backend with a uniform error surface. Backend failure statuses
// are translated into the domain sentinel errors so callers can branch with
// errors.Is instead of inspecting transport details.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"quizboard-client/internal/domain"
)

// TokenSource supplies the bearer token attached to each request, typically
// backed by the session store.
type TokenSource func(ctx context.Context) string

type Client struct {
	base  string
	http  *http.Client
	token TokenSource
	log   zerolog.Logger
}

func NewClient(base string, timeout time.Duration, token TokenSource, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:  base,
		http:  &http.Client{Timeout: timeout},
		token: token,
		log:   log,
	}
}

// Login authenticates and returns the identity echoed by the backend. The
// user id may be absent from the response body; callers recover it from the
// token claims.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Identity, error) {
	body := map[string]string{"email": email, "password": password}
	var out struct {
		Token    string `json:"token"`
		Username string `json:"username"`
		UserID   string `json:"userId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		var ae *apiError
		if errors.As(err, &ae) && (ae.Status == http.StatusUnauthorized || ae.Status == http.StatusBadRequest) {
			return domain.Identity{}, domain.ErrBadCredentials
		}
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: out.UserID, Username: out.Username, Token: out.Token}, nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, username, email, password string) error {
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, nil); err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusConflict {
			return domain.ErrUserExists
		}
		return err
	}
	return nil
}

// CreateQuiz uploads a locally authored draft and returns the room code.
func (c *Client) CreateQuiz(ctx context.Context, draft domain.QuizDraft) (string, error) {
	var out struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/quiz/create", draft, &out); err != nil {
		return "", err
	}
	return out.Code, nil
}

// JoinQuiz registers the user as a participant before entering the room.
func (c *Client) JoinQuiz(ctx context.Context, code, userID string) error {
	body := map[string]string{"code": code, "userId": userID}
	if err := c.do(ctx, http.MethodPost, "/api/quiz/join", body, nil); err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
			return domain.ErrQuizNotFound
		}
		return err
	}
	return nil
}

// FetchQuiz retrieves the room snapshot.
func (c *Client) FetchQuiz(ctx context.Context, code string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/quiz/"+code, nil, &snap); err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
			return domain.Snapshot{}, domain.ErrQuizNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("%w: %v", domain.ErrLoadFailed, err)
	}
	if snap.Code == "" {
		snap.Code = code
	}
	return snap, nil
}

// StartQuiz begins the quiz; owner-only server-side.
func (c *Client) StartQuiz(ctx context.Context, code, creatorName string) ([]domain.Question, error) {
	body := map[string]string{"code": code, "creatorName": creatorName}
	var out struct {
		Success   bool              `json:"success"`
		Questions []domain.Question `json:"questions"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/quiz/start", body, &out); err != nil {
		var ae *apiError
		if errors.As(err, &ae) {
			switch ae.Status {
			case http.StatusForbidden:
				return nil, domain.ErrNotOwner
			case http.StatusBadRequest:
				return nil, domain.ErrQuizActive
			}
		}
		return nil, err
	}
	return out.Questions, nil
}

// SubmitAnswer sends the canonical encoded answer for one question.
func (c *Client) SubmitAnswer(ctx context.Context, code, userID string, questionIndex int, answer string) (domain.AnswerResult, error) {
	body := map[string]any{
		"code":          code,
		"userId":        userID,
		"questionIndex": questionIndex,
		"answer":        answer,
	}
	var out struct {
		Success bool `json:"success"`
		domain.AnswerResult
	}
	if err := c.do(ctx, http.MethodPost, "/api/quiz/submit-answer", body, &out); err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusBadRequest {
			return domain.AnswerResult{}, fmt.Errorf("%w: %s", domain.ErrBadAnswer, ae.Message)
		}
		return domain.AnswerResult{}, err
	}
	return out.AnswerResult, nil
}

// EndQuiz finishes the quiz; owner-only server-side. Returns final scores
// keyed by user id for the end-quiz broadcast.
func (c *Client) EndQuiz(ctx context.Context, code, createdBy string) (map[string]int, error) {
	body := map[string]string{"code": code, "createdBy": createdBy}
	var out struct {
		Success     bool           `json:"success"`
		FinalScores map[string]int `json:"finalScores"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/quiz/"+code+"/end", body, &out); err != nil {
		var ae *apiError
		if errors.As(err, &ae) {
			switch ae.Status {
			case http.StatusForbidden:
				return nil, domain.ErrNotOwner
			case http.StatusBadRequest:
				return nil, domain.ErrQuizCompleted
			case http.StatusNotFound:
				return nil, domain.ErrQuizNotFound
			}
		}
		return nil, err
	}
	return out.FinalScores, nil
}

// Leaderboard fetches the server-ranked standings. Backend errors are
// surfaced verbatim.
func (c *Client) Leaderboard(ctx context.Context, code string) (domain.Leaderboard, error) {
	var out struct {
		Success bool `json:"success"`
		domain.Leaderboard
	}
	if err := c.do(ctx, http.MethodGet, "/api/quiz/leaderboard/"+code, nil, &out); err != nil {
		return domain.Leaderboard{}, err
	}
	lb := out.Leaderboard
	lb.Code = code
	return lb, nil
}

// apiError preserves the backend's status and message for per-call mapping.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := c.token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		msg := errBody.Error
		if msg == "" {
			msg = errBody.Message
		}
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Str("error", msg).Msg("api call failed")
		return &apiError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
