package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quizboard-client/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	token := func(context.Context) string { return "tok-123" }
	return NewClient(server.URL, time.Second, token, zerolog.Nop()), server
}

func TestFetchQuizMapsNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Quiz not found"})
	}))

	_, err := client.FetchQuiz(context.Background(), "NOPE")
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestFetchQuizAttachesBearerToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(domain.Snapshot{
			Title:     "Capitals",
			CreatedBy: "u1",
			Status:    domain.StatusLobby,
		})
	}))

	snap, err := client.FetchQuiz(context.Background(), "ABCD")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	if snap.Code != "ABCD" {
		t.Fatalf("expected code backfilled, got %q", snap.Code)
	}
}

func TestStartQuizMapsPermissionErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, domain.ErrNotOwner},
		{http.StatusBadRequest, domain.ErrQuizActive},
	}
	for _, tc := range tests {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
		}))
		_, err := client.StartQuiz(context.Background(), "ABCD", "Alice")
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestSubmitAnswerDecodesResult(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["answer"] != "A,B" {
			t.Fatalf("expected canonical answer, got %v", body["answer"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success":      true,
			"correct":      true,
			"points":       2,
			"currentScore": 5,
		})
	}))

	res, err := client.SubmitAnswer(context.Background(), "ABCD", "u1", 1, "A,B")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Correct || res.CurrentScore != 5 || res.Points != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestEndQuizMapsStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, domain.ErrNotOwner},
		{http.StatusBadRequest, domain.ErrQuizCompleted},
		{http.StatusNotFound, domain.ErrQuizNotFound},
	}
	for _, tc := range tests {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, err := client.EndQuiz(context.Background(), "ABCD", "u1")
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestLoginMapsBadCredentials(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
	}))

	_, err := client.Login(context.Background(), "a@b.c", "pw")
	if !errors.Is(err, domain.ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
}

func TestLeaderboardDecodesRankedList(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success":    true,
			"quizTitle":  "Capitals",
			"quizStatus": "completed",
			"leaderboard": []map[string]any{
				{"rank": 1, "userId": "u2", "username": "Bob", "score": 3, "percentage": 100},
				{"rank": 2, "userId": "u1", "username": "Alice", "score": 1, "percentage": 33.3},
			},
		})
	}))

	lb, err := client.Leaderboard(context.Background(), "ABCD")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if lb.Title != "Capitals" || len(lb.Entries) != 2 {
		t.Fatalf("unexpected leaderboard: %+v", lb)
	}
	if lb.Entries[0].Rank != 1 || lb.Entries[0].Username != "Bob" {
		t.Fatalf("unexpected first entry: %+v", lb.Entries[0])
	}
}
