package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizboard-client/internal/domain"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionStore(client, time.Minute), mr
}

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	id := domain.Identity{UserID: "u1", Username: "Alice", Token: "tok"}
	if err := store.Save(ctx, id); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quizboard:session:identity") {
		t.Fatalf("expected identity key to be set")
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != id {
		t.Fatalf("expected %+v, got %+v", id, loaded)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn after clear, got %v", err)
	}
}

func TestSessionStoreScoreKeysExpire(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	if err := store.SaveFinalScore(ctx, "ABCD", 9); err != nil {
		t.Fatalf("save score: %v", err)
	}
	score, ok, err := store.FinalScore(ctx, "ABCD")
	if err != nil || !ok || score != 9 {
		t.Fatalf("expected (9, true), got (%d, %v, %v)", score, ok, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := store.FinalScore(ctx, "ABCD"); ok {
		t.Fatalf("expected score key to expire")
	}
}
