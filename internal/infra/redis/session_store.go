// Package redis backs the session store with Redis, for setups where several
// client processes share one identity (kiosk terminals, bot fleets). Keys
// carry a TTL so abandoned sessions expire on their own.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"quizboard-client/internal/domain"
)

type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Load(ctx context.Context) (domain.Identity, error) {
	data, err := s.client.Get(ctx, identityKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Identity{}, domain.ErrNotLoggedIn
		}
		return domain.Identity{}, err
	}
	var id domain.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return domain.Identity{}, domain.ErrNotLoggedIn
	}
	if id.Token == "" {
		return domain.Identity{}, domain.ErrNotLoggedIn
	}
	return id, nil
}

func (s *SessionStore) Save(ctx context.Context, id domain.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, identityKey, data, s.ttl).Err()
}

func (s *SessionStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, identityKey).Err()
}

func (s *SessionStore) SaveFinalScore(ctx context.Context, code string, score int) error {
	return s.client.Set(ctx, scoreKey(code), score, s.ttl).Err()
}

func (s *SessionStore) FinalScore(ctx context.Context, code string) (int, bool, error) {
	raw, err := s.client.Get(ctx, scoreKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	score, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

const identityKey = "quizboard:session:identity"

func scoreKey(code string) string {
	return "quizboard:session:score:" + code
}
