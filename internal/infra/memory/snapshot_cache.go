package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizboard-client/internal/app"
	"quizboard-client/internal/domain"
)

// SnapshotCache fronts the remote call layer's FetchQuiz with a TTL cache so
// rapid re-entry into a room (retry after a load error, fast back-and-forth
// navigation) does not stampede the backend. All other calls pass through.
type SnapshotCache struct {
	app.QuizAPI

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSnapshot
}

type cachedSnapshot struct {
	snap      domain.Snapshot
	expiresAt time.Time
}

func NewSnapshotCache(api app.QuizAPI, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		QuizAPI: api,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedSnapshot),
	}
}

func (c *SnapshotCache) FetchQuiz(ctx context.Context, code string) (domain.Snapshot, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[code]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.snap, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(code, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[code]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.snap, nil
		}
		c.mu.RUnlock()

		snap, err := c.QuizAPI.FetchQuiz(ctx, code)
		if err != nil {
			return domain.Snapshot{}, err
		}

		c.mu.Lock()
		c.cache[code] = cachedSnapshot{
			snap:      snap,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return result.(domain.Snapshot), nil
}

// Invalidate drops a cached snapshot, used once a quiz starts or ends so the
// next entry refetches live status.
func (c *SnapshotCache) Invalidate(code string) {
	c.mu.Lock()
	delete(c.cache, code)
	c.mu.Unlock()
}

func (c *SnapshotCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
