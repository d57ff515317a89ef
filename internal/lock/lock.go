package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chronicle-server/internal/models"
)

// TurnLocker serializes turn resolution per scene. Acquire returns a release
// function on success and models.ErrTurnInProgress when another turn holds
// the scene.
type TurnLocker interface {
	Acquire(ctx context.Context, sceneID string) (func(), error)
}

const lockKeyPrefix = "turn_lock:"

// RedisLocker implements TurnLocker with a SET NX key per scene. The TTL
// bounds how long a crashed resolver can wedge a scene.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger.Named("turn_lock")}
}

func (l *RedisLocker) Acquire(ctx context.Context, sceneID string) (func(), error) {
	key := lockKeyPrefix + sceneID
	ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring turn lock for scene %s: %w", sceneID, err)
	}
	if !ok {
		return nil, models.ErrTurnInProgress
	}
	release := func() {
		if err := l.client.Del(context.Background(), key).Err(); err != nil {
			l.logger.Warn("failed to release turn lock, TTL will expire it",
				zap.String("scene_id", sceneID), zap.Error(err))
		}
	}
	return release, nil
}

// MemoryLocker is an in-process TurnLocker for tests and single-node runs
// without Redis.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(_ context.Context, sceneID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[sceneID]; busy {
		return nil, models.ErrTurnInProgress
	}
	l.held[sceneID] = struct{}{}
	release := func() {
		l.mu.Lock()
		delete(l.held, sceneID)
		l.mu.Unlock()
	}
	return release, nil
}
