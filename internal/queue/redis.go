package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edvin/tenantctl/internal/config"
	"github.com/edvin/tenantctl/internal/platform"
)

const (
	readyKey      = "jobs:ready"
	processingKey = "jobs:processing"
	lockPrefix    = "jobs:tenant-lock:"
)

// lockPollInterval is how often a waiting worker re-attempts a held
// per-tenant lock.
const lockPollInterval = 250 * time.Millisecond

// RedisQueue is the durable job queue. Job ids wait on a ready list; a
// claim atomically moves an id to the processing list, so no two workers
// ever claim the same job.
type RedisQueue struct {
	client *redis.Client
}

// New builds a queue client from config.
func New(cfg *config.Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &RedisQueue{client: client}
}

// NewWithClient wraps an existing client. Used by tests with miniredis.
func NewWithClient(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Ping reports whether the queue backend is reachable.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue pushes a job id onto the ready list.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.client.RPush(ctx, readyKey, jobID).Err(); err != nil {
		return fmt.Errorf("push job %s: %w", jobID, err)
	}
	return nil
}

// Claim atomically moves the oldest ready job id into the processing list.
// Returns "" when the queue is empty.
func (q *RedisQueue) Claim(ctx context.Context) (string, error) {
	jobID, err := q.client.LMove(ctx, readyKey, processingKey, "LEFT", "RIGHT").Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("claim job: %w", err)
	}
	return jobID, nil
}

// Ack removes a job id from the processing list once its terminal state is
// recorded.
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	if err := q.client.LRem(ctx, processingKey, 1, jobID).Err(); err != nil {
		return fmt.Errorf("ack job %s: %w", jobID, err)
	}
	return nil
}

// Depth returns the number of jobs waiting on the ready list.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, readyKey).Result()
}

// releaseScript deletes the lock only if still held by the given token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// TryLockTenant attempts to take the per-tenant execution lock without
// waiting. On success the returned release function must be called when
// the job ends.
func (q *RedisQueue) TryLockTenant(ctx context.Context, tenantName string) (release func(), ok bool, err error) {
	key := lockPrefix + tenantName
	token := platform.NewID()

	acquired, err := q.client.SetNX(ctx, key, token, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock for %s: %w", tenantName, err)
	}
	if !acquired {
		return nil, false, nil
	}

	release = func() {
		// Compare-and-delete so a release never drops a lock some other
		// holder re-acquired.
		_ = releaseScript.Run(context.Background(), q.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// LockTenant blocks until the per-tenant execution lock is acquired or the
// context is done. Jobs touching the same tenant's data serialize here.
func (q *RedisQueue) LockTenant(ctx context.Context, tenantName string) (release func(), err error) {
	for {
		release, ok, err := q.TryLockTenant(ctx, tenantName)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for tenant lock %s: %w", tenantName, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}
