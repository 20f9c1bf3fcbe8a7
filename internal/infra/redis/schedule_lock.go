package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const defaultLockTTL = 2 * time.Minute

// ErrLockHeld is returned when another schedule run holds the campaign lease.
var ErrLockHeld = fmt.Errorf("%w: campaign schedule already in progress", domain.ErrConflict)

// The lease is deleted only by the holder of the matching token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// ScheduleLock is a per-campaign lease that keeps two schedule runs for the
// same campaign from publishing concurrently.
type ScheduleLock struct {
	client   *goredis.Client
	ttl      time.Duration
	newToken func() string
	script   *goredis.Script
}

func NewScheduleLock(client *goredis.Client, ttl time.Duration) (*ScheduleLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	return &ScheduleLock{
		client:   client,
		ttl:      ttl,
		newToken: uuid.NewString,
		script:   releaseScript,
	}, nil
}

// Acquire takes the lease for campaignID and returns its release function.
// The lease expires on its own after the configured TTL.
func (l *ScheduleLock) Acquire(ctx context.Context, campaignID string) (func(context.Context) error, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("schedule lock is not initialized")
	}

	id := strings.TrimSpace(campaignID)
	if id == "" {
		return nil, fmt.Errorf("campaign id is required")
	}

	key := lockKey(id)
	token := l.newToken()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire schedule lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func(ctx context.Context) error {
		if err := l.script.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release schedule lock: %w", err)
		}
		return nil
	}

	return release, nil
}

func lockKey(campaignID string) string {
	return fmt.Sprintf("campaign:schedule:%s", campaignID)
}
