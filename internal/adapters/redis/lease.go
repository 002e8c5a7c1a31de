package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultLeaseKey is the key every settlement instance competes for
const DefaultLeaseKey = "settlement:leader"

// acquireScript extends the lease when we hold it, otherwise tries to take it
var acquireScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
	return 1
end
return 0
`)

// releaseScript deletes the lease only when we still hold it
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// LeaseLock is a single-holder lease in Redis. It implements outbound.LeaderLock.
type LeaseLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
	held   bool
	logger zerolog.Logger
}

type LeaseLockParams struct {
	RedisClient *redis.Client
	Key         string
	TTL         time.Duration
	Logger      zerolog.Logger
}

// NewLeaseLock creates a lease lock with a fresh holder token
func NewLeaseLock(params LeaseLockParams) *LeaseLock {
	key := params.Key
	if key == "" {
		key = DefaultLeaseKey
	}
	token := uuid.NewString()
	return &LeaseLock{
		client: params.RedisClient,
		key:    key,
		token:  token,
		ttl:    params.TTL,
		logger: params.Logger.With().Str("component", "lease_lock").Str("holder", token).Logger(),
	}
}

// Acquire takes or refreshes the lease
func (l *LeaseLock) Acquire(ctx context.Context) (bool, error) {
	res, err := acquireScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", l.key, err)
	}

	acquired := res == 1
	if acquired != l.held {
		if acquired {
			l.logger.Info().Msg("Became settlement leader")
		} else {
			l.logger.Warn().Msg("Lost settlement leadership")
		}
	}
	l.held = acquired
	return acquired, nil
}

// Release gives the lease up so another instance can take over immediately
func (l *LeaseLock) Release(ctx context.Context) error {
	if _, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int(); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.key, err)
	}
	if l.held {
		l.logger.Info().Msg("Released settlement leadership")
	}
	l.held = false
	return nil
}
