package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "concierge:session:"
	lockPrefix    = "concierge:lock:"
	lockRetry     = 25 * time.Millisecond
)

// releaseScript deletes the lock only if we still own it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore implements Store interface using Redis
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration // Session TTL, zero disables expiry
	lockTTL time.Duration // how long a lock survives a crashed holder
	lockMax time.Duration // how long Update waits for the lock
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(redisURL string, ttl, lockTimeout time.Duration) (*RedisStore, error) {
	// Parse Redis URL
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreFromClient(client, ttl, lockTimeout), nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, ttl, lockTimeout time.Duration) *RedisStore {
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Second
	}
	return &RedisStore{
		client:  client,
		ttl:     ttl,
		lockTTL: lockTimeout,
		lockMax: lockTimeout,
	}
}

func sessionKey(identity string) string { return sessionPrefix + identity }
func lockKey(identity string) string    { return lockPrefix + identity }

// load reads a session; a nil session with nil error means it does not exist
func (r *RedisStore) load(ctx context.Context, identity string) (*models.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session from Redis: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session data: %w", err)
	}
	return &sess, nil
}

func (r *RedisStore) save(ctx context.Context, identity string, sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(identity), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session to Redis: %w", err)
	}
	return nil
}

// GetOrCreate loads the session, creating it with SETNX so two first
// contacts racing each other end up with the same session.
func (r *RedisStore) GetOrCreate(ctx context.Context, identity string, create CreateFunc) (*models.Session, error) {
	sess, err := r.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}

	fresh := create()
	data, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	created, err := r.client.SetNX(ctx, sessionKey(identity), data, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if created {
		return fresh, nil
	}

	// lost the race, read the winner
	sess, err = r.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return fresh, nil
	}
	return sess, nil
}

// Update holds a per-identity lock for the whole read-modify-write
func (r *RedisStore) Update(ctx context.Context, identity string, create CreateFunc, fn UpdateFunc) (*models.Session, error) {
	token, err := r.acquire(ctx, identity)
	if err != nil {
		return nil, err
	}
	defer r.release(identity, token)

	sess, err := r.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = create()
	}

	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.LastActivity = time.Now()

	if err := r.save(ctx, identity, sess); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

func (r *RedisStore) acquire(ctx context.Context, identity string) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(r.lockMax)

	for {
		ok, err := r.client.SetNX(ctx, lockKey(identity), token, r.lockTTL).Result()
		if err != nil {
			return "", fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetry):
		}
	}
}

func (r *RedisStore) release(identity, token string) {
	// release even if the request context is already cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, r.client, []string{lockKey(identity)}, token).Err()
}

// Delete removes a session from Redis
func (r *RedisStore) Delete(ctx context.Context, identity string) error {
	if err := r.client.Del(ctx, sessionKey(identity)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Count scans the session keyspace
func (r *RedisStore) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, sessionPrefix+"*", 500).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to count sessions: %w", err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Health check - verify Redis connection is alive
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
