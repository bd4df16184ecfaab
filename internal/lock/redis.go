package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const lockPrefix = "docqa:lock:"

// Redis is a cross-process lock using SETNX with a TTL. The owner ID keeps
// one instance from releasing a lock another instance holds.
type Redis struct {
	client        *redis.Client
	key           string
	ownerID       string
	ttl           time.Duration
	retryInterval time.Duration
}

func NewRedis(client *redis.Client, name string, ttl, retryInterval time.Duration) *Redis {
	return &Redis{
		client:        client,
		key:           lockPrefix + name,
		ownerID:       generateOwnerID(),
		ttl:           ttl,
		retryInterval: retryInterval,
	}
}

// generateOwnerID returns hostname:pid:random.
func generateOwnerID() string {
	hostname, _ := os.Hostname()
	randomBytes := make([]byte, 8)
	_, _ = rand.Read(randomBytes)
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(randomBytes))
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Lock polls until the key is acquired or ctx is done.
func (l *Redis) Lock(ctx context.Context) (Unlock, error) {
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		acquired, err := l.client.SetNX(ctx, l.key, l.ownerID, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", l.key, err)
		}
		if acquired {
			return l.release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Redis) release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.ownerID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Error().Err(err).Str("key", l.key).Msg("Failed to release lock")
	}
}

func (l *Redis) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
