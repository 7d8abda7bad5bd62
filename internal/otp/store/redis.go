package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"credify/internal/otp/models"
)

const keyPrefix = "otp:"

// checkScript mirrors InMemory.Check. The outcome numbers match models.Outcome.
var checkScript = redis.NewScript(`
local rec = redis.call("HMGET", KEYS[1], "digest", "attempts")
if not rec[1] then
  return {0, 0}
end
local attempts = tonumber(rec[2]) or 0
if attempts >= tonumber(ARGV[2]) then
  redis.call("DEL", KEYS[1])
  return {1, attempts}
end
if rec[1] ~= ARGV[1] then
  attempts = redis.call("HINCRBY", KEYS[1], "attempts", 1)
  return {2, attempts}
end
redis.call("DEL", KEYS[1])
return {3, attempts}
`)

// RedisStore keeps pending codes as hashes whose TTL Redis enforces.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(email string) string { return keyPrefix + email }

func (s *RedisStore) Put(ctx context.Context, email, digest string, ttl time.Duration) error {
	k := key(email)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k, "digest", digest, "attempts", 0)
		p.PExpire(ctx, k, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

func (s *RedisStore) Check(ctx context.Context, email, digest string, maxAttempts int) (models.CheckResult, error) {
	res, err := checkScript.Run(ctx, s.client, []string{key(email)}, digest, maxAttempts).Result()
	if err != nil {
		return models.CheckResult{}, fmt.Errorf("check otp: %w", err)
	}
	values, ok := res.([]any)
	if !ok || len(values) != 2 {
		return models.CheckResult{}, errors.New("unexpected otp script response")
	}
	outcome, ok1 := values[0].(int64)
	attempts, ok2 := values[1].(int64)
	if !ok1 || !ok2 || outcome < int64(models.OutcomeExpired) || outcome > int64(models.OutcomeMatch) {
		return models.CheckResult{}, errors.New("invalid otp script response")
	}
	return models.CheckResult{Outcome: models.Outcome(outcome), Attempts: int(attempts)}, nil
}
