//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credify/internal/otp/models"
	"credify/internal/otp/store"
	"credify/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
	ctx   context.Context
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.Require().NoError(s.store.Put(s.ctx, "ada@x.edu", "good", 5*time.Minute))
}

func (s *RedisStoreSuite) TestTTLIsSetByRedis() {
	ttl, err := s.redis.TTL(s.ctx, "otp:ada@x.edu")
	s.Require().NoError(err)
	s.Greater(ttl, 4*time.Minute)
	s.LessOrEqual(ttl, 5*time.Minute)
}

func (s *RedisStoreSuite) TestMismatchKeepsTTL() {
	res, err := s.store.Check(s.ctx, "ada@x.edu", "bad", 3)
	s.Require().NoError(err)
	s.Equal(models.OutcomeMismatch, res.Outcome)
	s.Equal(1, res.Attempts)

	ttl, err := s.redis.TTL(s.ctx, "otp:ada@x.edu")
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisStoreSuite) TestLockoutThenGone() {
	for range 3 {
		res, err := s.store.Check(s.ctx, "ada@x.edu", "bad", 3)
		s.Require().NoError(err)
		s.Equal(models.OutcomeMismatch, res.Outcome)
	}
	res, err := s.store.Check(s.ctx, "ada@x.edu", "good", 3)
	s.Require().NoError(err)
	s.Equal(models.OutcomeLocked, res.Outcome)

	res, err = s.store.Check(s.ctx, "ada@x.edu", "good", 3)
	s.Require().NoError(err)
	s.Equal(models.OutcomeExpired, res.Outcome)
}

func (s *RedisStoreSuite) TestMatchIsSingleUse() {
	res, err := s.store.Check(s.ctx, "ada@x.edu", "good", 3)
	s.Require().NoError(err)
	s.Equal(models.OutcomeMatch, res.Outcome)

	res, err = s.store.Check(s.ctx, "ada@x.edu", "good", 3)
	s.Require().NoError(err)
	s.Equal(models.OutcomeExpired, res.Outcome)
}

func (s *RedisStoreSuite) TestExpiredKey() {
	s.Require().NoError(s.store.Put(s.ctx, "bob@x.edu", "good", 50*time.Millisecond))
	time.Sleep(150 * time.Millisecond)

	res, err := s.store.Check(s.ctx, "bob@x.edu", "good", 3)
	s.Require().NoError(err)
	s.Equal(models.OutcomeExpired, res.Outcome)
}
