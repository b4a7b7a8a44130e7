//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ledger/internal/platform/ratelimit"
	"ledger/pkg/testutil/containers"
)

type RedisLimiterSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	limiter *ratelimit.Redis
}

func TestRedisLimiterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLimiterSuite))
}

func (s *RedisLimiterSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.limiter = ratelimit.NewRedis(s.redis.Client)
}

func (s *RedisLimiterSuite) SetupTest() {
	s.Require().NoError(s.redis.DeleteKeys(context.Background(), "ledger:ratelimit:*"))
}

func (s *RedisLimiterSuite) TestCountsAcrossCalls() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		res, err := s.limiter.Allow(ctx, "actor:coordinator-7", 5, time.Hour)
		s.Require().NoError(err)
		s.True(res.Allowed)
	}

	res, err := s.limiter.Allow(ctx, "actor:coordinator-7", 5, time.Hour)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(0, res.Remaining)
}

func (s *RedisLimiterSuite) TestSetsExpiry() {
	ctx := context.Background()
	_, err := s.limiter.Allow(ctx, "ip:192.0.2.1", 5, time.Minute)
	s.Require().NoError(err)

	keys, err := s.redis.Client.Keys(ctx, "ledger:ratelimit:ip:192.0.2.1:*").Result()
	s.Require().NoError(err)
	s.Require().Len(keys, 1)

	ttl, err := s.redis.Client.TTL(ctx, keys[0]).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}
