package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ledger/pkg/testutil"
)

type InMemoryLimiterSuite struct {
	suite.Suite
	limiter *InMemory
	clock   time.Time
}

func TestInMemoryLimiterSuite(t *testing.T) {
	suite.Run(t, new(InMemoryLimiterSuite))
}

func (s *InMemoryLimiterSuite) SetupTest() {
	s.limiter = NewInMemory()
	s.clock = time.Date(2024, 7, 30, 8, 0, 0, 0, time.UTC)
	s.limiter.now = func() time.Time { return s.clock }
}

func (s *InMemoryLimiterSuite) TestAllowsUpToLimit() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := s.limiter.Allow(ctx, "ip:1", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
	}

	res, err := s.limiter.Allow(ctx, "ip:1", 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)

	other, err := s.limiter.Allow(ctx, "ip:2", 3, time.Minute)
	s.Require().NoError(err)
	s.True(other.Allowed, "keys are independent")
}

func (s *InMemoryLimiterSuite) TestWindowSlides() {
	ctx := context.Background()
	_, err := s.limiter.Allow(ctx, "k", 1, time.Minute)
	s.Require().NoError(err)

	res, err := s.limiter.Allow(ctx, "k", 1, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)

	s.clock = s.clock.Add(61 * time.Second)
	res, err = s.limiter.Allow(ctx, "k", 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *InMemoryLimiterSuite) TestIdleKeysAreEvicted() {
	ctx := context.Background()
	for _, key := range []string{"ip:1", "ip:2", "ip:3"} {
		_, err := s.limiter.Allow(ctx, key, 5, time.Minute)
		s.Require().NoError(err)
	}
	s.Equal(3, s.limiter.Len())

	s.clock = s.clock.Add(30 * time.Second)
	_, err := s.limiter.Allow(ctx, "ip:1", 5, time.Minute)
	s.Require().NoError(err)
	s.Equal(3, s.limiter.Len(), "keys inside their window stay")

	s.clock = s.clock.Add(45 * time.Second)
	_, err = s.limiter.Allow(ctx, "ip:4", 5, time.Minute)
	s.Require().NoError(err)
	s.Equal(2, s.limiter.Len(), "ip:2 and ip:3 went idle")

	res, err := s.limiter.Allow(ctx, "ip:2", 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed, "an evicted key starts a fresh window")
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis down")
}

func TestMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("rejects over the limit by actor", func(t *testing.T) {
		h := NewMiddleware(NewInMemory(), logger, 1, time.Minute).Limit(ok)
		req := httptest.NewRequest(http.MethodPost, "/attendance", nil)
		req = testutil.AsActor(req, "coordinator-7")

		first := httptest.NewRecorder()
		h.ServeHTTP(first, req)
		require.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

		second := httptest.NewRecorder()
		h.ServeHTTP(second, req)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.NotEmpty(t, second.Header().Get("Retry-After"))
	})

	t.Run("fails open when the limiter errors", func(t *testing.T) {
		h := NewMiddleware(failingLimiter{}, logger, 1, time.Minute).Limit(ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/attendance", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("disabled passes through", func(t *testing.T) {
		h := NewMiddleware(failingLimiter{}, logger, 0, time.Minute, WithDisabled(true)).Limit(ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/attendance", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
