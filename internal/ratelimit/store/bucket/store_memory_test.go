package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credify/internal/ratelimit/models"
)

type InMemorySuite struct {
	suite.Suite
	now   time.Time
	store *InMemory
	limit models.Limit
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.store = New(WithClock(func() time.Time { return s.now }))
	s.limit = models.Limit{Requests: 2, Window: time.Minute}
}

func (s *InMemorySuite) allow(key string) *models.Result {
	res, err := s.store.Allow(context.Background(), key, s.limit)
	s.Require().NoError(err)
	return res
}

func (s *InMemorySuite) TestLimitWithinWindow() {
	first := s.allow("k")
	s.True(first.Allowed)
	s.Equal(1, first.Remaining)
	s.Equal(s.now.Add(time.Minute), first.ResetAt)

	s.now = s.now.Add(10 * time.Second)
	s.True(s.allow("k").Allowed)

	denied := s.allow("k")
	s.False(denied.Allowed)
	s.Equal(0, denied.Remaining)
	s.Equal(50, denied.RetryAfter)
}

func (s *InMemorySuite) TestWindowSlides() {
	s.allow("k")
	s.now = s.now.Add(30 * time.Second)
	s.allow("k")
	s.False(s.allow("k").Allowed)

	// The first request leaves the window; the second still counts.
	s.now = s.now.Add(31 * time.Second)
	res := s.allow("k")
	s.True(res.Allowed)
	s.Equal(0, res.Remaining)
}

func (s *InMemorySuite) TestKeysAreIndependent() {
	s.allow("a")
	s.allow("a")
	s.False(s.allow("a").Allowed)
	s.True(s.allow("b").Allowed)
}

func (s *InMemorySuite) TestReset() {
	s.allow("k")
	s.allow("k")
	s.Require().NoError(s.store.Reset(context.Background(), "k"))
	s.True(s.allow("k").Allowed)
}
