package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type InMemoryBucketStoreSuite struct {
	suite.Suite
	store *InMemoryBucketStore
	now   time.Time
	ctx   context.Context
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = New().WithClock(func() time.Time { return s.now })
	s.ctx = context.Background()
}

func (s *InMemoryBucketStoreSuite) TestAllow() {
	s.Run("allows up to the limit then rejects", func() {
		for i := range 3 {
			res, err := s.store.Allow(s.ctx, "ip:a", 3, time.Minute)
			s.Require().NoError(err)
			s.True(res.Allowed)
			s.Equal(2-i, res.Remaining)
		}

		res, err := s.store.Allow(s.ctx, "ip:a", 3, time.Minute)
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Equal(60, res.RetryAfter)
		s.Equal(s.now.Add(time.Minute), res.ResetAt)
	})

	s.Run("keys are independent", func() {
		res, err := s.store.Allow(s.ctx, "ip:b", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
	})

	s.Run("window slides", func() {
		s.now = s.now.Add(61 * time.Second)
		res, err := s.store.Allow(s.ctx, "ip:a", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2, res.Remaining)
	})
}

func (s *InMemoryBucketStoreSuite) TestReset() {
	_, _ = s.store.Allow(s.ctx, "ip:c", 1, time.Minute)
	res, _ := s.store.Allow(s.ctx, "ip:c", 1, time.Minute)
	s.False(res.Allowed)

	s.Require().NoError(s.store.Reset(s.ctx, "ip:c"))

	res, err := s.store.Allow(s.ctx, "ip:c", 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}
