//go:build integration

package store_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/account/models"
	"warden/internal/account/store"
	"warden/pkg/platform/sentinel"
	"warden/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	identity models.Identity
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
	s.identity = models.Identity{
		UUID:    "069a79f4-44e9-4726-a5be-fca90e38aaf5",
		USID:    "e5b8a0c4",
		Address: netip.MustParseAddr("203.0.113.7"),
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "sessions"))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) TestUpsert() {
	ctx := context.Background()

	first, err := s.store.RefreshOrCreate(ctx, s.identity, s.now, time.Hour)
	s.Require().NoError(err)
	s.True(s.now.Equal(first.CreatedAt))

	second, err := s.store.RefreshOrCreate(ctx, s.identity, s.now.Add(10*time.Minute), time.Hour)
	s.Require().NoError(err)
	s.True(s.now.Equal(second.CreatedAt), "live session keeps its creation time")

	third, err := s.store.RefreshOrCreate(ctx, s.identity, s.now.Add(3*time.Hour), time.Hour)
	s.Require().NoError(err)
	s.True(s.now.Add(3*time.Hour).Equal(third.CreatedAt), "expired session starts over")
}

func (s *PostgresStoreSuite) TestFind() {
	ctx := context.Background()
	_, err := s.store.RefreshOrCreate(ctx, s.identity, s.now, time.Hour)
	s.Require().NoError(err)

	found, err := s.store.Find(ctx, s.identity.Key(), s.now)
	s.Require().NoError(err)
	s.Equal(s.identity.Address, found.Address)
	s.Equal(s.identity.UUID, found.UUID)

	_, err = s.store.Find(ctx, s.identity.Key(), s.now.Add(time.Hour))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
