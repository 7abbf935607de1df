//go:build integration

package store_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"warden/internal/punishment/models"
	"warden/internal/punishment/store"
	"warden/pkg/platform/sentinel"
	"warden/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
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
	s.store = store.NewPostgres(s.postgres.Pool)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "punishments"))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) insert(addr string, duration *time.Duration, age time.Duration) *models.Punishment {
	p := &models.Punishment{
		ID:        uuid.New(),
		Target:    models.Target{Address: netip.MustParseAddr(addr), UUID: "069a79f4-44e9-4726-a5be-fca90e38aaf5"},
		Reason:    "griefing",
		Type:      models.TypeBan,
		Duration:  duration,
		CreatedAt: s.now.Add(-age),
	}
	s.Require().NoError(s.store.Create(context.Background(), p))
	return p
}

func hours(n int) *time.Duration {
	d := time.Duration(n) * time.Hour
	return &d
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	created := s.insert("203.0.113.7", hours(3), 0)

	got, err := s.store.FindByID(ctx, created.ID)

	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)
	s.Equal(created.Target, got.Target)
	s.Equal(3*time.Hour, *got.Duration)
	s.True(created.CreatedAt.Equal(got.CreatedAt))
	s.Nil(got.Pardon)
}

func (s *PostgresStoreSuite) TestFindActiveByTargetAddress() {
	ctx := context.Background()
	permanent := s.insert("203.0.113.7", nil, 4*time.Hour)
	active := s.insert("203.0.113.7", hours(3), time.Hour)
	s.insert("203.0.113.7", hours(1), 2*time.Hour)
	s.insert("203.0.113.8", nil, 0)
	pardoned := s.insert("203.0.113.7", nil, 0)
	s.Require().NoError(s.store.Pardon(ctx, pardoned.ID, models.Pardon{Timestamp: s.now, Reason: "appeal"}))

	found, err := s.store.FindActiveByTargetAddress(ctx, netip.MustParseAddr("203.0.113.7"), s.now)

	s.Require().NoError(err)
	s.Require().Len(found, 2)
	s.Equal(permanent.ID, found[0].ID)
	s.Equal(active.ID, found[1].ID)
}

func (s *PostgresStoreSuite) TestIPv6Target() {
	ctx := context.Background()
	p := s.insert("2001:db8::42", nil, 0)

	found, err := s.store.FindActiveByTargetAddress(ctx, netip.MustParseAddr("2001:db8::42"), s.now)

	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(p.ID, found[0].ID)
}

func (s *PostgresStoreSuite) TestPardonStates() {
	ctx := context.Background()
	p := s.insert("203.0.113.7", nil, 0)

	s.Require().NoError(s.store.Pardon(ctx, p.ID, models.Pardon{Timestamp: s.now, Reason: "appeal"}))
	s.ErrorIs(s.store.Pardon(ctx, p.ID, models.Pardon{Timestamp: s.now, Reason: "again"}), sentinel.ErrInvalidState)
	s.ErrorIs(s.store.Pardon(ctx, uuid.New(), models.Pardon{Timestamp: s.now}), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Create(ctx, p), sentinel.ErrConflict)
}
