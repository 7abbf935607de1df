package addressintel

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"warden/internal/addressintel/metrics"
	"warden/internal/verification"
	"warden/pkg/platform/audit"
	auditmemory "warden/pkg/platform/audit/store/memory"
)

type ScreenSuite struct {
	suite.Suite
	provider *staticProvider
	metrics  *metrics.Metrics
	screen   *Screen
	audit    *auditmemory.InMemoryStore
}

type storeSink struct{ store audit.Store }

func (s storeSink) Emit(ctx context.Context, e audit.Event) error { return s.store.Append(ctx, e) }

func TestScreenSuite(t *testing.T) {
	suite.Run(t, new(ScreenSuite))
}

func (s *ScreenSuite) SetupTest() {
	s.provider = &staticProvider{name: "aws", prefixes: prefixesOf("3.0.0.0/9")}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.audit = auditmemory.NewInMemoryStore()

	screen, err := NewScreen(
		NewLoader(WithLoaderLogger(quietLogger())),
		[]Provider{s.provider},
		WithLogger(quietLogger()),
		WithMetrics(s.metrics),
		WithAuditPublisher(storeSink{s.audit}),
	)
	s.Require().NoError(err)
	s.screen = screen
}

func (s *ScreenSuite) conn(addr string) verification.Connection {
	return verification.Connection{Name: "Alex", UUID: "u-1", USID: "s-1", Address: netip.MustParseAddr(addr)}
}

func (s *ScreenSuite) TestEvaluate() {
	_, err := s.screen.Refresh(context.Background())
	s.Require().NoError(err)

	s.Run("listed address is rejected", func() {
		result, err := s.screen.Evaluate(context.Background(), s.conn("3.1.2.3"))
		s.Require().NoError(err)
		s.Equal(verification.Failure(ReasonListedAddress, 0), result)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Hits.WithLabelValues("aws")))
	})

	s.Run("unlisted address passes", func() {
		result, err := s.screen.Evaluate(context.Background(), s.conn("8.8.8.8"))
		s.Require().NoError(err)
		s.True(result.Passed())
	})
}

func (s *ScreenSuite) TestRefresh() {
	s.Run("empty before the first load", func() {
		s.Equal(0, s.screen.Set().Len())
	})

	s.Run("swaps in the new set and records the load", func() {
		_, err := s.screen.Refresh(context.Background())
		s.Require().NoError(err)
		s.Equal(1, s.screen.Set().Len())
		s.Equal(1.0, testutil.ToFloat64(s.metrics.SetSize))

		events, err := s.audit.ListRecent(context.Background(), 1)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventAddressSetLoaded), events[0].Action)
	})

	s.Run("keeps the previous set when every source fails", func() {
		s.provider.err = errors.New("dns failure")

		_, err := s.screen.Refresh(context.Background())

		s.ErrorIs(err, ErrAllSourcesFailed)
		_, listed := s.screen.Check(netip.MustParseAddr("3.1.2.3"))
		s.True(listed)
	})
}

func (s *ScreenSuite) TestRun() {
	s.Run("zero interval returns immediately", func() {
		done := make(chan struct{})
		go func() {
			s.screen.Run(context.Background(), 0)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			s.Fail("Run did not return")
		}
	})

	s.Run("refreshes periodically until cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			s.screen.Run(ctx, 10*time.Millisecond)
			close(done)
		}()

		s.Eventually(func() bool { return s.provider.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
		cancel()
		<-done
		s.Equal(1, s.screen.Set().Len())
	})
}

func (s *ScreenSuite) TestWithInitialSet() {
	seeded := NewAddressSet(SourcePrefixes{Source: "static", Prefixes: prefixesOf("192.0.2.0/24")})
	screen, err := NewScreen(NewLoader(), nil, WithInitialSet(seeded))
	s.Require().NoError(err)

	source, listed := screen.Check(netip.MustParseAddr("192.0.2.10"))
	s.True(listed)
	s.Equal("static", source)

	_, err = NewScreen(nil, nil)
	s.Error(err)
}
