package addressintel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/addressintel/metrics"
	"warden/internal/verification"
	"warden/pkg/platform/circuit"
)

type iphubStub struct {
	srv    *httptest.Server
	calls  atomic.Int32
	status int
	blocks map[string]string
}

func newIPHubStub(t *testing.T) *iphubStub {
	t.Helper()
	stub := &iphubStub{status: http.StatusOK, blocks: map[string]string{}}
	stub.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.calls.Add(1)
		if r.Header.Get("X-Key") != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if stub.status != http.StatusOK {
			w.WriteHeader(stub.status)
			return
		}
		addr := strings.TrimPrefix(r.URL.Path, "/ip/")
		block, ok := stub.blocks[addr]
		if !ok {
			block = "0"
		}
		_, _ = w.Write([]byte(`{"ip":"` + addr + `","countryCode":"US","block":` + block + `}`))
	}))
	t.Cleanup(stub.srv.Close)
	return stub
}

func (s *iphubStub) client(t *testing.T, opts ...IPHubOption) *IPHub {
	t.Helper()
	base := []IPHubOption{WithIPHubClient(s.srv.Client()), WithIPHubBaseURL(s.srv.URL + "/ip")}
	hub, err := NewIPHub("secret", append(base, opts...)...)
	require.NoError(t, err)
	return hub
}

func TestIPHubVerdicts(t *testing.T) {
	stub := newIPHubStub(t)
	stub.blocks["198.51.100.7"] = "1"
	stub.blocks["198.51.100.8"] = "2"
	hub := stub.client(t)

	vpn, err := hub.IsVPN(context.Background(), netip.MustParseAddr("198.51.100.7"))
	require.NoError(t, err)
	assert.True(t, vpn)

	vpn, err = hub.IsVPN(context.Background(), netip.MustParseAddr("198.51.100.8"))
	require.NoError(t, err)
	assert.True(t, vpn)

	vpn, err = hub.IsVPN(context.Background(), netip.MustParseAddr("198.51.100.9"))
	require.NoError(t, err)
	assert.False(t, vpn)
}

func TestIPHubCache(t *testing.T) {
	stub := newIPHubStub(t)
	stub.blocks["198.51.100.7"] = "1"
	m := metrics.New(prometheus.NewRegistry())
	hub := stub.client(t, WithIPHubMetrics(m), WithIPHubCache(16, time.Minute))

	for range 3 {
		vpn, err := hub.IsVPN(context.Background(), netip.MustParseAddr("198.51.100.7"))
		require.NoError(t, err)
		assert.True(t, vpn)
	}

	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.VPNCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VPNLookups.WithLabelValues("flagged")))
}

func TestIPHubSkipsLocalAddresses(t *testing.T) {
	stub := newIPHubStub(t)
	hub := stub.client(t)

	for _, addr := range []string{"127.0.0.1", "0.0.0.0", "::1", "10.1.2.3", "192.168.0.4", "fe80::1"} {
		vpn, err := hub.IsVPN(context.Background(), netip.MustParseAddr(addr))
		require.NoError(t, err)
		assert.False(t, vpn, addr)
	}
	assert.Equal(t, int32(0), stub.calls.Load())
}

func TestIPHubErrors(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		stub := newIPHubStub(t)
		stub.status = http.StatusTooManyRequests
		hub := stub.client(t)

		_, err := hub.IsVPN(context.Background(), netip.MustParseAddr("198.51.100.7"))
		assert.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("unexpected status", func(t *testing.T) {
		stub := newIPHubStub(t)
		stub.status = http.StatusInternalServerError
		hub := stub.client(t)

		_, err := hub.IsVPN(context.Background(), netip.MustParseAddr("198.51.100.7"))
		assert.ErrorContains(t, err, "500")
	})

	t.Run("errors are not cached", func(t *testing.T) {
		stub := newIPHubStub(t)
		stub.status = http.StatusBadGateway
		hub := stub.client(t)

		_, _ = hub.IsVPN(context.Background(), netip.MustParseAddr("198.51.100.7"))
		_, _ = hub.IsVPN(context.Background(), netip.MustParseAddr("198.51.100.7"))
		assert.Equal(t, int32(2), stub.calls.Load())
	})

	t.Run("token is required", func(t *testing.T) {
		_, err := NewIPHub("")
		assert.Error(t, err)
	})
}

func TestIPHubEvaluate(t *testing.T) {
	stub := newIPHubStub(t)
	stub.blocks["198.51.100.7"] = "1"
	hub := stub.client(t, WithIPHubLogger(quietLogger()))

	flagged, err := hub.Evaluate(context.Background(), verification.Connection{Name: "Alex", Address: netip.MustParseAddr("198.51.100.7")})
	require.NoError(t, err)
	assert.Equal(t, verification.Failure(ReasonVPNDetected, 0), flagged)

	clean, err := hub.Evaluate(context.Background(), verification.Connection{Name: "Sam", Address: netip.MustParseAddr("198.51.100.1")})
	require.NoError(t, err)
	assert.True(t, clean.Passed())
}

func TestIPHubBreaker(t *testing.T) {
	stub := newIPHubStub(t)
	stub.status = http.StatusTooManyRequests
	m := metrics.New(prometheus.NewRegistry())
	breaker := circuit.New(VPNProcessorID, circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	hub := stub.client(t, WithIPHubBreaker(breaker), WithIPHubMetrics(m))

	for range 2 {
		_, err := hub.IsVPN(context.Background(), netip.MustParseAddr("198.51.100.7"))
		assert.ErrorIs(t, err, ErrRateLimited)
	}
	assert.True(t, breaker.IsOpen())

	_, err := hub.IsVPN(context.Background(), netip.MustParseAddr("198.51.100.8"))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), stub.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VPNLookups.WithLabelValues("circuit_open")))
}
