package addressintel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/addressintel/metrics"
)

type staticProvider struct {
	name     string
	prefixes []netip.Prefix
	err      error
	delay    time.Duration
	calls    atomic.Int32
	inflight *atomic.Int32
	peak     *atomic.Int32
}

func (p *staticProvider) Name() string { return p.name }

func (p *staticProvider) Fetch(ctx context.Context) ([]netip.Prefix, error) {
	p.calls.Add(1)
	if p.inflight != nil {
		n := p.inflight.Add(1)
		defer p.inflight.Add(-1)
		for {
			peak := p.peak.Load()
			if n <= peak || p.peak.CompareAndSwap(peak, n) {
				break
			}
		}
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, &FetchError{Source: p.name, Err: p.err}
	}
	return p.prefixes, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoaderFaultIsolation(t *testing.T) {
	healthy := []Provider{
		&staticProvider{name: "a", prefixes: prefixesOf("1.0.0.0/8")},
		&staticProvider{name: "b", prefixes: prefixesOf("2.0.0.0/8", "2001:db8::/32")},
		&staticProvider{name: "c", prefixes: prefixesOf("3.3.3.3")},
	}
	failing := &staticProvider{name: "broken", err: errors.New("connection refused")}
	withFailure := []Provider{healthy[0], failing, healthy[1], healthy[2]}

	loader := NewLoader(WithLoaderLogger(quietLogger()))
	expected, _ := loader.Load(context.Background(), healthy)
	got, report := loader.Load(context.Background(), withFailure)

	assert.Equal(t, expected.Len(), got.Len())
	for _, addr := range []string{"1.2.3.4", "2.2.2.2", "2001:db8::5", "3.3.3.3", "4.4.4.4"} {
		a := netip.MustParseAddr(addr)
		assert.Equal(t, expected.Contains(a), got.Contains(a), addr)
	}
	assert.Equal(t, []string{"broken"}, report.Failed())
	assert.False(t, report.AllFailed())
	assert.Equal(t, 2, report.Sources[2].Prefixes)
}

type panickingProvider struct{}

func (panickingProvider) Name() string { return "corrupt" }

func (panickingProvider) Fetch(context.Context) ([]netip.Prefix, error) {
	var entries []netip.Prefix
	return entries[:1], nil
}

func TestLoaderRecoversPanickingSource(t *testing.T) {
	healthy := &staticProvider{name: "a", prefixes: prefixesOf("1.0.0.0/8")}

	var (
		set    *AddressSet
		report LoadReport
	)
	require.NotPanics(t, func() {
		set, report = NewLoader(WithLoaderLogger(quietLogger())).
			Load(context.Background(), []Provider{healthy, panickingProvider{}})
	})

	assert.True(t, set.Contains(netip.MustParseAddr("1.2.3.4")))
	assert.Equal(t, []string{"corrupt"}, report.Failed())
	var fetchErr *FetchError
	require.ErrorAs(t, report.Sources[1].Err, &fetchErr)
	assert.Equal(t, "corrupt", fetchErr.Source)
	assert.Contains(t, fetchErr.Error(), "panic")
}

func TestLoaderConcurrencyLimit(t *testing.T) {
	var inflight, peak atomic.Int32
	var providers []Provider
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		providers = append(providers, &staticProvider{
			name:     name,
			delay:    20 * time.Millisecond,
			inflight: &inflight,
			peak:     &peak,
		})
	}

	NewLoader(WithConcurrency(2), WithLoaderLogger(quietLogger())).Load(context.Background(), providers)

	assert.LessOrEqual(t, peak.Load(), int32(2))
	for _, p := range providers {
		assert.Equal(t, int32(1), p.(*staticProvider).calls.Load())
	}
}

func TestLoaderAggregateTimeout(t *testing.T) {
	slow := &staticProvider{name: "slow", delay: time.Minute, prefixes: prefixesOf("9.0.0.0/8")}
	fast := &staticProvider{name: "fast", prefixes: prefixesOf("8.0.0.0/8")}

	start := time.Now()
	set, report := NewLoader(WithLoadTimeout(50*time.Millisecond), WithLoaderLogger(quietLogger())).
		Load(context.Background(), []Provider{slow, fast})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, set.Contains(netip.MustParseAddr("8.8.8.8")))
	assert.False(t, set.Contains(netip.MustParseAddr("9.9.9.9")))
	assert.Equal(t, []string{"slow"}, report.Failed())
}

func TestLoaderMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	providers := []Provider{
		&staticProvider{name: "ok", prefixes: prefixesOf("1.0.0.0/8", "2.0.0.0/8")},
		&staticProvider{name: "down", err: errors.New("timeout")},
	}

	NewLoader(WithLoaderMetrics(m), WithLoaderLogger(quietLogger())).Load(context.Background(), providers)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Entries.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFailures.WithLabelValues("down")))
}

func TestLoadReport(t *testing.T) {
	require.False(t, LoadReport{}.AllFailed())
	report := LoadReport{Sources: []SourceReport{{Source: "a", Err: errors.New("x")}, {Source: "b", Err: errors.New("y")}}}
	assert.True(t, report.AllFailed())
	assert.Equal(t, []string{"a", "b"}, report.Failed())
}
