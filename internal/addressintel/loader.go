package addressintel

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"

	"warden/internal/addressintel/metrics"
)

const (
	DefaultConcurrency = 4
	DefaultLoadTimeout = 60 * time.Second
)

// SourceReport is the outcome of one source during a load.
type SourceReport struct {
	Source   string
	Prefixes int
	Elapsed  time.Duration
	Err      error
}

// LoadReport summarizes a load across all sources, in provider order.
type LoadReport struct {
	Sources []SourceReport
}

// Failed lists the sources that contributed nothing because of an error.
func (r LoadReport) Failed() []string {
	var failed []string
	for _, s := range r.Sources {
		if s.Err != nil {
			failed = append(failed, s.Source)
		}
	}
	return failed
}

// AllFailed reports whether every source failed. A load with no sources has not failed.
func (r LoadReport) AllFailed() bool {
	return len(r.Sources) > 0 && len(r.Failed()) == len(r.Sources)
}

// Loader fetches every provider with bounded concurrency and isolates failures.
type Loader struct {
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
	timeout     time.Duration
}

type LoaderOption func(*Loader)

func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

func WithLoaderMetrics(m *metrics.Metrics) LoaderOption {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithConcurrency limits simultaneous fetches. Values below 1 are ignored.
func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLoadTimeout bounds a whole load. Each source is additionally bounded
// by its HTTP client timeout.
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		logger:      slog.New(slog.DiscardHandler),
		concurrency: DefaultConcurrency,
		timeout:     DefaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches all providers and returns the union of the successful ones.
// A failing provider is logged and contributes an empty set; Load itself never fails.
func (l *Loader) Load(ctx context.Context, providers []Provider) (*AddressSet, LoadReport) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	results := make([]SourcePrefixes, len(providers))
	report := LoadReport{Sources: make([]SourceReport, len(providers))}

	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, provider := range providers {
		g.Go(func() error {
			start := time.Now()
			prefixes, err := fetch(ctx, provider)
			elapsed := time.Since(start)

			if l.metrics != nil {
				l.metrics.ObserveFetch(provider.Name(), len(prefixes), elapsed, err)
			}
			report.Sources[i] = SourceReport{Source: provider.Name(), Elapsed: elapsed, Err: err}
			if err != nil {
				l.logger.ErrorContext(ctx, "failed to fetch addresses",
					"source", provider.Name(),
					"elapsed", elapsed,
					"error", err,
				)
				// Isolated: other sources keep going.
				return nil
			}

			l.logger.DebugContext(ctx, "fetched addresses",
				"source", provider.Name(),
				"prefixes", len(prefixes),
				"elapsed", elapsed,
			)
			results[i] = SourcePrefixes{Source: provider.Name(), Prefixes: prefixes}
			report.Sources[i].Prefixes = len(prefixes)
			return nil
		})
	}
	_ = g.Wait()

	set := NewAddressSet(results...)
	l.logger.InfoContext(ctx, "address set loaded",
		"sources", len(providers),
		"prefixes", set.Len(),
		"failed", report.Failed(),
	)
	return set, report
}

// fetch turns a panicking provider into a FetchError so it fails alone.
func fetch(ctx context.Context, provider Provider) (prefixes []netip.Prefix, err error) {
	defer func() {
		if r := recover(); r != nil {
			prefixes = nil
			err = &FetchError{Source: provider.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return provider.Fetch(ctx)
}
