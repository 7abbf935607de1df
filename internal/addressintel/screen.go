package addressintel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"sync/atomic"
	"time"

	"warden/internal/addressintel/metrics"
	"warden/internal/verification"
	"warden/pkg/platform/audit"
	"warden/pkg/requestcontext"
)

// ProcessorID is the pipeline identifier of the address screen.
const ProcessorID = "ddos"

// ReasonListedAddress is shown to players whose address is in the set.
const ReasonListedAddress = "Your address has been marked by our anti-VPN system. Please disable it."

// ErrAllSourcesFailed is returned by Refresh when no source could be fetched.
var ErrAllSourcesFailed = errors.New("all address sources failed")

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Screen holds the active AddressSet. Reads are lock-free; Refresh builds a
// new set and swaps it in.
type Screen struct {
	current   atomic.Pointer[AddressSet]
	loader    *Loader
	providers []Provider

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

type ScreenOption func(*Screen)

func WithLogger(logger *slog.Logger) ScreenOption {
	return func(s *Screen) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ScreenOption {
	return func(s *Screen) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) ScreenOption {
	return func(s *Screen) {
		s.auditPublisher = publisher
	}
}

// WithInitialSet seeds the screen, mostly for tests and static deployments.
func WithInitialSet(set *AddressSet) ScreenOption {
	return func(s *Screen) {
		if set != nil {
			s.current.Store(set)
		}
	}
}

func NewScreen(loader *Loader, providers []Provider, opts ...ScreenOption) (*Screen, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	s := &Screen{
		loader:    loader,
		providers: providers,
		logger:    slog.New(slog.DiscardHandler),
	}
	s.current.Store(NewAddressSet())
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Set returns the active address set.
func (s *Screen) Set() *AddressSet {
	return s.current.Load()
}

// Check reports whether addr is listed and by which source.
func (s *Screen) Check(addr netip.Addr) (string, bool) {
	return s.current.Load().Match(addr)
}

// Refresh reloads every provider and swaps in the new set. When every
// source fails the previous set stays active and ErrAllSourcesFailed is returned.
func (s *Screen) Refresh(ctx context.Context) (LoadReport, error) {
	set, report := s.loader.Load(ctx, s.providers)
	if report.AllFailed() {
		s.logger.WarnContext(ctx, "keeping previous address set",
			"prefixes", s.current.Load().Len(),
		)
		return report, ErrAllSourcesFailed
	}

	s.current.Store(set)
	now := requestcontext.Now(ctx)
	if s.metrics != nil {
		s.metrics.ObserveSwap(set.Len(), now)
	}
	s.emit(ctx, report, set, now)
	return report, nil
}

// Run refreshes the set every interval until ctx is done. A zero interval
// returns immediately.
func (s *Screen) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.WarnContext(ctx, "address set refresh failed", "error", err)
			}
		}
	}
}

// Evaluate rejects connections from listed addresses.
func (s *Screen) Evaluate(_ context.Context, conn verification.Connection) (verification.Result, error) {
	source, listed := s.Check(conn.Address)
	if !listed {
		return verification.Success(), nil
	}
	if s.metrics != nil {
		s.metrics.IncrementHits(source)
	}
	return verification.Failure(ReasonListedAddress, 0), nil
}

func (s *Screen) emit(ctx context.Context, report LoadReport, set *AddressSet, now time.Time) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.NewEvent(audit.EventAddressSetLoaded, now)
	event.Processor = ProcessorID
	event.Reason = fmt.Sprintf("%d prefixes from %d sources", set.Len(), len(report.Sources)-len(report.Failed()))
	if failed := report.Failed(); len(failed) > 0 {
		event.Reason += "; failed: " + strings.Join(failed, ", ")
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(audit.EventAddressSetLoaded), "error", err)
	}
}
