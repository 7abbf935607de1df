package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"warden/internal/verification/metrics"
	"warden/pkg/platform/audit"
	auditmemory "warden/pkg/platform/audit/store/memory"
)

type PipelineSuite struct {
	suite.Suite
	conn Connection
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.conn = Connection{
		Name:    "Steve",
		UUID:    "069a79f4-44e9-4726-a5be-fca90e38aaf5",
		USID:    "e5b8a0c4",
		Address: netip.MustParseAddr("203.0.113.7"),
	}
}

// recordingHandler keeps every record so tests can assert on log output.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) atLevel(level slog.Level) []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []slog.Record
	for _, r := range h.records {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

func attrs(r slog.Record) map[string]string {
	out := make(map[string]string)
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.String()
		return true
	})
	return out
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) processor(id string, result Result, err error) Processor {
	return ProcessorFunc(func(context.Context, Connection) (Result, error) {
		c.mu.Lock()
		c.calls = append(c.calls, id)
		c.mu.Unlock()
		return result, err
	})
}

func (c *callLog) count(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call == id {
			n++
		}
	}
	return n
}

func newQuietPipeline(opts ...Option) *Pipeline {
	base := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	return New(append(base, opts...)...)
}

func (s *PipelineSuite) TestOrdering() {
	s.Run("evaluates by priority then registration order", func() {
		calls := &callLog{}
		p := newQuietPipeline()
		s.Require().NoError(p.Register("low", PriorityLow, calls.processor("low", Success(), nil)))
		s.Require().NoError(p.Register("high-a", PriorityHigh, calls.processor("high-a", Success(), nil)))
		s.Require().NoError(p.Register("normal", PriorityNormal, calls.processor("normal", Success(), nil)))
		s.Require().NoError(p.Register("high-b", PriorityHigh, calls.processor("high-b", Success(), nil)))
		s.Require().NoError(p.Register("lowest", PriorityLowest, calls.processor("lowest", Success(), nil)))

		result := p.Verify(context.Background(), s.conn)

		s.True(result.Passed())
		s.Equal([]string{"high-a", "high-b", "normal", "low", "lowest"}, calls.calls)
	})

	s.Run("processors lists evaluation order", func() {
		p := newQuietPipeline()
		s.Require().NoError(p.Register("account", PriorityLowest, ProcessorFunc(admit)))
		s.Require().NoError(p.Register("ddos", PriorityHigh, ProcessorFunc(admit), WithFailClosed()))

		infos := p.Processors()

		s.Require().Len(infos, 2)
		s.Equal(ProcessorInfo{ID: "ddos", Priority: PriorityHigh, FailOpen: false}, infos[0])
		s.Equal(ProcessorInfo{ID: "account", Priority: PriorityLowest, FailOpen: true}, infos[1])
	})
}

func admit(context.Context, Connection) (Result, error) { return Success(), nil }

func (s *PipelineSuite) TestShortCircuit() {
	s.Run("first failure stops the chain and is returned unchanged", func() {
		calls := &callLog{}
		rejection := Failure("Banned", time.Hour)
		p := newQuietPipeline()
		s.Require().NoError(p.Register("first", PriorityHigh, calls.processor("first", Success(), nil)))
		s.Require().NoError(p.Register("reject", PriorityNormal, calls.processor("reject", rejection, nil)))
		s.Require().NoError(p.Register("after", PriorityLow, calls.processor("after", Success(), nil)))

		result := p.Verify(context.Background(), s.conn)

		s.Equal(rejection, result)
		s.Equal(1, calls.count("first"))
		s.Equal(1, calls.count("reject"))
		s.Equal(0, calls.count("after"))
	})

	s.Run("empty pipeline admits", func() {
		result := newQuietPipeline().Verify(context.Background(), s.conn)
		s.Equal(Success(), result)
	})
}

func (s *PipelineSuite) TestProcessorErrors() {
	s.Run("error is logged once and the chain continues", func() {
		handler := &recordingHandler{}
		calls := &callLog{}
		p := New(WithLogger(slog.New(handler)))
		s.Require().NoError(p.Register("broken", PriorityHigh, calls.processor("broken", Result{}, errors.New("upstream down"))))
		s.Require().NoError(p.Register("next", PriorityLow, calls.processor("next", Success(), nil)))

		result := p.Verify(context.Background(), s.conn)

		s.True(result.Passed())
		s.Equal(1, calls.count("next"))
		errs := handler.atLevel(slog.LevelError)
		s.Require().Len(errs, 1)
		fields := attrs(errs[0])
		s.Equal("Steve", fields["player"])
		s.Equal(s.conn.UUID, fields["uuid"])
		s.Equal("broken", fields["processor"])
	})

	s.Run("panic is treated as an error", func() {
		handler := &recordingHandler{}
		calls := &callLog{}
		p := New(WithLogger(slog.New(handler)))
		s.Require().NoError(p.Register("panics", PriorityHigh, ProcessorFunc(func(context.Context, Connection) (Result, error) {
			panic("boom")
		})))
		s.Require().NoError(p.Register("next", PriorityLow, calls.processor("next", Success(), nil)))

		result := p.Verify(context.Background(), s.conn)

		s.True(result.Passed())
		s.Equal(1, calls.count("next"))
		s.Len(handler.atLevel(slog.LevelError), 1)
	})

	s.Run("fail-closed processor rejects on error", func() {
		calls := &callLog{}
		p := newQuietPipeline(WithUnavailableReason("try later"))
		s.Require().NoError(p.Register("strict", PriorityHigh, calls.processor("strict", Result{}, errors.New("timeout")), WithFailClosed()))
		s.Require().NoError(p.Register("next", PriorityLow, calls.processor("next", Success(), nil)))

		result := p.Verify(context.Background(), s.conn)

		s.Equal(Failure("try later", 0), result)
		s.Equal(0, calls.count("next"))
	})
}

func (s *PipelineSuite) TestRegistration() {
	s.Run("duplicate id", func() {
		p := newQuietPipeline()
		s.Require().NoError(p.Register("ddos", PriorityHigh, ProcessorFunc(admit)))
		err := p.Register("ddos", PriorityLow, ProcessorFunc(admit))
		s.ErrorIs(err, ErrDuplicateProcessor)
	})

	s.Run("register after seal", func() {
		p := newQuietPipeline()
		p.Seal()
		err := p.Register("late", PriorityLow, ProcessorFunc(admit))
		s.ErrorIs(err, ErrPipelineSealed)
	})

	s.Run("verify seals the pipeline", func() {
		p := newQuietPipeline()
		p.Verify(context.Background(), s.conn)
		s.ErrorIs(p.Register("late", PriorityLow, ProcessorFunc(admit)), ErrPipelineSealed)
	})

	s.Run("missing id or processor", func() {
		p := newQuietPipeline()
		s.Error(p.Register("", PriorityLow, ProcessorFunc(admit)))
		s.Error(p.Register("nil", PriorityLow, nil))
	})
}

func (s *PipelineSuite) TestCancellation() {
	s.Run("cancelled caller yields cancelled failure", func() {
		calls := &callLog{}
		p := newQuietPipeline()
		s.Require().NoError(p.Register("never", PriorityHigh, calls.processor("never", Success(), nil)))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		result := p.Verify(ctx, s.conn)

		s.Equal(Failure(ReasonCancelled, 0), result)
		s.Equal(0, calls.count("never"))
	})

	s.Run("run deadline applies the interrupted processor's policy", func() {
		calls := &callLog{}
		p := newQuietPipeline(WithRunTimeout(20 * time.Millisecond))
		s.Require().NoError(p.Register("slow", PriorityHigh, ProcessorFunc(func(ctx context.Context, _ Connection) (Result, error) {
			<-ctx.Done()
			return Result{}, ctx.Err()
		}), WithFailClosed()))
		s.Require().NoError(p.Register("after", PriorityLow, calls.processor("after", Success(), nil)))

		result := p.Verify(context.Background(), s.conn)

		s.Equal(Failure(ReasonUnavailable, 0), result)
		s.Equal(0, calls.count("after"))
	})

	s.Run("run deadline on fail-open processor admits without running the rest", func() {
		calls := &callLog{}
		p := newQuietPipeline(WithRunTimeout(20 * time.Millisecond))
		s.Require().NoError(p.Register("slow", PriorityHigh, ProcessorFunc(func(ctx context.Context, _ Connection) (Result, error) {
			<-ctx.Done()
			return Result{}, ctx.Err()
		})))
		s.Require().NoError(p.Register("after", PriorityLow, calls.processor("after", Success(), nil)))

		result := p.Verify(context.Background(), s.conn)

		s.True(result.Passed())
		s.Equal(0, calls.count("after"))
	})
}

func (s *PipelineSuite) TestDeadlineBetweenProcessors() {
	// late ignores its context and admits after the run deadline has passed.
	late := ProcessorFunc(func(ctx context.Context, _ Connection) (Result, error) {
		<-ctx.Done()
		return Success(), nil
	})

	s.Run("a skipped fail-closed processor rejects", func() {
		calls := &callLog{}
		p := newQuietPipeline(WithRunTimeout(20*time.Millisecond), WithUnavailableReason("try later"))
		s.Require().NoError(p.Register("late", PriorityHigh, late))
		s.Require().NoError(p.Register("open", PriorityNormal, calls.processor("open", Success(), nil)))
		s.Require().NoError(p.Register("strict", PriorityLow, calls.processor("strict", Success(), nil), WithFailClosed()))

		result := p.Verify(context.Background(), s.conn)

		s.Equal(Failure("try later", 0), result)
		s.Equal(0, calls.count("open"))
		s.Equal(0, calls.count("strict"))
	})

	s.Run("only fail-open processors skipped admits", func() {
		calls := &callLog{}
		p := newQuietPipeline(WithRunTimeout(20 * time.Millisecond))
		s.Require().NoError(p.Register("late", PriorityHigh, late))
		s.Require().NoError(p.Register("open", PriorityLow, calls.processor("open", Success(), nil)))

		result := p.Verify(context.Background(), s.conn)

		s.True(result.Passed())
		s.Equal(0, calls.count("open"))
	})
}

func (s *PipelineSuite) TestObservability() {
	s.Run("rejections are counted and audited", func() {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		store := auditmemory.NewInMemoryStore()
		p := newQuietPipeline(WithMetrics(m), WithAuditPublisher(auditSink{store}))
		s.Require().NoError(p.Register("punishment", PriorityNormal, ProcessorFunc(func(context.Context, Connection) (Result, error) {
			return Failure("Banned", 0), nil
		})))

		p.Verify(context.Background(), s.conn)

		s.Equal(1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("punishment")))
		s.Equal(1.0, testutil.ToFloat64(m.Runs.WithLabelValues(string(StatusFailure))))
		events, err := store.ListBySubject(context.Background(), s.conn.UUID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventConnectionRejected), events[0].Action)
		s.Equal("punishment", events[0].Processor)
		s.Equal("Banned", events[0].Reason)
	})

	s.Run("errors are counted per policy", func() {
		m := metrics.New(prometheus.NewRegistry())
		p := newQuietPipeline(WithMetrics(m))
		s.Require().NoError(p.Register("vpn", PriorityLow, ProcessorFunc(func(context.Context, Connection) (Result, error) {
			return Result{}, errors.New("rate limited")
		})))

		p.Verify(context.Background(), s.conn)

		s.Equal(1.0, testutil.ToFloat64(m.ProcessorErrors.WithLabelValues("vpn", "fail_open")))
		s.Equal(1.0, testutil.ToFloat64(m.Runs.WithLabelValues(string(StatusSuccess))))
	})
}

type auditSink struct {
	store audit.Store
}

func (a auditSink) Emit(ctx context.Context, event audit.Event) error {
	return a.store.Append(ctx, event)
}
