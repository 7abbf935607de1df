package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"warden/internal/verification/metrics"
	"warden/pkg/platform/audit"
	"warden/pkg/requestcontext"
)

const tracerName = "warden/internal/verification"

// AuditPublisher emits audit events for rejected connections and processor failures.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Pipeline runs registered processors in priority order and stops at the
// first rejection. Processors are registered at startup; the order is
// computed once when the pipeline is sealed.
type Pipeline struct {
	mu     sync.RWMutex
	regs   []*registration
	ids    map[string]struct{}
	sealed bool

	logger            *slog.Logger
	metrics           *metrics.Metrics
	auditPublisher    AuditPublisher
	tracer            trace.Tracer
	runTimeout        time.Duration
	unavailableReason string
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(p *Pipeline) {
		p.auditPublisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

// WithRunTimeout bounds a whole verification run. Zero disables the bound.
// A processor cut off mid-evaluation decides by its own fail policy. When the
// deadline passes between processors, the run is rejected if any processor
// left unevaluated is fail-closed and admitted otherwise.
func WithRunTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.runTimeout = d
	}
}

// WithUnavailableReason overrides the message shown when a fail-closed
// processor cannot complete.
func WithUnavailableReason(reason string) Option {
	return func(p *Pipeline) {
		p.unavailableReason = reason
	}
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		ids:               make(map[string]struct{}),
		logger:            slog.New(slog.DiscardHandler),
		tracer:            otel.Tracer(tracerName),
		runTimeout:        10 * time.Second,
		unavailableReason: ReasonUnavailable,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds a processor. Processors are fail-open unless WithFailClosed
// is given. Identifiers must be unique.
func (p *Pipeline) Register(id string, priority Priority, processor Processor, opts ...RegisterOption) error {
	if id == "" {
		return errors.New("processor id is required")
	}
	if processor == nil {
		return fmt.Errorf("processor %s: implementation is required", id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sealed {
		return fmt.Errorf("register %s: %w", id, ErrPipelineSealed)
	}
	if _, exists := p.ids[id]; exists {
		return fmt.Errorf("register %s: %w", id, ErrDuplicateProcessor)
	}

	reg := &registration{
		ProcessorInfo: ProcessorInfo{ID: id, Priority: priority, FailOpen: true},
		processor:     processor,
		seq:           len(p.regs),
	}
	for _, opt := range opts {
		opt(reg)
	}
	p.ids[id] = struct{}{}
	p.regs = append(p.regs, reg)
	return nil
}

// Seal fixes the evaluation order: highest priority first, registration
// order among equal priorities. Later registrations fail.
func (p *Pipeline) Seal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sealed {
		return
	}
	slices.SortStableFunc(p.regs, func(a, b *registration) int {
		if a.Priority != b.Priority {
			return int(b.Priority) - int(a.Priority)
		}
		return a.seq - b.seq
	})
	p.sealed = true
}

// Processors lists the registered processors in evaluation order.
func (p *Pipeline) Processors() []ProcessorInfo {
	regs := p.ordered()
	infos := make([]ProcessorInfo, 0, len(regs))
	for _, reg := range regs {
		infos = append(infos, reg.ProcessorInfo)
	}
	return infos
}

func (p *Pipeline) ordered() []*registration {
	p.mu.RLock()
	if p.sealed {
		regs := p.regs
		p.mu.RUnlock()
		return regs
	}
	p.mu.RUnlock()

	p.Seal()

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.regs
}

// Verify runs the pipeline for a connection. It never returns an error:
// processor errors are converted according to each processor's fail policy.
func (p *Pipeline) Verify(ctx context.Context, conn Connection) Result {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "verification.run", trace.WithAttributes(
		attribute.String("player.uuid", conn.UUID),
		attribute.String("player.address", conn.Address.String()),
	))
	defer span.End()

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.runTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.runTimeout)
	}
	defer cancel()

	result, decidedBy := p.run(ctx, runCtx, conn)

	span.SetAttributes(attribute.String("verification.status", string(result.Status)))
	if p.metrics != nil {
		p.metrics.ObserveRun(string(result.Status), time.Since(start))
	}
	if !result.Passed() {
		span.SetAttributes(attribute.String("verification.processor", decidedBy))
		if p.metrics != nil {
			p.metrics.IncrementRejections(decidedBy)
		}
		p.logAudit(ctx, audit.EventConnectionRejected, conn, decidedBy, result.Reason)
	}
	return result
}

// run evaluates processors in order. parent is the caller's context and
// runCtx additionally carries the run deadline.
func (p *Pipeline) run(parent, runCtx context.Context, conn Connection) (Result, string) {
	regs := p.ordered()
	for i, reg := range regs {
		if parent.Err() != nil {
			p.logger.InfoContext(parent, "verification cancelled",
				"player", conn.Name,
				"uuid", conn.UUID,
				"processor", reg.ID,
			)
			return Failure(ReasonCancelled, 0), reg.ID
		}
		if runCtx.Err() != nil {
			p.logger.WarnContext(parent, "verification timed out before processor ran",
				"player", conn.Name,
				"uuid", conn.UUID,
				"processor", reg.ID,
				"remaining", len(regs)-i,
			)
			return p.skipRemaining(regs[i:])
		}

		result, err := p.evaluate(runCtx, reg, conn)
		if err == nil {
			if !result.Passed() {
				return result, reg.ID
			}
			continue
		}

		p.logger.ErrorContext(parent, "error while verifying player",
			"player", conn.Name,
			"uuid", conn.UUID,
			"address", conn.Address.String(),
			"processor", reg.ID,
			"fail_open", reg.FailOpen,
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.IncrementProcessorErrors(reg.ID, reg.FailOpen)
		}
		p.logAudit(parent, audit.EventProcessorFailed, conn, reg.ID, err.Error())

		if parent.Err() != nil {
			return Failure(ReasonCancelled, 0), reg.ID
		}
		fallback := p.fallback(reg)
		if runCtx.Err() != nil || !fallback.Passed() {
			return fallback, reg.ID
		}
	}
	return Success(), ""
}

// skipRemaining decides for processors that never ran. Any fail-closed one rejects.
func (p *Pipeline) skipRemaining(regs []*registration) (Result, string) {
	for _, reg := range regs {
		if !reg.FailOpen {
			return Failure(p.unavailableReason, 0), reg.ID
		}
	}
	return Success(), regs[0].ID
}

func (p *Pipeline) fallback(reg *registration) Result {
	if reg.FailOpen {
		return Success()
	}
	return Failure(p.unavailableReason, 0)
}

func (p *Pipeline) evaluate(ctx context.Context, reg *registration, conn Connection) (result Result, err error) {
	ctx, span := p.tracer.Start(ctx, "verification.processor", trace.WithAttributes(
		attribute.String("verification.processor", reg.ID),
		attribute.String("verification.priority", reg.Priority.String()),
	))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor %s panicked: %v", reg.ID, r)
		}
		if p.metrics != nil {
			p.metrics.ObserveProcessor(reg.ID, time.Since(start))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("verification.status", string(result.Status)))
		}
		span.End()
	}()

	return reg.processor.Evaluate(ctx, conn)
}

func (p *Pipeline) logAudit(ctx context.Context, action audit.AuditEvent, conn Connection, processor, reason string) {
	if p.auditPublisher == nil {
		return
	}
	event := audit.NewEvent(action, requestcontext.Now(ctx))
	event.Subject = conn.UUID
	event.Name = conn.Name
	event.Address = conn.Address.String()
	event.Processor = processor
	event.Reason = reason
	event.RequestID = requestcontext.RequestID(ctx)

	if err := p.auditPublisher.Emit(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "failed to emit audit event", "event", string(action), "error", err)
	}
}
