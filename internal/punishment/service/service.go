package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"

	"warden/internal/punishment/models"
	"warden/internal/punishment/ports"
	"warden/internal/verification"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// ProcessorID is the pipeline identifier of the punishment check.
const ProcessorID = "punishment"

const defaultServerName = "this server"

// Service looks up active punishments and turns them into rejections.
type Service struct {
	store          ports.Store
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	serverName     string
	appealURL      string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithServerName sets the name shown in rejection messages.
func WithServerName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.serverName = name
		}
	}
}

// WithAppealURL sets where rejected players are told to appeal.
func WithAppealURL(u string) Option {
	return func(s *Service) {
		s.appealURL = u
	}
}

func New(store ports.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("punishment store is required")
	}
	s := &Service{
		store:      store,
		logger:     slog.New(slog.DiscardHandler),
		serverName: defaultServerName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lookup returns the active punishment with the longest remaining time for
// addr, or nil when there is none.
func (s *Service) Lookup(ctx context.Context, addr netip.Addr) (*models.Punishment, error) {
	now := requestcontext.Now(ctx)
	found, err := s.store.FindActiveByTargetAddress(ctx, addr.Unmap(), now)
	if err != nil {
		return nil, fmt.Errorf("find active punishments: %w", err)
	}
	return SelectLongest(found, now), nil
}

// SelectLongest picks the punishment with the most time left at now.
// Permanent punishments outrank timed ones; the first wins a tie. Expired
// entries are ignored.
func SelectLongest(punishments []*models.Punishment, now time.Time) *models.Punishment {
	var best *models.Punishment
	var bestRemaining time.Duration
	for _, p := range punishments {
		if p == nil || p.Expired(now) {
			continue
		}
		remaining := p.Remaining(now)
		if best == nil || remaining > bestRemaining {
			best, bestRemaining = p, remaining
		}
	}
	return best
}

// Message renders the text shown to a player rejected because of p.
func (s *Service) Message(p *models.Punishment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are currently banned from %s!\n", s.serverName)
	fmt.Fprintf(&b, "Reason: %s\n", p.Reason)
	fmt.Fprintf(&b, "Duration: %s", models.FormatDuration(p.Duration))
	if s.appealURL != "" {
		fmt.Fprintf(&b, "\n\nAppeal at: %s", s.appealURL)
	}
	return b.String()
}

// Evaluate rejects connections from punished addresses. The result carries
// the remaining time, zero for permanent punishments.
func (s *Service) Evaluate(ctx context.Context, conn verification.Connection) (verification.Result, error) {
	p, err := s.Lookup(ctx, conn.Address)
	if err != nil {
		return verification.Result{}, err
	}
	if p == nil {
		return verification.Success(), nil
	}

	var remaining time.Duration
	if !p.Permanent() {
		remaining = p.Remaining(requestcontext.Now(ctx))
	}
	s.logger.InfoContext(ctx, "punished player attempted to join",
		"player", conn.Name,
		"uuid", conn.UUID,
		"punishment_id", p.ID.String(),
		"type", string(p.Type),
	)
	return verification.Failure(s.Message(p), remaining), nil
}

// IssueRequest describes a new punishment. Duration is a preset name.
type IssueRequest struct {
	Address  string
	UUID     string
	Reason   string
	Type     string
	Duration string
}

func (s *Service) Issue(ctx context.Context, req IssueRequest) (*models.Punishment, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(req.Address))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "address is not valid")
	}
	typ, err := models.ParseType(req.Type)
	if err != nil {
		return nil, err
	}
	duration, err := models.ParsePreset(req.Duration)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	p, err := models.New(models.Target{Address: addr, UUID: req.UUID}, req.Reason, typ, duration, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save punishment")
	}

	s.logger.InfoContext(ctx, "punishment issued",
		"punishment_id", p.ID.String(),
		"type", string(p.Type),
		"duration", models.FormatDuration(p.Duration),
		"operator", requestcontext.Operator(ctx),
	)
	s.logAudit(ctx, audit.EventPunishmentIssued, p, p.Reason)
	return p, nil
}

func (s *Service) Pardon(ctx context.Context, id uuid.UUID, reason string) (*models.Punishment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	pardon := models.Pardon{Timestamp: requestcontext.Now(ctx), Reason: reason}
	if err := s.store.Pardon(ctx, id, pardon); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "punishment not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "punishment already pardoned")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to pardon punishment")
	}

	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load punishment")
	}
	s.logAudit(ctx, audit.EventPunishmentPardoned, p, reason)
	return p, nil
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, p *models.Punishment, reason string) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.NewEvent(action, requestcontext.Now(ctx))
	event.Subject = p.Target.UUID
	event.Address = p.Target.Address.String()
	event.Processor = ProcessorID
	event.Reason = reason
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(action), "error", err)
	}
}
