package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"warden/internal/account/models"
	"warden/internal/account/ports"
	"warden/internal/verification"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/requestcontext"
)

// ProcessorID is the pipeline identifier of the session refresh.
const ProcessorID = "account"

const DefaultSessionTTL = 30 * 24 * time.Hour

// Service keeps player sessions fresh as they join.
type Service struct {
	store  ports.Store
	logger *slog.Logger
	ttl    time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSessionTTL sets how long a session lives without a refresh.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func New(store ports.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		ttl:    DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Refresh creates or extends the session for identity.
func (s *Service) Refresh(ctx context.Context, identity models.Identity) (*models.Session, error) {
	identity.Address = identity.Address.Unmap()
	if err := identity.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid identity")
	}
	session, err := s.store.RefreshOrCreate(ctx, identity, requestcontext.Now(ctx), s.ttl)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return session, nil
}

// Evaluate refreshes the session and always admits. A failed refresh must
// never keep a player out.
func (s *Service) Evaluate(ctx context.Context, conn verification.Connection) (verification.Result, error) {
	_, err := s.Refresh(ctx, models.Identity{UUID: conn.UUID, USID: conn.USID, Address: conn.Address})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to refresh session",
			"player", conn.Name,
			"uuid", conn.UUID,
			"error", err,
		)
	}
	return verification.Success(), nil
}
