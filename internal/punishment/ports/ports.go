// Package ports defines the interfaces the punishment service depends on.
package ports

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks

import (
	"context"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"warden/internal/punishment/models"
	"warden/pkg/platform/audit"
)

// Store persists punishments.
type Store interface {
	// FindActiveByTargetAddress returns punishments for addr that are neither
	// pardoned nor expired at now, oldest first.
	FindActiveByTargetAddress(ctx context.Context, addr netip.Addr, now time.Time) ([]*models.Punishment, error)

	// FindByID returns sentinel.ErrNotFound when no punishment has the id.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Punishment, error)

	Create(ctx context.Context, p *models.Punishment) error

	// Pardon marks an active punishment as pardoned. Returns sentinel.ErrNotFound
	// for unknown ids and sentinel.ErrInvalidState when already pardoned.
	Pardon(ctx context.Context, id uuid.UUID, pardon models.Pardon) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
