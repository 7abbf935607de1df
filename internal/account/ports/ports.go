package ports

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"warden/internal/account/models"
)

// Store persists sessions.
type Store interface {
	// RefreshOrCreate upserts the session for identity. LastSeenAt and
	// ExpiresAt move forward; CreatedAt is kept unless the previous session
	// had already expired.
	RefreshOrCreate(ctx context.Context, identity models.Identity, now time.Time, ttl time.Duration) (*models.Session, error)
	// Find returns sentinel.ErrNotFound for missing or expired sessions.
	Find(ctx context.Context, key string, now time.Time) (*models.Session, error)
}
