package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"warden/internal/account/models"
	"warden/pkg/platform/sentinel"
)

// SessionSchema creates the sessions table. Safe to run repeatedly.
const SessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	key          TEXT PRIMARY KEY,
	uuid         TEXT NOT NULL,
	address      INET NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	last_seen_at TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_uuid ON sessions (uuid);
`

// PostgresStore persists sessions with database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, SessionSchema); err != nil {
		return fmt.Errorf("migrate sessions: %w", err)
	}
	return nil
}

// RefreshOrCreate upserts in one statement. An expired row is reset as if new.
func (s *PostgresStore) RefreshOrCreate(ctx context.Context, identity models.Identity, now time.Time, ttl time.Duration) (*models.Session, error) {
	query := `
		INSERT INTO sessions (key, uuid, address, created_at, last_seen_at, expires_at)
		VALUES ($1, $2, $3::inet, $4, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			uuid = EXCLUDED.uuid,
			address = EXCLUDED.address,
			created_at = CASE
				WHEN sessions.expires_at <= EXCLUDED.last_seen_at THEN EXCLUDED.created_at
				ELSE sessions.created_at
			END,
			last_seen_at = EXCLUDED.last_seen_at,
			expires_at = EXCLUDED.expires_at
		RETURNING created_at
	`
	session := &models.Session{
		Key:        identity.Key(),
		UUID:       identity.UUID,
		Address:    identity.Address,
		LastSeenAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	err := s.db.QueryRowContext(ctx, query,
		session.Key,
		session.UUID,
		session.Address.String(),
		now,
		session.ExpiresAt,
	).Scan(&session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) Find(ctx context.Context, key string, now time.Time) (*models.Session, error) {
	query := `
		SELECT uuid, host(address), created_at, last_seen_at, expires_at
		FROM sessions
		WHERE key = $1 AND expires_at > $2
	`
	session := &models.Session{Key: key}
	var address string
	err := s.db.QueryRowContext(ctx, query, key, now).Scan(
		&session.UUID,
		&address,
		&session.CreatedAt,
		&session.LastSeenAt,
		&session.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session.Address, err = netip.ParseAddr(address); err != nil {
		return nil, fmt.Errorf("decode session address: %w", err)
	}
	return session, nil
}
