package store

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"warden/internal/punishment/models"
	"warden/pkg/platform/sentinel"
)

// Schema creates the punishments table. Applied by Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS punishments (
	id               UUID PRIMARY KEY,
	target_address   INET NOT NULL,
	target_uuid      TEXT,
	reason           TEXT NOT NULL,
	type             TEXT NOT NULL,
	duration_seconds BIGINT,
	created_at       TIMESTAMPTZ NOT NULL,
	pardoned_at      TIMESTAMPTZ,
	pardon_reason    TEXT
);
CREATE INDEX IF NOT EXISTS punishments_target_address_idx ON punishments (target_address);
`

const selectColumns = `id::text, host(target_address), target_uuid, reason, type,
	duration_seconds, created_at, pardoned_at, pardon_reason`

// PostgresStore persists punishments in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate punishments: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindActiveByTargetAddress(ctx context.Context, addr netip.Addr, now time.Time) ([]*models.Punishment, error) {
	query := `SELECT ` + selectColumns + `
		FROM punishments
		WHERE target_address = $1::inet
		  AND pardoned_at IS NULL
		  AND (duration_seconds IS NULL OR created_at + make_interval(secs => duration_seconds) >= $2)
		ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, addr.Unmap().String(), now)
	if err != nil {
		return nil, fmt.Errorf("find active punishments: %w", err)
	}
	defer rows.Close()

	var result []*models.Punishment
	for rows.Next() {
		p, err := scanPunishment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan punishment: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate punishments: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Punishment, error) {
	query := `SELECT ` + selectColumns + ` FROM punishments WHERE id = $1::uuid`
	p, err := scanPunishment(s.pool.QueryRow(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find punishment: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Punishment) error {
	var seconds *int64
	if p.Duration != nil {
		v := int64(*p.Duration / time.Second)
		seconds = &v
	}
	var targetUUID *string
	if p.Target.UUID != "" {
		targetUUID = &p.Target.UUID
	}

	query := `INSERT INTO punishments (id, target_address, target_uuid, reason, type, duration_seconds, created_at)
		VALUES ($1::uuid, $2::inet, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, query,
		p.ID.String(), p.Target.Address.Unmap().String(), targetUUID, p.Reason, string(p.Type), seconds, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create punishment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Pardon(ctx context.Context, id uuid.UUID, pardon models.Pardon) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE punishments SET pardoned_at = $2, pardon_reason = $3 WHERE id = $1::uuid AND pardoned_at IS NULL`,
		id.String(), pardon.Timestamp, pardon.Reason)
	if err != nil {
		return fmt.Errorf("pardon punishment: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing row from one that was already pardoned.
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	return sentinel.ErrInvalidState
}

func scanPunishment(row pgx.Row) (*models.Punishment, error) {
	var (
		id, address, reason, typ string
		targetUUID, pardonReason *string
		seconds                  *int64
		createdAt                time.Time
		pardonedAt               *time.Time
	)
	if err := row.Scan(&id, &address, &targetUUID, &reason, &typ, &seconds, &createdAt, &pardonedAt, &pardonReason); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return nil, fmt.Errorf("parse target address: %w", err)
	}

	p := &models.Punishment{
		ID:        parsedID,
		Target:    models.Target{Address: addr.Unmap()},
		Reason:    reason,
		Type:      models.Type(typ),
		CreatedAt: createdAt,
	}
	if targetUUID != nil {
		p.Target.UUID = *targetUUID
	}
	if seconds != nil {
		d := time.Duration(*seconds) * time.Second
		p.Duration = &d
	}
	if pardonedAt != nil {
		p.Pardon = &models.Pardon{Timestamp: *pardonedAt}
		if pardonReason != nil {
			p.Pardon.Reason = *pardonReason
		}
	}
	return p, nil
}
