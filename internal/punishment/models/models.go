package models

import (
	"fmt"
	"math"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "warden/pkg/domain-errors"
)

// Forever is the remaining time of a permanent punishment.
const Forever = time.Duration(math.MaxInt64)

// Type is the kind of moderation action.
type Type string

const (
	TypeFreeze Type = "freeze"
	TypeMute   Type = "mute"
	TypeKick   Type = "kick"
	TypeBan    Type = "ban"
)

func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeFreeze, TypeMute, TypeKick, TypeBan:
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid punishment type %q", s))
}

// IsKick reports whether the type removes the player from the server.
func (t Type) IsKick() bool {
	return t == TypeKick || t == TypeBan
}

// Target identifies who a punishment applies to. UUID is optional.
type Target struct {
	Address netip.Addr
	UUID    string
}

type Pardon struct {
	Timestamp time.Time
	Reason    string
}

// Punishment is a moderation record. A nil Duration means permanent.
type Punishment struct {
	ID        uuid.UUID
	Target    Target
	Reason    string
	Type      Type
	Duration  *time.Duration
	Pardon    *Pardon
	CreatedAt time.Time
}

// New validates and builds a punishment created at now.
func New(target Target, reason string, typ Type, duration *time.Duration, now time.Time) (*Punishment, error) {
	if !target.Address.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "target address is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if _, err := ParseType(string(typ)); err != nil {
		return nil, err
	}
	if duration != nil && *duration <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "duration must be positive")
	}
	target.Address = target.Address.Unmap()
	return &Punishment{
		ID:        uuid.New(),
		Target:    target,
		Reason:    reason,
		Type:      typ,
		Duration:  duration,
		CreatedAt: now,
	}, nil
}

func (p *Punishment) Pardoned() bool {
	return p.Pardon != nil
}

func (p *Punishment) Permanent() bool {
	return p.Duration == nil
}

// Expiration returns when the punishment ends. ok is false for permanent ones.
func (p *Punishment) Expiration() (at time.Time, ok bool) {
	if p.Duration == nil {
		return time.Time{}, false
	}
	return p.CreatedAt.Add(*p.Duration), true
}

// Expired reports whether the punishment no longer applies at now.
func (p *Punishment) Expired(now time.Time) bool {
	if p.Pardoned() {
		return true
	}
	end, ok := p.Expiration()
	return ok && end.Before(now)
}

// Remaining returns the time left at now. Permanent punishments return Forever.
func (p *Punishment) Remaining(now time.Time) time.Duration {
	end, ok := p.Expiration()
	if !ok {
		return Forever
	}
	if left := end.Sub(now); left > 0 {
		return left
	}
	return 0
}
