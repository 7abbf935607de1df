package models

import (
	"encoding/hex"
	"errors"
	"net/netip"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Identity is what a client presents when it connects.
type Identity struct {
	UUID    string
	USID    string
	Address netip.Addr
}

func (i Identity) Validate() error {
	if i.UUID == "" {
		return errors.New("uuid is required")
	}
	if i.USID == "" {
		return errors.New("usid is required")
	}
	if !i.Address.IsValid() {
		return errors.New("address is required")
	}
	return nil
}

// Key derives the session key for this identity.
func (i Identity) Key() string {
	return SessionKey(i.UUID, i.USID)
}

// Session tracks the last time an identity was seen. The raw USID is never
// stored, only the derived key.
type Session struct {
	Key        string
	UUID       string
	Address    netip.Addr
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionKey is the hex BLAKE2b-256 of "uuid|usid".
func SessionKey(uuid, usid string) string {
	sum := blake2b.Sum256([]byte(uuid + "|" + usid))
	return hex.EncodeToString(sum[:])
}
