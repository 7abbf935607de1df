package verification

import (
	"net/netip"
	"time"
)

// Connection describes a single incoming player connection attempt.
// It is created once per attempt and never mutated.
type Connection struct {
	Name    string
	UUID    string
	USID    string
	Address netip.Addr
}

// Status is the outcome of a processor or a whole pipeline run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is produced by each processor and aggregated by the pipeline.
// Reason and Duration are only meaningful for failures.
type Result struct {
	Status Status
	// Reason is shown to the player verbatim when the connection is refused.
	Reason string
	// Duration is how long the rejection applies. Zero means unspecified.
	Duration time.Duration
}

// Success returns a passing result.
func Success() Result {
	return Result{Status: StatusSuccess}
}

// Failure returns a rejecting result with a player-facing reason.
func Failure(reason string, duration time.Duration) Result {
	return Result{Status: StatusFailure, Reason: reason, Duration: duration}
}

// Passed reports whether the result admits the connection.
func (r Result) Passed() bool {
	return r.Status != StatusFailure
}

// Priority orders processors. Higher priorities are evaluated first.
type Priority int

const (
	PriorityLowest Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityHighest
)

func (p Priority) String() string {
	switch p {
	case PriorityLowest:
		return "lowest"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityHighest:
		return "highest"
	}
	return "unknown"
}

// Player-facing reasons emitted by the pipeline itself.
const (
	ReasonCancelled   = "Verification was cancelled."
	ReasonUnavailable = "We are unable to verify your connection right now. Please try again in a few minutes."
)
