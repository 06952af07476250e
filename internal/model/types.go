package model

import (
	"time"

	"github.com/google/uuid"
)

type Verdict string

const (
	VerdictAllowed  Verdict = "allowed"
	VerdictDenied   Verdict = "denied"
	VerdictBypassed Verdict = "bypassed"
)

// Decision is the outcome of one reservation attempt.
type Decision struct {
	Timestamp time.Time     `json:"timestamp"`
	ActorID   uuid.UUID     `json:"actor_id"`
	Verdict   Verdict       `json:"verdict"`
	Remaining time.Duration `json:"remaining,omitempty"`
	ExpiresAt time.Time     `json:"expires_at,omitzero"`
	Source    string        `json:"source,omitempty"`
}

// Allowed reports whether the guarded action may proceed.
func (d Decision) Allowed() bool {
	return d.Verdict == VerdictAllowed || d.Verdict == VerdictBypassed
}

// TriggerEvent is one attempt to start the guarded action, as delivered
// by an ingest source before the actor id has been validated.
type TriggerEvent struct {
	EventID string `json:"event_id,omitempty"`
	ActorID string `json:"actor_id"`
	Source  string `json:"source,omitempty"`
	Raw     string `json:"raw,omitempty"`
}
