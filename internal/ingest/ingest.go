package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"raidguard/internal/model"
)

// Gate is the slice of the engine the trigger sources need.
type Gate interface {
	IsBypassed(actor uuid.UUID) bool
	TryReserve(actor uuid.UUID, bypass bool, source string) model.Decision
}

// Resolve validates the event's actor id, resolves the bypass flag and
// runs the reservation.
func Resolve(gate Gate, ev model.TriggerEvent) (model.Decision, error) {
	actor, err := uuid.Parse(strings.TrimSpace(ev.ActorID))
	if err != nil {
		return model.Decision{}, fmt.Errorf("invalid actor id %q: %w", ev.ActorID, err)
	}
	bypass := gate.IsBypassed(actor)
	return gate.TryReserve(actor, bypass, ev.Source), nil
}
