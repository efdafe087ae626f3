package registry

import (
	"strconv"

	"github.com/rkumarchou/FYNTokens/core/types"
)

const (
	EventTypeOwnerAdded         = "wallet.owner.added"
	EventTypeOwnerRemoved       = "wallet.owner.removed"
	EventTypeOwnerChanged       = "wallet.owner.changed"
	EventTypeRequirementChanged = "wallet.requirement.changed"
)

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

// NewOwnerAddedEvent returns the canonical payload for a participant joining
// the registry.
func NewOwnerAddedEvent(owner types.Address) *types.Event {
	return &types.Event{
		Type:       EventTypeOwnerAdded,
		Attributes: map[string]string{"owner": owner.String()},
	}
}

// NewOwnerRemovedEvent returns the canonical payload for a participant leaving
// the registry.
func NewOwnerRemovedEvent(owner types.Address) *types.Event {
	return &types.Event{
		Type:       EventTypeOwnerRemoved,
		Attributes: map[string]string{"owner": owner.String()},
	}
}

// NewOwnerChangedEvent returns the canonical payload for an in-place slot
// handover.
func NewOwnerChangedEvent(from, to types.Address) *types.Event {
	return &types.Event{
		Type: EventTypeOwnerChanged,
		Attributes: map[string]string{
			"oldOwner": from.String(),
			"newOwner": to.String(),
		},
	}
}

// NewRequirementChangedEvent returns the canonical payload for a quorum
// requirement update.
func NewRequirementChangedEvent(required int) *types.Event {
	return &types.Event{
		Type:       EventTypeRequirementChanged,
		Attributes: map[string]string{"required": strconv.Itoa(required)},
	}
}
