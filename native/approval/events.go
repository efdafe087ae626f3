package approval

import (
	"github.com/rkumarchou/FYNTokens/core/types"
)

const (
	EventTypeConfirmation = "wallet.confirmation"
	EventTypeRevoke       = "wallet.revoke"
)

type approvalEvent struct {
	evt *types.Event
}

func (e approvalEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e approvalEvent) Event() *types.Event { return e.evt }

// NewConfirmationEvent returns the canonical payload emitted when a
// participant confirms an operation.
func NewConfirmationEvent(owner types.Address, fp types.Fingerprint) *types.Event {
	return &types.Event{
		Type: EventTypeConfirmation,
		Attributes: map[string]string{
			"owner":     owner.String(),
			"operation": fp.String(),
		},
	}
}

// NewRevokeEvent returns the canonical payload emitted when a participant
// withdraws a confirmation.
func NewRevokeEvent(owner types.Address, fp types.Fingerprint) *types.Event {
	return &types.Event{
		Type: EventTypeRevoke,
		Attributes: map[string]string{
			"owner":     owner.String(),
			"operation": fp.String(),
		},
	}
}
