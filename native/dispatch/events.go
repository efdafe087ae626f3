package dispatch

import (
	"encoding/hex"

	"github.com/holiman/uint256"

	"github.com/rkumarchou/FYNTokens/core/types"
)

const (
	EventTypeSingleTransact     = "wallet.transact.single"
	EventTypeMultiTransact      = "wallet.transact.multi"
	EventTypeConfirmationNeeded = "wallet.confirmation.needed"
)

type dispatchEvent struct {
	evt *types.Event
}

func (e dispatchEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e dispatchEvent) Event() *types.Event { return e.evt }

func amountString(amount *uint256.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.Dec()
}

// NewSingleTransactEvent returns the canonical payload for a fast-path
// disbursement executed under the daily allowance.
func NewSingleTransactEvent(owner, to types.Address, amount *uint256.Int, payload []byte) *types.Event {
	return &types.Event{
		Type: EventTypeSingleTransact,
		Attributes: map[string]string{
			"owner": owner.String(),
			"to":    to.String(),
			"value": amountString(amount),
			"data":  hex.EncodeToString(payload),
		},
	}
}

// NewMultiTransactEvent returns the canonical payload for a quorum-path
// disbursement executed after sufficient confirmations.
func NewMultiTransactEvent(owner types.Address, fp types.Fingerprint, to types.Address, amount *uint256.Int, payload []byte) *types.Event {
	return &types.Event{
		Type: EventTypeMultiTransact,
		Attributes: map[string]string{
			"owner":     owner.String(),
			"operation": fp.String(),
			"to":        to.String(),
			"value":     amountString(amount),
			"data":      hex.EncodeToString(payload),
		},
	}
}

// NewConfirmationNeededEvent returns the canonical payload notifying the
// remaining participants that a staged disbursement awaits confirmation.
func NewConfirmationNeededEvent(fp types.Fingerprint, initiator, to types.Address, amount *uint256.Int, payload []byte) *types.Event {
	return &types.Event{
		Type: EventTypeConfirmationNeeded,
		Attributes: map[string]string{
			"operation": fp.String(),
			"initiator": initiator.String(),
			"to":        to.String(),
			"value":     amountString(amount),
			"data":      hex.EncodeToString(payload),
		},
	}
}
