package core

import (
	"github.com/holiman/uint256"

	"github.com/rkumarchou/FYNTokens/core/types"
)

const (
	// EventTypeDeposit is emitted when value arrives at the wallet.
	EventTypeDeposit = "wallet.deposit"
	// EventTypeDestroyed is emitted when a quorum-approved kill retires the
	// wallet, naming the beneficiary of the remaining balance.
	EventTypeDestroyed = "wallet.destroyed"
)

type walletEvent struct {
	evt *types.Event
}

func (e walletEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e walletEvent) Event() *types.Event { return e.evt }

// NewDestroyedEvent returns the canonical payload recording wallet
// destruction.
func NewDestroyedEvent(beneficiary types.Address) *types.Event {
	return &types.Event{
		Type: EventTypeDestroyed,
		Attributes: map[string]string{
			"beneficiary": beneficiary.String(),
		},
	}
}

// NewDepositEvent returns the canonical payload acknowledging received value.
func NewDepositEvent(from types.Address, amount *uint256.Int) *types.Event {
	value := "0"
	if amount != nil {
		value = amount.Dec()
	}
	return &types.Event{
		Type: EventTypeDeposit,
		Attributes: map[string]string{
			"from":  from.String(),
			"value": value,
		},
	}
}
