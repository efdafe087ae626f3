package vesting

import (
	"github.com/rkumarchou/FYNTokens/core/types"
)

// Allowlist restricts which beneficiaries may receive vested withdrawals. It
// is deliberately separate from the participant registry: membership here
// grants no governance rights.
type Allowlist struct {
	members map[types.Address]struct{}
}

// NewAllowlist builds an allow-list from the given beneficiaries.
func NewAllowlist(members []types.Address) *Allowlist {
	set := make(map[types.Address]struct{}, len(members))
	for _, m := range members {
		if !m.IsZero() {
			set[m] = struct{}{}
		}
	}
	return &Allowlist{members: set}
}

// Allowed reports whether the beneficiary may receive vested funds. A nil or
// empty allow-list permits every destination.
func (a *Allowlist) Allowed(beneficiary types.Address) bool {
	if a == nil || len(a.members) == 0 {
		return true
	}
	_, ok := a.members[beneficiary]
	return ok
}
