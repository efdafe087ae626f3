package core

import (
	"github.com/holiman/uint256"

	"github.com/rkumarchou/FYNTokens/core/types"
)

// FundingLedger is the external token ledger the wallet governs. The wallet
// never accounts for the ledger's balances itself; it only gates the calls
// that change the ledger's lifecycle.
type FundingLedger interface {
	Mint(beneficiary types.Address, amount *uint256.Int) error
	CurrentRate() *uint256.Int
	TotalSupply() *uint256.Int
	TokenCap() *uint256.Int
	CreationTime() int64
	DisableSwapLock() error
	Stop() error
	TransferStop() bool
	SwapActive() bool
	ClearBalance(identity types.Address) error
}

// CrowdsaleLedger tracks contributions. The wallet consumes the raised total
// for vesting math and exposes RefundsDisabled so the ledger can refuse to
// start refunds once funds have been withdrawn.
type CrowdsaleLedger interface {
	TotalRaised() *uint256.Int
	ReduceRaised(amount *uint256.Int) error
}
