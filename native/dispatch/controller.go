package dispatch

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/rkumarchou/FYNTokens/core/errors"
	"github.com/rkumarchou/FYNTokens/core/events"
	"github.com/rkumarchou/FYNTokens/core/types"
	"github.com/rkumarchou/FYNTokens/native/approval"
)

const secondsPerDay = 86_400

var (
	errNilTransferor = stderrors.New("dispatch controller: transferor not configured")

	// ErrProtectedDestination rejects disbursements aimed at the bound
	// funding ledger; governance must not be able to redirect
	// value-creation calls.
	ErrProtectedDestination = stderrors.New("dispatch: destination is the bound funding ledger")
)

// Transferor performs the external transfer. It is the single point where
// control leaves the wallet's trust boundary.
type Transferor interface {
	Transfer(to types.Address, amount *uint256.Int, payload []byte) error
}

type participantSource interface {
	IsParticipant(identity types.Address) bool
}

type approvalGate interface {
	ConfirmAndCheck(fp types.Fingerprint, caller types.Address) (approval.Outcome, error)
	Reinstate(fp types.Fingerprint, o approval.Outcome) error
}

// PendingTransaction is a staged disbursement body awaiting quorum. It exists
// only between "quorum not yet reached" and "quorum reached or cancelled".
type PendingTransaction struct {
	Destination types.Address
	Amount      *uint256.Int
	Payload     []byte
}

// Status reports how a dispatch or confirm request resolved.
type Status uint8

const (
	// StatusExecuted means the external transfer happened in this call.
	StatusExecuted Status = iota
	// StatusPending means the request is staged awaiting further
	// confirmations.
	StatusPending
	// StatusUnknown means the fingerprint has no staged transaction: it was
	// already executed, invalidated, or belongs to a governance action.
	StatusUnknown
)

// Controller orchestrates outbound disbursements: fast path under the daily
// allowance, quorum path through the approval engine. A given authorized
// request executes against the external ledger exactly once.
type Controller struct {
	participants participantSource
	approvals    approvalGate
	transferor   Transferor
	ledgerAddr   types.Address

	emitter events.Emitter
	nowFn   func() int64

	dailyLimit   *uint256.Int
	spentToday   *uint256.Int
	lastResetDay uint64

	seq     uint64
	pending map[types.Fingerprint]*PendingTransaction
}

// NewController constructs a dispatch controller. The daily limit may be zero,
// which forces every disbursement onto the quorum path.
func NewController(participants participantSource, approvals approvalGate, transferor Transferor, dailyLimit *uint256.Int) *Controller {
	if dailyLimit == nil {
		dailyLimit = uint256.NewInt(0)
	}
	return &Controller{
		participants: participants,
		approvals:    approvals,
		transferor:   transferor,
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
		dailyLimit:   new(uint256.Int).Set(dailyLimit),
		spentToday:   uint256.NewInt(0),
		pending:      make(map[types.Fingerprint]*PendingTransaction),
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (c *Controller) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

// SetNowFunc overrides the time source used for daily-allowance rollover.
// Primarily intended for tests. Nil restores the wall clock.
func (c *Controller) SetNowFunc(now func() int64) {
	if now == nil {
		c.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	c.nowFn = now
}

// SetLedgerAddress records the funding ledger's address so disbursements to it
// can be refused.
func (c *Controller) SetLedgerAddress(addr types.Address) { c.ledgerAddr = addr }

func (c *Controller) emit(event *types.Event) {
	if c == nil || c.emitter == nil || event == nil {
		return
	}
	c.emitter.Emit(dispatchEvent{evt: event})
}

func (c *Controller) epochDay() uint64 {
	now := c.nowFn()
	if now < 0 {
		return 0
	}
	return uint64(now) / secondsPerDay
}

// rollover lazily resets the spent counter when the epoch day has advanced
// since the last spend.
func (c *Controller) rollover() {
	day := c.epochDay()
	if day != c.lastResetDay {
		c.spentToday = uint256.NewInt(0)
		c.lastResetDay = day
	}
}

// underLimit reports whether the amount fits in today's remaining allowance
// and returns the new spent total when it does.
func (c *Controller) underLimit(amount *uint256.Int) (*uint256.Int, bool) {
	c.rollover()
	newSpent, overflow := new(uint256.Int).AddOverflow(c.spentToday, amount)
	if overflow || newSpent.Gt(c.dailyLimit) {
		return nil, false
	}
	return newSpent, true
}

// fingerprint derives the dispatch identifier. The sequence number keeps
// textually identical requests from colliding across time.
func (c *Controller) fingerprint(caller, dest types.Address, amount *uint256.Int, payload []byte) types.Fingerprint {
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], c.seq)
	amountBytes := amount.Bytes32()
	hash := ethcrypto.Keccak256Hash(caller[:], dest[:], amountBytes[:], payload, seqBytes[:])
	return types.Fingerprint(hash)
}

// Dispatch takes a disbursement request and executes it immediately when the
// daily allowance admits it, otherwise stages it for quorum confirmation. The
// caller's own confirmation is recorded as part of staging, so a quorum of
// one executes immediately.
func (c *Controller) Dispatch(destination types.Address, amount *uint256.Int, payload []byte, caller types.Address) (types.Fingerprint, Status, error) {
	if c.transferor == nil {
		return types.Fingerprint{}, StatusUnknown, errNilTransferor
	}
	if !c.participants.IsParticipant(caller) {
		return types.Fingerprint{}, StatusUnknown, errors.ErrNotAuthorized
	}
	if !c.ledgerAddr.IsZero() && destination == c.ledgerAddr {
		return types.Fingerprint{}, StatusUnknown, ErrProtectedDestination
	}
	if amount == nil {
		amount = uint256.NewInt(0)
	}
	c.seq++
	fp := c.fingerprint(caller, destination, amount, payload)

	if newSpent, ok := c.underLimit(amount); ok {
		if err := c.transferor.Transfer(destination, amount, payload); err != nil {
			return fp, StatusUnknown, fmt.Errorf("%w: %v", errors.ErrExternalTransferFailed, err)
		}
		c.spentToday = newSpent
		c.emit(NewSingleTransactEvent(caller, destination, amount, payload))
		return fp, StatusExecuted, nil
	}

	c.pending[fp] = &PendingTransaction{
		Destination: destination,
		Amount:      new(uint256.Int).Set(amount),
		Payload:     append([]byte(nil), payload...),
	}
	outcome, err := c.approvals.ConfirmAndCheck(fp, caller)
	if err != nil {
		delete(c.pending, fp)
		return fp, StatusUnknown, err
	}
	switch outcome.Status {
	case approval.StatusApproved:
		if err := c.execute(fp, caller, outcome); err != nil {
			return fp, StatusUnknown, err
		}
		return fp, StatusExecuted, nil
	default:
		c.emit(NewConfirmationNeededEvent(fp, caller, destination, amount, payload))
		return fp, StatusPending, nil
	}
}

// Confirm records the caller's confirmation for a staged disbursement and
// executes the transfer when quorum is satisfied. A fingerprint with no
// staged body reports StatusUnknown.
func (c *Controller) Confirm(fp types.Fingerprint, caller types.Address) (Status, error) {
	if c.transferor == nil {
		return StatusUnknown, errNilTransferor
	}
	outcome, err := c.approvals.ConfirmAndCheck(fp, caller)
	if err != nil {
		return StatusUnknown, err
	}
	if outcome.Status != approval.StatusApproved {
		return StatusPending, nil
	}
	if _, ok := c.pending[fp]; !ok {
		return StatusUnknown, errors.ErrUnknownFingerprint
	}
	if err := c.execute(fp, caller, outcome); err != nil {
		return StatusUnknown, err
	}
	return StatusExecuted, nil
}

// execute performs the external transfer for a quorum-satisfied fingerprint.
// On transfer failure the staged body stays put and the consumed approval is
// reinstated so the operation can be retried; the error is fatal to the call.
func (c *Controller) execute(fp types.Fingerprint, caller types.Address, outcome approval.Outcome) error {
	tx, ok := c.pending[fp]
	if !ok {
		return errors.ErrUnknownFingerprint
	}
	if err := c.transferor.Transfer(tx.Destination, tx.Amount, tx.Payload); err != nil {
		if reinstateErr := c.approvals.Reinstate(fp, outcome); reinstateErr != nil {
			return fmt.Errorf("%w: %v (approval not reinstated: %v)", errors.ErrExternalTransferFailed, err, reinstateErr)
		}
		return fmt.Errorf("%w: %v", errors.ErrExternalTransferFailed, err)
	}
	delete(c.pending, fp)
	c.emit(NewMultiTransactEvent(caller, fp, tx.Destination, tx.Amount, tx.Payload))
	return nil
}

// Drop discards the staged bodies for fingerprints removed from the approval
// engine's live index, keeping both stores in lockstep.
func (c *Controller) Drop(fingerprints []types.Fingerprint) {
	for _, fp := range fingerprints {
		delete(c.pending, fp)
	}
}

// InvalidateAll discards every staged body.
func (c *Controller) InvalidateAll() {
	c.pending = make(map[types.Fingerprint]*PendingTransaction)
}

// PendingTransactionOf returns a copy of the staged body for the fingerprint.
func (c *Controller) PendingTransactionOf(fp types.Fingerprint) (*PendingTransaction, bool) {
	tx, ok := c.pending[fp]
	if !ok {
		return nil, false
	}
	return &PendingTransaction{
		Destination: tx.Destination,
		Amount:      new(uint256.Int).Set(tx.Amount),
		Payload:     append([]byte(nil), tx.Payload...),
	}, true
}

// PendingCount returns the number of staged bodies.
func (c *Controller) PendingCount() int { return len(c.pending) }

// SetDailyLimit replaces the fast-path allowance ceiling.
func (c *Controller) SetDailyLimit(limit *uint256.Int) {
	if limit == nil {
		limit = uint256.NewInt(0)
	}
	c.dailyLimit = new(uint256.Int).Set(limit)
}

// ResetSpentToday zeroes the running spend counter.
func (c *Controller) ResetSpentToday() {
	c.spentToday = uint256.NewInt(0)
}

// DailyLimit returns a copy of the fast-path ceiling.
func (c *Controller) DailyLimit() *uint256.Int { return new(uint256.Int).Set(c.dailyLimit) }

// SpentToday returns a copy of the running spend counter after applying any
// lazy day rollover.
func (c *Controller) SpentToday() *uint256.Int {
	c.rollover()
	return new(uint256.Int).Set(c.spentToday)
}

// Seq returns the dispatch freshness counter.
func (c *Controller) Seq() uint64 { return c.seq }

// RestoreState reloads persisted counters after a restart. Staged bodies are
// not restored: a restart behaves as a bulk invalidation.
func (c *Controller) RestoreState(seq uint64, spentToday *uint256.Int, lastResetDay uint64) {
	c.seq = seq
	if spentToday == nil {
		spentToday = uint256.NewInt(0)
	}
	c.spentToday = new(uint256.Int).Set(spentToday)
	c.lastResetDay = lastResetDay
}

// LastResetDay returns the epoch day of the last allowance reset.
func (c *Controller) LastResetDay() uint64 { return c.lastResetDay }
