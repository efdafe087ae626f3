package core

import (
	stderrors "errors"
	"fmt"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/rkumarchou/FYNTokens/core/errors"
	"github.com/rkumarchou/FYNTokens/core/events"
	"github.com/rkumarchou/FYNTokens/core/types"
	"github.com/rkumarchou/FYNTokens/native/approval"
	"github.com/rkumarchou/FYNTokens/native/dispatch"
	"github.com/rkumarchou/FYNTokens/native/registry"
	"github.com/rkumarchou/FYNTokens/native/vesting"
	"github.com/rkumarchou/FYNTokens/storage"
)

const secondsPerDay = 86_400

var (
	// ErrWalletDestroyed rejects every mutating call after a quorum-approved
	// kill.
	ErrWalletDestroyed = stderrors.New("wallet: destroyed")

	errNoFundingLedger = stderrors.New("wallet: funding ledger not configured")
	errTransferStopOn  = stderrors.New("wallet: funding ledger transfers not stopped")
	errSwapStillActive = stderrors.New("wallet: funding ledger swap still active")
)

// GovernanceStatus reports how a governance action resolved for the caller.
type GovernanceStatus uint8

const (
	// GovernancePending means the caller's confirmation was recorded but
	// quorum is not yet reached.
	GovernancePending GovernanceStatus = iota
	// GovernanceApplied means quorum was satisfied and the action executed.
	GovernanceApplied
)

// Params bundles the construction-time configuration of the wallet.
type Params struct {
	Owners               []types.Address
	Required             int
	Capacity             int
	DailyLimit           *uint256.Int
	ImmediatePercent     uint8
	Milestones           []vesting.Milestone
	AllowedBeneficiaries []types.Address
	LedgerAddress        types.Address

	Transferor dispatch.Transferor
	Funding    FundingLedger
	Crowdsale  CrowdsaleLedger
	Emitter    events.Emitter
	NowFn      func() int64
	Store      *storage.WalletStore
}

// Wallet composes the participant registry, approval engine, vesting policy
// and dispatch controller into the quorum-gated custody surface. All mutating
// entry points assume a single serialized caller; the RPC layer provides that
// lock.
type Wallet struct {
	registry   *registry.Registry
	approvals  *approval.Engine
	vesting    *vesting.Policy
	allowlist  *vesting.Allowlist
	dispatcher *dispatch.Controller

	transferor dispatch.Transferor
	funding    FundingLedger
	crowdsale  CrowdsaleLedger
	emitter    events.Emitter
	nowFn      func() int64
	store      *storage.WalletStore

	destroyed bool
}

// pendingInvalidator clears approval records and staged transaction bodies in
// lockstep whenever the registry mutates.
type pendingInvalidator struct {
	approvals  *approval.Engine
	dispatcher *dispatch.Controller
}

func (p pendingInvalidator) InvalidateAll() {
	dropped := p.approvals.InvalidateAll()
	p.dispatcher.Drop(dropped)
}

// New constructs and wires the wallet. When a store is configured and holds a
// snapshot, the persisted owner set and counters take precedence over the
// supplied construction values.
func New(p Params) (*Wallet, error) {
	if p.Transferor == nil {
		return nil, fmt.Errorf("wallet: transferor required")
	}
	owners := p.Owners
	required := p.Required
	dailyLimit := p.DailyLimit
	var snap *storage.Snapshot
	if p.Store != nil {
		loaded, ok, err := p.Store.Load()
		if err != nil {
			return nil, fmt.Errorf("wallet: load snapshot: %w", err)
		}
		if ok {
			snap = loaded
			owners = make([]types.Address, 0, len(snap.Owners))
			for _, raw := range snap.Owners {
				addr, err := types.ParseAddress(raw)
				if err != nil {
					return nil, fmt.Errorf("wallet: snapshot owner: %w", err)
				}
				owners = append(owners, addr)
			}
			required = snap.Required
			limit, err := uint256.FromDecimal(snap.DailyLimit)
			if err != nil {
				return nil, fmt.Errorf("wallet: snapshot daily limit: %w", err)
			}
			dailyLimit = limit
		}
	}

	reg, err := registry.New(owners, required, p.Capacity)
	if err != nil {
		return nil, err
	}
	policy, err := vesting.NewPolicy(p.ImmediatePercent, p.Milestones)
	if err != nil {
		return nil, err
	}
	approvals := approval.NewEngine(reg)
	dispatcher := dispatch.NewController(reg, approvals, p.Transferor, dailyLimit)
	dispatcher.SetLedgerAddress(p.LedgerAddress)

	w := &Wallet{
		registry:   reg,
		approvals:  approvals,
		vesting:    policy,
		allowlist:  vesting.NewAllowlist(p.AllowedBeneficiaries),
		dispatcher: dispatcher,
		transferor: p.Transferor,
		funding:    p.Funding,
		crowdsale:  p.Crowdsale,
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
		store:      p.Store,
	}
	if p.Emitter != nil {
		w.emitter = p.Emitter
		reg.SetEmitter(p.Emitter)
		approvals.SetEmitter(p.Emitter)
		dispatcher.SetEmitter(p.Emitter)
	}
	if p.NowFn != nil {
		w.nowFn = p.NowFn
		dispatcher.SetNowFunc(p.NowFn)
	}
	reg.SetInvalidator(pendingInvalidator{approvals: approvals, dispatcher: dispatcher})

	if snap != nil {
		spent, err := uint256.FromDecimal(snap.SpentToday)
		if err != nil {
			return nil, fmt.Errorf("wallet: snapshot spent counter: %w", err)
		}
		withdrawn, err := uint256.FromDecimal(snap.WithdrawnTotal)
		if err != nil {
			return nil, fmt.Errorf("wallet: snapshot withdrawn total: %w", err)
		}
		dispatcher.RestoreState(snap.DispatchSeq, spent, snap.LastResetDay)
		policy.RestoreWithdrawn(withdrawn, snap.WithdrawalOccurred)
		w.destroyed = snap.Destroyed
	}
	return w, nil
}

// SetNowFunc overrides the wallet clock. Primarily intended for tests.
func (w *Wallet) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	w.nowFn = now
	w.dispatcher.SetNowFunc(now)
}

func (w *Wallet) emit(event *types.Event) {
	if w == nil || w.emitter == nil || event == nil {
		return
	}
	w.emitter.Emit(walletEvent{evt: event})
}

func (w *Wallet) epochDay() uint64 {
	now := w.nowFn()
	if now < 0 {
		return 0
	}
	return uint64(now) / secondsPerDay
}

func (w *Wallet) persist() error {
	if w.store == nil {
		return nil
	}
	owners := w.registry.Owners()
	rendered := make([]string, 0, len(owners))
	for _, owner := range owners {
		rendered = append(rendered, owner.String())
	}
	snap := &storage.Snapshot{
		Owners:             rendered,
		Required:           w.registry.Required(),
		DailyLimit:         w.dispatcher.DailyLimit().Dec(),
		SpentToday:         w.dispatcher.SpentToday().Dec(),
		LastResetDay:       w.dispatcher.LastResetDay(),
		DispatchSeq:        w.dispatcher.Seq(),
		WithdrawnTotal:     w.vesting.WithdrawnTotal().Dec(),
		WithdrawalOccurred: w.vesting.RefundsDisabled(),
		Destroyed:          w.destroyed,
	}
	return w.store.Save(snap)
}

func (w *Wallet) guard(caller types.Address) error {
	if w.destroyed {
		return ErrWalletDestroyed
	}
	if !w.registry.IsParticipant(caller) {
		return errors.ErrNotAuthorized
	}
	return nil
}

// govern runs the caller's confirmation for a governance fingerprint and
// reports whether quorum is now satisfied.
func (w *Wallet) govern(fp types.Fingerprint, caller types.Address) (bool, error) {
	outcome, err := w.approvals.ConfirmAndCheck(fp, caller)
	if err != nil {
		return false, err
	}
	return outcome.Status == approval.StatusApproved, nil
}

// Governance fingerprints hash the full action payload with no freshness
// salt: identical parameters from different participants must collapse onto
// the same pending record.
func governanceFingerprint(action string, params ...[]byte) types.Fingerprint {
	data := make([]byte, 0, 64)
	data = append(data, []byte(action)...)
	for _, p := range params {
		data = append(data, p...)
	}
	return types.Fingerprint(ethcrypto.Keccak256Hash(data))
}

// AddOwner admits a new participant once quorum approves.
func (w *Wallet) AddOwner(caller, owner types.Address) (GovernanceStatus, error) {
	if err := w.guard(caller); err != nil {
		return GovernancePending, err
	}
	if w.registry.IsParticipant(owner) {
		return GovernancePending, errors.ErrAlreadyApplied
	}
	approved, err := w.govern(governanceFingerprint("addOwner", owner[:]), caller)
	if err != nil {
		return GovernancePending, err
	}
	if !approved {
		return GovernancePending, nil
	}
	if err := w.registry.Add(owner); err != nil {
		return GovernancePending, err
	}
	return GovernanceApplied, w.persist()
}

// RemoveOwner evicts a participant once quorum approves. The removal must
// leave enough participants to satisfy the quorum requirement.
func (w *Wallet) RemoveOwner(caller, owner types.Address) (GovernanceStatus, error) {
	if err := w.guard(caller); err != nil {
		return GovernancePending, err
	}
	if !w.registry.IsParticipant(owner) {
		return GovernancePending, errors.ErrAlreadyApplied
	}
	if w.registry.Required() > w.registry.NumOwners()-1 {
		return GovernancePending, errors.ErrQuorumUnsatisfiable
	}
	approved, err := w.govern(governanceFingerprint("removeOwner", owner[:]), caller)
	if err != nil {
		return GovernancePending, err
	}
	if !approved {
		return GovernancePending, nil
	}
	if err := w.registry.Remove(owner); err != nil {
		return GovernancePending, err
	}
	return GovernanceApplied, w.persist()
}

// ReplaceOwner hands a slot from one identity to another once quorum
// approves.
func (w *Wallet) ReplaceOwner(caller, from, to types.Address) (GovernanceStatus, error) {
	if err := w.guard(caller); err != nil {
		return GovernancePending, err
	}
	if w.registry.IsParticipant(to) || !w.registry.IsParticipant(from) {
		return GovernancePending, errors.ErrAlreadyApplied
	}
	approved, err := w.govern(governanceFingerprint("replaceOwner", from[:], to[:]), caller)
	if err != nil {
		return GovernancePending, err
	}
	if !approved {
		return GovernancePending, nil
	}
	if err := w.registry.Replace(from, to); err != nil {
		return GovernancePending, err
	}
	return GovernanceApplied, w.persist()
}

// ChangeRequirement updates the quorum size once quorum approves.
func (w *Wallet) ChangeRequirement(caller types.Address, required int) (GovernanceStatus, error) {
	if err := w.guard(caller); err != nil {
		return GovernancePending, err
	}
	if required < 1 || required > w.registry.NumOwners() {
		return GovernancePending, errors.ErrQuorumUnsatisfiable
	}
	approved, err := w.govern(governanceFingerprint("changeRequirement", []byte{byte(required)}), caller)
	if err != nil {
		return GovernancePending, err
	}
	if !approved {
		return GovernancePending, nil
	}
	if err := w.registry.SetRequired(required); err != nil {
		return GovernancePending, err
	}
	return GovernanceApplied, w.persist()
}

// SetDailyLimit replaces the fast-path allowance ceiling once quorum
// approves. The slot mapping is untouched, so pending approvals survive.
func (w *Wallet) SetDailyLimit(caller types.Address, limit *uint256.Int) (GovernanceStatus, error) {
	if err := w.guard(caller); err != nil {
		return GovernancePending, err
	}
	if limit == nil {
		limit = uint256.NewInt(0)
	}
	limitBytes := limit.Bytes32()
	approved, err := w.govern(governanceFingerprint("setDailyLimit", limitBytes[:]), caller)
	if err != nil {
		return GovernancePending, err
	}
	if !approved {
		return GovernancePending, nil
	}
	w.dispatcher.SetDailyLimit(limit)
	return GovernanceApplied, w.persist()
}

// ResetSpentToday zeroes the running spend counter once quorum approves.
func (w *Wallet) ResetSpentToday(caller types.Address) (GovernanceStatus, error) {
	if err := w.guard(caller); err != nil {
		return GovernancePending, err
	}
	approved, err := w.govern(governanceFingerprint("resetSpentToday"), caller)
	if err != nil {
		return GovernancePending, err
	}
	if !approved {
		return GovernancePending, nil
	}
	w.dispatcher.ResetSpentToday()
	return GovernanceApplied, w.persist()
}

// StopToken halts the funding ledger once quorum approves.
func (w *Wallet) StopToken(caller types.Address) (GovernanceStatus, error) {
	if err := w.guard(caller); err != nil {
		return GovernancePending, err
	}
	if w.funding == nil {
		return GovernancePending, errNoFundingLedger
	}
	approved, err := w.govern(governanceFingerprint("stopToken"), caller)
	if err != nil {
		return GovernancePending, err
	}
	if !approved {
		return GovernancePending, nil
	}
	if err := w.funding.Stop(); err != nil {
		return GovernancePending, fmt.Errorf("%w: %v", errors.ErrExternalTransferFailed, err)
	}
	return GovernanceApplied, nil
}

// DisableSwapLock releases the funding ledger's swap lock once quorum
// approves.
func (w *Wallet) DisableSwapLock(caller types.Address) (GovernanceStatus, error) {
	if err := w.guard(caller); err != nil {
		return GovernancePending, err
	}
	if w.funding == nil {
		return GovernancePending, errNoFundingLedger
	}
	approved, err := w.govern(governanceFingerprint("disableSwapLock"), caller)
	if err != nil {
		return GovernancePending, err
	}
	if !approved {
		return GovernancePending, nil
	}
	if err := w.funding.DisableSwapLock(); err != nil {
		return GovernancePending, fmt.Errorf("%w: %v", errors.ErrExternalTransferFailed, err)
	}
	return GovernanceApplied, nil
}

// Kill retires the wallet once quorum approves. The funding ledger must have
// stopped transfers and deactivated its swap first; destruction with live
// token flows would strand holders.
func (w *Wallet) Kill(caller, beneficiary types.Address) (GovernanceStatus, error) {
	if err := w.guard(caller); err != nil {
		return GovernancePending, err
	}
	if w.funding == nil {
		return GovernancePending, errNoFundingLedger
	}
	if !w.funding.TransferStop() {
		return GovernancePending, errTransferStopOn
	}
	if w.funding.SwapActive() {
		return GovernancePending, errSwapStillActive
	}
	approved, err := w.govern(governanceFingerprint("kill", beneficiary[:]), caller)
	if err != nil {
		return GovernancePending, err
	}
	if !approved {
		return GovernancePending, nil
	}
	w.destroyed = true
	w.emit(NewDestroyedEvent(beneficiary))
	return GovernanceApplied, w.persist()
}

// Deposit acknowledges value received by the wallet. Anyone may deposit.
func (w *Wallet) Deposit(from types.Address, amount *uint256.Int) error {
	if w.destroyed {
		return ErrWalletDestroyed
	}
	w.emit(NewDepositEvent(from, amount))
	return nil
}

// Dispatch routes a disbursement request through the fast path or the quorum
// path.
func (w *Wallet) Dispatch(destination types.Address, amount *uint256.Int, payload []byte, caller types.Address) (types.Fingerprint, dispatch.Status, error) {
	if w.destroyed {
		return types.Fingerprint{}, dispatch.StatusUnknown, ErrWalletDestroyed
	}
	fp, status, err := w.dispatcher.Dispatch(destination, amount, payload, caller)
	if err != nil {
		return fp, status, err
	}
	return fp, status, w.persist()
}

// Confirm records the caller's confirmation for a staged disbursement.
func (w *Wallet) Confirm(fp types.Fingerprint, caller types.Address) (dispatch.Status, error) {
	if w.destroyed {
		return dispatch.StatusUnknown, ErrWalletDestroyed
	}
	status, err := w.dispatcher.Confirm(fp, caller)
	if err != nil {
		return status, err
	}
	return status, w.persist()
}

// Revoke withdraws the caller's confirmation from a still-pending operation.
func (w *Wallet) Revoke(fp types.Fingerprint, caller types.Address) (bool, error) {
	if w.destroyed {
		return false, ErrWalletDestroyed
	}
	return w.approvals.Revoke(fp, caller)
}

// WithdrawVested releases vested funds to an allow-listed beneficiary. The
// vesting counters commit before the transfer and roll back if it fails, so
// the withdrawn total never reflects funds that did not move.
func (w *Wallet) WithdrawVested(caller, beneficiary types.Address, amount *uint256.Int) error {
	if err := w.guard(caller); err != nil {
		return err
	}
	if !w.allowlist.Allowed(beneficiary) {
		return errors.ErrNotAuthorized
	}
	var raised *uint256.Int
	if w.crowdsale != nil {
		raised = w.crowdsale.TotalRaised()
	}
	prevWithdrawn := w.vesting.WithdrawnTotal()
	prevOccurred := w.vesting.RefundsDisabled()
	if err := w.vesting.Withdraw(amount, w.epochDay(), raised); err != nil {
		return err
	}
	if err := w.transferor.Transfer(beneficiary, amount, nil); err != nil {
		w.vesting.RestoreWithdrawn(prevWithdrawn, prevOccurred)
		return fmt.Errorf("%w: %v", errors.ErrExternalTransferFailed, err)
	}
	w.emit(dispatch.NewSingleTransactEvent(caller, beneficiary, amount, nil))
	return w.persist()
}

// RefundsDisabled reports whether any vested withdrawal has succeeded. The
// crowdsale ledger must refuse to initiate refunds once this is true.
func (w *Wallet) RefundsDisabled() bool { return w.vesting.RefundsDisabled() }

// VestedAllowance returns the cumulative releasable amount at the given epoch
// day against the crowdsale's raised total.
func (w *Wallet) VestedAllowance(day uint64) (*uint256.Int, error) {
	var raised *uint256.Int
	if w.crowdsale != nil {
		raised = w.crowdsale.TotalRaised()
	}
	return w.vesting.Allowance(day, raised)
}

// IsOwner reports whether the identity is a current participant.
func (w *Wallet) IsOwner(identity types.Address) bool {
	return w.registry.IsParticipant(identity)
}

// HasConfirmed reports whether the identity has a live confirmation for the
// fingerprint.
func (w *Wallet) HasConfirmed(fp types.Fingerprint, identity types.Address) bool {
	return w.approvals.HasConfirmed(fp, identity)
}

// Owners returns the current participant set.
func (w *Wallet) Owners() []types.Address { return w.registry.Owners() }

// Required returns the quorum requirement.
func (w *Wallet) Required() int { return w.registry.Required() }

// NumOwners returns the registry's occupied high-water mark.
func (w *Wallet) NumOwners() int { return w.registry.NumOwners() }

// DailyLimit returns the fast-path ceiling.
func (w *Wallet) DailyLimit() *uint256.Int { return w.dispatcher.DailyLimit() }

// SpentToday returns the fast-path spend counter.
func (w *Wallet) SpentToday() *uint256.Int { return w.dispatcher.SpentToday() }

// WithdrawnTotal returns the cumulative vested amount withdrawn.
func (w *Wallet) WithdrawnTotal() *uint256.Int { return w.vesting.WithdrawnTotal() }

// PendingOperations returns the live approval fingerprints in creation order.
func (w *Wallet) PendingOperations() []types.Fingerprint { return w.approvals.Pending() }

// Destroyed reports whether a quorum-approved kill has retired the wallet.
func (w *Wallet) Destroyed() bool { return w.destroyed }
