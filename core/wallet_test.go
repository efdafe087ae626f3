package core

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/holiman/uint256"

	walleterrors "github.com/rkumarchou/FYNTokens/core/errors"
	"github.com/rkumarchou/FYNTokens/core/events"
	"github.com/rkumarchou/FYNTokens/core/types"
	"github.com/rkumarchou/FYNTokens/native/dispatch"
	"github.com/rkumarchou/FYNTokens/native/vesting"
	"github.com/rkumarchou/FYNTokens/storage"
)

type transferCall struct {
	to     types.Address
	amount *uint256.Int
}

type mockTransferor struct {
	calls   []transferCall
	failErr error
}

func (m *mockTransferor) Transfer(to types.Address, amount *uint256.Int, payload []byte) error {
	if m.failErr != nil {
		return m.failErr
	}
	if amount == nil {
		amount = uint256.NewInt(0)
	}
	m.calls = append(m.calls, transferCall{to: to, amount: new(uint256.Int).Set(amount)})
	return nil
}

type mockFunding struct {
	transferStop     bool
	swapActive       bool
	stopped          bool
	swapLockDisabled bool
}

func (m *mockFunding) Mint(types.Address, *uint256.Int) error { return nil }
func (m *mockFunding) CurrentRate() *uint256.Int              { return uint256.NewInt(0) }
func (m *mockFunding) TotalSupply() *uint256.Int              { return uint256.NewInt(0) }
func (m *mockFunding) TokenCap() *uint256.Int                 { return uint256.NewInt(0) }
func (m *mockFunding) CreationTime() int64                    { return 0 }
func (m *mockFunding) DisableSwapLock() error {
	m.swapLockDisabled = true
	return nil
}
func (m *mockFunding) Stop() error {
	m.stopped = true
	return nil
}
func (m *mockFunding) TransferStop() bool            { return m.transferStop }
func (m *mockFunding) SwapActive() bool              { return m.swapActive }
func (m *mockFunding) ClearBalance(types.Address) error { return nil }

type mockCrowdsale struct {
	raised *uint256.Int
}

func (m *mockCrowdsale) TotalRaised() *uint256.Int { return new(uint256.Int).Set(m.raised) }
func (m *mockCrowdsale) ReduceRaised(amount *uint256.Int) error {
	m.raised = new(uint256.Int).Sub(m.raised, amount)
	return nil
}

type recordingEmitter struct {
	seen []events.Event
}

func (r *recordingEmitter) Emit(e events.Event) { r.seen = append(r.seen, e) }

func (r *recordingEmitter) countType(eventType string) int {
	count := 0
	for _, e := range r.seen {
		if e.EventType() == eventType {
			count++
		}
	}
	return count
}

func newTestAddress(fill byte) types.Address {
	var addr types.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

type walletFixture struct {
	wallet     *Wallet
	transferor *mockTransferor
	funding    *mockFunding
	crowdsale  *mockCrowdsale
	emitter    *recordingEmitter
	now        int64
}

func newWalletFixture(t *testing.T, ownerCount, required int, dailyLimit uint64, store *storage.WalletStore) *walletFixture {
	t.Helper()
	owners := make([]types.Address, 0, ownerCount)
	for i := 0; i < ownerCount; i++ {
		owners = append(owners, newTestAddress(byte(i+1)))
	}
	f := &walletFixture{
		transferor: &mockTransferor{},
		funding:    &mockFunding{},
		crowdsale:  &mockCrowdsale{raised: uint256.NewInt(1000)},
		emitter:    &recordingEmitter{},
		now:        5 * secondsPerDay,
	}
	wallet, err := New(Params{
		Owners:           owners,
		Required:         required,
		DailyLimit:       uint256.NewInt(dailyLimit),
		ImmediatePercent: 60,
		Milestones: []vesting.Milestone{
			{Day: 10, Percent: 20},
			{Day: 20, Percent: 20},
		},
		Transferor: f.transferor,
		Funding:    f.funding,
		Crowdsale:  f.crowdsale,
		Emitter:    f.emitter,
		NowFn:      func() int64 { return f.now },
		Store:      store,
	})
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	wallet.SetNowFunc(func() int64 { return f.now })
	f.wallet = wallet
	return f
}

func TestGovernanceAddOwnerQuorum(t *testing.T) {
	f := newWalletFixture(t, 3, 2, 0, nil)
	alice := newTestAddress(0x01)
	bob := newTestAddress(0x02)
	newcomer := newTestAddress(0x0A)

	status, err := f.wallet.AddOwner(alice, newcomer)
	if err != nil {
		t.Fatalf("first addOwner: %v", err)
	}
	if status != GovernancePending {
		t.Fatalf("expected pending after one confirmation, got %v", status)
	}
	if f.wallet.IsOwner(newcomer) {
		t.Fatalf("owner added before quorum")
	}

	// Identical parameters from a second participant collapse onto the
	// same pending record and satisfy quorum.
	status, err = f.wallet.AddOwner(bob, newcomer)
	if err != nil {
		t.Fatalf("second addOwner: %v", err)
	}
	if status != GovernanceApplied {
		t.Fatalf("expected applied on quorum, got %v", status)
	}
	if !f.wallet.IsOwner(newcomer) {
		t.Fatalf("owner missing after quorum")
	}
	if f.wallet.NumOwners() != 4 {
		t.Fatalf("numOwners = %d, want 4", f.wallet.NumOwners())
	}

	if _, err := f.wallet.AddOwner(alice, newcomer); !errors.Is(err, walleterrors.ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied re-adding, got %v", err)
	}
}

func TestGovernanceRejectsOutsiders(t *testing.T) {
	f := newWalletFixture(t, 3, 2, 0, nil)
	outsider := newTestAddress(0x77)
	if _, err := f.wallet.AddOwner(outsider, newTestAddress(0x0A)); !errors.Is(err, walleterrors.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := f.wallet.ChangeRequirement(outsider, 1); !errors.Is(err, walleterrors.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestChangeRequirementValidation(t *testing.T) {
	f := newWalletFixture(t, 3, 2, 0, nil)
	alice := newTestAddress(0x01)
	if _, err := f.wallet.ChangeRequirement(alice, 5); !errors.Is(err, walleterrors.ErrQuorumUnsatisfiable) {
		t.Fatalf("expected ErrQuorumUnsatisfiable, got %v", err)
	}
	if _, err := f.wallet.ChangeRequirement(alice, 0); !errors.Is(err, walleterrors.ErrQuorumUnsatisfiable) {
		t.Fatalf("expected ErrQuorumUnsatisfiable for 0, got %v", err)
	}
}

func TestGovernanceMutationInvalidatesPendingState(t *testing.T) {
	f := newWalletFixture(t, 3, 2, 0, nil)
	alice := newTestAddress(0x01)
	bob := newTestAddress(0x02)
	carol := newTestAddress(0x03)
	dest := newTestAddress(0x50)

	fp, status, err := f.wallet.Dispatch(dest, uint256.NewInt(100), nil, alice)
	if err != nil || status != dispatch.StatusPending {
		t.Fatalf("dispatch: status=%v err=%v", status, err)
	}
	if len(f.wallet.PendingOperations()) != 1 {
		t.Fatalf("expected one pending operation")
	}

	// Quorum lowers the requirement; every pending record and staged body
	// computed against the old slot mapping dies with it.
	if _, err := f.wallet.ChangeRequirement(bob, 1); err != nil {
		t.Fatalf("changeRequirement bob: %v", err)
	}
	if _, err := f.wallet.ChangeRequirement(carol, 1); err != nil {
		t.Fatalf("changeRequirement carol: %v", err)
	}
	if f.wallet.Required() != 1 {
		t.Fatalf("required = %d, want 1", f.wallet.Required())
	}
	if len(f.wallet.PendingOperations()) != 0 {
		t.Fatalf("pending operations survived governance mutation")
	}

	// The stale fingerprint no longer resolves a transfer.
	if _, err := f.wallet.Confirm(fp, bob); !errors.Is(err, walleterrors.ErrUnknownFingerprint) {
		t.Fatalf("expected ErrUnknownFingerprint, got %v", err)
	}
	if len(f.transferor.calls) != 0 {
		t.Fatalf("invalidated dispatch still transferred")
	}
}

func TestDispatchConfirmScenario(t *testing.T) {
	// Three participants, requirement two, amount above the daily limit:
	// the staged transfer executes exactly once, on the second confirm.
	f := newWalletFixture(t, 3, 2, 50, nil)
	alice := newTestAddress(0x01)
	bob := newTestAddress(0x02)
	dest := newTestAddress(0x50)

	fp, status, err := f.wallet.Dispatch(dest, uint256.NewInt(500), nil, alice)
	if err != nil || status != dispatch.StatusPending {
		t.Fatalf("dispatch: status=%v err=%v", status, err)
	}
	status, err = f.wallet.Confirm(fp, bob)
	if err != nil || status != dispatch.StatusExecuted {
		t.Fatalf("confirm: status=%v err=%v", status, err)
	}
	if len(f.transferor.calls) != 1 {
		t.Fatalf("expected exactly one transfer, got %d", len(f.transferor.calls))
	}
}

func TestRevokeThroughWallet(t *testing.T) {
	f := newWalletFixture(t, 3, 2, 0, nil)
	alice := newTestAddress(0x01)
	dest := newTestAddress(0x50)

	fp, _, err := f.wallet.Dispatch(dest, uint256.NewInt(10), nil, alice)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !f.wallet.HasConfirmed(fp, alice) {
		t.Fatalf("initiator confirmation missing")
	}
	revoked, err := f.wallet.Revoke(fp, alice)
	if err != nil || !revoked {
		t.Fatalf("revoke: revoked=%v err=%v", revoked, err)
	}
	if f.wallet.HasConfirmed(fp, alice) {
		t.Fatalf("confirmation survived revoke")
	}
}

func TestWithdrawVested(t *testing.T) {
	f := newWalletFixture(t, 3, 2, 0, nil)
	alice := newTestAddress(0x01)
	beneficiary := newTestAddress(0x60)

	// Day 5: immediate tranche only, 60% of 1000.
	if err := f.wallet.WithdrawVested(alice, beneficiary, uint256.NewInt(601)); !errors.Is(err, walleterrors.ErrInsufficientVested) {
		t.Fatalf("expected ErrInsufficientVested, got %v", err)
	}
	if err := f.wallet.WithdrawVested(alice, beneficiary, uint256.NewInt(600)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if len(f.transferor.calls) != 1 || f.transferor.calls[0].amount.Uint64() != 600 {
		t.Fatalf("unexpected transfer calls: %+v", f.transferor.calls)
	}
	if !f.wallet.RefundsDisabled() {
		t.Fatalf("refund latch must flip on first withdrawal")
	}

	// Day 15 unlocks the next tranche.
	f.now = 15 * secondsPerDay
	if err := f.wallet.WithdrawVested(alice, beneficiary, uint256.NewInt(200)); err != nil {
		t.Fatalf("withdraw second tranche: %v", err)
	}
	if f.wallet.WithdrawnTotal().Uint64() != 800 {
		t.Fatalf("withdrawnTotal = %d, want 800", f.wallet.WithdrawnTotal().Uint64())
	}
}

func TestWithdrawVestedRollsBackOnTransferFailure(t *testing.T) {
	f := newWalletFixture(t, 3, 2, 0, nil)
	alice := newTestAddress(0x01)
	beneficiary := newTestAddress(0x60)

	f.transferor.failErr = fmt.Errorf("destination unreachable")
	if err := f.wallet.WithdrawVested(alice, beneficiary, uint256.NewInt(100)); !errors.Is(err, walleterrors.ErrExternalTransferFailed) {
		t.Fatalf("expected ErrExternalTransferFailed, got %v", err)
	}
	if !f.wallet.WithdrawnTotal().IsZero() {
		t.Fatalf("withdrawn total must roll back, got %s", f.wallet.WithdrawnTotal().Dec())
	}
	if f.wallet.RefundsDisabled() {
		t.Fatalf("refund latch must roll back with the failed transfer")
	}
}

func TestWithdrawVestedAllowlist(t *testing.T) {
	owners := []types.Address{newTestAddress(0x01), newTestAddress(0x02)}
	allowed := newTestAddress(0x60)
	other := newTestAddress(0x61)
	transferor := &mockTransferor{}
	wallet, err := New(Params{
		Owners:               owners,
		Required:             1,
		ImmediatePercent:     100,
		AllowedBeneficiaries: []types.Address{allowed},
		Transferor:           transferor,
		Crowdsale:            &mockCrowdsale{raised: uint256.NewInt(1000)},
	})
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	if err := wallet.WithdrawVested(owners[0], other, uint256.NewInt(10)); !errors.Is(err, walleterrors.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for non-listed beneficiary, got %v", err)
	}
	if err := wallet.WithdrawVested(owners[0], allowed, uint256.NewInt(10)); err != nil {
		t.Fatalf("withdraw to listed beneficiary: %v", err)
	}
}

func TestKillRequiresStoppedLedger(t *testing.T) {
	f := newWalletFixture(t, 3, 2, 0, nil)
	alice := newTestAddress(0x01)
	bob := newTestAddress(0x02)
	beneficiary := newTestAddress(0x60)

	if _, err := f.wallet.Kill(alice, beneficiary); err == nil {
		t.Fatalf("kill must fail while transfers run")
	}
	f.funding.transferStop = true
	f.funding.swapActive = true
	if _, err := f.wallet.Kill(alice, beneficiary); err == nil {
		t.Fatalf("kill must fail while the swap is active")
	}
	f.funding.swapActive = false

	status, err := f.wallet.Kill(alice, beneficiary)
	if err != nil || status != GovernancePending {
		t.Fatalf("first kill: status=%v err=%v", status, err)
	}
	status, err = f.wallet.Kill(bob, beneficiary)
	if err != nil || status != GovernanceApplied {
		t.Fatalf("second kill: status=%v err=%v", status, err)
	}
	if !f.wallet.Destroyed() {
		t.Fatalf("wallet must be destroyed after quorum kill")
	}
	if f.emitter.countType(EventTypeDestroyed) != 1 {
		t.Fatalf("expected one destroyed event")
	}
	if _, _, err := f.wallet.Dispatch(beneficiary, uint256.NewInt(1), nil, alice); !errors.Is(err, ErrWalletDestroyed) {
		t.Fatalf("expected ErrWalletDestroyed, got %v", err)
	}
}

func TestStopTokenAndSwapLock(t *testing.T) {
	f := newWalletFixture(t, 2, 1, 0, nil)
	alice := newTestAddress(0x01)

	if status, err := f.wallet.StopToken(alice); err != nil || status != GovernanceApplied {
		t.Fatalf("stopToken: status=%v err=%v", status, err)
	}
	if !f.funding.stopped {
		t.Fatalf("funding ledger not stopped")
	}
	if status, err := f.wallet.DisableSwapLock(alice); err != nil || status != GovernanceApplied {
		t.Fatalf("disableSwapLock: status=%v err=%v", status, err)
	}
	if !f.funding.swapLockDisabled {
		t.Fatalf("swap lock not released")
	}
}

func TestDepositEmitsEvent(t *testing.T) {
	f := newWalletFixture(t, 2, 1, 0, nil)
	if err := f.wallet.Deposit(newTestAddress(0x42), uint256.NewInt(777)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if f.emitter.countType(EventTypeDeposit) != 1 {
		t.Fatalf("expected one deposit event")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := storage.NewWalletStore(storage.NewMemDB())
	f := newWalletFixture(t, 3, 2, 900, store)
	alice := newTestAddress(0x01)
	bob := newTestAddress(0x02)
	newcomer := newTestAddress(0x0A)
	dest := newTestAddress(0x50)

	if _, err := f.wallet.AddOwner(alice, newcomer); err != nil {
		t.Fatalf("addOwner alice: %v", err)
	}
	if _, err := f.wallet.AddOwner(bob, newcomer); err != nil {
		t.Fatalf("addOwner bob: %v", err)
	}
	if _, _, err := f.wallet.Dispatch(dest, uint256.NewInt(300), nil, alice); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := f.wallet.WithdrawVested(alice, dest, uint256.NewInt(100)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	// A fresh wallet over the same store resumes from the snapshot, not
	// from the construction parameters.
	restored, err := New(Params{
		Owners:           []types.Address{newTestAddress(0x01)},
		Required:         1,
		DailyLimit:       uint256.NewInt(1),
		ImmediatePercent: 60,
		Milestones: []vesting.Milestone{
			{Day: 10, Percent: 20},
			{Day: 20, Percent: 20},
		},
		Transferor: &mockTransferor{},
		Crowdsale:  f.crowdsale,
		Store:      store,
	})
	if err != nil {
		t.Fatalf("restore wallet: %v", err)
	}
	if !restored.IsOwner(newcomer) {
		t.Fatalf("restored wallet lost the added owner")
	}
	if restored.Required() != 2 {
		t.Fatalf("restored required = %d, want 2", restored.Required())
	}
	if restored.DailyLimit().Uint64() != 900 {
		t.Fatalf("restored dailyLimit = %d, want 900", restored.DailyLimit().Uint64())
	}
	if restored.WithdrawnTotal().Uint64() != 100 {
		t.Fatalf("restored withdrawnTotal = %d, want 100", restored.WithdrawnTotal().Uint64())
	}
	if !restored.RefundsDisabled() {
		t.Fatalf("refund latch must persist")
	}
	if len(restored.PendingOperations()) != 0 {
		t.Fatalf("pending approvals must not survive a restart")
	}
}
