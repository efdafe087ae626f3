package approval

import (
	stderrors "errors"

	"github.com/bits-and-blooms/bitset"

	"github.com/rkumarchou/FYNTokens/core/errors"
	"github.com/rkumarchou/FYNTokens/core/events"
	"github.com/rkumarchou/FYNTokens/core/types"
)

var errNilParticipants = stderrors.New("approval engine: participant source not configured")

// participantSource is the registry surface the engine depends on: identity to
// bit-index translation and the quorum size snapshot for new records.
type participantSource interface {
	SlotOf(identity types.Address) int
	Required() int
	Capacity() int
}

// Status reports the outcome of a confirmation attempt.
type Status uint8

const (
	// StatusPending means the confirmation was recorded but quorum is not
	// yet reached.
	StatusPending Status = iota
	// StatusAlreadyPending means the caller had already confirmed; nothing
	// changed.
	StatusAlreadyPending
	// StatusApproved means this confirmation satisfied quorum and the
	// record was resolved.
	StatusApproved
)

// record tracks one in-flight approval. It exists only while needed > 0;
// resolution deletes it immediately.
type record struct {
	needed int
	done   *bitset.BitSet
}

// Outcome carries the confirmation status plus, on approval, the resolved
// record so a failed follow-up effect can reinstate it.
type Outcome struct {
	Status   Status
	resolved *record
}

// Engine tracks in-flight multi-party approvals keyed by operation
// fingerprint. Confirmation bits are indexed by registry slot, so any change
// to the slot mapping or quorum size must be followed by InvalidateAll.
type Engine struct {
	participants participantSource
	emitter      events.Emitter
	pending      map[types.Fingerprint]*record
	index        []types.Fingerprint
}

// NewEngine constructs an approval engine bound to the given participant
// source.
func NewEngine(participants participantSource) *Engine {
	return &Engine{
		participants: participants,
		emitter:      events.NoopEmitter{},
		pending:      make(map[types.Fingerprint]*record),
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(approvalEvent{evt: event})
}

// ConfirmAndCheck records the caller's confirmation of the fingerprint and
// reports whether quorum is now satisfied. A record is created on first
// contact with the quorum requirement snapshotted at that moment; the
// confirmation that brings the needed count to zero deletes the record and
// reports StatusApproved, and the gated action must then run exactly once.
func (e *Engine) ConfirmAndCheck(fp types.Fingerprint, caller types.Address) (Outcome, error) {
	if e == nil || e.participants == nil {
		return Outcome{}, errNilParticipants
	}
	slot := e.participants.SlotOf(caller)
	if slot == 0 {
		return Outcome{}, errors.ErrNotAuthorized
	}
	rec, ok := e.pending[fp]
	if !ok {
		rec = &record{
			needed: e.participants.Required(),
			done:   bitset.New(uint(e.participants.Capacity() + 1)),
		}
		e.pending[fp] = rec
		e.index = append(e.index, fp)
	}
	bit := uint(slot)
	if rec.done.Test(bit) {
		return Outcome{Status: StatusAlreadyPending}, nil
	}
	e.emit(NewConfirmationEvent(caller, fp))
	if rec.needed == 1 {
		delete(e.pending, fp)
		e.dropFromIndex(fp)
		return Outcome{Status: StatusApproved, resolved: rec}, nil
	}
	rec.needed--
	rec.done.Set(bit)
	return Outcome{Status: StatusPending}, nil
}

// Reinstate restores an approval record that was resolved by ConfirmAndCheck
// but whose gated external effect failed. The record returns to the exact
// state it held before the resolving call, so the operation can be retried.
func (e *Engine) Reinstate(fp types.Fingerprint, o Outcome) error {
	if o.Status != StatusApproved || o.resolved == nil {
		return stderrors.New("approval engine: outcome is not a resolved approval")
	}
	if _, ok := e.pending[fp]; ok {
		return stderrors.New("approval engine: fingerprint already tracked")
	}
	e.pending[fp] = o.resolved
	e.index = append(e.index, fp)
	return nil
}

// Revoke withdraws the caller's confirmation. It reports false without error
// when there is nothing to revoke: no active record, or the caller's bit is
// unset. Revocation never deletes the record itself.
func (e *Engine) Revoke(fp types.Fingerprint, caller types.Address) (bool, error) {
	if e == nil || e.participants == nil {
		return false, errNilParticipants
	}
	slot := e.participants.SlotOf(caller)
	if slot == 0 {
		return false, errors.ErrNotAuthorized
	}
	rec, ok := e.pending[fp]
	if !ok || !rec.done.Test(uint(slot)) {
		return false, nil
	}
	rec.done.Clear(uint(slot))
	rec.needed++
	e.emit(NewRevokeEvent(caller, fp))
	return true, nil
}

// HasConfirmed reports whether the identity's confirmation is currently
// recorded against the fingerprint.
func (e *Engine) HasConfirmed(fp types.Fingerprint, identity types.Address) bool {
	if e == nil || e.participants == nil {
		return false
	}
	slot := e.participants.SlotOf(identity)
	if slot == 0 {
		return false
	}
	rec, ok := e.pending[fp]
	if !ok {
		return false
	}
	return rec.done.Test(uint(slot))
}

// NeededCount returns the remaining confirmations for the fingerprint, or
// false when no record is live.
func (e *Engine) NeededCount(fp types.Fingerprint) (int, bool) {
	rec, ok := e.pending[fp]
	if !ok {
		return 0, false
	}
	return rec.needed, true
}

// Pending returns the live fingerprints in creation order.
func (e *Engine) Pending() []types.Fingerprint {
	out := make([]types.Fingerprint, len(e.index))
	copy(out, e.index)
	return out
}

// InvalidateAll deletes every live record and returns the fingerprints that
// were dropped so callers can discard any staged transaction bodies in
// lockstep.
func (e *Engine) InvalidateAll() []types.Fingerprint {
	dropped := e.index
	for _, fp := range dropped {
		delete(e.pending, fp)
	}
	e.index = nil
	return dropped
}

func (e *Engine) dropFromIndex(fp types.Fingerprint) {
	for i, candidate := range e.index {
		if candidate == fp {
			e.index = append(e.index[:i], e.index[i+1:]...)
			return
		}
	}
}
