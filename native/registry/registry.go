package registry

import (
	"fmt"

	"github.com/rkumarchou/FYNTokens/core/errors"
	"github.com/rkumarchou/FYNTokens/core/events"
	"github.com/rkumarchou/FYNTokens/core/types"
)

// DefaultCapacity bounds the slot table. The cap keeps approval bitmasks at a
// fixed width; slots are indexed 1..capacity with slot 0 reserved as the
// "no owner" sentinel.
const DefaultCapacity = 250

// Invalidator is notified whenever a registry mutation changes the
// slot-to-participant mapping or the quorum requirement. Pending approvals
// recorded against the old mapping must not survive such a change: replaying a
// stale confirmation against remapped slots would approve the wrong
// participant or the wrong threshold.
type Invalidator interface {
	InvalidateAll()
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateAll() {}

// Registry is the fixed-capacity slot table mapping participant identities to
// stable indices. slotOf and ownerAt are mutual inverses restricted to
// occupied slots; numOwners is the high-water mark of the occupied region.
type Registry struct {
	capacity  int
	required  int
	numOwners int
	ownerAt   []types.Address
	slotOf    map[types.Address]int

	emitter     events.Emitter
	invalidator Invalidator
}

// New constructs a registry seeded with the initial participant set. The
// quorum requirement must be satisfiable by the initial set.
func New(owners []types.Address, required, capacity int) (*Registry, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("registry: at least one participant required")
	}
	if len(owners) > capacity {
		return nil, fmt.Errorf("registry: %d participants exceed capacity %d", len(owners), capacity)
	}
	if required < 1 || required > len(owners) {
		return nil, fmt.Errorf("registry: requirement %d out of range [1,%d]", required, len(owners))
	}
	r := &Registry{
		capacity:    capacity,
		required:    required,
		ownerAt:     make([]types.Address, capacity+1),
		slotOf:      make(map[types.Address]int, len(owners)),
		emitter:     events.NoopEmitter{},
		invalidator: noopInvalidator{},
	}
	for _, owner := range owners {
		if owner.IsZero() {
			return nil, fmt.Errorf("registry: zero address cannot be a participant")
		}
		if _, ok := r.slotOf[owner]; ok {
			return nil, fmt.Errorf("registry: duplicate participant %s", owner)
		}
		r.numOwners++
		r.ownerAt[r.numOwners] = owner
		r.slotOf[owner] = r.numOwners
	}
	return r, nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetInvalidator wires the hook that clears pending approvals and staged
// transactions on every mutation. Passing nil resets it to a no-op.
func (r *Registry) SetInvalidator(inv Invalidator) {
	if inv == nil {
		r.invalidator = noopInvalidator{}
		return
	}
	r.invalidator = inv
}

func (r *Registry) emit(event *types.Event) {
	if r == nil || r.emitter == nil || event == nil {
		return
	}
	r.emitter.Emit(registryEvent{evt: event})
}

// IsParticipant reports whether the identity currently occupies a slot.
func (r *Registry) IsParticipant(identity types.Address) bool {
	return r.slotOf[identity] != 0
}

// SlotOf returns the identity's slot index, or 0 if it is not a participant.
func (r *Registry) SlotOf(identity types.Address) int {
	return r.slotOf[identity]
}

// OwnerAt returns the identity occupying the slot, or the zero address.
func (r *Registry) OwnerAt(slot int) types.Address {
	if slot < 1 || slot > r.capacity {
		return types.ZeroAddress
	}
	return r.ownerAt[slot]
}

// Required returns the current quorum requirement.
func (r *Registry) Required() int { return r.required }

// NumOwners returns the high-water mark of the occupied slot region.
func (r *Registry) NumOwners() int { return r.numOwners }

// Capacity returns the size of the slot table.
func (r *Registry) Capacity() int { return r.capacity }

// Owners returns the current participant set in slot order.
func (r *Registry) Owners() []types.Address {
	owners := make([]types.Address, 0, len(r.slotOf))
	for slot := 1; slot <= r.numOwners; slot++ {
		if !r.ownerAt[slot].IsZero() {
			owners = append(owners, r.ownerAt[slot])
		}
	}
	return owners
}

// Add assigns the identity to the next free slot. Re-adding an existing
// participant is a no-op. If the table is saturated a compaction pass runs
// first; if it is still saturated afterwards the add is rejected.
func (r *Registry) Add(identity types.Address) error {
	if identity.IsZero() {
		return fmt.Errorf("registry: zero address cannot be a participant")
	}
	if r.slotOf[identity] != 0 {
		return errors.ErrAlreadyApplied
	}
	if r.numOwners >= r.capacity {
		r.compact()
	}
	if r.numOwners >= r.capacity {
		return errors.ErrCapacityExhausted
	}
	r.numOwners++
	r.ownerAt[r.numOwners] = identity
	r.slotOf[identity] = r.numOwners
	r.invalidator.InvalidateAll()
	r.emit(NewOwnerAddedEvent(identity))
	return nil
}

// Remove clears the identity's slot. Removing a non-participant is a no-op,
// and a removal that would leave fewer participants than the quorum
// requirement is rejected.
func (r *Registry) Remove(identity types.Address) error {
	slot := r.slotOf[identity]
	if slot == 0 {
		return errors.ErrAlreadyApplied
	}
	if r.required > r.numOwners-1 {
		return errors.ErrQuorumUnsatisfiable
	}
	r.ownerAt[slot] = types.ZeroAddress
	delete(r.slotOf, identity)
	r.invalidator.InvalidateAll()
	r.compact()
	r.emit(NewOwnerRemovedEvent(identity))
	return nil
}

// Replace remaps from's slot to to, keeping the slot index unchanged. The
// swap is rejected when to is already a participant or from is not one.
// Pending state is still invalidated: approval bits recorded for the old
// identity must not carry over to the new one.
func (r *Registry) Replace(from, to types.Address) error {
	if to.IsZero() {
		return fmt.Errorf("registry: zero address cannot be a participant")
	}
	if r.slotOf[to] != 0 {
		return errors.ErrAlreadyApplied
	}
	slot := r.slotOf[from]
	if slot == 0 {
		return errors.ErrAlreadyApplied
	}
	r.ownerAt[slot] = to
	delete(r.slotOf, from)
	r.slotOf[to] = slot
	r.invalidator.InvalidateAll()
	r.emit(NewOwnerChangedEvent(from, to))
	return nil
}

// SetRequired updates the quorum requirement. Values outside [1, numOwners]
// are rejected.
func (r *Registry) SetRequired(n int) error {
	if n < 1 || n > r.numOwners {
		return errors.ErrQuorumUnsatisfiable
	}
	r.required = n
	r.invalidator.InvalidateAll()
	r.emit(NewRequirementChangedEvent(n))
	return nil
}

// compact squeezes occupied slots below the numOwners bound and shrinks the
// bound past trailing empties. Slot order is not preserved; any pending
// approvals were already invalidated by the mutation that triggered the pass.
func (r *Registry) compact() {
	free := 1
	for free < r.numOwners {
		for free < r.numOwners && !r.ownerAt[free].IsZero() {
			free++
		}
		for r.numOwners > 1 && r.ownerAt[r.numOwners].IsZero() {
			r.numOwners--
		}
		if free < r.numOwners && !r.ownerAt[r.numOwners].IsZero() && r.ownerAt[free].IsZero() {
			moved := r.ownerAt[r.numOwners]
			r.ownerAt[free] = moved
			r.slotOf[moved] = free
			r.ownerAt[r.numOwners] = types.ZeroAddress
		}
	}
}
