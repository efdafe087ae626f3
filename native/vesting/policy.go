package vesting

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rkumarchou/FYNTokens/core/errors"
)

var hundred = uint256.NewInt(100)

// Milestone marks an epoch day at which an additional percentage of the
// raised total vests.
type Milestone struct {
	Day     uint64
	Percent uint8
}

// Policy computes the cumulative releasable amount from an immediate-release
// fraction and an ordered milestone schedule. The schedule is immutable after
// construction; only the withdrawn counter and the withdrawal latch mutate.
type Policy struct {
	immediate  uint8
	milestones []Milestone

	withdrawn          *uint256.Int
	withdrawalOccurred bool
}

// NewPolicy validates and constructs a vesting schedule. Milestone days must
// be strictly ascending, every fraction positive, and the immediate fraction
// plus all milestone fractions must sum to exactly 100.
func NewPolicy(immediate uint8, milestones []Milestone) (*Policy, error) {
	if immediate > 100 {
		return nil, fmt.Errorf("vesting: immediate fraction %d exceeds 100", immediate)
	}
	total := int(immediate)
	lastDay := uint64(0)
	for i, m := range milestones {
		if m.Percent == 0 {
			return nil, fmt.Errorf("vesting: milestone %d has zero fraction", i)
		}
		if i > 0 && m.Day <= lastDay {
			return nil, fmt.Errorf("vesting: milestone days must be strictly ascending (day %d after %d)", m.Day, lastDay)
		}
		lastDay = m.Day
		total += int(m.Percent)
	}
	if total != 100 {
		return nil, fmt.Errorf("vesting: fractions sum to %d, want exactly 100", total)
	}
	p := &Policy{
		immediate:  immediate,
		milestones: append([]Milestone(nil), milestones...),
		withdrawn:  uint256.NewInt(0),
	}
	return p, nil
}

// ReleasableFraction walks the schedule in date order and returns the
// cumulative percentage vested at the given epoch day.
func (p *Policy) ReleasableFraction(day uint64) uint8 {
	total := p.immediate
	for _, m := range p.milestones {
		if day < m.Day {
			return total
		}
		total += m.Percent
	}
	return total
}

// Allowance returns the cumulative amount releasable at the given epoch day
// for the given raised total.
func (p *Policy) Allowance(day uint64, totalRaised *uint256.Int) (*uint256.Int, error) {
	if totalRaised == nil {
		return uint256.NewInt(0), nil
	}
	fraction := uint256.NewInt(uint64(p.ReleasableFraction(day)))
	product, overflow := new(uint256.Int).MulOverflow(totalRaised, fraction)
	if overflow {
		return nil, errors.ErrArithmeticOverflow
	}
	return product.Div(product, hundred), nil
}

// Withdraw debits the vested allowance. The cumulative withdrawn total may
// never exceed the allowance at the given day; the first successful
// withdrawal flips the one-way latch that disables refund initiation.
func (p *Policy) Withdraw(amount *uint256.Int, day uint64, totalRaised *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return errors.ErrInsufficientVested
	}
	allowance, err := p.Allowance(day, totalRaised)
	if err != nil {
		return err
	}
	total, overflow := new(uint256.Int).AddOverflow(p.withdrawn, amount)
	if overflow {
		return errors.ErrArithmeticOverflow
	}
	if total.Gt(allowance) {
		return errors.ErrInsufficientVested
	}
	p.withdrawn = total
	p.withdrawalOccurred = true
	return nil
}

// WithdrawnTotal returns a copy of the cumulative withdrawn amount.
func (p *Policy) WithdrawnTotal() *uint256.Int {
	return new(uint256.Int).Set(p.withdrawn)
}

// RefundsDisabled reports whether a withdrawal has ever succeeded. Once true
// it never resets: reversing contributions after funds have left custody
// would strand the refund pool.
func (p *Policy) RefundsDisabled() bool {
	return p.withdrawalOccurred
}

// RestoreWithdrawn reloads the mutable counters from a persisted snapshot.
func (p *Policy) RestoreWithdrawn(withdrawn *uint256.Int, occurred bool) {
	if withdrawn == nil {
		withdrawn = uint256.NewInt(0)
	}
	p.withdrawn = new(uint256.Int).Set(withdrawn)
	p.withdrawalOccurred = occurred
}
