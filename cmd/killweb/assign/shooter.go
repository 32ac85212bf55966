package assign

import (
	"math"

	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
)

// Hysteresis is the factor by which a candidate shooter must beat the
// current one before a target is moved
const Hysteresis = 1.15

// Shooter is anything a C2 node can hand a target to: a leaf weapon system
// or a subordinate C2 node.
type Shooter interface {
	Handle() core.Handle

	// Engageability is a lower-is-better figure of merit; +Inf means the
	// shooter cannot engage target.
	Engageability(target core.Handle) float64

	// Assign accepts target if there is spare capacity. It returns false
	// otherwise.
	Assign(target core.Handle) bool

	// PriorityAssign accepts target even at capacity, evicting one existing
	// assignment (see SelectEviction). The evicted target is returned, or
	// core.NoHandle when nothing had to go.
	PriorityAssign(target core.Handle) (evicted core.Handle, ok bool)

	Unassign(target core.Handle)

	SpareCapacity() int

	Assignments() []Assignment
}

// Assignment is a target a shooter currently holds
type Assignment struct {
	Target        core.Handle
	Engageability float64
	// Committed is set while a weapon is in flight against the target
	Committed bool
}

// Upstream receives reports from a subordinate about targets it was given
type Upstream interface {
	// Outcome reports an engagement result
	Outcome(target, shooter core.Handle, hit bool)
	// Release hands a target back
	Release(target, shooter core.Handle)
}

// SelectEviction picks the assignment PriorityAssign should give up: the
// uncommitted assignment with the worst engageability, falling back to the
// worst committed one. Ties go to the highest target handle.
func SelectEviction(assignments []Assignment) (core.Handle, bool) {
	var (
		pick  Assignment
		found bool
	)
	for _, a := range assignments {
		if !found || worse(a, pick) {
			pick, found = a, true
		}
	}
	if !found {
		return core.NoHandle, false
	}
	return pick.Target, true
}

// worse orders eviction candidates
func worse(a, b Assignment) bool {
	if a.Committed != b.Committed {
		return !a.Committed
	}
	ea, eb := a.Engageability, b.Engageability
	if ea != eb && !(math.IsInf(ea, 1) && math.IsInf(eb, 1)) {
		return ea > eb
	}
	return a.Target > b.Target
}

// Bumpable reports whether s holds an uncommitted assignment worse than e
func Bumpable(s Shooter, e float64) bool {
	for _, a := range s.Assignments() {
		if !a.Committed && a.Engageability > e {
			return true
		}
	}
	return false
}

// CommittedOn reports whether s has a weapon in flight against target
func CommittedOn(s Shooter, target core.Handle) bool {
	for _, a := range s.Assignments() {
		if a.Target == target {
			return a.Committed
		}
	}
	return false
}
