package assign

import (
	"cmp"
	"math"
	"slices"

	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
)

// EventKind classifies an assignment event
type EventKind string

const (
	EventAssigned   EventKind = "assigned"
	EventReassigned EventKind = "reassigned"
	EventEvicted    EventKind = "evicted"
	EventTornDown   EventKind = "torn_down"
	EventReleased   EventKind = "released"
	EventHit        EventKind = "hit"
	EventMiss       EventKind = "miss"
)

// Teardown reasons
const (
	ReasonTargetDead    = "target dead"
	ReasonUntracked     = "target untracked"
	ReasonOverThreshold = "over threshold"
	ReasonEvicted       = "evicted"
	ReasonReleased      = "released by shooter"
)

// Event describes a change in a node's assignments
type Event struct {
	Time          float64
	Kind          EventKind
	Node          core.Handle
	Target        core.Handle
	Shooter       core.Handle
	Previous      core.Handle // prior shooter on reassignment
	Engageability float64
	Reason        string
}

// TrackSource is the node's fused track picture
type TrackSource interface {
	Has(target core.Handle) bool
	Active() []core.Handle
}

// Config holds construction parameters for an Engine
type Config struct {
	Handle    core.Handle
	Capacity  int     // maximum targets held; <= 0 is unbounded
	Threshold float64 // worst acceptable engageability
	Tracks    TrackSource
	Alive     func(core.Handle) bool
	Clock     func() float64
	OnEvent   func(Event)
}

// Engine is the assignment state of one C2 node. It is itself a Shooter so
// that a superior node can task it like any weapon system.
type Engine struct {
	handle    core.Handle
	capacity  int
	threshold float64
	tracks    TrackSource
	alive     func(core.Handle) bool
	clock     func() float64
	onEvent   func(Event)

	subordinates []Shooter
	superior     Upstream

	assignments map[core.Handle]Shooter  // target -> subordinate
	tasked      map[core.Handle]struct{} // targets given by the superior
	lastTick    float64
}

var _ Shooter = (*Engine)(nil)
var _ Upstream = (*Engine)(nil)

// NewEngine creates an engine with no subordinates
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		handle:      cfg.Handle,
		capacity:    cfg.Capacity,
		threshold:   cfg.Threshold,
		tracks:      cfg.Tracks,
		alive:       cfg.Alive,
		clock:       cfg.Clock,
		onEvent:     cfg.OnEvent,
		assignments: make(map[core.Handle]Shooter),
		tasked:      make(map[core.Handle]struct{}),
	}
	if e.alive == nil {
		e.alive = func(core.Handle) bool { return true }
	}
	return e
}

// AddSubordinate registers a shooter this node may task
func (e *Engine) AddSubordinate(s Shooter) {
	e.subordinates = append(e.subordinates, s)
	slices.SortStableFunc(e.subordinates, func(a, b Shooter) int {
		return cmp.Compare(a.Handle(), b.Handle())
	})
}

// SetSuperior sets where outcomes and releases of tasked targets go
func (e *Engine) SetSuperior(u Upstream) { e.superior = u }

// Subordinates returns the registered shooters in handle order
func (e *Engine) Subordinates() []Shooter { return slices.Clone(e.subordinates) }

// Threshold is the worst engageability the node accepts
func (e *Engine) Threshold() float64 { return e.threshold }

// Handle implements Shooter
func (e *Engine) Handle() core.Handle { return e.handle }

// Engageability is the best engageability among the subordinates
func (e *Engine) Engageability(target core.Handle) float64 {
	best := math.Inf(1)
	for _, s := range e.subordinates {
		best = min(best, s.Engageability(target))
	}
	return best
}

func (e *Engine) held() int {
	n := len(e.tasked)
	for t := range e.assignments {
		if _, ok := e.tasked[t]; !ok {
			n++
		}
	}
	return n
}

// SpareCapacity is how many more targets the node can hold
func (e *Engine) SpareCapacity() int {
	if e.capacity <= 0 {
		return math.MaxInt
	}
	return max(e.capacity-e.held(), 0)
}

func (e *Engine) holds(target core.Handle) bool {
	if _, ok := e.tasked[target]; ok {
		return true
	}
	_, ok := e.assignments[target]
	return ok
}

// Assign records target as tasked by the superior. It is placed on a
// subordinate at the node's next Rebalance.
func (e *Engine) Assign(target core.Handle) bool {
	if target == core.NoHandle {
		return false
	}
	if !e.holds(target) && e.SpareCapacity() <= 0 {
		return false
	}
	e.tasked[target] = struct{}{}
	return true
}

// PriorityAssign tasks target, evicting one held target when full
func (e *Engine) PriorityAssign(target core.Handle) (core.Handle, bool) {
	if target == core.NoHandle {
		return core.NoHandle, false
	}
	if e.Assign(target) {
		return core.NoHandle, true
	}
	victim, ok := SelectEviction(e.Assignments())
	if !ok {
		return core.NoHandle, false
	}
	e.drop(victim)
	e.emit(Event{Kind: EventEvicted, Target: victim, Reason: ReasonEvicted})
	e.tasked[target] = struct{}{}
	return victim, true
}

// Unassign removes target from the node and from the subordinate holding it
func (e *Engine) Unassign(target core.Handle) {
	e.drop(target)
}

func (e *Engine) drop(target core.Handle) {
	if s, ok := e.assignments[target]; ok {
		s.Unassign(target)
		delete(e.assignments, target)
	}
	delete(e.tasked, target)
}

// Assignments lists every held target with the engageability of whoever
// holds it.
func (e *Engine) Assignments() []Assignment {
	targets := make([]core.Handle, 0, len(e.assignments)+len(e.tasked))
	for t := range e.assignments {
		targets = append(targets, t)
	}
	for t := range e.tasked {
		if _, ok := e.assignments[t]; !ok {
			targets = append(targets, t)
		}
	}
	slices.Sort(targets)

	out := make([]Assignment, 0, len(targets))
	for _, t := range targets {
		a := Assignment{Target: t}
		if s, ok := e.assignments[t]; ok {
			a.Engageability = s.Engageability(t)
			a.Committed = CommittedOn(s, t)
		} else {
			a.Engageability = e.Engageability(t)
		}
		out = append(out, a)
	}
	return out
}

// ShooterFor returns the subordinate holding target
func (e *Engine) ShooterFor(target core.Handle) (core.Handle, bool) {
	s, ok := e.assignments[target]
	if !ok {
		return core.NoHandle, false
	}
	return s.Handle(), true
}

// Tasked reports whether the superior gave the node target
func (e *Engine) Tasked(target core.Handle) bool {
	_, ok := e.tasked[target]
	return ok
}

// Rebalance is the node's assignment tick
func (e *Engine) Rebalance(now float64) {
	e.lastTick = now
	e.teardown()

	for _, c := range e.candidates() {
		if s, ok := e.assignments[c.target]; ok {
			e.improve(c.target, s)
			continue
		}
		if _, tasked := e.tasked[c.target]; !tasked && e.SpareCapacity() <= 0 {
			continue
		}
		if s, eng := e.best(c.target, nil); s != nil {
			e.place(c.target, s, eng, core.NoHandle)
		}
	}
}

// teardown removes assignments that no longer hold and releases tasked
// targets the node cannot serve.
func (e *Engine) teardown() {
	for _, t := range sortedKeys(e.assignments) {
		s := e.assignments[t]
		_, tasked := e.tasked[t]

		var reason string
		switch {
		case !e.alive(t):
			reason = ReasonTargetDead
		case !tasked && (e.tracks == nil || !e.tracks.Has(t)):
			reason = ReasonUntracked
		case !CommittedOn(s, t) && s.Engageability(t) > e.threshold:
			reason = ReasonOverThreshold
		default:
			continue
		}

		s.Unassign(t)
		delete(e.assignments, t)
		e.emit(Event{Kind: EventTornDown, Target: t, Shooter: s.Handle(), Reason: reason})
		if tasked {
			e.release(t)
		}
	}

	// tasked targets never placed but no longer servable go back up too
	for _, t := range sortedKeys(e.tasked) {
		if _, placed := e.assignments[t]; placed {
			continue
		}
		if !e.alive(t) || e.Engageability(t) > e.threshold {
			e.release(t)
		}
	}
}

func (e *Engine) release(target core.Handle) {
	delete(e.tasked, target)
	e.emit(Event{Kind: EventReleased, Target: target})
	if e.superior != nil {
		e.superior.Release(target, e.handle)
	}
}

type candidate struct {
	target core.Handle
	tasked bool
	best   float64
}

// candidates are live tasked targets and own tracks: tasked first, then by
// best engageability, then by handle.
func (e *Engine) candidates() []candidate {
	seen := make(map[core.Handle]bool)
	var out []candidate
	add := func(t core.Handle, tasked bool) {
		if seen[t] || !e.alive(t) {
			return
		}
		seen[t] = true
		out = append(out, candidate{target: t, tasked: tasked, best: e.Engageability(t)})
	}
	for _, t := range sortedKeys(e.tasked) {
		add(t, true)
	}
	if e.tracks != nil {
		for _, t := range e.tracks.Active() {
			add(t, false)
		}
	}

	slices.SortFunc(out, func(a, b candidate) int {
		if a.tasked != b.tasked {
			if a.tasked {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.best, b.best); c != 0 {
			return c
		}
		return cmp.Compare(a.target, b.target)
	})
	return out
}

// best finds the eligible subordinate with the lowest engageability on
// target. A subordinate is eligible when it is within threshold and has
// spare capacity or an uncommitted assignment worse than this one.
func (e *Engine) best(target core.Handle, exclude Shooter) (Shooter, float64) {
	var (
		pick Shooter
		eng  = math.Inf(1)
	)
	for _, s := range e.subordinates {
		if s == exclude {
			continue
		}
		v := s.Engageability(target)
		if math.IsInf(v, 1) || v > e.threshold || v >= eng {
			continue
		}
		if s.SpareCapacity() > 0 || Bumpable(s, v) {
			pick, eng = s, v
		}
	}
	return pick, eng
}

// improve moves an uncommitted target to a better shooter when the gain
// clears the hysteresis margin.
func (e *Engine) improve(target core.Handle, current Shooter) {
	if CommittedOn(current, target) {
		return
	}
	s, eng := e.best(target, current)
	if s == nil {
		return
	}
	if current.Engageability(target) <= eng*Hysteresis {
		return
	}
	current.Unassign(target)
	delete(e.assignments, target)
	e.place(target, s, eng, current.Handle())
}

func (e *Engine) place(target core.Handle, s Shooter, eng float64, previous core.Handle) {
	ok := false
	if s.SpareCapacity() > 0 {
		ok = s.Assign(target)
	}
	if !ok {
		var evicted core.Handle
		evicted, ok = s.PriorityAssign(target)
		if ok && evicted != core.NoHandle {
			if holder, held := e.assignments[evicted]; held && holder == s {
				delete(e.assignments, evicted)
			}
			e.emit(Event{Kind: EventEvicted, Target: evicted, Shooter: s.Handle(), Reason: ReasonEvicted})
		}
	}
	if !ok {
		return
	}
	e.assignments[target] = s

	ev := Event{Kind: EventAssigned, Target: target, Shooter: s.Handle(), Engageability: eng}
	if previous != core.NoHandle {
		ev.Kind = EventReassigned
		ev.Previous = previous
	}
	e.emit(ev)
}

// Outcome records an engagement result from a subordinate. A hit clears the
// target and is passed up when the superior tasked it; a miss leaves the
// shooter assigned so it can re-engage.
func (e *Engine) Outcome(target, shooter core.Handle, hit bool) {
	if !hit {
		e.emit(Event{Kind: EventMiss, Target: target, Shooter: shooter})
		return
	}

	if s, ok := e.assignments[target]; ok {
		if s.Handle() != shooter {
			s.Unassign(target)
		}
		delete(e.assignments, target)
	}
	_, tasked := e.tasked[target]
	delete(e.tasked, target)
	e.emit(Event{Kind: EventHit, Target: target, Shooter: shooter})

	if tasked && e.superior != nil {
		e.superior.Outcome(target, e.handle, true)
	}
}

// Release records that a subordinate gave target up. The target is retried
// on the next tick.
func (e *Engine) Release(target, shooter core.Handle) {
	s, ok := e.assignments[target]
	if !ok || s.Handle() != shooter {
		return
	}
	delete(e.assignments, target)
	e.emit(Event{Kind: EventTornDown, Target: target, Shooter: shooter, Reason: ReasonReleased})
}

func (e *Engine) emit(ev Event) {
	if e.onEvent == nil {
		return
	}
	ev.Node = e.handle
	if e.clock != nil {
		ev.Time = e.clock()
	} else {
		ev.Time = e.lastTick
	}
	e.onEvent(ev)
}

func sortedKeys[V any](m map[core.Handle]V) []core.Handle {
	keys := make([]core.Handle, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
