package controllers

import (
	"fmt"
	"math"
	"slices"

	"github.com/picogrid/killweb-simulations/cmd/killweb/assign"
	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/guidance"
	"github.com/picogrid/killweb-simulations/cmd/killweb/track"
	"github.com/picogrid/killweb-simulations/pkg/logger"
)

// Fire unit status
const (
	FireUnitStatusIdle      = "IDLE"      // no targets
	FireUnitStatusTracking  = "TRACKING"  // holds targets, nothing in flight
	FireUnitStatusEngaging  = "ENGAGING"  // interceptor in flight
	FireUnitStatusReloading = "RELOADING" // waiting out the reload time
	FireUnitStatusDepleted  = "DEPLETED"  // magazine empty
	FireUnitStatusDestroyed = "DESTROYED" // entity dead
)

// FireUnitConfig holds the tunables of a SAM fire unit
type FireUnitConfig struct {
	Channels        int     // simultaneous targets
	Rounds          int     // magazine
	MinRange        float64 // nmi
	MaxRange        float64 // nmi
	Reload          float64 // seconds between launches
	Period          float64 // seconds between fire-control ticks
	InterceptorType string
	Interceptor     guidance.Params
}

// FireUnitDeps are the run-scoped services a fire unit uses
type FireUnitDeps struct {
	Arena    *core.Arena
	Geodesy  core.Geodesy
	Rand     core.Rand
	Jamming  guidance.Jamming
	Phase    *guidance.PhaseCounter
	Spawner  Spawner
	Observer Observer
}

// engagement is one assigned target
type engagement struct {
	target      core.Handle
	interceptor core.Handle // NoHandle when nothing is in flight
	shots       int
}

// FireUnitStats counts a fire unit's activity
type FireUnitStats struct {
	Launched int
	Hits     int
	Misses   int
}

// FireUnit is a leaf shooter: it holds up to Channels targets, fires one
// interceptor per target at a time and re-engages after a miss while the
// target stays assigned.
type FireUnit struct {
	ID      core.Handle
	Name    string
	Tracker core.Handle // designated terminal tracker radar

	cfg      FireUnitConfig
	deps     FireUnitDeps
	c2       *C2Node
	rounds   int
	ready    float64 // earliest time of the next launch
	lastTick float64
	status   string
	held     []*engagement
	inFlight map[core.Handle]*guidance.Interceptor
	stats    FireUnitStats
	log      logger.Logger
}

var (
	_ assign.Shooter    = (*FireUnit)(nil)
	_ guidance.Launcher = (*FireUnit)(nil)
	_ core.Behavior     = (*FireUnit)(nil)
)

// NewFireUnit creates a fire unit for the arena entity id. The unit draws
// track data from c2's ledger and reports outcomes to c2's engine.
func NewFireUnit(id core.Handle, c2 *C2Node, tracker core.Handle, cfg FireUnitConfig, deps FireUnitDeps) *FireUnit {
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	name := deps.Arena.Name(id)
	f := &FireUnit{
		ID:       id,
		Name:     name,
		Tracker:  tracker,
		cfg:      cfg,
		deps:     deps,
		c2:       c2,
		rounds:   cfg.Rounds,
		status:   FireUnitStatusIdle,
		inFlight: make(map[core.Handle]*guidance.Interceptor),
		log:      logger.WithPrefix("fu/" + name),
	}
	if c2 != nil {
		c2.Engine.AddSubordinate(f)
	}
	return f
}

// Handle implements assign.Shooter
func (f *FireUnit) Handle() core.Handle { return f.ID }

// Rounds is the number of interceptors left
func (f *FireUnit) Rounds() int { return f.rounds }

// Status is the current fire unit status
func (f *FireUnit) Status() string { return f.status }

// Stats returns the fire unit's counters
func (f *FireUnit) Stats() FireUnitStats { return f.stats }

// InFlight is the number of interceptors airborne
func (f *FireUnit) InFlight() int { return len(f.inFlight) }

// Engageability is the interceptor time of flight in seconds to target, or
// +Inf when the unit cannot take the shot.
func (f *FireUnit) Engageability(target core.Handle) float64 {
	self := f.deps.Arena.Get(f.ID)
	tgt := f.deps.Arena.Get(target)
	if !self.Alive() || !tgt.Alive() || f.rounds <= 0 || f.cfg.Interceptor.SpeedKts <= 0 {
		return math.Inf(1)
	}
	if _, ok := f.TrackData(target); !ok {
		return math.Inf(1)
	}
	d := f.deps.Geodesy.Distance(self.Location, tgt.Location)
	if d < f.cfg.MinRange || d > f.cfg.MaxRange {
		return math.Inf(1)
	}
	return d / f.cfg.Interceptor.SpeedKts * 3600
}

func (f *FireUnit) find(target core.Handle) (*engagement, int) {
	for i, e := range f.held {
		if e.target == target {
			return e, i
		}
	}
	return nil, -1
}

// Assign takes target if a channel is free
func (f *FireUnit) Assign(target core.Handle) bool {
	if target == core.NoHandle {
		return false
	}
	if e, _ := f.find(target); e != nil {
		return true
	}
	if f.SpareCapacity() <= 0 {
		return false
	}
	f.held = append(f.held, &engagement{target: target})
	f.log.Debugf("assigned target %d", target)
	return true
}

// PriorityAssign takes target, giving up the least valuable engagement when
// every channel is busy
func (f *FireUnit) PriorityAssign(target core.Handle) (core.Handle, bool) {
	if target == core.NoHandle {
		return core.NoHandle, false
	}
	if f.Assign(target) {
		return core.NoHandle, true
	}
	victim, ok := assign.SelectEviction(f.Assignments())
	if !ok {
		return core.NoHandle, false
	}
	f.Unassign(victim)
	if !f.Assign(target) {
		return victim, false
	}
	return victim, true
}

// Unassign drops target. An interceptor already in flight keeps flying and
// its outcome is still reported.
func (f *FireUnit) Unassign(target core.Handle) {
	if _, i := f.find(target); i >= 0 {
		f.held = slices.Delete(f.held, i, i+1)
		f.log.Debugf("unassigned target %d", target)
	}
}

// SpareCapacity is the number of free channels
func (f *FireUnit) SpareCapacity() int {
	if !f.deps.Arena.Alive(f.ID) {
		return 0
	}
	return max(f.cfg.Channels-len(f.held), 0)
}

// Assignments lists the held targets; committed ones have an interceptor in
// flight
func (f *FireUnit) Assignments() []assign.Assignment {
	out := make([]assign.Assignment, 0, len(f.held))
	for _, e := range f.held {
		out = append(out, assign.Assignment{
			Target:        e.target,
			Engageability: f.Engageability(e.target),
			Committed:     e.interceptor != core.NoHandle,
		})
	}
	return out
}

// TrackData returns the unit's C2 track on target
func (f *FireUnit) TrackData(target core.Handle) (track.Record, bool) {
	if f.c2 == nil {
		return track.Record{}, false
	}
	return f.c2.Ledger.Get(target)
}

// TargetDestroyed receives the single outcome of one of the unit's
// interceptors
func (f *FireUnit) TargetDestroyed(interceptor, target core.Handle, hit bool) {
	delete(f.inFlight, interceptor)

	var eng *engagement
	for _, e := range f.held {
		if e.interceptor == interceptor {
			eng = e
			break
		}
	}

	reported := target
	if eng != nil {
		eng.interceptor = core.NoHandle
		reported = eng.target
	}
	// a kill on a jammer we homed on is not a kill on the assigned target
	kill := hit && reported == target

	if kill {
		f.stats.Hits++
		f.Unassign(reported)
	} else {
		f.stats.Misses++
	}
	f.updateStatus(f.lastTick)
	if f.c2 != nil {
		f.c2.Engine.Outcome(reported, f.ID, kill)
	}
}

// NextDue implements core.Behavior
func (f *FireUnit) NextDue(now float64) float64 {
	if !f.deps.Arena.Alive(f.ID) || f.cfg.Period <= 0 {
		return math.Inf(1)
	}
	return now + f.cfg.Period
}

// Perform is the fire-control tick: launch at held targets that have
// nothing in flight, one launch per reload interval
func (f *FireUnit) Perform(now float64) {
	f.lastTick = now
	if !f.deps.Arena.Alive(f.ID) {
		f.status = FireUnitStatusDestroyed
		return
	}
	for _, e := range f.held {
		if e.interceptor != core.NoHandle || f.rounds <= 0 || now < f.ready {
			continue
		}
		if math.IsInf(f.Engageability(e.target), 1) {
			continue
		}
		f.launch(now, e)
	}
	f.updateStatus(now)
}

func (f *FireUnit) launch(now float64, e *engagement) {
	self := f.deps.Arena.Get(f.ID)
	e.shots++
	name := fmt.Sprintf("%s-%d", f.Name, f.cfg.Rounds-f.rounds+1)
	id := f.deps.Arena.Add(name, core.KindInterceptor, self.Location, 0)

	obs := f.deps.Observer
	msl := guidance.Launch(guidance.Config{
		Arena:    f.deps.Arena,
		Geodesy:  f.deps.Geodesy,
		Rand:     f.deps.Rand,
		Launcher: f,
		Jamming:  f.deps.Jamming,
		Phase:    f.deps.Phase,
		Params:   f.cfg.Interceptor,
		Tracker:  f.Tracker,
		OnEvent:  obs.Guidance,
	}, id, e.target, now)

	e.interceptor = id
	f.rounds--
	f.ready = now + f.cfg.Reload
	f.inFlight[id] = msl
	f.stats.Launched++

	f.log.Debugf("t=%.1f launched %s at target %d (shot %d, %d left)", now, name, e.target, e.shots, f.rounds)
	obs.Launch(now, f.ID, id, e.target, f.rounds)
	if f.deps.Spawner != nil {
		f.deps.Spawner.Add(msl)
	}
}

func (f *FireUnit) updateStatus(now float64) {
	switch {
	case !f.deps.Arena.Alive(f.ID):
		f.status = FireUnitStatusDestroyed
	case len(f.inFlight) > 0:
		f.status = FireUnitStatusEngaging
	case f.rounds <= 0:
		f.status = FireUnitStatusDepleted
	case len(f.held) > 0 && now < f.ready:
		f.status = FireUnitStatusReloading
	case len(f.held) > 0:
		f.status = FireUnitStatusTracking
	default:
		f.status = FireUnitStatusIdle
	}
}
