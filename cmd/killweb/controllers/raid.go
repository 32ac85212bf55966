package controllers

import (
	"math"

	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
)

// Aircraft is a raid aircraft flying a straight leg to its destination. On
// arrival it has leaked through the defense and goes INACTIVE.
type Aircraft struct {
	ID          core.Handle
	Destination core.Point
	SpeedKts    float64
	Period      float64 // seconds between position updates

	arena    *core.Arena
	geo      core.Geodesy
	observer Observer
	last     float64
	leaked   bool
}

// NewAircraft creates a raid aircraft for the arena entity id
func NewAircraft(arena *core.Arena, geo core.Geodesy, id core.Handle, dest core.Point, speedKts, period, start float64, observer Observer) *Aircraft {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Aircraft{
		ID:          id,
		Destination: dest,
		SpeedKts:    speedKts,
		Period:      period,
		arena:       arena,
		geo:         geo,
		observer:    observer,
		last:        start,
	}
}

// Leaked reports whether the aircraft reached its destination
func (a *Aircraft) Leaked() bool { return a.leaked }

// Resolved reports whether the aircraft is out of play, killed or leaked
func (a *Aircraft) Resolved() bool { return !a.arena.Alive(a.ID) }

// NextDue implements core.Behavior
func (a *Aircraft) NextDue(now float64) float64 {
	if a.Resolved() || a.Period <= 0 {
		return math.Inf(1)
	}
	return now + a.Period
}

// Perform advances the aircraft along its leg
func (a *Aircraft) Perform(now float64) {
	self := a.arena.Get(a.ID)
	dt := now - a.last
	a.last = now
	if !self.Alive() || dt <= 0 {
		return
	}

	step := a.SpeedKts * dt / 3600
	if step >= a.geo.Distance(self.Location, a.Destination) {
		self.Location = a.Destination
		self.Status = core.StatusInactive
		a.leaked = true
		a.observer.Leak(now, a.ID)
		return
	}
	self.Location = a.geo.Interpolate(self.Location, a.Destination, step)
}
