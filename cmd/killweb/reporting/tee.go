package reporting

import (
	"github.com/picogrid/killweb-simulations/cmd/killweb/assign"
	"github.com/picogrid/killweb-simulations/cmd/killweb/controllers"
	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/guidance"
)

// Tee fans every report out to each non-nil observer in order
func Tee(observers ...controllers.Observer) controllers.Observer {
	var t tee
	for _, o := range observers {
		if o != nil {
			t = append(t, o)
		}
	}
	return t
}

type tee []controllers.Observer

func (t tee) Assignment(ev assign.Event) {
	for _, o := range t {
		o.Assignment(ev)
	}
}

func (t tee) Guidance(ev guidance.Event) {
	for _, o := range t {
		o.Guidance(ev)
	}
}

func (t tee) Launch(now float64, unit, interceptor, target core.Handle, roundsLeft int) {
	for _, o := range t {
		o.Launch(now, unit, interceptor, target, roundsLeft)
	}
}

func (t tee) TrackDropped(now float64, node, target core.Handle) {
	for _, o := range t {
		o.TrackDropped(now, node, target)
	}
}

func (t tee) Leak(now float64, aircraft core.Handle) {
	for _, o := range t {
		o.Leak(now, aircraft)
	}
}

func (t tee) PhaseChange(now float64, interceptorType string, period float64) {
	for _, o := range t {
		o.PhaseChange(now, interceptorType, period)
	}
}
