package controllers

import (
	"github.com/picogrid/killweb-simulations/cmd/killweb/assign"
	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/guidance"
)

// Observer receives everything worth reporting from the controllers
type Observer interface {
	Assignment(ev assign.Event)
	Guidance(ev guidance.Event)
	Launch(now float64, unit, interceptor, target core.Handle, roundsLeft int)
	TrackDropped(now float64, node, target core.Handle)
	Leak(now float64, aircraft core.Handle)
	PhaseChange(now float64, interceptorType string, period float64)
}

// NopObserver discards all reports
type NopObserver struct{}

func (NopObserver) Assignment(assign.Event)                                    {}
func (NopObserver) Guidance(guidance.Event)                                    {}
func (NopObserver) Launch(float64, core.Handle, core.Handle, core.Handle, int) {}
func (NopObserver) TrackDropped(float64, core.Handle, core.Handle)             {}
func (NopObserver) Leak(float64, core.Handle)                                  {}
func (NopObserver) PhaseChange(float64, string, float64)                       {}

// Spawner queues new behaviors on the run's scheduler
type Spawner interface {
	Add(b core.Behavior)
}
