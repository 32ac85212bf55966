package simulation

import (
	"fmt"
	"math"

	"github.com/picogrid/killweb-simulations/cmd/killweb/config"
	"github.com/picogrid/killweb-simulations/cmd/killweb/controllers"
	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/guidance"
	"github.com/picogrid/killweb-simulations/cmd/killweb/track"
	"github.com/picogrid/killweb-simulations/pkg/logger"
)

// World is one built scenario: the arena, its timeline and every controller
// scheduled on it
type World struct {
	Arena     *core.Arena
	Scheduler *core.Scheduler
	Geodesy   core.Geodesy
	Jamming   *controllers.JammingField

	Nodes     []*controllers.C2Node
	FireUnits []*controllers.FireUnit
	Radars    []*controllers.Radar
	Aircraft  []*controllers.Aircraft
	Phases    map[string]*guidance.PhaseCounter

	raidSize int
	observer controllers.Observer
	rng      core.Rand
}

// Build creates every scenario entity in arena and queues the controllers on
// a fresh scheduler. Raid aircraft enter the arena at their launch time.
func Build(cfg *config.SimulationConfig, arena *core.Arena, observer controllers.Observer) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if observer == nil {
		observer = controllers.NopObserver{}
	}

	geo := core.Spherical{}
	w := &World{
		Arena:     arena,
		Scheduler: core.NewScheduler(0),
		Geodesy:   geo,
		Jamming:   controllers.NewJammingField(arena, geo, cfg.Jamming.Threshold),
		Phases:    make(map[string]*guidance.PhaseCounter),
		raidSize:  len(cfg.Raid),
		observer:  observer,
		rng:       core.NewRand(cfg.Simulation.Seed),
	}

	nodes := make(map[string]*controllers.C2Node, len(cfg.C2Nodes))
	for _, nc := range cfg.C2Nodes {
		h := arena.Add(nc.Name, core.KindC2, nc.Location, 0)
		node := controllers.NewC2Node(arena, h, controllers.C2NodeConfig{
			TargetCapacity:      nc.TargetCapacity,
			AssignmentThreshold: nc.AssignmentThreshold,
			TrackCapacity:       nc.TrackCapacity,
			AgeOut:              config.Seconds(nc.AgeOut),
			MinReportDelay:      config.Seconds(nc.MinReportDelay),
			MeanReportDelay:     config.Seconds(nc.MeanReportDelay),
			AssignmentPeriod:    config.Seconds(nc.AssignmentPeriod),
		}, w.rng, w.Scheduler.Now, observer)
		nodes[nc.Name] = node
		w.Nodes = append(w.Nodes, node)
	}
	for _, nc := range cfg.C2Nodes {
		if nc.Superior == "" {
			continue
		}
		node, superior := nodes[nc.Name], nodes[nc.Superior]
		if err := arena.SetSuperior(node.ID, superior.ID); err != nil {
			return nil, fmt.Errorf("linking %s to %s: %w", nc.Name, nc.Superior, err)
		}
		node.AttachTo(superior)
	}

	radars := make(map[string]core.Handle, len(cfg.Radars))
	for _, rc := range cfg.Radars {
		fn, _ := track.ParseFunction(rc.Function)
		node := nodes[rc.C2]
		h := arena.Add(rc.Name, core.KindRadar, rc.Location, 0)
		if err := arena.SetSuperior(h, node.ID); err != nil {
			return nil, fmt.Errorf("attaching radar %s: %w", rc.Name, err)
		}
		radar := controllers.NewRadar(arena, h, controllers.RadarConfig{
			Function:   fn,
			RangeNM:    rc.RangeNM,
			Pd:         rc.Pd,
			ScanPeriod: config.Seconds(rc.ScanPeriod),
			RangeNoise: rc.RangeNoiseNM,
		}, geo, w.rng, w.Jamming, node.Ledger)
		radars[rc.Name] = h
		w.Radars = append(w.Radars, radar)
	}

	for _, fc := range cfg.FireUnits {
		ic, _ := cfg.Interceptor(fc.Interceptor)
		node := nodes[fc.C2]
		h := arena.Add(fc.Name, core.KindFireUnit, fc.Location, 0)
		if err := arena.SetSuperior(h, node.ID); err != nil {
			return nil, fmt.Errorf("attaching fire unit %s: %w", fc.Name, err)
		}
		tracker := core.NoHandle
		if fc.Tracker != "" {
			tracker = radars[fc.Tracker]
		}
		unit := controllers.NewFireUnit(h, node, tracker, controllers.FireUnitConfig{
			Channels:        fc.Channels,
			Rounds:          fc.Rounds,
			MinRange:        fc.MinRangeNM,
			MaxRange:        fc.MaxRangeNM,
			Reload:          config.Seconds(fc.Reload),
			Period:          config.Seconds(fc.Period),
			InterceptorType: ic.Type,
			Interceptor: guidance.Params{
				SpeedKts:       ic.SpeedKts,
				LethalRange:    ic.LethalRangeNM,
				Pk:             ic.Pk,
				MaxG:           ic.MaxG,
				ActiveRange:    ic.ActiveRangeNM,
				NominalPeriod:  config.Seconds(ic.NominalPeriod),
				TerminalPeriod: config.Seconds(ic.TerminalPeriod),
			},
		}, controllers.FireUnitDeps{
			Arena:    arena,
			Geodesy:  geo,
			Rand:     w.rng,
			Jamming:  w.Jamming,
			Phase:    w.phase(ic),
			Spawner:  w.Scheduler,
			Observer: observer,
		})
		w.FireUnits = append(w.FireUnits, unit)
	}

	for _, r := range w.Radars {
		w.Scheduler.Add(r)
	}
	for _, n := range w.Nodes {
		for _, b := range n.Behaviors() {
			w.Scheduler.Add(b)
		}
	}
	for _, u := range w.FireUnits {
		w.Scheduler.Add(u)
	}
	for _, ac := range cfg.Raid {
		w.Scheduler.AddAt(&raidLaunch{world: w, cfg: ac}, config.Seconds(ac.LaunchTime))
	}

	logger.Debugf("World built: %d C2 nodes, %d fire units, %d radars, %d raid aircraft",
		len(w.Nodes), len(w.FireUnits), len(w.Radars), len(cfg.Raid))
	return w, nil
}

// phase returns the shared terminal-phase counter for an interceptor type
func (w *World) phase(ic config.InterceptorConfig) *guidance.PhaseCounter {
	if p, ok := w.Phases[ic.Type]; ok {
		return p
	}
	p := guidance.NewPhaseCounter(config.Seconds(ic.NominalPeriod), config.Seconds(ic.TerminalPeriod))
	typ := ic.Type
	p.OnChange(func(now, period float64) {
		w.observer.PhaseChange(now, typ, period)
	})
	w.Phases[typ] = p
	return p
}

// Launched is the number of raid aircraft that have entered the arena
func (w *World) Launched() int { return len(w.Aircraft) }

// InFlight is the number of interceptors airborne across all fire units
func (w *World) InFlight() int {
	n := 0
	for _, u := range w.FireUnits {
		n += u.InFlight()
	}
	return n
}

// Leakers returns the aircraft that reached their destination
func (w *World) Leakers() []*controllers.Aircraft {
	var out []*controllers.Aircraft
	for _, a := range w.Aircraft {
		if a.Leaked() {
			out = append(out, a)
		}
	}
	return out
}

// Done reports whether the whole raid has launched and been resolved with
// nothing left in the air
func (w *World) Done() bool {
	if len(w.Aircraft) < w.raidSize {
		return false
	}
	for _, a := range w.Aircraft {
		if !a.Resolved() {
			return false
		}
	}
	return w.InFlight() == 0
}

// raidLaunch puts one raid aircraft into play at its launch time
type raidLaunch struct {
	world *World
	cfg   config.AircraftConfig
	done  bool
}

func (r *raidLaunch) NextDue(float64) float64 { return math.Inf(1) }

func (r *raidLaunch) Perform(now float64) {
	if r.done {
		return
	}
	r.done = true
	w := r.world

	h := w.Arena.Add(r.cfg.Name, core.KindAircraft, r.cfg.Start, r.cfg.Points)
	if j := r.cfg.Jammer; j != nil {
		w.Jamming.Add(controllers.Jammer{Carrier: h, RangeNM: j.RangeNM, Power: j.Power})
	}
	ac := controllers.NewAircraft(w.Arena, w.Geodesy, h, r.cfg.Destination,
		r.cfg.SpeedKts, config.Seconds(r.cfg.UpdatePeriod), now, w.observer)
	w.Aircraft = append(w.Aircraft, ac)
	w.Scheduler.Add(ac)
	logger.Debugf("t=%.1f %s airborne", now, r.cfg.Name)
}
