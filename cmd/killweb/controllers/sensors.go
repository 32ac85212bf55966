package controllers

import (
	"math"
	"slices"

	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/guidance"
	"github.com/picogrid/killweb-simulations/cmd/killweb/track"
)

// RadarConfig holds the tunables of a radar
type RadarConfig struct {
	Function   track.Function
	RangeNM    float64
	Pd         float64 // per-scan detection probability inside range
	ScanPeriod float64 // seconds
	RangeNoise float64 // 1-sigma range error in nmi
}

// Radar scans the raid on a fixed period and reports what it sees to its C2
// node's ledger under its sensor function
type Radar struct {
	ID   core.Handle
	Name string

	cfg     RadarConfig
	arena   *core.Arena
	geo     core.Geodesy
	rng     core.Rand
	jamming guidance.Jamming
	ledger  track.Reporter
	held    map[core.Handle]struct{}
	scans   int
}

// NewRadar creates a radar reporting to ledger. jamming may be nil.
func NewRadar(arena *core.Arena, id core.Handle, cfg RadarConfig, geo core.Geodesy, rng core.Rand, jamming guidance.Jamming, ledger track.Reporter) *Radar {
	return &Radar{
		ID:      id,
		Name:    arena.Name(id),
		cfg:     cfg,
		arena:   arena,
		geo:     geo,
		rng:     rng,
		jamming: jamming,
		ledger:  ledger,
		held:    make(map[core.Handle]struct{}),
	}
}

// Ref is the radar's sensor reference
func (r *Radar) Ref() track.SensorRef {
	return track.SensorRef{Sensor: r.ID, Function: r.cfg.Function}
}

// Held returns the targets the radar currently reports as tracked
func (r *Radar) Held() []core.Handle {
	out := make([]core.Handle, 0, len(r.held))
	for t := range r.held {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// NextDue implements core.Behavior
func (r *Radar) NextDue(now float64) float64 {
	if r.cfg.ScanPeriod <= 0 || !r.arena.Alive(r.ID) {
		return math.Inf(1)
	}
	return now + r.cfg.ScanPeriod
}

// Perform runs one scan. A missed detection is not a drop; the ledger's
// age-out handles stale tracks. Targets that die, leave coverage or are
// masked by jamming are dropped.
func (r *Radar) Perform(now float64) {
	r.scans++
	self := r.arena.Get(r.ID)
	if !self.Alive() {
		r.dropAll()
		return
	}
	if r.jamming != nil && r.jamming.IsJammed(r.ID) {
		r.dropAll()
		return
	}

	var detected, lost []core.Handle
	for _, h := range r.arena.OfKind(core.KindAircraft) {
		tgt := r.arena.Get(h)
		if !tgt.Alive() || !r.covers(self, tgt) {
			if _, ok := r.held[h]; ok {
				lost = append(lost, h)
			}
			continue
		}
		if core.Bernoulli(r.rng, r.cfg.Pd) {
			detected = append(detected, h)
		}
	}

	for _, h := range lost {
		delete(r.held, h)
	}
	for _, h := range detected {
		r.held[h] = struct{}{}
	}
	if len(lost) > 0 {
		r.ledger.ReportDropped(r.Ref(), lost)
	}
	if len(detected) > 0 {
		r.ledger.ReportActive(now, r.Ref(), detected)
	}
}

// covers reports whether tgt is inside the radar's range and above its
// horizon
func (r *Radar) covers(self, tgt *core.Entity) bool {
	d := r.geo.Distance(self.Location, tgt.Location)
	if r.cfg.RangeNoise > 0 {
		d += r.cfg.RangeNoise * r.rng.NormFloat64()
	}
	if d > r.cfg.RangeNM {
		return false
	}
	return r.geo.Elevation(self.Location, tgt.Location, core.RadarEarthFactor) >= 0
}

func (r *Radar) dropAll() {
	if len(r.held) == 0 {
		return
	}
	lost := r.Held()
	clear(r.held)
	r.ledger.ReportDropped(r.Ref(), lost)
}

// Jammer is a noise jammer carried by a raid aircraft
type Jammer struct {
	Carrier core.Handle
	RangeNM float64 // effectiveness falls to zero at this range
	Power   float64 // effectiveness at zero range, in [0, 1]
}

// JammingField resolves electronic attack against the run's radars.
// Effectiveness falls off linearly with range; a sensor is jammed once the
// strongest jammer reaches the threshold.
type JammingField struct {
	arena     *core.Arena
	geo       core.Geodesy
	threshold float64
	jammers   []Jammer
}

var _ guidance.Jamming = (*JammingField)(nil)

// NewJammingField creates an empty field
func NewJammingField(arena *core.Arena, geo core.Geodesy, threshold float64) *JammingField {
	return &JammingField{arena: arena, geo: geo, threshold: threshold}
}

// Add registers a jammer
func (j *JammingField) Add(jm Jammer) {
	if jm.Power <= 0 {
		jm.Power = 1
	}
	j.jammers = append(j.jammers, jm)
}

// Jammers returns the registered jammers
func (j *JammingField) Jammers() []Jammer { return slices.Clone(j.jammers) }

// JammingEffectiveness is source's effect on sensor in [0, 1]
func (j *JammingField) JammingEffectiveness(source, sensor core.Handle) float64 {
	s := j.arena.Get(sensor)
	if s == nil {
		return 0
	}
	for _, jm := range j.jammers {
		if jm.Carrier == source {
			return j.effect(jm, s)
		}
	}
	return 0
}

func (j *JammingField) effect(jm Jammer, sensor *core.Entity) float64 {
	carrier := j.arena.Get(jm.Carrier)
	if !carrier.Alive() || jm.RangeNM <= 0 {
		return 0
	}
	d := j.geo.Distance(carrier.Location, sensor.Location)
	return math.Min(1, math.Max(0, jm.Power*(1-d/jm.RangeNM)))
}

// JammingSource is the most effective jammer against sensor, NoHandle when
// none has any effect
func (j *JammingField) JammingSource(sensor core.Handle) core.Handle {
	src, _ := j.strongest(sensor)
	return src
}

// IsJammed reports whether the strongest jammer on sensor reaches the
// threshold
func (j *JammingField) IsJammed(sensor core.Handle) bool {
	src, eff := j.strongest(sensor)
	return src != core.NoHandle && eff >= j.threshold
}

func (j *JammingField) strongest(sensor core.Handle) (core.Handle, float64) {
	s := j.arena.Get(sensor)
	if s == nil {
		return core.NoHandle, 0
	}
	best, bestEff := core.NoHandle, 0.0
	for _, jm := range j.jammers {
		eff := j.effect(jm, s)
		if eff > bestEff || (eff == bestEff && eff > 0 && jm.Carrier < best) {
			best, bestEff = jm.Carrier, eff
		}
	}
	return best, bestEff
}
