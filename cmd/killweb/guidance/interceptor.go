package guidance

import (
	"math"

	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/track"
)

// Mode is the guidance mode of an interceptor
type Mode int

const (
	Ballistic Mode = iota
	Semiactive
	Active
	HomeOnJam
)

func (m Mode) String() string {
	switch m {
	case Ballistic:
		return "BALLISTIC"
	case Semiactive:
		return "SEMIACTIVE"
	case Active:
		return "ACTIVE"
	case HomeOnJam:
		return "HOJ"
	default:
		return "UNKNOWN"
	}
}

const (
	gravity     = 9.80665  // m/s^2
	knotsToMS   = 0.514444 // m/s per knot
	leadRateMin = 0.15     // bearing rate, as a share of max turn rate, that triggers lead
	leadTicks   = 5        // heading error window, in max-rate ticks, for lead
)

// Launcher is the weapon system that fired an interceptor
type Launcher interface {
	Handle() core.Handle
	// TargetDestroyed reports the single terminal outcome of interceptor
	TargetDestroyed(interceptor, target core.Handle, hit bool)
	// TrackData returns the launcher's current track on target
	TrackData(target core.Handle) (track.Record, bool)
}

// Jamming answers electronic-attack questions about sensors
type Jamming interface {
	IsJammed(sensor core.Handle) bool
	JammingSource(sensor core.Handle) core.Handle
	JammingEffectiveness(source, sensor core.Handle) float64
}

// Params are the performance figures of an interceptor type
type Params struct {
	SpeedKts       float64
	LethalRange    float64 // nmi of flight before self-destruct
	Pk             float64
	MaxG           float64
	ActiveRange    float64 // nmi to target at which the seeker goes active
	NominalPeriod  float64 // seconds
	TerminalPeriod float64 // seconds
}

// MaxTurnRate is the turn rate in degrees per second that maxG allows at
// speedKts
func MaxTurnRate(speedKts, maxG float64) float64 {
	v := speedKts * knotsToMS
	if v <= 0 || maxG <= 0 {
		return 0
	}
	return (gravity * maxG / v) * 180 / math.Pi
}

// EventKind classifies an interceptor event
type EventKind string

const (
	EventModeChange   EventKind = "mode_change"
	EventHit          EventKind = "hit"
	EventMiss         EventKind = "miss"
	EventSelfDestruct EventKind = "self_destruct"
)

// Event is emitted on mode changes and terminal disposition
type Event struct {
	Time        float64
	Kind        EventKind
	Interceptor core.Handle
	Launcher    core.Handle
	Target      core.Handle
	From, To    Mode
	Location    core.Point
	Flown       float64
}

// Config wires an interceptor to its run
type Config struct {
	Arena    *core.Arena
	Geodesy  core.Geodesy
	Rand     core.Rand
	Launcher Launcher
	Jamming  Jamming
	Phase    *PhaseCounter
	Params   Params
	// Tracker is the sensor designated to provide terminal tracking
	Tracker core.Handle
	OnEvent func(Event)
}

// Interceptor is one missile in flight. It is a scheduler behavior.
type Interceptor struct {
	cfg Config
	id  core.Handle

	target   core.Handle
	original core.Handle
	mode     Mode

	heading   float64
	elevation float64
	flown     float64
	lastTime  float64

	lastBearing float64
	haveBearing bool

	done bool
	hit  bool
}

// Launch starts an interceptor already present in the arena as id, pointed
// at target's current position.
func Launch(cfg Config, id, target core.Handle, now float64) *Interceptor {
	i := &Interceptor{
		cfg:      cfg,
		id:       id,
		target:   target,
		original: target,
		mode:     Ballistic,
		lastTime: now,
	}
	self, tgt := cfg.Arena.Get(id), cfg.Arena.Get(target)
	if self != nil && tgt != nil {
		i.heading = cfg.Geodesy.Azimuth(self.Location, tgt.Location)
		i.elevation = cfg.Geodesy.Elevation(self.Location, tgt.Location, 1)
	}
	return i
}

// ID is the interceptor's arena handle
func (i *Interceptor) ID() core.Handle { return i.id }

// Mode is the current guidance mode
func (i *Interceptor) Mode() Mode { return i.mode }

// Target is the entity currently homed on
func (i *Interceptor) Target() core.Handle { return i.target }

// Flown is the accrued flight distance in nmi
func (i *Interceptor) Flown() float64 { return i.flown }

// Heading is the current heading in degrees true
func (i *Interceptor) Heading() float64 { return i.heading }

// Done reports whether the interceptor has been disposed of
func (i *Interceptor) Done() bool { return i.done }

// Hit reports whether the disposition was a kill
func (i *Interceptor) Hit() bool { return i.hit }

// NextDue implements core.Behavior
func (i *Interceptor) NextDue(now float64) float64 {
	if i.done {
		return math.Inf(1)
	}
	return now + i.cfg.Phase.Period()
}

// Perform advances the interceptor to now
func (i *Interceptor) Perform(now float64) {
	if i.done {
		return
	}
	dt := now - i.lastTime
	i.lastTime = now
	self := i.cfg.Arena.Get(i.id)
	if self == nil || dt <= 0 {
		return
	}

	i.updateMode(now, self)

	p := i.cfg.Params
	step := p.SpeedKts * dt / 3600
	tgt := i.cfg.Arena.Get(i.target)

	if tgt.Alive() && step >= i.cfg.Geodesy.Distance(self.Location, tgt.Location) {
		self.Location = tgt.Location
		i.flown += step
		hit := core.Bernoulli(i.cfg.Rand, p.Pk)
		if hit {
			tgt.Status = core.StatusDead
		}
		kind := EventMiss
		if hit {
			kind = EventHit
		}
		i.finish(now, self, hit, kind)
		return
	}

	if i.mode != Ballistic && tgt != nil {
		i.steer(self, tgt, dt)
	}
	i.move(self, step)

	if i.flown > p.LethalRange {
		i.finish(now, self, false, EventSelfDestruct)
		return
	}

	if tgt.Alive() && i.cfg.Geodesy.Distance(self.Location, tgt.Location) <= TerminalFraction*p.LethalRange {
		i.cfg.Phase.Enter(i.id, now)
	} else {
		i.cfg.Phase.Leave(i.id, now)
	}
}

// updateMode applies at most one mode transition
func (i *Interceptor) updateMode(now float64, self *core.Entity) {
	next := i.mode
	switch i.mode {
	case Ballistic:
		if i.tracked() {
			next = Semiactive
		}

	case Semiactive:
		tgt := i.cfg.Arena.Get(i.target)
		switch {
		case tgt != nil && i.cfg.Geodesy.Distance(self.Location, tgt.Location) < i.cfg.Params.ActiveRange:
			next = Active
		case i.tracked():
		case i.jammed():
			if src := i.cfg.Jamming.JammingSource(i.cfg.Tracker); src != core.NoHandle {
				i.target = src
				next = HomeOnJam
			} else {
				next = Ballistic
			}
		default:
			next = Ballistic
		}

	case HomeOnJam:
		if !i.cfg.Arena.Alive(i.target) || i.cfg.Jamming == nil ||
			i.cfg.Jamming.JammingEffectiveness(i.target, i.cfg.Tracker) <= 0 {
			if i.cfg.Arena.Alive(i.original) {
				i.target = i.original
			}
			next = Ballistic
		}

	case Active:
	}

	if next != i.mode {
		prev := i.mode
		i.mode = next
		i.haveBearing = false
		i.emit(Event{Time: now, Kind: EventModeChange, From: prev, To: next, Location: self.Location})
	}
}

// tracked reports whether the launcher holds a track on the target from
// the designated terminal tracker
func (i *Interceptor) tracked() bool {
	if i.cfg.Tracker == core.NoHandle {
		return false
	}
	rec, ok := i.cfg.Launcher.TrackData(i.target)
	return ok && rec.Slot(track.TargetTrack) == i.cfg.Tracker
}

func (i *Interceptor) jammed() bool {
	return i.cfg.Jamming != nil && i.cfg.Jamming.IsJammed(i.cfg.Tracker)
}

// steer turns toward the target within the max turn rate, pulling max rate
// early when the bearing is swinging fast and the error is still small.
func (i *Interceptor) steer(self, tgt *core.Entity, dt float64) {
	maxRate := MaxTurnRate(i.cfg.Params.SpeedKts, i.cfg.Params.MaxG)
	bearing := i.cfg.Geodesy.Azimuth(self.Location, tgt.Location)
	headingErr := core.HeadingError(bearing - i.heading)

	rate := math.NaN()
	if i.haveBearing {
		bearingRate := core.HeadingError(bearing-i.lastBearing) / dt
		if math.Abs(bearingRate) > leadRateMin*maxRate && math.Abs(headingErr) <= leadTicks*maxRate*dt {
			rate = math.Copysign(maxRate, bearingRate)
		}
	}
	if math.IsNaN(rate) {
		rate = clamp(headingErr/dt, maxRate)
	}
	i.heading = core.NormalizeHeading(i.heading + rate*dt)
	i.lastBearing, i.haveBearing = bearing, true

	look := i.cfg.Geodesy.Elevation(self.Location, tgt.Location, 1)
	i.elevation += clamp(look-i.elevation, maxRate*dt)
}

func (i *Interceptor) move(self *core.Entity, step float64) {
	el := i.elevation * math.Pi / 180
	loc := i.cfg.Geodesy.Project(self.Location, step*math.Cos(el), i.heading)
	loc.Alt = max(self.Location.Alt+step*math.Sin(el)*core.FeetPerNM, 0)
	self.Location = loc
	i.flown += step
}

func (i *Interceptor) finish(now float64, self *core.Entity, hit bool, kind EventKind) {
	i.done = true
	i.hit = hit
	self.Status = core.StatusDead
	i.cfg.Phase.Leave(i.id, now)
	i.emit(Event{Time: now, Kind: kind, From: i.mode, To: i.mode, Location: self.Location})
	i.cfg.Launcher.TargetDestroyed(i.id, i.target, hit)
}

func (i *Interceptor) emit(ev Event) {
	if i.cfg.OnEvent == nil {
		return
	}
	ev.Interceptor = i.id
	ev.Launcher = i.cfg.Launcher.Handle()
	ev.Target = i.target
	ev.Flown = i.flown
	i.cfg.OnEvent(ev)
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
