package reporting

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/picogrid/killweb-simulations/cmd/killweb/assign"
	"github.com/picogrid/killweb-simulations/cmd/killweb/controllers"
	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/guidance"
	"github.com/picogrid/killweb-simulations/pkg/logger"
)

// SimulationLogger keeps the run's event log and echoes notable events to
// the console
type SimulationLogger struct {
	runID     string
	arena     *core.Arena
	out       io.Writer
	minEcho   int
	startTime time.Time

	mu         sync.RWMutex
	events     []SimulationEvent
	counts     map[string]int
	unitCounts map[string]map[string]int
	score      Score
	lastTime   float64
}

// SimulationEvent is one logged event on the simulation timeline
type SimulationEvent struct {
	SimTime  float64
	Type     string
	Severity string
	Entity   string
	Target   string
	Message  string
	Details  map[string]interface{}
}

// Score tallies raid outcomes
type Score struct {
	Kills      int
	Leaks      int
	KillPoints int
	LeakPoints int
}

// EventType constants
const (
	EventTypeLaunch       = "launch"
	EventTypeIntercept    = "intercept"
	EventTypeMiss         = "miss"
	EventTypeSelfDestruct = "self_destruct"
	EventTypeModeChange   = "mode_change"
	EventTypeAssignment   = "assignment"
	EventTypeReassignment = "reassignment"
	EventTypeEviction     = "eviction"
	EventTypeTeardown     = "teardown"
	EventTypeRelease      = "release"
	EventTypeOutcome      = "outcome"
	EventTypeTrackDrop    = "track_drop"
	EventTypeLeak         = "leak"
	EventTypePhase        = "phase_change"
	EventTypeSystem       = "system"
)

// Severity constants
const (
	SeverityDebug    = "debug"
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

var severityRank = map[string]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// maxEvents bounds the in-memory log; counters keep running past it
const maxEvents = 10000

// Color definitions
var (
	colorDebug    = color.New(color.FgHiBlack)
	colorInfo     = color.New(color.FgCyan)
	colorWarning  = color.New(color.FgYellow)
	colorError    = color.New(color.FgRed)
	colorCritical = color.New(color.FgRed, color.Bold)
	colorBlue     = color.New(color.FgBlue, color.Bold)
	colorRed      = color.New(color.FgRed, color.Bold)
	colorSuccess  = color.New(color.FgGreen)
)

var _ controllers.Observer = (*SimulationLogger)(nil)

// NewSimulationLogger creates a logger for one run. Events at or above
// echoSeverity are printed to out.
func NewSimulationLogger(runID string, arena *core.Arena, echoSeverity string, out io.Writer) *SimulationLogger {
	rank, ok := severityRank[echoSeverity]
	if !ok {
		rank = severityRank[SeverityInfo]
	}
	sl := &SimulationLogger{
		runID:      runID,
		arena:      arena,
		out:        out,
		minEcho:    rank,
		startTime:  time.Now(),
		events:     make([]SimulationEvent, 0),
		counts:     make(map[string]int),
		unitCounts: make(map[string]map[string]int),
	}

	sl.logColoredMessage(0, SeverityInfo, "Simulation Started",
		fmt.Sprintf("ID: %s | Time: %s", runID, sl.startTime.Format("15:04:05")))
	return sl
}

func (sl *SimulationLogger) name(h core.Handle) string {
	if h == core.NoHandle {
		return "-"
	}
	return sl.arena.Name(h)
}

// Launch logs an interceptor launch
func (sl *SimulationLogger) Launch(now float64, unit, interceptor, target core.Handle, roundsLeft int) {
	sl.record(SimulationEvent{
		SimTime:  now,
		Type:     EventTypeLaunch,
		Severity: SeverityInfo,
		Entity:   sl.name(unit),
		Target:   sl.name(target),
		Message:  fmt.Sprintf("%s fired %s at %s (%d left)", sl.name(unit), sl.name(interceptor), sl.name(target), roundsLeft),
		Details: map[string]interface{}{
			"interceptor": sl.name(interceptor),
			"rounds_left": roundsLeft,
		},
	}, "Launch")
}

// Guidance logs interceptor mode changes and dispositions
func (sl *SimulationLogger) Guidance(ev guidance.Event) {
	msl, tgt := sl.name(ev.Interceptor), sl.name(ev.Target)
	details := map[string]interface{}{
		"launcher": sl.name(ev.Launcher),
		"flown_nm": ev.Flown,
		"mode":     ev.To.String(),
	}

	switch ev.Kind {
	case guidance.EventModeChange:
		sev := SeverityDebug
		if ev.To == guidance.HomeOnJam {
			sev = SeverityWarning
		}
		details["from"] = ev.From.String()
		sl.record(SimulationEvent{
			SimTime: ev.Time, Type: EventTypeModeChange, Severity: sev,
			Entity: msl, Target: tgt, Details: details,
			Message: fmt.Sprintf("%s %s -> %s on %s", msl, ev.From, ev.To, tgt),
		}, "Mode Change")

	case guidance.EventHit:
		points := 0
		if e := sl.arena.Get(ev.Target); e != nil {
			points = e.Points
		}
		sl.mu.Lock()
		sl.score.Kills++
		sl.score.KillPoints += points
		sl.mu.Unlock()
		details["points"] = points
		sl.record(SimulationEvent{
			SimTime: ev.Time, Type: EventTypeIntercept, Severity: SeverityInfo,
			Entity: msl, Target: tgt, Details: details,
			Message: fmt.Sprintf("%s destroyed %s after %.1f nmi", msl, tgt, ev.Flown),
		}, "Intercept")

	case guidance.EventMiss:
		sl.record(SimulationEvent{
			SimTime: ev.Time, Type: EventTypeMiss, Severity: SeverityWarning,
			Entity: msl, Target: tgt, Details: details,
			Message: fmt.Sprintf("%s missed %s", msl, tgt),
		}, "Miss")

	case guidance.EventSelfDestruct:
		sl.record(SimulationEvent{
			SimTime: ev.Time, Type: EventTypeSelfDestruct, Severity: SeverityWarning,
			Entity: msl, Target: tgt, Details: details,
			Message: fmt.Sprintf("%s self-destructed after %.1f nmi", msl, ev.Flown),
		}, "Self Destruct")
	}
}

// Assignment logs a change in a C2 node's assignments
func (sl *SimulationLogger) Assignment(ev assign.Event) {
	node, tgt, shooter := sl.name(ev.Node), sl.name(ev.Target), sl.name(ev.Shooter)
	details := map[string]interface{}{
		"shooter":       shooter,
		"engageability": ev.Engageability,
	}
	if ev.Reason != "" {
		details["reason"] = ev.Reason
	}

	evt := SimulationEvent{SimTime: ev.Time, Entity: node, Target: tgt, Details: details, Severity: SeverityDebug}
	var label string
	switch ev.Kind {
	case assign.EventAssigned:
		evt.Type, label = EventTypeAssignment, "Assign"
		evt.Message = fmt.Sprintf("%s assigned %s to %s", node, tgt, shooter)
	case assign.EventReassigned:
		evt.Type, label = EventTypeReassignment, "Reassign"
		evt.Severity = SeverityInfo
		details["previous"] = sl.name(ev.Previous)
		evt.Message = fmt.Sprintf("%s moved %s from %s to %s", node, tgt, sl.name(ev.Previous), shooter)
	case assign.EventEvicted:
		evt.Type, label = EventTypeEviction, "Evict"
		evt.Severity = SeverityInfo
		evt.Message = fmt.Sprintf("%s bumped %s off %s", node, tgt, shooter)
	case assign.EventTornDown:
		evt.Type, label = EventTypeTeardown, "Teardown"
		evt.Message = fmt.Sprintf("%s dropped %s from %s (%s)", node, tgt, shooter, ev.Reason)
	case assign.EventReleased:
		evt.Type, label = EventTypeRelease, "Release"
		evt.Message = fmt.Sprintf("%s released %s to its superior (%s)", node, tgt, ev.Reason)
	case assign.EventHit, assign.EventMiss:
		evt.Type, label = EventTypeOutcome, "Outcome"
		details["hit"] = ev.Kind == assign.EventHit
		evt.Message = fmt.Sprintf("%s notified: %s on %s by %s", node, ev.Kind, tgt, shooter)
	default:
		return
	}
	sl.record(evt, label)
}

// TrackDropped logs a track aging out of a node's ledger
func (sl *SimulationLogger) TrackDropped(now float64, node, target core.Handle) {
	sl.record(SimulationEvent{
		SimTime:  now,
		Type:     EventTypeTrackDrop,
		Severity: SeverityDebug,
		Entity:   sl.name(node),
		Target:   sl.name(target),
		Message:  fmt.Sprintf("%s lost track of %s", sl.name(node), sl.name(target)),
	}, "Track Drop")
}

// Leak logs a raid aircraft reaching its destination
func (sl *SimulationLogger) Leak(now float64, aircraft core.Handle) {
	points := 0
	if e := sl.arena.Get(aircraft); e != nil {
		points = e.Points
	}
	sl.mu.Lock()
	sl.score.Leaks++
	sl.score.LeakPoints += points
	sl.mu.Unlock()

	sl.record(SimulationEvent{
		SimTime:  now,
		Type:     EventTypeLeak,
		Severity: SeverityError,
		Entity:   sl.name(aircraft),
		Message:  fmt.Sprintf("%s leaked through the defense", sl.name(aircraft)),
		Details:  map[string]interface{}{"points": points},
	}, "Leak")
}

// PhaseChange logs a guidance tick period change
func (sl *SimulationLogger) PhaseChange(now float64, interceptorType string, period float64) {
	sl.record(SimulationEvent{
		SimTime:  now,
		Type:     EventTypePhase,
		Severity: SeverityDebug,
		Entity:   interceptorType,
		Message:  fmt.Sprintf("%s guidance period now %.2fs", interceptorType, period),
		Details:  map[string]interface{}{"period": period},
	}, "Phase")
}

// LogError logs a run error
func (sl *SimulationLogger) LogError(now float64, message string, err error) {
	sl.record(SimulationEvent{
		SimTime:  now,
		Type:     EventTypeSystem,
		Severity: SeverityError,
		Message:  message,
		Details:  map[string]interface{}{"error": err.Error()},
	}, "Error")
	logger.Errorf("%s: %v", message, err)
}

func (sl *SimulationLogger) record(event SimulationEvent, label string) {
	sl.mu.Lock()
	sl.events = append(sl.events, event)
	if len(sl.events) > maxEvents {
		sl.events = sl.events[len(sl.events)-maxEvents:]
	}
	sl.counts[event.Type]++
	if event.Entity != "" {
		if sl.unitCounts[event.Entity] == nil {
			sl.unitCounts[event.Entity] = make(map[string]int)
		}
		sl.unitCounts[event.Entity][event.Type]++
	}
	if event.SimTime > sl.lastTime {
		sl.lastTime = event.SimTime
	}
	sl.mu.Unlock()

	sl.logColoredMessage(event.SimTime, event.Severity, label, event.Message)
}

// GetEvents returns the retained events
func (sl *SimulationLogger) GetEvents() []SimulationEvent {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return slices.Clone(sl.events)
}

// Score returns the current tally
func (sl *SimulationLogger) Score() Score {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.score
}

// SimulationSummary is a roll-up of the event log
type SimulationSummary struct {
	RunID        string
	StartTime    time.Time
	WallDuration time.Duration
	SimDuration  float64
	TotalEvents  int
	EventCounts  map[string]int
	UnitEvents   map[string]map[string]int
	Score        Score
}

// GetSummary returns the run summary
func (sl *SimulationLogger) GetSummary() SimulationSummary {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	total := 0
	for _, n := range sl.counts {
		total += n
	}
	units := make(map[string]map[string]int, len(sl.unitCounts))
	for u, c := range sl.unitCounts {
		units[u] = maps.Clone(c)
	}
	return SimulationSummary{
		RunID:        sl.runID,
		StartTime:    sl.startTime,
		WallDuration: time.Since(sl.startTime),
		SimDuration:  sl.lastTime,
		TotalEvents:  total,
		EventCounts:  maps.Clone(sl.counts),
		UnitEvents:   units,
		Score:        sl.score,
	}
}

func (sl *SimulationLogger) logColoredMessage(simTime float64, severity, label, message string) {
	if severityRank[severity] < sl.minEcho {
		return
	}

	var severityColor *color.Color
	switch severity {
	case SeverityDebug:
		severityColor = colorDebug
	case SeverityInfo:
		severityColor = colorInfo
	case SeverityWarning:
		severityColor = colorWarning
	case SeverityError:
		severityColor = colorError
	case SeverityCritical:
		severityColor = colorCritical
	default:
		severityColor = colorInfo
	}

	_, _ = fmt.Fprintf(sl.out, "[T+%8.1fs] %s %s | %s\n",
		simTime,
		severityColor.Sprint(fmt.Sprintf("%-8s", severity)),
		label,
		message)
}

// PrintSummary prints the run summary
func (sl *SimulationLogger) PrintSummary() {
	summary := sl.GetSummary()
	id := summary.RunID
	if len(id) > 8 {
		id = id[:8]
	}

	_, _ = colorSuccess.Fprintln(sl.out, "\n==========================================================")
	_, _ = colorSuccess.Fprintf(sl.out, "             KILL WEB SUMMARY - %s\n", id)
	_, _ = colorSuccess.Fprintln(sl.out, "==========================================================")

	_, _ = fmt.Fprintf(sl.out, "\nSim time: %.1fs | Wall time: %v | Events: %d\n",
		summary.SimDuration, summary.WallDuration.Round(time.Millisecond), summary.TotalEvents)

	s := summary.Score
	_, _ = fmt.Fprintf(sl.out, "\nRaid outcome: %s killed (%d pts) | %s leaked (%d pts)\n",
		colorBlue.Sprint(s.Kills), s.KillPoints, colorRed.Sprint(s.Leaks), s.LeakPoints)

	_, _ = fmt.Fprintln(sl.out, "\nEvent distribution:")
	for _, t := range slices.Sorted(maps.Keys(summary.EventCounts)) {
		_, _ = fmt.Fprintf(sl.out, "   %-20s: %d\n", t, summary.EventCounts[t])
	}

	_, _ = fmt.Fprintln(sl.out, "\nUnit activity:")
	for _, u := range slices.Sorted(maps.Keys(summary.UnitEvents)) {
		_, _ = fmt.Fprintf(sl.out, "\n   %s:\n", colorInfo.Sprint(u))
		events := summary.UnitEvents[u]
		for _, t := range slices.Sorted(maps.Keys(events)) {
			_, _ = fmt.Fprintf(sl.out, "      %-18s: %d\n", t, events[t])
		}
	}

	_, _ = colorSuccess.Fprintln(sl.out, "\n==========================================================")
}
