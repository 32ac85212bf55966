package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/picogrid/killweb-simulations/cmd/killweb/assign"
	"github.com/picogrid/killweb-simulations/cmd/killweb/controllers"
	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/guidance"
)

// Journal writes one JSON line per event for offline replay. Positions are
// given as Web Mercator metres so the file can be dropped on a map.
type Journal struct {
	log    zerolog.Logger
	arena  *core.Arena
	closer io.Closer
}

var _ controllers.Observer = (*Journal)(nil)

// NewJournal writes to w. Events below level are skipped; assignment and
// track bookkeeping are logged at debug.
func NewJournal(w io.Writer, runID string, arena *core.Arena, level zerolog.Level) *Journal {
	return &Journal{
		log:   zerolog.New(w).Level(level).With().Str("run", runID).Logger(),
		arena: arena,
	}
}

// OpenJournal creates the journal file at path
func OpenJournal(path, runID string, arena *core.Arena, level zerolog.Level) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}
	j := NewJournal(f, runID, arena, level)
	j.closer = f
	return j, nil
}

// Close closes the underlying file, if the journal owns one
func (j *Journal) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

func (j *Journal) name(h core.Handle) string {
	if h == core.NoHandle {
		return ""
	}
	return j.arena.Name(h)
}

func at(e *zerolog.Event, p core.Point) *zerolog.Event {
	x, y := core.WebMercator(p)
	return e.Float64("x", x).Float64("y", y).Float64("alt_ft", p.Alt)
}

func (j *Journal) entityAt(e *zerolog.Event, h core.Handle) *zerolog.Event {
	if ent := j.arena.Get(h); ent != nil {
		return at(e, ent.Location)
	}
	return e
}

// Launch implements controllers.Observer
func (j *Journal) Launch(now float64, unit, interceptor, target core.Handle, roundsLeft int) {
	ev := j.log.Info().
		Float64("t", now).
		Str("event", EventTypeLaunch).
		Str("unit", j.name(unit)).
		Str("interceptor", j.name(interceptor)).
		Str("target", j.name(target)).
		Int("rounds_left", roundsLeft)
	j.entityAt(ev, unit).Send()
}

// Guidance implements controllers.Observer
func (j *Journal) Guidance(g guidance.Event) {
	var ev *zerolog.Event
	switch g.Kind {
	case guidance.EventModeChange:
		ev = j.log.Debug().Str("event", EventTypeModeChange).Str("from", g.From.String())
	case guidance.EventHit:
		ev = j.log.Info().Str("event", EventTypeIntercept)
	case guidance.EventMiss:
		ev = j.log.Info().Str("event", EventTypeMiss)
	case guidance.EventSelfDestruct:
		ev = j.log.Info().Str("event", EventTypeSelfDestruct)
	default:
		return
	}
	ev = ev.Float64("t", g.Time).
		Str("interceptor", j.name(g.Interceptor)).
		Str("launcher", j.name(g.Launcher)).
		Str("target", j.name(g.Target)).
		Str("mode", g.To.String()).
		Float64("flown_nm", g.Flown)
	at(ev, g.Location).Send()
}

// Assignment implements controllers.Observer
func (j *Journal) Assignment(a assign.Event) {
	ev := j.log.Debug().
		Float64("t", a.Time).
		Str("event", "assign."+string(a.Kind)).
		Str("node", j.name(a.Node)).
		Str("target", j.name(a.Target)).
		Str("shooter", j.name(a.Shooter))
	if a.Previous != core.NoHandle {
		ev = ev.Str("previous", j.name(a.Previous))
	}
	if a.Reason != "" {
		ev = ev.Str("reason", a.Reason)
	}
	ev.Send()
}

// TrackDropped implements controllers.Observer
func (j *Journal) TrackDropped(now float64, node, target core.Handle) {
	j.log.Debug().
		Float64("t", now).
		Str("event", EventTypeTrackDrop).
		Str("node", j.name(node)).
		Str("target", j.name(target)).
		Send()
}

// Leak implements controllers.Observer
func (j *Journal) Leak(now float64, aircraft core.Handle) {
	ev := j.log.Warn().
		Float64("t", now).
		Str("event", EventTypeLeak).
		Str("aircraft", j.name(aircraft))
	j.entityAt(ev, aircraft).Send()
}

// PhaseChange implements controllers.Observer
func (j *Journal) PhaseChange(now float64, interceptorType string, period float64) {
	j.log.Debug().
		Float64("t", now).
		Str("event", EventTypePhase).
		Str("type", interceptorType).
		Float64("period", period).
		Send()
}
