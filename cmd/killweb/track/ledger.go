package track

import (
	"slices"

	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
)

// Function is the role a sensor plays when it reports a track. Functions are
// ordered by precedence: EarlyWarning < TargetAcquisition < TargetTrack.
type Function int

const (
	EarlyWarning Function = iota
	TargetAcquisition
	TargetTrack
)

// NumFunctions is the number of sensor slots on a record
const NumFunctions = 3

func (f Function) String() string {
	switch f {
	case EarlyWarning:
		return "EW"
	case TargetAcquisition:
		return "TA"
	case TargetTrack:
		return "TT"
	default:
		return "UNKNOWN"
	}
}

// ParseFunction maps a configuration name to a Function
func ParseFunction(s string) (Function, bool) {
	switch s {
	case "early_warning", "EW", "ew":
		return EarlyWarning, true
	case "target_acquisition", "TA", "ta":
		return TargetAcquisition, true
	case "target_track", "TT", "tt":
		return TargetTrack, true
	}
	return 0, false
}

// SensorRef identifies who reported a track. The zero value is "none", used
// for aggregated reports forwarded between C2 nodes.
type SensorRef struct {
	Sensor   core.Handle
	Function Function
}

// None is the sensor reference of a forwarded report
var None = SensorRef{}

// IsNone reports whether r is the aggregated reference
func (r SensorRef) IsNone() bool { return r.Sensor == core.NoHandle }

// Record is a fused track on one target
type Record struct {
	Target     core.Handle
	LastUpdate float64
	Slots      [NumFunctions]core.Handle
}

// Slot returns the last sensor to report the target in function fn
func (r Record) Slot(fn Function) core.Handle {
	if fn < 0 || int(fn) >= NumFunctions {
		return core.NoHandle
	}
	return r.Slots[fn]
}

// Empty reports whether no sensor currently holds the track
func (r Record) Empty() bool {
	for _, s := range r.Slots {
		if s != core.NoHandle {
			return false
		}
	}
	return true
}

// Age is the time since the last update
func (r Record) Age(now float64) float64 { return now - r.LastUpdate }

// Reporter receives track reports. Ledgers report to their superior's ledger.
type Reporter interface {
	ReportActive(now float64, sensor SensorRef, targets []core.Handle)
	ReportDropped(sensor SensorRef, targets []core.Handle)
}

// Stats counts ledger activity over a run
type Stats struct {
	Inserted int
	Updated  int
	Ignored  int // new targets refused at capacity
	Dropped  int // removals queued for forwarding
	AgedOut  int
}

// Ledger is one C2 node's map of fused tracks. It is not safe for concurrent
// use; the owning node mutates it from its own scheduled callbacks.
type Ledger struct {
	capacity int
	ageOut   float64
	records  map[core.Handle]*Record
	dropped  map[core.Handle]struct{}
	stats    Stats
}

// NewLedger creates a ledger. capacity <= 0 means unbounded; ageOut <= 0
// disables aging.
func NewLedger(capacity int, ageOut float64) *Ledger {
	return &Ledger{
		capacity: capacity,
		ageOut:   ageOut,
		records:  make(map[core.Handle]*Record),
		dropped:  make(map[core.Handle]struct{}),
	}
}

// Capacity is the maximum number of records, 0 when unbounded
func (l *Ledger) Capacity() int { return max(l.capacity, 0) }

// AgeOut is the staleness threshold in seconds
func (l *Ledger) AgeOut() float64 { return l.ageOut }

// ReportActive inserts or refreshes a record per target. New targets beyond
// capacity are ignored.
func (l *Ledger) ReportActive(now float64, sensor SensorRef, targets []core.Handle) {
	for _, t := range targets {
		if t == core.NoHandle {
			continue
		}
		rec, ok := l.records[t]
		if !ok {
			if l.capacity > 0 && len(l.records) >= l.capacity {
				l.stats.Ignored++
				continue
			}
			rec = &Record{Target: t}
			l.records[t] = rec
			l.stats.Inserted++
		} else {
			l.stats.Updated++
		}

		if now > rec.LastUpdate || !ok {
			rec.LastUpdate = now
		}
		if !sensor.IsNone() && int(sensor.Function) < NumFunctions {
			rec.Slots[sensor.Function] = sensor.Sensor
		}
		delete(l.dropped, t)
	}
}

// ReportDropped clears sensor's slot on each target's record. A "none"
// sensor removes the record outright; otherwise the record goes once every
// slot is empty.
func (l *Ledger) ReportDropped(sensor SensorRef, targets []core.Handle) {
	for _, t := range targets {
		rec, ok := l.records[t]
		if !ok {
			continue
		}
		if sensor.IsNone() {
			l.remove(t)
			continue
		}
		if int(sensor.Function) < NumFunctions && rec.Slots[sensor.Function] == sensor.Sensor {
			rec.Slots[sensor.Function] = core.NoHandle
		}
		if rec.Empty() {
			l.remove(t)
		}
	}
}

func (l *Ledger) remove(t core.Handle) {
	delete(l.records, t)
	if _, queued := l.dropped[t]; !queued {
		l.dropped[t] = struct{}{}
		l.stats.Dropped++
	}
}

// Age removes every record not refreshed for more than the age-out
// threshold and returns the removed targets in handle order.
func (l *Ledger) Age(now float64) []core.Handle {
	if l.ageOut <= 0 {
		return nil
	}
	var aged []core.Handle
	for t, rec := range l.records {
		if now-rec.LastUpdate > l.ageOut {
			aged = append(aged, t)
		}
	}
	slices.Sort(aged)
	for _, t := range aged {
		l.remove(t)
		l.stats.AgedOut++
	}
	return aged
}

// Forward pushes the queued drops and the current active set to the
// superior, then clears the drop queue. A nil superior discards the reports.
func (l *Ledger) Forward(to Reporter, now float64) {
	if to != nil {
		if dropped := l.Dropped(); len(dropped) > 0 {
			to.ReportDropped(None, dropped)
		}
		to.ReportActive(now, None, l.Active())
	}
	clear(l.dropped)
}

// Get returns a copy of the record for target
func (l *Ledger) Get(target core.Handle) (Record, bool) {
	rec, ok := l.records[target]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Has reports whether target is tracked
func (l *Ledger) Has(target core.Handle) bool {
	_, ok := l.records[target]
	return ok
}

// Active returns the tracked targets in handle order
func (l *Ledger) Active() []core.Handle {
	out := make([]core.Handle, 0, len(l.records))
	for t := range l.records {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Dropped returns the targets queued for drop forwarding in handle order
func (l *Ledger) Dropped() []core.Handle {
	out := make([]core.Handle, 0, len(l.dropped))
	for t := range l.dropped {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Len is the number of records
func (l *Ledger) Len() int { return len(l.records) }

// Stats returns the activity counters
func (l *Ledger) Stats() Stats { return l.stats }
