package assign

import (
	"math"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
)

// fakeShooter is a leaf with a fixed engageability table
type fakeShooter struct {
	handle    core.Handle
	capacity  int
	eng       map[core.Handle]float64
	held      []core.Handle
	committed map[core.Handle]bool
	assigns   int
}

func newFake(h core.Handle, capacity int, eng map[core.Handle]float64) *fakeShooter {
	return &fakeShooter{handle: h, capacity: capacity, eng: eng, committed: map[core.Handle]bool{}}
}

func (f *fakeShooter) Handle() core.Handle { return f.handle }

func (f *fakeShooter) Engageability(t core.Handle) float64 {
	if v, ok := f.eng[t]; ok {
		return v
	}
	return math.Inf(1)
}

func (f *fakeShooter) Assign(t core.Handle) bool {
	if slices.Contains(f.held, t) {
		return true
	}
	if len(f.held) >= f.capacity {
		return false
	}
	f.held = append(f.held, t)
	f.assigns++
	return true
}

func (f *fakeShooter) PriorityAssign(t core.Handle) (core.Handle, bool) {
	if f.Assign(t) {
		return core.NoHandle, true
	}
	victim, ok := SelectEviction(f.Assignments())
	if !ok {
		return core.NoHandle, false
	}
	f.Unassign(victim)
	f.Assign(t)
	return victim, true
}

func (f *fakeShooter) Unassign(t core.Handle) {
	f.held = slices.DeleteFunc(f.held, func(h core.Handle) bool { return h == t })
	delete(f.committed, t)
}

func (f *fakeShooter) SpareCapacity() int { return max(f.capacity-len(f.held), 0) }

func (f *fakeShooter) Assignments() []Assignment {
	out := make([]Assignment, 0, len(f.held))
	for _, t := range f.held {
		out = append(out, Assignment{Target: t, Engageability: f.Engageability(t), Committed: f.committed[t]})
	}
	return out
}

type fakeTracks struct{ targets []core.Handle }

func (f *fakeTracks) Has(t core.Handle) bool   { return slices.Contains(f.targets, t) }
func (f *fakeTracks) Active() []core.Handle { return slices.Clone(f.targets) }

type recordingUpstream struct {
	outcomes []core.Handle
	releases []core.Handle
}

func (r *recordingUpstream) Outcome(target, shooter core.Handle, hit bool) {
	r.outcomes = append(r.outcomes, target)
}

func (r *recordingUpstream) Release(target, shooter core.Handle) {
	r.releases = append(r.releases, target)
}

func newTestEngine(capacity int, threshold float64, tracks *fakeTracks, dead map[core.Handle]bool) (*Engine, *[]Event) {
	var events []Event
	e := NewEngine(Config{
		Handle:    100,
		Capacity:  capacity,
		Threshold: threshold,
		Tracks:    tracks,
		Alive:     func(h core.Handle) bool { return !dead[h] },
		OnEvent:   func(ev Event) { events = append(events, ev) },
	})
	return e, &events
}

func heldBy(e *Engine) map[core.Handle]core.Handle {
	out := map[core.Handle]core.Handle{}
	for _, a := range e.Assignments() {
		if s, ok := e.ShooterFor(a.Target); ok {
			out[a.Target] = s
		}
	}
	return out
}

func TestRebalanceRespectsCapacityAndThreshold(t *testing.T) {
	tracks := &fakeTracks{targets: []core.Handle{1, 2, 3}}
	e, _ := newTestEngine(2, 10, tracks, nil)
	e.AddSubordinate(newFake(10, 5, map[core.Handle]float64{1: 3, 2: 5, 3: 12}))

	e.Rebalance(0)

	want := map[core.Handle]core.Handle{1: 10, 2: 10}
	if diff := cmp.Diff(want, heldBy(e)); diff != "" {
		t.Errorf("assignments mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, e.SpareCapacity())
}

func TestRebalanceSkipsOverThresholdEvenWithCapacity(t *testing.T) {
	tracks := &fakeTracks{targets: []core.Handle{3}}
	e, _ := newTestEngine(5, 10, tracks, nil)
	e.AddSubordinate(newFake(10, 5, map[core.Handle]float64{3: 12}))

	e.Rebalance(0)
	assert.Empty(t, e.Assignments())
}

func TestRebalancePicksBestShooter(t *testing.T) {
	tracks := &fakeTracks{targets: []core.Handle{1}}
	e, _ := newTestEngine(5, 10, tracks, nil)
	a := newFake(10, 1, map[core.Handle]float64{1: 6})
	b := newFake(11, 1, map[core.Handle]float64{1: 4})
	e.AddSubordinate(b)
	e.AddSubordinate(a)

	e.Rebalance(0)
	s, ok := e.ShooterFor(1)
	require.True(t, ok)
	assert.Equal(t, core.Handle(11), s)
	assert.Equal(t, 4.0, e.Engageability(1))
}

func TestHysteresisMargin(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		better   float64
		wantMove bool
	}{
		{"within margin", 5.5, 5, false},
		{"exactly at margin", 4.6, 4, false},
		{"beyond margin", 5.8, 5, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tracks := &fakeTracks{targets: []core.Handle{1}}
			e, events := newTestEngine(5, 10, tracks, nil)
			a := newFake(10, 1, map[core.Handle]float64{1: tc.current})
			b := newFake(11, 1, map[core.Handle]float64{})
			e.AddSubordinate(a)
			e.AddSubordinate(b)

			e.Rebalance(0)
			s, _ := e.ShooterFor(1)
			require.Equal(t, core.Handle(10), s)

			b.eng[1] = tc.better
			e.Rebalance(1)
			s, _ = e.ShooterFor(1)
			if tc.wantMove {
				assert.Equal(t, core.Handle(11), s)
				assert.Empty(t, a.held)
				last := (*events)[len(*events)-1]
				assert.Equal(t, EventReassigned, last.Kind)
				assert.Equal(t, core.Handle(10), last.Previous)
			} else {
				assert.Equal(t, core.Handle(10), s)
				assert.Empty(t, b.held)
			}
		})
	}
}

func TestRebalanceIdempotent(t *testing.T) {
	tracks := &fakeTracks{targets: []core.Handle{1, 2, 3, 4}}
	e, events := newTestEngine(3, 10, tracks, nil)
	e.AddSubordinate(newFake(10, 2, map[core.Handle]float64{1: 2, 2: 4, 3: 6, 4: 9}))
	e.AddSubordinate(newFake(11, 1, map[core.Handle]float64{1: 3, 2: 4.2, 3: 6.5, 4: 8}))

	e.Rebalance(0)
	first := heldBy(e)
	n := len(*events)

	for i := 1; i <= 5; i++ {
		e.Rebalance(float64(i))
	}
	assert.Equal(t, first, heldBy(e))
	assert.Len(t, *events, n, "no churn with unchanged inputs")
}

func TestCommittedAssignmentNeverDisplaced(t *testing.T) {
	tracks := &fakeTracks{targets: []core.Handle{1}}
	e, _ := newTestEngine(5, 10, tracks, nil)
	a := newFake(10, 1, map[core.Handle]float64{1: 9})
	b := newFake(11, 1, map[core.Handle]float64{})
	e.AddSubordinate(a)
	e.AddSubordinate(b)
	e.Rebalance(0)

	a.committed[1] = true
	b.eng[1] = 1
	a.eng[1] = 50 // drifted past threshold while the missile flies
	e.Rebalance(1)

	s, _ := e.ShooterFor(1)
	assert.Equal(t, core.Handle(10), s)
}

func TestBumpWorseUncommittedAssignment(t *testing.T) {
	tracks := &fakeTracks{targets: []core.Handle{1}}
	e, events := newTestEngine(5, 10, tracks, nil)
	a := newFake(10, 1, map[core.Handle]float64{1: 8, 2: 2})
	e.AddSubordinate(a)
	e.Rebalance(0)
	require.Equal(t, []core.Handle{1}, a.held)

	tracks.targets = []core.Handle{1, 2}
	e.Rebalance(1)
	assert.Equal(t, []core.Handle{2}, a.held)

	assert.Equal(t, map[core.Handle]core.Handle{2: 10}, heldBy(e))

	var evicted []core.Handle
	for _, ev := range *events {
		if ev.Kind == EventEvicted {
			evicted = append(evicted, ev.Target)
		}
	}
	assert.Equal(t, []core.Handle{1}, evicted)
}

func TestNoBumpOfCommittedAssignment(t *testing.T) {
	tracks := &fakeTracks{targets: []core.Handle{1}}
	e, _ := newTestEngine(5, 10, tracks, nil)
	a := newFake(10, 1, map[core.Handle]float64{1: 8, 2: 2})
	e.AddSubordinate(a)
	e.Rebalance(0)
	a.committed[1] = true

	tracks.targets = []core.Handle{1, 2}
	e.Rebalance(1)
	assert.Equal(t, []core.Handle{1}, a.held)
	_, ok := e.ShooterFor(2)
	assert.False(t, ok)
}

func TestTeardownDeadUntrackedAndOverThreshold(t *testing.T) {
	dead := map[core.Handle]bool{}
	tracks := &fakeTracks{targets: []core.Handle{1, 2, 3}}
	e, events := newTestEngine(5, 10, tracks, dead)
	a := newFake(10, 5, map[core.Handle]float64{1: 1, 2: 2, 3: 3})
	e.AddSubordinate(a)
	e.Rebalance(0)
	require.Len(t, a.held, 3)

	dead[1] = true
	tracks.targets = []core.Handle{1, 3}
	a.eng[3] = 11
	e.Rebalance(1)

	assert.Empty(t, a.held)
	reasons := map[core.Handle]string{}
	for _, ev := range *events {
		if ev.Kind == EventTornDown {
			reasons[ev.Target] = ev.Reason
		}
	}
	assert.Equal(t, map[core.Handle]string{
		1: ReasonTargetDead,
		2: ReasonUntracked,
		3: ReasonOverThreshold,
	}, reasons)
}

func TestTaskedTargetsComeFirstAndReleaseUpward(t *testing.T) {
	tracks := &fakeTracks{targets: []core.Handle{1}}
	e, _ := newTestEngine(1, 10, tracks, nil)
	up := &recordingUpstream{}
	e.SetSuperior(up)
	a := newFake(10, 1, map[core.Handle]float64{1: 1, 7: 6})
	e.AddSubordinate(a)

	require.True(t, e.Assign(7))
	assert.False(t, e.Assign(8), "node at capacity")

	e.Rebalance(0)
	assert.Equal(t, []core.Handle{7}, a.held, "tasked target outranks a better own track")

	// over threshold: released upward, freeing capacity for the own track
	a.eng[7] = 20
	e.Rebalance(1)
	assert.False(t, e.Tasked(7))
	assert.Equal(t, []core.Handle{7}, up.releases)
	assert.Equal(t, []core.Handle{1}, a.held)
}

func TestOutcomeHitPropagatesForTaskedTargets(t *testing.T) {
	tracks := &fakeTracks{targets: []core.Handle{1, 2}}
	e, _ := newTestEngine(5, 10, tracks, nil)
	up := &recordingUpstream{}
	e.SetSuperior(up)
	a := newFake(10, 5, map[core.Handle]float64{1: 1, 2: 2})
	e.AddSubordinate(a)
	e.Assign(2)
	e.Rebalance(0)

	e.Outcome(1, 10, false)
	s, ok := e.ShooterFor(1)
	assert.True(t, ok, "miss keeps the assignment")
	assert.Equal(t, core.Handle(10), s)

	e.Outcome(1, 10, true)
	_, ok = e.ShooterFor(1)
	assert.False(t, ok)
	assert.Empty(t, up.outcomes, "own-track hit stays local")

	e.Outcome(2, 10, true)
	assert.Equal(t, []core.Handle{2}, up.outcomes)
	assert.False(t, e.Tasked(2))
}

func TestReleaseFromSubordinate(t *testing.T) {
	tracks := &fakeTracks{targets: []core.Handle{1}}
	e, _ := newTestEngine(5, 10, tracks, nil)
	a := newFake(10, 5, map[core.Handle]float64{1: 1})
	e.AddSubordinate(a)
	e.Rebalance(0)

	e.Release(1, 99) // not the holder
	_, ok := e.ShooterFor(1)
	assert.True(t, ok)

	e.Release(1, 10)
	_, ok = e.ShooterFor(1)
	assert.False(t, ok)
}

func TestCompositeEngageabilityIsMinimum(t *testing.T) {
	e, _ := newTestEngine(5, 10, &fakeTracks{}, nil)
	assert.True(t, math.IsInf(e.Engageability(1), 1))

	child, _ := newTestEngine(5, 10, &fakeTracks{}, nil)
	child.AddSubordinate(newFake(10, 1, map[core.Handle]float64{1: 7}))
	child.AddSubordinate(newFake(11, 1, map[core.Handle]float64{1: 4}))
	e.AddSubordinate(child)
	e.AddSubordinate(newFake(12, 1, map[core.Handle]float64{1: 5}))

	assert.Equal(t, 4.0, e.Engageability(1))
}

func TestPriorityAssignRestoresCapacity(t *testing.T) {
	e, events := newTestEngine(2, 10, &fakeTracks{}, nil)
	e.AddSubordinate(newFake(10, 5, map[core.Handle]float64{1: 3, 2: 8, 3: 1}))
	require.True(t, e.Assign(1))
	require.True(t, e.Assign(2))

	evicted, ok := e.PriorityAssign(3)
	require.True(t, ok)
	assert.Equal(t, core.Handle(2), evicted)
	assert.Len(t, e.Assignments(), 2)
	assert.Equal(t, 0, e.SpareCapacity())
	assert.False(t, e.Tasked(2))
	assert.Equal(t, EventEvicted, (*events)[len(*events)-1].Kind)
}

func TestPriorityAssignRejectsNoHandle(t *testing.T) {
	e, events := newTestEngine(5, 10, &fakeTracks{}, nil)
	e.AddSubordinate(newFake(10, 5, map[core.Handle]float64{1: 3}))
	require.True(t, e.Assign(1))
	before := len(*events)

	evicted, ok := e.PriorityAssign(core.NoHandle)
	assert.False(t, ok)
	assert.Equal(t, core.NoHandle, evicted)
	assert.True(t, e.Tasked(1))
	assert.False(t, e.Tasked(core.NoHandle))
	assert.Equal(t, 4, e.SpareCapacity())
	assert.Len(t, *events, before)
}

func TestSelectEviction(t *testing.T) {
	inf := math.Inf(1)
	tests := []struct {
		name string
		in   []Assignment
		want core.Handle
		ok   bool
	}{
		{"empty", nil, core.NoHandle, false},
		{"worst engageability", []Assignment{{1, 3, false}, {2, 9, false}, {3, 5, false}}, 2, true},
		{"uncommitted before committed", []Assignment{{1, 3, false}, {2, 9, true}}, 1, true},
		{"all committed", []Assignment{{1, 3, true}, {2, 9, true}}, 2, true},
		{"tie goes to highest handle", []Assignment{{4, 5, false}, {9, 5, false}, {6, 5, false}}, 9, true},
		{"infinite ties", []Assignment{{4, inf, false}, {2, inf, false}}, 4, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SelectEviction(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
