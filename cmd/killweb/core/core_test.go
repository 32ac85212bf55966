package core

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqRand replays a fixed sequence of uniforms
type seqRand struct {
	vals []float64
	i    int
}

func (r *seqRand) Float64() float64 {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

func (r *seqRand) NormFloat64() float64 { return 0 }

func TestArenaSetSuperiorRejectsCycle(t *testing.T) {
	a := NewArena()
	top := a.Add("top", KindC2, Point{}, 0)
	mid := a.Add("mid", KindC2, Point{}, 0)
	leaf := a.Add("leaf", KindFireUnit, Point{}, 0)

	require.NoError(t, a.SetSuperior(mid, top))
	require.NoError(t, a.SetSuperior(leaf, mid))

	err := a.SetSuperior(top, leaf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))

	err = a.SetSuperior(mid, mid)
	assert.True(t, errors.Is(err, ErrCycle))

	assert.Equal(t, []Handle{mid}, a.Get(top).Subordinates)
	assert.Equal(t, mid, a.Get(leaf).Superior)
}

func TestArenaRelinkMovesSubordinate(t *testing.T) {
	a := NewArena()
	p1 := a.Add("p1", KindC2, Point{}, 0)
	p2 := a.Add("p2", KindC2, Point{}, 0)
	c := a.Add("c", KindFireUnit, Point{}, 0)

	require.NoError(t, a.SetSuperior(c, p1))
	require.NoError(t, a.SetSuperior(c, p2))

	assert.Empty(t, a.Get(p1).Subordinates)
	assert.Equal(t, []Handle{c}, a.Get(p2).Subordinates)
}

func TestArenaUnknownHandle(t *testing.T) {
	a := NewArena()
	h := a.Add("x", KindAircraft, Point{}, 10)

	assert.Nil(t, a.Get(NoHandle))
	assert.Nil(t, a.Get(h+1))
	assert.False(t, a.Alive(NoHandle))
	assert.True(t, a.Alive(h))
	assert.ErrorIs(t, a.SetSuperior(h, h+5), ErrUnknownHandle)

	a.Get(h).Status = StatusDead
	assert.False(t, a.Alive(h))
	assert.Equal(t, 1, a.Len())
}

func TestSphericalDistanceAndProjection(t *testing.T) {
	g := Spherical{}
	origin := Point{Lat: 40, Lon: -76, Alt: 0}

	for _, az := range []float64{0, 45, 90, 180, 270} {
		p := g.Project(origin, 25, az)
		assert.InDelta(t, 25, g.Distance(origin, p), 0.05, "azimuth %v", az)
		assert.InDelta(t, az, g.Azimuth(origin, p), 0.5, "azimuth %v", az)
	}

	assert.InDelta(t, 0, g.Distance(origin, origin), 1e-9)
	assert.InDelta(t, 100, g.DistanceSquared(origin, g.Project(origin, 10, 0)), 0.1)
}

func TestSphericalElevation(t *testing.T) {
	g := Spherical{}
	ground := Point{Lat: 0, Lon: 0}
	high := Point{Lat: 0, Lon: 0, Alt: 10000}
	assert.Equal(t, 90.0, g.Elevation(ground, high, 1))

	far := g.Project(ground, 100, 90)
	far.Alt = 0
	// beyond the flat horizon the target sits below the look angle
	assert.Less(t, g.Elevation(ground, far, RadarEarthFactor), 0.0)
	assert.Less(t, g.Elevation(ground, far, 1), g.Elevation(ground, far, RadarEarthFactor))
}

func TestSphericalInterpolate(t *testing.T) {
	g := Spherical{}
	a := Point{Lat: 10, Lon: 10, Alt: 0}
	b := g.Project(a, 40, 30)
	b.Alt = 20000

	mid := g.Interpolate(a, b, g.Distance(a, b)/2)
	assert.InDelta(t, 10000, mid.Alt, 1)
	assert.InDelta(t, g.Distance(a, b)/2, g.Distance(a, mid), 0.1)
	assert.Equal(t, b, g.Interpolate(a, b, 1000))
	assert.Equal(t, a, g.Interpolate(a, b, -1))
}

func TestHeadingHelpers(t *testing.T) {
	assert.Equal(t, 350.0, NormalizeHeading(-10))
	assert.Equal(t, 10.0, NormalizeHeading(370))
	assert.Equal(t, -10.0, HeadingError(350))
	assert.Equal(t, 180.0, HeadingError(180))
	assert.Equal(t, 170.0, HeadingError(-190))
}

func TestWebMercatorOrigin(t *testing.T) {
	x, y := WebMercator(Point{})
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)

	x, _ = WebMercator(Point{Lon: 180})
	assert.InDelta(t, 20037508.34, x, 1)
}

func TestShiftedExponential(t *testing.T) {
	// U = 0 gives exactly the minimum delay
	next := ShiftedExponential(100, 2, 5, &seqRand{vals: []float64{0}})
	assert.Equal(t, 102.0, next)

	// U = 1 - 1/e gives min + (mean - min)
	next = ShiftedExponential(100, 2, 5, &seqRand{vals: []float64{1 - 1/math.E}})
	assert.InDelta(t, 105, next, 1e-9)

	rng := NewRand(7)
	for i := 0; i < 1000; i++ {
		assert.GreaterOrEqual(t, ShiftedExponential(0, 1.5, 3, rng), 1.5)
	}

	// zero min delay keeps drawing until time advances
	next = ShiftedExponential(10, 0, 4, &seqRand{vals: []float64{0, 0, 0.5}})
	assert.Greater(t, next, 10.0)

	assert.Greater(t, ShiftedExponential(10, 0, 0, rng), 10.0)
}

func TestBernoulli(t *testing.T) {
	r := &seqRand{vals: []float64{0.3}}
	assert.True(t, Bernoulli(r, 0.5))
	assert.False(t, Bernoulli(r, 0.2))
	assert.False(t, Bernoulli(r, 0))
	assert.True(t, Bernoulli(r, 1))
}

type recorder struct {
	name   string
	period float64
	runs   []float64
	log    *[]string
	stopAt int
}

func (r *recorder) NextDue(now float64) float64 {
	if r.stopAt > 0 && len(r.runs) >= r.stopAt {
		return math.Inf(1)
	}
	return now + r.period
}

func (r *recorder) Perform(now float64) {
	r.runs = append(r.runs, now)
	*r.log = append(*r.log, r.name)
}

func TestSchedulerOrdersByDueThenInsertion(t *testing.T) {
	var log []string
	s := NewScheduler(0)
	a := &recorder{name: "a", period: 2, log: &log}
	b := &recorder{name: "b", period: 1, log: &log}
	c := &recorder{name: "c", period: 2, log: &log}
	s.Add(a)
	s.Add(b)
	s.Add(c)

	require.NoError(t, s.Run(context.Background(), 4, nil))

	assert.Equal(t, []float64{2, 4}, a.runs)
	assert.Equal(t, []float64{1, 2, 3, 4}, b.runs)
	// at t=2 and t=4, b was requeued after a and c
	assert.Equal(t, []string{"b", "a", "c", "b", "b", "a", "c", "b"}, log)
	assert.Equal(t, 4.0, s.Now())
	assert.Equal(t, uint64(8), s.Events())
}

func TestSchedulerRetiresAndRemoves(t *testing.T) {
	var log []string
	s := NewScheduler(0)
	once := &recorder{name: "once", period: 1, log: &log, stopAt: 1}
	gone := &recorder{name: "gone", period: 1, log: &log}
	s.Add(once)
	s.Add(gone)
	s.Remove(gone)

	require.NoError(t, s.Run(context.Background(), 10, nil))
	assert.Equal(t, []string{"once"}, log)
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, 10.0, s.Now())
}

func TestSchedulerStopsOnDoneAndContext(t *testing.T) {
	var log []string
	s := NewScheduler(0)
	r := &recorder{name: "r", period: 1, log: &log}
	s.Add(r)

	require.NoError(t, s.Run(context.Background(), 100, func() bool { return len(r.runs) >= 3 }))
	assert.Len(t, r.runs, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx, 100, nil), context.Canceled)
	assert.Len(t, r.runs, 3)
}
