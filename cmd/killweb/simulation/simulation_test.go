package simulation

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/killweb-simulations/cmd/killweb/config"
	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/reporting"
	"github.com/picogrid/killweb-simulations/pkg/simulation"
)

// duel is one fire unit with a perfect interceptor against a single
// inbound aircraft
func duel() *config.SimulationConfig {
	site := core.Point{Lat: 35, Lon: -117}
	start := core.Spherical{}.Project(site, 40, 0)
	start.Alt = 2000
	dest := site
	dest.Alt = 2000

	return &config.SimulationConfig{
		Simulation: config.SimulationSettings{Name: "duel", Duration: 15 * time.Minute, Seed: 42},
		Logging: config.LoggingConfig{
			ConsoleLevel: "error",
			EventLevel:   "critical",
			AARFormat:    "json",
			AARDetail:    "summary",
		},
		C2Nodes: []config.C2NodeConfig{{
			Name:                "bn",
			Location:            site,
			TargetCapacity:      4,
			AssignmentThreshold: 600,
			AgeOut:              30 * time.Second,
			MinReportDelay:      time.Second,
			MeanReportDelay:     2 * time.Second,
			AssignmentPeriod:    2 * time.Second,
		}},
		Radars: []config.RadarConfig{{
			Name:       "tt1",
			C2:         "bn",
			Location:   site,
			Function:   "TT",
			RangeNM:    60,
			Pd:         1,
			ScanPeriod: 2 * time.Second,
		}},
		FireUnits: []config.FireUnitConfig{{
			Name:        "fu1",
			C2:          "bn",
			Location:    site,
			Tracker:     "tt1",
			Interceptor: "SAM-X",
			Channels:    2,
			Rounds:      4,
			MinRangeNM:  1,
			MaxRangeNM:  30,
			Reload:      5 * time.Second,
			Period:      time.Second,
		}},
		Interceptors: []config.InterceptorConfig{{
			Type:           "SAM-X",
			SpeedKts:       2000,
			LethalRangeNM:  40,
			Pk:             1,
			MaxG:           30,
			ActiveRangeNM:  5,
			NominalPeriod:  500 * time.Millisecond,
			TerminalPeriod: 100 * time.Millisecond,
		}},
		Raid: []config.AircraftConfig{{
			Name:         "bandit",
			Start:        start,
			Destination:  dest,
			SpeedKts:     500,
			UpdatePeriod: 100 * time.Millisecond,
			Points:       10,
		}},
		Jamming: config.JammingConfig{Threshold: 0.6},
	}
}

func TestBuildWiresCommandChain(t *testing.T) {
	arena := core.NewArena()
	w, err := Build(config.GetDefaultConfig(), arena, nil)
	require.NoError(t, err)

	require.Len(t, w.Nodes, 3)
	assert.Len(t, w.FireUnits, 4)
	assert.Len(t, w.Radars, 3)
	assert.Len(t, w.Phases, 1, "one phase counter per interceptor type")

	brigade, ok := arena.Lookup("brigade")
	require.True(t, ok)
	west, ok := arena.Lookup("bn-west")
	require.True(t, ok)
	assert.Equal(t, brigade, arena.Get(west).Superior)
	assert.Nil(t, w.Nodes[0].Superior())
	assert.Same(t, w.Nodes[0], w.Nodes[1].Superior())

	fu, ok := arena.Lookup("fu-e2")
	require.True(t, ok)
	east, _ := arena.Lookup("bn-east")
	assert.Equal(t, east, arena.Get(fu).Superior)

	tt, _ := arena.Lookup("tt-west")
	assert.Equal(t, tt, w.FireUnits[0].Tracker)

	_, airborne := arena.Lookup("bandit-1")
	assert.False(t, airborne, "raid enters the arena at launch time")
	assert.False(t, w.Done())
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.FireUnits[0].Tracker = "ew-1"
	_, err := Build(cfg, core.NewArena(), nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRaidLaunchesOnSchedule(t *testing.T) {
	w, err := Build(config.GetDefaultConfig(), core.NewArena(), nil)
	require.NoError(t, err)

	require.NoError(t, w.Scheduler.Run(context.Background(), 1, nil))
	assert.Equal(t, 3, w.Launched())
	assert.Len(t, w.Jamming.Jammers(), 1)

	require.NoError(t, w.Scheduler.Run(context.Background(), 31, nil))
	assert.Equal(t, 5, w.Launched())

	require.NoError(t, w.Scheduler.Run(context.Background(), 61, nil))
	assert.Equal(t, 6, w.Launched())
}

func TestDuelEndsInKill(t *testing.T) {
	w, err := Build(duel(), core.NewArena(), nil)
	require.NoError(t, err)

	require.NoError(t, w.Scheduler.Run(context.Background(), 900, w.Done))
	assert.True(t, w.Done())
	assert.Empty(t, w.Leakers())
	st := w.FireUnits[0].Stats()
	assert.Equal(t, 1, st.Hits)
	assert.Equal(t, 4-st.Launched, w.FireUnits[0].Rounds())
}

func TestRunProducesReport(t *testing.T) {
	dir := t.TempDir()
	cfg := duel()
	cfg.Logging.EnableAAR = true
	cfg.Logging.AAROutputPath = dir
	cfg.Logging.JournalPath = filepath.Join(dir, "journal.jsonl")
	cfg.Logging.EnableMetrics = true

	s := &KillWebSimulation{config: cfg, out: io.Discard}
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 1, s.Score().Kills)
	assert.Equal(t, 0, s.Score().Leaks)
	require.NotEmpty(t, s.aarPath)
	assert.FileExists(t, s.aarPath)

	journal, err := os.ReadFile(cfg.Logging.JournalPath)
	require.NoError(t, err)
	assert.Contains(t, string(journal), `"event":"launch"`)

	launched := s.world.FireUnits[0].Stats().Launched
	require.Positive(t, launched)
	assert.Equal(t, float64(launched), reporting.Total(s.Metrics(), "killweb.interceptors.launched"))
	assert.Equal(t, float64(launched), reporting.Total(s.Metrics(), "killweb.interceptors.resolved"))

	report, err := os.ReadFile(s.aarPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "killweb.interceptors.launched")
}

func TestRunWithoutMetricsCollectsNothing(t *testing.T) {
	s := &KillWebSimulation{config: duel(), out: io.Discard}
	require.NoError(t, s.Run(context.Background()))
	assert.Empty(t, s.Metrics())
}

func TestUnarmedRunLeaks(t *testing.T) {
	cfg := duel()
	cfg.FireUnits[0].Rounds = 0

	s := &KillWebSimulation{config: cfg, out: io.Discard}
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 1, s.Score().Leaks)
	assert.Equal(t, 10, s.Score().LeakPoints)
	assert.Len(t, s.world.Leakers(), 1)
}

func TestStopCancelsRun(t *testing.T) {
	s := &KillWebSimulation{config: duel(), out: io.Discard}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Run(ctx))
	assert.Zero(t, s.world.Scheduler.Now())
	assert.NoError(t, s.Stop())
}

func TestRunRequiresConfigure(t *testing.T) {
	s := NewKillWebSimulation()
	assert.Error(t, s.Run(context.Background()))
}

func TestConfigureAppliesOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	s := &KillWebSimulation{out: io.Discard}
	require.NoError(t, s.Configure(map[string]interface{}{
		"seed":            7,
		"rounds_per_unit": 2,
		"log_level":       "error",
	}))
	assert.Equal(t, uint64(7), s.config.Simulation.Seed)
	assert.Equal(t, 2, s.config.FireUnits[0].Rounds)
}

func TestRegistered(t *testing.T) {
	sim, err := simulation.DefaultRegistry.Get(Name)
	require.NoError(t, err)
	assert.Equal(t, Name, sim.Name())
}
