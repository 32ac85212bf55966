package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/picogrid/killweb-simulations/cmd/killweb/config"
	"github.com/picogrid/killweb-simulations/cmd/killweb/controllers"
	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/reporting"
	"github.com/picogrid/killweb-simulations/pkg/logger"
	"github.com/picogrid/killweb-simulations/pkg/simulation"
)

// Name is the registry name of the simulation
const Name = "Kill Web Air Defense"

// progressSteps is the number of slices the timeline is run in
const progressSteps = 50

// KillWebSimulation runs a raid against a layered air defense: C2 nodes
// fuse radar tracks and assign targets down the chain to SAM fire units
// whose interceptors fly out under mode-switching guidance.
type KillWebSimulation struct {
	config *config.SimulationConfig
	out    io.Writer

	simLogger *reporting.SimulationLogger
	world     *World
	aarPath   string
	telemetry *reporting.Telemetry
	readings  []reporting.MetricReading

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewKillWebSimulation creates a new instance of the kill-web simulation
func NewKillWebSimulation() simulation.Simulation {
	return &KillWebSimulation{out: os.Stdout}
}

// Name returns the simulation name
func (s *KillWebSimulation) Name() string {
	return Name
}

// Description returns the simulation description
func (s *KillWebSimulation) Description() string {
	return "Kill-web air defense: track fusion, target assignment and interceptor guidance against a jammed raid"
}

// Configure loads the scenario named by the "scenario" parameter, or the
// default scenario, and applies the remaining parameters as overrides
func (s *KillWebSimulation) Configure(params map[string]interface{}) error {
	logger.Info("Configuring kill-web simulation...")

	path, _ := params["scenario"].(string)
	cfg, err := config.LoadConfigWithOverrides(path, params)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}
	s.config = cfg

	logger.SetLevel(logger.ParseLevel(cfg.Logging.ConsoleLevel))
	logger.Infof("Scenario %s: %d C2 nodes, %d fire units, %d radars vs %d raid aircraft",
		cfg.Simulation.Name, len(cfg.C2Nodes), len(cfg.FireUnits), len(cfg.Radars), len(cfg.Raid))
	logger.Debug(cfg.String())
	return nil
}

// Run builds the scenario and runs it to completion. Stop or a cancelled
// ctx ends the run early; the summary and report are still produced.
func (s *KillWebSimulation) Run(ctx context.Context) error {
	if s.config == nil {
		return errors.New("simulation not configured")
	}
	cfg := s.config

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	runID := "killweb-" + uuid.NewString()
	arena := core.NewArena()
	s.world = nil
	s.simLogger = reporting.NewSimulationLogger(runID, arena, cfg.Logging.EventLevel, s.out)

	observers := []controllers.Observer{s.simLogger}
	if cfg.Logging.JournalPath != "" {
		journal, err := reporting.OpenJournal(cfg.Logging.JournalPath, runID, arena, journalLevel(cfg.Logging.JournalLevel))
		if err != nil {
			s.simLogger.LogError(0, "Failed to open journal", err)
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer func() {
			if err := journal.Close(); err != nil {
				s.simLogger.LogError(s.now(), "Failed to close journal", err)
			}
		}()
		observers = append(observers, journal)
		logger.Infof("Writing engagement journal to %s", cfg.Logging.JournalPath)
	}
	s.telemetry, s.readings = nil, nil
	if cfg.Logging.EnableMetrics {
		telemetry := reporting.NewTelemetry()
		defer func() {
			if err := telemetry.Shutdown(context.Background()); err != nil {
				s.simLogger.LogError(s.now(), "Failed to shut down metrics", err)
			}
		}()
		metrics, err := reporting.NewMetrics(telemetry.Meter(), arena)
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		s.telemetry = telemetry
		observers = append(observers, metrics)
	}

	world, err := Build(cfg, arena, reporting.Tee(observers...))
	if err != nil {
		s.simLogger.LogError(0, "Failed to build scenario", err)
		return fmt.Errorf("failed to build scenario: %w", err)
	}
	s.world = world

	logger.LogSection(fmt.Sprintf("Running %s", cfg.Simulation.Name))
	logger.LogKeyValues(map[string]interface{}{
		"Run ID":     runID,
		"Duration":   cfg.Simulation.Duration,
		"Seed":       cfg.Simulation.Seed,
		"Fire units": len(world.FireUnits),
		"Raid":       len(cfg.Raid),
	})

	if err := s.runTimeline(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			s.simLogger.LogError(s.now(), "Simulation aborted", err)
			return err
		}
		logger.Warnf("Simulation stopped at T+%.1fs", world.Scheduler.Now())
	} else if world.Done() {
		logger.Successf("Raid resolved at T+%.1fs", world.Scheduler.Now())
	} else {
		logger.Infof("Simulation duration reached with %d interceptors in flight", world.InFlight())
	}

	s.simLogger.PrintSummary()
	s.printUnitTable()
	s.collectMetrics()

	if cfg.Logging.EnableAAR {
		if err := s.generateAAR(); err != nil {
			s.simLogger.LogError(s.now(), "Failed to generate AAR", err)
		}
	}
	return nil
}

// now is the simulation clock, zero before the world is built
func (s *KillWebSimulation) now() float64 {
	if s.world == nil {
		return 0
	}
	return s.world.Scheduler.Now()
}

// collectMetrics reads the run's instruments for the summary and the AAR
func (s *KillWebSimulation) collectMetrics() {
	if s.telemetry == nil {
		return
	}
	readings, err := s.telemetry.Collect(context.Background())
	if err != nil {
		s.simLogger.LogError(s.now(), "Failed to collect metrics", err)
		return
	}
	s.readings = readings
	logger.LogKeyValues(map[string]interface{}{
		"Interceptors launched": reporting.Total(readings, "killweb.interceptors.launched"),
		"Interceptors resolved": reporting.Total(readings, "killweb.interceptors.resolved"),
		"Raid leaked":           reporting.Total(readings, "killweb.raid.leaked"),
	})
}

// Metrics returns the instrument readings of the last run with metrics
// enabled
func (s *KillWebSimulation) Metrics() []reporting.MetricReading {
	return s.readings
}

// runTimeline advances the scheduler in slices so progress can be shown
func (s *KillWebSimulation) runTimeline(ctx context.Context) error {
	w := s.world
	end := config.Seconds(s.config.Simulation.Duration)
	bar := logger.NewProgressBar(progressSteps, "Simulating")
	defer bar.Finish()

	for i := 1; i <= progressSteps; i++ {
		until := end * float64(i) / progressSteps
		if err := w.Scheduler.Run(ctx, until, w.Done); err != nil {
			return err
		}
		bar.Update(i)
		if w.Done() {
			return nil
		}
	}
	return nil
}

func (s *KillWebSimulation) unitReports() []reporting.UnitReport {
	reports := make([]reporting.UnitReport, 0, len(s.world.FireUnits))
	for _, u := range s.world.FireUnits {
		st := u.Stats()
		reports = append(reports, reporting.UnitReport{
			Name:       u.Name,
			Status:     u.Status(),
			Launched:   st.Launched,
			Hits:       st.Hits,
			Misses:     st.Misses,
			RoundsLeft: u.Rounds(),
		})
	}
	return reports
}

func (s *KillWebSimulation) printUnitTable() {
	table := logger.NewTable("Unit", "Status", "Launched", "Hits", "Misses", "Rounds")
	for _, r := range s.unitReports() {
		table.AddRow(r.Name, r.Status,
			fmt.Sprint(r.Launched), fmt.Sprint(r.Hits), fmt.Sprint(r.Misses), fmt.Sprint(r.RoundsLeft))
	}
	table.Print()
}

// generateAAR creates and saves the After Action Report
func (s *KillWebSimulation) generateAAR() error {
	logger.Info("Generating After Action Report...")
	cfg := s.config

	gen := reporting.NewAARGenerator(s.simLogger, reporting.AARConfig{
		OutputDir:   cfg.Logging.AAROutputPath,
		Format:      cfg.Logging.AARFormat,
		DetailLevel: cfg.Logging.AARDetail,
		Scenario:    cfg.Simulation.Name,
		RaidSize:    len(cfg.Raid),
		RaidPoints:  cfg.RaidPoints(),
		Units:       s.unitReports(),
		Metrics:     s.readings,
	})

	aar, err := gen.GenerateAAR()
	if err != nil {
		return fmt.Errorf("failed to generate AAR: %w", err)
	}
	path, err := gen.SaveAAR(aar)
	if err != nil {
		return fmt.Errorf("failed to save AAR: %w", err)
	}
	s.aarPath = path
	logger.Successf("After Action Report saved to %s", path)
	return nil
}

// Score returns the raid outcome of the last run
func (s *KillWebSimulation) Score() reporting.Score {
	if s.simLogger == nil {
		return reporting.Score{}
	}
	return s.simLogger.Score()
}

// Stop gracefully shuts down the simulation
func (s *KillWebSimulation) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func journalLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

// init registers the simulation
func init() {
	if err := simulation.DefaultRegistry.Register(Name, NewKillWebSimulation); err != nil {
		logger.Errorf("Failed to register kill-web simulation: %v", err)
	}
}
