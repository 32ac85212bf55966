package reporting

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/picogrid/killweb-simulations/pkg/logger"
)

// AARGenerator generates After Action Reports
type AARGenerator struct {
	logger *SimulationLogger
	config AARConfig
}

// AARConfig configures AAR generation
type AARConfig struct {
	OutputDir   string
	Format      string // "json", "markdown"
	DetailLevel string // "summary", "detailed", "full"
	Scenario    string
	RaidSize    int
	RaidPoints  int
	Units       []UnitReport
	Metrics     []MetricReading
}

// UnitReport is a fire unit's end-of-run state
type UnitReport struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Launched   int    `json:"launched"`
	Hits       int    `json:"hits"`
	Misses     int    `json:"misses"`
	RoundsLeft int    `json:"rounds_left"`
}

// AAR represents an After Action Report
type AAR struct {
	Metadata        AARMetadata        `json:"metadata"`
	Summary         ExecutiveSummary   `json:"summary"`
	Timeline        []TimelineEntry    `json:"timeline"`
	Engagements     EngagementAnalysis `json:"engagements"`
	Assignments     AssignmentAnalysis `json:"assignments"`
	Units           []UnitReport       `json:"units"`
	Metrics         []MetricReading    `json:"metrics,omitempty"`
	EventLog        []EventLogEntry    `json:"event_log,omitempty"`
	Recommendations []Recommendation   `json:"recommendations"`
}

// AARMetadata contains report metadata
type AARMetadata struct {
	ReportID     string    `json:"report_id"`
	RunID        string    `json:"run_id"`
	Scenario     string    `json:"scenario"`
	GeneratedAt  time.Time `json:"generated_at"`
	SimDuration  float64   `json:"sim_duration_s"`
	WallDuration string    `json:"wall_duration"`
	Version      string    `json:"version"`
}

// ExecutiveSummary provides the high-level outcome
type ExecutiveSummary struct {
	Outcome    string   `json:"outcome"`
	RaidSize   int      `json:"raid_size"`
	Kills      int      `json:"kills"`
	Leaks      int      `json:"leaks"`
	KillPoints int      `json:"kill_points"`
	LeakPoints int      `json:"leak_points"`
	Defended   float64  `json:"defended_fraction"`
	KeyEvents  []string `json:"key_events"`
}

// TimelineEntry represents an event in the timeline
type TimelineEntry struct {
	SimTime     float64 `json:"sim_time_s"`
	ElapsedTime string  `json:"elapsed_time"`
	EventType   string  `json:"event_type"`
	Description string  `json:"description"`
	Impact      string  `json:"impact"`
}

// EngagementAnalysis contains interceptor statistics
type EngagementAnalysis struct {
	Launched      int         `json:"launched"`
	Hits          int         `json:"hits"`
	Misses        int         `json:"misses"`
	SelfDestructs int         `json:"self_destructs"`
	SinglePk      float64     `json:"single_shot_pk"`
	ShotsPerKill  float64     `json:"shots_per_kill"`
	FlightTime    SampleStats `json:"flight_time_s"`
	Flown         SampleStats `json:"flown_nm"`
	HomeOnJam     int         `json:"home_on_jam_entries"`
}

// SampleStats summarizes a sample
type SampleStats struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// AssignmentAnalysis counts assignment engine activity
type AssignmentAnalysis struct {
	Assigned   int `json:"assigned"`
	Reassigned int `json:"reassigned"`
	Evicted    int `json:"evicted"`
	TornDown   int `json:"torn_down"`
	Released   int `json:"released"`
	TrackDrops int `json:"track_drops"`
}

// EventLogEntry represents a detailed event log entry
type EventLogEntry struct {
	SimTime     float64                `json:"sim_time_s"`
	EventType   string                 `json:"event_type"`
	Severity    string                 `json:"severity"`
	Description string                 `json:"description"`
	Entity      string                 `json:"entity,omitempty"`
	Target      string                 `json:"target,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Recommendation represents an improvement recommendation
type Recommendation struct {
	Priority        string `json:"priority"` // "High", "Medium", "Low"
	Category        string `json:"category"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	ExpectedBenefit string `json:"expected_benefit"`
}

// NewAARGenerator creates a new AAR generator
func NewAARGenerator(logger *SimulationLogger, config AARConfig) *AARGenerator {
	return &AARGenerator{
		logger: logger,
		config: config,
	}
}

// GenerateAAR creates an After Action Report
func (g *AARGenerator) GenerateAAR() (*AAR, error) {
	summary := g.logger.GetSummary()
	events := g.logger.GetEvents()
	slices.SortStableFunc(events, func(a, b SimulationEvent) int {
		switch {
		case a.SimTime < b.SimTime:
			return -1
		case a.SimTime > b.SimTime:
			return 1
		}
		return 0
	})

	aar := &AAR{
		Metadata: AARMetadata{
			ReportID:     uuid.New().String(),
			RunID:        summary.RunID,
			Scenario:     g.config.Scenario,
			GeneratedAt:  time.Now(),
			SimDuration:  summary.SimDuration,
			WallDuration: summary.WallDuration.Round(time.Millisecond).String(),
			Version:      "1.0",
		},
		Units:   slices.Clone(g.config.Units),
		Metrics: slices.Clone(g.config.Metrics),
	}

	aar.Summary = g.generateExecutiveSummary(events, summary)
	aar.Timeline = g.buildTimeline(events)
	aar.Engagements = g.analyzeEngagements(events, summary)
	aar.Assignments = AssignmentAnalysis{
		Assigned:   summary.EventCounts[EventTypeAssignment],
		Reassigned: summary.EventCounts[EventTypeReassignment],
		Evicted:    summary.EventCounts[EventTypeEviction],
		TornDown:   summary.EventCounts[EventTypeTeardown],
		Released:   summary.EventCounts[EventTypeRelease],
		TrackDrops: summary.EventCounts[EventTypeTrackDrop],
	}
	if g.config.DetailLevel == "full" {
		aar.EventLog = g.generateEventLog(events)
	}
	aar.Recommendations = g.generateRecommendations(aar)

	return aar, nil
}

// SaveAAR writes the AAR and returns the file path
func (g *AARGenerator) SaveAAR(aar *AAR) (string, error) {
	if err := os.MkdirAll(g.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	id := aar.Metadata.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	filename := fmt.Sprintf("AAR_%s_%s", id, time.Now().Format("20060102_150405"))

	var (
		path string
		data []byte
	)
	switch g.config.Format {
	case "json", "":
		b, err := json.MarshalIndent(aar, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal AAR: %w", err)
		}
		path, data = filepath.Join(g.config.OutputDir, filename+".json"), b
	case "markdown", "md":
		path, data = filepath.Join(g.config.OutputDir, filename+".md"), []byte(g.renderMarkdown(aar))
	default:
		return "", fmt.Errorf("unsupported format: %s", g.config.Format)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write AAR: %w", err)
	}
	logger.Successf("AAR saved to: %s", path)
	return path, nil
}

func (g *AARGenerator) renderMarkdown(aar *AAR) string {
	var sb strings.Builder

	sb.WriteString("# After Action Report\n\n")
	sb.WriteString(fmt.Sprintf("**Run ID:** %s\n", aar.Metadata.RunID))
	if aar.Metadata.Scenario != "" {
		sb.WriteString(fmt.Sprintf("**Scenario:** %s\n", aar.Metadata.Scenario))
	}
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", aar.Metadata.GeneratedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Simulated:** %s\n\n", formatSimTime(aar.Metadata.SimDuration)))

	s := aar.Summary
	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(fmt.Sprintf("**Outcome:** %s\n\n", s.Outcome))
	sb.WriteString(fmt.Sprintf("- **Raid:** %d aircraft\n", s.RaidSize))
	sb.WriteString(fmt.Sprintf("- **Killed:** %d (%d pts)\n", s.Kills, s.KillPoints))
	sb.WriteString(fmt.Sprintf("- **Leaked:** %d (%d pts)\n\n", s.Leaks, s.LeakPoints))
	if len(s.KeyEvents) > 0 {
		sb.WriteString("### Key Events\n")
		for _, e := range s.KeyEvents {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	e := aar.Engagements
	sb.WriteString("## Engagement Analysis\n\n")
	sb.WriteString(fmt.Sprintf("- **Interceptors Launched:** %d\n", e.Launched))
	sb.WriteString(fmt.Sprintf("- **Hits:** %d (%.1f%% single-shot Pk)\n", e.Hits, e.SinglePk*100))
	sb.WriteString(fmt.Sprintf("- **Misses:** %d, self-destructs: %d\n", e.Misses, e.SelfDestructs))
	if e.Hits > 0 {
		sb.WriteString(fmt.Sprintf("- **Shots per Kill:** %.2f\n", e.ShotsPerKill))
	}
	if e.FlightTime.N > 0 {
		sb.WriteString(fmt.Sprintf("- **Time of Flight:** mean %.1fs, median %.1fs, max %.1fs\n",
			e.FlightTime.Mean, e.FlightTime.Median, e.FlightTime.Max))
	}
	sb.WriteString("\n")

	if len(aar.Units) > 0 {
		sb.WriteString("## Fire Units\n\n")
		sb.WriteString("| Unit | Status | Launched | Hits | Misses | Rounds Left |\n")
		sb.WriteString("|---|---|---|---|---|---|\n")
		for _, u := range aar.Units {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %d |\n",
				u.Name, u.Status, u.Launched, u.Hits, u.Misses, u.RoundsLeft))
		}
		sb.WriteString("\n")
	}

	if len(aar.Metrics) > 0 {
		sb.WriteString("## Metrics\n\n")
		sb.WriteString("| Metric | Attributes | Value | Count |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, m := range aar.Metrics {
			count := ""
			if m.Count > 0 {
				count = fmt.Sprint(m.Count)
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %g | %s |\n", m.Name, m.Attributes, m.Value, count))
		}
		sb.WriteString("\n")
	}

	if g.config.DetailLevel != "summary" {
		a := aar.Assignments
		sb.WriteString("## Assignment Activity\n\n")
		sb.WriteString(fmt.Sprintf("- **Assigned:** %d\n", a.Assigned))
		sb.WriteString(fmt.Sprintf("- **Reassigned:** %d\n", a.Reassigned))
		sb.WriteString(fmt.Sprintf("- **Evicted:** %d\n", a.Evicted))
		sb.WriteString(fmt.Sprintf("- **Torn Down:** %d\n", a.TornDown))
		sb.WriteString(fmt.Sprintf("- **Released Upward:** %d\n", a.Released))
		sb.WriteString(fmt.Sprintf("- **Tracks Aged Out:** %d\n\n", a.TrackDrops))

		if len(aar.Timeline) > 0 {
			sb.WriteString("## Timeline\n\n")
			for _, t := range aar.Timeline {
				sb.WriteString(fmt.Sprintf("- `%s` %s (%s)\n", t.ElapsedTime, t.Description, t.Impact))
			}
			sb.WriteString("\n")
		}
	}

	if len(aar.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for _, rec := range aar.Recommendations {
			sb.WriteString(fmt.Sprintf("### %s (%s Priority)\n", rec.Title, rec.Priority))
			sb.WriteString(fmt.Sprintf("%s\n\n", rec.Description))
			sb.WriteString(fmt.Sprintf("**Expected Benefit:** %s\n\n", rec.ExpectedBenefit))
		}
	}

	return sb.String()
}

func (g *AARGenerator) generateExecutiveSummary(events []SimulationEvent, summary SimulationSummary) ExecutiveSummary {
	sc := summary.Score
	exec := ExecutiveSummary{
		RaidSize:   g.config.RaidSize,
		Kills:      sc.Kills,
		Leaks:      sc.Leaks,
		KillPoints: sc.KillPoints,
		LeakPoints: sc.LeakPoints,
		KeyEvents:  make([]string, 0),
	}
	if g.config.RaidPoints > 0 {
		exec.Defended = 1 - float64(sc.LeakPoints)/float64(g.config.RaidPoints)
	} else if g.config.RaidSize > 0 {
		exec.Defended = 1 - float64(sc.Leaks)/float64(g.config.RaidSize)
	}

	switch {
	case sc.Leaks == 0 && sc.Kills > 0:
		exec.Outcome = "Defense held - no leakers"
	case sc.Leaks == 0:
		exec.Outcome = "No engagement - raid did not penetrate"
	case sc.KillPoints >= sc.LeakPoints:
		exec.Outcome = fmt.Sprintf("Defense degraded - %d leaker(s)", sc.Leaks)
	default:
		exec.Outcome = fmt.Sprintf("Defense penetrated - %d leaker(s)", sc.Leaks)
	}

	for _, event := range events {
		if event.Type == EventTypeLeak ||
			(event.Type == EventTypeIntercept && len(exec.KeyEvents) < 5) {
			exec.KeyEvents = append(exec.KeyEvents, fmt.Sprintf("%s %s", formatSimTime(event.SimTime), event.Message))
		}
	}
	return exec
}

func (g *AARGenerator) buildTimeline(events []SimulationEvent) []TimelineEntry {
	timeline := make([]TimelineEntry, 0)
	for _, event := range events {
		if !isSignificantEvent(event) {
			continue
		}
		timeline = append(timeline, TimelineEntry{
			SimTime:     event.SimTime,
			ElapsedTime: formatSimTime(event.SimTime),
			EventType:   event.Type,
			Description: event.Message,
			Impact:      assessImpact(event),
		})
	}
	return timeline
}

func (g *AARGenerator) analyzeEngagements(events []SimulationEvent, summary SimulationSummary) EngagementAnalysis {
	ea := EngagementAnalysis{
		Launched:      summary.EventCounts[EventTypeLaunch],
		Hits:          summary.EventCounts[EventTypeIntercept],
		Misses:        summary.EventCounts[EventTypeMiss],
		SelfDestructs: summary.EventCounts[EventTypeSelfDestruct],
	}
	if ea.Launched > 0 {
		ea.SinglePk = float64(ea.Hits) / float64(ea.Launched)
	}
	if ea.Hits > 0 {
		ea.ShotsPerKill = float64(ea.Launched) / float64(ea.Hits)
	}

	launchedAt := make(map[string]float64)
	var tof, flown []float64
	for _, ev := range events {
		switch ev.Type {
		case EventTypeLaunch:
			if name, ok := ev.Details["interceptor"].(string); ok {
				launchedAt[name] = ev.SimTime
			}
		case EventTypeIntercept, EventTypeMiss, EventTypeSelfDestruct:
			if t0, ok := launchedAt[ev.Entity]; ok {
				tof = append(tof, ev.SimTime-t0)
			}
			if nm, ok := ev.Details["flown_nm"].(float64); ok {
				flown = append(flown, nm)
			}
		case EventTypeModeChange:
			if ev.Details["mode"] == "HOJ" {
				ea.HomeOnJam++
			}
		}
	}
	ea.FlightTime = sampleStats(tof)
	ea.Flown = sampleStats(flown)
	return ea
}

func sampleStats(x []float64) SampleStats {
	if len(x) == 0 {
		return SampleStats{}
	}
	sorted := slices.Clone(x)
	slices.Sort(sorted)
	s := SampleStats{
		N:      len(x),
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
	if len(x) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s
}

func (g *AARGenerator) generateEventLog(events []SimulationEvent) []EventLogEntry {
	log := make([]EventLogEntry, 0, len(events))
	for _, ev := range events {
		log = append(log, EventLogEntry{
			SimTime:     ev.SimTime,
			EventType:   ev.Type,
			Severity:    ev.Severity,
			Description: ev.Message,
			Entity:      ev.Entity,
			Target:      ev.Target,
			Details:     ev.Details,
		})
	}
	return log
}

func (g *AARGenerator) generateRecommendations(aar *AAR) []Recommendation {
	recs := make([]Recommendation, 0)

	if aar.Summary.Leaks > 0 {
		recs = append(recs, Recommendation{
			Priority:        "High",
			Category:        "Coverage",
			Title:           "Close Coverage Gaps",
			Description:     fmt.Sprintf("%d raid aircraft reached their destination.", aar.Summary.Leaks),
			ExpectedBenefit: "Fewer leakers through added fire units or earlier track handoff.",
		})
	}

	if e := aar.Engagements; e.Launched >= 3 && e.SinglePk < 0.5 {
		recs = append(recs, Recommendation{
			Priority:        "Medium",
			Category:        "Fire Control",
			Title:           "Improve Engagement Quality",
			Description:     fmt.Sprintf("Single-shot Pk was %.0f%% over %d launches.", e.SinglePk*100, e.Launched),
			ExpectedBenefit: "Lower interceptor expenditure per kill.",
		})
	}

	for _, u := range aar.Units {
		if u.RoundsLeft == 0 && u.Launched > 0 {
			recs = append(recs, Recommendation{
				Priority:        "Medium",
				Category:        "Logistics",
				Title:           fmt.Sprintf("Magazine Depth at %s", u.Name),
				Description:     fmt.Sprintf("%s expended its full magazine of %d.", u.Name, u.Launched),
				ExpectedBenefit: "Sustained engagement capacity through the raid.",
			})
		}
	}

	if aar.Engagements.HomeOnJam > 0 {
		recs = append(recs, Recommendation{
			Priority:        "Low",
			Category:        "Electronic Protection",
			Title:           "Reduce Jamming Exposure",
			Description:     fmt.Sprintf("Interceptors fell back to home-on-jam %d time(s).", aar.Engagements.HomeOnJam),
			ExpectedBenefit: "Fewer engagements diverted to stand-off jammers.",
		})
	}

	return recs
}

func isSignificantEvent(event SimulationEvent) bool {
	switch event.Type {
	case EventTypeLaunch, EventTypeIntercept, EventTypeMiss, EventTypeSelfDestruct,
		EventTypeLeak, EventTypeReassignment, EventTypeEviction, EventTypeRelease:
		return true
	}
	return false
}

func assessImpact(event SimulationEvent) string {
	switch event.Type {
	case EventTypeIntercept:
		return "High - raid aircraft destroyed"
	case EventTypeLeak:
		return "Critical - defended asset reached"
	case EventTypeMiss, EventTypeSelfDestruct:
		return "Medium - interceptor expended"
	case EventTypeRelease, EventTypeEviction:
		return "Medium - engagement reshuffled"
	default:
		return "Low"
	}
}

func formatSimTime(seconds float64) string {
	s := int(math.Round(seconds))
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
