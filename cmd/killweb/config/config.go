package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/track"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// SimulationConfig holds the complete scenario
type SimulationConfig struct {
	Simulation   SimulationSettings  `yaml:"simulation"`
	Logging      LoggingConfig       `yaml:"logging"`
	C2Nodes      []C2NodeConfig      `yaml:"c2_nodes"`
	FireUnits    []FireUnitConfig    `yaml:"fire_units"`
	Interceptors []InterceptorConfig `yaml:"interceptors"`
	Radars       []RadarConfig       `yaml:"radars"`
	Raid         []AircraftConfig    `yaml:"raid"`
	Jamming      JammingConfig       `yaml:"jamming"`
}

// SimulationSettings holds basic run settings
type SimulationSettings struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Duration    time.Duration `yaml:"duration"`
	Seed        uint64        `yaml:"seed"`
}

// LoggingConfig defines logging and reporting settings
type LoggingConfig struct {
	ConsoleLevel  string `yaml:"console_level"` // "debug", "info", "warn", "error"
	EventLevel    string `yaml:"event_level"`   // lowest event severity echoed to the console
	EnableAAR     bool   `yaml:"enable_aar"`
	AARFormat     string `yaml:"aar_format"` // "json", "markdown"
	AARDetail     string `yaml:"aar_detail"` // "summary", "detailed", "full"
	AAROutputPath string `yaml:"aar_output_path"`
	JournalPath   string `yaml:"journal_path,omitempty"`
	JournalLevel  string `yaml:"journal_level,omitempty"`
	EnableMetrics bool   `yaml:"enable_metrics"`
}

// C2NodeConfig defines a command-and-control node
type C2NodeConfig struct {
	Name                string        `yaml:"name"`
	Superior            string        `yaml:"superior,omitempty"`
	Location            core.Point    `yaml:"location"`
	TargetCapacity      int           `yaml:"target_capacity"`
	AssignmentThreshold float64       `yaml:"assignment_threshold"` // seconds of interceptor flight
	TrackCapacity       int           `yaml:"track_capacity"`       // 0 is unbounded
	AgeOut              time.Duration `yaml:"age_out"`
	MinReportDelay      time.Duration `yaml:"min_report_delay"`
	MeanReportDelay     time.Duration `yaml:"mean_report_delay"`
	AssignmentPeriod    time.Duration `yaml:"assignment_period"`
}

// FireUnitConfig defines a SAM fire unit
type FireUnitConfig struct {
	Name        string        `yaml:"name"`
	C2          string        `yaml:"c2"`
	Location    core.Point    `yaml:"location"`
	Tracker     string        `yaml:"tracker"` // TT radar providing terminal tracking
	Interceptor string        `yaml:"interceptor"`
	Channels    int           `yaml:"channels"`
	Rounds      int           `yaml:"rounds"`
	MinRangeNM  float64       `yaml:"min_range_nm"`
	MaxRangeNM  float64       `yaml:"max_range_nm"`
	Reload      time.Duration `yaml:"reload"`
	Period      time.Duration `yaml:"period"`
}

// InterceptorConfig defines an interceptor type
type InterceptorConfig struct {
	Type           string        `yaml:"type"`
	SpeedKts       float64       `yaml:"speed_kts"`
	LethalRangeNM  float64       `yaml:"lethal_range_nm"`
	Pk             float64       `yaml:"pk"`
	MaxG           float64       `yaml:"max_g"`
	ActiveRangeNM  float64       `yaml:"active_range_nm"`
	NominalPeriod  time.Duration `yaml:"nominal_period"`
	TerminalPeriod time.Duration `yaml:"terminal_period"`
}

// RadarConfig defines a sensor
type RadarConfig struct {
	Name         string        `yaml:"name"`
	C2           string        `yaml:"c2"`
	Location     core.Point    `yaml:"location"`
	Function     string        `yaml:"function"` // "EW", "TA", "TT"
	RangeNM      float64       `yaml:"range_nm"`
	Pd           float64       `yaml:"pd"`
	ScanPeriod   time.Duration `yaml:"scan_period"`
	RangeNoiseNM float64       `yaml:"range_noise_nm"`
}

// AircraftConfig defines one raid aircraft
type AircraftConfig struct {
	Name         string        `yaml:"name"`
	Start        core.Point    `yaml:"start"`
	Destination  core.Point    `yaml:"destination"`
	SpeedKts     float64       `yaml:"speed_kts"`
	LaunchTime   time.Duration `yaml:"launch_time"`
	UpdatePeriod time.Duration `yaml:"update_period"`
	Points       int           `yaml:"points"`
	Jammer       *JammerConfig `yaml:"jammer,omitempty"`
}

// JammerConfig defines a noise jammer pod
type JammerConfig struct {
	RangeNM float64 `yaml:"range_nm"`
	Power   float64 `yaml:"power"`
}

// JammingConfig defines electronic attack resolution
type JammingConfig struct {
	Threshold float64 `yaml:"threshold"` // effectiveness at which a sensor counts as jammed
}

// Seconds converts a configured duration to simulation seconds
func Seconds(d time.Duration) float64 { return d.Seconds() }

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks if the configuration is valid
func (c *SimulationConfig) Validate() error {
	if c.Simulation.Name == "" {
		return invalid("simulation name is required")
	}
	if c.Simulation.Duration <= 0 {
		return invalid("duration must be positive")
	}
	if len(c.C2Nodes) == 0 {
		return invalid("at least one C2 node is required")
	}
	if len(c.Raid) == 0 {
		return invalid("raid must contain at least one aircraft")
	}
	if c.Jamming.Threshold <= 0 || c.Jamming.Threshold > 1 {
		return invalid("jamming threshold must be in (0, 1]")
	}

	names := make(map[string]string)
	claim := func(kind, name string) error {
		if name == "" {
			return invalid("%s name is required", kind)
		}
		if prev, ok := names[name]; ok {
			return invalid("name %q used by both a %s and a %s", name, prev, kind)
		}
		names[name] = kind
		return nil
	}

	c2s := make(map[string]C2NodeConfig, len(c.C2Nodes))
	for _, n := range c.C2Nodes {
		if err := claim("c2 node", n.Name); err != nil {
			return err
		}
		if n.TargetCapacity < 1 {
			return invalid("c2 node %s: target capacity must be at least 1", n.Name)
		}
		if n.AssignmentThreshold <= 0 {
			return invalid("c2 node %s: assignment threshold must be positive", n.Name)
		}
		if n.TrackCapacity < 0 {
			return invalid("c2 node %s: track capacity cannot be negative", n.Name)
		}
		if n.AgeOut <= 0 {
			return invalid("c2 node %s: age out must be positive", n.Name)
		}
		if n.MinReportDelay < 0 || n.MeanReportDelay < n.MinReportDelay {
			return invalid("c2 node %s: report delays need 0 <= min <= mean", n.Name)
		}
		if n.MeanReportDelay <= 0 {
			return invalid("c2 node %s: mean report delay must be positive", n.Name)
		}
		if n.AssignmentPeriod <= 0 {
			return invalid("c2 node %s: assignment period must be positive", n.Name)
		}
		c2s[n.Name] = n
	}
	for _, n := range c.C2Nodes {
		if err := checkChain(n.Name, c2s); err != nil {
			return err
		}
	}

	interceptors := make(map[string]struct{}, len(c.Interceptors))
	for _, ic := range c.Interceptors {
		if ic.Type == "" {
			return invalid("interceptor type is required")
		}
		if _, dup := interceptors[ic.Type]; dup {
			return invalid("interceptor type %s defined twice", ic.Type)
		}
		if ic.SpeedKts <= 0 || ic.LethalRangeNM <= 0 || ic.MaxG <= 0 {
			return invalid("interceptor %s: speed, lethal range and max g must be positive", ic.Type)
		}
		if ic.Pk < 0 || ic.Pk > 1 {
			return invalid("interceptor %s: pk must be between 0.0 and 1.0", ic.Type)
		}
		if ic.NominalPeriod <= 0 || ic.TerminalPeriod < 0 {
			return invalid("interceptor %s: guidance periods must be positive", ic.Type)
		}
		if ic.TerminalPeriod > ic.NominalPeriod {
			return invalid("interceptor %s: terminal period must not exceed nominal period", ic.Type)
		}
		interceptors[ic.Type] = struct{}{}
	}

	radars := make(map[string]RadarConfig, len(c.Radars))
	for _, r := range c.Radars {
		if err := claim("radar", r.Name); err != nil {
			return err
		}
		if _, ok := c2s[r.C2]; !ok {
			return invalid("radar %s: unknown c2 node %q", r.Name, r.C2)
		}
		if _, ok := track.ParseFunction(r.Function); !ok {
			return invalid("radar %s: unknown function %q", r.Name, r.Function)
		}
		if r.RangeNM <= 0 || r.ScanPeriod <= 0 {
			return invalid("radar %s: range and scan period must be positive", r.Name)
		}
		if r.Pd < 0 || r.Pd > 1 {
			return invalid("radar %s: pd must be between 0.0 and 1.0", r.Name)
		}
		radars[r.Name] = r
	}

	for _, fu := range c.FireUnits {
		if err := claim("fire unit", fu.Name); err != nil {
			return err
		}
		if _, ok := c2s[fu.C2]; !ok {
			return invalid("fire unit %s: unknown c2 node %q", fu.Name, fu.C2)
		}
		if _, ok := interceptors[fu.Interceptor]; !ok {
			return invalid("fire unit %s: unknown interceptor type %q", fu.Name, fu.Interceptor)
		}
		if fu.Tracker != "" {
			r, ok := radars[fu.Tracker]
			if !ok {
				return invalid("fire unit %s: unknown tracker radar %q", fu.Name, fu.Tracker)
			}
			if fn, _ := track.ParseFunction(r.Function); fn != track.TargetTrack {
				return invalid("fire unit %s: tracker %s is not a TT radar", fu.Name, fu.Tracker)
			}
		}
		if fu.Channels < 1 {
			return invalid("fire unit %s: channels must be at least 1", fu.Name)
		}
		if fu.Rounds < 0 {
			return invalid("fire unit %s: rounds cannot be negative", fu.Name)
		}
		if fu.MinRangeNM < 0 || fu.MinRangeNM >= fu.MaxRangeNM {
			return invalid("fire unit %s: range min must be less than max", fu.Name)
		}
		if fu.Period <= 0 || fu.Reload < 0 {
			return invalid("fire unit %s: period must be positive", fu.Name)
		}
	}

	for _, a := range c.Raid {
		if err := claim("aircraft", a.Name); err != nil {
			return err
		}
		if a.SpeedKts <= 0 {
			return invalid("aircraft %s: speed must be positive", a.Name)
		}
		if a.UpdatePeriod <= 0 {
			return invalid("aircraft %s: update period must be positive", a.Name)
		}
		if a.LaunchTime < 0 {
			return invalid("aircraft %s: launch time cannot be negative", a.Name)
		}
		if j := a.Jammer; j != nil && (j.RangeNM <= 0 || j.Power < 0 || j.Power > 1) {
			return invalid("aircraft %s: jammer needs a positive range and power in [0, 1]", a.Name)
		}
	}

	return nil
}

// checkChain walks name's superiors and rejects unknown names and loops
func checkChain(name string, c2s map[string]C2NodeConfig) error {
	seen := map[string]bool{name: true}
	for cur := c2s[name]; cur.Superior != ""; {
		next, ok := c2s[cur.Superior]
		if !ok {
			return invalid("c2 node %s: unknown superior %q", cur.Name, cur.Superior)
		}
		if seen[next.Name] {
			return invalid("c2 node %s: command chain loops through %s", name, next.Name)
		}
		seen[next.Name] = true
		cur = next
	}
	return nil
}

// Interceptor returns the named interceptor type
func (c *SimulationConfig) Interceptor(typ string) (InterceptorConfig, bool) {
	for _, ic := range c.Interceptors {
		if ic.Type == typ {
			return ic, true
		}
	}
	return InterceptorConfig{}, false
}

// RaidPoints is the total point value of the raid
func (c *SimulationConfig) RaidPoints() int {
	total := 0
	for _, a := range c.Raid {
		total += a.Points
	}
	return total
}

// String returns a human-readable representation of the configuration
func (c *SimulationConfig) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Simulation Configuration:\n  Name: %s\n  Description: %s\n  Duration: %v\n  Seed: %d\n",
		c.Simulation.Name, c.Simulation.Description, c.Simulation.Duration, c.Simulation.Seed)

	sb.WriteString("\nCommand Chain:\n")
	for _, n := range c.C2Nodes {
		sup := n.Superior
		if sup == "" {
			sup = "(top)"
		}
		fmt.Fprintf(&sb, "  %s -> %s: capacity %d, threshold %.0fs, age out %v\n",
			n.Name, sup, n.TargetCapacity, n.AssignmentThreshold, n.AgeOut)
	}

	sb.WriteString("\nFire Units:\n")
	for _, fu := range c.FireUnits {
		fmt.Fprintf(&sb, "  %s (%s) under %s: %d ch, %d rds, %.0f-%.0f nmi, tracker %s\n",
			fu.Name, fu.Interceptor, fu.C2, fu.Channels, fu.Rounds, fu.MinRangeNM, fu.MaxRangeNM, fu.Tracker)
	}

	sb.WriteString("\nRadars:\n")
	for _, r := range c.Radars {
		fmt.Fprintf(&sb, "  %s [%s] under %s: %.0f nmi, pd %.2f, scan %v\n",
			r.Name, r.Function, r.C2, r.RangeNM, r.Pd, r.ScanPeriod)
	}

	jammers := 0
	for _, a := range c.Raid {
		if a.Jammer != nil {
			jammers++
		}
	}
	fmt.Fprintf(&sb, "\nRaid: %d aircraft (%d jammers, %d pts)\nJamming Threshold: %.2f\n",
		len(c.Raid), jammers, c.RaidPoints(), c.Jamming.Threshold)

	fmt.Fprintf(&sb, "\nLogging:\n  Console Level: %s\n  AAR Enabled: %t\n  AAR Format: %s\n",
		c.Logging.ConsoleLevel, c.Logging.EnableAAR, c.Logging.AARFormat)
	return sb.String()
}

// GetDefaultConfig returns the reference scenario: a brigade with two
// battalions defending against a six-ship raid with one escort jammer
func GetDefaultConfig() *SimulationConfig {
	site := core.Point{Lat: 35.0, Lon: -117.0}
	at := func(dLat, dLon, alt float64) core.Point {
		return core.Point{Lat: site.Lat + dLat, Lon: site.Lon + dLon, Alt: alt}
	}

	c2 := func(name, superior string, loc core.Point, capacity int) C2NodeConfig {
		return C2NodeConfig{
			Name:                name,
			Superior:            superior,
			Location:            loc,
			TargetCapacity:      capacity,
			AssignmentThreshold: 90,
			AgeOut:              30 * time.Second,
			MinReportDelay:      2 * time.Second,
			MeanReportDelay:     4 * time.Second,
			AssignmentPeriod:    2 * time.Second,
		}
	}
	fu := func(name, c2, tracker string, loc core.Point) FireUnitConfig {
		return FireUnitConfig{
			Name:        name,
			C2:          c2,
			Location:    loc,
			Tracker:     tracker,
			Interceptor: "SAM-A",
			Channels:    2,
			Rounds:      4,
			MinRangeNM:  1,
			MaxRangeNM:  35,
			Reload:      5 * time.Second,
			Period:      1 * time.Second,
		}
	}
	radar := func(name, c2, fn string, loc core.Point, rng float64) RadarConfig {
		return RadarConfig{
			Name:         name,
			C2:           c2,
			Location:     loc,
			Function:     fn,
			RangeNM:      rng,
			Pd:           0.9,
			ScanPeriod:   5 * time.Second,
			RangeNoiseNM: 0.5,
		}
	}
	aircraft := func(name string, dLon float64, launch time.Duration, points int) AircraftConfig {
		return AircraftConfig{
			Name:         name,
			Start:        at(1.5, dLon, 15000),
			Destination:  at(0, dLon/4, 15000),
			SpeedKts:     480,
			LaunchTime:   launch,
			UpdatePeriod: 1 * time.Second,
			Points:       points,
		}
	}

	raid := []AircraftConfig{
		aircraft("bandit-1", -0.3, 0, 10),
		aircraft("bandit-2", -0.1, 0, 10),
		aircraft("bandit-3", 0.1, 30*time.Second, 10),
		aircraft("bandit-4", 0.3, 30*time.Second, 10),
		aircraft("bandit-5", 0.0, 60*time.Second, 25),
		aircraft("escort-1", 0.0, 0, 5),
	}
	raid[5].Start = at(1.8, 0, 25000)
	raid[5].Destination = at(0.5, 0, 25000)
	raid[5].SpeedKts = 420
	raid[5].Jammer = &JammerConfig{RangeNM: 120, Power: 0.9}

	return &SimulationConfig{
		Simulation: SimulationSettings{
			Name:        "killweb",
			Description: "Kill-web air defense engagement simulation",
			Duration:    20 * time.Minute,
			Seed:        1,
		},

		Logging: LoggingConfig{
			ConsoleLevel:  "info",
			EventLevel:    "info",
			EnableAAR:     true,
			AARFormat:     "markdown",
			AARDetail:     "detailed",
			AAROutputPath: "./reports/",
			EnableMetrics: false,
		},

		C2Nodes: []C2NodeConfig{
			c2("brigade", "", site, 8),
			c2("bn-west", "brigade", at(0, -0.25, 0), 4),
			c2("bn-east", "brigade", at(0, 0.25, 0), 4),
		},

		FireUnits: []FireUnitConfig{
			fu("fu-w1", "bn-west", "tt-west", at(0.05, -0.3, 0)),
			fu("fu-w2", "bn-west", "tt-west", at(-0.05, -0.2, 0)),
			fu("fu-e1", "bn-east", "tt-east", at(0.05, 0.2, 0)),
			fu("fu-e2", "bn-east", "tt-east", at(-0.05, 0.3, 0)),
		},

		Interceptors: []InterceptorConfig{
			{
				Type:           "SAM-A",
				SpeedKts:       2400,
				LethalRangeNM:  45,
				Pk:             0.7,
				MaxG:           30,
				ActiveRangeNM:  6,
				NominalPeriod:  500 * time.Millisecond,
				TerminalPeriod: 100 * time.Millisecond,
			},
		},

		Radars: []RadarConfig{
			radar("ew-1", "brigade", "EW", at(0, 0, 100), 150),
			radar("tt-west", "bn-west", "TT", at(0, -0.25, 50), 50),
			radar("tt-east", "bn-east", "TT", at(0, 0.25, 50), 50),
		},

		Raid: raid,

		Jamming: JammingConfig{Threshold: 0.6},
	}
}
