// Package config loads and validates trial configuration.
//
// The schema uses pointer fields so a partial JSON file is safe: fields
// omitted from the file fall back to defaults via the Get* accessors.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FormationSpec names one target formation in the trial plan.
type FormationSpec struct {
	Name string `json:"name"`
}

// TrialConfig represents the root configuration for one trial.
type TrialConfig struct {
	// Swarm composition. Agent order is fixed here and determines the
	// column order of per-agent fields in the output record.
	Agents []string `json:"agents"`

	// Ordered formation plan, traversed forward exactly once.
	Formations []FormationSpec `json:"formations"`

	// Flight params
	TakeoffAltitude *float64 `json:"takeoff_altitude,omitempty"` // metres

	// Supervisor loop params
	TickRate      *int     `json:"tick_rate,omitempty"`      // Hz
	WindowSeconds *float64 `json:"window_seconds,omitempty"` // predicate averaging window

	// State machine timeouts (duration strings like "10s")
	SimInitTimeout        *string `json:"sim_init_timeout,omitempty"`
	TakeOffTimeout        *string `json:"take_off_timeout,omitempty"`
	HoverWait             *string `json:"hover_wait,omitempty"`
	AssignmentTimeout     *string `json:"assignment_timeout,omitempty"`
	FormationReceivedWait *string `json:"formation_received_wait,omitempty"`
	ConvergedWait         *string `json:"converged_wait,omitempty"`
	GridlockTimeout       *string `json:"gridlock_timeout,omitempty"`
	TrialTimeout          *string `json:"trial_timeout,omitempty"`

	// Thresholds
	PositionTolerance  *float64 `json:"position_tolerance,omitempty"`   // metres
	ZeroVelThreshold   *float64 `json:"zero_vel_threshold,omitempty"`   // m/s
	AvoidanceThreshold *float64 `json:"avoidance_threshold,omitempty"`  // fraction [0,1]
	SmoothingAlpha     *float64 `json:"smoothing_alpha,omitempty"`      // EMA factor [0,1]

	// I/O
	OutputDir       *string `json:"output_dir,omitempty"`
	DBPath          *string `json:"db_path,omitempty"`
	ListenAddr      *string `json:"listen_addr,omitempty"`
	MissionEndpoint *string `json:"mission_endpoint,omitempty"`
	MissionTimeout  *string `json:"mission_timeout,omitempty"`
}

// LoadTrialConfig loads a TrialConfig from a JSON file.
// Fields omitted from the JSON retain their defaults, so partial configs
// are safe.
func LoadTrialConfig(path string) (*TrialConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &TrialConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TrialConfig) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent is required")
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a == "" {
			return fmt.Errorf("agent ids must be non-empty")
		}
		if seen[a] {
			return fmt.Errorf("duplicate agent id %q", a)
		}
		seen[a] = true
	}

	if len(c.Formations) == 0 {
		return fmt.Errorf("formation plan must contain at least one formation")
	}
	for i, f := range c.Formations {
		if f.Name == "" {
			return fmt.Errorf("formation %d must be named", i)
		}
	}

	if c.TickRate != nil && *c.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive, got %d", *c.TickRate)
	}
	if c.WindowSeconds != nil && *c.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive, got %f", *c.WindowSeconds)
	}
	if c.SmoothingAlpha != nil {
		if *c.SmoothingAlpha < 0 || *c.SmoothingAlpha > 1 {
			return fmt.Errorf("smoothing_alpha must be between 0 and 1, got %f", *c.SmoothingAlpha)
		}
	}
	if c.AvoidanceThreshold != nil {
		if *c.AvoidanceThreshold < 0 || *c.AvoidanceThreshold > 1 {
			return fmt.Errorf("avoidance_threshold must be between 0 and 1, got %f", *c.AvoidanceThreshold)
		}
	}

	for name, v := range map[string]*string{
		"sim_init_timeout":        c.SimInitTimeout,
		"take_off_timeout":        c.TakeOffTimeout,
		"hover_wait":              c.HoverWait,
		"assignment_timeout":      c.AssignmentTimeout,
		"formation_received_wait": c.FormationReceivedWait,
		"converged_wait":          c.ConvergedWait,
		"gridlock_timeout":        c.GridlockTimeout,
		"trial_timeout":           c.TrialTimeout,
		"mission_timeout":         c.MissionTimeout,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, *v, err)
			}
		}
	}

	return nil
}

func (c *TrialConfig) duration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetTakeoffAltitude returns the takeoff altitude in metres or the default.
func (c *TrialConfig) GetTakeoffAltitude() float64 {
	if c.TakeoffAltitude == nil {
		return 1.0
	}
	return *c.TakeoffAltitude
}

// GetTickRate returns the supervisor tick rate in Hz or the default.
func (c *TrialConfig) GetTickRate() int {
	if c.TickRate == nil {
		return 50
	}
	return *c.TickRate
}

// GetWindowSeconds returns the predicate averaging window length.
func (c *TrialConfig) GetWindowSeconds() float64 {
	if c.WindowSeconds == nil {
		return 1.0
	}
	return *c.WindowSeconds
}

// GetSimInitTimeout returns the timeout for all agents to report telemetry.
func (c *TrialConfig) GetSimInitTimeout() time.Duration {
	return c.duration(c.SimInitTimeout, 10*time.Second)
}

// GetTakeOffTimeout returns the timeout for the swarm to reach altitude.
func (c *TrialConfig) GetTakeOffTimeout() time.Duration {
	return c.duration(c.TakeOffTimeout, 10*time.Second)
}

// GetHoverWait returns the settle time spent hovering between formations.
func (c *TrialConfig) GetHoverWait() time.Duration {
	return c.duration(c.HoverWait, 5*time.Second)
}

// GetAssignmentTimeout returns the timeout for an assignment to arrive.
func (c *TrialConfig) GetAssignmentTimeout() time.Duration {
	return c.duration(c.AssignmentTimeout, 20*time.Second)
}

// GetFormationReceivedWait returns the settle time after entering FLYING.
func (c *TrialConfig) GetFormationReceivedWait() time.Duration {
	return c.duration(c.FormationReceivedWait, time.Second)
}

// GetConvergedWait returns how long convergence must hold in IN_FORMATION.
func (c *TrialConfig) GetConvergedWait() time.Duration {
	return c.duration(c.ConvergedWait, time.Second)
}

// GetGridlockTimeout returns the maximum time allowed in GRIDLOCK.
func (c *TrialConfig) GetGridlockTimeout() time.Duration {
	return c.duration(c.GridlockTimeout, 90*time.Second)
}

// GetTrialTimeout returns the trial-wide watchdog ceiling.
func (c *TrialConfig) GetTrialTimeout() time.Duration {
	return c.duration(c.TrialTimeout, 600*time.Second)
}

// GetPositionTolerance returns the altitude tolerance for takeoff, metres.
func (c *TrialConfig) GetPositionTolerance() float64 {
	if c.PositionTolerance == nil {
		return 0.05
	}
	return *c.PositionTolerance
}

// GetZeroVelThreshold returns the planner-goal speed below which an agent
// counts as converged, m/s.
func (c *TrialConfig) GetZeroVelThreshold() float64 {
	if c.ZeroVelThreshold == nil {
		return 1.0
	}
	return *c.ZeroVelThreshold
}

// GetAvoidanceThreshold returns the windowed avoidance-active fraction
// above which the swarm counts as gridlocked.
func (c *TrialConfig) GetAvoidanceThreshold() float64 {
	if c.AvoidanceThreshold == nil {
		return 0.95
	}
	return *c.AvoidanceThreshold
}

// GetSmoothingAlpha returns the EMA factor for position smoothing.
func (c *TrialConfig) GetSmoothingAlpha() float64 {
	if c.SmoothingAlpha == nil {
		return 0.98
	}
	return *c.SmoothingAlpha
}

// GetOutputDir returns the directory for the CSV output file.
func (c *TrialConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "."
	}
	return *c.OutputDir
}

// GetDBPath returns the path of the sqlite trial store.
func (c *TrialConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "trials.db"
	}
	return *c.DBPath
}

// GetListenAddr returns the UDP address for telemetry ingest.
func (c *TrialConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":14550"
	}
	return *c.ListenAddr
}

// GetMissionEndpoint returns the base URL of the mission controller.
func (c *TrialConfig) GetMissionEndpoint() string {
	if c.MissionEndpoint == nil || *c.MissionEndpoint == "" {
		return "http://127.0.0.1:8750"
	}
	return *c.MissionEndpoint
}

// GetMissionTimeout returns the per-call timeout for mission commands.
func (c *TrialConfig) GetMissionTimeout() time.Duration {
	return c.duration(c.MissionTimeout, 5*time.Second)
}

// WindowTicks returns the predicate window capacity in ticks.
func (c *TrialConfig) WindowTicks() int {
	n := int(c.GetWindowSeconds() * float64(c.GetTickRate()))
	if n < 1 {
		n = 1
	}
	return n
}
