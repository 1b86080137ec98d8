// Package supervisor drives one formation-flight trial through its
// takeoff → formation-cycling → completion lifecycle.
//
// The supervisor is tick-driven: a fixed-rate loop calls Tick, which
// reads a telemetry snapshot, evaluates the current phase's predicates,
// applies at most one transition, runs the trial-logging hooks, and
// finally checks the trial watchdog. It issues high-level mission
// commands and consumes feedback; it does not compute trajectories.
package supervisor

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/banshee-data/formation.report/internal/telemetry"
	"github.com/banshee-data/formation.report/internal/timeutil"
)

// MissionController is the external command endpoint the supervisor
// drives. Advance requests the operator begin takeoff or progress to the
// next formation.
type MissionController interface {
	Advance(ctx context.Context) error
}

// Recorder receives trial-metric hooks from the supervisor. Implemented
// by triallog.Logger.
type Recorder interface {
	// StartLogging opens a per-formation logging span. Idempotent.
	StartLogging(now time.Time)
	// StopLogging closes the span and records its convergence duration.
	// Idempotent.
	StopLogging(now time.Time)
	// OnAssignmentEvent counts a re-assignment within the open span.
	OnAssignmentEvent()
	// StartAvoidance marks entry into sustained collision avoidance.
	StartAvoidance(now time.Time)
	// StopAvoidance records the elapsed avoidance duration for the cycle.
	StopAvoidance(now time.Time)
	// Observe feeds the per-tick position filter and distance accumulator.
	Observe(snap telemetry.Snapshot)
}

// TelemetrySource is the supervisor's view of the telemetry store.
type TelemetrySource interface {
	Snapshot() telemetry.Snapshot
	AllAgentsFresh() bool
	AssignmentReceived() bool
	ClearAssignment()
	TakeAssignmentEvents() int
}

// Config holds the supervisor's tuning surface. Durations are wall-time;
// elapsed-in-phase checks compare TicksInState/TickRate against them.
type Config struct {
	Agents     []string
	Formations []string

	TakeoffAltitude float64 // metres
	TickRate        int     // Hz
	WindowTicks     int     // predicate window capacity in ticks

	SimInitTimeout        time.Duration
	TakeOffTimeout        time.Duration
	HoverWait             time.Duration
	AssignmentTimeout     time.Duration
	FormationReceivedWait time.Duration
	ConvergedWait         time.Duration
	GridlockTimeout       time.Duration
	TrialTimeout          time.Duration

	PositionTolerance  float64 // metres
	ZeroVelThreshold   float64 // m/s
	AvoidanceThreshold float64 // fraction [0,1]
}

// Result is returned from every Tick. When Done is set the caller stops
// ticking and performs shutdown: Completed means the trial finished
// normally and the record should be flushed; otherwise PriorPhase names
// the phase being left when the trial was terminated.
type Result struct {
	Phase      Phase
	Done       bool
	Completed  bool
	PriorPhase Phase
	Err        error
}

// Supervisor owns all mutable trial state. Only the tick loop mutates
// it; telemetry arrives through the concurrency-safe store.
type Supervisor struct {
	cfg       Config
	clock     timeutil.Clock
	telemetry TelemetrySource
	mission   MissionController
	trial     Recorder

	phase     Phase
	lastPhase Phase
	// ticksInState starts at -1 so the first tick in a phase lands on 0.
	ticksInState int
	formationIdx int

	watchdogDeadline time.Time
	failure          error

	// predicate windows, pre-allocated at trial start
	speedWin   *Window
	headingWin *Window
	avoidWin   *Window
}

// New creates a Supervisor and arms the trial watchdog. The watchdog
// deadline is fixed here and never extended.
func New(cfg Config, clock timeutil.Clock, src TelemetrySource, mission MissionController, trial Recorder) *Supervisor {
	return &Supervisor{
		cfg:              cfg,
		clock:            clock,
		telemetry:        src,
		mission:          mission,
		trial:            trial,
		phase:            PhaseIdle,
		lastPhase:        PhaseIdle,
		ticksInState:     -1,
		formationIdx:     -1,
		watchdogDeadline: clock.Now().Add(cfg.TrialTimeout),
		speedWin:         NewWindow(cfg.WindowTicks),
		headingWin:       NewWindow(cfg.WindowTicks),
		avoidWin:         NewWindow(cfg.WindowTicks),
	}
}

// Phase returns the current trial phase.
func (s *Supervisor) Phase() Phase { return s.phase }

// TicksInState returns the number of completed ticks in the current phase.
func (s *Supervisor) TicksInState() int { return s.ticksInState }

// FormationIndex returns the index of the active formation, -1 before the
// first cycle.
func (s *Supervisor) FormationIndex() int { return s.formationIdx }

// Tick advances the state machine by one step. At most one transition
// fires per tick; success conditions are evaluated before timeouts, and
// the watchdog check runs last and can override everything.
func (s *Supervisor) Tick(ctx context.Context) Result {
	s.ticksInState++

	snap := s.telemetry.Snapshot()

	// Drain queued assignment events to the recorder. Events arriving
	// outside a logging span are no-ops there; the event that satisfies
	// WAITING_ON_ASSIGNMENT is counted by the span opening at 1.
	for i := s.telemetry.TakeAssignmentEvents(); i > 0; i-- {
		s.trial.OnAssignmentEvent()
	}

	switch s.phase {
	case PhaseIdle:
		if s.telemetry.AllAgentsFresh() {
			if err := s.mission.Advance(ctx); err != nil {
				s.fail(err)
				break
			}
			s.nextState(PhaseTakingOff, true)
		} else if s.hasElapsed(s.cfg.SimInitTimeout) {
			s.nextState(PhaseTerminate, true)
		}

	case PhaseTakingOff:
		if s.hasTakenOff(snap) {
			s.nextState(PhaseHovering, true)
		} else if s.hasElapsed(s.cfg.TakeOffTimeout) {
			s.nextState(PhaseTerminate, true)
		}

	case PhaseHovering:
		if s.hasElapsed(s.cfg.HoverWait) {
			if s.hasCycledThroughFormations() {
				s.nextState(PhaseComplete, true)
			} else {
				if err := s.nextFormation(ctx); err != nil {
					s.fail(err)
					break
				}
				s.nextState(PhaseWaitingOnAssignment, true)
			}
		}

	case PhaseWaitingOnAssignment:
		if s.telemetry.AssignmentReceived() {
			s.trial.StartLogging(s.clock.Now())
			s.nextState(PhaseFlying, true)
		} else if s.hasElapsed(s.cfg.AssignmentTimeout) {
			s.nextState(PhaseTerminate, true)
		}

	case PhaseFlying:
		if s.hasElapsed(s.cfg.FormationReceivedWait) {
			if s.hasConverged(snap) {
				// The just-filled window is valid evidence for
				// IN_FORMATION; keep it.
				s.nextState(PhaseInFormation, false)
			} else if s.hasGridlocked(snap) {
				s.nextState(PhaseGridlock, true)
			}
		}

	case PhaseInFormation:
		if s.hasElapsed(s.cfg.ConvergedWait) {
			s.trial.StopLogging(s.clock.Now())
			s.nextState(PhaseHovering, true)
		} else if !s.hasConverged(snap) {
			s.nextState(PhaseFlying, true)
		}

	case PhaseGridlock:
		if s.hasLeftGridlock(snap) {
			s.nextState(PhaseFlying, true)
		} else if s.hasElapsed(s.cfg.GridlockTimeout) {
			s.nextState(PhaseTerminate, true)
		}

	case PhaseComplete, PhaseTerminate:
		// absorbing; the caller performs shutdown and output flush
	}

	// Per-tick signal logging: the position filter runs every tick so
	// the smoothed estimate stays current across phases.
	s.trial.Observe(snap)

	// Trial watchdog: a last-resort ceiling, independent of phase-local
	// timers. Terminal phases stay absorbing.
	if !s.phase.Terminal() && s.clock.Now().After(s.watchdogDeadline) {
		log.Printf("trial watchdog expired after %s", s.cfg.TrialTimeout)
		s.nextState(PhaseTerminate, true)
	}

	switch s.phase {
	case PhaseComplete:
		return Result{Phase: s.phase, Done: true, Completed: true}
	case PhaseTerminate:
		return Result{Phase: s.phase, Done: true, PriorPhase: s.lastPhase, Err: s.failure}
	default:
		return Result{Phase: s.phase}
	}
}

// nextState applies a transition: records the prior phase, resets the
// in-state tick counter, clears the predicate windows unless the
// transition preserves them, and runs the gridlock entry/exit hooks.
func (s *Supervisor) nextState(phase Phase, reset bool) {
	s.lastPhase = s.phase
	s.phase = phase

	log.Printf("Leaving %s for %s", s.lastPhase, s.phase)

	s.ticksInState = -1

	if reset {
		s.speedWin.Clear()
		s.headingWin.Clear()
		s.avoidWin.Clear()
	}

	if s.phase == PhaseGridlock {
		s.trial.StartAvoidance(s.clock.Now())
	}
	if s.lastPhase == PhaseGridlock {
		s.trial.StopAvoidance(s.clock.Now())
	}
}

// fail records a fatal action error and routes the trial to TERMINATE.
func (s *Supervisor) fail(err error) {
	log.Printf("mission command failed: %v", err)
	s.failure = err
	s.nextState(PhaseTerminate, true)
}

// nextFormation advances the formation index, clears the assignment flag
// so the next one can be awaited, and requests the next formation from
// the mission controller.
func (s *Supervisor) nextFormation(ctx context.Context) error {
	s.formationIdx++
	log.Printf("Current formation: %s", s.cfg.Formations[s.formationIdx])

	// every formation is expected to generate a fresh assignment
	s.telemetry.ClearAssignment()

	return s.mission.Advance(ctx)
}

//
// Predicates
//

// hasElapsed reports whether the phase has been active for at least d.
// The boundary at equality is inclusive.
func (s *Supervisor) hasElapsed(d time.Duration) bool {
	elapsed := float64(s.ticksInState) / float64(s.cfg.TickRate)
	return elapsed >= d.Seconds()
}

// hasTakenOff reports whether every agent is within tolerance of the
// takeoff altitude.
func (s *Supervisor) hasTakenOff(snap telemetry.Snapshot) bool {
	for _, a := range s.cfg.Agents {
		pose := snap.Poses[a]
		if !pose.Fresh() {
			return false
		}
		if math.Abs(pose.Position.Z-s.cfg.TakeoffAltitude) >= s.cfg.PositionTolerance {
			return false
		}
	}
	return true
}

// hasConverged samples the raw planner goal of every agent into the
// speed/heading windows and reports whether the windowed average speed is
// below the zero-velocity threshold for every agent. Until the window is
// full the answer is false.
func (s *Supervisor) hasConverged(snap telemetry.Snapshot) bool {
	speeds := make([]float64, len(s.cfg.Agents))
	headings := make([]float64, len(s.cfg.Agents))
	for i, a := range s.cfg.Agents {
		g := snap.RawGoals[a]
		speeds[i] = g.Norm()
		headings[i] = g.Heading()
	}
	s.speedWin.Push(speeds)
	s.headingWin.Push(headings)

	if !s.speedWin.Ready() {
		return false
	}

	for _, mean := range s.speedWin.ColumnMeans() {
		if mean >= s.cfg.ZeroVelThreshold {
			return false
		}
	}
	return true
}

// hasGridlocked samples each agent's avoidance-active flag and reports
// whether any agent's windowed average exceeds the avoidance threshold.
// Until the window is full the answer is false.
func (s *Supervisor) hasGridlocked(snap telemetry.Snapshot) bool {
	active := make([]float64, len(s.cfg.Agents))
	for i, a := range s.cfg.Agents {
		if snap.Statuses[a].AvoidanceActive {
			active[i] = 1
		}
	}
	s.avoidWin.Push(active)

	if !s.avoidWin.Ready() {
		return false
	}

	for _, mean := range s.avoidWin.ColumnMeans() {
		if mean > s.cfg.AvoidanceThreshold {
			return true
		}
	}
	return false
}

// hasLeftGridlock is the negation of hasGridlocked, but never answers
// true before the avoidance window has filled: gridlock must not be
// exited on insufficient evidence.
func (s *Supervisor) hasLeftGridlock(snap telemetry.Snapshot) bool {
	gridlocked := s.hasGridlocked(snap)
	if !s.avoidWin.Ready() {
		return false
	}
	return !gridlocked
}

// hasCycledThroughFormations reports whether the plan is exhausted: the
// trial ends converged to the last formation.
func (s *Supervisor) hasCycledThroughFormations() bool {
	return s.formationIdx == len(s.cfg.Formations)-1
}
