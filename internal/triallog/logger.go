// Package triallog accumulates per-trial performance metrics and emits
// one finalized record per trial.
//
// Metrics are accumulated incrementally, tick by tick, and survive state
// re-entry: re-entering FLYING from IN_FORMATION continues the same
// logging span, and the position filter keeps running across phases so
// the distance estimate never restarts.
package triallog

import (
	"log"
	"math"
	"time"

	"github.com/banshee-data/formation.report/internal/telemetry"
	"github.com/google/uuid"
)

// Logger accumulates trial metrics. It is owned and mutated exclusively
// by the supervisor tick loop.
type Logger struct {
	agents []string
	alpha  float64
	trial  int

	logging bool

	// exponential position filter, seeded per agent on first fresh sample
	seeded    []bool
	smoothedX []float64
	smoothedY []float64
	dist      []float64

	// per-formation-cycle metrics, one entry per logging span
	convergenceSecs []float64
	avoidanceSecs   []float64
	assignments     []int

	spanStart  time.Time
	avoidStart time.Time
	avoidOpen  bool

	finalized bool
	record    Record
}

// NewLogger creates a Logger for the given agent list. Agent order fixes
// the order of the per-agent distance columns in the finalized record.
func NewLogger(agents []string, alpha float64, trial int) *Logger {
	n := len(agents)
	return &Logger{
		agents:    append([]string(nil), agents...),
		alpha:     alpha,
		trial:     trial,
		seeded:    make([]bool, n),
		smoothedX: make([]float64, n),
		smoothedY: make([]float64, n),
		dist:      make([]float64, n),
	}
}

// Logging reports whether a logging span is open.
func (l *Logger) Logging() bool { return l.logging }

// StartLogging opens a logging span for the next formation cycle. The
// assignment counter starts at 1: the assignment that triggered the
// transition to FLYING already counts. Idempotent.
func (l *Logger) StartLogging(now time.Time) {
	if l.logging {
		return
	}
	l.assignments = append(l.assignments, 1)
	l.convergenceSecs = append(l.convergenceSecs, 0)
	l.avoidanceSecs = append(l.avoidanceSecs, 0)
	l.spanStart = now
	l.logging = true
}

// StopLogging closes the span and records its convergence duration.
// Idempotent.
func (l *Logger) StopLogging(now time.Time) {
	if !l.logging {
		return
	}
	l.logging = false

	secs := now.Sub(l.spanStart).Seconds()
	l.convergenceSecs[len(l.convergenceSecs)-1] = secs
	log.Printf("Convergence time: %.2f", secs)
}

// OnAssignmentEvent increments the open span's assignment counter. Events
// outside a span are dropped.
func (l *Logger) OnAssignmentEvent() {
	if !l.logging {
		return
	}
	l.assignments[len(l.assignments)-1]++
}

// StartAvoidance marks entry into sustained collision avoidance.
func (l *Logger) StartAvoidance(now time.Time) {
	l.avoidStart = now
	l.avoidOpen = true
}

// StopAvoidance adds the elapsed avoidance duration to the current
// formation cycle. Multiple episodes within one cycle accumulate.
func (l *Logger) StopAvoidance(now time.Time) {
	if !l.avoidOpen {
		return
	}
	l.avoidOpen = false
	if len(l.avoidanceSecs) == 0 {
		return
	}
	l.avoidanceSecs[len(l.avoidanceSecs)-1] += now.Sub(l.avoidStart).Seconds()
}

// Observe feeds one telemetry snapshot into the position filter and the
// distance accumulator. It runs every tick regardless of logging state:
// distance is trial-scoped, and the filter must stay current so spans
// that open later see a settled estimate.
//
// The per-tick distance increment is the planar norm of the change in
// the smoothed estimate, not the raw position delta.
func (l *Logger) Observe(snap telemetry.Snapshot) {
	for i, a := range l.agents {
		pose := snap.Poses[a]
		if !pose.Fresh() {
			continue
		}

		x, y := pose.Position.X, pose.Position.Y
		if !l.seeded[i] {
			l.smoothedX[i] = x
			l.smoothedY[i] = y
			l.seeded[i] = true
			continue
		}

		lastX, lastY := l.smoothedX[i], l.smoothedY[i]
		l.smoothedX[i] = l.alpha*lastX + (1-l.alpha)*x
		l.smoothedY[i] = l.alpha*lastY + (1-l.alpha)*y
		l.dist[i] += math.Hypot(l.smoothedX[i]-lastX, l.smoothedY[i]-lastY)
	}
}

// Distances returns the cumulative planar distance per agent so far.
func (l *Logger) Distances() []float64 {
	return append([]float64(nil), l.dist...)
}

// Finalize closes out the trial and returns its record. The first call
// latches: repeated invocations (the COMPLETE phase is absorbing and may
// re-run its entry action) return the same record.
func (l *Logger) Finalize() Record {
	if l.finalized {
		return l.record
	}
	l.finalized = true

	l.record = Record{
		RunID:           uuid.NewString(),
		Trial:           l.trial,
		Agents:          append([]string(nil), l.agents...),
		Distances:       append([]float64(nil), l.dist...),
		ConvergenceSecs: append([]float64(nil), l.convergenceSecs...),
		AvoidanceSecs:   append([]float64(nil), l.avoidanceSecs...),
		Assignments:     append([]int(nil), l.assignments...),
	}
	return l.record
}
