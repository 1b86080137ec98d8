// Package telemetry ingests and stores the latest per-agent flight
// telemetry for the trial supervisor.
//
// Producers (the flight stack, or the telemetry-gen tool) write
// fire-and-forget updates into the Store; the supervisor tick loop is the
// sole reader and consumes point-in-time snapshots. Per-field updates are
// atomic under the store mutex; cross-field atomicity is deliberately not
// provided — a snapshot may mix values from different instants.
package telemetry

import (
	"math"
	"time"
)

// Vec3 is a velocity or position vector in the world frame.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the Euclidean magnitude of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Heading returns the planar heading angle of the vector in radians.
func (v Vec3) Heading() float64 {
	return math.Atan2(v.Y, v.X)
}

// Pose is the latest ground-truth state of one agent. A zero Stamp means
// the agent has never reported; freshness checks key off that sentinel.
type Pose struct {
	Position Vec3
	Stamp    time.Time
}

// Fresh reports whether this pose has ever been updated.
func (p Pose) Fresh() bool {
	return !p.Stamp.IsZero()
}

// Status holds the latest safety flags reported by one agent.
type Status struct {
	AvoidanceActive bool
	Fresh           bool
}

// Snapshot is a point-in-time copy of the store contents, keyed by agent
// id. Map entries exist for every configured agent; freshness is carried
// per value.
type Snapshot struct {
	Agents    []string
	Poses     map[string]Pose
	RawGoals  map[string]Vec3
	SafeGoals map[string]Vec3
	Statuses  map[string]Status
}
