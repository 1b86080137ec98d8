package telemetry

import (
	"log"
	"sync"
	"time"
)

// Store holds the latest known telemetry per agent. All slots are
// pre-allocated for the configured agent list at construction; updates
// for unknown agents are dropped with a log line rather than growing the
// store mid-trial.
type Store struct {
	mu     sync.Mutex
	agents []string
	known  map[string]bool

	poses     map[string]Pose
	rawGoals  map[string]Vec3
	safeGoals map[string]Vec3
	statuses  map[string]Status

	// shared assignment event stream (not per-agent)
	assignmentSet     bool
	assignmentPending int
}

// NewStore creates a Store with slots for the given agents. Agent order
// is preserved and carried through to snapshots.
func NewStore(agents []string) *Store {
	s := &Store{
		agents:    append([]string(nil), agents...),
		known:     make(map[string]bool, len(agents)),
		poses:     make(map[string]Pose, len(agents)),
		rawGoals:  make(map[string]Vec3, len(agents)),
		safeGoals: make(map[string]Vec3, len(agents)),
		statuses:  make(map[string]Status, len(agents)),
	}
	for _, a := range agents {
		s.known[a] = true
		s.poses[a] = Pose{}
		s.rawGoals[a] = Vec3{}
		s.safeGoals[a] = Vec3{}
		s.statuses[a] = Status{}
	}
	return s
}

// Agents returns the configured agent ids in order.
func (s *Store) Agents() []string {
	return s.agents
}

// UpdatePose records the latest ground-truth state for an agent.
// Last write wins.
func (s *Store) UpdatePose(agent string, pos Vec3, stamp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known[agent] {
		log.Printf("telemetry: dropping pose for unknown agent %q", agent)
		return
	}
	s.poses[agent] = Pose{Position: pos, Stamp: stamp}
}

// UpdateRawGoal records the latest raw planner velocity goal for an agent.
func (s *Store) UpdateRawGoal(agent string, v Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known[agent] {
		log.Printf("telemetry: dropping raw goal for unknown agent %q", agent)
		return
	}
	s.rawGoals[agent] = v
}

// UpdateSafeGoal records the latest collision-safe velocity goal for an
// agent.
func (s *Store) UpdateSafeGoal(agent string, v Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known[agent] {
		log.Printf("telemetry: dropping safe goal for unknown agent %q", agent)
		return
	}
	s.safeGoals[agent] = v
}

// UpdateStatus records the latest safety status for an agent.
func (s *Store) UpdateStatus(agent string, avoidanceActive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known[agent] {
		log.Printf("telemetry: dropping status for unknown agent %q", agent)
		return
	}
	s.statuses[agent] = Status{AvoidanceActive: avoidanceActive, Fresh: true}
}

// MarkAssignment records one assignment-generated event on the shared
// stream. The event both satisfies the waiting-on-assignment predicate
// and is queued for the trial logger; the tick loop drains the queue.
func (s *Store) MarkAssignment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignmentSet = true
	s.assignmentPending++
}

// AssignmentReceived reports whether an assignment has arrived since the
// flag was last cleared.
func (s *Store) AssignmentReceived() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignmentSet
}

// ClearAssignment resets the assignment-received flag ahead of the next
// formation cycle.
func (s *Store) ClearAssignment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignmentSet = false
}

// TakeAssignmentEvents returns and resets the count of assignment events
// queued since the last call.
func (s *Store) TakeAssignmentEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.assignmentPending
	s.assignmentPending = 0
	return n
}

// AllAgentsFresh reports whether every configured agent has reported at
// least one pose update.
func (s *Store) AllAgentsFresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		if !s.poses[a].Fresh() {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the latest values at call time. The copy is
// consistent per field but may mix fields from different instants.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Agents:    s.agents,
		Poses:     make(map[string]Pose, len(s.agents)),
		RawGoals:  make(map[string]Vec3, len(s.agents)),
		SafeGoals: make(map[string]Vec3, len(s.agents)),
		Statuses:  make(map[string]Status, len(s.agents)),
	}
	for _, a := range s.agents {
		snap.Poses[a] = s.poses[a]
		snap.RawGoals[a] = s.rawGoals[a]
		snap.SafeGoals[a] = s.safeGoals[a]
		snap.Statuses[a] = s.statuses[a]
	}
	return snap
}
