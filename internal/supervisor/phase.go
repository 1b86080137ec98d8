package supervisor

// Phase is the trial lifecycle phase. Exactly one phase is active at any
// instant; PhaseComplete and PhaseTerminate are absorbing.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTakingOff
	PhaseHovering
	PhaseWaitingOnAssignment
	PhaseFlying
	PhaseInFormation
	PhaseGridlock
	PhaseComplete
	PhaseTerminate
)

// String returns the phase name for logs and trial records.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseTakingOff:
		return "TAKING_OFF"
	case PhaseHovering:
		return "HOVERING"
	case PhaseWaitingOnAssignment:
		return "WAITING_ON_ASSIGNMENT"
	case PhaseFlying:
		return "FLYING"
	case PhaseInFormation:
		return "IN_FORMATION"
	case PhaseGridlock:
		return "GRIDLOCK"
	case PhaseComplete:
		return "COMPLETE"
	case PhaseTerminate:
		return "TERMINATE"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the phase is absorbing: once entered, no
// further transition occurs.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseTerminate
}
