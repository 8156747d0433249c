package bridge

// Phase is the lifecycle position reached by the host.
type Phase int

// Lifecycle phases.
const (
	PhaseConstructed Phase = iota
	PhaseCreated
	PhaseStarted
	PhaseResumed
	PhasePaused
	PhaseStopped
	PhaseRestarted
	PhaseDestroyed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseConstructed:
		return "constructed"
	case PhaseCreated:
		return "created"
	case PhaseStarted:
		return "started"
	case PhaseResumed:
		return "resumed"
	case PhasePaused:
		return "paused"
	case PhaseStopped:
		return "stopped"
	case PhaseRestarted:
		return "restarted"
	case PhaseDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is expected.
func (p Phase) Terminal() bool {
	return p == PhaseDestroyed
}

// eventTargets is the phase each event moves to. NewIntent has no entry: it
// leaves the phase alone.
var eventTargets = map[Event]Phase{
	EventCreate:  PhaseCreated,
	EventStart:   PhaseStarted,
	EventResume:  PhaseResumed,
	EventPause:   PhasePaused,
	EventStop:    PhaseStopped,
	EventRestart: PhaseRestarted,
	EventDestroy: PhaseDestroyed,
}

// validTransitions lists the phases the host is expected to move to from
// each phase. Anything else is still processed but logged.
var validTransitions = map[Phase][]Phase{
	PhaseConstructed: {PhaseCreated},
	PhaseCreated:     {PhaseStarted, PhaseDestroyed},
	PhaseStarted:     {PhaseResumed, PhaseStopped},
	PhaseResumed:     {PhasePaused},
	PhasePaused:      {PhaseResumed, PhaseStopped},
	PhaseStopped:     {PhaseRestarted, PhaseDestroyed},
	PhaseRestarted:   {PhaseStarted},
	PhaseDestroyed:   {},
}

// expected reports whether moving from one phase to another follows the
// platform lifecycle.
func expected(from, to Phase) bool {
	for _, p := range validTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}
