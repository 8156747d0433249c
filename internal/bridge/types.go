package bridge

import "net/url"

// Event identifies a host lifecycle notification.
type Event int

// Lifecycle events.
const (
	EventCreate Event = iota
	EventStart
	EventResume
	EventPause
	EventStop
	EventDestroy
	EventRestart
	EventNewIntent
)

var eventNames = map[Event]string{
	EventCreate:    "create",
	EventStart:     "start",
	EventResume:    "resume",
	EventPause:     "pause",
	EventStop:      "stop",
	EventDestroy:   "destroy",
	EventRestart:   "restart",
	EventNewIntent: "new_intent",
}

// String returns the lowercase event name used in logs and scripts.
func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// ParseEvent maps a name produced by Event.String back to the Event.
func ParseEvent(name string) (Event, bool) {
	for ev, n := range eventNames {
		if n == name {
			return ev, true
		}
	}
	return 0, false
}

// Intent is the part of an OS intent the runtime cares about.
type Intent struct {
	Action string
	Data   *url.URL
}

// usable reports whether the intent carries both an action and data.
func (i *Intent) usable() bool {
	return i != nil && i.Action != "" && i.Data != nil
}

// Host is the platform side of the bridge.
type Host interface {
	// Default runs the platform's own handling of a lifecycle event. It is
	// called before the runtime sees the event.
	Default(ev Event)

	// KeepScreenOn asks the platform to keep the display awake.
	KeepScreenOn()

	// Finish closes the UI. Called from OnCreate when the runtime failed to start.
	Finish()

	// Terminate ends the host process. Called after every OnDestroy.
	Terminate()

	// DefaultPermissionsResult handles a permission result no observer consumed.
	DefaultPermissionsResult(requestCode int, permissions []string, grantResults []int)
}

// State is the bridge readiness, fixed at construction.
type State int

// Readiness states.
const (
	// StateReady means the runtime delivered a valid handle.
	StateReady State = iota
	// StateFailed means the runtime returned without becoming ready.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
