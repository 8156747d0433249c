package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type identifiers.
const (
	TypeLifecycleForwarded = "lifecycle.forwarded"
	TypeLifecycleDropped   = "lifecycle.dropped"
	TypeBridgeReady        = "bridge.ready"
	TypeBridgeFailed       = "bridge.failed"
	TypeRuntimeExited      = "runtime.exited"
	TypePermissionResult   = "permission.result"
	TypeBatteryStatus      = "battery.status"
	TypeProcessTerminating = "process.terminating"
)

// -----------------------------------------------------------------------------
// Lifecycle Events
// -----------------------------------------------------------------------------

// LifecycleForwardedEvent is emitted after a lifecycle notification has been
// delivered to the runtime.
type LifecycleForwardedEvent struct {
	baseEvent
	Lifecycle string // create, start, resume, pause, stop, restart, destroy, new_intent
	Handle    uint64
	Action    string // new_intent only
	Data      string // new_intent only
}

// NewLifecycleForwardedEvent creates a LifecycleForwardedEvent.
func NewLifecycleForwardedEvent(lifecycle string, handle uint64) LifecycleForwardedEvent {
	return LifecycleForwardedEvent{
		baseEvent: newBaseEvent(TypeLifecycleForwarded),
		Lifecycle: lifecycle,
		Handle:    handle,
	}
}

// NewIntentForwardedEvent creates a LifecycleForwardedEvent for a new intent.
func NewIntentForwardedEvent(handle uint64, action, data string) LifecycleForwardedEvent {
	e := NewLifecycleForwardedEvent("new_intent", handle)
	e.Action = action
	e.Data = data
	return e
}

// LifecycleDroppedEvent is emitted when a lifecycle notification was not
// forwarded to the runtime.
type LifecycleDroppedEvent struct {
	baseEvent
	Lifecycle string
	Reason    string // "failed", "destroyed", "null intent"
}

// NewLifecycleDroppedEvent creates a LifecycleDroppedEvent.
func NewLifecycleDroppedEvent(lifecycle, reason string) LifecycleDroppedEvent {
	return LifecycleDroppedEvent{
		baseEvent: newBaseEvent(TypeLifecycleDropped),
		Lifecycle: lifecycle,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Bridge Events
// -----------------------------------------------------------------------------

// BridgeReadyEvent is emitted when the runtime delivered a valid handle.
type BridgeReadyEvent struct {
	baseEvent
	Handle uint64
}

// NewBridgeReadyEvent creates a BridgeReadyEvent.
func NewBridgeReadyEvent(handle uint64) BridgeReadyEvent {
	return BridgeReadyEvent{
		baseEvent: newBaseEvent(TypeBridgeReady),
		Handle:    handle,
	}
}

// BridgeFailedEvent is emitted when the runtime returned without becoming ready.
type BridgeFailedEvent struct {
	baseEvent
}

// NewBridgeFailedEvent creates a BridgeFailedEvent.
func NewBridgeFailedEvent() BridgeFailedEvent {
	return BridgeFailedEvent{baseEvent: newBaseEvent(TypeBridgeFailed)}
}

// RuntimeExitedEvent is emitted when the runtime's Start returns.
type RuntimeExitedEvent struct {
	baseEvent
	ExitCode int
}

// NewRuntimeExitedEvent creates a RuntimeExitedEvent.
func NewRuntimeExitedEvent(exitCode int) RuntimeExitedEvent {
	return RuntimeExitedEvent{
		baseEvent: newBaseEvent(TypeRuntimeExited),
		ExitCode:  exitCode,
	}
}

// -----------------------------------------------------------------------------
// Callback Events
// -----------------------------------------------------------------------------

// PermissionResultEvent is emitted for every permission result dispatched
// through the callback registry.
type PermissionResultEvent struct {
	baseEvent
	RequestCode int
	Permissions []string
	Grants      []int
	Consumed    bool // an observer handled it
}

// NewPermissionResultEvent creates a PermissionResultEvent.
func NewPermissionResultEvent(requestCode int, permissions []string, grants []int, consumed bool) PermissionResultEvent {
	return PermissionResultEvent{
		baseEvent:   newBaseEvent(TypePermissionResult),
		RequestCode: requestCode,
		Permissions: permissions,
		Grants:      grants,
		Consumed:    consumed,
	}
}

// BatteryStatusEvent is emitted for every battery status dispatched through
// the callback registry.
type BatteryStatusEvent struct {
	baseEvent
	Charging  bool
	Percent   float32
	Delivered bool // an observer was registered
}

// NewBatteryStatusEvent creates a BatteryStatusEvent.
func NewBatteryStatusEvent(charging bool, percent float32, delivered bool) BatteryStatusEvent {
	return BatteryStatusEvent{
		baseEvent: newBaseEvent(TypeBatteryStatus),
		Charging:  charging,
		Percent:   percent,
		Delivered: delivered,
	}
}

// -----------------------------------------------------------------------------
// Process Events
// -----------------------------------------------------------------------------

// ProcessTerminatingEvent is emitted right before the host process exits.
type ProcessTerminatingEvent struct {
	baseEvent
	Reason string
}

// NewProcessTerminatingEvent creates a ProcessTerminatingEvent.
func NewProcessTerminatingEvent(reason string) ProcessTerminatingEvent {
	return ProcessTerminatingEvent{
		baseEvent: newBaseEvent(TypeProcessTerminating),
		Reason:    reason,
	}
}
