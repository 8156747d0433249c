// Package callback routes asynchronous host events to observers that the
// runtime registers after the bridge is already running.
//
// A Registry has one slot per event kind. Each slot holds at most one
// observer; registering again replaces the occupant. There is no
// unregistration. Dispatch with an empty slot is a no-op.
//
// Observers run on the dispatching goroutine, outside the registry lock, so
// an observer may re-register itself (or another observer) from inside its
// own callback. A panicking observer is not recovered: the panic reaches the
// caller of the Dispatch method.
package callback

import (
	"sync"

	"github.com/actbridge/actbridge/internal/errors"
	"github.com/actbridge/actbridge/internal/event"
	"github.com/actbridge/actbridge/internal/logging"
)

// Slot names a registry slot.
type Slot string

// Slot constants.
const (
	SlotPermissionResult Slot = "permissionResult"
	SlotBatteryStatus    Slot = "batteryStatus"
)

// Slots returns every known slot.
func Slots() []Slot {
	return []Slot{SlotPermissionResult, SlotBatteryStatus}
}

// PermissionResultObserver receives the result of a runtime permission request.
// It returns true when it handled the result; false lets the host apply its
// default handling.
type PermissionResultObserver interface {
	OnRequestPermissionsResult(requestCode int, permissions []string, grantResults []int) bool
}

// PermissionResultFunc adapts a function to PermissionResultObserver.
type PermissionResultFunc func(requestCode int, permissions []string, grantResults []int) bool

// OnRequestPermissionsResult calls f.
func (f PermissionResultFunc) OnRequestPermissionsResult(requestCode int, permissions []string, grantResults []int) bool {
	return f(requestCode, permissions, grantResults)
}

// BatteryStatusObserver receives power status changes.
type BatteryStatusObserver interface {
	OnBatteryStatus(charging bool, percent float32)
}

// BatteryStatusFunc adapts a function to BatteryStatusObserver.
type BatteryStatusFunc func(charging bool, percent float32)

// OnBatteryStatus calls f.
func (f BatteryStatusFunc) OnBatteryStatus(charging bool, percent float32) {
	f(charging, percent)
}

// Registry holds the late-bound observers. The zero value is not usable;
// construct with NewRegistry.
type Registry struct {
	mu               sync.RWMutex
	permissionResult PermissionResultObserver
	batteryStatus    BatteryStatusObserver

	bus    *event.Bus
	logger *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBus publishes a PermissionResultEvent or BatteryStatusEvent for every dispatch.
func WithBus(bus *event.Bus) Option {
	return func(r *Registry) {
		r.bus = bus
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("callback-registry")
	return r
}

// SetPermissionResult installs obs in the permission slot, replacing any
// previous observer. A nil observer is rejected and the slot is left as is.
func (r *Registry) SetPermissionResult(obs PermissionResultObserver) error {
	if isNilObserver(obs) {
		return r.rejected(SlotPermissionResult)
	}

	r.mu.Lock()
	replaced := r.permissionResult != nil
	r.permissionResult = obs
	r.mu.Unlock()

	r.logger.Info("observer registered", "slot", string(SlotPermissionResult), "replaced", replaced)
	return nil
}

// SetBatteryStatus installs obs in the battery slot, replacing any previous
// observer. A nil observer is rejected and the slot is left as is.
func (r *Registry) SetBatteryStatus(obs BatteryStatusObserver) error {
	if isNilObserver(obs) {
		return r.rejected(SlotBatteryStatus)
	}

	r.mu.Lock()
	replaced := r.batteryStatus != nil
	r.batteryStatus = obs
	r.mu.Unlock()

	r.logger.Info("observer registered", "slot", string(SlotBatteryStatus), "replaced", replaced)
	return nil
}

func (r *Registry) rejected(slot Slot) error {
	r.logger.Warn("observer rejected", "slot", string(slot), "error", errors.ErrNilObserver)
	return errors.NewRegistrationError("cannot register observer", errors.ErrNilObserver).
		WithSlot(string(slot))
}

// Registered reports whether slot currently has an observer.
func (r *Registry) Registered(slot Slot) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch slot {
	case SlotPermissionResult:
		return r.permissionResult != nil
	case SlotBatteryStatus:
		return r.batteryStatus != nil
	default:
		return false
	}
}

// DispatchPermissionResult forwards a permission result to the registered
// observer and returns whether it consumed the result. An empty slot yields
// false.
func (r *Registry) DispatchPermissionResult(requestCode int, permissions []string, grantResults []int) bool {
	r.mu.RLock()
	obs := r.permissionResult
	r.mu.RUnlock()

	consumed := false
	if obs != nil {
		consumed = obs.OnRequestPermissionsResult(requestCode, permissions, grantResults)
	}

	r.logger.Debug("permission result dispatched",
		"request_code", requestCode,
		"permissions", len(permissions),
		"registered", obs != nil,
		"consumed", consumed,
	)
	r.bus.Publish(event.NewPermissionResultEvent(requestCode, permissions, grantResults, consumed))
	return consumed
}

// DispatchBatteryStatus forwards a power status to the registered observer
// and reports whether one was registered.
func (r *Registry) DispatchBatteryStatus(charging bool, percent float32) bool {
	r.mu.RLock()
	obs := r.batteryStatus
	r.mu.RUnlock()

	if obs != nil {
		obs.OnBatteryStatus(charging, percent)
	}

	r.logger.Debug("battery status dispatched",
		"charging", charging,
		"percent", percent,
		"delivered", obs != nil,
	)
	r.bus.Publish(event.NewBatteryStatusEvent(charging, percent, obs != nil))
	return obs != nil
}

// isNilObserver catches both a nil interface and a typed nil func adapter.
func isNilObserver(obs any) bool {
	switch o := obs.(type) {
	case nil:
		return true
	case PermissionResultFunc:
		return o == nil
	case BatteryStatusFunc:
		return o == nil
	default:
		return false
	}
}
