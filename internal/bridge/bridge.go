package bridge

import (
	"context"
	"sync"

	"github.com/actbridge/actbridge/internal/callback"
	"github.com/actbridge/actbridge/internal/errors"
	"github.com/actbridge/actbridge/internal/event"
	"github.com/actbridge/actbridge/internal/handoff"
	"github.com/actbridge/actbridge/internal/logging"
	"github.com/actbridge/actbridge/internal/power"
	"github.com/actbridge/actbridge/internal/runtime"
)

// Bridge owns the runtime handle and forwards lifecycle events to the runtime.
//
// Lifecycle methods must be called from one goroutine at a time. The callback
// setters and accessors are safe from any goroutine.
type Bridge struct {
	rt       runtime.Runtime
	host     Host
	handle   runtime.Handle
	state    State
	registry *callback.Registry
	source   power.Source
	receiver *power.Receiver
	bus      *event.Bus
	logger   *logging.Logger

	mu                sync.Mutex
	phase             Phase
	destroyed         bool
	batterySubscribed bool
	exitCode          int

	exited chan struct{}
}

// New launches rt on its own goroutine and blocks until it delivers a handle
// or returns from Start. If rt never does either, New waits until ctx is done
// and returns a *errors.BridgeError wrapping errors.ErrHandoffInterrupted.
//
// A runtime that returns without signalling readiness is not an error: the
// bridge is returned in StateFailed and forwards nothing.
func New(ctx context.Context, rt runtime.Runtime, host Host, opts ...Option) (*Bridge, error) {
	if rt == nil {
		return nil, errors.NewBridgeError("cannot construct bridge", errors.ErrNilRuntime)
	}
	if host == nil {
		return nil, errors.NewBridgeError("cannot construct bridge", errors.ErrNilHost)
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}
	if cfg.registry == nil {
		cfg.registry = callback.NewRegistry(callback.WithLogger(cfg.logger), callback.WithBus(cfg.bus))
	}
	if cfg.source == nil {
		cfg.source = power.NewManualSource(nil)
	}

	logger := cfg.logger.WithComponent("bridge")
	b := &Bridge{
		rt:       rt,
		host:     host,
		registry: cfg.registry,
		source:   cfg.source,
		receiver: power.NewReceiver(cfg.registry, cfg.logger),
		bus:      cfg.bus,
		logger:   logger,
		phase:    PhaseConstructed,
		exited:   make(chan struct{}),
	}

	ch := runtime.NewHandoff()
	go b.launch(ch)

	h, err := ch.Take(ctx)
	if err != nil {
		logger.Error("gave up waiting for runtime handle", "error", err)
		return nil, errors.NewBridgeError("waiting for runtime handle", err).
			WithPhase(PhaseConstructed.String())
	}

	b.handle = h
	if h.Valid() {
		b.state = StateReady
		logger.Info("runtime ready", "handle", uint64(h))
		b.bus.Publish(event.NewBridgeReadyEvent(uint64(h)))
	} else {
		b.state = StateFailed
		logger.Warn("runtime returned without becoming ready")
		b.bus.Publish(event.NewBridgeFailedEvent())
	}
	return b, nil
}

// launch runs on the launch goroutine for as long as the runtime lives.
func (b *Bridge) launch(ch *runtime.Handoff) {
	code := b.rt.Start(ch)

	b.logger.Info("runtime exited", "exit_code", code)
	b.mu.Lock()
	b.exitCode = code
	b.mu.Unlock()
	close(b.exited)
	b.bus.Publish(event.NewRuntimeExitedEvent(code))

	if err := ch.Put(runtime.Sentinel); err != nil {
		if errors.Is(err, handoff.ErrAlreadyDelivered) {
			b.logger.Debug("handle already delivered, sentinel not needed")
			return
		}
		b.logger.Error("failed to deliver sentinel", "error", err)
	}
}

// State returns the readiness fixed at construction.
func (b *Bridge) State() State {
	return b.state
}

// Handle returns the runtime handle, runtime.Sentinel in StateFailed.
func (b *Bridge) Handle() runtime.Handle {
	return b.handle
}

// Phase returns the last lifecycle phase the host reported.
func (b *Bridge) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Registry returns the callback registry backing the observer setters.
func (b *Bridge) Registry() *callback.Registry {
	return b.registry
}

// Exited is closed once the runtime's Start has returned.
func (b *Bridge) Exited() <-chan struct{} {
	return b.exited
}

// ExitCode returns the runtime's exit code and whether it has exited.
func (b *Bridge) ExitCode() (int, bool) {
	select {
	case <-b.exited:
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.exitCode, true
	default:
		return 0, false
	}
}

// advance records the phase ev moves to, warning when the host skipped or
// reordered steps.
func (b *Bridge) advance(ev Event) {
	to, ok := eventTargets[ev]

	b.mu.Lock()
	from := b.phase
	if ok && !from.Terminal() {
		b.phase = to
	}
	b.mu.Unlock()

	switch {
	case !ok && from.Terminal():
		b.logger.Warn("lifecycle event after destroy", "event", ev.String())
	case ok && !expected(from, to):
		b.logger.Warn("unexpected lifecycle transition",
			"event", ev.String(),
			"from", from.String(),
			"to", to.String(),
		)
	}
}

// forwardable reports whether ev may reach the runtime, recording the drop
// when it may not.
func (b *Bridge) forwardable(ev Event) bool {
	b.mu.Lock()
	destroyed := b.destroyed
	b.mu.Unlock()

	switch {
	case b.state != StateReady:
		b.dropped(ev, "failed")
		return false
	case destroyed:
		b.dropped(ev, "destroyed")
		return false
	default:
		return true
	}
}

func (b *Bridge) dropped(ev Event, reason string) {
	b.logger.Debug("lifecycle not forwarded", "event", ev.String(), "reason", reason)
	b.bus.Publish(event.NewLifecycleDroppedEvent(ev.String(), reason))
}

func (b *Bridge) forwarded(ev Event) {
	b.logger.Debug("lifecycle forwarded", "event", ev.String(), "handle", uint64(b.handle))
	b.bus.Publish(event.NewLifecycleForwardedEvent(ev.String(), uint64(b.handle)))
}

// dispatch runs the host default, then forwards to the runtime if allowed.
func (b *Bridge) dispatch(ev Event, forward func(runtime.Handle)) {
	b.host.Default(ev)
	b.advance(ev)
	if !b.forwardable(ev) {
		return
	}
	forward(b.handle)
	b.forwarded(ev)
}

// OnCreate forwards create. A failed bridge asks the host to finish instead.
// The host is always asked to keep the screen on.
func (b *Bridge) OnCreate() {
	b.host.Default(EventCreate)
	b.advance(EventCreate)

	if b.state == StateFailed {
		b.dropped(EventCreate, "failed")
		b.logger.Info("finishing host, runtime never became ready")
		b.host.Finish()
	} else if b.forwardable(EventCreate) {
		b.rt.OnCreate(b.handle)
		b.forwarded(EventCreate)
	}

	b.host.KeepScreenOn()
}

// OnStart forwards start.
func (b *Bridge) OnStart() { b.dispatch(EventStart, b.rt.OnStart) }

// OnResume forwards resume.
func (b *Bridge) OnResume() { b.dispatch(EventResume, b.rt.OnResume) }

// OnPause forwards pause.
func (b *Bridge) OnPause() { b.dispatch(EventPause, b.rt.OnPause) }

// OnStop forwards stop.
func (b *Bridge) OnStop() { b.dispatch(EventStop, b.rt.OnStop) }

// OnRestart forwards restart.
func (b *Bridge) OnRestart() { b.dispatch(EventRestart, b.rt.OnRestart) }

// OnNewIntent forwards the intent's action and data string. Intents missing
// either are dropped.
func (b *Bridge) OnNewIntent(intent *Intent) {
	b.host.Default(EventNewIntent)
	b.advance(EventNewIntent)

	if !intent.usable() {
		b.dropped(EventNewIntent, "null intent")
		return
	}
	if !b.forwardable(EventNewIntent) {
		return
	}

	data := intent.Data.String()
	b.rt.OnNewIntent(b.handle, intent.Action, data)
	b.logger.Debug("lifecycle forwarded",
		"event", EventNewIntent.String(),
		"handle", uint64(b.handle),
		"action", intent.Action,
		"data", data,
	)
	b.bus.Publish(event.NewIntentForwardedEvent(uint64(b.handle), intent.Action, data))
}

// OnDestroy marks the bridge destroyed, forwards destroy the first time
// only, and then always asks the host to terminate.
func (b *Bridge) OnDestroy() {
	b.host.Default(EventDestroy)
	b.advance(EventDestroy)

	b.mu.Lock()
	first := !b.destroyed
	b.destroyed = true
	b.mu.Unlock()

	switch {
	case b.state != StateReady:
		b.dropped(EventDestroy, "failed")
	case !first:
		b.dropped(EventDestroy, "destroyed")
	default:
		b.rt.OnDestroy(b.handle)
		b.forwarded(EventDestroy)
	}

	b.logger.Info("terminating host", "first_destroy", first)
	b.host.Terminate()
}

// OnRequestPermissionsResult offers a permission result to the registered
// observer and falls back to the host default when it is not consumed.
func (b *Bridge) OnRequestPermissionsResult(requestCode int, permissions []string, grantResults []int) {
	if b.registry.DispatchPermissionResult(requestCode, permissions, grantResults) {
		return
	}
	b.host.DefaultPermissionsResult(requestCode, permissions, grantResults)
}

// SetPermissionResultCallback installs the permission result observer.
func (b *Bridge) SetPermissionResultCallback(obs callback.PermissionResultObserver) error {
	return b.registry.SetPermissionResult(obs)
}

// SetBatteryStatusCallback installs the battery observer, subscribes to the
// power source the first time, and returns the current battery state as
// {"charging": <bool>, "percent": <float>}.
func (b *Bridge) SetBatteryStatusCallback(obs callback.BatteryStatusObserver) (string, error) {
	if err := b.registry.SetBatteryStatus(obs); err != nil {
		return "", err
	}

	b.mu.Lock()
	subscribe := !b.batterySubscribed
	b.batterySubscribed = true
	b.mu.Unlock()

	var fn func(power.Broadcast)
	if subscribe {
		fn = func(bc power.Broadcast) { b.receiver.OnReceive(bc) }
	}
	sticky, err := b.source.Subscribe(fn)
	if err != nil {
		if subscribe {
			b.mu.Lock()
			b.batterySubscribed = false
			b.mu.Unlock()
		}
		b.logger.Warn("battery source unavailable", "error", err)
		return "", err
	}

	status := power.FromBroadcast(sticky).JSON()
	b.logger.Debug("battery status queried", "status", status, "subscribed", subscribe)
	return status, nil
}
