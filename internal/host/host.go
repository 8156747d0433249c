// Package host implements bridge.Host for a terminal process.
//
// There is no platform UI underneath, so the default lifecycle handling is a
// log line, keeping the screen on is recorded as a flag, and Finish and
// Terminate end the process after running registered terminate hooks.
package host

import (
	"os"
	"sync"

	"github.com/actbridge/actbridge/internal/bridge"
	"github.com/actbridge/actbridge/internal/event"
	"github.com/actbridge/actbridge/internal/logging"
)

// ExitFunc ends the process. os.Exit in production.
type ExitFunc func(code int)

// Option configures a ProcessHost.
type Option func(*ProcessHost)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(h *ProcessHost) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithBus publishes a ProcessTerminatingEvent before exiting.
func WithBus(bus *event.Bus) Option {
	return func(h *ProcessHost) {
		h.bus = bus
	}
}

// WithExit replaces os.Exit.
func WithExit(exit ExitFunc) Option {
	return func(h *ProcessHost) {
		if exit != nil {
			h.exit = exit
		}
	}
}

// ProcessHost is the bridge.Host of the actbridge CLI.
type ProcessHost struct {
	logger *logging.Logger
	bus    *event.Bus
	exit   ExitFunc

	mu           sync.Mutex
	hooks        []func()
	screenOn     bool
	finished     bool
	terminations int
	exitCode     int
}

var _ bridge.Host = (*ProcessHost)(nil)

// New creates a ProcessHost.
func New(opts ...Option) *ProcessHost {
	h := &ProcessHost{
		logger: logging.NopLogger(),
		exit:   os.Exit,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.WithComponent("host")
	return h
}

// OnTerminate registers fn to run before the process exits. Hooks run in
// reverse registration order, like deferred calls.
func (h *ProcessHost) OnTerminate(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, fn)
}

// Default implements bridge.Host.
func (h *ProcessHost) Default(ev bridge.Event) {
	h.logger.Debug("host default handling", "event", ev.String())
}

// KeepScreenOn implements bridge.Host.
func (h *ProcessHost) KeepScreenOn() {
	h.mu.Lock()
	h.screenOn = true
	h.mu.Unlock()
	h.logger.Debug("keep screen on requested")
}

// ScreenOn reports whether KeepScreenOn was called.
func (h *ProcessHost) ScreenOn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.screenOn
}

// Finish implements bridge.Host. With no window to close, finishing the UI
// ends the process with status 1.
func (h *ProcessHost) Finish() {
	h.mu.Lock()
	h.finished = true
	h.mu.Unlock()
	h.logger.Warn("finishing: runtime is not available")
	h.shutdown("finish", 1)
}

// Finished reports whether Finish was called.
func (h *ProcessHost) Finished() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finished
}

// SetExitCode sets the status Terminate exits with. It defaults to 0.
func (h *ProcessHost) SetExitCode(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exitCode = code
}

// Terminate implements bridge.Host.
func (h *ProcessHost) Terminate() {
	h.mu.Lock()
	h.terminations++
	code := h.exitCode
	h.mu.Unlock()
	h.shutdown("destroy", code)
}

// Terminations returns how many times Terminate was called.
func (h *ProcessHost) Terminations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminations
}

// DefaultPermissionsResult implements bridge.Host.
func (h *ProcessHost) DefaultPermissionsResult(requestCode int, permissions []string, grantResults []int) {
	h.logger.Info("permission result not handled by runtime",
		"request_code", requestCode,
		"permissions", permissions,
		"grants", grantResults,
	)
}

func (h *ProcessHost) shutdown(reason string, code int) {
	h.mu.Lock()
	hooks := h.hooks
	h.hooks = nil
	h.mu.Unlock()

	h.logger.Info("process terminating", "reason", reason, "exit_code", code)
	h.bus.Publish(event.NewProcessTerminatingEvent(reason))

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
	h.exit(code)
}
