// Package sim provides an in-process runtime that records every lifecycle
// notification it receives. It backs the "sim" runtime kind and the bridge
// tests.
package sim

import (
	"sync"
	"time"

	"github.com/actbridge/actbridge/internal/logging"
	"github.com/actbridge/actbridge/internal/runtime"
)

// DefaultHandle is the handle a simulated runtime reports when ready.
const DefaultHandle runtime.Handle = 0x5eed

// Call is one recorded lifecycle notification.
type Call struct {
	Event  string
	Handle runtime.Handle
	Action string
	Data   string
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithReadyAfter delays readiness.
func WithReadyAfter(d time.Duration) Option {
	return func(r *Runtime) { r.readyAfter = d }
}

// WithFailStart makes Start return without signalling readiness.
func WithFailStart(fail bool) Option {
	return func(r *Runtime) { r.failStart = fail }
}

// WithExitCode sets the value Start returns.
func WithExitCode(code int) Option {
	return func(r *Runtime) { r.exitCode = code }
}

// WithHandle overrides DefaultHandle.
func WithHandle(h runtime.Handle) Option {
	return func(r *Runtime) { r.handle = h }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Runtime is a simulated runtime. Start blocks until OnDestroy is received.
type Runtime struct {
	readyAfter time.Duration
	failStart  bool
	exitCode   int
	handle     runtime.Handle
	logger     *logging.Logger

	mu          sync.Mutex
	calls       []Call
	destroyed   chan struct{}
	destroyOnce sync.Once
	exited      chan struct{}
}

var _ runtime.Runtime = (*Runtime)(nil)

// New creates a simulated runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		handle:    DefaultHandle,
		logger:    logging.NopLogger(),
		destroyed: make(chan struct{}),
		exited:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("runtime-sim")
	return r
}

// Start implements runtime.Runtime.
func (r *Runtime) Start(ch *runtime.Handoff) int {
	defer close(r.exited)

	if r.readyAfter > 0 {
		time.Sleep(r.readyAfter)
	}
	if r.failStart {
		r.logger.Info("simulated start failure", "exit_code", r.exitCode)
		return r.exitCode
	}

	if err := runtime.ContinueWith(ch, r.handle); err != nil {
		r.logger.Error("could not signal readiness", "error", err)
		return r.exitCode
	}
	r.logger.Info("ready", "handle", uint64(r.handle))

	<-r.destroyed
	return r.exitCode
}

// Exited is closed once Start has returned.
func (r *Runtime) Exited() <-chan struct{} {
	return r.exited
}

func (r *Runtime) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	r.logger.Debug("lifecycle", "event", c.Event, "handle", uint64(c.Handle))
}

// Calls returns a copy of every notification received so far.
func (r *Runtime) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Events returns just the event names of Calls.
func (r *Runtime) Events() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Event
	}
	return out
}

func (r *Runtime) OnCreate(h runtime.Handle)  { r.record(Call{Event: "create", Handle: h}) }
func (r *Runtime) OnStart(h runtime.Handle)   { r.record(Call{Event: "start", Handle: h}) }
func (r *Runtime) OnResume(h runtime.Handle)  { r.record(Call{Event: "resume", Handle: h}) }
func (r *Runtime) OnPause(h runtime.Handle)   { r.record(Call{Event: "pause", Handle: h}) }
func (r *Runtime) OnStop(h runtime.Handle)    { r.record(Call{Event: "stop", Handle: h}) }
func (r *Runtime) OnRestart(h runtime.Handle) { r.record(Call{Event: "restart", Handle: h}) }

// OnDestroy records the call and lets Start return.
func (r *Runtime) OnDestroy(h runtime.Handle) {
	r.record(Call{Event: "destroy", Handle: h})
	r.destroyOnce.Do(func() { close(r.destroyed) })
}

// OnNewIntent records the intent.
func (r *Runtime) OnNewIntent(h runtime.Handle, action, data string) {
	r.record(Call{Event: "new_intent", Handle: h, Action: action, Data: data})
}
