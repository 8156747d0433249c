package script

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/actbridge/actbridge/internal/bridge"
	"github.com/actbridge/actbridge/internal/callback"
	"github.com/actbridge/actbridge/internal/errors"
	"github.com/actbridge/actbridge/internal/logging"
	"github.com/actbridge/actbridge/internal/power"
)

// Runner plays steps against a bridge. It acts as the bridge's UI goroutine,
// so a Runner must not be shared between goroutines.
type Runner struct {
	bridge *bridge.Bridge
	source *power.ManualSource
	out    io.Writer
	logger *logging.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSource sets the power source battery steps publish to.
func WithSource(source *power.ManualSource) RunnerOption {
	return func(r *Runner) {
		r.source = source
	}
}

// WithOutput sets where observer reports are written.
func WithOutput(w io.Writer) RunnerOption {
	return func(r *Runner) {
		if w != nil {
			r.out = w
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a Runner for b.
func NewRunner(b *bridge.Bridge, opts ...RunnerOption) *Runner {
	r := &Runner{
		bridge: b,
		out:    io.Discard,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("script")
	return r
}

// Run executes every step of s in order. It stops at the first failing step
// or when ctx is done.
func (r *Runner) Run(ctx context.Context, s *Script) error {
	r.logger.Info("running script", "name", s.Name, "steps", len(s.Steps))
	for i := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Step(ctx, s.Steps[i]); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, s.Steps[i].Kind(), err)
		}
	}
	r.logger.Info("script finished", "name", s.Name)
	return nil
}

// Step executes a single validated step.
func (r *Runner) Step(ctx context.Context, st Step) error {
	if err := st.validate(); err != nil {
		return errors.NewValidationError("invalid step").WithCause(err)
	}
	r.logger.Debug("step", "kind", st.Kind())

	switch st.Kind() {
	case "event":
		ev, _ := bridge.ParseEvent(st.Event)
		r.lifecycle(ev)
	case "intent":
		r.bridge.OnNewIntent(st.Intent.intent())
	case "permission":
		p := st.Permission
		r.bridge.OnRequestPermissionsResult(p.Code, p.Permissions, p.Grants)
	case "battery":
		if r.source == nil {
			return errors.NewValidationError("battery step requires the manual power source")
		}
		b := st.Battery
		r.source.Publish(power.NewBroadcast(power.Status(b.Status), b.Level, b.Scale))
	case "register_battery":
		status, err := r.bridge.SetBatteryStatusCallback(callback.BatteryStatusFunc(r.reportBattery))
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "battery status: %s\n", status)
	case "register_permission":
		consume := st.RegisterPermission.Consume
		obs := callback.PermissionResultFunc(func(code int, perms []string, grants []int) bool {
			fmt.Fprintf(r.out, "permission result: code=%d permissions=%v grants=%v consumed=%t\n",
				code, perms, grants, consume)
			return consume
		})
		if err := r.bridge.SetPermissionResultCallback(obs); err != nil {
			return err
		}
	case "sleep":
		d, _ := time.ParseDuration(st.Sleep)
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Runner) reportBattery(charging bool, percent float32) {
	fmt.Fprintf(r.out, "battery: %s\n", power.Snapshot{Charging: charging, Percent: percent}.JSON())
}

func (r *Runner) lifecycle(ev bridge.Event) {
	switch ev {
	case bridge.EventCreate:
		r.bridge.OnCreate()
	case bridge.EventStart:
		r.bridge.OnStart()
	case bridge.EventResume:
		r.bridge.OnResume()
	case bridge.EventPause:
		r.bridge.OnPause()
	case bridge.EventStop:
		r.bridge.OnStop()
	case bridge.EventRestart:
		r.bridge.OnRestart()
	case bridge.EventDestroy:
		r.bridge.OnDestroy()
	}
}
