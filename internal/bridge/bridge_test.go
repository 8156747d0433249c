package bridge_test

import (
	"context"
	"math"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/actbridge/actbridge/internal/bridge"
	"github.com/actbridge/actbridge/internal/callback"
	"github.com/actbridge/actbridge/internal/errors"
	"github.com/actbridge/actbridge/internal/event"
	"github.com/actbridge/actbridge/internal/power"
	"github.com/actbridge/actbridge/internal/runtime"
	"github.com/actbridge/actbridge/internal/runtime/sim"
)

// --- Mock implementations ------------------------------------------------

type mockHost struct {
	mu          sync.Mutex
	calls       []string
	permissions []int // request codes that reached the default handler
}

func (h *mockHost) record(call string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
}

func (h *mockHost) Default(ev bridge.Event) { h.record("default:" + ev.String()) }
func (h *mockHost) KeepScreenOn()           { h.record("keep_screen_on") }
func (h *mockHost) Finish()                 { h.record("finish") }
func (h *mockHost) Terminate()              { h.record("terminate") }

func (h *mockHost) DefaultPermissionsResult(code int, _ []string, _ []int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.permissions = append(h.permissions, code)
}

func (h *mockHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

func (h *mockHost) Count(call string) int {
	n := 0
	for _, c := range h.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (h *mockHost) Permissions() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, len(h.permissions))
	copy(out, h.permissions)
	return out
}

// hangingRuntime never signals readiness and never returns until released.
type hangingRuntime struct {
	*sim.Runtime
	release chan struct{}
}

func (r *hangingRuntime) Start(*runtime.Handoff) int {
	<-r.release
	return 0
}

// doubleSignalRuntime signals readiness and then tries again with another handle.
type doubleSignalRuntime struct {
	*sim.Runtime
	second chan error
}

func (r *doubleSignalRuntime) Start(ch *runtime.Handoff) int {
	_ = runtime.ContinueWith(ch, 1)
	r.second <- runtime.ContinueWith(ch, 2)
	return 0
}

// --- Helpers -------------------------------------------------------------

func newBridge(t *testing.T, rt runtime.Runtime, host bridge.Host, opts ...bridge.Option) *bridge.Bridge {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := bridge.New(ctx, rt, host, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func runFullLifecycle(b *bridge.Bridge) {
	b.OnCreate()
	b.OnStart()
	b.OnResume()
	b.OnPause()
	b.OnStop()
	b.OnRestart()
	b.OnStart()
	b.OnResume()
	b.OnPause()
	b.OnStop()
	b.OnDestroy()
}

// --- Tests ---------------------------------------------------------------

func TestNew_NilArguments(t *testing.T) {
	if _, err := bridge.New(context.Background(), nil, &mockHost{}); !errors.Is(err, errors.ErrNilRuntime) {
		t.Errorf("New(nil runtime) = %v, want ErrNilRuntime", err)
	}
	if _, err := bridge.New(context.Background(), sim.New(), nil); !errors.Is(err, errors.ErrNilHost) {
		t.Errorf("New(nil host) = %v, want ErrNilHost", err)
	}
}

func TestBridge_ReadyForwardsInOrder(t *testing.T) {
	rt := sim.New(sim.WithHandle(0xbeef))
	host := &mockHost{}
	b := newBridge(t, rt, host)

	if b.State() != bridge.StateReady {
		t.Fatalf("State() = %v, want ready", b.State())
	}
	if b.Handle() != 0xbeef {
		t.Errorf("Handle() = %x, want beef", b.Handle())
	}
	if len(rt.Calls()) != 0 {
		t.Fatalf("runtime saw %v before any lifecycle call", rt.Events())
	}

	runFullLifecycle(b)

	want := "create,start,resume,pause,stop,restart,start,resume,pause,stop,destroy"
	if got := strings.Join(rt.Events(), ","); got != want {
		t.Errorf("runtime events = %s, want %s", got, want)
	}
	for _, c := range rt.Calls() {
		if c.Handle != 0xbeef {
			t.Errorf("%s forwarded with handle %x, want beef", c.Event, c.Handle)
		}
	}
	if b.Phase() != bridge.PhaseDestroyed {
		t.Errorf("Phase() = %v, want destroyed", b.Phase())
	}
	if host.Count("terminate") != 1 {
		t.Errorf("terminate called %d times, want 1", host.Count("terminate"))
	}
	if host.Count("finish") != 0 {
		t.Error("finish should not be called on a ready bridge")
	}
}

func TestBridge_HostDefaultRunsFirst(t *testing.T) {
	host := &mockHost{}
	b := newBridge(t, sim.New(), host)

	b.OnCreate()
	b.OnStart()

	want := "default:create,keep_screen_on,default:start"
	if got := strings.Join(host.Calls(), ","); got != want {
		t.Errorf("host calls = %s, want %s", got, want)
	}
}

func TestBridge_FailedStartForwardsNothing(t *testing.T) {
	rt := sim.New(sim.WithFailStart(true), sim.WithExitCode(2))
	host := &mockHost{}
	bus := event.NewBus()

	var mu sync.Mutex
	var types []string
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.EventType())
	})

	b := newBridge(t, rt, host, bridge.WithBus(bus))

	if b.State() != bridge.StateFailed {
		t.Fatalf("State() = %v, want failed", b.State())
	}
	if b.Handle() != runtime.Sentinel {
		t.Errorf("Handle() = %x, want sentinel", b.Handle())
	}

	runFullLifecycle(b)
	b.OnNewIntent(&bridge.Intent{Action: "VIEW", Data: mustURL(t, "app://x")})

	if len(rt.Calls()) != 0 {
		t.Errorf("failed runtime received %v", rt.Events())
	}
	if host.Count("finish") != 1 {
		t.Errorf("finish called %d times, want 1", host.Count("finish"))
	}
	if host.Count("keep_screen_on") != 1 {
		t.Errorf("keep_screen_on called %d times, want 1", host.Count("keep_screen_on"))
	}
	if host.Count("terminate") != 1 {
		t.Errorf("terminate called %d times, want 1", host.Count("terminate"))
	}

	select {
	case <-b.Exited():
	case <-time.After(time.Second):
		t.Fatal("runtime exit not observed")
	}
	if code, ok := b.ExitCode(); !ok || code != 2 {
		t.Errorf("ExitCode() = %d, %v; want 2, true", code, ok)
	}

	mu.Lock()
	defer mu.Unlock()
	joined := strings.Join(types, ",")
	if !strings.Contains(joined, event.TypeBridgeFailed) || !strings.Contains(joined, event.TypeRuntimeExited) {
		t.Errorf("events = %s, want bridge.failed and runtime.exited", joined)
	}
	if strings.Contains(joined, event.TypeLifecycleForwarded) {
		t.Errorf("events = %s, nothing should be forwarded", joined)
	}
}

func TestBridge_CreateOrderOnFailure(t *testing.T) {
	host := &mockHost{}
	b := newBridge(t, sim.New(sim.WithFailStart(true)), host)

	b.OnCreate()

	want := "default:create,finish,keep_screen_on"
	if got := strings.Join(host.Calls(), ","); got != want {
		t.Errorf("host calls = %s, want %s", got, want)
	}
}

func TestBridge_NewIntent(t *testing.T) {
	data := mustURL(t, "app://open/item?id=7")

	tests := []struct {
		name        string
		intent      *bridge.Intent
		wantForward bool
	}{
		{"action and data", &bridge.Intent{Action: "VIEW", Data: data}, true},
		{"missing action", &bridge.Intent{Data: data}, false},
		{"missing data", &bridge.Intent{Action: "VIEW"}, false},
		{"missing both", &bridge.Intent{}, false},
		{"nil intent", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := sim.New()
			host := &mockHost{}
			b := newBridge(t, rt, host)

			b.OnNewIntent(tt.intent)

			calls := rt.Calls()
			if !tt.wantForward {
				if len(calls) != 0 {
					t.Errorf("runtime received %v, want nothing", calls)
				}
			} else {
				if len(calls) != 1 {
					t.Fatalf("runtime received %v, want one intent", calls)
				}
				if calls[0].Action != "VIEW" || calls[0].Data != data.String() {
					t.Errorf("intent = %+v", calls[0])
				}
				if calls[0].Handle != sim.DefaultHandle {
					t.Errorf("handle = %x, want %x", calls[0].Handle, sim.DefaultHandle)
				}
			}
			if host.Count("default:new_intent") != 1 {
				t.Error("host default should run for every intent")
			}
			rt.OnDestroy(0)
		})
	}
}

func TestBridge_NewIntentDoesNotChangePhase(t *testing.T) {
	rt := sim.New()
	b := newBridge(t, rt, &mockHost{})
	defer rt.OnDestroy(0)

	b.OnCreate()
	b.OnStart()
	b.OnResume()
	b.OnNewIntent(&bridge.Intent{Action: "VIEW", Data: mustURL(t, "app://x")})

	if b.Phase() != bridge.PhaseResumed {
		t.Errorf("Phase() = %v, want resumed", b.Phase())
	}
}

func TestBridge_DestroyForwardsOnce(t *testing.T) {
	rt := sim.New()
	host := &mockHost{}
	b := newBridge(t, rt, host)

	b.OnCreate()
	b.OnDestroy()
	b.OnDestroy()
	b.OnStart()
	b.OnNewIntent(&bridge.Intent{Action: "VIEW", Data: mustURL(t, "app://late")})

	if got := strings.Join(rt.Events(), ","); got != "create,destroy" {
		t.Errorf("runtime events = %s, want create,destroy", got)
	}
	if host.Count("terminate") != 2 {
		t.Errorf("terminate called %d times, want 2", host.Count("terminate"))
	}
	if b.Phase() != bridge.PhaseDestroyed {
		t.Errorf("Phase() = %v, want destroyed", b.Phase())
	}

	select {
	case <-b.Exited():
	case <-time.After(time.Second):
		t.Fatal("runtime did not exit after destroy")
	}
}

func TestBridge_UnexpectedOrderStillForwards(t *testing.T) {
	rt := sim.New()
	b := newBridge(t, rt, &mockHost{})

	b.OnResume()
	b.OnCreate()
	b.OnStop()
	b.OnDestroy()

	if got := strings.Join(rt.Events(), ","); got != "resume,create,stop,destroy" {
		t.Errorf("runtime events = %s", got)
	}
}

func TestBridge_HandoffInterrupted(t *testing.T) {
	rt := &hangingRuntime{Runtime: sim.New(), release: make(chan struct{})}
	defer close(rt.release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	b, err := bridge.New(ctx, rt, &mockHost{})
	if b != nil {
		t.Error("New should not return a bridge on interruption")
	}
	if !errors.Is(err, errors.ErrHandoffInterrupted) {
		t.Fatalf("New() = %v, want ErrHandoffInterrupted", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("New() = %v, want wrapped DeadlineExceeded", err)
	}
	var bridgeErr *errors.BridgeError
	if !errors.As(err, &bridgeErr) {
		t.Errorf("New() = %T, want *BridgeError", err)
	}
}

func TestBridge_SecondSignalIsRejected(t *testing.T) {
	rt := &doubleSignalRuntime{Runtime: sim.New(), second: make(chan error, 1)}
	b := newBridge(t, rt, &mockHost{})

	if b.Handle() != 1 {
		t.Errorf("Handle() = %d, want first handle 1", b.Handle())
	}
	select {
	case err := <-rt.second:
		if err == nil {
			t.Error("second ContinueWith should fail")
		}
	case <-time.After(time.Second):
		t.Fatal("second ContinueWith blocked")
	}
	select {
	case <-b.Exited():
	case <-time.After(time.Second):
		t.Fatal("launch goroutine did not finish")
	}
}

func TestBridge_ForwardedEvents(t *testing.T) {
	bus := event.NewBus()
	var mu sync.Mutex
	var forwarded []string
	bus.Subscribe(event.TypeLifecycleForwarded, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		forwarded = append(forwarded, e.(event.LifecycleForwardedEvent).Lifecycle)
	})
	var dropped []string
	bus.Subscribe(event.TypeLifecycleDropped, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		dropped = append(dropped, e.(event.LifecycleDroppedEvent).Reason)
	})

	b := newBridge(t, sim.New(), &mockHost{}, bridge.WithBus(bus))
	b.OnCreate()
	b.OnNewIntent(nil)
	b.OnDestroy()
	b.OnDestroy()

	mu.Lock()
	defer mu.Unlock()
	if got := strings.Join(forwarded, ","); got != "create,destroy" {
		t.Errorf("forwarded = %s", got)
	}
	if got := strings.Join(dropped, ","); got != "null intent,destroyed" {
		t.Errorf("dropped = %s", got)
	}
}

func TestBridge_PermissionResult(t *testing.T) {
	t.Run("empty slot falls back to host", func(t *testing.T) {
		host := &mockHost{}
		b := newBridge(t, sim.New(), host)

		b.OnRequestPermissionsResult(11, []string{"camera"}, []int{0})

		if got := host.Permissions(); len(got) != 1 || got[0] != 11 {
			t.Errorf("host permissions = %v, want [11]", got)
		}
	})

	t.Run("consumed result skips host", func(t *testing.T) {
		host := &mockHost{}
		b := newBridge(t, sim.New(), host)

		var got []string
		err := b.SetPermissionResultCallback(callback.PermissionResultFunc(func(code int, perms []string, grants []int) bool {
			got = perms
			return true
		}))
		if err != nil {
			t.Fatalf("SetPermissionResultCallback() = %v", err)
		}

		b.OnRequestPermissionsResult(12, []string{"mic"}, []int{0})

		if len(got) != 1 || got[0] != "mic" {
			t.Errorf("observer got %v", got)
		}
		if len(host.Permissions()) != 0 {
			t.Error("host default should not run for a consumed result")
		}
	})

	t.Run("unconsumed result reaches host", func(t *testing.T) {
		host := &mockHost{}
		b := newBridge(t, sim.New(), host)
		_ = b.SetPermissionResultCallback(callback.PermissionResultFunc(func(int, []string, []int) bool {
			return false
		}))

		b.OnRequestPermissionsResult(13, nil, nil)

		if got := host.Permissions(); len(got) != 1 || got[0] != 13 {
			t.Errorf("host permissions = %v, want [13]", got)
		}
	})

	t.Run("nil observer rejected", func(t *testing.T) {
		b := newBridge(t, sim.New(), &mockHost{})
		if err := b.SetPermissionResultCallback(nil); !errors.Is(err, errors.ErrNilObserver) {
			t.Errorf("SetPermissionResultCallback(nil) = %v, want ErrNilObserver", err)
		}
	})
}

func TestBridge_BatteryStatusCallback(t *testing.T) {
	src := power.NewManualSource(power.NewBroadcast(power.StatusCharging, 50, 100))
	b := newBridge(t, sim.New(), &mockHost{}, bridge.WithPowerSource(src))

	var mu sync.Mutex
	var percents []float32
	obs := callback.BatteryStatusFunc(func(charging bool, percent float32) {
		mu.Lock()
		defer mu.Unlock()
		percents = append(percents, percent)
	})

	status, err := b.SetBatteryStatusCallback(obs)
	if err != nil {
		t.Fatalf("SetBatteryStatusCallback() = %v", err)
	}
	if status != `{"charging": true, "percent": 0.5}` {
		t.Errorf("status = %s", status)
	}

	mu.Lock()
	if len(percents) != 0 {
		t.Error("registration should not dispatch the sticky broadcast")
	}
	mu.Unlock()

	src.Publish(power.NewBroadcast(power.StatusDischarging, 25, 100))

	// Registering again re-queries without subscribing twice.
	status, err = b.SetBatteryStatusCallback(obs)
	if err != nil {
		t.Fatalf("second SetBatteryStatusCallback() = %v", err)
	}
	if status != `{"charging": false, "percent": 0.25}` {
		t.Errorf("second status = %s", status)
	}
	src.Publish(power.NewBroadcast(power.StatusFull, 100, 100))

	mu.Lock()
	defer mu.Unlock()
	if len(percents) != 2 || percents[0] != 0.25 || percents[1] != 1 {
		t.Errorf("observer percents = %v, want [0.25 1]", percents)
	}
}

func TestBridge_BatteryStatusNaN(t *testing.T) {
	src := power.NewManualSource(power.NewBroadcast(power.StatusDischarging, 10, 0))
	b := newBridge(t, sim.New(), &mockHost{}, bridge.WithPowerSource(src))

	var got float32
	status, err := b.SetBatteryStatusCallback(callback.BatteryStatusFunc(func(_ bool, p float32) { got = p }))
	if err != nil {
		t.Fatalf("SetBatteryStatusCallback() = %v", err)
	}
	if status != `{"charging": false, "percent": null}` {
		t.Errorf("status = %s", status)
	}

	src.Publish(power.NewBroadcast(power.StatusDischarging, 10, -1))
	if !math.IsNaN(float64(got)) {
		t.Errorf("percent = %v, want NaN", got)
	}
}

func TestBridge_BatteryStatusFailures(t *testing.T) {
	t.Run("nil observer keeps previous", func(t *testing.T) {
		src := power.NewManualSource(nil)
		b := newBridge(t, sim.New(), &mockHost{}, bridge.WithPowerSource(src))

		calls := 0
		if _, err := b.SetBatteryStatusCallback(callback.BatteryStatusFunc(func(bool, float32) { calls++ })); err != nil {
			t.Fatalf("SetBatteryStatusCallback() = %v", err)
		}
		if _, err := b.SetBatteryStatusCallback(nil); !errors.Is(err, errors.ErrNilObserver) {
			t.Fatalf("SetBatteryStatusCallback(nil) = %v, want ErrNilObserver", err)
		}

		src.Publish(power.NewBroadcast(power.StatusCharging, 1, 2))
		if calls != 1 {
			t.Errorf("previous observer calls = %d, want 1", calls)
		}
	})

	t.Run("closed source", func(t *testing.T) {
		src := power.NewManualSource(nil)
		_ = src.Close()
		b := newBridge(t, sim.New(), &mockHost{}, bridge.WithPowerSource(src))

		_, err := b.SetBatteryStatusCallback(callback.BatteryStatusFunc(func(bool, float32) {}))
		if !errors.Is(err, errors.ErrSourceClosed) {
			t.Errorf("SetBatteryStatusCallback() = %v, want ErrSourceClosed", err)
		}
	})
}

func TestBridge_SharedRegistry(t *testing.T) {
	registry := callback.NewRegistry()
	b := newBridge(t, sim.New(), &mockHost{}, bridge.WithRegistry(registry))

	if b.Registry() != registry {
		t.Fatal("Registry() should return the injected registry")
	}
	_ = b.SetPermissionResultCallback(callback.PermissionResultFunc(func(int, []string, []int) bool { return true }))
	if !registry.Registered(callback.SlotPermissionResult) {
		t.Error("observer should land in the shared registry")
	}
}

func TestEventAndPhaseNames(t *testing.T) {
	for _, name := range []string{"create", "start", "resume", "pause", "stop", "destroy", "restart", "new_intent"} {
		ev, ok := bridge.ParseEvent(name)
		if !ok || ev.String() != name {
			t.Errorf("ParseEvent(%q) = %v, %v", name, ev, ok)
		}
	}
	if _, ok := bridge.ParseEvent("suspend"); ok {
		t.Error("ParseEvent should reject unknown names")
	}
	if bridge.PhaseRestarted.String() != "restarted" || bridge.StateFailed.String() != "failed" {
		t.Error("unexpected names")
	}
	if !bridge.PhaseDestroyed.Terminal() || bridge.PhaseStopped.Terminal() {
		t.Error("only destroyed is terminal")
	}
}
