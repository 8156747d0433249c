package power

import (
	"math"
	"sync"
	"testing"

	"github.com/actbridge/actbridge/internal/callback"
	"github.com/actbridge/actbridge/internal/errors"
)

func TestReceiver_OnReceive(t *testing.T) {
	registry := callback.NewRegistry()

	var mu sync.Mutex
	var gotCharging bool
	var gotPercent float32
	calls := 0
	_ = registry.SetBatteryStatus(callback.BatteryStatusFunc(func(charging bool, percent float32) {
		mu.Lock()
		defer mu.Unlock()
		gotCharging, gotPercent = charging, percent
		calls++
	}))

	r := NewReceiver(registry, nil)
	snap := r.OnReceive(NewBroadcast(StatusCharging, 50, 100))

	if snap.JSON() != `{"charging": true, "percent": 0.5}` {
		t.Errorf("snapshot = %s", snap.JSON())
	}
	if calls != 1 || !gotCharging || gotPercent != 0.5 {
		t.Errorf("observer got calls=%d charging=%v percent=%v", calls, gotCharging, gotPercent)
	}
}

func TestReceiver_MalformedBroadcastStillDispatches(t *testing.T) {
	registry := callback.NewRegistry()
	var got float32
	_ = registry.SetBatteryStatus(callback.BatteryStatusFunc(func(_ bool, p float32) { got = p }))

	NewReceiver(registry, nil).OnReceive(Broadcast{"status": "x", "level": 1, "scale": "nope"})

	if !math.IsNaN(float64(got)) {
		t.Errorf("percent = %v, want NaN", got)
	}
}

func TestManualSource(t *testing.T) {
	src := NewManualSource(NewBroadcast(StatusDischarging, 40, 100))

	var received []Broadcast
	sticky, err := src.Subscribe(func(b Broadcast) { received = append(received, b) })
	if err != nil {
		t.Fatalf("Subscribe() = %v", err)
	}
	if FromBroadcast(sticky).JSON() != `{"charging": false, "percent": 0.4}` {
		t.Errorf("sticky = %v", sticky)
	}
	if len(received) != 0 {
		t.Error("Subscribe should not deliver the sticky broadcast to fn")
	}

	src.Publish(NewBroadcast(StatusCharging, 41, 100))
	if len(received) != 1 {
		t.Fatalf("received %d broadcasts, want 1", len(received))
	}
	if st := src.Sticky(); st[ExtraLevel] != 41 {
		t.Errorf("Sticky() = %v, want level 41", st)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	src.Publish(NewBroadcast(StatusFull, 100, 100))
	if len(received) != 1 {
		t.Error("Publish after Close should not deliver")
	}
	if _, err := src.Subscribe(nil); !errors.Is(err, errors.ErrSourceClosed) {
		t.Errorf("Subscribe after Close = %v, want ErrSourceClosed", err)
	}
}

func TestManualSource_NoInitialBroadcast(t *testing.T) {
	sticky, err := NewManualSource(nil).Subscribe(nil)
	if err != nil {
		t.Fatalf("Subscribe() = %v", err)
	}
	if got := FromBroadcast(sticky).JSON(); got != `{"charging": false, "percent": null}` {
		t.Errorf("JSON() = %s", got)
	}
}

func TestManualSource_PublishCopies(t *testing.T) {
	src := NewManualSource(nil)
	b := NewBroadcast(StatusCharging, 10, 100)
	src.Publish(b)
	b[ExtraLevel] = 99

	if src.Sticky()[ExtraLevel] != 10 {
		t.Error("sticky broadcast should not alias the published map")
	}
}
