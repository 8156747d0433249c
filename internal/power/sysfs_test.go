package power

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/actbridge/actbridge/internal/errors"
	"github.com/actbridge/actbridge/internal/testutil"
)

const testRoot = "/sys/class/power_supply"

func newBatteryFs(t *testing.T, status, capacity string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	testutil.WriteBattery(t, fs, testRoot, status, capacity)
	return fs
}

func TestSysfsSource_Read(t *testing.T) {
	src := NewSysfsSource(WithFs(newBatteryFs(t, "Charging", "50")), WithRoot(testRoot))

	b, err := src.Read()
	if err != nil {
		t.Fatalf("Read() = %v", err)
	}
	if got := FromBroadcast(b).JSON(); got != `{"charging": true, "percent": 0.5}` {
		t.Errorf("JSON() = %s", got)
	}
}

func TestSysfsSource_NoBattery(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteSupply(t, fs, testRoot, "AC", "Mains", nil)
	src := NewSysfsSource(WithFs(fs), WithRoot(testRoot))

	b, err := src.Read()
	if !errors.Is(err, errors.ErrNoBattery) {
		t.Fatalf("Read() = %v, want ErrNoBattery", err)
	}
	snap := FromBroadcast(b)
	if snap.Charging || snap.JSON() != `{"charging": false, "percent": null}` {
		t.Errorf("snapshot = %s", snap.JSON())
	}

	// Subscribe tolerates a missing battery.
	if _, err := src.Subscribe(nil); err != nil {
		t.Errorf("Subscribe() = %v", err)
	}
	_ = src.Close()
}

func TestSysfsSource_MissingRoot(t *testing.T) {
	src := NewSysfsSource(WithFs(afero.NewMemMapFs()), WithRoot("/nowhere"))
	if _, err := src.Read(); !errors.Is(err, errors.ErrNoBattery) {
		t.Errorf("Read() = %v, want ErrNoBattery", err)
	}
}

func TestSysfsSource_BadCapacity(t *testing.T) {
	src := NewSysfsSource(WithFs(newBatteryFs(t, "Full", "many")), WithRoot(testRoot))

	_, err := src.Read()
	var powerErr *errors.PowerError
	if !errors.As(err, &powerErr) {
		t.Fatalf("Read() = %v, want *PowerError", err)
	}
	if powerErr.IsRetryable() {
		t.Error("parse failure should not be retryable")
	}
}

func TestSysfsSource_RefreshNotifiesOnChange(t *testing.T) {
	fs := newBatteryFs(t, "Discharging", "80")
	src := NewSysfsSource(WithFs(fs), WithRoot(testRoot), WithPollInterval(0))
	defer func() { _ = src.Close() }()

	var mu sync.Mutex
	var got []Snapshot
	sticky, err := src.Subscribe(func(b Broadcast) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, FromBroadcast(b))
	})
	if err != nil {
		t.Fatalf("Subscribe() = %v", err)
	}
	if FromBroadcast(sticky).Percent != 0.8 {
		t.Errorf("sticky percent = %v, want 0.8", FromBroadcast(sticky).Percent)
	}

	src.Refresh()
	mu.Lock()
	if len(got) != 0 {
		t.Errorf("unchanged battery produced %d notifications", len(got))
	}
	mu.Unlock()

	if err := afero.WriteFile(fs, filepath.Join(testRoot, "BAT0", "status"), []byte("Charging\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src.Refresh()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || !got[0].Charging {
		t.Errorf("notifications = %v, want one charging snapshot", got)
	}
}

func TestSysfsSource_PollLoop(t *testing.T) {
	fs := newBatteryFs(t, "Discharging", "10")
	src := NewSysfsSource(WithFs(fs), WithRoot(testRoot), WithPollInterval(5*time.Millisecond))

	changed := make(chan Snapshot, 4)
	if _, err := src.Subscribe(func(b Broadcast) { changed <- FromBroadcast(b) }); err != nil {
		t.Fatalf("Subscribe() = %v", err)
	}

	if err := afero.WriteFile(fs, filepath.Join(testRoot, "BAT0", "capacity"), []byte("11\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case snap := <-changed:
		if snap.Percent != 0.11 {
			t.Errorf("Percent = %v, want 0.11", snap.Percent)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not report the change")
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if _, err := src.Subscribe(nil); !errors.Is(err, errors.ErrSourceClosed) {
		t.Errorf("Subscribe after Close = %v, want ErrSourceClosed", err)
	}
}
