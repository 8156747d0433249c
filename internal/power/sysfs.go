package power

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
	"github.com/spf13/cast"

	"github.com/actbridge/actbridge/internal/errors"
	"github.com/actbridge/actbridge/internal/logging"
)

// DefaultSysfsRoot is where Linux exposes power supplies.
const DefaultSysfsRoot = "/sys/class/power_supply"

// DefaultPollInterval is how often SysfsSource re-reads the battery.
const DefaultPollInterval = 30 * time.Second

// sysfsScale is the scale of the capacity file, which is already a percentage.
const sysfsScale = 100

// SysfsSource reads battery state from a sysfs power_supply tree.
//
// After the first Subscribe it re-reads the battery on a fixed interval and,
// when backed by the OS filesystem, whenever fsnotify reports a change in the
// battery directory. Subscribers see a broadcast only when the decoded
// extras changed.
type SysfsSource struct {
	fs       afero.Fs
	root     string
	interval time.Duration
	watch    bool
	logger   *logging.Logger

	mu          sync.Mutex
	subscribers []func(Broadcast)
	last        Extras
	started     bool
	closed      bool
	cancel      context.CancelFunc
	wg          conc.WaitGroup
}

// SysfsOption configures a SysfsSource.
type SysfsOption func(*SysfsSource)

// WithFs reads through fs instead of the OS filesystem. fsnotify watching is
// only enabled for afero.OsFs.
func WithFs(fs afero.Fs) SysfsOption {
	return func(s *SysfsSource) {
		s.fs = fs
	}
}

// WithRoot overrides DefaultSysfsRoot.
func WithRoot(root string) SysfsOption {
	return func(s *SysfsSource) {
		if root != "" {
			s.root = root
		}
	}
}

// WithPollInterval overrides DefaultPollInterval. Zero or negative disables polling.
func WithPollInterval(d time.Duration) SysfsOption {
	return func(s *SysfsSource) {
		s.interval = d
	}
}

// WithSysfsLogger sets the logger.
func WithSysfsLogger(logger *logging.Logger) SysfsOption {
	return func(s *SysfsSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSysfsSource creates a SysfsSource. Nothing is read until Read or Subscribe.
func NewSysfsSource(opts ...SysfsOption) *SysfsSource {
	s := &SysfsSource{
		fs:       afero.NewOsFs(),
		root:     DefaultSysfsRoot,
		interval: DefaultPollInterval,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	_, s.watch = s.fs.(*afero.OsFs)
	s.logger = s.logger.WithComponent("power-sysfs")
	return s
}

// Read returns the current battery broadcast. When no battery supply exists
// the broadcast reports StatusUnknown with level and scale -1, and the error
// wraps errors.ErrNoBattery.
func (s *SysfsSource) Read() (Broadcast, error) {
	dir, err := s.findBattery()
	if err != nil {
		return NewBroadcast(StatusUnknown, -1, -1), err
	}

	statusText, err := afero.ReadFile(s.fs, filepath.Join(dir, "status"))
	if err != nil {
		return nil, errors.NewPowerError("read battery status", err).
			WithSource("sysfs").
			WithPath(filepath.Join(dir, "status"))
	}

	capacityPath := filepath.Join(dir, "capacity")
	capacityText, err := afero.ReadFile(s.fs, capacityPath)
	if err != nil {
		return nil, errors.NewPowerError("read battery capacity", err).
			WithSource("sysfs").
			WithPath(capacityPath)
	}
	level, err := cast.ToIntE(strings.TrimSpace(string(capacityText)))
	if err != nil {
		return nil, errors.NewPowerError("parse battery capacity", err).
			WithSource("sysfs").
			WithPath(capacityPath).
			WithRetryable(false)
	}

	return NewBroadcast(ParseStatus(string(statusText)), level, sysfsScale), nil
}

// findBattery returns the first supply directory whose type is "Battery".
// Entries are usually symlinks, so every entry is probed.
func (s *SysfsSource) findBattery() (string, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return "", errors.NewPowerError("list power supplies", errors.Join(errors.ErrNoBattery, err)).
			WithSource("sysfs").
			WithPath(s.root).
			WithRetryable(false)
	}

	for _, entry := range entries {
		dir := filepath.Join(s.root, entry.Name())
		kind, err := afero.ReadFile(s.fs, filepath.Join(dir, "type"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(kind)) == "Battery" {
			return dir, nil
		}
	}
	return "", errors.NewPowerError("no battery supply", errors.ErrNoBattery).
		WithSource("sysfs").
		WithPath(s.root).
		WithRetryable(false)
}

// Subscribe implements Source. A missing battery is not an error here: the
// returned broadcast simply reports an unknown state.
func (s *SysfsSource) Subscribe(fn func(Broadcast)) (Broadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.NewPowerError("subscribe", errors.ErrSourceClosed).
			WithSource("sysfs").
			WithRetryable(false)
	}

	b, err := s.Read()
	if err != nil && !errors.Is(err, errors.ErrNoBattery) {
		return nil, err
	}
	s.last, _ = b.Decode()

	if fn != nil {
		s.subscribers = append(s.subscribers, fn)
	}
	if !s.started {
		s.start()
	}
	return b, nil
}

// start launches the watch loop. Callers hold s.mu.
func (s *SysfsSource) start() {
	s.started = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	var watcher *fsnotify.Watcher
	if s.watch {
		if dir, err := s.findBattery(); err == nil {
			w, err := fsnotify.NewWatcher()
			if err != nil {
				s.logger.Warn("fsnotify unavailable, polling only", "error", err)
			} else if err := w.Add(dir); err != nil {
				s.logger.Warn("cannot watch battery directory, polling only", "dir", dir, "error", err)
				_ = w.Close()
			} else {
				watcher = w
				events = w.Events
				watchErrs = w.Errors
			}
		}
	}

	var tick <-chan time.Time
	var ticker *time.Ticker
	if s.interval > 0 {
		ticker = time.NewTicker(s.interval)
		tick = ticker.C
	}

	s.wg.Go(func() {
		defer func() {
			if ticker != nil {
				ticker.Stop()
			}
			if watcher != nil {
				_ = watcher.Close()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-tick:
				s.refresh()
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					s.refresh()
				}
			case err, ok := <-watchErrs:
				if !ok {
					watchErrs = nil
					continue
				}
				s.logger.Warn("battery watch error", "error", err)
			}
		}
	})
}

// Refresh re-reads the battery and notifies subscribers when it changed.
// The watch loop calls it on every tick and filesystem event.
func (s *SysfsSource) Refresh() {
	s.refresh()
}

func (s *SysfsSource) refresh() {
	b, err := s.Read()
	if err != nil && !errors.Is(err, errors.ErrNoBattery) {
		s.logger.Debug("battery read failed", "error", err)
		return
	}
	extras, _ := b.Decode()

	s.mu.Lock()
	if s.closed || extras == s.last {
		s.mu.Unlock()
		return
	}
	s.last = extras
	subs := make([]func(Broadcast), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	s.logger.Debug("battery changed",
		"status", Status(extras.Status).String(),
		"level", extras.Level,
	)
	for _, fn := range subs {
		fn(b)
	}
}

// Close implements Source. It stops the watch loop and waits for it.
func (s *SysfsSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subscribers = nil
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return nil
}
