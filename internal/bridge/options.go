package bridge

import (
	"github.com/actbridge/actbridge/internal/callback"
	"github.com/actbridge/actbridge/internal/event"
	"github.com/actbridge/actbridge/internal/logging"
	"github.com/actbridge/actbridge/internal/power"
)

// Option configures a Bridge.
type Option func(*config)

type config struct {
	logger   *logging.Logger
	bus      *event.Bus
	registry *callback.Registry
	source   power.Source
}

// WithLogger sets the logger for the bridge.
func WithLogger(logger *logging.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithBus publishes lifecycle, readiness and runtime exit events on bus.
func WithBus(bus *event.Bus) Option {
	return func(c *config) {
		c.bus = bus
	}
}

// WithRegistry shares a callback registry with the bridge. By default the
// bridge creates its own.
func WithRegistry(registry *callback.Registry) Option {
	return func(c *config) {
		c.registry = registry
	}
}

// WithPowerSource sets where battery broadcasts come from. The default is an
// empty power.ManualSource.
func WithPowerSource(source power.Source) Option {
	return func(c *config) {
		c.source = source
	}
}
