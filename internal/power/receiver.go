package power

import (
	"github.com/actbridge/actbridge/internal/callback"
	"github.com/actbridge/actbridge/internal/logging"
)

// Receiver converts broadcasts into battery status dispatches. It holds no
// state of its own.
type Receiver struct {
	registry *callback.Registry
	logger   *logging.Logger
}

// NewReceiver creates a Receiver dispatching into registry.
func NewReceiver(registry *callback.Registry, logger *logging.Logger) *Receiver {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Receiver{
		registry: registry,
		logger:   logger.WithComponent("power-receiver"),
	}
}

// OnReceive handles one broadcast and returns the snapshot it dispatched.
func (r *Receiver) OnReceive(b Broadcast) Snapshot {
	extras, err := b.Decode()
	if err != nil {
		r.logger.Warn("malformed battery broadcast", "error", err)
	}
	snap := FromExtras(extras)
	r.registry.DispatchBatteryStatus(snap.Charging, snap.Percent)
	return snap
}
