// Package runtime defines the contract between the lifecycle bridge and the
// long-lived runtime it hosts.
//
// A runtime is started once, on its own goroutine, and signals readiness by
// delivering a nonzero Handle through the handoff channel it was given. Every
// later lifecycle notification carries that handle back.
package runtime

import (
	"github.com/actbridge/actbridge/internal/errors"
	"github.com/actbridge/actbridge/internal/handoff"
)

// Handle is an opaque token for an initialized runtime context.
type Handle uint64

// Sentinel is the reserved handle meaning "no valid context".
const Sentinel Handle = 0

// Valid reports whether h is not the sentinel.
func (h Handle) Valid() bool {
	return h != Sentinel
}

// Handoff is the channel a runtime uses to deliver its handle.
type Handoff = handoff.Channel[Handle]

// NewHandoff returns an empty handoff channel.
func NewHandoff() *Handoff {
	return handoff.New[Handle]()
}

// Runtime is implemented by anything the bridge can host.
//
// Start runs synchronously on the launch goroutine for as long as the runtime
// lives and returns its exit code. Before returning it may signal readiness
// with ContinueWith; if it returns without doing so the launcher delivers
// Sentinel on its behalf.
//
// The lifecycle methods are called from the UI goroutine, one at a time, and
// must not return until the runtime has acknowledged the event.
type Runtime interface {
	Start(ch *Handoff) int

	OnCreate(h Handle)
	OnStart(h Handle)
	OnResume(h Handle)
	OnPause(h Handle)
	OnStop(h Handle)
	OnRestart(h Handle)
	OnDestroy(h Handle)
	OnNewIntent(h Handle, action, data string)
}

// ContinueWith unblocks the bridge constructor with h. The sentinel is
// rejected: a runtime that failed to initialize should return from Start
// instead.
func ContinueWith(ch *Handoff, h Handle) error {
	if !h.Valid() {
		return errors.ErrSentinelHandle
	}
	return ch.Put(h)
}
