// Package event provides a synchronous pub-sub bus that lets the bridge,
// the callback registry and the power layer report what they did without
// knowing who is listening.
//
// The CLI subscribes to every event to drive its status display; tests
// subscribe to assert ordering. Nothing on the bus is required for correct
// lifecycle forwarding, so a nil *Bus is accepted everywhere one is optional.
//
// Event types follow the pattern "category.action":
//   - lifecycle.forwarded, lifecycle.dropped
//   - bridge.ready, bridge.failed
//   - runtime.exited
//   - permission.result
//   - battery.status
//   - process.terminating
//
// Handlers run on the publishing goroutine. A panicking handler is logged
// and skipped so it cannot block delivery to the others.
package event
