// Package bridge forwards a host UI lifecycle into a long-lived runtime.
//
// The host drives a Bridge from a single UI goroutine: it calls OnCreate,
// OnStart, OnResume and the rest in the order its platform delivers them.
// Construction launches the runtime on its own goroutine and blocks until the
// runtime hands back a Handle (or returns without one). From then on each
// lifecycle call first runs the host's default handling and then reaches the
// runtime only while the handle is valid and the bridge has not been
// destroyed.
//
// Destroy is terminal. The runtime sees it at most once, and the host is
// always asked to terminate the process afterwards.
//
// Lifecycle:
//
//	b, err := bridge.New(ctx, rt, host, bridge.WithLogger(logger))
//	b.OnCreate()
//	b.OnStart()
//	b.OnResume()
//	// ...
//	b.OnDestroy() // forwards once, then host.Terminate()
//
// Late-bound observers for permission results and battery status are
// registered through SetPermissionResultCallback and SetBatteryStatusCallback.
package bridge
