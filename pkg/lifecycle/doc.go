// Package lifecycle manages the connection lifecycle of a single BLE peripheral.
//
// The package is split in two cooperating parts:
//   - Connection owns the currently held Device and Services, runs the two
//     external operations (device request and service retrieval), watches the
//     held device for unsolicited disconnects, and notifies bound observers
//     whenever the device or the service set changes.
//   - Machine is a finite state machine that drives a Connection through the
//     request / retrieve / connected / disconnect phases and records the reason
//     of the last rejection or disconnection.
//
// Machine processes one event at a time on a single event loop goroutine. The
// external operations run on their own goroutines and report back through the
// loop; completions that arrive after the machine left the state that started
// them are dropped.
package lifecycle
