// Package lifecycle defines startable/stoppable units and the Composite that
// starts and stops an ordered collection of them as one unit.
//
// Ordering:
//   - Start visits children in append order and stops at the first failure.
//   - Stop visits children in reverse append order and never stops early:
//     a failing child is logged and the next one is still stopped.
//
// Both operations are idempotent. The composite serialises its own Start and
// Stop with a mutex because the shutdown hook runs on a signal goroutine.
package lifecycle
