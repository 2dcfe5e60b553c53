// Package ranging schedules distance measurements against discovered peers.
//
// ContinuousRanger runs a self re-arming loop: every iteration asks its
// callback for the current peers, sends one request to the ranging radio
// and, once the radio answers, schedules the next iteration one period
// later. The peer set is fetched fresh each time, so peers added or removed
// by the caller are picked up within a period without a restart.
//
// Failures reported by the radio are delivered and the loop continues at
// the same period. There is no backoff.
//
// SingleRanger is a thin helper for one measurement against one peer.
//
// Radio answers are delivered on whatever goroutine the radio uses.
package ranging
