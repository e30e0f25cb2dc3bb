// Package dlep implements the radio-side DLEP core: the Peer session
// state machine, the per-neighbor lifecycle state machine, the timer-
// wheel-driven retransmission pattern shared by both, and the message
// parser/dispatcher that ties the wire codec (internal/wire) to them.
//
// The package is built around a single-threaded cooperative loop (Core,
// in core.go): every FSM transition, timer callback, and decode runs on
// one goroutine, so peer and neighbor state needs no internal locking.
// External callers (an operator console, tests) only ever observe state
// through the read-request queue in inspect.go.
package dlep
