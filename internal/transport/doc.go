// Package transport implements DLEP's two-socket wire transport: a UDP
// multicast discovery exchange and a per-peer TCP session (spec §4.1,
// §4.3). Every listener/conn here only ever reads a datagram or a framed
// message and pushes it onto a channel; nothing in this package calls
// into internal/dlep directly, keeping Core's single-goroutine table
// ownership intact.
package transport
