// Package console implements a thin operator shell for inspecting a
// running daemon's live peer/neighbor table: `show peer`, `show
// neighbor`, `show counters`. It is a read-only collaborator — every
// command ends in a single internal/dlep.Core.Submit call and never
// touches Peer/Neighbor fields outside that callback, since Core's
// loop goroutine is the only safe place to read them (spec §5).
package console
