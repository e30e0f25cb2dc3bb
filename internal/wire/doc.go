// Package wire implements the DLEP TLV wire codec: packet/signal headers,
// message headers, and the enclosed type-length-value items, following the
// layering described for this radio agent — a signal header wraps Signals
// sent over UDP multicast discovery, a message header (carrying its own
// length for TCP framing) wraps Messages sent over the TCP session.
//
// Decoding never partially populates a ScratchPad: a malformed packet
// returns a DecodeError and the caller drops it unread.
package wire
