package transport

import (
	"context"
	"log/slog"
	"net/netip"
)

// Sender mirrors internal/dlep.Sender's shape without importing that
// package, keeping transport independent of the protocol package it
// feeds.
type Sender interface {
	Send(buf []byte) error
}

// DiscoveryEvent is one received Peer Discovery (or attached variant)
// datagram, paired with a Sender that unicasts a reply to its source.
type DiscoveryEvent struct {
	Raw      []byte
	From     netip.AddrPort
	Reply    Sender
}

// SessionEvent is one complete framed Message read from a peer's TCP
// connection.
type SessionEvent struct {
	PeerID uint32
	Raw    []byte
}

// SessionClosedEvent signals that a peer's TCP connection ended (EOF or
// read error), letting the Core-owning goroutine evict the peer.
type SessionClosedEvent struct {
	PeerID uint32
	Err    error
}

// RunDiscoveryPump reads datagrams from l in a loop, pushing a
// DiscoveryEvent per datagram onto out, until ctx is cancelled. This is
// a feeder goroutine: it never calls into internal/dlep itself (spec
// §5's single-threaded Core owns all protocol state).
func RunDiscoveryPump(ctx context.Context, l *DiscoveryListener, out chan<- DiscoveryEvent, logger *slog.Logger) {
	buf := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return
		}
		n, from, err := l.Recv(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("discovery recv error", slog.String("error", err.Error()))
			continue
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])

		select {
		case out <- DiscoveryEvent{Raw: raw, From: from, Reply: l.ReplyTo(from)}:
		case <-ctx.Done():
			return
		}
	}
}

// RunSessionPump reads framed messages from conn in a loop, pushing a
// SessionEvent per message onto out, until conn is closed or ctx is
// cancelled; it then pushes one SessionClosedEvent and returns.
func RunSessionPump(ctx context.Context, peerID uint32, conn *Conn, out chan<- SessionEvent, closed chan<- SessionClosedEvent, logger *slog.Logger) {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case closed <- SessionClosedEvent{PeerID: peerID, Err: err}:
			case <-ctx.Done():
			}
			return
		}

		select {
		case out <- SessionEvent{PeerID: peerID, Raw: raw}:
		case <-ctx.Done():
			return
		}

		if ctx.Err() != nil {
			return
		}
	}
}
