package dlep

import (
	"log/slog"
	"net"
	"net/netip"

	"github.com/dlepradio/dlepd/internal/timerwheel"
	"github.com/dlepradio/dlepd/internal/wire"
)

// Core is the single-threaded peer-table owner (spec §5). Every method
// here except Advance's ticker-feeding caller and the read-request
// helpers in inspect.go is meant to be called from exactly one
// goroutine, so the peer map needs no lock at all: DLEP's concurrency
// model pushes all socket I/O onto feeder goroutines that only ever
// push onto one channel (see internal/transport), so nothing here ever
// races.
type Core struct {
	wheel     *timerwheel.Wheel
	ids       IDMeter
	localType string

	peers map[uint32]*Peer

	pad wire.ScratchPad // reused every decode/dispatch cycle, scrubbed after

	notify StateCallback

	logger *slog.Logger

	requests chan readRequest // see inspect.go

	closed bool
}

// NewCore constructs a Core with an empty peer table.
func NewCore(localType string, logger *slog.Logger, notify StateCallback) *Core {
	return &Core{
		wheel:     timerwheel.New(),
		localType: localType,
		peers:     make(map[uint32]*Peer),
		notify:    notify,
		logger:    logger,
		requests:  make(chan readRequest, 8),
	}
}

// Advance ticks the timer wheel once. The caller (cmd/dlepd's main
// loop) is expected to call this on a ticker matching timerwheel.Tick;
// Core does not run its own ticker so tests can drive it deterministically.
func (c *Core) Advance() {
	c.wheel.Advance()
}

// AcceptPeer registers a newly connected router session and returns its
// Peer context in PeerStateDiscovery, ready to receive PeerEventInitRequestReceived.
func (c *Core) AcceptPeer(sender Sender, cfg PeerConfig) *Peer {
	id := c.ids.Next()
	p := NewPeer(id, cfg, sender, c.wheel, c.logger, c.notify)
	c.peers[id] = p
	return p
}

// RemovePeer drops a peer from the table once its session has fully
// reset (PeerStateReset) or its transport died.
func (c *Core) RemovePeer(id uint32) {
	if p, ok := c.peers[id]; ok {
		p.executeAction(ActionStopAllTimers, nil)
		for key, n := range p.neighbors {
			n.executeAction(ActionStopAllNeighborTimers)
			delete(p.neighbors, key)
		}
		p.state = PeerStateReset
	}
	delete(c.peers, id)
}

// Peer looks up a peer by ID, for transport-layer dispatch and CLI reads.
func (c *Core) Peer(id uint32) (*Peer, bool) {
	p, ok := c.peers[id]
	return p, ok
}

// Peers returns a snapshot slice of all peers, for CLI reads.
func (c *Core) Peers() []*Peer {
	out := make([]*Peer, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, p)
	}
	return out
}

// HandleDiscovery processes a received Peer-Discovery or attached Peer-
// Discovery signal (UDP, connectionless). discoverySender must address
// its reply back to the originating multicast-group member, which the
// transport layer supplies as a one-shot Sender bound to that source
// address.
func (c *Core) HandleDiscovery(raw []byte, discoverySender Sender) error {
	c.pad.Scrub()
	defer c.pad.Scrub()

	if err := wire.DecodeSignal(raw, &c.pad); err != nil {
		c.logger.Debug("discovery signal decode failed", slog.String("error", err.Error()))
		return err
	}
	if c.pad.SignalType != wire.SignalPeerDiscovery {
		return nil
	}
	if c.pad.SignalFlags&wire.FlagAttached == 0 {
		return nil
	}
	buf := wire.BuildPeerOffer()
	return discoverySender.Send(buf)
}

// HandleMessage decodes one TCP session message and dispatches it to
// the owning peer (and, where applicable, neighbor) FSM. This is the
// single entry point transport-layer readers call after framing one
// message with wire.PeekMessageLength.
func (c *Core) HandleMessage(peerID uint32, raw []byte) error {
	peer, ok := c.peers[peerID]
	if !ok {
		return ErrUnknownPeer
	}

	c.pad.Scrub()
	defer c.pad.Scrub()

	if err := wire.DecodeMessage(raw, &c.pad); err != nil {
		// spec §7: a DecodeError is local to the offending packet. It is
		// dropped and counted (caller increments the decode-rejection
		// counter); the peer's session is untouched and stays in-session.
		c.logger.Debug("message decode failed", slog.Uint64("peer_id", uint64(peerID)), slog.String("error", err.Error()))
		return err
	}

	return dispatchMessage(peer, &c.pad)
}

// NeighborMetricSample is one reading of link-layer metrics for a
// single MAC, as reported by a MetricsSource. IPv4/IPv6 are optional:
// a zero netip.Addr means "no update to that family this sample."
type NeighborMetricSample struct {
	MAC     net.HardwareAddr
	IPv4    netip.Addr
	IPv6    netip.Addr
	Metrics wire.NeighborMetricsParams
}

// MetricsSource supplies the current set of observable link-layer
// neighbors and their metrics (spec §1, §9: "the fake-metric generator
// becomes a MetricsSource interface with a periodic-timer-driven test
// implementation, not a hand-coded stub"). cmd/dlepd drives it from a
// periodic timer and feeds every sample to Core.ObserveMetric; nothing
// in this package depends on where samples actually come from.
type MetricsSource interface {
	Sample() []NeighborMetricSample
}

// NullMetricsSource is the zero-value MetricsSource: it reports no
// neighbors. cmd/dlepd falls back to it when no real link-metrics
// plugin is configured, so the periodic sampling loop itself stays
// wired and exercised even with nothing yet to report.
type NullMetricsSource struct{}

// Sample implements MetricsSource.
func (NullMetricsSource) Sample() []NeighborMetricSample { return nil }

// ObserveMetric feeds one link-metric sample for peerID into that
// peer's neighbor table. A MAC seen for the first time starts the
// neighbor-up handshake (spec §4.5: "created on first metric for a new
// MAC"); a MAC already tracked just has its live metrics snapshot
// refreshed, to go out on the neighbor's next periodic-update tick.
func (c *Core) ObserveMetric(peerID uint32, s NeighborMetricSample) error {
	peer, ok := c.peers[peerID]
	if !ok {
		return ErrUnknownPeer
	}

	key := neighborKey(s.MAC)
	if n, ok := peer.neighbors[key]; ok {
		n.metrics.NeighborMetricsParams = s.Metrics
		if s.IPv4.IsValid() {
			n.ipv4 = s.IPv4
		}
		if s.IPv6.IsValid() {
			n.ipv6 = s.IPv6
		}
		return nil
	}

	n := NewNeighbor(peer, s.MAC, c.wheel, peer.sender, c.logger, c.notify, peer.cfg.NeighborActivityDuration)
	n.ipv4, n.ipv6 = s.IPv4, s.IPv6
	n.metrics.NeighborMetricsParams = s.Metrics
	peer.neighbors[key] = n
	n.Dispatch(NeighborEventFirstMetricObserved)
	return nil
}

// Close stops accepting further work. Already-armed timers remain in
// the wheel but Advance becomes a caller error to keep calling after
// Close (not enforced here; the daemon simply stops calling it).
func (c *Core) Close() {
	c.closed = true
	close(c.requests)
}

// neighborKey renders a net.HardwareAddr the same way Peer.neighbors is
// keyed, so lookups from ScratchPad's raw MAC bytes and from a typed
// net.HardwareAddr never disagree.
func neighborKey(mac net.HardwareAddr) string {
	return mac.String()
}
