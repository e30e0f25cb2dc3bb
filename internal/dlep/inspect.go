package dlep

// readRequest is one CLI read posted to Core.requests. Core answers it
// synchronously from inside its own loop iteration (the only place
// peer/neighbor state is safe to read), then closes reply — the
// request/response channel pair is the one sanctioned way an external
// collaborator (internal/console) observes Core state without a lock.
type readRequest struct {
	fn    func(*Core)
	reply chan struct{}
}

// PeerSnapshot is a read-only copy of one peer's CLI-visible state.
type PeerSnapshot struct {
	ID        uint32
	PeerType  string
	State     string
	Neighbors []NeighborSnapshot
}

// NeighborSnapshot is a read-only copy of one neighbor's CLI-visible
// state.
type NeighborSnapshot struct {
	MAC     string
	State   string
	Metrics NeighborMetrics
}

// Submit enqueues fn to run on the Core loop goroutine and blocks until
// it has run. Callers (internal/console) must never call this from the
// Core loop goroutine itself — it would deadlock, since nothing drains
// requests except Core.Pump.
func (c *Core) Submit(fn func(*Core)) {
	reply := make(chan struct{})
	c.requests <- readRequest{fn: fn, reply: reply}
	<-reply
}

// Pump drains exactly one pending CLI request if one is queued,
// returning immediately if none is. The daemon's main loop calls this
// once per timer tick, right after Advance, keeping
// CLI reads on the same single goroutine as everything else.
func (c *Core) Pump() {
	select {
	case req, ok := <-c.requests:
		if !ok {
			return
		}
		req.fn(c)
		close(req.reply)
	default:
	}
}

// SnapshotPeers returns a read-only copy of every peer's CLI-visible
// state. Safe to call only from within a Submit callback.
func (c *Core) SnapshotPeers() []PeerSnapshot {
	out := make([]PeerSnapshot, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, snapshotPeer(p))
	}
	return out
}

// SnapshotPeer returns a read-only copy of one peer's state, or ok=false
// if no such peer exists. Safe to call only from within a Submit callback.
func (c *Core) SnapshotPeer(id uint32) (PeerSnapshot, bool) {
	p, ok := c.peers[id]
	if !ok {
		return PeerSnapshot{}, false
	}
	return snapshotPeer(p), true
}

func snapshotPeer(p *Peer) PeerSnapshot {
	ns := make([]NeighborSnapshot, 0, len(p.neighbors))
	for _, n := range p.neighbors {
		ns = append(ns, NeighborSnapshot{
			MAC:     n.mac.String(),
			State:   n.state.String(),
			Metrics: n.metrics,
		})
	}
	return PeerSnapshot{
		ID:        p.id,
		PeerType:  p.peerType,
		State:     p.state.String(),
		Neighbors: ns,
	}
}
