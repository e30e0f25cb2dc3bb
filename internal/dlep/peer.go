package dlep

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dlepradio/dlepd/internal/timerwheel"
	"github.com/dlepradio/dlepd/internal/wire"
)

// Sender abstracts sending an already-encoded DLEP message or signal to
// one peer's session socket: a narrow, testable seam between FSM-driven
// side effects and the real transport.
type Sender interface {
	Send(buf []byte) error
}

// PeerConfig carries the parameters needed to create a Peer.
// Interval/threshold fields are clamped against
// internal/dlep/intervals.go by NewPeer rather than rejected outright.
type PeerConfig struct {
	LocalType         string
	HeartbeatInterval time.Duration
	HeartbeatMissed   int
	TermAckTimeout    time.Duration
	TermMissed        int

	// NeighborActivityDuration seeds every Neighbor created under this
	// peer (spec §4.5); clamped against NeighborActivityTimer by
	// NewNeighbor itself, not here.
	NeighborActivityDuration time.Duration
}

// Peer is the per-router session context (spec §3). It owns no
// goroutine and no locks: every field is touched only from the Core
// loop goroutine, so plain fields are enough — no atomics needed.
type Peer struct {
	id     uint32
	cfg    PeerConfig
	sender Sender
	wheel  *timerwheel.Wheel
	logger *slog.Logger
	notify StateCallback

	state      PeerState
	peerType   string
	remoteVer  uint8
	status     wire.StatusCode
	seq        SequenceAllocator
	expectTerm uint16 // nonzero while a Peer-Term-Request awaits ack

	missedHeartbeats int
	missedTermAcks   int

	heartbeatSendTimer timerwheel.Timer
	heartbeatMissTimer timerwheel.Timer
	termAckTimer       timerwheel.Timer
	peerOfferTimer     timerwheel.Timer

	neighbors map[string]*Neighbor // keyed by MAC.String()

	stateTransitions int
	lastStateChange  time.Time
}

// NewPeer constructs a Peer in PeerStateDiscovery. cfg's interval and
// threshold fields are clamped to internal/dlep/intervals.go's bounds
// tables rather than rejecting out-of-range config outright — spec §6
// calls for clamp-and-warn, not abort.
func NewPeer(id uint32, cfg PeerConfig, sender Sender, wheel *timerwheel.Wheel, logger *slog.Logger, notify StateCallback) *Peer {
	cfg.HeartbeatInterval = PeerHeartbeatInterval.Clamp(cfg.HeartbeatInterval)
	cfg.HeartbeatMissed = PeerHeartbeatMissedThreshold.Clamp(cfg.HeartbeatMissed)
	cfg.TermAckTimeout = PeerTermAckTimeout.Clamp(cfg.TermAckTimeout)
	cfg.TermMissed = PeerTermMissedThreshold.Clamp(cfg.TermMissed)

	p := &Peer{
		id:        id,
		cfg:       cfg,
		sender:    sender,
		wheel:     wheel,
		logger:    logger.With(slog.Uint64("peer_id", uint64(id))),
		notify:    notify,
		state:     PeerStateDiscovery,
		neighbors: make(map[string]*Neighbor),
	}
	wheel.Prepare(&p.heartbeatSendTimer)
	wheel.Prepare(&p.heartbeatMissTimer)
	wheel.Prepare(&p.termAckTimer)
	wheel.Prepare(&p.peerOfferTimer)
	return p
}

// ID returns the peer's locally-unique identifier.
func (p *Peer) ID() uint32 { return p.id }

// State returns the peer's current session state.
func (p *Peer) State() PeerState { return p.state }

// PeerType returns the router-supplied type description, empty before
// Peer-Init-Request arrives.
func (p *Peer) PeerType() string { return p.peerType }

// Neighbor looks up a neighbor by MAC string, for CLI reads.
func (p *Peer) Neighbor(mac string) (*Neighbor, bool) {
	n, ok := p.neighbors[mac]
	return n, ok
}

// Neighbors returns a snapshot slice of all neighbors, for CLI reads.
func (p *Peer) Neighbors() []*Neighbor {
	out := make([]*Neighbor, 0, len(p.neighbors))
	for _, n := range p.neighbors {
		out = append(out, n)
	}
	return out
}

// Dispatch applies event to the peer FSM and executes the resulting
// actions, keeping the pure state-transition computation separate from
// the actions that have side effects.
func (p *Peer) Dispatch(event PeerEvent, pad *wire.ScratchPad) {
	next, actions, ok := ApplyPeerEvent(p.state, event)
	if !ok {
		p.logger.Debug("peer event ignored", slog.String("state", p.state.String()), slog.String("event", event.String()))
		return
	}
	changed := next != p.state
	old := p.state
	p.state = next
	for _, action := range actions {
		p.executeAction(action, pad)
	}
	if changed {
		p.logStateChange(old, next)
	}
}

func (p *Peer) logStateChange(old, next PeerState) {
	p.stateTransitions++
	p.lastStateChange = time.Now()
	p.logger.Info("peer state changed", slog.String("old", old.String()), slog.String("new", next.String()))
}

func (p *Peer) executeAction(action PeerAction, pad *wire.ScratchPad) {
	switch action {
	case ActionSendPeerOffer:
		p.send(wire.BuildPeerOffer())
	case ActionSendPeerInitResponse:
		if pad != nil {
			p.peerType = pad.PeerType
		}
		p.send(wire.BuildPeerInitResponse(p.seq.Next(), p.cfg.LocalType, p.cfg.HeartbeatInterval, wire.StatusSuccess))
	case ActionSendPeerUpdateResponse:
		p.send(wire.BuildPeerUpdateResponse(p.seq.Next(), wire.StatusSuccess))
	case ActionSendHeartbeat:
		p.send(wire.BuildPeerHeartbeat(p.seq.Next()))
	case ActionSendTermRequest:
		seq := p.seq.Next()
		p.expectTerm = seq
		p.send(wire.BuildPeerTermRequest(seq, p.status))
	case ActionSendTermResponse:
		p.send(wire.BuildPeerTermResponse(p.seq.Next(), wire.StatusSuccess))
		// A router-initiated termination also clears every neighbor.
		for key, n := range p.neighbors {
			n.executeAction(ActionStopAllNeighborTimers)
			delete(p.neighbors, key)
		}
	case ActionRetransmitTermRequest:
		// §9(a): a late-fired term-ack timer only ever reaches here once
		// armTermAck's callback has already confirmed expectTerm is
		// still nonzero, so retransmitting unconditionally here is safe.
		seq := p.seq.Next()
		p.expectTerm = seq
		p.send(wire.BuildPeerTermRequest(seq, p.status))
	case ActionArmHeartbeatSendTimer:
		p.armHeartbeatSend()
	case ActionArmHeartbeatMissedTimer:
		p.armHeartbeatMissed()
	case ActionArmTermAckTimer:
		p.armTermAck()
	case ActionArmPeerOfferTimer:
		p.armPeerOffer()
	case ActionStopPeerOfferTimer:
		p.wheel.Stop(&p.peerOfferTimer)
	case ActionStopAllTimers:
		p.wheel.Stop(&p.heartbeatSendTimer)
		p.wheel.Stop(&p.heartbeatMissTimer)
		p.wheel.Stop(&p.termAckTimer)
		p.wheel.Stop(&p.peerOfferTimer)
		p.expectTerm = 0
		p.missedTermAcks = 0
	case ActionResetMissedHeartbeats:
		p.missedHeartbeats = 0
	case ActionIncrMissedHeartbeats:
		p.missedHeartbeats++
		if p.missedHeartbeats >= p.cfg.HeartbeatMissed {
			p.status = wire.StatusTimedOut
			p.Dispatch(PeerEventSendTermRequested, nil)
			return
		}
		p.armHeartbeatMissed()
	case ActionIncrMissedTermAcks:
		p.missedTermAcks++
	case ActionEmitStateChange:
		p.emit()
	case ActionInitiateTermination:
		p.status = wire.StatusUnexpectedMessage
		p.Dispatch(PeerEventSendTermRequested, nil)
	default:
		p.logger.Warn("unhandled peer action", slog.Int("action", int(action)))
	}
}

func (p *Peer) send(buf []byte) {
	if err := p.sender.Send(buf); err != nil {
		p.logger.Warn("peer send failed", slog.String("error", err.Error()))
	}
}

func (p *Peer) emit() {
	if p.notify == nil {
		return
	}
	p.notify(StateChange{
		PeerID: p.id,
		From:   "", // always blank: emit does not know the previous state
		To:     p.state.String(),
		Reason: p.status.String(),
	})
}

// armHeartbeatSend (re)arms the periodic heartbeat-send timer. The
// callback runs on the core loop goroutine (Wheel.Advance is only ever
// called from there), so dispatching straight back into the FSM needs
// no channel hop — this is the payoff of the single-threaded-loop
// architecture spec §5 mandates.
func (p *Peer) armHeartbeatSend() {
	p.wheel.Start(&p.heartbeatSendTimer, p.cfg.HeartbeatInterval, true, func(any) {
		p.Dispatch(PeerEventHeartbeatTimerFired, nil)
	}, nil)
}

// armHeartbeatMissed (re)arms the one-shot heartbeat detection timer.
// Every inbound heartbeat and every missed-timeout tick re-arms it, so
// at most one is ever outstanding per peer.
func (p *Peer) armHeartbeatMissed() {
	p.wheel.Start(&p.heartbeatMissTimer, p.cfg.HeartbeatInterval, false, func(any) {
		p.Dispatch(PeerEventHeartbeatMissedTimeout, nil)
	}, nil)
}

// armTermAck (re)arms the term-ack retransmit timer. The callback
// checks expectTerm is still nonzero before dispatching the timeout
// event — the §9(a) resolution to the late-fire race: Wheel.Stop
// (called from ActionStopAllTimers when the ack actually arrives)
// prevents the callback from running at all, since Advance skips
// stopped timers, and the expectTerm guard is the second line of
// defense for an ack that cleared expectTerm without stopping the timer.
func (p *Peer) armTermAck() {
	p.wheel.Start(&p.termAckTimer, p.cfg.TermAckTimeout, false, func(any) {
		if p.expectTerm == 0 {
			return
		}
		if p.missedTermAcks+1 >= p.cfg.TermMissed {
			p.status = wire.StatusTimedOut
			p.wheel.Stop(&p.termAckTimer)
			p.expectTerm = 0
			p.state = PeerStateReset
			p.logStateChange(PeerStateTerminating, PeerStateReset)
			p.emit()
			return
		}
		p.Dispatch(PeerEventTermAckTimeout, nil)
	}, nil)
}

// armPeerOffer (re)arms the periodic Peer-Offer re-send timer (spec
// §4.4: "send peer-offer, arm periodic peer-offer timer, remain in
// discovery"). It runs only while the peer is still in discovery;
// ActionStopPeerOfferTimer disarms it the moment a session actually
// starts.
func (p *Peer) armPeerOffer() {
	p.wheel.Start(&p.peerOfferTimer, PeerOfferInterval.Clamp(PeerOfferInterval.Default), true, func(any) {
		p.send(wire.BuildPeerOffer())
	}, nil)
}

// String implements fmt.Stringer for log/debug convenience.
func (p *Peer) String() string {
	return fmt.Sprintf("peer(id=%d type=%q state=%s)", p.id, p.peerType, p.state)
}
