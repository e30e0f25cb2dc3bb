package dlep

import (
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/dlepradio/dlepd/internal/timerwheel"
	"github.com/dlepradio/dlepd/internal/wire"
)

// NeighborMetrics is the latest metrics snapshot for one neighbor,
// mirroring wire.NeighborMetricsParams plus the credit fields that only
// apply when the router advertised credit-window support (spec §3).
type NeighborMetrics struct {
	wire.NeighborMetricsParams
	CreditSupported bool
	MRW             uint64
	RRW             uint64
	CGR             uint64
	EFT             time.Duration
}

// Neighbor is the per-neighbor lifecycle context (spec §3): no timer
// negotiation, just an ack-expected slot per outstanding request class
// and an activity timer.
type Neighbor struct {
	peer   *Peer // relation only: never locked, never owned
	mac    net.HardwareAddr
	wheel  *timerwheel.Wheel
	sender Sender
	logger *slog.Logger
	notify StateCallback

	state NeighborState
	seq   SequenceAllocator

	ipv4       netip.Addr
	ipv6       netip.Addr
	ipv4Prefix netip.Prefix
	ipv6Prefix netip.Prefix

	pendingAddr   netip.Addr
	pendingOp     wire.AddressOp
	hasPendingOp  bool

	metrics NeighborMetrics

	expectUp   uint16
	expectAddr uint16
	expectDown uint16

	missedUp   int
	missedDown int

	activityDuration time.Duration
	lastActivity     time.Time

	upAckTimer     timerwheel.Timer
	addrAckTimer   timerwheel.Timer
	downAckTimer   timerwheel.Timer
	activityTimer  timerwheel.Timer
	updateTimer    timerwheel.Timer
}

// NewNeighbor constructs a Neighbor in NeighborStateInitializing,
// clamping activityDuration against NeighborActivityTimer's bounds
// table.
func NewNeighbor(peer *Peer, mac net.HardwareAddr, wheel *timerwheel.Wheel, sender Sender, logger *slog.Logger, notify StateCallback, activityDuration time.Duration) *Neighbor {
	n := &Neighbor{
		peer:             peer,
		mac:              mac,
		wheel:            wheel,
		sender:           sender,
		logger:           logger.With(slog.String("neighbor_mac", mac.String())),
		notify:           notify,
		state:            NeighborStateInitializing,
		activityDuration: NeighborActivityTimer.Clamp(activityDuration),
	}
	wheel.Prepare(&n.upAckTimer)
	wheel.Prepare(&n.addrAckTimer)
	wheel.Prepare(&n.downAckTimer)
	wheel.Prepare(&n.activityTimer)
	wheel.Prepare(&n.updateTimer)
	return n
}

// MAC returns the neighbor's hardware address.
func (n *Neighbor) MAC() net.HardwareAddr { return n.mac }

// State returns the neighbor's current lifecycle state.
func (n *Neighbor) State() NeighborState { return n.state }

// Metrics returns the latest metrics snapshot.
func (n *Neighbor) Metrics() NeighborMetrics { return n.metrics }

// Dispatch applies event to the neighbor FSM and executes the
// resulting actions.
func (n *Neighbor) Dispatch(event NeighborEvent) {
	next, actions, ok := ApplyNeighborEvent(n.state, event)
	if !ok {
		n.logger.Debug("neighbor event ignored", slog.String("state", n.state.String()), slog.String("event", event.String()))
		return
	}
	old := n.state
	n.state = next
	for _, action := range actions {
		n.executeAction(action)
	}
	if next != old {
		n.logger.Info("neighbor state changed", slog.String("old", old.String()), slog.String("new", next.String()))
	}
}

func (n *Neighbor) executeAction(action NeighborAction) {
	switch action {
	case ActionSendNeighborUp:
		seq := n.seq.Next()
		n.expectUp = seq
		n.send(wire.BuildNeighborUpRequest(seq, n.mac, n.ipv4, n.ipv6, n.metrics.NeighborMetricsParams))
	case ActionArmUpAckTimer:
		n.armUpAck()
	case ActionResetUpAckTracking:
		n.wheel.Stop(&n.upAckTimer)
		n.missedUp = 0
	case ActionRetransmitNeighborUp:
		seq := n.seq.Next()
		n.expectUp = seq
		n.send(wire.BuildNeighborUpRequest(seq, n.mac, n.ipv4, n.ipv6, n.metrics.NeighborMetricsParams))
	case ActionIncrMissedUpAcks:
		n.missedUp++
	case ActionSendNeighborMetrics:
		n.send(wire.BuildNeighborMetrics(n.seq.Next(), n.mac, n.metrics.NeighborMetricsParams))
	case ActionArmUpdateTimer:
		n.armUpdate()
	case ActionSendNeighborAddressRequest:
		if n.hasPendingOp {
			seq := n.seq.Next()
			n.expectAddr = seq
			n.send(wire.BuildNeighborAddressRequest(seq, n.mac, n.pendingOp, n.pendingAddr, netip.Addr{}))
		}
	case ActionArmAddressAckTimer:
		n.armAddrAck()
	case ActionSendLinkCharacteristicsResponse:
		n.send(wire.BuildLinkCharacteristicsResponse(n.seq.Next(), n.mac, wire.StatusSuccess, n.metrics.NeighborMetricsParams))
	case ActionArmActivityTimer:
		n.lastActivity = time.Now()
		n.armActivity()
	case ActionSendNeighborDownRequest:
		seq := n.seq.Next()
		n.expectDown = seq
		n.send(wire.BuildNeighborDownRequest(seq, n.mac, wire.StatusSuccess))
	case ActionSendNeighborDownResponse:
		n.send(wire.BuildNeighborDownResponse(n.seq.Next(), n.mac, wire.StatusSuccess))
	case ActionRetransmitNeighborDown:
		seq := n.seq.Next()
		n.expectDown = seq
		n.send(wire.BuildNeighborDownRequest(seq, n.mac, wire.StatusSuccess))
	case ActionIncrMissedDownAcks:
		n.missedDown++
	case ActionArmDownAckTimer:
		n.armDownAck()
	case ActionStopAllNeighborTimers:
		n.wheel.Stop(&n.upAckTimer)
		n.wheel.Stop(&n.addrAckTimer)
		n.wheel.Stop(&n.downAckTimer)
		n.wheel.Stop(&n.activityTimer)
		n.wheel.Stop(&n.updateTimer)
		n.expectUp, n.expectAddr, n.expectDown = 0, 0, 0
		n.missedUp, n.missedDown = 0, 0
	case ActionEmitNeighborStateChange:
		n.emit()
	case ActionDestroyNeighbor:
		if n.peer != nil {
			delete(n.peer.neighbors, n.mac.String())
		}
	default:
		n.logger.Warn("unhandled neighbor action", slog.Int("action", int(action)))
	}
}

func (n *Neighbor) send(buf []byte) {
	if err := n.sender.Send(buf); err != nil {
		n.logger.Warn("neighbor send failed", slog.String("error", err.Error()))
	}
}

func (n *Neighbor) emit() {
	if n.notify == nil {
		return
	}
	var peerID uint32
	if n.peer != nil {
		peerID = n.peer.id
	}
	n.notify(StateChange{
		PeerID:      peerID,
		NeighborMAC: n.mac.String(),
		To:          n.state.String(),
	})
}

// armUpAck arms the Neighbor-Up-Request ack timer.
func (n *Neighbor) armUpAck() {
	n.wheel.Start(&n.upAckTimer, NeighborUpAckTimeout.Clamp(NeighborUpAckTimeout.Default), false, func(any) {
		if n.expectUp == 0 {
			return
		}
		if n.missedUp+1 >= NeighborUpMissedThreshold.Default {
			n.wheel.Stop(&n.upAckTimer)
			n.executeAction(ActionDestroyNeighbor)
			return
		}
		n.Dispatch(NeighborEventUpAckTimeout)
	}, nil)
}

// armAddrAck arms the Neighbor-Address-Request ack timer. Unlike up/down,
// a missed address ack is not fatal to the neighbor: the timeout only
// clears expectAddr, so a late Neighbor-Address-Response is dropped. The
// request is not re-sent, and no retry counter or threshold applies here.
func (n *Neighbor) armAddrAck() {
	n.wheel.Start(&n.addrAckTimer, NeighborUpAckTimeout.Clamp(NeighborUpAckTimeout.Default), false, func(any) {
		n.expectAddr = 0
	}, nil)
}

// armDownAck arms the Neighbor-Down-Request ack timer, the §9(a)
// late-fire guard mirroring Peer.armTermAck.
func (n *Neighbor) armDownAck() {
	n.wheel.Start(&n.downAckTimer, NeighborDownAckTimeout.Clamp(NeighborDownAckTimeout.Default), false, func(any) {
		if n.expectDown == 0 {
			return
		}
		if n.missedDown+1 >= NeighborDownMissedThreshold.Default {
			n.wheel.Stop(&n.downAckTimer)
			n.executeAction(ActionDestroyNeighbor)
			return
		}
		n.Dispatch(NeighborEventDownAckTimeout)
	}, nil)
}

// armActivity (re)arms the activity-supervision timer. A duration of
// zero disables supervision entirely (spec §4.5: "if activity-duration
// > 0"), matching NeighborActivityTimer's 0-means-disabled convention.
func (n *Neighbor) armActivity() {
	if n.activityDuration <= 0 {
		return
	}
	n.wheel.Start(&n.activityTimer, n.activityDuration, false, func(any) {
		n.Dispatch(NeighborEventActivityTimerExpired)
	}, nil)
}

// armUpdate arms the periodic neighbor-metrics timer (spec §4.5: "arm
// periodic-update timer if interval > 0"; NeighborUpdateInterval's own
// bounds never clamp down to 0, so the timer is always armed once a
// neighbor reaches up). It is periodic: it re-arms itself on every
// fire, so PeriodicUpdateFired's own transition never needs to.
func (n *Neighbor) armUpdate() {
	n.wheel.Start(&n.updateTimer, NeighborUpdateInterval.Clamp(NeighborUpdateInterval.Default), true, func(any) {
		n.Dispatch(NeighborEventPeriodicUpdateFired)
	}, nil)
}
