package dlep

import (
	"time"

	"github.com/dlepradio/dlepd/internal/wire"
)

// dispatchMessage routes one decoded message to the owning peer FSM,
// resolving a neighbor by MAC first when the message code needs one
// (spec §4.6). Unknown message codes and messages sent in a role the
// radio never expects from a router trigger peer termination; messages
// addressed to a MAC the radio has no record of are answered with
// wire.StatusUnknownNeighbor when the code is request-shaped, or
// silently dropped when it is an ack the radio no longer cares about
// (the neighbor may have already been torn down locally).
func dispatchMessage(peer *Peer, pad *wire.ScratchPad) error {
	if !pad.MessageCode.IsKnown() {
		peer.status = wire.StatusUnknownMessage
		peer.Dispatch(PeerEventUnexpectedMessage, pad)
		return nil
	}

	switch pad.MessageCode {
	case wire.MsgPeerInitRequest:
		peer.Dispatch(PeerEventInitRequestReceived, pad)
		return nil
	case wire.MsgPeerHeartbeat:
		peer.Dispatch(PeerEventHeartbeatReceived, pad)
		return nil
	case wire.MsgPeerUpdateRequest:
		// §9(b): accepted only router-to-radio, validated and acked, never
		// originated by this side.
		peer.Dispatch(PeerEventUpdateRequestReceived, pad)
		return nil
	case wire.MsgPeerTermRequest:
		peer.Dispatch(PeerEventTermRequestReceived, pad)
		return nil
	case wire.MsgPeerTermResponse:
		if pad.Sequence == peer.expectTerm {
			peer.expectTerm = 0
			peer.Dispatch(PeerEventTermAckReceived, pad)
		}
		return nil

	case wire.MsgNeighborUpResponse:
		return dispatchNeighborAck(peer, pad, func(n *Neighbor) bool {
			return pad.Sequence == n.expectUp
		}, func(n *Neighbor) {
			n.expectUp = 0
			n.Dispatch(NeighborEventUpAckReceived)
		})
	case wire.MsgNeighborAddressResponse:
		return dispatchNeighborAck(peer, pad, func(n *Neighbor) bool {
			return pad.Sequence == n.expectAddr
		}, func(n *Neighbor) {
			n.expectAddr = 0
			n.Dispatch(NeighborEventAddressAckReceived)
		})
	case wire.MsgNeighborDownResponse:
		return dispatchNeighborAck(peer, pad, func(n *Neighbor) bool {
			return pad.Sequence == n.expectDown
		}, func(n *Neighbor) {
			n.expectDown = 0
			n.Dispatch(NeighborEventDownAckReceived)
		})
	case wire.MsgNeighborDownRequest:
		return dispatchNeighborRequest(peer, pad, func(n *Neighbor) {
			n.Dispatch(NeighborEventDownRequestReceived)
		})
	case wire.MsgLinkCharacteristicsRequest:
		return dispatchNeighborRequest(peer, pad, func(n *Neighbor) {
			applyLinkCharacteristics(n, pad)
			n.Dispatch(NeighborEventLinkCharacteristicsRequestReceived)
		})

	default:
		// A syntactically valid, recognized code the radio never expects
		// to receive at all (e.g. MsgPeerOffer, MsgPeerDiscovery arriving
		// on the session socket instead of multicast).
		peer.status = wire.StatusUnexpectedMessage
		peer.Dispatch(PeerEventUnexpectedMessage, pad)
		return nil
	}
}

// dispatchNeighborAck resolves pad's MAC to a neighbor and applies fn
// only if matches reports the pending sequence still lines up. A
// missing neighbor or a stale sequence is a silent drop: the ack is for
// a request this side no longer considers outstanding. Any message that
// does resolve to a live neighbor counts as activity (spec §4.5: "every
// received message on a neighbor sets activity-flag").
func dispatchNeighborAck(peer *Peer, pad *wire.ScratchPad, matches func(*Neighbor) bool, fn func(*Neighbor)) error {
	if !pad.HasMAC {
		return nil
	}
	n, ok := peer.neighbors[neighborKey(pad.MAC)]
	if !ok || !matches(n) {
		return nil
	}
	n.Dispatch(NeighborEventActivityObserved)
	fn(n)
	return nil
}

// dispatchNeighborRequest resolves pad's MAC to a neighbor and applies
// fn, or replies wire.StatusUnknownNeighbor directly when no such
// neighbor exists — unlike an ack, a request from the router demands a
// response either way.
func dispatchNeighborRequest(peer *Peer, pad *wire.ScratchPad, fn func(*Neighbor)) error {
	if !pad.HasMAC {
		peer.status = wire.StatusInvalidData
		peer.Dispatch(PeerEventUnexpectedMessage, pad)
		return nil
	}
	n, ok := peer.neighbors[neighborKey(pad.MAC)]
	if !ok {
		var buf []byte
		switch pad.MessageCode {
		case wire.MsgNeighborDownRequest:
			buf = wire.BuildNeighborDownResponse(pad.Sequence, pad.MAC, wire.StatusUnknownNeighbor)
		case wire.MsgLinkCharacteristicsRequest:
			buf = wire.BuildLinkCharacteristicsResponse(pad.Sequence, pad.MAC, wire.StatusUnknownNeighbor, wire.NeighborMetricsParams{})
		}
		if buf != nil {
			_ = peer.sender.Send(buf)
		}
		return nil
	}
	n.Dispatch(NeighborEventActivityObserved)
	fn(n)
	return nil
}

// applyLinkCharacteristics copies any metric fields the router supplied
// in a Link-Characteristics-Request onto the neighbor's live metrics
// snapshot before replying, per spec §4.5's "link characteristics may
// be updated by the router" note.
func applyLinkCharacteristics(n *Neighbor, pad *wire.ScratchPad) {
	if pad.HasMDRTx {
		n.metrics.MDRTx = pad.MDRTx
	}
	if pad.HasMDRRx {
		n.metrics.MDRRx = pad.MDRRx
	}
	if pad.HasCDRTx {
		n.metrics.CDRTx = pad.CDRTx
	}
	if pad.HasCDRRx {
		n.metrics.CDRRx = pad.CDRRx
	}
	if pad.HasLatency {
		n.metrics.Latency = time.Duration(pad.LatencyMS) * time.Millisecond
	}
}
