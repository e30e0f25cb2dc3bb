package dlep

import "fmt"

// PeerState is one state of the per-peer session state machine (spec
// §4.4). States and events are small closed enums, and the transition
// table is a single package-level map literal rather than a switch
// tree, so every (state,event) pair is forced into the open or handled
// explicitly.
type PeerState int

const (
	PeerStateDiscovery PeerState = iota
	PeerStateInitialization
	PeerStateInSession
	PeerStateTerminating
	PeerStateReset
)

func (s PeerState) String() string {
	switch s {
	case PeerStateDiscovery:
		return "discovery"
	case PeerStateInitialization:
		return "initialization"
	case PeerStateInSession:
		return "in-session"
	case PeerStateTerminating:
		return "terminating"
	case PeerStateReset:
		return "reset"
	default:
		return "unknown"
	}
}

// PeerEvent is one input to the peer FSM.
type PeerEvent int

const (
	PeerEventAttachedDiscoveryReceived PeerEvent = iota
	PeerEventInitRequestReceived
	PeerEventHeartbeatReceived
	PeerEventHeartbeatTimerFired
	PeerEventHeartbeatMissedTimeout
	PeerEventUpdateRequestReceived
	PeerEventTermRequestReceived
	PeerEventSendTermRequested
	PeerEventTermAckReceived
	PeerEventTermAckTimeout
	PeerEventUnexpectedMessage
)

func (e PeerEvent) String() string {
	switch e {
	case PeerEventAttachedDiscoveryReceived:
		return "attached-discovery-received"
	case PeerEventInitRequestReceived:
		return "init-request-received"
	case PeerEventHeartbeatReceived:
		return "heartbeat-received"
	case PeerEventHeartbeatTimerFired:
		return "heartbeat-timer-fired"
	case PeerEventHeartbeatMissedTimeout:
		return "heartbeat-missed-timeout"
	case PeerEventUpdateRequestReceived:
		return "update-request-received"
	case PeerEventTermRequestReceived:
		return "term-request-received"
	case PeerEventSendTermRequested:
		return "send-term-requested"
	case PeerEventTermAckReceived:
		return "term-ack-received"
	case PeerEventTermAckTimeout:
		return "term-ack-timeout"
	case PeerEventUnexpectedMessage:
		return "unexpected-message"
	default:
		return "unknown"
	}
}

// PeerAction is one side effect a transition asks the caller (peer.go)
// to perform. Actions are returned, never executed by the FSM itself,
// so ApplyPeerEvent stays a pure {nextState, actions} function.
type PeerAction int

const (
	ActionSendPeerOffer PeerAction = iota
	ActionSendPeerInitResponse
	ActionSendPeerUpdateResponse
	ActionSendHeartbeat
	ActionSendTermRequest
	ActionSendTermResponse
	ActionRetransmitTermRequest
	ActionArmHeartbeatSendTimer
	ActionArmHeartbeatMissedTimer
	ActionArmTermAckTimer
	ActionArmPeerOfferTimer
	ActionStopPeerOfferTimer
	ActionStopAllTimers
	ActionResetMissedHeartbeats
	ActionIncrMissedHeartbeats
	ActionIncrMissedTermAcks
	ActionEmitStateChange
	ActionInitiateTermination
)

// peerStateEvent is the dispatch table's key.
type peerStateEvent struct {
	state PeerState
	event PeerEvent
}

// peerTransition is the dispatch table's value: the next state plus the
// ordered actions peer.go must perform to realize it.
type peerTransition struct {
	next    PeerState
	actions []PeerAction
}

// peerFSMTable is the full (state,event) -> transition map for spec
// §4.4. Every entry not present is an ignored event in that state: the
// FSM stays put and performs no action (e.g. a stray heartbeat arriving
// mid-termination is simply dropped).
//
// The §9(b) open-question resolution is encoded by omission: there is
// no event for "originate a Peer-Update-Request" because the radio
// never sends one — PeerEventUpdateRequestReceived is handled only as
// an inbound event the radio acknowledges.
var peerFSMTable = map[peerStateEvent]peerTransition{
	{PeerStateDiscovery, PeerEventAttachedDiscoveryReceived}: {
		next:    PeerStateDiscovery,
		actions: []PeerAction{ActionSendPeerOffer, ActionArmPeerOfferTimer},
	},
	{PeerStateDiscovery, PeerEventInitRequestReceived}: {
		next: PeerStateInSession,
		actions: []PeerAction{
			ActionSendPeerInitResponse,
			ActionStopPeerOfferTimer,
			ActionArmHeartbeatSendTimer,
			ActionArmHeartbeatMissedTimer,
			ActionEmitStateChange,
		},
	},
	{PeerStateInitialization, PeerEventInitRequestReceived}: {
		// A second Peer-Init-Request while still initializing supersedes
		// the first (tie-break rule: newer request wins, older timer is
		// implicitly dropped by re-arming it below).
		next: PeerStateInSession,
		actions: []PeerAction{
			ActionSendPeerInitResponse,
			ActionStopPeerOfferTimer,
			ActionArmHeartbeatSendTimer,
			ActionArmHeartbeatMissedTimer,
			ActionEmitStateChange,
		},
	},

	{PeerStateInSession, PeerEventHeartbeatReceived}: {
		next:    PeerStateInSession,
		actions: []PeerAction{ActionResetMissedHeartbeats, ActionArmHeartbeatMissedTimer},
	},
	{PeerStateInSession, PeerEventHeartbeatTimerFired}: {
		next:    PeerStateInSession,
		actions: []PeerAction{ActionSendHeartbeat, ActionArmHeartbeatSendTimer},
	},
	{PeerStateInSession, PeerEventHeartbeatMissedTimeout}: {
		next:    PeerStateInSession,
		actions: []PeerAction{ActionIncrMissedHeartbeats},
	},
	{PeerStateInSession, PeerEventUpdateRequestReceived}: {
		next:    PeerStateInSession,
		actions: []PeerAction{ActionSendPeerUpdateResponse},
	},
	{PeerStateInSession, PeerEventTermRequestReceived}: {
		next: PeerStateReset,
		actions: []PeerAction{
			ActionSendTermResponse,
			ActionStopAllTimers,
			ActionEmitStateChange,
		},
	},
	{PeerStateInSession, PeerEventSendTermRequested}: {
		next: PeerStateTerminating,
		actions: []PeerAction{
			ActionSendTermRequest,
			ActionArmTermAckTimer,
			ActionEmitStateChange,
		},
	},
	{PeerStateInSession, PeerEventUnexpectedMessage}: {
		next:    PeerStateInSession,
		actions: []PeerAction{ActionInitiateTermination},
	},

	{PeerStateTerminating, PeerEventTermAckReceived}: {
		next:    PeerStateReset,
		actions: []PeerAction{ActionStopAllTimers, ActionEmitStateChange},
	},
	{PeerStateTerminating, PeerEventTermRequestReceived}: {
		// Simultaneous termination: the peer we're terminating also sent
		// us a term request. Answer it and finish our own teardown.
		next:    PeerStateReset,
		actions: []PeerAction{ActionSendTermResponse, ActionStopAllTimers, ActionEmitStateChange},
	},
	{PeerStateTerminating, PeerEventTermAckTimeout}: {
		next:    PeerStateTerminating,
		actions: []PeerAction{ActionIncrMissedTermAcks, ActionRetransmitTermRequest, ActionArmTermAckTimer},
	},
}

// ApplyPeerEvent looks up the transition for (state,event) and returns
// it. ok is false when the event is not defined for that state, in
// which case the caller must treat the event as ignored rather than an
// error — not every (state,event) pair is meaningful (spec §4.4: FSMs
// silently absorb events the current state doesn't care about).
func ApplyPeerEvent(state PeerState, event PeerEvent) (next PeerState, actions []PeerAction, ok bool) {
	t, found := peerFSMTable[peerStateEvent{state, event}]
	if !found {
		return state, nil, false
	}
	return t.next, t.actions, true
}

// peerTransitionError reports an event delivered to ApplyPeerEvent in a
// state where the caller expected it to be handled but the table had no
// entry. Nothing in the package constructs it at present: Peer.Dispatch
// logs and ignores any event ApplyPeerEvent reports with ok=false.
type peerTransitionError struct {
	state PeerState
	event PeerEvent
}

func (e *peerTransitionError) Error() string {
	return fmt.Sprintf("dlep: no peer transition for state=%s event=%s", e.state, e.event)
}
