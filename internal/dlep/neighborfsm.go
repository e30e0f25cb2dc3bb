package dlep

// NeighborState is one state of the per-neighbor lifecycle state
// machine (spec §4.5). Mirrors peerfsm.go's dispatch-table shape at a
// smaller scale: a neighbor's lifecycle has three states instead of
// five, but uses the identical retransmit-with-threshold idiom as the
// peer's termination handshake.
type NeighborState int

const (
	NeighborStateInitializing NeighborState = iota
	NeighborStateUp
	NeighborStateTerminating
	NeighborStateDown
)

func (s NeighborState) String() string {
	switch s {
	case NeighborStateInitializing:
		return "initializing"
	case NeighborStateUp:
		return "up"
	case NeighborStateTerminating:
		return "terminating"
	case NeighborStateDown:
		return "down"
	default:
		return "unknown"
	}
}

// NeighborEvent is one input to the neighbor FSM.
type NeighborEvent int

const (
	NeighborEventFirstMetricObserved NeighborEvent = iota
	NeighborEventUpAckReceived
	NeighborEventUpAckTimeout
	NeighborEventPeriodicUpdateFired
	NeighborEventAddressUpdateRequested
	NeighborEventAddressAckReceived
	NeighborEventLinkCharacteristicsRequestReceived
	NeighborEventActivityObserved
	NeighborEventActivityTimerExpired
	NeighborEventDownRequestReceived
	NeighborEventSendDownRequested
	NeighborEventDownAckReceived
	NeighborEventDownAckTimeout
)

func (e NeighborEvent) String() string {
	switch e {
	case NeighborEventFirstMetricObserved:
		return "first-metric-observed"
	case NeighborEventUpAckReceived:
		return "up-ack-received"
	case NeighborEventUpAckTimeout:
		return "up-ack-timeout"
	case NeighborEventPeriodicUpdateFired:
		return "periodic-update-fired"
	case NeighborEventAddressUpdateRequested:
		return "address-update-requested"
	case NeighborEventAddressAckReceived:
		return "address-ack-received"
	case NeighborEventLinkCharacteristicsRequestReceived:
		return "link-characteristics-request-received"
	case NeighborEventActivityObserved:
		return "activity-observed"
	case NeighborEventActivityTimerExpired:
		return "activity-timer-expired"
	case NeighborEventDownRequestReceived:
		return "down-request-received"
	case NeighborEventSendDownRequested:
		return "send-down-requested"
	case NeighborEventDownAckReceived:
		return "down-ack-received"
	case NeighborEventDownAckTimeout:
		return "down-ack-timeout"
	default:
		return "unknown"
	}
}

// NeighborAction is one side effect a transition asks neighbor.go to
// perform.
type NeighborAction int

const (
	ActionSendNeighborUp NeighborAction = iota
	ActionArmUpAckTimer
	ActionResetUpAckTracking
	ActionRetransmitNeighborUp
	ActionIncrMissedUpAcks
	ActionSendNeighborMetrics
	ActionArmUpdateTimer
	ActionSendNeighborAddressRequest
	ActionArmAddressAckTimer
	ActionSendLinkCharacteristicsResponse
	ActionArmActivityTimer
	ActionSendNeighborDownRequest
	ActionSendNeighborDownResponse
	ActionRetransmitNeighborDown
	ActionIncrMissedDownAcks
	ActionArmDownAckTimer
	ActionStopAllNeighborTimers
	ActionEmitNeighborStateChange
	ActionDestroyNeighbor
)

type neighborStateEvent struct {
	state NeighborState
	event NeighborEvent
}

type neighborTransition struct {
	next    NeighborState
	actions []NeighborAction
}

// neighborFSMTable is the full (state,event) -> transition map for spec
// §4.5.
//
// The §9(a) open-question resolution — a late up-ack-timer or
// down-ack-timer fire racing an ack that already arrived — is NOT
// encoded here: the table assumes the timer fire is genuine. The race
// itself is closed one layer down: the timer wheel never fires a stopped
// timer, and neighbor.go's retransmit callback checks the expected-
// sequence slot before ever emitting NeighborEventUpAckTimeout /
// NeighborEventDownAckTimeout to this table. By the time an event
// reaches ApplyNeighborEvent it is already known-live.
var neighborFSMTable = map[neighborStateEvent]neighborTransition{
	{NeighborStateInitializing, NeighborEventFirstMetricObserved}: {
		next:    NeighborStateInitializing,
		actions: []NeighborAction{ActionSendNeighborUp, ActionArmUpAckTimer},
	},
	{NeighborStateInitializing, NeighborEventUpAckReceived}: {
		next: NeighborStateUp,
		actions: []NeighborAction{
			ActionResetUpAckTracking,
			ActionArmActivityTimer,
			ActionArmUpdateTimer,
			ActionEmitNeighborStateChange,
		},
	},
	{NeighborStateInitializing, NeighborEventUpAckTimeout}: {
		next:    NeighborStateInitializing,
		actions: []NeighborAction{ActionIncrMissedUpAcks, ActionRetransmitNeighborUp, ActionArmUpAckTimer},
	},

	{NeighborStateUp, NeighborEventPeriodicUpdateFired}: {
		next:    NeighborStateUp,
		actions: []NeighborAction{ActionSendNeighborMetrics},
	},
	{NeighborStateUp, NeighborEventAddressUpdateRequested}: {
		next:    NeighborStateUp,
		actions: []NeighborAction{ActionSendNeighborAddressRequest, ActionArmAddressAckTimer},
	},
	{NeighborStateUp, NeighborEventAddressAckReceived}: {
		next:    NeighborStateUp,
		actions: []NeighborAction{},
	},
	{NeighborStateUp, NeighborEventLinkCharacteristicsRequestReceived}: {
		next:    NeighborStateUp,
		actions: []NeighborAction{ActionSendLinkCharacteristicsResponse},
	},
	{NeighborStateUp, NeighborEventActivityObserved}: {
		next:    NeighborStateUp,
		actions: []NeighborAction{ActionArmActivityTimer},
	},
	{NeighborStateUp, NeighborEventActivityTimerExpired}: {
		// Server-side activity supervision: silence past the bound
		// synthesizes a local down rather than waiting on the router.
		next:    NeighborStateTerminating,
		actions: []NeighborAction{ActionSendNeighborDownRequest, ActionArmDownAckTimer, ActionEmitNeighborStateChange},
	},
	{NeighborStateUp, NeighborEventDownRequestReceived}: {
		next: NeighborStateDown,
		actions: []NeighborAction{
			ActionSendNeighborDownResponse,
			ActionStopAllNeighborTimers,
			ActionEmitNeighborStateChange,
			ActionDestroyNeighbor,
		},
	},
	{NeighborStateUp, NeighborEventSendDownRequested}: {
		next: NeighborStateTerminating,
		actions: []NeighborAction{
			ActionSendNeighborDownRequest,
			ActionArmDownAckTimer,
			ActionEmitNeighborStateChange,
		},
	},

	{NeighborStateTerminating, NeighborEventDownAckReceived}: {
		next: NeighborStateDown,
		actions: []NeighborAction{
			ActionStopAllNeighborTimers,
			ActionEmitNeighborStateChange,
			ActionDestroyNeighbor,
		},
	},
	{NeighborStateTerminating, NeighborEventDownRequestReceived}: {
		// Simultaneous down: the peer also requested teardown while we
		// were already tearing down ourselves.
		next: NeighborStateDown,
		actions: []NeighborAction{
			ActionSendNeighborDownResponse,
			ActionStopAllNeighborTimers,
			ActionEmitNeighborStateChange,
			ActionDestroyNeighbor,
		},
	},
	{NeighborStateTerminating, NeighborEventDownAckTimeout}: {
		next:    NeighborStateTerminating,
		actions: []NeighborAction{ActionIncrMissedDownAcks, ActionRetransmitNeighborDown, ActionArmDownAckTimer},
	},
}

// ApplyNeighborEvent looks up the transition for (state,event). As with
// ApplyPeerEvent, an absent entry means the event is ignored in that
// state, not an error.
func ApplyNeighborEvent(state NeighborState, event NeighborEvent) (next NeighborState, actions []NeighborAction, ok bool) {
	t, found := neighborFSMTable[neighborStateEvent{state, event}]
	if !found {
		return state, nil, false
	}
	return t.next, t.actions, true
}
