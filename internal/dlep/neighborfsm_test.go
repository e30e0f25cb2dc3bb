package dlep

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNeighborFSMFirstMetricSendsUpAndArmsTimer(t *testing.T) {
	next, actions, ok := ApplyNeighborEvent(NeighborStateInitializing, NeighborEventFirstMetricObserved)
	require.True(t, ok)
	require.Equal(t, NeighborStateInitializing, next)
	require.Equal(t, []NeighborAction{ActionSendNeighborUp, ActionArmUpAckTimer}, actions)
}

func TestNeighborFSMUpAckMovesToUpAndArmsActivity(t *testing.T) {
	next, actions, ok := ApplyNeighborEvent(NeighborStateInitializing, NeighborEventUpAckReceived)
	require.True(t, ok)
	require.Equal(t, NeighborStateUp, next)
	require.Contains(t, actions, ActionArmActivityTimer)
	require.Contains(t, actions, ActionArmUpdateTimer)
	require.Contains(t, actions, ActionResetUpAckTracking)
}

func TestNeighborFSMUpAckTimeoutRetransmits(t *testing.T) {
	next, actions, ok := ApplyNeighborEvent(NeighborStateInitializing, NeighborEventUpAckTimeout)
	require.True(t, ok)
	require.Equal(t, NeighborStateInitializing, next)
	require.Contains(t, actions, ActionRetransmitNeighborUp)
	require.Contains(t, actions, ActionIncrMissedUpAcks)
}

func TestNeighborFSMActivityTimerExpirySynthesizesDown(t *testing.T) {
	next, actions, ok := ApplyNeighborEvent(NeighborStateUp, NeighborEventActivityTimerExpired)
	require.True(t, ok)
	require.Equal(t, NeighborStateTerminating, next)
	require.Contains(t, actions, ActionSendNeighborDownRequest)
}

func TestNeighborFSMDownAckCompletesAndDestroys(t *testing.T) {
	next, actions, ok := ApplyNeighborEvent(NeighborStateTerminating, NeighborEventDownAckReceived)
	require.True(t, ok)
	require.Equal(t, NeighborStateDown, next)
	require.Contains(t, actions, ActionDestroyNeighbor)
}

func TestNeighborFSMDownAckTimeoutRetransmitsWhileTerminating(t *testing.T) {
	next, actions, ok := ApplyNeighborEvent(NeighborStateTerminating, NeighborEventDownAckTimeout)
	require.True(t, ok)
	require.Equal(t, NeighborStateTerminating, next)
	require.Contains(t, actions, ActionRetransmitNeighborDown)
}

func TestNeighborFSMRemoteDownRequestWhileUpTearsDownImmediately(t *testing.T) {
	next, actions, ok := ApplyNeighborEvent(NeighborStateUp, NeighborEventDownRequestReceived)
	require.True(t, ok)
	require.Equal(t, NeighborStateDown, next)
	require.Contains(t, actions, ActionSendNeighborDownResponse)
	require.Contains(t, actions, ActionDestroyNeighbor)
}

func TestNeighborFSMUnknownEventIgnored(t *testing.T) {
	_, actions, ok := ApplyNeighborEvent(NeighborStateDown, NeighborEventFirstMetricObserved)
	require.False(t, ok)
	require.Nil(t, actions)
}

func TestNeighborStateAndEventStringers(t *testing.T) {
	require.Equal(t, "up", NeighborStateUp.String())
	require.Equal(t, "unknown", NeighborState(99).String())
	require.Equal(t, "activity-timer-expired", NeighborEventActivityTimerExpired.String())
	require.Equal(t, "unknown", NeighborEvent(99).String())
}
