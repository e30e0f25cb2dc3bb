package dlep

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dlepradio/dlepd/internal/timerwheel"
	"github.com/dlepradio/dlepd/internal/wire"
)

func testMAC(t *testing.T) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC("02:00:00:00:00:01")
	require.NoError(t, err)
	return mac
}

func TestNeighborFirstMetricSendsUpRequest(t *testing.T) {
	p, s, w := newTestPeer()
	mac := testMAC(t)
	n := NewNeighbor(p, mac, w, s, testLogger(), nil, 5*time.Second)
	p.neighbors[mac.String()] = n

	n.Dispatch(NeighborEventFirstMetricObserved)

	require.Equal(t, NeighborStateInitializing, n.State())
	require.Equal(t, wire.MsgNeighborUpRequest, s.lastCode(t))
	require.NotZero(t, n.expectUp)
}

func TestNeighborUpAckMovesToUpAndArmsActivity(t *testing.T) {
	p, s, w := newTestPeer()
	mac := testMAC(t)
	n := NewNeighbor(p, mac, w, s, testLogger(), nil, 5*time.Second)
	p.neighbors[mac.String()] = n

	n.Dispatch(NeighborEventFirstMetricObserved)
	n.Dispatch(NeighborEventUpAckTimeout) // one missed ack before the real one arrives
	n.Dispatch(NeighborEventUpAckReceived)

	require.Equal(t, NeighborStateUp, n.State())
	require.True(t, n.activityTimer.IsRunning())
	require.True(t, n.updateTimer.IsRunning(), "entering up must arm the periodic neighbor-metrics timer")
	require.False(t, n.upAckTimer.IsRunning(), "the up-ack timer must stop once the ack arrives")
	require.Equal(t, 0, n.missedUp, "the missed-ack counter must reset once the ack arrives")
}

func TestNeighborPeriodicUpdateFiredSendsMetricsAndRearms(t *testing.T) {
	p, s, w := newTestPeer()
	mac := testMAC(t)
	n := NewNeighbor(p, mac, w, s, testLogger(), nil, 5*time.Second)
	p.neighbors[mac.String()] = n
	n.Dispatch(NeighborEventFirstMetricObserved)
	n.Dispatch(NeighborEventUpAckReceived)

	ticksPerUpdate := int(NeighborUpdateInterval.Clamp(NeighborUpdateInterval.Default) / timerwheel.Tick)

	for round := 0; round < 2; round++ {
		sentBefore := len(s.sent)
		for j := 0; j < ticksPerUpdate; j++ {
			w.Advance()
		}
		require.Equal(t, sentBefore+1, len(s.sent), "each interval must send exactly one neighbor-metrics message")
		require.Equal(t, wire.MsgNeighborMetrics, s.lastCode(t))
		require.True(t, n.updateTimer.IsRunning(), "the periodic update timer must re-arm itself")
	}
}

func TestNeighborUpAckGivesUpOneRetransmitEarly(t *testing.T) {
	p, s, w := newTestPeer()
	mac := testMAC(t)
	n := NewNeighbor(p, mac, w, s, testLogger(), nil, 5*time.Second)
	p.neighbors[mac.String()] = n
	n.Dispatch(NeighborEventFirstMetricObserved)

	ticksPerTimeout := int(NeighborUpAckTimeout.Clamp(NeighborUpAckTimeout.Default) / timerwheel.Tick)

	for i := 0; i < NeighborUpMissedThreshold.Default-1; i++ {
		for j := 0; j < ticksPerTimeout; j++ {
			w.Advance()
		}
		_, stillTracked := p.neighbors[mac.String()]
		require.True(t, stillTracked)
	}
	sentBeforeGiveUp := len(s.sent)

	for j := 0; j < ticksPerTimeout; j++ {
		w.Advance()
	}
	_, stillTracked := p.neighbors[mac.String()]
	require.False(t, stillTracked, "giving up destroys the neighbor")
	require.Equal(t, sentBeforeGiveUp, len(s.sent), "giving up must not send one more retransmit")
}

func TestNeighborDownRequestDestroysEntryFromPeerTable(t *testing.T) {
	p, s, w := newTestPeer()
	mac := testMAC(t)
	n := NewNeighbor(p, mac, w, s, testLogger(), nil, 5*time.Second)
	p.neighbors[mac.String()] = n

	n.Dispatch(NeighborEventFirstMetricObserved)
	n.Dispatch(NeighborEventUpAckReceived)
	n.Dispatch(NeighborEventDownRequestReceived)

	require.Equal(t, NeighborStateDown, n.State())
	_, ok := p.neighbors[mac.String()]
	require.False(t, ok)
}

func TestNeighborSendDownArmsAckTimerAndRetransmitsOnTimeout(t *testing.T) {
	p, s, w := newTestPeer()
	mac := testMAC(t)
	n := NewNeighbor(p, mac, w, s, testLogger(), nil, 5*time.Second)
	p.neighbors[mac.String()] = n
	n.Dispatch(NeighborEventFirstMetricObserved)
	n.Dispatch(NeighborEventUpAckReceived)

	n.Dispatch(NeighborEventSendDownRequested)
	require.Equal(t, NeighborStateTerminating, n.State())
	firstSeq := n.expectDown

	n.Dispatch(NeighborEventDownAckTimeout)
	require.Equal(t, NeighborStateTerminating, n.State())
	require.NotEqual(t, firstSeq, n.expectDown, "retransmit must use a fresh sequence number")
}
