package dlep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dlepradio/dlepd/internal/wire"
)

func testPeerConfig() PeerConfig {
	return PeerConfig{LocalType: "radio", HeartbeatInterval: 5 * time.Second, HeartbeatMissed: 3, TermAckTimeout: time.Second, TermMissed: 3}
}

func TestCoreCleanPeerLifecycle(t *testing.T) {
	c := NewCore("radio", testLogger(), nil)
	sender := &fakeSender{}
	peer := c.AcceptPeer(sender, testPeerConfig())

	require.NoError(t, c.HandleMessage(peer.ID(), wire.BuildPeerInitRequest(1, "router-x", 5*time.Second)))
	require.Equal(t, PeerStateInSession, peer.State())

	require.NoError(t, c.HandleMessage(peer.ID(), wire.BuildPeerHeartbeat(2)))
	require.Equal(t, 0, peer.missedHeartbeats)

	peer.Dispatch(PeerEventSendTermRequested, nil)
	require.Equal(t, PeerStateTerminating, peer.State())

	require.NoError(t, c.HandleMessage(peer.ID(), wire.BuildPeerTermResponse(peer.expectTerm, wire.StatusSuccess)))
	require.Equal(t, PeerStateReset, peer.State())
}

func TestCoreUnknownNeighborAckSilentlyDropped(t *testing.T) {
	c := NewCore("radio", testLogger(), nil)
	sender := &fakeSender{}
	peer := c.AcceptPeer(sender, testPeerConfig())
	peer.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})

	mac := testMAC(t)
	err := c.HandleMessage(peer.ID(), wire.BuildNeighborUpResponse(1, mac, wire.StatusSuccess))
	require.NoError(t, err)
	require.Empty(t, peer.neighbors)
}

func TestCoreUnknownNeighborDownRequestGetsErrorResponse(t *testing.T) {
	c := NewCore("radio", testLogger(), nil)
	sender := &fakeSender{}
	peer := c.AcceptPeer(sender, testPeerConfig())
	peer.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})

	mac := testMAC(t)
	require.NoError(t, c.HandleMessage(peer.ID(), wire.BuildNeighborDownRequest(1, mac, wire.StatusSuccess)))

	require.NotEmpty(t, sender.sent)
	var pad wire.ScratchPad
	require.NoError(t, wire.DecodeMessage(sender.sent[len(sender.sent)-1], &pad))
	require.Equal(t, wire.MsgNeighborDownResponse, pad.MessageCode)
	require.Equal(t, wire.StatusUnknownNeighbor, pad.Status)
}

func TestCoreMalformedMessageStaysInSession(t *testing.T) {
	c := NewCore("radio", testLogger(), nil)
	sender := &fakeSender{}
	peer := c.AcceptPeer(sender, testPeerConfig())
	peer.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})

	err := c.HandleMessage(peer.ID(), []byte{0xff, 0xff})
	require.Error(t, err)
	require.Equal(t, PeerStateInSession, peer.State())
}

func TestCoreHandleMessageUnknownPeerID(t *testing.T) {
	c := NewCore("radio", testLogger(), nil)
	err := c.HandleMessage(999, wire.BuildPeerHeartbeat(1))
	require.ErrorIs(t, err, ErrUnknownPeer)
}

func TestCoreDiscoveryAttachedRepliesWithOffer(t *testing.T) {
	c := NewCore("radio", testLogger(), nil)
	sender := &fakeSender{}

	require.NoError(t, c.HandleDiscovery(wire.BuildPeerDiscovery(true), sender))

	require.Len(t, sender.sent, 1)
	var pad wire.ScratchPad
	require.NoError(t, wire.DecodeSignal(sender.sent[0], &pad))
	require.Equal(t, wire.SignalPeerOffer, pad.SignalType)
}

func TestCoreDiscoveryWithoutAttachedFlagIsIgnored(t *testing.T) {
	c := NewCore("radio", testLogger(), nil)
	sender := &fakeSender{}

	require.NoError(t, c.HandleDiscovery(wire.BuildPeerDiscovery(false), sender))

	require.Empty(t, sender.sent)
}

func TestCoreNeighborActivityObservedPreventsSynthesizedDown(t *testing.T) {
	c := NewCore("radio", testLogger(), nil)
	sender := &fakeSender{}
	peer := c.AcceptPeer(sender, testPeerConfig())
	peer.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})

	mac := testMAC(t)
	n := NewNeighbor(peer, mac, c.wheel, sender, testLogger(), nil, 300*time.Millisecond)
	peer.neighbors[mac.String()] = n
	n.Dispatch(NeighborEventFirstMetricObserved)
	n.Dispatch(NeighborEventUpAckReceived)
	require.Equal(t, NeighborStateUp, n.State())

	// A Link-Characteristics-Request every tick keeps the neighbor alive
	// well past the activity-timer's own 3-tick duration, because each one
	// re-arms it (spec §4.5: "every received message...sets activity-flag").
	for i := 0; i < 6; i++ {
		require.NoError(t, dispatchMessage(peer, &wire.ScratchPad{
			MessageCode: wire.MsgLinkCharacteristicsRequest,
			MAC:         mac,
			HasMAC:      true,
		}))
		c.Advance()
	}

	require.Equal(t, NeighborStateUp, n.State())
}

func TestCoreObserveMetricCreatesNeighborOnFirstSample(t *testing.T) {
	c := NewCore("radio", testLogger(), nil)
	sender := &fakeSender{}
	peer := c.AcceptPeer(sender, testPeerConfig())
	peer.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})

	mac := testMAC(t)
	sample := NeighborMetricSample{MAC: mac, Metrics: wire.NeighborMetricsParams{MDRTx: 5000}}

	require.NoError(t, c.ObserveMetric(peer.ID(), sample))

	n, ok := peer.Neighbor(mac.String())
	require.True(t, ok)
	require.Equal(t, NeighborStateInitializing, n.State())
	require.Equal(t, wire.MsgNeighborUpRequest, sender.lastCode(t))

	sample.Metrics.MDRTx = 9000
	require.NoError(t, c.ObserveMetric(peer.ID(), sample))
	n, _ = peer.Neighbor(mac.String())
	require.Equal(t, uint64(9000), n.Metrics().MDRTx, "a known MAC refreshes its metrics snapshot instead of re-creating")
}

func TestCoreObserveMetricUnknownPeer(t *testing.T) {
	c := NewCore("radio", testLogger(), nil)
	err := c.ObserveMetric(999, NeighborMetricSample{MAC: testMAC(t)})
	require.ErrorIs(t, err, ErrUnknownPeer)
}

func TestCoreNeighborActivitySupervisionSynthesizesDown(t *testing.T) {
	c := NewCore("radio", testLogger(), nil)
	sender := &fakeSender{}
	peer := c.AcceptPeer(sender, testPeerConfig())
	peer.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})

	mac := testMAC(t)
	n := NewNeighbor(peer, mac, c.wheel, sender, testLogger(), nil, 100*time.Millisecond)
	peer.neighbors[mac.String()] = n
	n.Dispatch(NeighborEventFirstMetricObserved)
	n.Dispatch(NeighborEventUpAckReceived)
	require.Equal(t, NeighborStateUp, n.State())

	for i := 0; i < 3; i++ {
		c.Advance()
	}

	require.Equal(t, NeighborStateTerminating, n.State())
}
