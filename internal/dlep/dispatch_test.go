package dlep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dlepradio/dlepd/internal/wire"
)

func TestDispatchNeighborUpResponseAdvancesMatchingNeighbor(t *testing.T) {
	p, s, w := newTestPeer()
	mac := testMAC(t)
	n := NewNeighbor(p, mac, w, s, testLogger(), nil, 5*time.Second)
	p.neighbors[mac.String()] = n
	n.Dispatch(NeighborEventFirstMetricObserved)
	seq := n.expectUp

	err := dispatchMessage(p, &wire.ScratchPad{
		MessageCode: wire.MsgNeighborUpResponse,
		Sequence:    seq,
		MAC:         mac,
		HasMAC:      true,
	})

	require.NoError(t, err)
	require.Equal(t, NeighborStateUp, n.State())
}

func TestDispatchNeighborUpResponseStaleSequenceIgnored(t *testing.T) {
	p, s, w := newTestPeer()
	mac := testMAC(t)
	n := NewNeighbor(p, mac, w, s, testLogger(), nil, 5*time.Second)
	p.neighbors[mac.String()] = n
	n.Dispatch(NeighborEventFirstMetricObserved)

	err := dispatchMessage(p, &wire.ScratchPad{
		MessageCode: wire.MsgNeighborUpResponse,
		Sequence:    n.expectUp + 1,
		MAC:         mac,
		HasMAC:      true,
	})

	require.NoError(t, err)
	require.Equal(t, NeighborStateInitializing, n.State())
}

func TestDispatchUnknownMessageCodeInitiatesTermination(t *testing.T) {
	p, _, _ := newTestPeer()
	p.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})

	err := dispatchMessage(p, &wire.ScratchPad{MessageCode: wire.MessageCode(999)})

	require.NoError(t, err)
	require.Equal(t, PeerStateTerminating, p.State())
}

func TestDispatchLinkCharacteristicsRequestUpdatesMetricsAndReplies(t *testing.T) {
	p, s, w := newTestPeer()
	mac := testMAC(t)
	n := NewNeighbor(p, mac, w, s, testLogger(), nil, 5*time.Second)
	p.neighbors[mac.String()] = n
	n.Dispatch(NeighborEventFirstMetricObserved)
	n.Dispatch(NeighborEventUpAckReceived)

	err := dispatchMessage(p, &wire.ScratchPad{
		MessageCode: wire.MsgLinkCharacteristicsRequest,
		MAC:         mac,
		HasMAC:      true,
		MDRTx:       1000,
		HasMDRTx:    true,
	})

	require.NoError(t, err)
	require.Equal(t, uint64(1000), n.Metrics().MDRTx)
	require.Equal(t, wire.MsgLinkCharacteristicsResponse, s.lastCode(t))
}
