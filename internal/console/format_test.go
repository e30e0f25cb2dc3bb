package console

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dlepradio/dlepd/internal/dlep"
	"github.com/dlepradio/dlepd/internal/wire"
)

func samplePeers() []dlep.PeerSnapshot {
	return []dlep.PeerSnapshot{
		{
			ID:       1,
			PeerType: "radio-1",
			State:    "InSession",
			Neighbors: []dlep.NeighborSnapshot{
				{
					MAC:   "aa:bb:cc:dd:ee:ff",
					State: "Up",
					Metrics: dlep.NeighborMetrics{
						NeighborMetricsParams: wire.NeighborMetricsParams{
							MDRTx:   1000,
							MDRRx:   900,
							CDRTx:   800,
							CDRRx:   700,
							Latency: 5 * time.Millisecond,
							MTU:     1500,
						},
					},
				},
			},
		},
	}
}

func TestFormatPeerTableListsEveryPeer(t *testing.T) {
	out := formatPeerTable(samplePeers())
	require.Contains(t, out, "radio-1")
	require.Contains(t, out, "InSession")
}

func TestFormatPeerDetailIncludesNeighborTable(t *testing.T) {
	peers := samplePeers()
	out := formatPeerDetail(peers[0])
	require.Contains(t, out, "Peer ID:")
	require.Contains(t, out, "aa:bb:cc:dd:ee:ff")
}

func TestFormatNeighborTableRendersMetrics(t *testing.T) {
	out := formatNeighborTable(samplePeers()[0].Neighbors)
	require.True(t, strings.Contains(out, "1000"))
	require.True(t, strings.Contains(out, "Up"))
}

func TestFormatCountersTableFlattensAllPeers(t *testing.T) {
	out := formatCountersTable(samplePeers())
	require.Contains(t, out, "aa:bb:cc:dd:ee:ff")
	require.Contains(t, out, "5ms")
}

func TestFormatPeerTableEmpty(t *testing.T) {
	out := formatPeerTable(nil)
	require.Contains(t, out, "ID")
	require.NotContains(t, out, "\n\n")
}
