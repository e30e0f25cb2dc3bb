package console

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dlepradio/dlepd/internal/dlep"
)

func newTabwriter(buf *strings.Builder) *tabwriter.Writer {
	return tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
}

func formatPeerTable(peers []dlep.PeerSnapshot) string {
	var buf strings.Builder
	w := newTabwriter(&buf)
	fmt.Fprintln(w, "ID\tTYPE\tSTATE\tNEIGHBORS")

	for _, p := range peers {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", p.ID, p.PeerType, p.State, len(p.Neighbors))
	}

	w.Flush()
	return buf.String()
}

func formatPeerDetail(p dlep.PeerSnapshot) string {
	var buf strings.Builder
	w := newTabwriter(&buf)

	fmt.Fprintf(w, "Peer ID:\t%d\n", p.ID)
	fmt.Fprintf(w, "Peer Type:\t%s\n", p.PeerType)
	fmt.Fprintf(w, "State:\t%s\n", p.State)
	fmt.Fprintf(w, "Neighbor Count:\t%d\n", len(p.Neighbors))
	w.Flush()

	buf.WriteString("\n")
	buf.WriteString(formatNeighborTable(p.Neighbors))

	return buf.String()
}

func formatNeighborTable(neighbors []dlep.NeighborSnapshot) string {
	var buf strings.Builder
	w := newTabwriter(&buf)
	fmt.Fprintln(w, "MAC\tSTATE\tMDR-TX\tMDR-RX\tLATENCY\tRLQ-TX\tRLQ-RX")

	for _, n := range neighbors {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%d\t%d\n",
			n.MAC, n.State,
			n.Metrics.MDRTx, n.Metrics.MDRRx,
			n.Metrics.Latency,
			n.Metrics.RLQTx, n.Metrics.RLQRx,
		)
	}

	w.Flush()
	return buf.String()
}

func formatCountersTable(peers []dlep.PeerSnapshot) string {
	var buf strings.Builder
	w := newTabwriter(&buf)
	fmt.Fprintln(w, "PEER\tMAC\tMDR-TX\tMDR-RX\tCDR-TX\tCDR-RX\tLATENCY\tMTU")

	for _, p := range peers {
		for _, n := range p.Neighbors {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%s\t%d\n",
				p.ID, n.MAC,
				n.Metrics.MDRTx, n.Metrics.MDRRx,
				n.Metrics.CDRTx, n.Metrics.CDRRx,
				n.Metrics.Latency, n.Metrics.MTU,
			)
		}
	}

	w.Flush()
	return buf.String()
}
