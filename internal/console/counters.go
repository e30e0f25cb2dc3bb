package console

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dlepradio/dlepd/internal/dlep"
)

// showCountersCmd registers `show counters`: the latest link-metrics
// snapshot (spec §3's Link Metrics TLVs) for every neighbor of every
// peer, flattened into one table.
func (s *Shell) showCountersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counters",
		Short: "Show the latest link metrics for every neighbor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var peers []dlep.PeerSnapshot
			s.core.Submit(func(c *dlep.Core) {
				peers = c.SnapshotPeers()
			})

			fmt.Fprint(cmd.OutOrStdout(), formatCountersTable(peers))
			return nil
		},
	}
}
