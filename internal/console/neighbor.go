package console

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dlepradio/dlepd/internal/dlep"
)

// showNeighborCmd registers `show neighbor <peer-id>`: every neighbor
// currently known to that peer.
func (s *Shell) showNeighborCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "neighbor <peer-id>",
		Short: "List the neighbors known to one peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("parse peer id %q: %w", args[0], err)
			}

			var (
				peer  dlep.PeerSnapshot
				found bool
			)
			s.core.Submit(func(c *dlep.Core) {
				peer, found = c.SnapshotPeer(uint32(id))
			})
			if !found {
				return fmt.Errorf("no such peer: %d", id)
			}

			fmt.Fprint(cmd.OutOrStdout(), formatNeighborTable(peer.Neighbors))
			return nil
		},
	}
}
