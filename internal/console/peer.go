package console

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dlepradio/dlepd/internal/dlep"
)

// showPeerCmd registers `show peer [id]`: with no argument it lists
// every peer; with a numeric argument it prints one peer's detail,
// including its neighbor table.
func (s *Shell) showPeerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peer [id]",
		Short: "List peers, or show one peer's detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return s.listPeers(cmd)
			}
			return s.showOnePeer(cmd, args[0])
		},
	}
}

func (s *Shell) listPeers(cmd *cobra.Command) error {
	var peers []dlep.PeerSnapshot
	s.core.Submit(func(c *dlep.Core) {
		peers = c.SnapshotPeers()
	})

	fmt.Fprint(cmd.OutOrStdout(), formatPeerTable(peers))
	return nil
}

func (s *Shell) showOnePeer(cmd *cobra.Command, idArg string) error {
	id, err := strconv.ParseUint(idArg, 10, 32)
	if err != nil {
		return fmt.Errorf("parse peer id %q: %w", idArg, err)
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

	fmt.Fprint(cmd.OutOrStdout(), formatPeerDetail(peer))
	return nil
}
