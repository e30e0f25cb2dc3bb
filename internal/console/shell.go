package console

import (
	"fmt"

	"github.com/reeflective/console"
	"github.com/spf13/cobra"

	"github.com/dlepradio/dlepd/internal/dlep"
)

// Shell wraps a reeflective/console REPL bound to one Core: a cobra
// root command with `show` subcommands, reading Core state through an
// in-process Submit call rather than any RPC.
type Shell struct {
	core *dlep.Core
	app  *console.Console
}

// New builds a Shell around core. Call Run to block on the REPL.
func New(core *dlep.Core) *Shell {
	s := &Shell{
		core: core,
		app:  console.New("dlepd"),
	}

	menu := s.app.ActiveMenu()
	menu.SetCommands(s.commands)

	return s
}

// Run starts the interactive shell and blocks until the operator exits
// (Ctrl-D / `exit`).
func (s *Shell) Run() error {
	if err := s.app.Start(); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

// commands builds the command tree fresh on every prompt cycle, as
// reeflective/console expects.
func (s *Shell) commands() *cobra.Command {
	root := &cobra.Command{
		Use:   "dlepd",
		Short: "Inspect a running dlepd daemon",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show live peer, neighbor, or counter state",
	}
	show.AddCommand(s.showPeerCmd())
	show.AddCommand(s.showNeighborCmd())
	show.AddCommand(s.showCountersCmd())

	root.AddCommand(show)

	return root
}
