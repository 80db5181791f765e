package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/proclet/internal/signals"
)

func newKillCmd() *cobra.Command {
	var sigName string
	cmd := &cobra.Command{
		Use:   "kill <pid>",
		Short: "Send a signal to a process, or probe it with signal 0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil || pid <= 0 {
				return usageErrorf("invalid pid %q", args[0])
			}

			sig, canonical, err := signals.Lookup(sigName)
			if err != nil {
				return err
			}
			if sig == 0 {
				alive, err := signals.Alive(pid)
				if err != nil {
					return err
				}
				if !alive {
					return fmt.Errorf("process %d does not exist", pid)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "process %d exists\n", pid)
				return nil
			}

			if err := signals.Kill(pid, sigName); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to process %d\n", canonical, pid)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sigName, "signal", "s", "SIGTERM", "Signal name or number to send (0 probes for existence)")
	return cmd
}
