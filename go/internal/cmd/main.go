package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "tarkovremote",
		Short:         "Drive a tarkov.dev display from a controller through the remote relay",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
	}

	opts.bind(cmd)

	cmd.AddCommand(newDisplayCmd(opts))
	cmd.AddCommand(newControlCmd(opts))
	cmd.AddCommand(newSendCmd(opts))
	cmd.AddCommand(newIDCmd(opts))
	cmd.AddCommand(newPairCmd(opts))
	cmd.AddCommand(newRelayCmd())
	return cmd
}
