package main

import (
	"fmt"

	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
	"github.com/spf13/cobra"
)

func newIDCmd(opts *rootOptions) *cobra.Command {
	var adopt string
	var control string
	var clearControl bool

	cmd := &cobra.Command{
		Use:   "id",
		Short: "Show or change the stored session and control ids",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			services, err := setupServices(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer services.Close()
			identity := services.Remote.Identity()

			if adopt != "" {
				if err := identity.AdoptPairingToken(ctx, adopt); err != nil {
					return err
				}
			}
			switch {
			case clearControl:
				identity.ClearControlID(ctx)
			case control != "":
				if err := identity.SetControlID(ctx, session.ID(control)); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session: %s\n", identity.GetOrCreateSessionID(ctx))
			if id := identity.ControlID(ctx); id != "" {
				fmt.Fprintf(out, "control: %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&adopt, "adopt", "", "replace the session id with a pairing token")
	cmd.Flags().StringVar(&control, "control", "", "pair with the display that has this session id")
	cmd.Flags().BoolVar(&clearControl, "clear-control", false, "forget the paired display")
	cmd.MarkFlagsMutuallyExclusive("control", "clear-control")
	return cmd
}
