package main

import (
	"fmt"
	"os"

	"github.com/mcdev12/tarkovremote/go/internal/remote/pairing"
	"github.com/spf13/cobra"
)

func newPairCmd(opts *rootOptions) *cobra.Command {
	var pngPath string

	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Print the pairing link and QR code for this display",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			services, err := setupServices(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer services.Close()
			svc := services.Remote

			link, err := svc.PairingURL(ctx)
			if err != nil {
				return err
			}

			if pngPath == "" {
				pairing.Display(cmd.OutOrStdout(), link, svc.Identity().GetOrCreateSessionID(ctx))
				return nil
			}

			png, err := pairing.PNG(link, opts.cfg.Site.QRSize)
			if err != nil {
				return err
			}
			if err := os.WriteFile(pngPath, png, 0o644); err != nil {
				return fmt.Errorf("write qr code: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nwrote %s\n", link, pngPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&pngPath, "png", "", "write the QR code to this PNG file instead of the terminal")
	return cmd
}
