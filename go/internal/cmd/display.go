package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mcdev12/tarkovremote/go/internal/remote"
	"github.com/mcdev12/tarkovremote/go/internal/remote/dispatch"
	"github.com/mcdev12/tarkovremote/go/internal/remote/pairing"
	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newDisplayCmd(opts *rootOptions) *cobra.Command {
	var connection string
	var showQR bool
	var noHTTP bool

	cmd := &cobra.Command{
		Use:   "display",
		Short: "Run a display that follows commands from paired controllers",
		Long: "Connects to the relay under this machine's session id and navigates whenever a paired " +
			"controller sends a command. Pass --connection with a pairing link or token to join an existing session.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			services, err := setupServices(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer services.Close()
			svc := services.Remote

			if err := adoptConnection(ctx, svc, connection); err != nil {
				return err
			}
			svc.Enable()

			current, nav, err := services.displayNavigator(ctx)
			if err != nil {
				return err
			}
			svc.OnCommand(dispatch.NavigateHandler(nav))

			if showQR {
				link, err := svc.PairingURL(ctx)
				if err != nil {
					return err
				}
				pairing.Display(cmd.OutOrStdout(), link, svc.Identity().GetOrCreateSessionID(ctx))
			}

			if !noHTTP && opts.cfg.HTTP.Addr != "" {
				serve(ctx, setupServer(opts.cfg.HTTP.Addr, svc, services.HealthChecker()))
			}

			go logStateChanges(ctx, svc)

			err = svc.Start(ctx)
			if page := current.Current(); page != "" {
				log.Info().Str("url", page).Msg("last page")
			}
			return err
		},
	}

	cmd.Flags().StringVar(&connection, "connection", "", "pairing link or token to join")
	cmd.Flags().BoolVar(&showQR, "qr", true, "print the pairing QR code on start")
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "do not serve the local control surface")
	return cmd
}

// adoptConnection joins the session in value, either a pairing link or a bare token
func adoptConnection(ctx context.Context, svc *remote.Service, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if !strings.Contains(value, "://") {
		value = "/?" + url.Values{session.PairingQueryParam: {value}}.Encode()
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("parse pairing link: %w", err)
	}

	found, err := svc.AdoptFromURL(ctx, u)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("pairing link %q has no connection parameter", value)
	}
	return nil
}

func logStateChanges(ctx context.Context, svc *remote.Service) {
	updates, cancel := svc.Manager().Status().Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case state := <-updates:
			log.Info().Str("state", state.String()).Msg("remote connection")
		}
	}
}
