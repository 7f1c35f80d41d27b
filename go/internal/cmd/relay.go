package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcdev12/tarkovremote/go/internal/remote/relaytest"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRelayCmd() *cobra.Command {
	cfg := relaytest.DefaultConfig()
	var addr string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a local relay for development",
		Long:  "Serves the relay wire protocol on a local address so displays and controllers can be tested without the public relay.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			relay := relaytest.New(cfg)
			srv := &http.Server{
				Addr:              addr,
				Handler:           relay,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				relay.DropAll()
				srv.Shutdown(shutdownCtx)
			}()

			log.Info().Str("addr", addr).Dur("ping_interval", cfg.PingInterval).Msg("relay listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8090", "listen address")
	cmd.Flags().DurationVar(&cfg.PingInterval, "ping-interval", cfg.PingInterval, "interval between relay pings (0 disables)")
	return cmd
}
