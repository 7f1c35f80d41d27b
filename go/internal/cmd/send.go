package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcdev12/tarkovremote/go/internal/remote/connection"
	"github.com/mcdev12/tarkovremote/go/internal/remote/dispatch"
	"github.com/spf13/cobra"
)

func newSendCmd(opts *rootOptions) *cobra.Command {
	var displayID string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "send <type> <value>",
		Short: "Send a single navigation command to the paired display",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
			defer cancelTimeout()

			services, err := setupServices(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer services.Close()
			svc := services.Remote

			if err := pairWith(ctx, svc, displayID); err != nil {
				return err
			}

			runCtx, stop := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- svc.Start(runCtx) }()
			defer func() {
				stop()
				<-done
			}()

			manager := svc.Manager()
			svc.Enable()
			if err := waitForState(ctx, manager.Status(), connection.Connected); err != nil {
				return fmt.Errorf("relay not reachable: %w", err)
			}

			sent := manager.Stats().CommandsSent
			if err := svc.EmitCommand(ctx, args[0], args[1]); err != nil {
				return err
			}
			if err := waitFor(ctx, func() bool { return manager.Stats().CommandsSent > sent }); err != nil {
				return fmt.Errorf("command not delivered to relay: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n",
				dispatch.Path(args[0], args[1]), svc.Identity().ControlID(ctx))
			return nil
		},
	}

	cmd.Flags().StringVar(&displayID, "display", "", "session id of the display (defaults to the stored pairing)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for the relay")
	return cmd
}

func waitForState(ctx context.Context, status *connection.Status, want connection.State) error {
	updates, cancel := status.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state := <-updates:
			if state == want {
				return nil
			}
		}
	}
}

func waitFor(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
