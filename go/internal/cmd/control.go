package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mcdev12/tarkovremote/go/internal/remote"
	"github.com/mcdev12/tarkovremote/go/internal/remote/dispatch"
	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newControlCmd(opts *rootOptions) *cobra.Command {
	var displayID string
	var noHTTP bool

	cmd := &cobra.Command{
		Use:   "control",
		Short: "Run a controller that drives a paired display",
		Long: "Connects to the relay and sends a command for every line read from stdin, " +
			"formatted as \"<type> <value>\" (e.g. \"map customs\"). The local control surface accepts " +
			"the same commands over HTTP.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			services, err := setupServices(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer services.Close()
			svc := services.Remote

			if err := pairWith(ctx, svc, displayID); err != nil {
				return err
			}
			svc.Enable()

			if !noHTTP && opts.cfg.HTTP.Addr != "" {
				serve(ctx, setupServer(opts.cfg.HTTP.Addr, svc, services.HealthChecker()))
			}

			go readCommands(ctx, svc, cmd.InOrStdin(), cmd.ErrOrStderr())

			return svc.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&displayID, "display", "", "session id of the display to control (defaults to the stored pairing)")
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "do not serve the local control surface")
	return cmd
}

// pairWith stores displayID as the control id, or checks one is already stored
func pairWith(ctx context.Context, svc *remote.Service, displayID string) error {
	if displayID != "" {
		return svc.Identity().SetControlID(ctx, session.ID(displayID))
	}
	if svc.Identity().ControlID(ctx) == "" {
		return errors.New("no display paired: pass --display <session id>")
	}
	return nil
}

// parseCommandLine splits "<type> <value>" where the value may contain spaces
func parseCommandLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	targetType, targetValue, _ := strings.Cut(line, " ")
	return targetType, strings.TrimSpace(targetValue), true
}

func readCommands(ctx context.Context, svc *remote.Service, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		targetType, targetValue, ok := parseCommandLine(scanner.Text())
		if !ok {
			continue
		}
		if err := svc.EmitCommand(ctx, targetType, targetValue); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "sent %s\n", dispatch.Path(targetType, targetValue))
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("failed to read commands")
	}
}
