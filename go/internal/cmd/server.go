package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/mcdev12/tarkovremote/go/internal/remote"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const shutdownTimeout = 5 * time.Second

func setupServer(addr string, service *remote.Service, health *HealthChecker) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	service.RegisterRoutes(mux)
	mux.Handle("/health", health)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

// serve runs srv until ctx is cancelled. A nil server is a no-op.
func serve(ctx context.Context, srv *http.Server) {
	if srv == nil {
		return
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Error().Err(err).Str("addr", srv.Addr).Msg("http server failed")
		return
	}
	go serveListener(ctx, srv, ln)
}

// serveListener serves on ln and returns once ctx is cancelled and the server has shut
// down. Request contexts derive from ctx so long-lived streams end with it.
func serveListener(ctx context.Context, srv *http.Server, ln net.Listener) {
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("local control surface listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}
