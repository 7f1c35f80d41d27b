package remote

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mcdev12/tarkovremote/go/internal/remote/connection"
	"github.com/mcdev12/tarkovremote/go/internal/remote/dispatch"
	"github.com/mcdev12/tarkovremote/go/internal/remote/pairing"
	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the remote control service
type Config struct {
	Connection connection.Config
	SiteURL    string // Base URL for navigation targets and pairing links
	QRSize     int
}

// DefaultConfig returns default configuration for the remote control service
func DefaultConfig() Config {
	return Config{
		Connection: connection.DefaultConfig(),
		SiteURL:    dispatch.DefaultSiteURL,
		QRSize:     pairing.DefaultQRSize,
	}
}

// Service wires the session identity, the connection manager and the command dispatcher
// into one remote-control client. The same service acts as a display (OnCommand) and
// as a controller (EmitCommand).
type Service struct {
	config     Config
	identity   *session.Identity
	manager    *connection.Manager
	dispatcher *dispatch.Dispatcher
}

// NewService creates a service persisting its identity in store
func NewService(config Config, store session.Store, dialer connection.Dialer, opts ...connection.Option) *Service {
	if config.SiteURL == "" {
		config.SiteURL = dispatch.DefaultSiteURL
	}
	if dialer == nil {
		dialer = connection.NewWebsocketDialer(config.Connection)
	}

	identity := session.NewIdentity(store)
	manager := connection.NewManager(config.Connection, dialer, identity, opts...)
	dispatcher := dispatch.New(manager, manager.Status(), identity)
	manager.SetCommandSink(dispatcher)

	return &Service{
		config:     config,
		identity:   identity,
		manager:    manager,
		dispatcher: dispatcher,
	}
}

// Start runs the connection manager until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	// Loads both ids into the identity cache before the connection loop reads them
	sessionID := s.identity.GetOrCreateSessionID(ctx)
	controlID := s.identity.ControlID(ctx)
	log.Info().
		Str("session_id", sessionID.String()).
		Str("control_id", controlID.String()).
		Str("relay_url", s.manager.Config().RelayURL).
		Msg("starting remote control service")

	if err := s.manager.Run(ctx); err != nil {
		return fmt.Errorf("run connection manager: %w", err)
	}

	log.Info().Msg("remote control service stopped")
	return nil
}

func (s *Service) Identity() *session.Identity {
	return s.identity
}

func (s *Service) Manager() *connection.Manager {
	return s.manager
}

func (s *Service) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// Enable turns the remote connection on
func (s *Service) Enable() {
	s.manager.Enable()
}

// Disable stops reconnecting
func (s *Service) Disable() {
	s.manager.Disable()
}

// OnCommand registers the handler for commands received as a display
func (s *Service) OnCommand(h dispatch.Handler) {
	s.dispatcher.OnCommand(h)
}

// EmitCommand sends a navigation command to the paired display
func (s *Service) EmitCommand(ctx context.Context, targetType, targetValue string) error {
	return s.dispatcher.EmitCommand(ctx, targetType, targetValue)
}

// AdoptFromURL joins the session named by the locator's pairing token and enables the
// connection. It reports whether a token was present.
func (s *Service) AdoptFromURL(ctx context.Context, u *url.URL) (bool, error) {
	token := session.PairingToken(u)
	if token == "" {
		return false, nil
	}
	if err := s.identity.AdoptPairingToken(ctx, token); err != nil {
		return true, err
	}
	s.manager.Enable()
	return true, nil
}

// PairingURL returns the link that joins this display's session
func (s *Service) PairingURL(ctx context.Context) (string, error) {
	return pairing.URL(s.config.SiteURL, s.identity.GetOrCreateSessionID(ctx))
}

// StatusResponse is the snapshot served by the status endpoint
type StatusResponse struct {
	State      connection.State `json:"state"`
	Enabled    bool             `json:"enabled"`
	SessionID  string           `json:"session_id"`
	ControlID  string           `json:"control_id,omitempty"`
	PairingURL string           `json:"pairing_url,omitempty"`
	Stats      connection.Stats `json:"stats"`
}

// Status returns the current state of the service
func (s *Service) Status(ctx context.Context) StatusResponse {
	resp := StatusResponse{
		State:     s.manager.State(),
		Enabled:   s.manager.Enabled(),
		SessionID: s.identity.GetOrCreateSessionID(ctx).String(),
		ControlID: s.identity.ControlID(ctx).String(),
		Stats:     s.manager.Stats(),
	}
	if link, err := s.PairingURL(ctx); err == nil {
		resp.PairingURL = link
	}
	return resp
}
