package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/tarkovremote/go/internal/config"
	"github.com/mcdev12/tarkovremote/go/internal/natsutil"
	"github.com/mcdev12/tarkovremote/go/internal/remote"
	"github.com/mcdev12/tarkovremote/go/internal/remote/dispatch"
	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Remote *remote.Service

	config    config.Config
	database  *sql.DB
	natsConn  *nats.Conn
	jetStream jetstream.JetStream
	closers   []func()
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// NATS → identity store → remote service
	s := &Services{config: cfg}

	if cfg.UsesNATS() {
		nc, js, err := natsutil.Connect(cfg.JetStream())
		if err != nil {
			return nil, err
		}
		s.natsConn = nc
		s.jetStream = js
		s.closers = append(s.closers, nc.Close)
	}

	store, err := s.setupStore(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Remote = remote.NewService(cfg.Remote(), store, nil)
	return s, nil
}

func (s *Services) setupStore(ctx context.Context) (session.Store, error) {
	cfg := s.config

	switch cfg.Store.Driver {
	case config.StoreMemory:
		log.Warn().Msg("using in-memory session store, the session id will not survive a restart")
		return session.NewMemoryStore(), nil

	case config.StoreFile:
		log.Info().Str("path", cfg.Store.Path).Msg("using file session store")
		return session.NewFileStore(cfg.Store.Path), nil

	case config.StoreSQLite, config.StorePostgres:
		database, driver, err := setupDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.database = database
		s.closers = append(s.closers, func() { database.Close() })

		store, err := session.NewSQLStore(ctx, database, driver)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare session table: %w", err)
		}
		return store, nil

	case config.StoreNATS:
		store, err := session.OpenKVStore(ctx, s.jetStream, cfg.Store.Bucket)
		if err != nil {
			return nil, err
		}
		log.Info().Str("bucket", cfg.Store.Bucket).Msg("using JetStream session store")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// displayNavigator builds the navigator a display follows commands with. It resolves
// paths against the site URL and, when configured, mirrors them to JetStream.
func (s *Services) displayNavigator(ctx context.Context) (*dispatch.URLNavigator, dispatch.Navigator, error) {
	urlNav, err := dispatch.NewURLNavigator(s.config.Site.URL)
	if err != nil {
		return nil, nil, err
	}
	if !s.config.NATS.PublishNavigation {
		return urlNav, urlNav, nil
	}

	jsCfg := s.config.JetStream()
	if err := natsutil.EnsureStream(ctx, s.jetStream, jsCfg); err != nil {
		return nil, nil, fmt.Errorf("ensure navigation stream: %w", err)
	}

	sessionID := s.Remote.Identity().GetOrCreateSessionID(ctx)
	natsNav := dispatch.NewNATSNavigator(s.jetStream, jsCfg.SubjectPrefix, jsCfg.StreamName, sessionID.String())
	log.Info().Str("subject", natsNav.Subject()).Msg("publishing navigation to JetStream")

	return urlNav, dispatch.MultiNavigator{urlNav, natsNav}, nil
}

// HealthChecker covers the relay link plus the database and NATS connection when in use
func (s *Services) HealthChecker() *HealthChecker {
	return NewHealthChecker(s.Remote, s.database, s.natsConn)
}

func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
