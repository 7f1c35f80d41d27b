package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcdev12/tarkovremote/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	relayURL   string
	store      string

	cfg config.Config
}

func (o *rootOptions) bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&o.configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	flags.StringVar(&o.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&o.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&o.relayURL, "relay", "", "relay websocket URL")
	flags.StringVar(&o.store, "store", "", "session store driver (memory, file, sqlite, postgres, nats)")
}

func (o *rootOptions) load() error {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	if o.configPath == "" {
		o.configPath = os.Getenv("REMOTE_CONFIG")
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	// Flags win over file and environment
	if o.relayURL != "" {
		cfg.Relay.URL = o.relayURL
	}
	if o.store != "" {
		cfg.Store.Driver = o.store
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := setupLogging(cfg.Log); err != nil {
		return err
	}

	o.cfg = cfg
	return nil
}

func setupLogging(cfg config.LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	return nil
}
