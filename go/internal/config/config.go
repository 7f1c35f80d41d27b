package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/mcdev12/tarkovremote/go/internal/dbconfig"
	"github.com/mcdev12/tarkovremote/go/internal/natsutil"
	"github.com/mcdev12/tarkovremote/go/internal/remote"
	"github.com/mcdev12/tarkovremote/go/internal/remote/connection"
	"github.com/mcdev12/tarkovremote/go/internal/remote/dispatch"
	"github.com/mcdev12/tarkovremote/go/internal/remote/pairing"
	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreNATS     = "nats"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Relay    RelayConfig     `yaml:"relay" toml:"relay"`
	Site     SiteConfig      `yaml:"site" toml:"site"`
	Store    StoreConfig     `yaml:"store" toml:"store"`
	Database dbconfig.Config `yaml:"database" toml:"database"`
	NATS     NATSConfig      `yaml:"nats" toml:"nats"`
	HTTP     HTTPConfig      `yaml:"http" toml:"http"`
	Log      LogConfig       `yaml:"log" toml:"log"`
}

type RelayConfig struct {
	URL               string        `yaml:"url" toml:"url"`
	PingInterval      time.Duration `yaml:"ping_interval" toml:"ping_interval"`
	HeartbeatMargin   time.Duration `yaml:"heartbeat_margin" toml:"heartbeat_margin"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval" toml:"reconnect_interval"`
	SendRetryDelay    time.Duration `yaml:"send_retry_delay" toml:"send_retry_delay"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	MaxMessageSize    int64         `yaml:"max_message_size" toml:"max_message_size"`
}

type SiteConfig struct {
	URL    string `yaml:"url" toml:"url"`
	QRSize int    `yaml:"qr_size" toml:"qr_size"`
}

// StoreConfig selects where the session identity is persisted
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`     // file and sqlite drivers
	Bucket string `yaml:"bucket" toml:"bucket"` // nats driver
}

type NATSConfig struct {
	URL           string `yaml:"url" toml:"url"`
	StreamName    string `yaml:"stream" toml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix" toml:"subject_prefix"`
	// PublishNavigation mirrors every display navigation to JetStream
	PublishNavigation bool `yaml:"publish_navigation" toml:"publish_navigation"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" toml:"addr"` // Empty disables the local control surface
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // console or json
}

// Default returns the configuration used when no file or environment overrides are given
func Default() Config {
	conn := connection.DefaultConfig()
	nc := natsutil.DefaultConfig()

	return Config{
		Relay: RelayConfig{
			URL:               conn.RelayURL,
			PingInterval:      conn.PingInterval,
			HeartbeatMargin:   conn.HeartbeatMargin,
			ReconnectInterval: conn.ReconnectInterval,
			SendRetryDelay:    conn.SendRetryDelay,
			HandshakeTimeout:  conn.HandshakeTimeout,
			WriteTimeout:      conn.WriteTimeout,
			MaxMessageSize:    conn.MaxMessageSize,
		},
		Site: SiteConfig{
			URL:    dispatch.DefaultSiteURL,
			QRSize: pairing.DefaultQRSize,
		},
		Store: StoreConfig{
			Driver: StoreFile,
			Path:   DefaultStorePath(),
			Bucket: session.DefaultBucket,
		},
		Database: dbconfig.Default(),
		NATS: NATSConfig{
			URL:           nc.URL,
			StreamName:    nc.StreamName,
			SubjectPrefix: nc.SubjectPrefix,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info", Format: "console"},
	}
}

// DefaultStorePath is the session file under the user's config directory
func DefaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".tarkovremote.json"
	}
	return filepath.Join(dir, "tarkovremote", "session.json")
}

// LoadDotEnv loads .env files into the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the config file at path (YAML or TOML by extension) over the defaults, then
// applies environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		return fmt.Errorf("%w: unsupported config file extension %q", ErrInvalidConfig, ext)
	}
	return nil
}

// ApplyEnv overrides fields from REMOTE_*, DB_*, NATS_URL, PORT and LOG_LEVEL
func (c *Config) ApplyEnv() {
	c.Relay.URL = getEnv("REMOTE_RELAY_URL", c.Relay.URL)
	c.Relay.PingInterval = getEnvAsDuration("REMOTE_PING_INTERVAL", c.Relay.PingInterval)
	c.Relay.ReconnectInterval = getEnvAsDuration("REMOTE_RECONNECT_INTERVAL", c.Relay.ReconnectInterval)
	c.Relay.SendRetryDelay = getEnvAsDuration("REMOTE_SEND_RETRY_DELAY", c.Relay.SendRetryDelay)

	c.Site.URL = getEnv("REMOTE_SITE_URL", c.Site.URL)
	c.Site.QRSize = getEnvAsInt("REMOTE_QR_SIZE", c.Site.QRSize)

	c.Store.Driver = getEnv("REMOTE_STORE", c.Store.Driver)
	c.Store.Path = getEnv("REMOTE_STORE_PATH", c.Store.Path)
	c.Store.Bucket = getEnv("REMOTE_NATS_BUCKET", c.Store.Bucket)

	c.Database.ApplyEnv()

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)

	if port := os.Getenv("PORT"); port != "" {
		c.HTTP.Addr = ":" + port
	}
	c.HTTP.Addr = getEnv("REMOTE_HTTP_ADDR", c.HTTP.Addr)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate checks the fields that cannot be defaulted
func (c Config) Validate() error {
	u, err := url.Parse(c.Relay.URL)
	if err != nil {
		return fmt.Errorf("%w: relay url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: relay url %q must use ws or wss", ErrInvalidConfig, c.Relay.URL)
	}

	switch c.Store.Driver {
	case StoreMemory, StorePostgres, StoreNATS:
	case StoreFile, StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store driver %s needs a path", ErrInvalidConfig, c.Store.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}

	if c.Relay.HeartbeatMargin < 0 {
		return fmt.Errorf("%w: heartbeat margin must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Connection returns the connection manager settings
func (c Config) Connection() connection.Config {
	return connection.Config{
		RelayURL:          c.Relay.URL,
		PingInterval:      c.Relay.PingInterval,
		HeartbeatMargin:   c.Relay.HeartbeatMargin,
		ReconnectInterval: c.Relay.ReconnectInterval,
		SendRetryDelay:    c.Relay.SendRetryDelay,
		HandshakeTimeout:  c.Relay.HandshakeTimeout,
		WriteTimeout:      c.Relay.WriteTimeout,
		MaxMessageSize:    c.Relay.MaxMessageSize,
	}
}

// Remote returns the remote service settings
func (c Config) Remote() remote.Config {
	return remote.Config{
		Connection: c.Connection(),
		SiteURL:    c.Site.URL,
		QRSize:     c.Site.QRSize,
	}
}

// JetStream returns the NATS connection settings
func (c Config) JetStream() natsutil.Config {
	nc := natsutil.DefaultConfig()
	nc.URL = c.NATS.URL
	if c.NATS.StreamName != "" {
		nc.StreamName = c.NATS.StreamName
	}
	if c.NATS.SubjectPrefix != "" {
		nc.SubjectPrefix = c.NATS.SubjectPrefix
	}
	return nc
}

// UsesNATS reports whether any component needs a NATS connection
func (c Config) UsesNATS() bool {
	return c.Store.Driver == StoreNATS || c.NATS.PublishNavigation
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
